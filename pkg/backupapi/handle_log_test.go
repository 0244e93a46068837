package backupapi

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func Test_logWriter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "bizfly-vm-protection.log")

	tests := []struct {
		name    string
		logPath string
		want    zapcore.WriteSyncer
	}{
		{
			name:    "stdout only",
			logPath: "",
			want:    zapcore.AddSync(os.Stdout),
		},
		{
			name:    "rotated file and stdout",
			logPath: logPath,
			want: zapcore.NewMultiWriteSyncer(
				zapcore.AddSync(&lumberjack.Logger{
					Filename: logPath,
					MaxSize:  500,
					MaxAge:   30,
				}),
				zapcore.AddSync(os.Stdout)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := logWriter(tt.logPath)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("logWriter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "agent.log")
	logger := NewLog(logPath, zapcore.InfoLevel)
	require.NotNil(t, logger)

	logger.Debug("hidden")
	logger.Info("protection enabled")
	_ = logger.Sync()

	buf, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"message":"protection enabled"`)
	assert.Contains(t, string(buf), `"level":"[INFO]"`)
	assert.NotContains(t, string(buf), "hidden")
}

func TestSyslogTimeEncoder(t *testing.T) {
	enc := &stringArrayEncoder{}
	SyslogTimeEncoder(time.Date(2021, 6, 1, 2, 30, 0, 0, time.UTC), enc)
	assert.Equal(t, []string{"2021-06-01 02:30:00"}, enc.values)
}

type stringArrayEncoder struct {
	zapcore.PrimitiveArrayEncoder
	values []string
}

func (s *stringArrayEncoder) AppendString(v string) { s.values = append(s.values, v) }
