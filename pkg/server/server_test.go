package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/broker"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/discovery"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/protection"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/testlib"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

const (
	commandTopic = "agent/agent1"
	replyTopic   = "agent/agent1/reply"
)

// fakeProtector records calls and returns canned answers.
type fakeProtector struct {
	mu    sync.Mutex
	calls []string

	items   map[string]*protection.IaasVMItem
	err     error
	enable  protection.EnableProtectionRequest
	purge   bool
	expiry  time.Time
	storage string
	start   time.Time
	end     time.Time
}

var _ Protector = (*fakeProtector)(nil)

func newFakeProtector() *fakeProtector {
	return &fakeProtector{items: map[string]*protection.IaasVMItem{
		"c1/vm1": {
			Name:          "VM;iaasvmcontainerv2;rg;vm1",
			FriendlyName:  "vm1",
			ContainerName: "c1",
			WorkloadType:  workload.AzureVM,
		},
	}}
}

func (f *fakeProtector) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeProtector) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeProtector) job() (*backupapi.JobResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &backupapi.JobResponse{JobID: "job-1", Status: "InProgress", Location: "https://backup/operations/1"}, nil
}

func (f *fakeProtector) EnableProtection(_ context.Context, req protection.EnableProtectionRequest) (*backupapi.JobResponse, error) {
	f.record("EnableProtection")
	f.enable = req
	return f.job()
}

func (f *fakeProtector) DisableProtection(_ context.Context, _ protection.Item, purge bool) (*backupapi.JobResponse, error) {
	f.record("DisableProtection")
	f.purge = purge
	return f.job()
}

func (f *fakeProtector) TriggerBackup(_ context.Context, _ protection.Item, expiry time.Time) (*backupapi.JobResponse, error) {
	f.record("TriggerBackup")
	f.expiry = expiry
	return f.job()
}

func (f *fakeProtector) TriggerRestore(_ context.Context, _ protection.RecoveryPoint, storage string) (*backupapi.JobResponse, error) {
	f.record("TriggerRestore")
	f.storage = storage
	return f.job()
}

func (f *fakeProtector) ListContainers(context.Context, protection.ContainerFilter) ([]*protection.Container, error) {
	f.record("ListContainers")
	return []*protection.Container{{Name: "c1", FriendlyName: "vm1"}}, nil
}

func (f *fakeProtector) ListProtectedItems(context.Context, protection.ItemFilter) ([]protection.Item, error) {
	f.record("ListProtectedItems")
	return []protection.Item{f.items["c1/vm1"]}, nil
}

func (f *fakeProtector) FindProtectedItem(_ context.Context, c, i string) (*protection.IaasVMItem, error) {
	f.record("FindProtectedItem")
	item, ok := f.items[c+"/"+i]
	if !ok {
		return nil, errors.Annotatef(protection.ErrItemNotFound, "%s/%s", c, i)
	}
	return item, nil
}

func (f *fakeProtector) ListRecoveryPoints(_ context.Context, _ protection.Item, start, end time.Time) ([]protection.RecoveryPoint, error) {
	f.record("ListRecoveryPoints")
	f.start, f.end = start, end
	return []protection.RecoveryPoint{&protection.IaasVMRecoveryPoint{Name: "rp1"}}, nil
}

func (f *fakeProtector) GetRecoveryPointDetails(_ context.Context, _ protection.Item, id string) (protection.RecoveryPoint, error) {
	f.record("GetRecoveryPointDetails")
	return &protection.IaasVMRecoveryPoint{Name: id}, nil
}

func (f *fakeProtector) CreatePolicy(_ context.Context, name string, wt workload.Type, sp policy.SchedulePolicy, rp policy.RetentionPolicy) (*policy.IaasVMPolicy, error) {
	f.record("CreatePolicy")
	if f.err != nil {
		return nil, f.err
	}
	return &policy.IaasVMPolicy{Name: name, WorkloadType: wt, Schedule: sp, Retention: rp}, nil
}

func (f *fakeProtector) ModifyPolicy(_ context.Context, target policy.Policy, sp policy.SchedulePolicy, rp policy.RetentionPolicy) (*policy.IaasVMPolicy, error) {
	f.record("ModifyPolicy")
	if sp == nil && rp == nil {
		return nil, policy.ErrEmptyPolicyUpdate
	}
	p := target.(*policy.IaasVMPolicy)
	if sp != nil {
		p.Schedule = sp
	}
	if rp != nil {
		p.Retention = rp
	}
	return p, nil
}

func (f *fakeProtector) GetPolicy(_ context.Context, name string) (*policy.IaasVMPolicy, error) {
	f.record("GetPolicy")
	if name == "" {
		return nil, errors.NotValidf("empty policy name")
	}
	return &policy.IaasVMPolicy{
		Name:         name,
		WorkloadType: workload.AzureVM,
		Schedule:     &policy.SimpleSchedulePolicy{Frequency: policy.Daily, RunTimes: []time.Time{time.Date(2021, 6, 1, 1, 0, 0, 0, time.UTC)}},
	}, nil
}

func (f *fakeProtector) GetDefaultSchedulePolicy() *policy.SimpleSchedulePolicy {
	return &policy.SimpleSchedulePolicy{Frequency: policy.Daily}
}

func (f *fakeProtector) GetDefaultRetentionPolicy() *policy.LongTermRetentionPolicy {
	return &policy.LongTermRetentionPolicy{IsDailyScheduleEnabled: true}
}

func newTestServer(t *testing.T, p Protector, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithProtector(p), WithLogger(zap.NewNop())}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func TestNewRequiresProtector(t *testing.T) {
	_, err := New(WithAddr(":0"))
	require.Error(t, err)

	_, err = New(WithProtector(nil))
	require.Error(t, err)
}

func TestServerRun(t *testing.T) {
	tests := []struct {
		addr string
	}{
		{"unix://" + filepath.Join(t.TempDir(), "bizfly-vm-protection-test-server.sock")},
		{"127.0.0.1:0"},
	}
	for _, tc := range tests {
		b := testlib.NewBroker()
		s := newTestServer(t, newFakeProtector(), WithAddr(tc.addr), WithBroker(b), WithSubscribeTopics(commandTopic))
		s.testSignalCh = make(chan os.Signal, 1)

		var serverError error
		done := make(chan struct{})
		go func() {
			serverError = s.Run()
			close(done)
		}()
		require.Eventually(t, b.Connected, 5*time.Second, 10*time.Millisecond)

		s.testSignalCh <- syscall.SIGTERM
		<-done
		assert.Equal(t, http.ErrServerClosed, serverError)
		assert.False(t, b.Connected())
	}
}

func TestServerRunRetriesBroker(t *testing.T) {
	b := testlib.NewBroker()
	b.ConnectErr = errors.New("connection refused")
	s := newTestServer(t, newFakeProtector(), WithAddr("127.0.0.1:0"), WithBroker(b), WithSubscribeTopics(commandTopic))
	s.testSignalCh = make(chan os.Signal, 1)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	time.Sleep(150 * time.Millisecond)
	assert.False(t, b.Connected())

	s.testSignalCh <- syscall.SIGTERM
	assert.Equal(t, http.ErrServerClosed, <-done)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestHTTPRoutes(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		code      int
		wantCalls []string
	}{
		{"list containers", http.MethodGet, "/containers/", "", http.StatusOK, []string{"ListContainers"}},
		{"list containers bad status", http.MethodGet, "/containers/?status=sleepy", "", http.StatusBadRequest, nil},
		{"list items", http.MethodGet, "/containers/c1/items/?state=Protected", "", http.StatusOK, []string{"ListProtectedItems"}},
		{"enable new", http.MethodPost, "/protection", `{"vm_name":"vm2","resource_group":"rg","policy_name":"daily"}`, http.StatusAccepted,
			[]string{"GetPolicy", "EnableProtection"}},
		{"enable existing", http.MethodPost, "/protection", `{"container_name":"c1","item_name":"vm1","policy_name":"daily"}`, http.StatusAccepted,
			[]string{"GetPolicy", "FindProtectedItem", "EnableProtection"}},
		{"enable bad body", http.MethodPost, "/protection", `{`, http.StatusBadRequest, nil},
		{"enable without policy", http.MethodPost, "/protection", `{"vm_name":"vm2","resource_group":"rg"}`, http.StatusBadRequest, nil},
		{"disable", http.MethodDelete, "/containers/c1/items/vm1/?delete_backup_data=true", "", http.StatusAccepted,
			[]string{"FindProtectedItem", "DisableProtection"}},
		{"disable unknown item", http.MethodDelete, "/containers/c1/items/vm9/", "", http.StatusNotFound, []string{"FindProtectedItem"}},
		{"backup", http.MethodPost, "/containers/c1/items/vm1/backup", `{"expiry_time":"2021-07-01T00:00:00Z"}`, http.StatusAccepted,
			[]string{"FindProtectedItem", "TriggerBackup"}},
		{"backup without body", http.MethodPost, "/containers/c1/items/vm1/backup", "", http.StatusAccepted,
			[]string{"FindProtectedItem", "TriggerBackup"}},
		{"recovery points", http.MethodGet, "/containers/c1/items/vm1/recovery-points", "", http.StatusOK,
			[]string{"FindProtectedItem", "ListRecoveryPoints"}},
		{"recovery points bad start", http.MethodGet, "/containers/c1/items/vm1/recovery-points?start=yesterday", "", http.StatusBadRequest, nil},
		{"recovery point", http.MethodGet, "/containers/c1/items/vm1/recovery-points/rp1", "", http.StatusOK,
			[]string{"FindProtectedItem", "GetRecoveryPointDetails"}},
		{"restore", http.MethodPost, "/containers/c1/items/vm1/recovery-points/rp1/restore", `{"storage_account_id":"sa"}`, http.StatusAccepted,
			[]string{"FindProtectedItem", "GetRecoveryPointDetails", "TriggerRestore"}},
		{"default policy", http.MethodGet, "/policies/default", "", http.StatusOK, nil},
		{"get policy", http.MethodGet, "/policies/daily", "", http.StatusOK, []string{"GetPolicy"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := newFakeProtector()
			s := newTestServer(t, p)

			rr := doRequest(t, s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.code, rr.Code, rr.Body.String())
			assert.Equal(t, tc.wantCalls, p.callNames())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestHTTPRequestDetails(t *testing.T) {
	p := newFakeProtector()
	s := newTestServer(t, p)

	rr := doRequest(t, s, http.MethodPost, "/protection", `{"vm_name":"vm2","resource_group":"rg","policy_name":"daily"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "vm2", p.enable.VMName)
	assert.Equal(t, "rg", p.enable.ResourceGroup)
	assert.Equal(t, workload.AzureVM, p.enable.WorkloadType)
	assert.Nil(t, p.enable.Item)
	assert.Equal(t, "daily", p.enable.Policy.PolicyName())

	var job backupapi.JobResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.JobID)

	doRequest(t, s, http.MethodDelete, "/containers/c1/items/vm1/?delete_backup_data=true", "")
	assert.True(t, p.purge)

	doRequest(t, s, http.MethodPost, "/containers/c1/items/vm1/backup", `{"expiry_time":"2021-07-01T00:00:00Z"}`)
	assert.Equal(t, time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC), p.expiry.UTC())

	doRequest(t, s, http.MethodPost, "/containers/c1/items/vm1/recovery-points/rp1/restore", `{"storage_account_id":"sa"}`)
	assert.Equal(t, "sa", p.storage)

	rr = doRequest(t, s, http.MethodGet, "/containers/c1/items/vm1/recovery-points", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, protection.MaxRecoveryPointRange, p.end.Sub(p.start))

	rr = doRequest(t, s, http.MethodGet,
		"/containers/c1/items/vm1/recovery-points?start=2021-06-01T00:00:00Z&end=2021-06-02T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), p.start.UTC())
	assert.Equal(t, time.Date(2021, 6, 2, 0, 0, 0, 0, time.UTC), p.end.UTC())
}

func TestHTTPPolicies(t *testing.T) {
	p := newFakeProtector()
	s := newTestServer(t, p)

	body, err := json.Marshal(PolicyBody{
		Name:      "weekly",
		Schedule:  "frequency: weekly\nrun_times: [\"02:00\"]\nrun_days: [sunday]\n",
		Retention: "weekly:\n  duration: 104\n  days_of_week: [sunday]\n",
	})
	require.NoError(t, err)
	rr := doRequest(t, s, http.MethodPost, "/policies/", string(body))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var view struct {
		Name      string     `json:"name"`
		CronSpecs []string   `json:"cron_specs"`
		NextRun   *time.Time `json:"next_run"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "weekly", view.Name)
	assert.Equal(t, []string{"0 2 * * 0"}, view.CronSpecs)
	require.NotNil(t, view.NextRun)
	assert.Equal(t, time.Sunday, view.NextRun.UTC().Weekday())

	// retention tiers without times take the current schedule run times
	body, err = json.Marshal(PolicyBody{Retention: "daily:\n  duration: 7\n"})
	require.NoError(t, err)
	rr = doRequest(t, s, http.MethodPut, "/policies/daily", string(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"CreatePolicy", "GetPolicy", "ModifyPolicy"}, p.callNames())

	body, err = json.Marshal(PolicyBody{Name: "bad", Schedule: "frequency: hourly\n"})
	require.NoError(t, err)
	rr = doRequest(t, s, http.MethodPost, "/policies/", string(body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, s, http.MethodPut, "/policies/daily", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
}

func TestHTTPPolicyMissingDocuments(t *testing.T) {
	// composition fails before the backend is reached
	s := newTestServer(t, protection.New(nil, protection.WithLogger(zap.NewNop())))

	tests := []struct {
		name string
		body PolicyBody
		want string
	}{
		{"no schedule", PolicyBody{Name: "gold", Retention: "daily:\n  duration: 7\n  times: [\"02:00\"]\n"}, policy.ErrMissingSchedule.Error()},
		{"no retention", PolicyBody{Name: "gold", Schedule: "frequency: daily\nrun_times: [\"02:00\"]\n"}, policy.ErrMissingRetention.Error()},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			body, err := json.Marshal(tc.body)
			require.NoError(t, err)
			rr := doRequest(t, s, http.MethodPost, "/policies/", string(body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.want)
		})
	}
}

func TestParsePolicyDocumentsFallback(t *testing.T) {
	current := &policy.SimpleSchedulePolicy{Frequency: policy.Daily, RunTimes: []time.Time{time.Date(2021, 6, 1, 1, 0, 0, 0, time.UTC)}}
	sched, ret, err := parsePolicyDocuments(&PolicyBody{Retention: "daily:\n  duration: 7\n"}, current)
	require.NoError(t, err)
	assert.Nil(t, sched)
	assert.Equal(t, current.RunTimes, ret.DailySchedule.RetentionTimes)
	assert.True(t, ret.IsDailyScheduleEnabled)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid request", errors.Annotate(protection.ErrInvalidRequest, "vm_name"), http.StatusBadRequest},
		{"input shape", protection.ErrInvalidInputShape, http.StatusBadRequest},
		{"range", protection.ErrRecoveryPointRange, http.StatusBadRequest},
		{"workload", protection.ErrWorkloadTypeMismatch, http.StatusBadRequest},
		{"policy", errors.Trace(policy.ErrInvalidPolicy), http.StatusBadRequest},
		{"missing schedule", errors.Trace(policy.ErrMissingSchedule), http.StatusBadRequest},
		{"missing retention", policy.ErrMissingRetention, http.StatusBadRequest},
		{"empty update", policy.ErrEmptyPolicyUpdate, http.StatusBadRequest},
		{"item not found", protection.ErrItemNotFound, http.StatusNotFound},
		{"not discovered", errors.Annotate(discovery.ErrNotDiscovered, "vm2"), http.StatusNotFound},
		{"backend not found", &backupapi.ErrorResponse{StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{"backend conflict", errors.Trace(&backupapi.ErrorResponse{StatusCode: http.StatusConflict}), http.StatusConflict},
		{"backend failure", &backupapi.ErrorResponse{StatusCode: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{"refresh failed", discovery.ErrRefreshFailed, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, statusCode(tc.err))
		})
	}
}

func publishCommand(t *testing.T, b *testlib.Broker, msg broker.Message) error {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return b.Publish(commandTopic, payload)
}

func TestServerEventHandler(t *testing.T) {
	tests := []struct {
		name      string
		msg       broker.Message
		wantCalls []string
	}{
		{"enable", broker.Message{EventType: broker.EnableProtection, VMName: "vm2", ResourceGroup: "rg", PolicyName: "daily"},
			[]string{"GetPolicy", "EnableProtection"}},
		{"disable", broker.Message{EventType: broker.DisableProtection, ContainerName: "c1", ItemName: "vm1", DeleteBackupData: true},
			[]string{"FindProtectedItem", "DisableProtection"}},
		{"backup now", broker.Message{EventType: broker.BackupNow, ContainerName: "c1", ItemName: "vm1", ExpiryTime: "2021-07-01T00:00:00Z"},
			[]string{"FindProtectedItem", "TriggerBackup"}},
		{"restore", broker.Message{EventType: broker.Restore, ContainerName: "c1", ItemName: "vm1", RecoveryPointID: "rp1", StorageAccountID: "sa"},
			[]string{"FindProtectedItem", "GetRecoveryPointDetails", "TriggerRestore"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := newFakeProtector()
			b := testlib.NewBroker()
			s := newTestServer(t, p, WithBroker(b), WithPublishTopic(replyTopic), WithMachineID("agent1"))
			require.NoError(t, b.Subscribe([]string{commandTopic}, s.handleBrokerEvent))

			require.NoError(t, publishCommand(t, b, tc.msg))
			assert.Equal(t, tc.wantCalls, p.callNames())

			replies := b.Messages(replyTopic)
			require.Len(t, replies, 1)
			assert.Equal(t, broker.JobSubmitted, replies[0].EventType)
			assert.Equal(t, "agent1", replies[0].MachineID)
			assert.Equal(t, "job-1", replies[0].JobID)
			assert.Equal(t, "https://backup/operations/1", replies[0].Location)
		})
	}
}

func TestServerEventHandlerFailures(t *testing.T) {
	p := newFakeProtector()
	b := testlib.NewBroker()
	s := newTestServer(t, p, WithBroker(b), WithPublishTopic(replyTopic), WithMachineID("agent1"))
	require.NoError(t, b.Subscribe([]string{commandTopic}, s.handleBrokerEvent))

	err := publishCommand(t, b, broker.Message{EventType: "reboot"})
	assert.True(t, errors.Is(err, broker.ErrUnknownEventType))
	assert.Empty(t, b.Messages(replyTopic))

	err = publishCommand(t, b, broker.Message{EventType: broker.BackupNow, ContainerName: "c1", ItemName: "vm9"})
	assert.True(t, errors.Is(err, protection.ErrItemNotFound))
	replies := b.Messages(replyTopic)
	require.Len(t, replies, 1)
	assert.Equal(t, broker.CommandFailed, replies[0].EventType)
	assert.Contains(t, replies[0].Error, "vm9")

	err = publishCommand(t, b, broker.Message{EventType: broker.BackupNow, ContainerName: "c1", ItemName: "vm1", ExpiryTime: "tomorrow"})
	assert.True(t, errors.Is(err, protection.ErrInvalidRequest))

	// commands addressed to another agent are dropped
	n := len(p.callNames())
	require.NoError(t, publishCommand(t, b, broker.Message{EventType: broker.BackupNow, MachineID: "agent2", ContainerName: "c1", ItemName: "vm1"}))
	assert.Len(t, p.callNames(), n)

	require.Error(t, b.Publish(commandTopic, "not json"))
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, newFakeProtector())
	rr := doRequest(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
