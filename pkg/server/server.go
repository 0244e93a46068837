// Package server runs the protection agent: an HTTP API over the protection
// orchestrator and a broker subscription receiving the same commands.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/valve"
	"github.com/jpillora/backoff"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/broker"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/protection"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

const shutdownTimeout = 20 * time.Second

// Protector is the protection orchestrator as used by the server.
// *protection.Orchestrator satisfies it.
type Protector interface {
	EnableProtection(ctx context.Context, req protection.EnableProtectionRequest) (*backupapi.JobResponse, error)
	DisableProtection(ctx context.Context, item protection.Item, deleteBackupData bool) (*backupapi.JobResponse, error)
	TriggerBackup(ctx context.Context, item protection.Item, expiry time.Time) (*backupapi.JobResponse, error)
	TriggerRestore(ctx context.Context, rp protection.RecoveryPoint, storageAccountID string) (*backupapi.JobResponse, error)

	ListContainers(ctx context.Context, f protection.ContainerFilter) ([]*protection.Container, error)
	ListProtectedItems(ctx context.Context, f protection.ItemFilter) ([]protection.Item, error)
	FindProtectedItem(ctx context.Context, containerName, itemName string) (*protection.IaasVMItem, error)
	ListRecoveryPoints(ctx context.Context, item protection.Item, start, end time.Time) ([]protection.RecoveryPoint, error)
	GetRecoveryPointDetails(ctx context.Context, item protection.Item, recoveryPointID string) (protection.RecoveryPoint, error)

	CreatePolicy(ctx context.Context, name string, workloadType workload.Type, schedule policy.SchedulePolicy, retention policy.RetentionPolicy) (*policy.IaasVMPolicy, error)
	ModifyPolicy(ctx context.Context, target policy.Policy, schedule policy.SchedulePolicy, retention policy.RetentionPolicy) (*policy.IaasVMPolicy, error)
	GetPolicy(ctx context.Context, name string) (*policy.IaasVMPolicy, error)
	GetDefaultSchedulePolicy() *policy.SimpleSchedulePolicy
	GetDefaultRetentionPolicy() *policy.LongTermRetentionPolicy
}

var _ Protector = (*protection.Orchestrator)(nil)

// Server defines parameters for running the protection agent HTTP server.
type Server struct {
	Addr            string
	router          *chi.Mux
	b               broker.Broker
	subscribeTopics []string
	publishTopic    string
	useUnixSock     bool
	protector       Protector
	machineID       string

	// set by Run, holds back shutdown while commands are in flight.
	valve *valve.Valve

	// signal chan use for testing.
	testSignalCh chan os.Signal

	logger *zap.Logger
}

// New creates new server instance.
func New(opts ...Option) (*Server, error) {
	s := &Server{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.protector == nil {
		return nil, errors.New("protector is required")
	}

	s.router = chi.NewRouter()

	if s.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		s.logger = l
	}

	s.setupRoutes()
	s.useUnixSock = strings.HasPrefix(s.Addr, "unix://")
	s.Addr = strings.TrimPrefix(s.Addr, "unix://")

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Get("/metrics", promhttp.Handler().ServeHTTP)

	s.router.Route("/containers", func(r chi.Router) {
		r.Get("/", s.ListContainers)
		r.Route("/{container}/items", func(r chi.Router) {
			r.Get("/", s.ListItems)
			r.Route("/{item}", func(r chi.Router) {
				r.Delete("/", s.DisableProtection)
				r.Post("/backup", s.Backup)
				r.Get("/recovery-points", s.ListRecoveryPoints)
				r.Get("/recovery-points/{recoveryPoint}", s.GetRecoveryPoint)
				r.Post("/recovery-points/{recoveryPoint}/restore", s.Restore)
			})
		})
	})

	s.router.Post("/protection", s.EnableProtection)

	s.router.Route("/policies", func(r chi.Router) {
		r.Post("/", s.CreatePolicy)
		r.Get("/default", s.DefaultPolicy)
		r.Get("/{name}", s.GetPolicy)
		r.Put("/{name}", s.ModifyPolicy)
	})
}

// Run serves HTTP and, when a broker is set, keeps a broker subscription
// until SIGTERM or SIGINT.
func (s *Server) Run() error {
	// Graceful valve shut-off package to manage code preemption and shutdown signaling.
	s.valve = valve.New()
	baseCtx := s.valve.Context()

	g, ctx := errgroup.WithContext(baseCtx)
	srv := &http.Server{Handler: chi.ServerBaseContext(baseCtx, s.router)}

	if s.b != nil && len(s.subscribeTopics) > 0 {
		g.Go(func() error {
			s.connectBroker(ctx)
			return nil
		})
	}

	c := make(chan os.Signal, 1)
	if s.testSignalCh != nil {
		c = s.testSignalCh
	}
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(c)

	g.Go(func() error {
		select {
		case <-c:
		case <-ctx.Done():
		}
		s.logger.Info("shutting down...")

		if err := s.valve.Shutdown(shutdownTimeout); err != nil {
			s.logger.Error("failed to shutdown valve", zap.Error(err))
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error("failed to shutdown http server", zap.Error(err))
		}
		if s.b != nil {
			_ = s.b.Disconnect()
		}
		return nil
	})

	g.Go(func() error {
		if s.useUnixSock {
			unixListener, err := net.Listen("unix", s.Addr)
			if err != nil {
				return err
			}
			return srv.Serve(unixListener)
		}
		srv.Addr = s.Addr
		return srv.ListenAndServe()
	})

	return g.Wait()
}

// connectBroker retries until the broker accepts the connection and the
// subscription, or ctx is done.
func (s *Server) connectBroker(ctx context.Context) {
	b := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 30 * time.Second, Jitter: true}
	for {
		err := s.b.ConnectAndSubscribe(s.handleBrokerEvent, s.subscribeTopics)
		if err == nil {
			s.logger.Info("subscribed to broker", zap.String("broker", s.b.String()), zap.Strings("topics", s.subscribeTopics))
			return
		}
		d := b.Duration()
		s.logger.Warn("broker connection failed", zap.Error(err), zap.Duration("retry_in", d))
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}

// hold keeps shutdown from completing until the returned func is called.
func (s *Server) hold() (func(), error) {
	if s.valve == nil {
		return func() {}, nil
	}
	if err := s.valve.Open(); err != nil {
		return nil, err
	}
	return func() { s.valve.Close() }, nil
}
