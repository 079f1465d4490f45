//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/domain"
	"github.com/regia-app/launcher/internal/infra"
	"github.com/regia-app/launcher/internal/supervisor"
	"github.com/regia-app/launcher/test/fixtures"
)

// healthServer answers the readiness probe on behalf of the fake companion,
// which is a shell script and cannot serve HTTP itself.
func healthServer() (*http.Server, int) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()

	return server, listener.Addr().(*net.TCPAddr).Port
}

var _ = Describe("Companion supervision", func() {
	var (
		tmpDir    string
		companion *fixtures.FakeCompanion
		registry  domain.LaunchRegistry
		spawner   domain.Spawner
		logger    *zap.Logger
		health    *http.Server
		port      int
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "regia-integration-*")
		Expect(err).NotTo(HaveOccurred())

		companion = fixtures.NewFakeCompanion(tmpDir)
		registry = infra.NewFileLaunchRegistry(tmpDir)
		logger = zap.NewNop()
		spawner = infra.NewOSSpawner(logger)
		health, port = healthServer()
	})

	AfterEach(func() {
		_ = health.Close()
		os.RemoveAll(tmpDir)
	})

	newSupervisor := func(command string, shutdownTimeout time.Duration) *supervisor.Supervisor {
		return supervisor.New(
			supervisor.Config{
				Command:           command,
				Port:              port,
				ReadinessTimeout:  5 * time.Second,
				ShutdownTimeout:   shutdownTimeout,
				HeartbeatInterval: time.Hour,
			},
			spawner,
			registry,
			supervisor.NewHealthProber(port, "/health", logger),
			fmt.Sprintf("launch-%d", GinkgoRandomSeed()),
			logger,
		)
	}

	waitForState := func(s *supervisor.Supervisor, want domain.CompanionState) {
		Eventually(s.State, 10*time.Second, 20*time.Millisecond).Should(Equal(want))
	}

	Describe("startup", func() {
		It("reaches Running once the health endpoint answers", func() {
			path, err := companion.Cooperative()
			Expect(err).NotTo(HaveOccurred())

			s := newSupervisor(path, 2*time.Second)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			Expect(s.Start(ctx)).To(Succeed())
			go func() { _ = s.Run(ctx) }()

			waitForState(s, domain.StateRunning)
			Expect(s.Info().PID).To(BeNumerically(">", 0))

			record, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(record).NotTo(BeNil())
			Expect(record.CompanionPID).To(Equal(s.Info().PID))

			Expect(s.Stop(context.Background())).To(Succeed())
		})

		It("moves to Failed when the backend crashes", func() {
			path, err := companion.Crashing()
			Expect(err).NotTo(HaveOccurred())

			s := newSupervisor(path, 2*time.Second)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			Expect(s.Start(ctx)).To(Succeed())
			go func() { _ = s.Run(ctx) }()

			waitForState(s, domain.StateFailed)
			Expect(s.Info().ExitCode).To(Equal(7))
		})
	})

	Describe("shutdown", func() {
		It("stops a cooperative backend with SIGTERM alone", func() {
			path, err := companion.Cooperative()
			Expect(err).NotTo(HaveOccurred())

			s := newSupervisor(path, 5*time.Second)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			Expect(s.Start(ctx)).To(Succeed())
			go func() { _ = s.Run(ctx) }()
			waitForState(s, domain.StateRunning)

			pid := s.Info().PID
			Expect(s.Stop(context.Background())).To(Succeed())
			Expect(s.State()).To(Equal(domain.StateStopped))

			pm := infra.NewProcessManager()
			Eventually(func() bool { return pm.IsRunning(pid) }, 5*time.Second).Should(BeFalse())

			record, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(record).To(BeNil())
		})

		It("escalates to SIGKILL when SIGTERM is ignored", func() {
			path, err := companion.Stubborn()
			Expect(err).NotTo(HaveOccurred())

			s := newSupervisor(path, 500*time.Millisecond)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			Expect(s.Start(ctx)).To(Succeed())
			go func() { _ = s.Run(ctx) }()
			waitForState(s, domain.StateRunning)

			pid := s.Info().PID
			err = s.Stop(context.Background())
			Expect(errors.Is(err, domain.ErrShutdownTimeout)).To(BeTrue())
			Expect(s.State()).To(Equal(domain.StateStopped))

			pm := infra.NewProcessManager()
			Eventually(func() bool { return pm.IsRunning(pid) }, 5*time.Second).Should(BeFalse())
		})
	})

	Describe("orphan reaping", func() {
		It("kills a companion left behind by a dead launcher", func() {
			path, err := companion.Cooperative()
			Expect(err).NotTo(HaveOccurred())

			s := newSupervisor(path, 2*time.Second)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			Expect(s.Start(ctx)).To(Succeed())
			pid := s.Info().PID

			// Rewrite the record as if another launcher (now dead) owned it.
			record, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			record.LauncherPID = 999999
			Expect(registry.Register(*record)).To(Succeed())

			pm := infra.NewProcessManager()
			sweeper := supervisor.NewOrphanSweeper(pm, registry, logger)
			Expect(sweeper.Sweep("backend-cooperative")).To(Succeed())

			Eventually(func() bool { return pm.IsRunning(pid) }, 5*time.Second).Should(BeFalse())

			cleared, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(cleared).To(BeNil())
		})
	})
})
