package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/modelperf/modelperf/profiler/internal/certs"
	"github.com/modelperf/modelperf/profiler/internal/config"
)

// readyTimeout bounds how long Launch waits for the server to report SERVING.
const readyTimeout = 2 * time.Minute

// Server is a launched (or remotely attached) inference server.
type Server struct {
	endpoint string
	cmd      *exec.Cmd
}

// Launch prepares the inference server per the profile config and blocks
// until its gRPC endpoint reports ready.
//
// In "remote" mode no process is started; the endpoint is probed and, for
// SSL profiles, the certificate it presents is inspected. In "local" mode the
// server binary is started with the profile's pass-through server flags and
// stopped again if readiness never arrives.
func Launch(ctx context.Context, cfg *config.Config) (*Server, error) {
	creds, err := DialCredentials(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{endpoint: cfg.TritonGRPCEndpoint}

	if cfg.TritonLaunchMode == "remote" && cfg.SSLEnabled() {
		inspectEndpointCert(ctx, s.endpoint)
	}

	if cfg.TritonLaunchMode == "local" {
		args := ServerArgs(cfg.TritonServerFlags)
		slog.Info("harness: starting inference server",
			"binary", cfg.TritonServerPath, "args", args)

		cmd := exec.Command(cfg.TritonServerPath, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("harness: start server: %w", err)
		}
		s.cmd = cmd
	}

	if err := WaitReady(ctx, s.endpoint, creds, readyTimeout); err != nil {
		if stopErr := s.Stop(5 * time.Second); stopErr != nil {
			slog.Warn("harness: stop after failed readiness", "err", stopErr)
		}
		return nil, err
	}

	slog.Info("harness: server ready", "endpoint", s.endpoint, "mode", cfg.TritonLaunchMode)
	return s, nil
}

// inspectEndpointCert reports on the certificate a remote SSL endpoint
// presents. Inspection only: an expiring certificate is worth a warning
// before the sweep starts, but verification stays with the gRPC dial.
func inspectEndpointCert(ctx context.Context, endpoint string) {
	cs := certs.Check(ctx, endpoint)
	switch cs.Status {
	case certs.StatusUnreachable:
		slog.Warn("harness: endpoint certificate not inspectable", "endpoint", cs.Endpoint)
	case certs.StatusExpired, certs.StatusExpiring:
		slog.Warn("harness: endpoint certificate near or past expiry",
			"endpoint", cs.Endpoint, "status", cs.Status,
			"not_after", cs.NotAfter, "days_left", cs.DaysLeft)
	default:
		slog.Info("harness: endpoint certificate",
			"endpoint", cs.Endpoint, "issuer", cs.Issuer,
			"not_after", cs.NotAfter, "days_left", cs.DaysLeft)
	}
}

// ServerArgs converts the pass-through server flag map to argv form, in
// document order so launches are reproducible.
func ServerArgs(flags config.FlagMap) []string {
	args := make([]string, 0, flags.Len())
	for _, flag := range flags.Keys() {
		args = append(args, "--"+flag+"="+flags.Get(flag))
	}
	return args
}

// Stop terminates a locally launched server: SIGTERM first, SIGKILL when the
// process has not exited within grace. A no-op in remote mode.
func (s *Server) Stop(grace time.Duration) error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("harness: signal server: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		slog.Warn("harness: server ignored SIGTERM, killing", "grace", grace)
		if err := s.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("harness: kill server: %w", err)
		}
		<-done
		return nil
	}
}
