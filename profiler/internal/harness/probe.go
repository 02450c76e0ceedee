package harness

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/modelperf/modelperf/profiler/internal/certs"
	"github.com/modelperf/modelperf/profiler/internal/config"
)

// probeInterval is the delay between readiness checks while waiting for the
// server to come up.
const probeInterval = time.Second

// DialCredentials builds the gRPC transport credentials the probe uses,
// derived from the same SSL flags the perf-analyzer client will run with.
//
//   - No SSL requested on either side: plaintext.
//   - Server SSL: TLS with the configured root certificate bundle.
//   - Mutual SSL: TLS plus the client certificate pair. Loading the pair the
//     profile names happens here — the corrupted negative-test pair fails
//     loudly instead of silently connecting without SSL.
func DialCredentials(cfg *config.Config) (credentials.TransportCredentials, error) {
	serverSSL := cfg.TritonServerFlags.Bool("grpc-use-ssl")
	if !cfg.SSLEnabled() && !serverSSL {
		return insecure.NewCredentials(), nil
	}

	tlsCfg := &tls.Config{}

	if caFile := cfg.PerfAnalyzerFlags.Get("ssl-grpc-root-certifications-file"); caFile != "" {
		pool, err := certs.LoadCertPool(caFile)
		if err != nil {
			return nil, fmt.Errorf("harness: probe root certs: %w", err)
		}
		tlsCfg.RootCAs = pool
	}

	certFile := cfg.PerfAnalyzerFlags.Get("ssl-grpc-certificate-chain-file")
	keyFile := cfg.PerfAnalyzerFlags.Get("ssl-grpc-private-key-file")
	mutual := cfg.TritonServerFlags.Bool("grpc-use-ssl-mutual") || certFile != "" || keyFile != ""
	if mutual {
		if certFile == "" || keyFile == "" {
			return nil, fmt.Errorf("harness: mutual SSL requested but client pair is incomplete (cert %q, key %q)",
				certFile, keyFile)
		}
		pair, err := certs.LoadKeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("harness: probe client pair: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{pair}
	}

	return credentials.NewTLS(tlsCfg), nil
}

// WaitReady dials the endpoint and polls the standard gRPC health service
// until it reports SERVING, the timeout elapses, or ctx is cancelled. The
// last probe error is wrapped into the timeout error so certificate and
// handshake failures are attributable.
func WaitReady(ctx context.Context, endpoint string, creds credentials.TransportCredentials, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.DialContext(waitCtx, endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return fmt.Errorf("harness: dial %q: %w", endpoint, err)
	}
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)
	var lastErr error
	for {
		probeCtx, probeCancel := context.WithTimeout(waitCtx, probeInterval)
		resp, err := client.Check(probeCtx, &grpc_health_v1.HealthCheckRequest{})
		probeCancel()

		if err == nil && resp.Status == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("health status %s", resp.Status)
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("harness: %q not ready after %v: %w (last: %v)",
				endpoint, timeout, waitCtx.Err(), lastErr)
		case <-time.After(probeInterval):
		}
	}
}
