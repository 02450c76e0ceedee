// Command fixturegen writes a self-signed certificate set for exercising the
// profiler's gRPC SSL paths: a CA, a server pair, a valid client pair, and
// optionally a second client pair with case-mangled PEM bodies for the
// negative handshake path.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/modelperf/modelperf/profiler/internal/certs"
)

func main() {
	dir := flag.String("out", "certs", "output directory for the certificate set")
	corrupt := flag.Bool("corrupt", true, "also write a corrupted client2 pair")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := certs.WriteFixtureSet(*dir, *corrupt); err != nil {
		slog.Error("fixturegen failed", "dir", *dir, "err", err)
		os.Exit(1)
	}
	slog.Info("certificate set written", "dir", *dir, "corrupt_pair", *corrupt)
}
