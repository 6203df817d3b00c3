package logger

import (
	"log/slog"
	"os"
)

// New builds a JSON slog logger tagged with the service name and hostname.
// All long-lived components receive it as an explicit dependency.
func New(service string) *slog.Logger {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h).With(
		slog.String("service", service),
		slog.String("hostname", hostname),
	)
}
