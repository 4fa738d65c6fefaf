// Package config loads environment-backed configuration for the CLI
// binaries, in the shape of louisbranch-fracturing.space's platform/config
// package: a single generic Load wrapping caarlos0/env/v11.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/jade/eventsourcing/internal/dbconn"
	"github.com/jade/eventsourcing/queue"
)

// Load parses environment variables into target, which must be a pointer
// to a struct tagged with `env:"..."`.
func Load(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

// APIServerConfig is the environment surface of cmd/apiserver.
type APIServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// IngressMode selects component G's dispatch mode: "direct" dispatches
	// through the CommandBus inline; "queued" publishes to the queue and
	// returns once the message is durably enqueued.
	IngressMode string `env:"INGRESS_MODE" envDefault:"direct"`
	DB          dbconn.Config
	Queue       queue.Config
}

// WorkerConfig is the environment surface of cmd/worker.
type WorkerConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DB       dbconn.Config
	Queue    queue.Config
}
