package localstack

import (
	"context"
	"io"
	"os"

	"github.com/goldsam/jest-localstack/internal/config"
	"github.com/goldsam/jest-localstack/internal/docker"
	"github.com/goldsam/jest-localstack/internal/seed"
	"github.com/goldsam/jest-localstack/internal/services"
)

// Configuration types, re-exported so callers can build a Config in code.
// Table and Stream are the SDK request types, dynamodb.CreateTableInput and
// kinesis.CreateStreamInput.
type (
	Config = config.Config
	Table  = config.Table
	Stream = config.Stream
	Bucket = config.Bucket
	Object = config.Object
)

// DefaultHost is where the published service ports are reached.
const DefaultHost = "localhost"

// DefaultConfigFile is read from the working directory when no other source
// is given.
const DefaultConfigFile = config.DefaultFileName

// provisioner is implemented by *docker.Manager.
type provisioner interface {
	EnsureImage(ctx context.Context, name string, progress io.Writer) (string, error)
	CreateAndStart(ctx context.Context, spec docker.ContainerSpec) (string, error)
	Logs(ctx context.Context, containerID string) (io.ReadCloser, error)
	Remove(ctx context.Context, containerID string) error
	Close() error
}

// seeder is implemented by *seed.Seeder.
type seeder interface {
	Seed(ctx context.Context, cfg *config.Config, active services.Map) error
}

type options struct {
	source     config.Source
	sourceName string
	logOutput  io.Writer
	sentinel   string
	host       string
	onReady    func(*Environment)

	provisioner provisioner
	seeder      seeder
	clients     seed.ClientFactory
}

func newOptions(opts []Option) *options {
	o := &options{
		source:     config.FileSource(DefaultConfigFile),
		sourceName: DefaultConfigFile,
		logOutput:  os.Stdout,
		host:       DefaultHost,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.seeder == nil {
		o.seeder = &seed.Seeder{Clients: o.clients, Host: o.host}
	}
	return o
}

// Option customizes Setup and Run.
type Option func(*options)

// WithConfigFile reads the configuration from a YAML, JSON or TOML file.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.source = config.FileSource(path)
		o.sourceName = path
	}
}

// WithConfigFunc calls fn once during Setup and overlays its result on the defaults.
func WithConfigFunc(fn func(ctx context.Context) (*Config, error)) Option {
	return func(o *options) {
		o.source = config.FuncSource(fn)
		o.sourceName = "config function"
	}
}

// WithConfig uses cfg overlaid on the defaults.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.source = config.Static(cfg)
		o.sourceName = "static config"
	}
}

// WithLogOutput sets where container logs and pull progress go when showLog
// is enabled. Defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithReadySentinel overrides the log line marker that signals readiness.
func WithReadySentinel(s string) Option {
	return func(o *options) { o.sentinel = s }
}

// WithHost sets the host the container ports are published on, e.g. the
// address of a remote Docker daemon. Seeding and Endpoint both use it.
func WithHost(host string) Option {
	return func(o *options) {
		if host != "" {
			o.host = host
		}
	}
}

// OnReady is called by Run after Setup succeeded and before the tests run.
func OnReady(fn func(*Environment)) Option {
	return func(o *options) { o.onReady = fn }
}
