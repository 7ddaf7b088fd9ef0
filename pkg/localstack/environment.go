// Package localstack starts a disposable LocalStack container for a test run,
// waits until it is ready, seeds it with tables, streams and buckets, and
// removes it afterwards.
//
// Typical use from a test package:
//
//	func TestMain(m *testing.M) {
//		os.Exit(localstack.Run(m, localstack.WithConfigFile("localstack.yaml")))
//	}
package localstack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/goldsam/jest-localstack/internal/config"
	"github.com/goldsam/jest-localstack/internal/docker"
	"github.com/goldsam/jest-localstack/internal/readiness"
	"github.com/goldsam/jest-localstack/internal/seed"
	"github.com/goldsam/jest-localstack/internal/services"
)

// Environment is a running, ready and seeded LocalStack container. It is
// created by Setup and owned by the caller until Teardown.
type Environment struct {
	cfg      *config.Config
	services services.Map
	session  string
	host     string

	mu          sync.Mutex
	containerID string
	prov        provisioner
	log         *logrus.Entry
}

// Setup provisions the container: it resolves the configuration, pulls the
// image if needed, creates and starts the container, waits for the ready
// line and seeds the configured resources. When any step after creation
// fails the container is force-removed before the error is returned.
func Setup(ctx context.Context, opts ...Option) (*Environment, error) {
	o := newOptions(opts)
	log := logrus.WithField("component", "localstack")

	cfg, err := config.Resolve(ctx, o.source)
	if err != nil {
		return nil, &ConfigLoadError{Source: o.sourceName, Err: err}
	}

	active, err := services.Build(cfg.Services)
	if err != nil {
		return nil, &ConfigLoadError{Source: o.sourceName, Err: err}
	}
	servicesEnv, err := services.EnvValue(cfg.Services)
	if err != nil {
		return nil, &ConfigLoadError{Source: o.sourceName, Err: err}
	}

	prov := o.provisioner
	if prov == nil {
		mgr, err := docker.NewManager()
		if err != nil {
			return nil, &ContainerStartError{Err: err}
		}
		prov = mgr
	}

	var output io.Writer
	if cfg.ShowLog {
		output = o.logOutput
	}

	ref, err := prov.EnsureImage(ctx, cfg.Image, output)
	if err != nil {
		prov.Close()
		return nil, &ImagePullError{Image: cfg.Image, Err: err}
	}

	session := uuid.NewString()
	id, err := prov.CreateAndStart(ctx, docker.ContainerSpec{
		Image:  ref,
		Ports:  active,
		Env:    docker.LocalStackEnv(servicesEnv),
		Labels: map[string]string{docker.LabelSession: session},
	})
	if err != nil {
		prov.Close()
		return nil, &ContainerStartError{Err: err}
	}

	env := &Environment{
		cfg:         cfg,
		services:    active,
		session:     session,
		host:        o.host,
		containerID: id,
		prov:        prov,
		log:         log.WithField("container", shortID(id)),
	}

	if err := env.waitAndSeed(ctx, o, output); err != nil {
		env.abort(ctx)
		return nil, err
	}

	env.log.WithField("services", active.Names()).Info("LocalStack is ready")
	return env, nil
}

func (e *Environment) waitAndSeed(ctx context.Context, o *options, output io.Writer) error {
	e.log.Info("Waiting for LocalStack to be ready...")

	stream, err := e.prov.Logs(ctx, e.containerID)
	if err != nil {
		return &ContainerStartError{ContainerID: e.containerID, Err: err}
	}

	err = readiness.Wait(ctx, stream, readiness.Options{
		Sentinel: o.sentinel,
		Timeout:  e.cfg.ReadyTimeout,
		Log:      output,
	})
	switch {
	case errors.Is(err, readiness.ErrTimeout):
		return &ReadinessTimeoutError{ContainerID: e.containerID, Timeout: e.cfg.ReadyTimeout, Err: err}
	case err != nil:
		return &ContainerStartError{ContainerID: e.containerID, Err: err}
	}

	if err := o.seeder.Seed(ctx, e.cfg, e.services); err != nil {
		return &ResourceSeedError{ContainerID: e.containerID, Err: err}
	}
	return nil
}

// abort removes the container after a failed Setup. The removal error is
// logged so the original failure is what the caller sees.
func (e *Environment) abort(ctx context.Context) {
	e.mu.Lock()
	id, prov := e.containerID, e.prov
	e.containerID = ""
	e.mu.Unlock()

	if err := prov.Remove(context.WithoutCancel(ctx), id); err != nil {
		e.log.WithError(err).Warn("Failed to remove LocalStack container after setup failure")
	}
	prov.Close()
}

// Teardown force-removes the container. It is safe to call on a nil
// Environment and more than once; removal errors are logged, not returned.
func (e *Environment) Teardown(ctx context.Context) {
	if e == nil {
		return
	}

	e.mu.Lock()
	id, prov := e.containerID, e.prov
	e.containerID = ""
	e.mu.Unlock()

	if id == "" {
		return
	}

	e.log.Debug("Teardown LocalStack")
	if err := prov.Remove(ctx, id); err != nil {
		e.log.WithError(err).Warn("Failed to remove LocalStack container")
	}
	if err := prov.Close(); err != nil {
		e.log.WithError(err).Debug("Failed to close docker client")
	}
}

// ContainerID returns the ID of the container, or "" after Teardown.
func (e *Environment) ContainerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.containerID
}

// Session is the value of the session label set on the container.
func (e *Environment) Session() string { return e.session }

// Config returns the resolved configuration.
func (e *Environment) Config() Config { return *e.cfg }

// Services returns a copy of the service name to port map.
func (e *Environment) Services() map[string]int {
	out := make(map[string]int, len(e.services))
	for name, port := range e.services {
		out[name] = port
	}
	return out
}

// Endpoint returns the URL of an active service, e.g. "http://localhost:4569"
// for "dynamodb" with the default host, or "" when the service is not active.
func (e *Environment) Endpoint(service string) string {
	port, ok := e.services.Port(service)
	if !ok {
		return ""
	}
	host := e.host
	if host == "" {
		host = DefaultHost
	}
	return seed.Endpoint(host, port)
}

// AWSConfig returns an SDK configuration with the credentials and region the
// resources were seeded with. Combine it with Endpoint:
//
//	cfg, _ := env.AWSConfig(ctx)
//	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
//		o.BaseEndpoint = aws.String(env.Endpoint("dynamodb"))
//	})
func (e *Environment) AWSConfig(ctx context.Context) (aws.Config, error) {
	return seed.AWSClients{}.Config(ctx)
}

func (e *Environment) String() string {
	return fmt.Sprintf("LocalStack %s (%v)", shortID(e.ContainerID()), e.services.Names())
}
