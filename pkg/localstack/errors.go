package localstack

import (
	"fmt"
	"time"

	"github.com/goldsam/jest-localstack/internal/readiness"
)

var (
	// ErrTimeout is wrapped by ReadinessTimeoutError.
	ErrTimeout = readiness.ErrTimeout
	// ErrNotReady is wrapped by ContainerStartError when the container
	// stopped logging before it announced readiness.
	ErrNotReady = readiness.ErrStreamClosed
)

// ConfigLoadError is returned when the configuration cannot be located,
// evaluated or validated.
type ConfigLoadError struct {
	Source string
	Err    error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("localstack: load config from %s: %v", e.Source, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// ImagePullError is returned when the image is missing locally and pulling it
// failed.
type ImagePullError struct {
	Image string
	Err   error
}

func (e *ImagePullError) Error() string {
	return fmt.Sprintf("localstack: pull image %s: %v", e.Image, e.Err)
}

func (e *ImagePullError) Unwrap() error { return e.Err }

// ContainerStartError is returned when the runtime rejects creating,
// starting or attaching to the container.
type ContainerStartError struct {
	ContainerID string // empty when creation itself failed
	Err         error
}

func (e *ContainerStartError) Error() string {
	if e.ContainerID == "" {
		return fmt.Sprintf("localstack: start container: %v", e.Err)
	}
	return fmt.Sprintf("localstack: start container %s: %v", shortID(e.ContainerID), e.Err)
}

func (e *ContainerStartError) Unwrap() error { return e.Err }

// ReadinessTimeoutError is returned when the ready line did not appear in time.
type ReadinessTimeoutError struct {
	ContainerID string
	Timeout     time.Duration
	Err         error
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("localstack: container %s not ready after %s", shortID(e.ContainerID), e.Timeout)
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.Err }

// ResourceSeedError is returned when creating a table, stream or bucket failed.
type ResourceSeedError struct {
	ContainerID string
	Err         error
}

func (e *ResourceSeedError) Error() string {
	return fmt.Sprintf("localstack: seed resources: %v", e.Err)
}

func (e *ResourceSeedError) Unwrap() error { return e.Err }

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
