package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"

	"github.com/goldsam/jest-localstack/internal/services"
)

const (
	// LabelManaged marks every container created by this tool.
	LabelManaged = "localstack.managed"
	// LabelSession carries the id of the Setup call that created the container.
	LabelSession = "localstack.session"
)

// API is the subset of the Docker Engine client the Manager needs.
// *client.Client satisfies it.
type API interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	Close() error
}

// Manager handles all interactions with the Docker Daemon
type Manager struct {
	cli API
	log *logrus.Entry
}

// NewManager creates a new Docker client connected to the local daemon
func NewManager() (*Manager, error) {
	// FromEnv looks for standard env vars like DOCKER_HOST,
	// or defaults to the unix socket /var/run/docker.sock
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return NewManagerWithClient(cli), nil
}

// NewManagerWithClient wraps an existing client.
func NewManagerWithClient(cli API) *Manager {
	return &Manager{
		cli: cli,
		log: logrus.WithField("component", "docker"),
	}
}

// Close releases the underlying client connection.
func (m *Manager) Close() error {
	return m.cli.Close()
}

// NormalizeImage returns the familiar form of an image reference with the
// "latest" tag added when no tag or digest is given.
func NormalizeImage(name string) (string, error) {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", name, err)
	}
	return reference.FamiliarString(reference.TagNameOnly(named)), nil
}

// ImageExists reports whether an image matching ref is present locally.
func (m *Manager) ImageExists(ctx context.Context, ref string) (bool, error) {
	images, err := m.cli.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}
	return len(images) > 0, nil
}

// PullImage downloads ref and follows the progress stream until the daemon
// reports completion. Progress is rendered to out when it is not nil.
func (m *Manager) PullImage(ctx context.Context, ref string, out io.Writer) error {
	reader, err := m.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()

	if out == nil {
		out = io.Discard
	}

	// The pull only completes once the stream is drained; errors reported by
	// the daemon mid-pull arrive as JSON messages, not as a failed request.
	if err := jsonmessage.DisplayJSONMessagesStream(reader, out, 0, false, nil); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// EnsureImage pulls name unless it already exists locally and returns the
// normalized reference that was checked.
func (m *Manager) EnsureImage(ctx context.Context, name string, progress io.Writer) (string, error) {
	ref, err := NormalizeImage(name)
	if err != nil {
		return "", err
	}

	exists, err := m.ImageExists(ctx, ref)
	if err != nil {
		return "", err
	}
	if exists {
		m.log.WithField("image", ref).Debug("Image present locally")
		return ref, nil
	}

	m.log.WithField("image", ref).Info("Pulling LocalStack image. This may take some time...")
	if err := m.PullImage(ctx, ref, progress); err != nil {
		return "", err
	}
	return ref, nil
}

// ContainerSpec describes the LocalStack container to create.
type ContainerSpec struct {
	Name   string // optional, the daemon picks one when empty
	Image  string
	Ports  services.Map
	Env    []string
	Labels map[string]string
}

// LocalStackEnv returns the container environment. servicesEnv is the
// SERVICES value and is only set when services were requested explicitly.
func LocalStackEnv(servicesEnv string) []string {
	env := []string{"FORCE_NONINTERACTIVE=true"}
	if servicesEnv != "" {
		env = append(env, "SERVICES="+servicesEnv)
	}
	return env
}

// PortBindings exposes one TCP port per service and binds it to the same
// port on the host.
func PortBindings(ports services.Map) (nat.PortSet, nat.PortMap, error) {
	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}

	for _, name := range ports.Names() {
		hostPort := strconv.Itoa(ports[name])

		port, err := nat.NewPort("tcp", hostPort)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port for service %s: %w", name, err)
		}

		exposedPorts[port] = struct{}{}
		portBindings[port] = []nat.PortBinding{
			{
				HostIP:   "0.0.0.0",
				HostPort: hostPort,
			},
		}
	}

	return exposedPorts, portBindings, nil
}

// CreateAndStart creates and starts the container and returns its ID.
// A container that was created but failed to start is force-removed before
// the error is returned.
func (m *Manager) CreateAndStart(ctx context.Context, spec ContainerSpec) (string, error) {
	exposedPorts, portBindings, err := PortBindings(spec.Ports)
	if err != nil {
		return "", err
	}

	labels := map[string]string{LabelManaged: "true"}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	config := &container.Config{
		Image:        spec.Image,
		AttachStdin:  false,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
		OpenStdin:    false,
		StdinOnce:    false,
		Env:          spec.Env,
		ExposedPorts: exposedPorts,
		Labels:       labels,
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
	}

	m.log.WithField("image", spec.Image).Info("Creating LocalStack container.")
	resp, err := m.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		createErr := fmt.Errorf("failed to create container: %w", err)
		if resp.ID != "" {
			return "", errors.Join(createErr, m.Remove(context.WithoutCancel(ctx), resp.ID))
		}
		return "", createErr
	}

	m.log.WithField("container", shortID(resp.ID)).Info("Starting LocalStack.")
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		startErr := fmt.Errorf("failed to start container: %w", err)
		return "", errors.Join(startErr, m.Remove(context.WithoutCancel(ctx), resp.ID))
	}

	return resp.ID, nil
}

// Logs follows the combined stdout/stderr of the container from its start.
// The container runs with a TTY, so the stream is not multiplexed.
func (m *Manager) Logs(ctx context.Context, containerID string) (io.ReadCloser, error) {
	stream, err := m.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to logs of %s: %w", shortID(containerID), err)
	}
	return stream, nil
}

// Remove stops the container if it is running and deletes it.
func (m *Manager) Remove(ctx context.Context, containerID string) error {
	m.log.WithField("container", shortID(containerID)).Debug("Removing container")
	if err := m.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", shortID(containerID), err)
	}
	return nil
}

// ListManaged returns every container created by this tool, running or not.
func (m *Manager) ListManaged(ctx context.Context) ([]types.Container, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("label", LabelManaged+"=true")

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
