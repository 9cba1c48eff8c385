package pycompile

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"

	"formatif-grader/internal/services/pysyntax"
)

//go:embed compile.py
var compileProgram string

const (
	defaultTimeout = 30 * time.Second
	memoryLimit    = 128 << 20
)

type dockerAPI interface {
	Close() error
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Checker compiles student code with the real CPython inside a throwaway
// container. The code is compiled, never executed, and the container has no network.
type Checker struct {
	cli     dockerAPI
	image   string
	timeout time.Duration
	logger  *zap.Logger
}

type verdict struct {
	OK     bool   `json:"ok"`
	Line   int    `json:"line"`
	Offset int    `json:"offset"`
	Msg    string `json:"msg"`
}

// New connects to the daemon from the environment (DOCKER_HOST etc.).
func New(imageRef string, logger *zap.Logger) (*Checker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return newWithClient(cli, imageRef, logger), nil
}

func newWithClient(cli dockerAPI, imageRef string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{cli: cli, image: imageRef, timeout: defaultTimeout, logger: logger}
}

// Available reports whether the daemon answers within two seconds.
func (c *Checker) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := c.cli.Ping(ctx)
	return err == nil
}

func (c *Checker) Close() error {
	return c.cli.Close()
}

// CheckSyntax returns a *pysyntax.Error for a syntax error and a plain error
// when the container could not produce a verdict.
func (c *Checker) CheckSyntax(ctx context.Context, filename, src string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id, err := c.create(ctx, filename, src)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.cli.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true})
	}()

	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	status, err := c.waitForExit(ctx, id)
	if err != nil {
		return err
	}
	stdout, stderr, err := c.fetchLogs(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}
	if status.StatusCode != 0 {
		return fmt.Errorf("python exited with status %d: %s", status.StatusCode, strings.TrimSpace(stderr))
	}
	return parseVerdict(stdout)
}

func (c *Checker) create(ctx context.Context, filename, src string) (string, error) {
	cfg := &container.Config{
		Image: c.image,
		Cmd:   []string{"python3", "-I", "-c", compileProgram},
		Env: []string{
			"GRADER_SOURCE=" + base64.StdEncoding.EncodeToString([]byte(src)),
			"GRADER_FILENAME=" + filename,
		},
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}
	pids := int64(16)
	host := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		Resources: container.Resources{
			Memory:    memoryLimit,
			NanoCPUs:  1_000_000_000,
			PidsLimit: &pids,
		},
	}

	resp, err := c.cli.ContainerCreate(ctx, cfg, host, nil, nil, "")
	if err != nil && errdefs.IsNotFound(err) {
		c.logger.Info("pulling python image", zap.String("image", c.image))
		if perr := c.pullImage(ctx); perr != nil {
			return "", perr
		}
		resp, err = c.cli.ContainerCreate(ctx, cfg, host, nil, nil, "")
	}
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return resp.ID, nil
}

func (c *Checker) pullImage(ctx context.Context) error {
	reader, err := c.cli.ImagePull(ctx, c.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", c.image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("consume pull output for %s: %w", c.image, err)
	}
	return nil
}

func (c *Checker) waitForExit(ctx context.Context, id string) (*container.WaitResponse, error) {
	statusCh, errCh := c.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

func (c *Checker) fetchLogs(ctx context.Context, id string) (stdout, stderr string, err error) {
	logs, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer logs.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, logs); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

func parseVerdict(stdout string) error {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	last := lines[len(lines)-1]
	var v verdict
	if err := json.Unmarshal([]byte(last), &v); err != nil {
		return fmt.Errorf("unexpected compiler output %q: %w", last, err)
	}
	if v.OK {
		return nil
	}
	if v.Msg == "" {
		return errors.New("compiler reported failure without a message")
	}
	return &pysyntax.Error{Line: v.Line, Offset: v.Offset, Msg: v.Msg}
}
