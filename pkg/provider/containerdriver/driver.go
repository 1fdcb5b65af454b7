package containerdriver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const (
	// DefaultCLIPath is the container CLI binary invoked for every
	// operation, assumed to be Docker-API compatible (docker, nerdctl,
	// podman all satisfy the inspect/logs/exec shapes this driver uses).
	DefaultCLIPath = "docker"

	// DefaultNetwork is the shared bridge network created lazily on
	// Initialize if it doesn't already exist.
	DefaultNetwork = "swarmd-net"

	ProviderKind = "container"
)

// BackoffConfig configures retry of transient CLI failures.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxRetries   int
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 200 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
		MaxRetries:   3,
	}
}

// Config configures a Driver.
type Config struct {
	CLIPath        string
	Network        string
	PublishedHost  string // host used to build access URLs, e.g. "localhost"
	RequestTimeout time.Duration
	Backoff        BackoffConfig
}

func (c *Config) applyDefaults() {
	if c.CLIPath == "" {
		c.CLIPath = DefaultCLIPath
	}
	if c.Network == "" {
		c.Network = DefaultNetwork
	}
	if c.PublishedHost == "" {
		c.PublishedHost = "localhost"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = DefaultBackoffConfig()
	}
}

// Driver implements provider.Driver by shelling out to a local
// docker-API-compatible CLI binary.
type Driver struct {
	cliPath       string
	network       string
	publishedHost string
	reqTimeout    time.Duration
	bo            BackoffConfig
}

var _ provider.Driver = (*Driver)(nil)

// New constructs a container driver from Config, applying defaults for any
// zero-valued field.
func New(cfg Config) *Driver {
	cfg.applyDefaults()
	return &Driver{
		cliPath:       cfg.CLIPath,
		network:       cfg.Network,
		publishedHost: cfg.PublishedHost,
		reqTimeout:    cfg.RequestTimeout,
		bo:            cfg.Backoff,
	}
}

// Initialize verifies the CLI is reachable and creates the shared network
// if absent.
func (d *Driver) Initialize(ctx context.Context) error {
	if _, _, err := d.runCLI(ctx, "version", "--format", "{{.Server.Version}}"); err != nil {
		return swarmerr.Wrap(swarmerr.UnavailableKind, "container engine not reachable", err)
	}

	if _, _, err := d.runCLI(ctx, "network", "inspect", d.network); err != nil {
		if _, _, createErr := d.runCLI(ctx, "network", "create", d.network); createErr != nil {
			return swarmerr.Wrap(swarmerr.UnavailableKind, "failed to create shared network", createErr)
		}
	}
	return nil
}

func (d *Driver) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		SupportsLiveResize:   false,
		SupportsSnapshotting: false,
		SupportsMultiRegion:  false,
		MaxInstancesPerCaller: 0, // unbounded locally
		MaxResourcesPerInstance: types.ResourceRequest{
			CPUCores:  float64(0), // 0 means "no enforced max" for this driver
			MemoryMiB: 0,
		},
	}
}

func (d *Driver) Create(ctx context.Context, name string, spec types.Spec) (*types.Instance, error) {
	if err := provider.ValidateSpec(spec); err != nil {
		return nil, err
	}

	inst := provider.BaseInstance(name, spec)
	inst.ProviderKind = ProviderKind

	args := d.createArgv(name, spec)

	out, _, err := d.withRetry(ctx, func(ctx context.Context) ([]byte, error) {
		o, _, e := d.runCLI(ctx, args...)
		return o, e
	})
	if err != nil {
		return nil, swarmerr.Wrap(swarmerr.InternalKind, "failed to create container", err)
	}
	containerID := strings.TrimSpace(string(out))
	inst.ProviderInstanceID = containerID
	inst.Metadata["provider_private.container_id"] = containerID

	rec, err := d.inspect(ctx, containerID)
	if err != nil {
		// Best-effort cleanup: the backend must not retain a partially
		// created artifact once Create reports failure.
		_, _, _ = d.runCLI(ctx, "rm", "-f", containerID)
		return nil, err
	}
	if rec == nil {
		_, _, _ = d.runCLI(ctx, "rm", "-f", containerID)
		return nil, swarmerr.Internal("created container vanished before inspect")
	}

	inst.Status = cliStatus(rec.State.Status)
	inst.Network = toNetworkFacts(rec, spec.Network.Port, d.publishedHost)
	if sa := startedAt(rec); !sa.IsZero() {
		inst.StartedAt = &sa
	}
	provider.Touch(inst)
	return inst, nil
}

func (d *Driver) Get(ctx context.Context, providerInstanceID string) (*types.Instance, error) {
	rec, err := d.inspect(ctx, providerInstanceID)
	if err != nil {
		if swarmerr.Is(err, swarmerr.NotFoundKind) {
			return nil, nil
		}
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	inst := &types.Instance{
		ProviderInstanceID: rec.ID,
		ProviderKind:       ProviderKind,
		Name:               strings.TrimPrefix(rec.Name, "/"),
		Status:             cliStatus(rec.State.Status),
		Spec: types.Spec{
			Image: rec.Config.Image,
			Env:   envSliceToMap(rec.Config.Env),
		},
		Metadata: map[string]string{
			"provider_private.container_id": rec.ID,
		},
	}
	if sa := startedAt(rec); !sa.IsZero() {
		inst.StartedAt = &sa
	}
	inst.UpdatedAt = time.Now()
	return inst, nil
}

func (d *Driver) List(ctx context.Context, filter *types.Filter) ([]*types.Instance, error) {
	out, _, err := d.runCLI(ctx, "ps", "-a", "--format", "{{.ID}}")
	if err != nil {
		return nil, err
	}

	var result []*types.Instance
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		inst, err := d.Get(ctx, id)
		if err != nil || inst == nil {
			continue
		}
		result = append(result, inst)
	}
	return result, nil
}

func (d *Driver) Start(ctx context.Context, providerInstanceID string) (*types.Instance, error) {
	if _, _, err := d.runCLI(ctx, "start", providerInstanceID); err != nil {
		return nil, err
	}
	inst, err := d.Get(ctx, providerInstanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, swarmerr.NotFound("container not found after start")
	}
	provider.Touch(inst)
	return inst, nil
}

func (d *Driver) Stop(ctx context.Context, providerInstanceID string, force bool) (*types.Instance, error) {
	args := []string{"stop"}
	if force {
		args = append(args, "-t", "0")
	}
	args = append(args, providerInstanceID)

	if _, _, err := d.runCLI(ctx, args...); err != nil {
		return nil, err
	}
	inst, err := d.Get(ctx, providerInstanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, swarmerr.NotFound("container not found after stop")
	}
	provider.Touch(inst)
	return inst, nil
}

func (d *Driver) Delete(ctx context.Context, providerInstanceID string) (bool, error) {
	if _, _, err := d.runCLI(ctx, "rm", "-f", providerInstanceID); err != nil {
		if swarmerr.Is(err, swarmerr.NotFoundKind) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Update is implemented as recreate: stop if running, destroy the backend
// object, re-create with spec, then start iff it was running before. spec
// is already the full merged spec (pkg/swarm.Controller merges the caller's
// partial update onto the existing one before calling here), not a sparse
// patch. The returned instance preserves the caller-visible identity by
// keeping the same name (the swarm controller keeps the swarm-level id
// stable across the recreate; ProviderInstanceID necessarily changes).
func (d *Driver) Update(ctx context.Context, providerInstanceID string, spec types.Spec) (*types.Instance, error) {
	before, err := d.Get(ctx, providerInstanceID)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, swarmerr.NotFound("container not found for update")
	}
	wasRunning := before.Status == types.InstanceStatusRunning

	if wasRunning {
		if _, err := d.Stop(ctx, providerInstanceID, false); err != nil {
			return nil, err
		}
	}
	if _, err := d.Delete(ctx, providerInstanceID); err != nil {
		return nil, err
	}

	created, err := d.Create(ctx, before.Name, spec)
	if err != nil {
		return nil, err
	}
	if !wasRunning {
		if _, err := d.Stop(ctx, created.ProviderInstanceID, false); err != nil {
			return nil, err
		}
		created.Status = types.InstanceStatusStopped
	}
	provider.Touch(created)
	return created, nil
}

func (d *Driver) Logs(ctx context.Context, providerInstanceID string, opts types.LogOptions) (*types.LogBatch, error) {
	args := []string{"logs"}
	if opts.Lines > 0 {
		args = append(args, "--tail", strconv.Itoa(opts.Lines))
	}
	if opts.Since != nil {
		args = append(args, "--since", opts.Since.Format(time.RFC3339))
	}
	if opts.Until != nil {
		args = append(args, "--until", opts.Until.Format(time.RFC3339))
	}
	args = append(args, providerInstanceID)

	out, _, err := d.runCLI(ctx, args...)
	if err != nil {
		return nil, err
	}

	batch := &types.LogBatch{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if opts.Grep != "" && !strings.Contains(line, opts.Grep) {
			continue
		}
		batch.Entries = append(batch.Entries, types.LogEntry{
			Timestamp: time.Now(),
			Level:     "info",
			Message:   line,
			Source:    "stdout",
		})
	}
	return batch, nil
}

func (d *Driver) Exec(ctx context.Context, providerInstanceID string, cmd []string) (*types.ExecResult, error) {
	args := append([]string{"exec", providerInstanceID}, cmd...)
	out, errOut, err := d.runCLI(ctx, args...)
	if err != nil {
		// A non-zero exit is a normal, expected outcome for exec, not a
		// driver-level failure: surface it as ExecResult unless the CLI
		// itself couldn't be invoked (NotFound/Unavailable still bubble).
		if swarmerr.Is(err, swarmerr.NotFoundKind) || swarmerr.Is(err, swarmerr.UnavailableKind) {
			return nil, err
		}
		return &types.ExecResult{ExitCode: 1, Stdout: string(out), Stderr: string(errOut)}, nil
	}
	return &types.ExecResult{ExitCode: 0, Stdout: string(out), Stderr: string(errOut)}, nil
}

func (d *Driver) createArgv(name string, spec types.Spec) []string {
	args := []string{
		"run", "-d",
		"--name", name,
		"--network", d.network,
		"-p", fmt.Sprintf("%d", spec.Network.Port),
		"--cpus", fmt.Sprintf("%.2f", spec.Resources.CPUCores),
		"--memory", fmt.Sprintf("%dm", spec.Resources.MemoryMiB),
	}
	if spec.WorkspacePath != "" {
		args = append(args, "-v", mountToArg(specs.Mount{Source: spec.WorkspacePath, Destination: "/workspace", Options: []string{"rw"}}))
	}
	for k, v := range spec.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	if spec.Auth != nil && spec.Auth.PasswordEnv != "" {
		if pw := os.Getenv(spec.Auth.PasswordEnv); pw != "" {
			args = append(args, "-e", fmt.Sprintf("INSTANCE_PASSWORD=%s", pw))
		}
	}
	args = append(args, spec.Image)
	return args
}

// withRetry retries a CLI invocation using the driver's configured backoff
// policy, but only for retryable neutral errors.
func (d *Driver) withRetry(ctx context.Context, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.bo.InitialDelay
	policy.Multiplier = d.bo.Multiplier
	policy.MaxInterval = d.bo.MaxDelay

	return backoff.Retry(ctx, func() ([]byte, error) {
		out, err := fn(ctx)
		if err != nil && !swarmerr.Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(d.bo.MaxRetries)))
}

func envSliceToMap(env []string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	m := make(map[string]string, len(env))
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	return m
}

// mountToArg converts an OCI mount spec into a docker-CLI -v flag, reused
// across both shipped drivers' internal mount representation.
func mountToArg(m specs.Mount) string {
	opts := "rw"
	for _, o := range m.Options {
		if o == "ro" {
			opts = "ro"
		}
	}
	return fmt.Sprintf("%s:%s:%s", m.Source, m.Destination, opts)
}
