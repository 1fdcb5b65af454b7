package clouddriver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

const ProviderKind = "cloud"

// BackoffConfig configures retry of retryable platform responses.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxRetries   int
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		MaxRetries:   4,
	}
}

// Config configures a Driver.
type Config struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	Backoff        BackoffConfig

	// AppNamePrefix names the application object this driver's instances
	// are grouped under; defaults to "swarmd".
	AppNamePrefix string
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = DefaultBackoffConfig()
	}
	if c.AppNamePrefix == "" {
		c.AppNamePrefix = "swarmd"
	}
}

// Driver implements provider.Driver against a token-authenticated micro-VM
// platform where every machine lives inside an application object.
type Driver struct {
	cfg       Config
	transport *httpTransport
}

var _ provider.Driver = (*Driver)(nil)

func New(cfg Config) *Driver {
	cfg.applyDefaults()
	return &Driver{cfg: cfg, transport: newHTTPTransport(cfg)}
}

func (d *Driver) Initialize(ctx context.Context) error {
	var apps []applicationResponse
	return d.transport.do(ctx, http.MethodGet, "/v1/apps", nil, &apps)
}

func (d *Driver) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		SupportsLiveResize:   false,
		SupportsSnapshotting: false,
		SupportsMultiRegion:  true,
		MaxInstancesPerCaller: 0,
	}
}

func (d *Driver) appName(name string) string {
	return fmt.Sprintf("%s-%s", d.cfg.AppNamePrefix, name)
}

// ensureApplication creates the application object this instance's machine
// will live in, tolerating a 409/already-exists response from a prior or
// concurrent caller.
func (d *Driver) ensureApplication(ctx context.Context, appName string) (*applicationResponse, error) {
	var app applicationResponse
	err := d.transport.do(ctx, http.MethodPost, "/v1/apps", createApplicationRequest{Name: appName}, &app)
	if err == nil {
		return &app, nil
	}
	if swarmerr.Is(err, swarmerr.ApiRequestKind) && strings.Contains(err.Error(), "409") {
		if getErr := d.transport.do(ctx, http.MethodGet, "/v1/apps/"+appName, nil, &app); getErr == nil {
			return &app, nil
		}
	}
	return nil, err
}

// Create ensures the application object, then creates a machine in it. If
// the machine request fails, the application object is left in place and
// only the error is returned.
func (d *Driver) Create(ctx context.Context, name string, spec types.Spec) (*types.Instance, error) {
	if err := provider.ValidateSpec(spec); err != nil {
		return nil, err
	}

	appName := d.appName(name)
	app, err := d.ensureApplication(ctx, appName)
	if err != nil {
		return nil, swarmerr.Wrap(swarmerr.InternalKind, "failed to ensure application", err)
	}

	req := toCreateMachineRequest(name, spec)

	var machine machineResponse
	if err := d.transport.do(ctx, http.MethodPost, "/v1/apps/"+app.ID+"/machines", req, &machine); err != nil {
		return nil, err
	}

	inst := provider.BaseInstance(name, spec)
	inst.ProviderKind = ProviderKind
	inst.ProviderInstanceID = app.ID + "/" + machine.ID
	inst.Metadata["provider_private.app_id"] = app.ID
	inst.Metadata["provider_private.app_name"] = appName
	inst.Status = machineState(machine.State)
	inst.Network = machineNetworkFacts(&machine, spec.Network.Port)
	provider.Touch(inst)
	return inst, nil
}

// splitProviderID recovers the app id from a providerInstanceID of the
// form "<appID>/<machineID>", so Get/Start/Stop/Delete/Exec stay
// self-contained without a second registry lookup to find the owning app.
func splitProviderID(providerInstanceID string) (appID, machineID string, err error) {
	parts := strings.SplitN(providerInstanceID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", swarmerr.InvalidArgument("malformed cloud provider instance id")
	}
	return parts[0], parts[1], nil
}

func (d *Driver) Get(ctx context.Context, providerInstanceID string) (*types.Instance, error) {
	appID, machineID, err := splitProviderID(providerInstanceID)
	if err != nil {
		return nil, err
	}

	var machine machineResponse
	err = d.transport.do(ctx, http.MethodGet, "/v1/apps/"+appID+"/machines/"+machineID, nil, &machine)
	if err != nil {
		if swarmerr.Is(err, swarmerr.NotFoundKind) {
			return nil, nil
		}
		return nil, err
	}

	inst := &types.Instance{
		ProviderInstanceID: providerInstanceID,
		ProviderKind:       ProviderKind,
		Name:               machine.Name,
		Status:             machineState(machine.State),
		Spec: types.Spec{
			Image: machine.Image,
			Env:   machine.Env,
			Resources: types.ResourceRequest{
				CPUCores:  float64(machine.Guest.CPUs),
				MemoryMiB: machine.Guest.MemoryMB,
			},
		},
		Metadata:  map[string]string{"provider_private.app_id": appID},
		UpdatedAt: time.Now(),
	}
	return inst, nil
}

func (d *Driver) List(ctx context.Context, filter *types.Filter) ([]*types.Instance, error) {
	var apps []applicationResponse
	if err := d.transport.do(ctx, http.MethodGet, "/v1/apps", nil, &apps); err != nil {
		return nil, err
	}

	var result []*types.Instance
	for _, app := range apps {
		if !strings.HasPrefix(app.Name, d.cfg.AppNamePrefix+"-") {
			continue
		}
		var machines []machineResponse
		if err := d.transport.do(ctx, http.MethodGet, "/v1/apps/"+app.ID+"/machines", nil, &machines); err != nil {
			continue
		}
		for _, m := range machines {
			inst, err := d.Get(ctx, app.ID+"/"+m.ID)
			if err != nil || inst == nil {
				continue
			}
			result = append(result, inst)
		}
	}
	return result, nil
}

func (d *Driver) Start(ctx context.Context, providerInstanceID string) (*types.Instance, error) {
	appID, machineID, err := splitProviderID(providerInstanceID)
	if err != nil {
		return nil, err
	}
	if err := d.transport.do(ctx, http.MethodPost, "/v1/apps/"+appID+"/machines/"+machineID+"/start", nil, nil); err != nil {
		return nil, err
	}
	return d.Get(ctx, providerInstanceID)
}

func (d *Driver) Stop(ctx context.Context, providerInstanceID string, force bool) (*types.Instance, error) {
	appID, machineID, err := splitProviderID(providerInstanceID)
	if err != nil {
		return nil, err
	}
	path := "/v1/apps/" + appID + "/machines/" + machineID + "/stop"
	if force {
		path += "?force=true"
	}
	if err := d.transport.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return nil, err
	}
	return d.Get(ctx, providerInstanceID)
}

func (d *Driver) Delete(ctx context.Context, providerInstanceID string) (bool, error) {
	appID, machineID, err := splitProviderID(providerInstanceID)
	if err != nil {
		return false, err
	}
	err = d.transport.do(ctx, http.MethodDelete, "/v1/apps/"+appID+"/machines/"+machineID, nil, nil)
	if err != nil {
		if swarmerr.Is(err, swarmerr.NotFoundKind) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Update is implemented as recreate: stop if running, destroy the backend
// machine, re-create with spec, then start iff it was running before. spec
// is already the full merged spec (pkg/swarm.Controller merges the caller's
// partial update onto the existing one before calling here), not a sparse
// patch.
func (d *Driver) Update(ctx context.Context, providerInstanceID string, spec types.Spec) (*types.Instance, error) {
	before, err := d.Get(ctx, providerInstanceID)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, swarmerr.NotFound("machine not found for update")
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
	appID, machineID, err := splitProviderID(providerInstanceID)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Lines []string `json:"lines"`
	}
	if err := d.transport.do(ctx, http.MethodGet, "/v1/apps/"+appID+"/machines/"+machineID+"/logs", nil, &raw); err != nil {
		return nil, err
	}

	batch := &types.LogBatch{}
	for _, line := range raw.Lines {
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
	if opts.Lines > 0 && len(batch.Entries) > opts.Lines {
		batch.Entries = batch.Entries[len(batch.Entries)-opts.Lines:]
	}
	return batch, nil
}

func (d *Driver) Exec(ctx context.Context, providerInstanceID string, cmd []string) (*types.ExecResult, error) {
	appID, machineID, err := splitProviderID(providerInstanceID)
	if err != nil {
		return nil, err
	}

	var result types.ExecResult
	body := struct {
		Command []string `json:"command"`
	}{Command: cmd}
	if err := d.transport.do(ctx, http.MethodPost, "/v1/apps/"+appID+"/machines/"+machineID+"/exec", body, &result); err != nil {
		if swarmerr.Is(err, swarmerr.NotFoundKind) || swarmerr.Is(err, swarmerr.AuthKind) {
			return nil, err
		}
		return &types.ExecResult{ExitCode: 1, Stderr: err.Error()}, nil
	}
	return &result, nil
}

func toCreateMachineRequest(name string, spec types.Spec) createMachineRequest {
	cpuKind := "shared"
	if spec.Resources.Persistent {
		cpuKind = "dedicated"
	}

	req := createMachineRequest{
		Name:  name,
		Image: spec.Image,
		Guest: guestConfig{
			CPUKind:  cpuKind,
			CPUs:     int(spec.Resources.CPUCores),
			MemoryMB: spec.Resources.MemoryMiB,
		},
		Env:      spec.Env,
		PublicIP: !spec.Network.InternalOnly,
	}

	if spec.Network.Port > 0 {
		req.Services = []serviceConfig{{
			InternalPort: spec.Network.Port,
			Protocol:     "tcp",
			Ports:        []port{{Port: spec.Network.Port, Handlers: []string{"http"}}},
		}}
	}

	if spec.WorkspacePath != "" {
		m := mountFromSpec(spec.WorkspacePath, "/workspace")
		req.Mounts = append(req.Mounts, mountConfig{
			Source:      m.Source,
			Destination: m.Destination,
		})
	}

	if spec.Auth != nil && spec.Auth.PasswordEnv != "" {
		if pw := os.Getenv(spec.Auth.PasswordEnv); pw != "" {
			if req.Env == nil {
				req.Env = make(map[string]string)
			}
			req.Env["INSTANCE_PASSWORD"] = pw
		}
	}

	return req
}

// mountFromSpec builds the OCI mount representation shared with
// containerdriver before this package translates it into the platform's
// own mount fields.
func mountFromSpec(source, destination string) specs.Mount {
	return specs.Mount{Source: source, Destination: destination, Options: []string{"rw"}}
}

func machineNetworkFacts(m *machineResponse, internalPort int) *types.NetworkFacts {
	facts := &types.NetworkFacts{InternalIP: m.PrivateIP, ExternalIP: m.PublicIP}
	if internalPort <= 0 {
		return facts
	}
	facts.Ports = append(facts.Ports, types.PortMapping{Internal: internalPort, Protocol: "tcp"})
	if m.PublicIP != "" {
		facts.URLs = append(facts.URLs, fmt.Sprintf("http://%s:%d", m.PublicIP, internalPort))
	}
	return facts
}
