package health

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry is a minimal in-memory InstanceSource for monitor tests.
type fakeRegistry struct {
	mu        sync.Mutex
	instances map[string]*types.Instance
}

func newFakeRegistry(instances ...*types.Instance) *fakeRegistry {
	r := &fakeRegistry{instances: make(map[string]*types.Instance)}
	for _, i := range instances {
		r.instances[i.ID] = i
	}
	return r
}

func (r *fakeRegistry) Get(id string) *types.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances[id]
}

func (r *fakeRegistry) List(filter *types.Filter) ([]*types.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wantStatus := make(map[types.InstanceStatus]bool)
	for _, s := range filter.Status {
		wantStatus[s] = true
	}
	out := make([]*types.Instance, 0)
	for _, i := range r.instances {
		if len(wantStatus) == 0 || wantStatus[i.Status] {
			out = append(out, i)
		}
	}
	return out, nil
}

// fakeDriver implements pkg/provider.Driver with scripted Get/Exec outcomes.
type fakeDriver struct {
	mu         sync.Mutex
	getStatus  types.InstanceStatus
	execExit   int
	execErr    error
	stopCalls  int
	startCalls int
	network    *types.NetworkFacts
}

var _ provider.Driver = (*fakeDriver)(nil)

func (f *fakeDriver) Initialize(ctx context.Context) error                       { return nil }
func (f *fakeDriver) Capabilities() types.ProviderCapabilities                    { return types.ProviderCapabilities{} }
func (f *fakeDriver) Create(ctx context.Context, name string, spec types.Spec) (*types.Instance, error) {
	return nil, nil
}
func (f *fakeDriver) Get(ctx context.Context, providerInstanceID string) (*types.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Instance{ProviderInstanceID: providerInstanceID, Status: f.getStatus, Network: f.network}, nil
}
func (f *fakeDriver) List(ctx context.Context, filter *types.Filter) ([]*types.Instance, error) {
	return nil, nil
}
func (f *fakeDriver) Start(ctx context.Context, providerInstanceID string) (*types.Instance, error) {
	f.mu.Lock()
	f.startCalls++
	f.mu.Unlock()
	return nil, nil
}
func (f *fakeDriver) Stop(ctx context.Context, providerInstanceID string, force bool) (*types.Instance, error) {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	return nil, nil
}
func (f *fakeDriver) Delete(ctx context.Context, providerInstanceID string) (bool, error) {
	return true, nil
}
func (f *fakeDriver) Update(ctx context.Context, providerInstanceID string, partial types.Spec) (*types.Instance, error) {
	return nil, nil
}
func (f *fakeDriver) Logs(ctx context.Context, providerInstanceID string, opts types.LogOptions) (*types.LogBatch, error) {
	return nil, nil
}
func (f *fakeDriver) Exec(ctx context.Context, providerInstanceID string, cmd []string) (*types.ExecResult, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &types.ExecResult{ExitCode: f.execExit, Stdout: "ok", Stderr: ""}, nil
}

func newMonitorForTest(t *testing.T, reg InstanceSource, driver provider.Driver, autoRecover bool) *Monitor {
	t.Helper()
	return New(Config{
		StateDir:      t.TempDir(),
		CheckInterval: 20 * time.Millisecond,
		CheckTimeout:  50 * time.Millisecond,
		HistorySize:   3,
		AutoRecover:   autoRecover,
	}, reg, func(kind string) (provider.Driver, bool) {
		if kind != "fake" {
			return nil, false
		}
		return driver, true
	})
}

func waitForHealth(t *testing.T, m *Monitor, id string, want types.HealthStatus) *types.InstanceHealth {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h := m.Health(id); h != nil && h.Status == want {
			return h
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("instance %s never reached status %s", id, want)
	return nil
}

func TestMonitorMarksHealthyInstance(t *testing.T) {
	inst := &types.Instance{ID: "inst-1", ProviderKind: "fake", ProviderInstanceID: "p-1", Status: types.InstanceStatusRunning}
	reg := newFakeRegistry(inst)
	driver := &fakeDriver{getStatus: types.InstanceStatusRunning, execExit: 0}

	m := newMonitorForTest(t, reg, driver, false)
	require.NoError(t, m.Start())
	defer m.Stop()

	h := waitForHealth(t, m, "inst-1", types.HealthHealthy)
	assert.NotEmpty(t, h.History)
}

func TestMonitorMarksUnhealthyOnExecFailure(t *testing.T) {
	inst := &types.Instance{ID: "inst-2", ProviderKind: "fake", ProviderInstanceID: "p-2", Status: types.InstanceStatusRunning}
	reg := newFakeRegistry(inst)
	driver := &fakeDriver{getStatus: types.InstanceStatusRunning, execExit: 1}

	m := newMonitorForTest(t, reg, driver, false)
	require.NoError(t, m.Start())
	defer m.Stop()

	waitForHealth(t, m, "inst-2", types.HealthUnhealthy)
}

func TestMonitorAutoRecoverRestartsInstance(t *testing.T) {
	inst := &types.Instance{ID: "inst-3", ProviderKind: "fake", ProviderInstanceID: "p-3", Status: types.InstanceStatusRunning}
	reg := newFakeRegistry(inst)
	driver := &fakeDriver{getStatus: types.InstanceStatusRunning, execExit: 1}

	m := newMonitorForTest(t, reg, driver, true)
	require.NoError(t, m.Start())
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		driver.mu.Lock()
		calls := driver.stopCalls
		driver.mu.Unlock()
		if calls > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	driver.mu.Lock()
	defer driver.mu.Unlock()
	assert.Greater(t, driver.stopCalls, 0)
	assert.Greater(t, driver.startCalls, 0)
}

func TestMonitorStopsCheckingRemovedInstance(t *testing.T) {
	inst := &types.Instance{ID: "inst-4", ProviderKind: "fake", ProviderInstanceID: "p-4", Status: types.InstanceStatusRunning}
	reg := newFakeRegistry(inst)
	driver := &fakeDriver{getStatus: types.InstanceStatusRunning, execExit: 0}

	m := newMonitorForTest(t, reg, driver, false)
	require.NoError(t, m.Start())
	defer m.Stop()

	waitForHealth(t, m, "inst-4", types.HealthHealthy)

	reg.mu.Lock()
	delete(reg.instances, "inst-4")
	reg.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	m.mu.Lock()
	_, stillTracked := m.monitors["inst-4"]
	m.mu.Unlock()
	assert.False(t, stillTracked)
}

func TestMonitorProbeTypeTCPDialsPublishedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	inst := &types.Instance{ID: "inst-tcp", ProviderKind: "fake", ProviderInstanceID: "p-tcp", Status: types.InstanceStatusRunning}
	reg := newFakeRegistry(inst)
	driver := &fakeDriver{
		getStatus: types.InstanceStatusRunning,
		network:   &types.NetworkFacts{InternalIP: "127.0.0.1", Ports: []types.PortMapping{{Internal: port}}},
	}

	m := New(Config{
		StateDir:      t.TempDir(),
		CheckInterval: 20 * time.Millisecond,
		CheckTimeout:  500 * time.Millisecond,
		HistorySize:   3,
		ProbeType:     CheckTypeTCP,
	}, reg, func(kind string) (provider.Driver, bool) {
		if kind != "fake" {
			return nil, false
		}
		return driver, true
	})
	require.NoError(t, m.Start())
	defer m.Stop()

	waitForHealth(t, m, "inst-tcp", types.HealthHealthy)
}

func TestMonitorProbeTypeHTTPFailsClosedWithoutNetworkFacts(t *testing.T) {
	inst := &types.Instance{ID: "inst-http", ProviderKind: "fake", ProviderInstanceID: "p-http", Status: types.InstanceStatusRunning}
	reg := newFakeRegistry(inst)
	driver := &fakeDriver{getStatus: types.InstanceStatusRunning}

	m := New(Config{
		StateDir:      t.TempDir(),
		CheckInterval: 20 * time.Millisecond,
		CheckTimeout:  200 * time.Millisecond,
		HistorySize:   3,
		ProbeType:     CheckTypeHTTP,
	}, reg, func(kind string) (provider.Driver, bool) {
		if kind != "fake" {
			return nil, false
		}
		return driver, true
	})
	require.NoError(t, m.Start())
	defer m.Stop()

	h := waitForHealth(t, m, "inst-http", types.HealthUnhealthy)
	assert.Contains(t, h.Details.Message, "no published network facts")
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	b := newRingBuffer(2)
	b.Push(types.HealthEntry{Status: types.HealthHealthy})
	b.Push(types.HealthEntry{Status: types.HealthUnhealthy})
	b.Push(types.HealthEntry{Status: types.HealthRecovering})

	ordered := b.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, types.HealthRecovering, ordered[0].Status)
	assert.Equal(t, types.HealthUnhealthy, ordered[1].Status)
}
