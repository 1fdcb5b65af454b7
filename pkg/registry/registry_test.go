package registry

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/swarmd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstance(id, name, kind string, status types.InstanceStatus) *types.Instance {
	now := time.Now()
	return &types.Instance{
		ID:            id,
		Name:          name,
		ProviderKind:  kind,
		Status:        status,
		Metadata:      map[string]string{},
		SchemaVersion: types.CurrentSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRegisterGetRemove(t *testing.T) {
	r := New(Config{StateDir: t.TempDir()})
	require.NoError(t, r.Start())

	inst := newTestInstance("inst-1", "dev-1", "container", types.InstanceStatusRunning)
	require.NoError(t, r.Register(inst))

	got := r.Get("inst-1")
	require.NotNil(t, got)
	assert.Equal(t, "dev-1", got.Name)

	assert.Equal(t, got, r.GetByName("dev-1"))

	r.Remove("inst-1")
	assert.Nil(t, r.Get("inst-1"))
	assert.Nil(t, r.GetByName("dev-1"))
}

func TestRoundTripAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	r1 := New(Config{StateDir: dir})
	require.NoError(t, r1.Start())
	inst := newTestInstance("inst-1", "dev-1", "container", types.InstanceStatusRunning)
	inst.Extra = map[string]any{"future_field": "kept"}
	require.NoError(t, r1.Register(inst))

	r2 := New(Config{StateDir: dir, LoadStateOnStartup: true})
	require.NoError(t, r2.Start())

	got := r2.Get("inst-1")
	require.NotNil(t, got)
	assert.Equal(t, "dev-1", got.Name)
	assert.Equal(t, "kept", got.Extra["future_field"])
}

func TestLoadStateSkipsUnparseableRecords(t *testing.T) {
	dir := t.TempDir()
	r1 := New(Config{StateDir: dir})
	require.NoError(t, r1.Start())
	require.NoError(t, r1.Register(newTestInstance("good", "good", "container", types.InstanceStatusRunning)))

	require.NoError(t, os.WriteFile(dir+"/instances/bad.yaml", []byte("not: valid: yaml: ["), 0o644))

	r2 := New(Config{StateDir: dir, LoadStateOnStartup: true})
	require.NoError(t, r2.Start())

	assert.NotNil(t, r2.Get("good"))
	total, _ := r2.Count()
	assert.Equal(t, 1, total)
}

func TestListFilter(t *testing.T) {
	r := New(Config{StateDir: t.TempDir()})
	require.NoError(t, r.Start())

	// ids chosen so sorted order is a, b, c regardless of insertion order
	require.NoError(t, r.Register(newTestInstance("b", "beta", "container", types.InstanceStatusRunning)))
	require.NoError(t, r.Register(newTestInstance("a", "alpha", "cloud", types.InstanceStatusStopped)))
	require.NoError(t, r.Register(newTestInstance("c", "gamma", "container", types.InstanceStatusRunning)))

	results, err := r.List(&types.Filter{Status: []types.InstanceStatus{types.InstanceStatusRunning}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "c", results[1].ID)

	results, err = r.List(&types.Filter{NamePattern: "^BETA$"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beta", results[0].Name)

	results, err = r.List(&types.Filter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestListTags(t *testing.T) {
	r := New(Config{StateDir: t.TempDir()})
	require.NoError(t, r.Start())

	inst := newTestInstance("a", "alpha", "container", types.InstanceStatusRunning)
	inst.Metadata["env"] = "prod"
	require.NoError(t, r.Register(inst))

	other := newTestInstance("b", "beta", "container", types.InstanceStatusRunning)
	other.Metadata["env"] = "dev"
	require.NoError(t, r.Register(other))

	results, err := r.List(&types.Filter{Tags: map[string]string{"env": "prod"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestConcurrentRegisterIsSafe(t *testing.T) {
	r := New(Config{StateDir: t.TempDir()})
	require.NoError(t, r.Start())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "inst-" + string(rune('a'+n%26)) + string(rune('0'+n/26))
			_ = r.Register(newTestInstance(id, id, "container", types.InstanceStatusRunning))
		}(i)
	}
	wg.Wait()

	total, _ := r.Count()
	assert.Greater(t, total, 0)
}
