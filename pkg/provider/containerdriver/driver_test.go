package containerdriver

import (
	"testing"

	"github.com/cuemby/swarmd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, DefaultCLIPath, cfg.CLIPath)
	assert.Equal(t, DefaultNetwork, cfg.Network)
	assert.Equal(t, "localhost", cfg.PublishedHost)
	assert.NotZero(t, cfg.RequestTimeout)
	assert.NotZero(t, cfg.Backoff.MaxRetries)
}

func TestNewAppliesDefaults(t *testing.T) {
	d := New(Config{CLIPath: "podman"})
	assert.Equal(t, "podman", d.cliPath)
	assert.Equal(t, DefaultNetwork, d.network)
}

func TestCreateArgv(t *testing.T) {
	d := New(Config{})
	spec := types.Spec{
		Image:         "swarmd/workspace:latest",
		WorkspacePath: "/home/dev/project",
		Env:           map[string]string{"FOO": "bar"},
		Resources:     types.ResourceRequest{CPUCores: 2, MemoryMiB: 2048},
		Network:       types.NetworkRequest{Port: 8080},
	}

	args := d.createArgv("dev-1", spec)
	assert.Contains(t, args, "--name")
	assert.Contains(t, args, "dev-1")
	assert.Contains(t, args, "swarmd/workspace:latest")
	assert.Contains(t, args, "-v")
	assert.Contains(t, args, "/home/dev/project:/workspace:rw")
}

func TestCapabilities(t *testing.T) {
	d := New(Config{})
	caps := d.Capabilities()
	assert.False(t, caps.SupportsLiveResize)
	assert.False(t, caps.SupportsSnapshotting)
	assert.False(t, caps.SupportsMultiRegion)
}

func TestEnvSliceToMap(t *testing.T) {
	m := envSliceToMap([]string{"A=1", "B=2", "MALFORMED"})
	assert.Equal(t, "1", m["A"])
	assert.Equal(t, "2", m["B"])
	assert.NotContains(t, m, "MALFORMED")

	assert.Nil(t, envSliceToMap(nil))
}
