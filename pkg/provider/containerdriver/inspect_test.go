package containerdriver

import (
	"testing"

	"github.com/cuemby/swarmd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCLIStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want types.InstanceStatus
	}{
		{"running", types.InstanceStatusRunning},
		{"exited", types.InstanceStatusStopped},
		{"created", types.InstanceStatusStopped},
		{"paused", types.InstanceStatusStopped},
		{"restarting", types.InstanceStatusCreating},
		{"removing", types.InstanceStatusDeleted},
		{"dead", types.InstanceStatusFailed},
		{"some-unknown-value", types.InstanceStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, cliStatus(tt.raw))
		})
	}
}

func TestToNetworkFacts_NoBindings(t *testing.T) {
	rec := &inspectRecord{}
	rec.NetworkSettings.IPAddress = "172.17.0.2"

	facts := toNetworkFacts(rec, 8080, "localhost")
	assert.Equal(t, "172.17.0.2", facts.InternalIP)
	assert.Empty(t, facts.Ports)
	assert.Empty(t, facts.URLs)
}

func TestToNetworkFacts_WithBinding(t *testing.T) {
	rec := &inspectRecord{}
	rec.NetworkSettings.IPAddress = "172.17.0.3"
	rec.NetworkSettings.Ports = map[string][]struct {
		HostIP   string `json:"HostIp"`
		HostPort string `json:"HostPort"`
	}{
		"8080/tcp": {{HostIP: "0.0.0.0", HostPort: "32768"}},
	}

	facts := toNetworkFacts(rec, 8080, "localhost")
	if assert.Len(t, facts.Ports, 1) {
		assert.Equal(t, 8080, facts.Ports[0].Internal)
		assert.Equal(t, 32768, facts.Ports[0].External)
		assert.Equal(t, "tcp", facts.Ports[0].Protocol)
	}
	assert.Equal(t, []string{"http://localhost:32768"}, facts.URLs)
}

func TestContainerPortKey(t *testing.T) {
	assert.Equal(t, "8080/tcp", containerPortKey(8080))
}
