package clouddriver

import (
	"time"

	"github.com/cuemby/swarmd/pkg/types"
)

// The following types mirror the subset of the platform's wire schema this
// driver depends on. Unknown response fields are dropped by
// encoding/json; this driver never round-trips a platform response back
// to the platform, so that's not a concern the way it is for the registry.

type applicationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createApplicationRequest struct {
	Name string `json:"name"`
}

type guestConfig struct {
	CPUKind  string `json:"cpu_kind"`
	CPUs     int    `json:"cpus"`
	MemoryMB int64  `json:"memory_mb"`
}

type serviceConfig struct {
	InternalPort int    `json:"internal_port"`
	Protocol     string `json:"protocol"`
	Ports        []port `json:"ports"`
}

type port struct {
	Port     int    `json:"port"`
	Handlers []string `json:"handlers,omitempty"`
}

type mountConfig struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	ReadOnly    bool   `json:"read_only,omitempty"`
}

type createMachineRequest struct {
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Guest    guestConfig     `json:"guest"`
	Env      map[string]string `json:"env,omitempty"`
	Services []serviceConfig `json:"services,omitempty"`
	Mounts   []mountConfig   `json:"mounts,omitempty"`
	PublicIP bool            `json:"public_ip,omitempty"`
}

type machineResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	PrivateIP string    `json:"private_ip"`
	PublicIP  string    `json:"public_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Image     string    `json:"image"`
	Env       map[string]string `json:"env,omitempty"`
	Guest     guestConfig `json:"guest"`
}

// machineState maps the platform's machine state string to the neutral
// InstanceStatus.
func machineState(raw string) types.InstanceStatus {
	switch raw {
	case "started":
		return types.InstanceStatusRunning
	case "stopped", "created":
		return types.InstanceStatusStopped
	case "starting", "creating":
		return types.InstanceStatusCreating
	case "destroying", "destroyed":
		return types.InstanceStatusDeleted
	default:
		return types.InstanceStatusFailed
	}
}
