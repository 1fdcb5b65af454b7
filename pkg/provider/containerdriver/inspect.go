package containerdriver

import (
	"time"

	"github.com/cuemby/swarmd/pkg/types"
)

// inspectRecord mirrors the subset of `<cli> inspect <id>` JSON output this
// driver depends on. The real CLI emits many more fields; unknown fields
// are simply dropped by json.Unmarshal; we never write this record back,
// so round-tripping isn't a concern the way it is for registry records.
type inspectRecord struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	State struct {
		Status     string `json:"Status"`
		Running    bool   `json:"Running"`
		Restarting bool   `json:"Restarting"`
		Dead       bool   `json:"Dead"`
		ExitCode   int    `json:"ExitCode"`
		StartedAt  string `json:"StartedAt"`
	} `json:"State"`
	Config struct {
		Image string   `json:"Image"`
		Env   []string `json:"Env"`
	} `json:"Config"`
	NetworkSettings struct {
		IPAddress string `json:"IPAddress"`
		Ports     map[string][]struct {
			HostIP   string `json:"HostIp"`
			HostPort string `json:"HostPort"`
		} `json:"Ports"`
	} `json:"NetworkSettings"`
}

// cliStatus maps a raw CLI status string to the neutral InstanceStatus per
// the documented container-driver status table.
func cliStatus(raw string) types.InstanceStatus {
	switch raw {
	case "running":
		return types.InstanceStatusRunning
	case "exited", "created", "paused":
		return types.InstanceStatusStopped
	case "restarting":
		return types.InstanceStatusCreating
	case "removing":
		return types.InstanceStatusDeleted
	case "dead":
		return types.InstanceStatusFailed
	default:
		return types.InstanceStatusFailed
	}
}

// toNetworkFacts translates the inspect record's network settings into the
// neutral NetworkFacts shape, given the internal port the spec requested
// and the host bind address used for the published URL.
func toNetworkFacts(rec *inspectRecord, internalPort int, publishedHost string) *types.NetworkFacts {
	facts := &types.NetworkFacts{InternalIP: rec.NetworkSettings.IPAddress}

	key := containerPortKey(internalPort)
	bindings := rec.NetworkSettings.Ports[key]
	if len(bindings) == 0 {
		return facts
	}

	for _, b := range bindings {
		external := 0
		if n, err := parsePort(b.HostPort); err == nil {
			external = n
		}
		facts.Ports = append(facts.Ports, types.PortMapping{
			Internal: internalPort,
			External: external,
			Protocol: "tcp",
		})
		if external != 0 {
			facts.URLs = append(facts.URLs, "http://"+publishedHost+":"+b.HostPort)
		}
	}
	return facts
}

func startedAt(rec *inspectRecord) time.Time {
	t, err := time.Parse(time.RFC3339Nano, rec.State.StartedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
