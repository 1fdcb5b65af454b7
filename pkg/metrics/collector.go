package metrics

import (
	"time"

	"github.com/cuemby/swarmd/pkg/types"
)

// InstanceCounter is the subset of pkg/registry.Registry the collector
// needs. Kept as a local interface (rather than importing pkg/registry
// directly) since pkg/registry itself depends on this package for
// RegistryFlushDuration.
type InstanceCounter interface {
	Count() (total int, byKind map[string]int)
	List(filter *types.Filter) ([]*types.Instance, error)
}

// HealthSource is the subset of pkg/health.Monitor the collector needs.
type HealthSource interface {
	Health(instanceID string) *types.InstanceHealth
}

// Collector periodically samples registry and health state into gauge
// metrics; counters and histograms are updated inline by their owning
// components as events occur.
type Collector struct {
	registry InstanceCounter
	health   HealthSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(registry InstanceCounter, health HealthSource) *Collector {
	return &Collector{
		registry: registry,
		health:   health,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic collection.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectInstanceMetrics()
}

func (c *Collector) collectInstanceMetrics() {
	all, err := c.registry.List(&types.Filter{})
	if err != nil {
		return
	}

	counts := make(map[[2]string]int) // [provider_kind, status]
	for _, inst := range all {
		key := [2]string{inst.ProviderKind, string(inst.Status)}
		counts[key]++
	}
	for key, count := range counts {
		InstancesTotal.WithLabelValues(key[0], key[1]).Set(float64(count))
	}

	if c.health == nil {
		return
	}
	for _, inst := range all {
		h := c.health.Health(inst.ID)
		if h == nil {
			continue
		}
		for _, s := range []types.HealthStatus{types.HealthHealthy, types.HealthUnhealthy, types.HealthDegraded, types.HealthRecovering, types.HealthUnknown} {
			InstanceHealthStatus.WithLabelValues(inst.ID, string(s)).Set(0)
		}
		InstanceHealthStatus.WithLabelValues(inst.ID, string(h.Status)).Set(1)
	}
}
