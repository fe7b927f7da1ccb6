// Package metrics provides lock-free in-process counters for the twogate
// engine. Counters are exported to callers only as immutable snapshots;
// exposing them to an external metrics system is the caller's concern.
package metrics

import "sync/atomic"

// MetricID identifies one counter.
type MetricID uint8

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterRejected
	MetricPasswordVerified
	MetricLoginFailure
	MetricLoginLocked
	MetricLockoutTriggered
	MetricRateLimited
	MetricOTPSuccess
	MetricOTPFailure
	MetricOTPReplay
	MetricSessionCreated
	MetricLogout

	// MetricIDCount is the number of defined counters.
	MetricIDCount
)

// Config controls counter behavior.
type Config struct {
	Enabled bool
}

// Metrics is a fixed array of atomic counters. The zero value is unusable;
// construct through New.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// New creates a Metrics instance. When cfg.Enabled is false, Inc is a no-op
// and Snapshot returns an empty map.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter. Out-of-range IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() Snapshot {
	out := Snapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil || !m.enabled {
		return out
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		out.Counters[id] = m.counters[id].Load()
	}
	return out
}
