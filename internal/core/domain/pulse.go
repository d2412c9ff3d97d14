package domain

import "time"

// PulsePeriod is the heartbeat interval of open job instances.
const PulsePeriod = 1 * time.Second

// DefaultPulseTolerance is how stale a pulse may be before its instance
// counts as dead. Twenty periods absorbs scheduler hiccups and short GC
// pauses without letting crashed jobs linger.
const DefaultPulseTolerance = 20 * PulsePeriod

// Pulse is the last recorded heartbeat of one open job instance.
type Pulse struct {
	// InstanceID identifies the open instance beating.
	InstanceID string

	// JobID is the job the instance belongs to.
	JobID string

	// BeatAt is the time of the last heartbeat.
	BeatAt time.Time
}

// Age returns how long ago the pulse last beat, measured against now.
func (p *Pulse) Age(now time.Time) time.Duration {
	return now.Sub(p.BeatAt)
}

// Dead reports whether the pulse is older than the tolerance.
func (p *Pulse) Dead(now time.Time, tolerance time.Duration) bool {
	return p.Age(now) > tolerance
}

// DeadInstance describes an instance judged dead during cleanup, with
// enough context for the operator report.
type DeadInstance struct {
	Instance OpenInstance
	LastBeat time.Time
}
