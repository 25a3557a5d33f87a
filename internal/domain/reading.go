package domain

import "time"

// Status tags the quality of a single channel value.
type Status string

const (
	StatusOK    Status = "ok"
	StatusStale Status = "stale"
	StatusError Status = "error"
)

// Reading is one sample of one analog input channel at one instant.
type Reading struct {
	Timestamp time.Time `json:"ts"`
	ChannelID int       `json:"channel_id"`
	Value     float64   `json:"value"`
	Status    Status    `json:"status"`
}

// OK reports whether the value can be trusted.
func (r Reading) OK() bool { return r.Status == StatusOK }

// Batch is the full set of readings produced by one successful poll cycle.
// Readings are ordered as the channels are configured and share one timestamp.
//
// A failed cycle travels the same path as a Batch with no readings and
// Failure set, so the structured log keeps call order.
type Batch struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Readings  []Reading `json:"readings"`
	Failure   error     `json:"-"`
}

// Clone returns a deep copy so downstream consumers never share backing arrays.
func (b Batch) Clone() Batch {
	out := b
	if b.Readings != nil {
		out.Readings = make([]Reading, len(b.Readings))
		copy(out.Readings, b.Readings)
	}
	return out
}

// Failed reports whether the batch records a failed cycle.
func (b Batch) Failed() bool { return b.Failure != nil }

// Len returns the number of readings in the batch.
func (b Batch) Len() int { return len(b.Readings) }
