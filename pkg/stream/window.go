package stream

import (
	"time"

	"github.com/smilemakc/ruleforge/pkg/rule"
)

// WindowKind mirrors rule.WindowKind for the streaming package's own
// configuration surface (spec.md §6 "Streaming: window_type").
type WindowKind = rule.WindowKind

const (
	Sliding  = rule.WindowSliding
	Tumbling = rule.WindowTumbling
	Session  = rule.WindowSession
)

// WindowSpec configures a StreamAlphaNode's retention policy.
type WindowSpec struct {
	Kind     WindowKind
	Duration time.Duration // sliding/tumbling duration, or session gap
}

// evict applies the window's eviction policy to buf (ordered oldest-first
// by Timestamp) as of now, returning the retained slice (spec.md §4.8
// step 2).
func (w WindowSpec) evict(buf []Event, now time.Time) []Event {
	switch w.Kind {
	case Sliding:
		cutoff := now.Add(-w.Duration)
		i := 0
		for i < len(buf) && buf[i].Timestamp.Before(cutoff) {
			i++
		}
		return buf[i:]

	case Tumbling:
		if w.Duration <= 0 {
			return buf
		}
		windowStart := now.Truncate(w.Duration)
		i := 0
		for i < len(buf) && buf[i].Timestamp.Before(windowStart) {
			i++
		}
		return buf[i:]

	case Session:
		cutoff := now.Add(-w.Duration)
		i := 0
		for i < len(buf) && buf[i].Timestamp.Before(cutoff) {
			i++
		}
		return buf[i:]
	}
	return buf
}
