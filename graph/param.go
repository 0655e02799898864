package graph

import (
	"math"
	"sort"
)

type eventKind int

const (
	setValue eventKind = iota
	linearRamp
)

type paramEvent struct {
	kind  eventKind
	value float64
	time  float64
}

// Param is an automatable parameter. Events are kept sorted by time; a linear
// ramp interpolates from the preceding event (or the default value at time 0)
// to its own value.
type Param struct {
	value    float64
	min, max float64
	events   []paramEvent
}

// NewParam creates a parameter with a default value and a nominal range
// applied to every evaluated value.
func NewParam(value, min, max float64) *Param {
	return &Param{value: value, min: min, max: max}
}

// Value returns the default value used before the first event.
func (p *Param) Value() float64 {
	return p.value
}

// SetValue changes the default value.
func (p *Param) SetValue(v float64) {
	p.value = v
}

// SetValueAtTime schedules a step to v at time t (seconds).
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: setValue, value: v, time: t})
}

// LinearRampToValueAtTime schedules a linear ramp ending at v at time t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: linearRamp, value: v, time: t})
}

// Automated reports whether any events are scheduled.
func (p *Param) Automated() bool {
	return len(p.events) > 0
}

// ValueAt evaluates the automation curve at time t.
func (p *Param) ValueAt(t float64) float64 {
	if len(p.events) == 0 {
		return p.clamp(p.value)
	}
	// idx is the last event at or before t.
	idx := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > t }) - 1
	if idx+1 < len(p.events) && p.events[idx+1].kind == linearRamp {
		next := p.events[idx+1]
		t0, v0 := 0.0, p.value
		if idx >= 0 {
			t0, v0 = p.events[idx].time, p.events[idx].value
		}
		if next.time <= t0 {
			return p.clamp(next.value)
		}
		frac := (t - t0) / (next.time - t0)
		if frac < 0 {
			frac = 0
		}
		return p.clamp(v0 + (next.value-v0)*frac)
	}
	if idx < 0 {
		return p.clamp(p.value)
	}
	return p.clamp(p.events[idx].value)
}

func (p *Param) insert(ev paramEvent) {
	if math.IsNaN(ev.time) || math.IsNaN(ev.value) {
		return
	}
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > ev.time })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

func (p *Param) clamp(v float64) float64 {
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}
