package tempo

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-mixdown/project"
)

const (
	// DefaultBPM applies when the project carries no tempo automation.
	DefaultBPM = 120.0
	// BeatsPerMeasure is fixed at 4/4.
	BeatsPerMeasure = 4.0

	minBPM = 1.0
	maxBPM = 1000.0
)

// EffectKey is the automation key holding the project tempo on track 0.
var EffectKey = project.EffectKey("TEMPO", "TEMPO")

// Map converts 1-based measure positions to elapsed seconds.
type Map interface {
	MeasureToTime(measure float64) float64
}

type segment struct {
	start, end float64 // measures; end may be +Inf
	from, to   float64 // bpm at start and end
	t0         float64 // seconds at start
}

// TempoMap is a piecewise-constant / piecewise-linear tempo curve. It is
// immutable once built and safe for concurrent use.
type TempoMap struct {
	segments []segment
}

// Constant returns a map with a single fixed tempo.
func Constant(bpm float64) *TempoMap {
	bpm = clampBPM(bpm)
	return &TempoMap{segments: []segment{{start: 1, end: math.Inf(1), from: bpm, to: bpm}}}
}

// New builds the tempo map from the TEMPO automation on the project's first
// track. Tempo before the first point equals that point's start value;
// between points the last reached tempo holds.
func New(p *project.Project) *TempoMap {
	if p == nil || len(p.Tracks) == 0 {
		return Constant(DefaultBPM)
	}
	eff, ok := p.Tracks[0].Effects[EffectKey]
	if !ok || len(eff.Ranges) == 0 {
		return Constant(DefaultBPM)
	}
	return FromRanges(eff.Ranges)
}

// FromRanges builds a map from tempo automation ranges.
func FromRanges(ranges []project.EffectRange) *TempoMap {
	if len(ranges) == 0 {
		return Constant(DefaultBPM)
	}
	rs := append([]project.EffectRange(nil), ranges...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].StartMeasure < rs[j].StartMeasure })

	var segs []segment
	pos := 1.0
	cur := clampBPM(rs[0].StartValue)
	for _, r := range rs {
		start := math.Max(r.StartMeasure, pos)
		if start > pos {
			segs = append(segs, segment{start: pos, end: start, from: cur, to: cur})
			pos = start
		}
		v0 := clampBPM(r.StartValue)
		if r.EndMeasure > start {
			v1 := clampBPM(r.EndValue)
			segs = append(segs, segment{start: start, end: r.EndMeasure, from: v0, to: v1})
			pos = r.EndMeasure
			cur = v1
			continue
		}
		cur = v0
	}
	segs = append(segs, segment{start: pos, end: math.Inf(1), from: cur, to: cur})

	t := 0.0
	for i := range segs {
		segs[i].t0 = t
		if !math.IsInf(segs[i].end, 1) {
			t += segs[i].elapsed(segs[i].end)
		}
	}
	return &TempoMap{segments: segs}
}

// MeasureToTime returns seconds elapsed from measure 1 to measure.
func (m *TempoMap) MeasureToTime(measure float64) float64 {
	first := m.segments[0]
	if measure <= first.start {
		return (measure - first.start) * secondsPerMeasure(first.from)
	}
	i := sort.Search(len(m.segments), func(i int) bool { return m.segments[i].end > measure })
	if i == len(m.segments) {
		i = len(m.segments) - 1
	}
	s := m.segments[i]
	return s.t0 + s.elapsed(measure)
}

// TempoAt returns the tempo in BPM at measure.
func (m *TempoMap) TempoAt(measure float64) float64 {
	for _, s := range m.segments {
		if measure < s.end {
			if measure <= s.start || s.from == s.to {
				return s.from
			}
			return s.from + (s.to-s.from)*(measure-s.start)/(s.end-s.start)
		}
	}
	return m.segments[len(m.segments)-1].to
}

// elapsed integrates 60/bpm per beat from s.start to x.
func (s segment) elapsed(x float64) float64 {
	dm := x - s.start
	if dm <= 0 {
		return 0
	}
	if s.from == s.to || math.IsInf(s.end, 1) {
		return dm * secondsPerMeasure(s.from)
	}
	slope := (s.to - s.from) / (s.end - s.start)
	bpmAtX := s.from + slope*dm
	return BeatsPerMeasure * 60 / slope * math.Log(bpmAtX/s.from)
}

func secondsPerMeasure(bpm float64) float64 {
	return BeatsPerMeasure * 60 / bpm
}

func clampBPM(bpm float64) float64 {
	if math.IsNaN(bpm) || bpm < minBPM {
		return minBPM
	}
	if bpm > maxBPM {
		return maxBPM
	}
	return bpm
}
