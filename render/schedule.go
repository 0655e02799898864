package render

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/tempo"
)

// Decision is the scheduler's verdict for one clip. When Play is false the
// clip is skipped and the other fields are zero. Times are in seconds; When
// is relative to the start of the render.
type Decision struct {
	Play     bool
	When     float64
	Offset   float64
	Duration float64
}

// ClipRef identifies a clip by position in the project.
type ClipRef struct {
	Track int
	Clip  int
}

// Scheduled pairs a clip with its decision.
type Scheduled struct {
	ClipRef
	Name string
	Decision
}

// ScheduleClip decides when and how a clip plays in a render starting at
// origin seconds. The decision depends only on the clip's own fields.
func ScheduleClip(clip project.Clip, tmap tempo.Map, origin float64) Decision {
	if clip.End < clip.Start {
		return Decision{}
	}
	bufferStart := tmap.MeasureToTime(clip.Measure + clip.Start - 1)
	start := tmap.MeasureToTime(clip.Measure)
	end := tmap.MeasureToTime(clip.Measure + clip.End - clip.Start)
	if !finite(bufferStart) || !finite(start) || !finite(end) || !finite(origin) {
		return Decision{}
	}

	// Distance from the start of the sound to the first audible sample.
	offset := bufferStart - start
	if offset < 0 {
		offset = 0
	}
	duration := end - start

	var d Decision
	switch {
	case origin >= end:
		return Decision{}
	case origin >= start:
		elapsed := origin - start
		d = Decision{When: 0, Offset: offset + elapsed, Duration: duration - elapsed}
	default:
		d = Decision{When: start - origin, Offset: offset, Duration: duration}
	}
	if !(d.Duration > 0) {
		return Decision{}
	}
	d.Play = true
	return d
}

// ScheduleTrack schedules every clip on a track, in clip order.
func ScheduleTrack(track project.Track, trackIndex int, tmap tempo.Map, origin float64) []Scheduled {
	out := make([]Scheduled, len(track.Clips))
	for i, c := range track.Clips {
		out[i] = Scheduled{
			ClipRef:  ClipRef{Track: trackIndex, Clip: i},
			Name:     c.Name,
			Decision: ScheduleClip(c, tmap, origin),
		}
	}
	return out
}

// playOrder returns the playing entries sorted by their decision and clip
// fields, so the mix sums sources in the same order however the clips are
// arranged in the track.
func playOrder(track project.Track, sched []Scheduled) []Scheduled {
	var out []Scheduled
	for _, s := range sched {
		if s.Play {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.When != b.When {
			return a.When < b.When
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		if a.Duration != b.Duration {
			return a.Duration < b.Duration
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		ca, cb := track.Clips[a.Clip], track.Clips[b.Clip]
		if ca.Measure != cb.Measure {
			return ca.Measure < cb.Measure
		}
		return ca.Start < cb.Start
	})
	return out
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
