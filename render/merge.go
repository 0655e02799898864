package render

import (
	"context"
	"sort"

	"github.com/cwbudde/algo-mixdown/graph"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

// MergeLength returns the preview length in measures for a set of clips:
// the largest measure + start - end, and never below zero.
func MergeLength(clips []project.Clip) float64 {
	length := 0.0
	for _, c := range clips {
		if l := c.Measure + (c.Start - c.End); l > length {
			length = l
		}
	}
	return length
}

// MergeClips renders a flat set of clips into one buffer for auditioning,
// sized by MergeLength. There is no track gain, limiter or effect chain.
func (r *Renderer) MergeClips(ctx context.Context, clips []project.Clip, tmap tempo.Map) (*sound.Buffer, error) {
	return r.MergeClipsFor(ctx, clips, tmap, MergeLength(clips))
}

// MergeClipsFor is MergeClips with an explicit length in measures. Each clip
// starts at T(measure) + T(start) and stops at T(measure) + T(end) - T(start);
// clips whose end precedes their start are skipped.
func (r *Renderer) MergeClipsFor(ctx context.Context, clips []project.Clip, tmap tempo.Map, length float64) (*sound.Buffer, error) {
	r.log.Debug("merging clips")
	if tmap == nil {
		tmap = tempo.Constant(tempo.DefaultBPM)
	}
	n, err := r.frames(tmap.MeasureToTime(length + 1))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return sound.NewBuffer(r.opts.Channels, 0, r.opts.SampleRate), nil
	}
	gctx, err := graph.NewContext(r.opts.Channels, n, r.opts.SampleRate)
	if err != nil {
		return nil, err
	}
	mix := gctx.NewGain()
	if err := gctx.Connect(mix, gctx.Destination()); err != nil {
		return nil, err
	}

	type cue struct {
		name        string
		audio       *sound.Buffer
		start, stop float64
	}
	var cues []cue
	for _, c := range clips {
		if c.Audio == nil {
			continue
		}
		at := tmap.MeasureToTime(c.Measure)
		startOffset := tmap.MeasureToTime(c.Start)
		endOffset := tmap.MeasureToTime(c.End)
		if endOffset < startOffset || !finite(at+startOffset) || !finite(endOffset) {
			continue
		}
		cues = append(cues, cue{name: c.Name, audio: c.Audio, start: at + startOffset, stop: at + (endOffset - startOffset)})
	}
	sort.SliceStable(cues, func(i, j int) bool {
		if cues[i].start != cues[j].start {
			return cues[i].start < cues[j].start
		}
		if cues[i].stop != cues[j].stop {
			return cues[i].stop < cues[j].stop
		}
		return cues[i].name < cues[j].name
	})

	for _, c := range cues {
		src := gctx.NewBufferSource(c.audio)
		if err := src.Start(c.start, 0, -1); err != nil {
			r.log.Warnf("merge: clip %q not scheduled: %v", c.name, err)
			continue
		}
		src.Stop(c.stop)
		if err := gctx.Connect(src, mix); err != nil {
			return nil, err
		}
	}

	buf, err := gctx.StartRendering(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Debug("merged clips")
	return buf, nil
}
