// Package render schedules a project's clips against its tempo map, wires
// every track into an offline render graph and mixes it down to a buffer,
// WAV or MP3.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/cwbudde/algo-mixdown/effects"
	"github.com/cwbudde/algo-mixdown/graph"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

// ErrNilProject reports a render call without a project.
var ErrNilProject = errors.New("nil project")

// Renderer mixes projects down offline. It holds only configuration and is
// safe for concurrent use; every render builds its own graph.
type Renderer struct {
	opts    Options
	log     logging.LeveledLogger
	effects effects.Builder
}

// TrackLevels is the metered output of one non-master track.
type TrackLevels struct {
	Track int
	graph.Levels
}

// Result is a rendered mixdown plus what the scheduler decided for every
// clip on the rendered tracks.
type Result struct {
	Buffer    *sound.Buffer
	RenderID  string
	Scheduled []Scheduled
	// Omitted lists clips that were due to play but had no usable audio.
	Omitted []ClipRef
	Tracks  []TrackLevels
}

// New creates a renderer.
func New(opts Options) (*Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.LoggerFactory == nil {
		opts.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if opts.MP3.NewEncoder == nil {
		opts.MP3.NewEncoder = defaultEncoder
	}
	b := opts.EffectBuilder
	if b == nil {
		b = effects.Default(opts.LoggerFactory)
	}
	return &Renderer{
		opts:    opts,
		log:     opts.LoggerFactory.NewLogger("renderer"),
		effects: b,
	}, nil
}

// Options returns the renderer's settings.
func (r *Renderer) Options() Options {
	return r.opts
}

// frames converts a length in seconds to a frame count at the render rate.
func (r *Renderer) frames(duration float64) (int, error) {
	if !finite(duration) || duration < 0 {
		return 0, fmt.Errorf("%w: duration %g s", graph.ErrInvalidLength, duration)
	}
	n := math.Round(duration * float64(r.opts.SampleRate))
	if n > graph.MaxFrames {
		return 0, fmt.Errorf("%w: duration %g s", graph.ErrInvalidLength, duration)
	}
	return int(n), nil
}

// RenderBuffer mixes every track but the last (the metronome) into a buffer
// of tmap.MeasureToTime(p.Length+1) seconds. A nil tmap is built from the
// project's tempo automation. The project is only read.
func (r *Renderer) RenderBuffer(ctx context.Context, p *project.Project, tmap tempo.Map) (*Result, error) {
	if p == nil {
		return nil, ErrNilProject
	}
	if tmap == nil {
		tmap = tempo.New(p)
	}
	res := &Result{RenderID: uuid.NewString()}
	r.log.Debugf("[%s] begin rendering result to buffer", res.RenderID)

	n, err := r.frames(tmap.MeasureToTime(p.Length + 1))
	if err != nil {
		return nil, err
	}
	gctx, err := graph.NewContext(r.opts.Channels, n, r.opts.SampleRate)
	if err != nil {
		return nil, err
	}

	mix := gctx.NewGain()
	master := gctx.NewGain()
	if err := gctx.Connect(mix, gctx.Destination()); err != nil {
		return nil, err
	}

	type tap struct {
		track int
		node  *graph.Analyser
	}
	var taps []tap
	for _, ti := range p.RenderableTracks() {
		a, err := r.assembleTrack(gctx, p, ti, tmap, mix, master, res)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", ti, err)
		}
		if ti != 0 {
			taps = append(taps, tap{track: ti, node: a})
		}
	}

	buf, err := gctx.StartRendering(ctx)
	if err != nil {
		return nil, err
	}
	res.Buffer = buf
	for _, t := range taps {
		res.Tracks = append(res.Tracks, TrackLevels{Track: t.track, Levels: t.node.Levels()})
	}
	r.log.Debugf("[%s] render to buffer completed: %d frames, %d clips scheduled, %d omitted",
		res.RenderID, buf.Frames(), countPlaying(res.Scheduled), len(res.Omitted))
	return res, nil
}

// assembleTrack wires one track: its clips into a unity track gain, then the
// gain into the effect chain or directly onward. Track 0 also receives the
// master accumulator through the limiter.
func (r *Renderer) assembleTrack(gctx *graph.Context, p *project.Project, ti int, tmap tempo.Map, mix, master graph.Node, res *Result) (*graph.Analyser, error) {
	track := &p.Tracks[ti]
	tap := gctx.NewAnalyser()
	trackGain := gctx.NewGain()

	sched := ScheduleTrack(*track, ti, tmap, r.opts.Origin)
	res.Scheduled = append(res.Scheduled, sched...)
	for _, s := range playOrder(*track, sched) {
		clip := track.Clips[s.Clip]
		r.log.Tracef("[%s] track %d clip %d %q: when=%.4f offset=%.4f duration=%.4f",
			res.RenderID, ti, s.Clip, s.Name, s.When, s.Offset, s.Duration)
		if clip.Audio == nil || clip.Audio.Frames() == 0 {
			res.Omitted = append(res.Omitted, s.ClipRef)
			continue
		}
		src := gctx.NewBufferSource(clip.Audio)
		if err := src.Start(s.When, s.Offset, s.Duration); err != nil {
			r.log.Warnf("[%s] track %d clip %d %q not scheduled: %v", res.RenderID, ti, s.Clip, s.Name, err)
			res.Omitted = append(res.Omitted, s.ClipRef)
			continue
		}
		if err := gctx.Connect(src, trackGain); err != nil {
			return nil, err
		}
	}

	chain, err := r.effects.Build(effects.Input{
		Context:    gctx,
		Track:      track,
		TrackIndex: ti,
		TempoMap:   tmap,
		Origin:     r.opts.Origin,
		Mix:        mix,
		Master:     master,
		Tap:        tap,
	})
	if err != nil {
		r.log.Warnf("[%s] track %d: effects skipped: %v", res.RenderID, ti, err)
		chain = effects.NoEffects{}
	}

	if ti == 0 {
		lim := r.newLimiter(gctx)
		if err := gctx.Connect(master, lim); err != nil {
			return nil, err
		}
		if err := gctx.Connect(lim, trackGain); err != nil {
			return nil, err
		}
	}

	switch c := chain.(type) {
	case effects.Chain:
		err = gctx.Connect(trackGain, c.Entry)
	case effects.NoEffects:
		if ti == 0 {
			err = gctx.Connect(trackGain, mix)
		} else if err = gctx.Connect(trackGain, tap); err == nil {
			err = gctx.Connect(tap, master)
		}
	default:
		panic(fmt.Sprintf("render: unknown effect chain %T", chain))
	}
	return tap, err
}

func (r *Renderer) newLimiter(gctx *graph.Context) *graph.Compressor {
	l := r.opts.Limiter
	c := gctx.NewCompressor()
	c.Threshold.SetValue(l.Threshold)
	c.Knee.SetValue(l.Knee)
	c.Ratio.SetValue(l.Ratio)
	c.Attack.SetValue(l.Attack)
	c.Release.SetValue(l.Release)
	return c
}

func countPlaying(s []Scheduled) int {
	n := 0
	for _, d := range s {
		if d.Play {
			n++
		}
	}
	return n
}
