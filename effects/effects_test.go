package effects

import (
	"context"
	"math"
	"testing"

	"github.com/cwbudde/algo-mixdown/graph"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

const testRate = 8000

type rig struct {
	ctx         *graph.Context
	mix, master *graph.Gain
	tap         *graph.Analyser
	source      *graph.BufferSource
	trackGain   *graph.Gain
}

func newRig(t *testing.T, channels int, seconds float64, level float32) *rig {
	t.Helper()
	frames := int(seconds * testRate)
	c, err := graph.NewContext(channels, frames, testRate)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	buf := sound.NewBuffer(channels, frames, testRate)
	for ch := range buf.Channels {
		for i := range buf.Channels[ch] {
			buf.Channels[ch][i] = level
		}
	}
	r := &rig{ctx: c, mix: c.NewGain(), master: c.NewGain(), tap: c.NewAnalyser(), trackGain: c.NewGain()}
	r.source = c.NewBufferSource(buf)
	if err := r.source.Start(0, 0, -1); err != nil {
		t.Fatal(err)
	}
	mustConnect(t, c, r.source, r.trackGain)
	mustConnect(t, c, r.mix, c.Destination())
	return r
}

func (r *rig) input(track *project.Track, index int) Input {
	return Input{
		Context:    r.ctx,
		Track:      track,
		TrackIndex: index,
		TempoMap:   tempo.Constant(120),
		Mix:        r.mix,
		Master:     r.master,
		Tap:        r.tap,
	}
}

func mustConnect(t *testing.T, c *graph.Context, src, dst graph.Node) {
	t.Helper()
	if err := c.Connect(src, dst); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func (r *rig) build(t *testing.T, track *project.Track, index int) EffectChain {
	t.Helper()
	chain, err := Default(nil).Build(r.input(track, index))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c, ok := chain.(Chain); ok {
		mustConnect(t, r.ctx, r.trackGain, c.Entry)
	}
	return chain
}

func (r *rig) render(t *testing.T) *sound.Buffer {
	t.Helper()
	out, err := r.ctx.StartRendering(context.Background())
	if err != nil {
		t.Fatalf("StartRendering: %v", err)
	}
	return out
}

func flat(name, param string, value float64) project.Effect {
	return project.Effect{Ranges: []project.EffectRange{{
		Name: name, Parameter: param, StartMeasure: 1, EndMeasure: 1, StartValue: value, EndValue: value,
	}}}
}

func TestNoEffects(t *testing.T) {
	r := newRig(t, 2, 0.1, 1)
	cases := map[string]*project.Track{
		"empty":    {},
		"tempo":    {Effects: map[string]project.Effect{"TEMPO-TEMPO": flat("TEMPO", "TEMPO", 90)}},
		"unknown":  {Effects: map[string]project.Effect{"WARBLE-DEPTH": flat("WARBLE", "DEPTH", 1)}},
		"bypassed": {Effects: map[string]project.Effect{"VOLUME-GAIN": {Bypass: true}}},
	}
	for name, tr := range cases {
		chain, err := Default(nil).Build(r.input(tr, 1))
		if err != nil {
			t.Fatalf("%s: Build: %v", name, err)
		}
		if _, ok := chain.(NoEffects); !ok {
			t.Fatalf("%s: expected NoEffects, got %T", name, chain)
		}
	}
}

func TestBuildRejectsIncompleteInput(t *testing.T) {
	r := newRig(t, 1, 0.1, 1)
	in := r.input(&project.Track{}, 2)
	in.Tap = nil
	if _, err := Default(nil).Build(in); err == nil {
		t.Fatal("expected error without a tap for a non-master track")
	}
}

func TestVolumeOnMasterTerminatesAtMix(t *testing.T) {
	r := newRig(t, 2, 0.1, 1)
	tr := &project.Track{Effects: map[string]project.Effect{"VOLUME-GAIN": flat("VOLUME", "GAIN", -6)}}
	chain := r.build(t, tr, 0)
	c, ok := chain.(Chain)
	if !ok {
		t.Fatalf("expected Chain, got %T", chain)
	}
	if c.Entry != c.Exit {
		t.Fatal("single effect must be both entry and exit")
	}
	out := r.render(t)
	want := math.Pow(10, -6.0/20)
	if got := float64(out.Channels[0][100]); math.Abs(got-want) > 5e-3 {
		t.Fatalf("expected %f, got %f", want, got)
	}
	if l := r.tap.Levels(); l.Peak[0] != 0 {
		t.Fatal("master track must not pass through the tap")
	}
}

func TestNonMasterTrackReachesMasterThroughTap(t *testing.T) {
	r := newRig(t, 2, 0.1, 0.5)
	mustConnect(t, r.ctx, r.master, r.mix)
	tr := &project.Track{Effects: map[string]project.Effect{"PAN-LEFT_RIGHT": flat("PAN", "LEFT_RIGHT", 100)}}
	r.build(t, tr, 1)
	out := r.render(t)
	if l := r.tap.Levels(); l.Peak[0] == 0 && l.Peak[1] == 0 {
		t.Fatal("expected the tap to see the track")
	}
	// Hard right: left folds into right.
	if out.Channels[0][10] > 1e-6 || math.Abs(float64(out.Channels[1][10])-1) > 1e-6 {
		t.Fatalf("unexpected pan result L=%f R=%f", out.Channels[0][10], out.Channels[1][10])
	}
}

func TestAutomationFollowsTempoAndOrigin(t *testing.T) {
	r := newRig(t, 1, 2, 1)
	tr := &project.Track{Effects: map[string]project.Effect{
		"VOLUME-GAIN": {Ranges: []project.EffectRange{
			// At 120 BPM a measure is 2 s: measures 1.5 to 2 span 1 s to 2 s.
			{Name: "VOLUME", Parameter: "GAIN", StartMeasure: 1.5, EndMeasure: 2, StartValue: 0, EndValue: -60},
		}},
	}}
	in := r.input(tr, 0)
	in.Origin = 1
	chain, err := Default(nil).Build(in)
	if err != nil {
		t.Fatal(err)
	}
	mustConnect(t, r.ctx, r.trackGain, chain.(Chain).Entry)
	out := r.render(t)
	if v := out.Channels[0][0]; math.Abs(float64(v)-1) > 1e-6 {
		t.Fatalf("ramp must start at the origin: got %f", v)
	}
	if v := out.Channels[0][testRate+testRate/2]; v > 0.01 {
		t.Fatalf("ramp must have ended 1 s after the origin: got %f", v)
	}
	half := out.Channels[0][testRate/2]
	if half <= 0.01 || half >= 1 {
		t.Fatalf("expected mid-ramp value, got %f", half)
	}
}

func TestEffectOrderIsFixed(t *testing.T) {
	r := newRig(t, 2, 0.05, 0.5)
	tr := &project.Track{Effects: map[string]project.Effect{
		"VOLUME-GAIN":        flat("VOLUME", "GAIN", 0),
		"FILTER-FILTER_FREQ": flat("FILTER", "FILTER_FREQ", 2000),
		"DELAY-DELAY_TIME":   flat("DELAY", "DELAY_TIME", 10),
	}}
	chain := r.build(t, tr, 0)
	c := chain.(Chain)
	if _, ok := c.Entry.(*graph.ProcessorNode); !ok {
		t.Fatalf("expected FILTER first, got %T", c.Entry)
	}
	if _, ok := c.Exit.(*graph.Gain); !ok {
		t.Fatalf("expected VOLUME last, got %T", c.Exit)
	}
}

func TestEveryEffectRendersFinite(t *testing.T) {
	for _, def := range Definitions() {
		t.Run(def.Name, func(t *testing.T) {
			r := newRig(t, 2, 0.1, 0.25)
			key := project.EffectKey(def.Name, def.Params[0].Name)
			tr := &project.Track{Effects: map[string]project.Effect{key: flat(def.Name, def.Params[0].Name, def.Params[0].Default)}}
			if def.Name == Reverb {
				tr.Effects[key] = flat(def.Name, def.Params[0].Name, 200)
			}
			r.build(t, tr, 0)
			out := r.render(t)
			for ch := range out.Channels {
				for i, v := range out.Channels[ch] {
					if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
						t.Fatalf("non-finite output ch=%d i=%d", ch, i)
					}
				}
			}
		})
	}
}

func TestDBToGain(t *testing.T) {
	if DBToGain(0) != 1 {
		t.Fatal("0 dB must be exactly unity")
	}
	if DBToGain(-200) != 0 {
		t.Fatal("very low levels must be silent")
	}
	if g := DBToGain(-20); math.Abs(g-0.1) > 1e-3 {
		t.Fatalf("-20 dB: got %f", g)
	}
}
