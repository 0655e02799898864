package render

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

// oneSecondPerMeasure is 240 BPM in 4/4.
var oneSecondPerMeasure = tempo.Constant(240)

func newTestRenderer(t *testing.T, mutate ...func(*Options)) *Renderer {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func constSound(seconds float64, level float32) *sound.Buffer {
	b := sound.NewBuffer(2, int(seconds*SampleRate), SampleRate)
	for ch := range b.Channels {
		for i := range b.Channels[ch] {
			b.Channels[ch][i] = level
		}
	}
	return b
}

func sineSound(seconds, freq float64, amp float32) *sound.Buffer {
	b := sound.NewBuffer(1, int(seconds*SampleRate), SampleRate)
	for i := range b.Channels[0] {
		b.Channels[0][i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return b
}

func clip(name string, measure, start, end float64, audio *sound.Buffer) project.Clip {
	return project.Clip{Name: name, Measure: measure, Start: start, End: end, Audio: audio}
}

// twoTrack returns a project whose last track is a loud metronome.
func twoTrack(length float64, master ...project.Clip) *project.Project {
	return &project.Project{
		Length: length,
		Tracks: []project.Track{
			{Clips: master},
			{Clips: []project.Clip{clip("METRONOME", 1, 1, 2, constSound(1, 0.9))}},
		},
	}
}

func peak(b *sound.Buffer) float64 {
	p := 0.0
	for _, ch := range b.Channels {
		for _, v := range ch {
			p = math.Max(p, math.Abs(float64(v)))
		}
	}
	return p
}

func sameBuffer(t *testing.T, a, b *sound.Buffer) {
	t.Helper()
	if a.NumChannels() != b.NumChannels() || a.Frames() != b.Frames() {
		t.Fatalf("shape mismatch: %dx%d vs %dx%d", a.NumChannels(), a.Frames(), b.NumChannels(), b.Frames())
	}
	for ch := range a.Channels {
		for i := range a.Channels[ch] {
			if math.Float32bits(a.Channels[ch][i]) != math.Float32bits(b.Channels[ch][i]) {
				t.Fatalf("ch %d frame %d differs: %v vs %v", ch, i, a.Channels[ch][i], b.Channels[ch][i])
			}
		}
	}
}
