package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-mixdown/sound"
)

type mapSource map[string]*sound.Buffer

func (m mapSource) Get(name string) (*sound.Buffer, bool) {
	b, ok := m[name]
	return b, ok
}

// secondsPerMeasure is a fixed-tempo clock: measure 1 starts at 0.
type secondsPerMeasure float64

func (s secondsPerMeasure) MeasureToTime(m float64) float64 {
	return (m - 1) * float64(s)
}

const projectJSON = `{
  "length": 4,
  "tracks": [
    {
      "clips": [{"name": "DRUMS", "measure": 1, "start": 1, "end": 3, "track": 0}],
      "effects": {
        "VOLUME-GAIN": {"ranges": [{"name": "VOLUME", "parameter": "GAIN", "startMeasure": 1, "endMeasure": 3, "startValue": -6, "endValue": 0, "track": 0}]}
      }
    },
    {"clips": [{"name": "METRONOME", "measure": 1, "start": 1, "end": 2, "track": 1}]}
  ],
  "slicedClips": {"DRUMS_SLICE": {"sourceFile": "DRUMS", "start": 1, "end": 2}}
}`

const projectYAML = `
length: 2
tracks:
  - label: master
    clips:
      - {name: BASS, measure: 1, start: 1, end: 2, track: 0}
    effects:
      PAN-LEFT_RIGHT:
        bypass: true
        ranges:
          - {name: PAN, parameter: LEFT_RIGHT, startMeasure: 1, endMeasure: 1, startValue: 50, endValue: 50, track: 0}
  - clips: []
`

func TestDecodeJSON(t *testing.T) {
	p, err := Decode([]byte(projectJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Length != 4 || len(p.Tracks) != 2 {
		t.Fatalf("unexpected project: %+v", p)
	}
	eff, ok := p.Tracks[0].Effects["VOLUME-GAIN"]
	if !ok || len(eff.Ranges) != 1 || eff.Ranges[0].StartValue != -6 {
		t.Fatalf("volume automation not decoded: %+v", p.Tracks[0].Effects)
	}
	if p.SlicedClips["DRUMS_SLICE"].End != 2 {
		t.Fatalf("sliced clips not decoded: %+v", p.SlicedClips)
	}
}

func TestDecodeYAML(t *testing.T) {
	p, err := Decode([]byte(projectYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Tracks[0].Label != "master" || p.Tracks[0].Clips[0].Name != "BASS" {
		t.Fatalf("unexpected track: %+v", p.Tracks[0])
	}
	if !p.Tracks[0].Effects["PAN-LEFT_RIGHT"].Bypass {
		t.Fatalf("bypass flag lost")
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"negative length": `{"length": -1, "tracks": []}`,
		"bad effect key":  `{"length": 1, "tracks": [{"clips": [], "effects": {"VOLUME": {"ranges": []}}}]}`,
		"unknown field":   `{"length": 1, "tracks": [], "bpm": 90}`,
	}
	for name, in := range cases {
		if _, err := Decode([]byte(in), FormatJSON); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadPicksFormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.yml")
	if err := os.WriteFile(path, []byte(projectYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Load(filepath.Join(dir, "song.txt")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestEncodeRoundTripKeepsArrangement(t *testing.T) {
	p, err := Decode([]byte(projectJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, err := Encode(p, FormatYAML)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	q, err := Decode(b, FormatYAML)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if q.Tracks[0].Clips[0].End != 3 || q.Tracks[0].Effects["VOLUME-GAIN"].Ranges[0].EndMeasure != 3 {
		t.Fatalf("arrangement changed: %+v", q.Tracks[0])
	}
}

func TestRenderableTracksExcludesMetronome(t *testing.T) {
	p := &Project{Tracks: make([]Track, 3)}
	got := p.RenderableTracks()
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("renderable=%v want [0 1]", got)
	}
	single := &Project{Tracks: make([]Track, 1)}
	if len(single.RenderableTracks()) != 0 {
		t.Fatalf("a lone metronome track must not render")
	}
}

func TestSplitEffectKey(t *testing.T) {
	name, param, ok := SplitEffectKey("EQ3BAND-EQ3BAND_LOWGAIN")
	if !ok || name != "EQ3BAND" || param != "EQ3BAND_LOWGAIN" {
		t.Fatalf("split failed: %q %q %v", name, param, ok)
	}
	if _, _, ok := SplitEffectKey("-GAIN"); ok {
		t.Fatalf("expected failure for empty name")
	}
	if EffectKey("volume", "gain") != "VOLUME-GAIN" {
		t.Fatalf("EffectKey not upper-cased")
	}
}

func TestWithAudioResolvesSlicesWithoutMutatingInput(t *testing.T) {
	p, err := Decode([]byte(projectJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p.Tracks[1].Clips = append(p.Tracks[1].Clips, Clip{Name: "DRUMS_SLICE", Measure: 2, Start: 1, End: 2, Track: 1})

	drums := sound.NewBuffer(2, 400, 100)
	for i := range drums.Channels[0] {
		drums.Channels[0][i] = float32(i)
	}
	src := mapSource{"DRUMS": drums}

	withAudio, missing := p.WithAudio(src, secondsPerMeasure(2))
	if len(missing) != 1 || missing[0] != "METRONOME" {
		t.Fatalf("missing=%v want [METRONOME]", missing)
	}
	if withAudio.Tracks[0].Clips[0].Audio != drums {
		t.Fatalf("plain clip not resolved")
	}
	slice := withAudio.Tracks[1].Clips[1].Audio
	if slice == nil || slice.Frames() != 200 || slice.Channels[0][0] != 0 {
		t.Fatalf("slice not cut to one measure: %+v", slice)
	}
	if p.Tracks[0].Clips[0].Audio != nil {
		t.Fatalf("WithAudio must not modify the input project")
	}
}

func TestEffectNamesAreDistinct(t *testing.T) {
	tr := Track{Effects: map[string]Effect{
		"EQ3BAND-EQ3BAND_LOWGAIN": {},
		"EQ3BAND-EQ3BAND_MIDGAIN": {},
		"VOLUME-GAIN":             {},
	}}
	names := tr.EffectNames()
	if len(names) != 2 || names[0] != "EQ3BAND" || names[1] != "VOLUME" {
		t.Fatalf("names=%v", names)
	}
}
