package project

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cwbudde/algo-mixdown/sound"
)

// Project is the arrangement handed to the renderer. Track 0 is the master
// track and the last track is the metronome, which is never rendered.
type Project struct {
	Length      float64              `json:"length" yaml:"length"`
	Tracks      []Track              `json:"tracks" yaml:"tracks"`
	SlicedClips map[string]ClipSlice `json:"slicedClips,omitempty" yaml:"slicedClips,omitempty"`
}

// Track is an ordered list of clips plus effect automation keyed NAME-PARAMETER.
type Track struct {
	Clips   []Clip            `json:"clips" yaml:"clips"`
	Effects map[string]Effect `json:"effects,omitempty" yaml:"effects,omitempty"`
	Label   string            `json:"label,omitempty" yaml:"label,omitempty"`
	Visible bool              `json:"visible,omitempty" yaml:"visible,omitempty"`
	Mute    bool              `json:"mute,omitempty" yaml:"mute,omitempty"`
}

// Clip places a region of a sound on a track. Measure is 1-based; Start and
// End trim the sound, also in measures, with Start == 1 meaning the beginning.
type Clip struct {
	Name      string   `json:"name" yaml:"name"`
	Measure   float64  `json:"measure" yaml:"measure"`
	Start     float64  `json:"start" yaml:"start"`
	End       float64  `json:"end" yaml:"end"`
	Track     int      `json:"track" yaml:"track"`
	Loop      bool     `json:"loop,omitempty" yaml:"loop,omitempty"`
	LoopChild bool     `json:"loopChild,omitempty" yaml:"loopChild,omitempty"`
	Silence   float64  `json:"silence,omitempty" yaml:"silence,omitempty"`
	Tempo     *float64 `json:"tempo,omitempty" yaml:"tempo,omitempty"`

	// Audio is the decoded sound for this clip. It is owned by the caller and
	// only read by the renderer; nil means the clip has no playable audio.
	Audio *sound.Buffer `json:"-" yaml:"-"`
}

// EffectRange is one segment of a piecewise-linear automation envelope.
type EffectRange struct {
	Name         string  `json:"name" yaml:"name"`
	Parameter    string  `json:"parameter" yaml:"parameter"`
	StartMeasure float64 `json:"startMeasure" yaml:"startMeasure"`
	EndMeasure   float64 `json:"endMeasure" yaml:"endMeasure"`
	StartValue   float64 `json:"startValue" yaml:"startValue"`
	EndValue     float64 `json:"endValue" yaml:"endValue"`
	Track        int     `json:"track" yaml:"track"`
}

// Effect is the automation for one effect parameter on one track.
type Effect struct {
	Ranges []EffectRange `json:"ranges" yaml:"ranges"`
	Bypass bool          `json:"bypass,omitempty" yaml:"bypass,omitempty"`
}

// ClipSlice names a region of a source sound, in measures.
type ClipSlice struct {
	SourceFile string  `json:"sourceFile" yaml:"sourceFile"`
	Start      float64 `json:"start" yaml:"start"`
	End        float64 `json:"end" yaml:"end"`
}

// EffectKey builds the map key used in Track.Effects.
func EffectKey(name, parameter string) string {
	return strings.ToUpper(name) + "-" + strings.ToUpper(parameter)
}

// SplitEffectKey splits a NAME-PARAMETER key. Parameters may themselves
// contain dashes; only the first one separates.
func SplitEffectKey(key string) (name, parameter string, ok bool) {
	i := strings.IndexByte(key, '-')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// RenderableTracks returns the indices of every track except the trailing
// metronome track.
func (p *Project) RenderableTracks() []int {
	if p == nil || len(p.Tracks) < 2 {
		return nil
	}
	idx := make([]int, len(p.Tracks)-1)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// EffectNames returns the distinct effect names present on the track, sorted.
func (t *Track) EffectNames() []string {
	seen := make(map[string]struct{})
	for key := range t.Effects {
		name, _, ok := SplitEffectKey(key)
		if !ok {
			continue
		}
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the structural sanity the renderer relies on. Clip timing
// is deliberately not checked here; the renderer skips bad clips instead.
func (p *Project) Validate() error {
	if p == nil {
		return fmt.Errorf("nil project")
	}
	if p.Length < 0 {
		return fmt.Errorf("length must be >= 0, got %g", p.Length)
	}
	for ti, tr := range p.Tracks {
		for key := range tr.Effects {
			if _, _, ok := SplitEffectKey(key); !ok {
				return fmt.Errorf("tracks[%d]: invalid effect key %q (expected NAME-PARAMETER)", ti, key)
			}
		}
	}
	for id, s := range p.SlicedClips {
		if s.SourceFile == "" {
			return fmt.Errorf("slicedClips[%s]: empty sourceFile", id)
		}
		if s.End < s.Start {
			return fmt.Errorf("slicedClips[%s]: end < start", id)
		}
	}
	return nil
}
