package project

import (
	"sort"

	"github.com/cwbudde/algo-mixdown/sound"
)

// SoundSource resolves sound names to decoded buffers.
type SoundSource interface {
	Get(name string) (*sound.Buffer, bool)
}

// MeasureClock converts 1-based measure positions to seconds.
type MeasureClock interface {
	MeasureToTime(measure float64) float64
}

// Clone returns a deep copy of the arrangement. Audio buffers are shared,
// since the renderer only reads them.
func (p *Project) Clone() *Project {
	out := &Project{
		Length: p.Length,
		Tracks: make([]Track, len(p.Tracks)),
	}
	if p.SlicedClips != nil {
		out.SlicedClips = make(map[string]ClipSlice, len(p.SlicedClips))
		for k, v := range p.SlicedClips {
			out.SlicedClips[k] = v
		}
	}
	for i, tr := range p.Tracks {
		nt := tr
		nt.Clips = append([]Clip(nil), tr.Clips...)
		for j := range nt.Clips {
			if c := tr.Clips[j].Tempo; c != nil {
				v := *c
				nt.Clips[j].Tempo = &v
			}
		}
		if tr.Effects != nil {
			nt.Effects = make(map[string]Effect, len(tr.Effects))
			for k, e := range tr.Effects {
				nt.Effects[k] = Effect{Ranges: append([]EffectRange(nil), e.Ranges...), Bypass: e.Bypass}
			}
		}
		out.Tracks[i] = nt
	}
	return out
}

// WithAudio returns a copy of p whose clips carry decoded audio from src.
// Sliced clips are cut from their source sound; the slice region is read in
// measures using clock. Names that cannot be resolved are returned sorted and
// their clips keep a nil Audio, which the renderer treats as silent.
func (p *Project) WithAudio(src SoundSource, clock MeasureClock) (*Project, []string) {
	out := p.Clone()
	missing := make(map[string]struct{})
	slices := make(map[string]*sound.Buffer)

	for ti := range out.Tracks {
		for ci := range out.Tracks[ti].Clips {
			c := &out.Tracks[ti].Clips[ci]
			b, ok := out.resolve(c.Name, src, clock, slices)
			if !ok {
				missing[c.Name] = struct{}{}
				continue
			}
			c.Audio = b
		}
	}

	names := make([]string, 0, len(missing))
	for n := range missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return out, names
}

func (p *Project) resolve(name string, src SoundSource, clock MeasureClock, cache map[string]*sound.Buffer) (*sound.Buffer, bool) {
	slice, isSlice := p.SlicedClips[name]
	if !isSlice {
		return src.Get(name)
	}
	if b, ok := cache[name]; ok {
		return b, true
	}
	base, ok := src.Get(slice.SourceFile)
	if !ok {
		return nil, false
	}
	origin := clock.MeasureToTime(1)
	b := base.Slice(clock.MeasureToTime(slice.Start)-origin, clock.MeasureToTime(slice.End)-origin)
	cache[name] = b
	return b, true
}
