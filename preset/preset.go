// Package preset loads render settings from JSON or YAML files.
package preset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/render"
)

// File is the schema for render presets. Unset fields keep their defaults.
type File struct {
	SampleRate *int     `json:"sample_rate" yaml:"sample_rate"`
	Origin     *float64 `json:"origin" yaml:"origin"`
	SoundsDir  string   `json:"sounds_dir" yaml:"sounds_dir"`
	Limiter    *Limiter `json:"limiter" yaml:"limiter"`
	MP3        *MP3     `json:"mp3" yaml:"mp3"`
}

// Limiter is a partial override of the master limiter.
type Limiter struct {
	Threshold *float64 `json:"threshold" yaml:"threshold"`
	Knee      *float64 `json:"knee" yaml:"knee"`
	Ratio     *float64 `json:"ratio" yaml:"ratio"`
	Attack    *float64 `json:"attack" yaml:"attack"`
	Release   *float64 `json:"release" yaml:"release"`
}

// MP3 is a partial override of the MP3 export settings.
type MP3 struct {
	Kbps       *int   `json:"kbps" yaml:"kbps"`
	FFmpegPath string `json:"ffmpeg_path" yaml:"ffmpeg_path"`
}

// Preset is a loaded preset: renderer options plus where to find sounds.
type Preset struct {
	Options   render.Options
	SoundsDir string
}

// Load reads a preset file, choosing JSON or YAML by extension, and applies
// it on top of render.DefaultOptions. A relative sounds_dir is resolved
// against the preset's directory.
func Load(path string) (*Preset, error) {
	format, err := project.FormatForPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	switch format {
	case project.FormatYAML:
		err = yaml.Unmarshal(b, &f)
	default:
		err = json.Unmarshal(b, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p := &Preset{Options: render.DefaultOptions()}
	if err := ApplyFile(&p.Options, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if dir := strings.TrimSpace(f.SoundsDir); dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		p.SoundsDir = filepath.Clean(dir)
	}
	return p, nil
}

// ApplyFile applies a parsed preset onto existing options.
func ApplyFile(dst *render.Options, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination options")
	}
	if f == nil {
		return nil
	}

	if f.SampleRate != nil {
		if *f.SampleRate < 8000 || *f.SampleRate > 192000 {
			return fmt.Errorf("sample_rate must be in [8000,192000]")
		}
		dst.SampleRate = *f.SampleRate
	}
	if f.Origin != nil {
		if !finite(*f.Origin) || *f.Origin < 0 {
			return fmt.Errorf("origin must be >= 0")
		}
		dst.Origin = *f.Origin
	}

	if l := f.Limiter; l != nil {
		if l.Threshold != nil {
			if *l.Threshold < -100 || *l.Threshold > 0 {
				return fmt.Errorf("limiter.threshold must be in [-100,0]")
			}
			dst.Limiter.Threshold = *l.Threshold
		}
		if l.Knee != nil {
			if *l.Knee < 0 || *l.Knee > 40 {
				return fmt.Errorf("limiter.knee must be in [0,40]")
			}
			dst.Limiter.Knee = *l.Knee
		}
		if l.Ratio != nil {
			if !finite(*l.Ratio) || *l.Ratio < 1 {
				return fmt.Errorf("limiter.ratio must be >= 1")
			}
			dst.Limiter.Ratio = *l.Ratio
		}
		if l.Attack != nil {
			if *l.Attack < 0 || *l.Attack > 1 {
				return fmt.Errorf("limiter.attack must be in [0,1]")
			}
			dst.Limiter.Attack = *l.Attack
		}
		if l.Release != nil {
			if *l.Release < 0 || *l.Release > 1 {
				return fmt.Errorf("limiter.release must be in [0,1]")
			}
			dst.Limiter.Release = *l.Release
		}
	}

	if m := f.MP3; m != nil {
		if m.Kbps != nil {
			if *m.Kbps < 32 || *m.Kbps > 320 {
				return fmt.Errorf("mp3.kbps must be in [32,320]")
			}
			dst.MP3.Kbps = *m.Kbps
		}
		if p := strings.TrimSpace(m.FFmpegPath); p != "" {
			dst.MP3.FFmpegPath = p
		}
	}
	return dst.Validate()
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
