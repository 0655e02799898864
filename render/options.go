package render

import (
	"context"
	"fmt"

	"github.com/pion/logging"

	"github.com/cwbudde/algo-mixdown/effects"
	"github.com/cwbudde/algo-mixdown/encode"
)

const (
	// SampleRate is the mixdown rate in Hz.
	SampleRate = 44100
	// Channels is the mixdown channel count.
	Channels = 2
)

// LimiterSettings configures the master-track limiter.
type LimiterSettings struct {
	Threshold float64 // dB
	Knee      float64 // dB
	Ratio     float64
	Attack    float64 // seconds
	Release   float64 // seconds
}

// EncoderFactory creates a stereo MP3 encoder for one export.
type EncoderFactory func(ctx context.Context, sampleRate int, s MP3Settings) (encode.BlockEncoder, error)

// MP3Settings configures MP3 export.
type MP3Settings struct {
	Kbps       int
	FFmpegPath string
	// NewEncoder overrides the ffmpeg-backed encoder.
	NewEncoder EncoderFactory
}

// Options configures a Renderer.
type Options struct {
	SampleRate int
	Channels   int
	// Origin is the timeline position in seconds the render starts from.
	Origin  float64
	Limiter LimiterSettings
	MP3     MP3Settings

	LoggerFactory logging.LoggerFactory
	EffectBuilder effects.Builder
}

// DefaultOptions returns the standard export settings: stereo 44.1 kHz from
// the start of the timeline, a brick-wall limiter at -1 dB and 160 kbps MP3.
func DefaultOptions() Options {
	return Options{
		SampleRate: SampleRate,
		Channels:   Channels,
		Limiter: LimiterSettings{
			Threshold: -1,
			Knee:      0,
			Ratio:     10000,
			Attack:    0,
			Release:   0.1,
		},
		MP3: MP3Settings{Kbps: 160},
	}
}

// Validate reports settings the renderer cannot work with.
func (o *Options) Validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0, got %d", o.SampleRate)
	}
	if o.Channels < 1 {
		return fmt.Errorf("channels must be >= 1, got %d", o.Channels)
	}
	if !finite(o.Origin) || o.Origin < 0 {
		return fmt.Errorf("origin must be a finite value >= 0, got %g", o.Origin)
	}
	l := o.Limiter
	if l.Ratio < 1 || l.Knee < 0 || l.Attack < 0 || l.Release < 0 {
		return fmt.Errorf("invalid limiter settings %+v", l)
	}
	if o.MP3.Kbps <= 0 {
		return fmt.Errorf("mp3 bitrate must be > 0, got %d", o.MP3.Kbps)
	}
	return nil
}

func defaultEncoder(ctx context.Context, sampleRate int, s MP3Settings) (encode.BlockEncoder, error) {
	return encode.NewFFmpeg(ctx, encode.FFmpegConfig{
		Path:       s.FFmpegPath,
		SampleRate: sampleRate,
		Channels:   2,
		Kbps:       s.Kbps,
	})
}
