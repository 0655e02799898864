package sound

import (
	"math"

	"github.com/go-audio/audio"
)

// Buffer holds decoded planar float audio resident in memory.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer allocates a silent buffer.
func NewBuffer(numChannels, frames, sampleRate int) *Buffer {
	b := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, numChannels),
	}
	for c := range b.Channels {
		b.Channels[c] = make([]float32, frames)
	}
	return b
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Frames returns the number of sample frames per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Channel returns channel i. Buffers with fewer channels repeat their last
// channel, so a mono clip feeds both sides of a stereo mix.
func (b *Buffer) Channel(i int) []float32 {
	if b == nil || len(b.Channels) == 0 {
		return nil
	}
	if i >= len(b.Channels) {
		i = len(b.Channels) - 1
	}
	return b.Channels[i]
}

// Interleaved returns frame-interleaved samples (L R L R ...).
func (b *Buffer) Interleaved() []float32 {
	nch := b.NumChannels()
	frames := b.Frames()
	out := make([]float32, nch*frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			out[i*nch+c] = b.Channels[c][i]
		}
	}
	return out
}

// Float32Buffer converts to an interleaved go-audio buffer for WAV writers.
func (b *Buffer) Float32Buffer(sourceBitDepth int) *audio.Float32Buffer {
	return &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  b.SampleRate,
			NumChannels: b.NumChannels(),
		},
		Data:           b.Interleaved(),
		SourceBitDepth: sourceBitDepth,
	}
}

// Slice copies the region [startSec, endSec) into a new buffer. The region is
// clamped to the buffer bounds.
func (b *Buffer) Slice(startSec, endSec float64) *Buffer {
	frames := b.Frames()
	start := clampFrame(int(math.Round(startSec*float64(b.SampleRate))), frames)
	end := clampFrame(int(math.Round(endSec*float64(b.SampleRate))), frames)
	if end < start {
		end = start
	}
	out := &Buffer{
		SampleRate: b.SampleRate,
		Channels:   make([][]float32, len(b.Channels)),
	}
	for c, ch := range b.Channels {
		out.Channels[c] = append([]float32(nil), ch[start:end]...)
	}
	return out
}

func clampFrame(i, frames int) int {
	if i < 0 {
		return 0
	}
	if i > frames {
		return frames
	}
	return i
}
