package graph

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixdown/sound"
)

// ErrAlreadyStarted reports a second Start on the same source.
var ErrAlreadyStarted = errors.New("source already started")

// BufferSource plays a region of a decoded buffer once. It has no inputs.
type BufferSource struct {
	base
	buf *sound.Buffer

	started    bool
	startFrame int     // context frame where playback begins
	offset     float64 // buffer position (in buffer frames) at startFrame
	stopFrame  int     // context frame where playback ends (exclusive)
	step       float64 // buffer frames per context frame
}

// NewBufferSource creates a source for buf. A nil buffer renders silence.
func (c *Context) NewBufferSource(buf *sound.Buffer) *BufferSource {
	s := &BufferSource{buf: buf, stopFrame: math.MaxInt}
	c.init(&s.base)
	if buf != nil && buf.SampleRate > 0 {
		s.step = float64(buf.SampleRate) / float64(c.sampleRate)
	}
	return s
}

// Start schedules playback at context time when, reading from offset seconds
// into the buffer for duration seconds. A negative duration plays to the end
// of the buffer. A when in the past starts immediately.
func (s *BufferSource) Start(when, offset, duration float64) error {
	if s.started {
		return ErrAlreadyStarted
	}
	if math.IsNaN(when) || math.IsInf(when, 0) || math.IsNaN(offset) || math.IsInf(offset, 0) || math.IsNaN(duration) {
		return fmt.Errorf("non-finite start arguments (when=%g offset=%g duration=%g)", when, offset, duration)
	}
	if offset < 0 {
		return fmt.Errorf("negative offset %g", offset)
	}
	sr := float64(s.ctx.sampleRate)
	s.started = true
	if when < 0 {
		when = 0
	}
	s.startFrame = int(math.Round(when * sr))
	if s.buf != nil {
		s.offset = offset * float64(s.buf.SampleRate)
	}
	if duration >= 0 && !math.IsInf(duration, 1) {
		stop := s.startFrame + int(math.Round(duration*sr))
		if stop < s.stopFrame {
			s.stopFrame = stop
		}
	}
	return nil
}

// Stop ends playback at context time when.
func (s *BufferSource) Stop(when float64) {
	if math.IsNaN(when) {
		return
	}
	if when < 0 {
		when = 0
	}
	stop := int(math.Round(when * float64(s.ctx.sampleRate)))
	if stop < s.stopFrame {
		s.stopFrame = stop
	}
}

// Started reports whether Start has been called.
func (s *BufferSource) Started() bool {
	return s.started
}

// ActiveFrames returns the context frame range [start, stop) this source
// sounds in, clipped to the buffer's end.
func (s *BufferSource) ActiveFrames() (start, stop int) {
	if !s.started || s.buf == nil || s.step <= 0 {
		return 0, 0
	}
	remaining := (float64(s.buf.Frames()) - s.offset) / s.step
	end := s.startFrame + int(math.Ceil(remaining))
	if s.stopFrame < end {
		end = s.stopFrame
	}
	if end < s.startFrame {
		end = s.startFrame
	}
	return s.startFrame, end
}

func (s *BufferSource) process(_, out [][]float32, frame int) {
	for ch := range out {
		clear(out[ch])
	}
	start, stop := s.ActiveFrames()
	n := len(out[0])
	if stop <= frame || start >= frame+n {
		return
	}
	from := start - frame
	if from < 0 {
		from = 0
	}
	to := stop - frame
	if to > n {
		to = n
	}
	frames := s.buf.Frames()
	for ch := range out {
		data := s.buf.Channel(ch)
		dst := out[ch]
		if s.step == 1 && s.offset == math.Trunc(s.offset) {
			base := int(s.offset) + frame - start
			for i := from; i < to; i++ {
				if j := base + i; j < frames {
					dst[i] = data[j]
				}
			}
			continue
		}
		for i := from; i < to; i++ {
			pos := s.offset + float64(frame+i-start)*s.step
			j := int(pos)
			if j >= frames {
				break
			}
			frac := float32(pos - float64(j))
			v := data[j]
			if frac > 0 && j+1 < frames {
				v += frac * (data[j+1] - v)
			}
			dst[i] = v
		}
	}
}
