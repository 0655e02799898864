package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-mixdown/sound"
)

// Quantum is the number of frames rendered per processing block.
const Quantum = 128

// MaxFrames bounds the length of a single context so an absurd project
// length fails fast instead of exhausting memory.
const MaxFrames = 1 << 27

var (
	// ErrInvalidLength reports a context length that cannot be allocated.
	ErrInvalidLength = errors.New("invalid render length")
	// ErrCycle reports a connection that would make the graph cyclic.
	ErrCycle = errors.New("connection would create a cycle")
	// ErrForeignNode reports a node that belongs to another context.
	ErrForeignNode = errors.New("node belongs to a different context")
	// ErrAlreadyRendered reports a second StartRendering call.
	ErrAlreadyRendered = errors.New("context already rendered")
)

// Context is a non-real-time rendering context. It owns every node created
// through it and renders them once into a buffer. A Context is not safe for
// concurrent use; create one per render.
type Context struct {
	sampleRate int
	channels   int
	frames     int

	dest     *Destination
	nextID   int
	rendered bool
}

// NewContext allocates a context of frames sample frames.
func NewContext(channels, frames, sampleRate int) (*Context, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channels must be >= 1, got %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	if frames <= 0 || frames > MaxFrames {
		return nil, fmt.Errorf("%w: %d frames", ErrInvalidLength, frames)
	}
	c := &Context{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
	}
	c.dest = &Destination{}
	c.init(&c.dest.base)
	return c, nil
}

// SampleRate returns the render rate in Hz.
func (c *Context) SampleRate() int {
	return c.sampleRate
}

// Channels returns the output channel count.
func (c *Context) Channels() int {
	return c.channels
}

// Frames returns the render length in sample frames.
func (c *Context) Frames() int {
	return c.frames
}

// Duration returns the render length in seconds.
func (c *Context) Duration() float64 {
	return float64(c.frames) / float64(c.sampleRate)
}

// Destination returns the terminal node whose input is the rendered output.
func (c *Context) Destination() *Destination {
	return c.dest
}

// Connect routes src's output into dst's input. Duplicate connections are
// ignored.
func (c *Context) Connect(src, dst Node) error {
	sb, db := src.node(), dst.node()
	if sb.ctx != c || db.ctx != c {
		return ErrForeignNode
	}
	if src == Node(c.dest) {
		return fmt.Errorf("destination has no output")
	}
	for _, in := range db.inputs {
		if in == src {
			return nil
		}
	}
	if src == dst || dependsOn(src, dst) {
		return ErrCycle
	}
	db.inputs = append(db.inputs, src)
	return nil
}

// StartRendering renders the whole graph and returns the output buffer.
// ctx is checked between blocks; cancellation abandons the render.
func (c *Context) StartRendering(ctx context.Context) (*sound.Buffer, error) {
	if c.rendered {
		return nil, ErrAlreadyRendered
	}
	c.rendered = true

	out := sound.NewBuffer(c.channels, c.frames, c.sampleRate)
	q := 0
	for frame := 0; frame < c.frames; frame += Quantum {
		if q%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n := Quantum
		if frame+n > c.frames {
			n = c.frames - frame
		}
		block := c.pull(c.dest, q, frame, n)
		for ch := 0; ch < c.channels; ch++ {
			copy(out.Channels[ch][frame:frame+n], block[ch])
		}
		q++
	}
	return out, nil
}

func (c *Context) init(b *base) {
	b.ctx = c
	b.id = c.nextID
	c.nextID++
	b.rendered = -1
	b.in = make([][]float32, c.channels)
	b.out = make([][]float32, c.channels)
	for ch := 0; ch < c.channels; ch++ {
		b.in[ch] = make([]float32, Quantum)
		b.out[ch] = make([]float32, Quantum)
	}
}

// pull renders n into its output block for quantum q, rendering inputs first.
// Each node renders at most once per quantum, so fan-out is cheap.
func (c *Context) pull(n Node, q, frame, frames int) [][]float32 {
	b := n.node()
	if b.rendered == q {
		return b.outView
	}
	in, out := b.blocks(frames)
	for ch := range in {
		clear(in[ch])
	}
	for _, src := range b.inputs {
		o := c.pull(src, q, frame, frames)
		for ch := range in {
			dst := in[ch]
			for i, v := range o[ch] {
				dst[i] += v
			}
		}
	}
	n.process(in, out, frame)
	b.rendered = q
	return out
}

func dependsOn(n, target Node) bool {
	seen := make(map[int]bool)
	var walk func(Node) bool
	walk = func(x Node) bool {
		b := x.node()
		if seen[b.id] {
			return false
		}
		seen[b.id] = true
		for _, in := range b.inputs {
			if in == target || walk(in) {
				return true
			}
		}
		return false
	}
	return walk(n)
}
