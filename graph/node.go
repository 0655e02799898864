package graph

// Node is a vertex in the render graph. All node types are created through a
// Context; custom processing is plugged in with Processor.
type Node interface {
	node() *base
	process(in, out [][]float32, frame int)
}

type base struct {
	ctx      *Context
	id       int
	inputs   []Node
	rendered int

	in, out         [][]float32
	inView, outView [][]float32
}

func (b *base) node() *base { return b }

// blocks returns the input and output buffers trimmed to n frames. The
// slice headers are reused between blocks.
func (b *base) blocks(n int) (in, out [][]float32) {
	if b.inView == nil {
		b.inView = make([][]float32, len(b.in))
		b.outView = make([][]float32, len(b.out))
	}
	for ch := range b.in {
		b.inView[ch] = b.in[ch][:n]
		b.outView[ch] = b.out[ch][:n]
	}
	return b.inView, b.outView
}

// time converts an absolute frame index to context seconds.
func (b *base) time(frame int) float64 {
	return float64(frame) / float64(b.ctx.sampleRate)
}

// Destination is the context's terminal node.
type Destination struct {
	base
}

func (d *Destination) process(in, out [][]float32, _ int) {
	for ch := range out {
		copy(out[ch], in[ch])
	}
}
