package graph

// Processor transforms one block of audio. in holds the summed inputs and out
// must be fully written; both have one slice per context channel. frame is
// the absolute index of the block's first sample.
type Processor interface {
	Process(in, out [][]float32, frame int)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(in, out [][]float32, frame int)

// Process calls f.
func (f ProcessorFunc) Process(in, out [][]float32, frame int) { f(in, out, frame) }

// ProcessorNode hosts a custom Processor in the graph.
type ProcessorNode struct {
	base
	p Processor
}

// NewProcessor wraps p as a graph node.
func (c *Context) NewProcessor(p Processor) *ProcessorNode {
	n := &ProcessorNode{p: p}
	c.init(&n.base)
	return n
}

// Time converts an absolute frame index to context seconds.
func (n *ProcessorNode) Time(frame int) float64 {
	return n.time(frame)
}

func (n *ProcessorNode) process(in, out [][]float32, frame int) {
	n.p.Process(in, out, frame)
}
