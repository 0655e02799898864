// Package effects turns a track's effect automation into a chain of render
// graph nodes.
package effects

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pion/logging"

	"github.com/cwbudde/algo-mixdown/graph"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/tempo"
)

// Input is everything a Builder needs to wire one track's effects.
type Input struct {
	Context    *graph.Context
	Track      *project.Track
	TrackIndex int
	TempoMap   tempo.Map
	Origin     float64 // seconds subtracted from every automation time

	// Mix is the node every track ultimately feeds. Track 0 terminates here.
	Mix graph.Node
	// Master accumulates every non-master track ahead of the limiter.
	Master graph.Node
	// Tap meters the track; non-master tracks reach Master through it.
	Tap graph.Node
}

// EffectChain is either NoEffects or Chain.
type EffectChain interface {
	effectChain()
}

// NoEffects means the track has no active effects and the caller must route
// the track itself.
type NoEffects struct{}

// Chain is a wired effect chain. Exit is already connected to its
// destination; the caller only connects the track into Entry.
type Chain struct {
	Entry graph.Node
	Exit  graph.Node
}

func (NoEffects) effectChain() {}
func (Chain) effectChain()     {}

// Builder builds the effect chain for one track.
type Builder interface {
	Build(in Input) (EffectChain, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(in Input) (EffectChain, error)

// Build calls f.
func (f BuilderFunc) Build(in Input) (EffectChain, error) { return f(in) }

var errIncompleteInput = errors.New("effects: incomplete input")

type builder struct {
	log logging.LeveledLogger
}

// Default returns the builder for the standard effect set. A nil factory
// uses the pion default.
func Default(lf logging.LoggerFactory) Builder {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &builder{log: lf.NewLogger("effects")}
}

func (b *builder) Build(in Input) (EffectChain, error) {
	if in.Context == nil || in.Track == nil || in.TempoMap == nil || in.Mix == nil {
		return nil, errIncompleteInput
	}
	if in.TrackIndex != 0 && (in.Master == nil || in.Tap == nil) {
		return nil, errIncompleteInput
	}

	active := b.activeEffects(in)
	var nodes []graph.Node
	for _, def := range definitions {
		if !active[def.Name] {
			continue
		}
		n, err := newEffectNode(in, def, b.log)
		if err != nil {
			return nil, fmt.Errorf("track %d %s: %w", in.TrackIndex, def.Name, err)
		}
		if len(nodes) > 0 {
			if err := in.Context.Connect(nodes[len(nodes)-1], n); err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		return NoEffects{}, nil
	}

	exit := nodes[len(nodes)-1]
	if err := terminate(in, exit); err != nil {
		return nil, err
	}
	return Chain{Entry: nodes[0], Exit: exit}, nil
}

// activeEffects returns the known effect names on the track that have at
// least one parameter not bypassed.
func (b *builder) activeEffects(in Input) map[string]bool {
	active := make(map[string]bool)
	keys := make([]string, 0, len(in.Track.Effects))
	for k := range in.Track.Effects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		name, _, ok := project.SplitEffectKey(key)
		if !ok || name == Tempo {
			continue
		}
		if _, known := lookup(name); !known {
			b.log.Warnf("track %d: unknown effect %q ignored", in.TrackIndex, name)
			continue
		}
		if !in.Track.Effects[key].Bypass {
			active[name] = true
		}
	}
	return active
}

func terminate(in Input, exit graph.Node) error {
	if in.TrackIndex == 0 {
		return in.Context.Connect(exit, in.Mix)
	}
	if err := in.Context.Connect(exit, in.Tap); err != nil {
		return err
	}
	return in.Context.Connect(in.Tap, in.Master)
}
