package effects

import (
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/algo-mixdown/graph"
	"github.com/cwbudde/algo-mixdown/project"
)

// Parameter describes one automatable effect parameter. Values in the
// project are in user units; Convert maps them to the units the node uses.
type Parameter struct {
	Name    string
	Default float64
	Min     float64
	Max     float64
	Convert func(float64) float64
}

// Definition lists an effect's parameters in the order its node reads them.
type Definition struct {
	Name   string
	Params []Parameter
}

// Effect names in processing order.
const (
	Filter     = "FILTER"
	Bandpass   = "BANDPASS"
	EQ3Band    = "EQ3BAND"
	Compressor = "COMPRESSOR"
	Distortion = "DISTORTION"
	Chorus     = "CHORUS"
	Delay      = "DELAY"
	Reverb     = "REVERB"
	Pan        = "PAN"
	Volume     = "VOLUME"
	Tempo      = "TEMPO"
)

const ln10over20 = 0.11512925464970228

// DBToGain converts decibels to a linear factor.
func DBToGain(db float64) float64 {
	switch {
	case db == 0:
		return 1
	case db <= -120:
		return 0
	}
	return float64(approx.FastExp(float32(db * ln10over20)))
}

func percentToUnit(v float64) float64 { return v / 100 }
func msToSeconds(v float64) float64   { return v / 1000 }

var definitions = []Definition{
	{Filter, []Parameter{
		{Name: "FILTER_FREQ", Default: 1000, Min: 20, Max: 20000},
		{Name: "FILTER_RESONANCE", Default: 0.8, Min: 0, Max: 1},
		{Name: "MIX", Default: 1, Min: 0, Max: 1},
	}},
	{Bandpass, []Parameter{
		{Name: "BANDPASS_FREQ", Default: 800, Min: 20, Max: 20000},
		{Name: "BANDPASS_WIDTH", Default: 0.5, Min: 0, Max: 1},
		{Name: "MIX", Default: 1, Min: 0, Max: 1},
	}},
	{EQ3Band, []Parameter{
		{Name: "EQ3BAND_LOWGAIN", Default: 0, Min: -24, Max: 18},
		{Name: "EQ3BAND_LOWFREQ", Default: 200, Min: 20, Max: 20000},
		{Name: "EQ3BAND_MIDGAIN", Default: 0, Min: -24, Max: 18},
		{Name: "EQ3BAND_MIDFREQ", Default: 2000, Min: 20, Max: 20000},
		{Name: "EQ3BAND_HIGHGAIN", Default: 0, Min: -24, Max: 18},
		{Name: "EQ3BAND_HIGHFREQ", Default: 2000, Min: 20, Max: 20000},
		{Name: "MIX", Default: 1, Min: 0, Max: 1},
	}},
	{Compressor, []Parameter{
		{Name: "COMPRESSOR_THRESHOLD", Default: -18, Min: -30, Max: 0},
		{Name: "COMPRESSOR_RATIO", Default: 10, Min: 1, Max: 100},
	}},
	{Distortion, []Parameter{
		{Name: "DISTO_GAIN", Default: 20, Min: 0, Max: 50},
		{Name: "MIX", Default: 1, Min: 0, Max: 1},
	}},
	{Chorus, []Parameter{
		{Name: "CHORUS_LENGTH", Default: 15, Min: 1, Max: 250, Convert: msToSeconds},
		{Name: "CHORUS_NUMVOICES", Default: 1, Min: 1, Max: 8},
		{Name: "CHORUS_RATE", Default: 10, Min: 0.1, Max: 16},
		{Name: "CHORUS_MOD", Default: 0.7, Min: 0, Max: 1},
		{Name: "MIX", Default: 1, Min: 0, Max: 1},
	}},
	{Delay, []Parameter{
		{Name: "DELAY_TIME", Default: 300, Min: 0, Max: 4000, Convert: msToSeconds},
		{Name: "DELAY_FEEDBACK", Default: -5, Min: -120, Max: -1, Convert: DBToGain},
		{Name: "MIX", Default: 0.5, Min: 0, Max: 1},
	}},
	{Reverb, []Parameter{
		{Name: "REVERB_TIME", Default: 3500, Min: 0, Max: 4000, Convert: msToSeconds},
		{Name: "REVERB_DAMPFREQ", Default: 10000, Min: 200, Max: 18000},
		{Name: "MIX", Default: 0.3, Min: 0, Max: 1},
	}},
	{Pan, []Parameter{
		{Name: "LEFT_RIGHT", Default: 0, Min: -100, Max: 100, Convert: percentToUnit},
	}},
	{Volume, []Parameter{
		{Name: "GAIN", Default: 0, Min: -60, Max: 12, Convert: DBToGain},
	}},
}

// Definitions returns the known effects in processing order.
func Definitions() []Definition {
	return definitions
}

func lookup(name string) (Definition, bool) {
	for _, d := range definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

func (p Parameter) convert(v float64) float64 {
	if math.IsNaN(v) {
		v = p.Default
	}
	v = math.Max(p.Min, math.Min(p.Max, v))
	if p.Convert != nil {
		return p.Convert(v)
	}
	return v
}

// param builds the automatable value for parameter p of effect name on the
// track. Every range becomes a step to its start value at the range start and,
// when it spans time, a linear ramp to its end value. Times are relative to
// origin; events before zero are kept so a ramp already in progress at the
// origin evaluates correctly.
func (in Input) param(name string, p Parameter) *graph.Param {
	def := p.convert(p.Default)
	lo, hi := p.convert(p.Min), p.convert(p.Max)
	if lo > hi {
		lo, hi = hi, lo
	}
	gp := graph.NewParam(def, lo, hi)
	eff, ok := in.Track.Effects[project.EffectKey(name, p.Name)]
	if !ok {
		return gp
	}
	for _, r := range eff.Ranges {
		start := in.TempoMap.MeasureToTime(r.StartMeasure) - in.Origin
		gp.SetValueAtTime(p.convert(r.StartValue), start)
		if r.EndMeasure > r.StartMeasure {
			end := in.TempoMap.MeasureToTime(r.EndMeasure) - in.Origin
			gp.LinearRampToValueAtTime(p.convert(r.EndValue), end)
		}
	}
	return gp
}
