package effects

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pion/logging"

	"github.com/cwbudde/algo-mixdown/graph"
)

// process runs p over a mono signal in render-sized blocks.
func process(p graph.Processor, x []float32) []float32 {
	y := make([]float32, len(x))
	for frame := 0; frame < len(x); frame += graph.Quantum {
		end := min(frame+graph.Quantum, len(x))
		p.Process([][]float32{x[frame:end]}, [][]float32{y[frame:end]}, frame)
	}
	return y
}

func sine(freq, sr float64, n int) []float32 {
	x := make([]float32, n)
	for i := range x {
		x[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sr))
	}
	return x
}

// tailRMS skips the first half to let filters settle.
func tailRMS(x []float32) float64 {
	var sum float64
	tail := x[len(x)/2:]
	for _, v := range tail {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(tail)))
}

func constParams(values ...float64) []*graph.Param {
	out := make([]*graph.Param, len(values))
	for i, v := range values {
		out[i] = graph.NewParam(v, math.Inf(-1), math.Inf(1))
	}
	return out
}

func testLogger(buf *bytes.Buffer) logging.LeveledLogger {
	return logging.NewDefaultLeveledLoggerForScope("effects", logging.LogLevelWarn, buf)
}

func TestFilterAttenuatesAboveCutoff(t *testing.T) {
	const sr = 44100.0
	run := func(freq float64) float64 {
		f := newBiquadFX(1, sr, constParams(1000, 0, 1), lowpassDesign)
		return tailRMS(process(f, sine(freq, sr, 8192)))
	}
	if low := run(100); low < 0.6 {
		t.Fatalf("pass band too quiet: rms=%f", low)
	}
	if high := run(10000); high > 0.05 {
		t.Fatalf("stop band too loud: rms=%f", high)
	}
}

func TestFilterCutoffAboveNyquistStillPasses(t *testing.T) {
	f := newBiquadFX(1, testRate, constParams(20000, 0, 1), lowpassDesign)
	if rms := tailRMS(process(f, sine(100, testRate, 4096))); rms < 0.6 {
		t.Fatalf("cutoff past Nyquist must clamp, not silence: rms=%f", rms)
	}
}

func TestBandpassPeaksAtCenter(t *testing.T) {
	const sr = 44100.0
	run := func(freq float64) float64 {
		f := newBiquadFX(1, sr, constParams(2000, 0.5, 1), bandpassDesign)
		return tailRMS(process(f, sine(freq, sr, 8192)))
	}
	center, below, above := run(2000), run(200), run(15000)
	if center < below || center < above {
		t.Fatalf("expected center to dominate: center=%f below=%f above=%f", center, below, above)
	}
}

func TestFlatEQ3IsTransparent(t *testing.T) {
	const sr = 44100.0
	e := newEQ3(1, sr, constParams(0, 200, 0, 2000, 0, 5000, 1))
	x := sine(440, sr, 4096)
	y := process(e, x)
	for i := range x {
		if math.Abs(float64(y[i]-x[i])) > 1e-4 {
			t.Fatalf("sample %d: got %f want %f", i, y[i], x[i])
		}
	}
}

func TestEQ3FollowsAutomatedGain(t *testing.T) {
	const sr = 44100.0
	params := constParams(0, 200, 0, 1000, 0, 5000, 1)
	params[2].SetValueAtTime(12, 0.05)
	e := newEQ3(1, sr, params)
	y := process(e, sine(1000, sr, int(0.2*sr)))
	before := tailRMS(y[:int(0.05*sr)])
	after := tailRMS(y[int(0.1*sr):])
	if after < 3*before {
		t.Fatalf("mid boost did not take effect: before=%f after=%f", before, after)
	}
}

func TestDelayEchoesAfterDelayTime(t *testing.T) {
	d, err := newDelay(1, testRate, constParams(0.01, DBToGain(-120), 1))
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float32, 256)
	x[0] = 1
	y := process(d, x)
	if y[0] != 0 {
		t.Fatalf("wet output must start silent, got %f", y[0])
	}
	if math.Abs(float64(y[80])-1) > 1e-6 {
		t.Fatalf("expected the impulse 80 samples later, got %f", y[80])
	}
	if math.Abs(float64(y[79])) > 1e-6 || math.Abs(float64(y[81])) > 1e-6 {
		t.Fatalf("echo smeared: y[79]=%f y[81]=%f", y[79], y[81])
	}
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	var logs bytes.Buffer
	c, err := newCompressor(1, testRate, constParams(-20, 10), testLogger(&logs))
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float32, testRate/2)
	for i := range x {
		x[i] = 1
	}
	y := process(c, x)
	// 20 dB over a -20 dB threshold at 10:1 leaves 2 dB over, -18 dB total.
	want := math.Pow(10, -18.0/20)
	if got := float64(y[len(y)-1]); math.Abs(got-want) > 0.02 {
		t.Fatalf("steady-state level %f, want about %f", got, want)
	}
	if logs.Len() != 0 {
		t.Fatalf("unexpected warnings: %s", logs.String())
	}
}

func TestCompressorLeavesQuietSignal(t *testing.T) {
	c, err := newCompressor(1, testRate, constParams(-20, 100), testLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	x := sine(200, testRate, 2048)
	for i := range x {
		x[i] *= 0.01
	}
	y := process(c, x)
	for i := range x {
		if math.Abs(float64(y[i]-x[i])) > 1e-6 {
			t.Fatalf("sample %d altered below threshold: %f vs %f", i, y[i], x[i])
		}
	}
}

func TestChorusLogsRejectedSettings(t *testing.T) {
	var logs bytes.Buffer
	params := constParams(0.015, 1, 1, 0.7, 0.5)
	params[4] = graph.NewParam(0.5, 0, 2)
	params[4].SetValueAtTime(1.5, float64(graph.Quantum)/testRate)
	c, err := newChorus(1, testRate, params, testLogger(&logs))
	if err != nil {
		t.Fatal(err)
	}
	y := process(c, sine(300, testRate, 4*graph.Quantum))
	if !strings.Contains(logs.String(), "chorus") {
		t.Fatalf("expected a chorus warning, got %q", logs.String())
	}
	for i, v := range y {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite output at %d", i)
		}
	}
}
