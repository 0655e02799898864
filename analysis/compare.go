package analysis

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixdown/sound"
)

// Metrics contains distance measurements between a reference mixdown and a
// candidate rendered from the same project.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	MaxAbsDiff     float64 `json:"max_abs_diff"`
	GainDiffDB     float64 `json:"gain_diff_db"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// MaxLagSeconds bounds the alignment search.
const MaxLagSeconds = 0.05

// Compare aligns candidate to reference and returns distance metrics with a
// combined score in [0,1]; identical buffers score 0. The candidate is
// resampled when its rate differs. Channels are averaged before comparison.
func Compare(reference, candidate *sound.Buffer) (Metrics, error) {
	if reference == nil || candidate == nil {
		return Metrics{}, fmt.Errorf("nil buffer")
	}
	if candidate.SampleRate != reference.SampleRate {
		var err error
		if candidate, err = sound.Resample(candidate, reference.SampleRate); err != nil {
			return Metrics{}, fmt.Errorf("resample candidate: %w", err)
		}
	}
	sr := reference.SampleRate
	ref := downmix(reference)
	cand := downmix(candidate)
	m := Metrics{
		SampleRate:      sr,
		ReferenceFrames: len(ref),
		CandidateFrames: len(cand),
		Score:           1,
	}
	if sr <= 0 || len(ref) == 0 || len(cand) == 0 {
		return m, nil
	}

	maxLag := int(MaxLagSeconds * float64(sr))
	maxLag = min(maxLag, len(ref)-1, len(cand)-1)
	maxLag = max(maxLag, 0)
	m.LagSamples = estimateLag(ref, cand, maxLag)

	refA, candA := alignByLag(ref, cand, m.LagSamples)
	n := min(len(refA), len(candA))
	if n < 256 {
		return m, nil
	}
	refA, candA = refA[:n], candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)
	for i := range refA {
		m.MaxAbsDiff = math.Max(m.MaxAbsDiff, math.Abs(refA[i]-candA[i]))
	}
	m.GainDiffDB = linToDB(rms1(candA)) - linToDB(rms1(refA))

	refEnv := rmsEnvelope(refA, 1024, 512)
	candEnv := rmsEnvelope(candA, 1024, 512)
	if envN := min(len(refEnv), len(candEnv)); envN > 0 {
		diff := make([]float64, envN)
		for i := range diff {
			diff[i] = linToDB(refEnv[i]) - linToDB(candEnv[i])
		}
		m.EnvelopeRMSEDB = rms1(diff)
	}

	refSpec, err := averageSpectrum(refA)
	if err != nil {
		return m, err
	}
	candSpec, err := averageSpectrum(candA)
	if err != nil {
		return m, err
	}
	m.SpectralRMSEDB = spectralRMSEDB(refSpec, candSpec)

	timeNorm := clamp01(m.TimeRMSE / 0.25)
	gainNorm := clamp01(math.Abs(m.GainDiffDB) / 12.0)
	envNorm := clamp01(m.EnvelopeRMSEDB / 30.0)
	specNorm := clamp01(m.SpectralRMSEDB / 30.0)
	m.Score = clamp01(0.35*timeNorm + 0.15*gainNorm + 0.2*envNorm + 0.3*specNorm)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m, nil
}

// estimateLag returns the shift of cand against ref with the largest
// correlation, searched over [-maxLag, maxLag].
func estimateLag(ref, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	step := 1
	if len(ref) > 200000 || len(cand) > 200000 {
		step = 4
	}
	bestLag := 0
	best := dotAtLag(ref, cand, 0, step)
	for lag := 1; lag <= maxLag; lag++ {
		for _, l := range [2]int{lag, -lag} {
			if s := dotAtLag(ref, cand, l, step); s > best {
				best, bestLag = s, l
			}
		}
	}
	return bestLag
}

func dotAtLag(a, b []float64, lag, step int) float64 {
	ai, bi := 0, 0
	if lag >= 0 {
		ai = lag
	} else {
		bi = -lag
	}
	n := min(len(a)-ai, len(b)-bi)
	var sum float64
	for i := 0; i < n; i += step {
		sum += a[ai+i] * b[bi+i]
	}
	return sum
}

func alignByLag(ref, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	if -lag >= len(cand) {
		return nil, nil
	}
	return ref, cand[-lag:]
}

func rmse(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		out[i] = rms1(x[i*hop : i*hop+frame])
	}
	return out
}

// spectralRMSEDB compares two magnitude spectra bin by bin, skipping DC and
// bins where both sides are below -120 dB.
func spectralRMSEDB(a, b []float64) float64 {
	var sum float64
	n := 0
	for k := 1; k < min(len(a), len(b)); k++ {
		da, db := linToDB(a[k]), linToDB(b[k])
		if da < -120 && db < -120 {
			continue
		}
		d := da - db
		sum += d * d
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
