package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-mixdown/analysis"
	"github.com/cwbudde/algo-mixdown/internal/cliutil"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/render"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

func main() {
	referencePath := flag.String("reference", "", "Reference WAV path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render -project")
	projectPath := flag.String("project", "", "Project to render as the candidate")
	soundsDir := flag.String("sounds", "sounds", "Directory of WAV sounds for -project")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write the rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	if *referencePath == "" {
		cliutil.Die("-reference is required")
	}
	ref, err := sound.LoadWAV(*referencePath, 0)
	if err != nil {
		cliutil.Die("failed to read reference: %v", err)
	}

	var cand *sound.Buffer
	switch {
	case *candidatePath != "":
		if cand, err = sound.LoadWAV(*candidatePath, 0); err != nil {
			cliutil.Die("failed to read candidate: %v", err)
		}
	case *projectPath != "":
		if cand, err = renderCandidate(*projectPath, *soundsDir); err != nil {
			cliutil.Die("failed to render candidate: %v", err)
		}
		if *writeCandidate != "" {
			if err := cliutil.WritePCMWAV(*writeCandidate, cand, 16); err != nil {
				cliutil.Die("failed to write candidate wav: %v", err)
			}
		}
	default:
		cliutil.Die("either -candidate or -project is required")
	}

	metrics, err := analysis.Compare(ref, cand)
	if err != nil {
		cliutil.Die("compare failed: %v", err)
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			cliutil.Die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Printf("Time RMSE:        %.6f (max diff %.6f)\n", metrics.TimeRMSE, metrics.MaxAbsDiff)
	fmt.Printf("Gain diff:        %+.2f dB\n", metrics.GainDiffDB)
	fmt.Printf("Envelope RMSE:    %.2f dB\n", metrics.EnvelopeRMSEDB)
	fmt.Printf("Spectral RMSE:    %.2f dB\n", metrics.SpectralRMSEDB)
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n\n", metrics.Similarity*100.0)

	refSum, err := analysis.Summarize(ref)
	if err != nil {
		cliutil.Die("%v", err)
	}
	candSum, err := analysis.Summarize(cand)
	if err != nil {
		cliutil.Die("%v", err)
	}
	for i, b := range analysis.Bands {
		diff := candSum.BandDBFS[i] - refSum.BandDBFS[i]
		marker := ""
		if diff > 3 || diff < -3 {
			marker = " <<<"
		}
		fmt.Printf("  %-10s (%5.0f-%5.0f Hz)  ref=%6.1fdB  cand=%6.1fdB  diff=%+5.1fdB%s\n",
			b.Name, b.LoHz, b.HiHz, refSum.BandDBFS[i], candSum.BandDBFS[i], diff, marker)
	}
}

func renderCandidate(projectPath, soundsDir string) (*sound.Buffer, error) {
	p, err := project.Load(projectPath)
	if err != nil {
		return nil, err
	}
	r, err := render.New(render.DefaultOptions())
	if err != nil {
		return nil, err
	}
	lib := sound.NewLibrary(render.SampleRate, nil)
	if _, err := lib.LoadDir(soundsDir); err != nil {
		return nil, err
	}
	tmap := tempo.New(p)
	withAudio, _ := p.WithAudio(lib, tmap)
	res, err := r.RenderBuffer(context.Background(), withAudio, tmap)
	if err != nil {
		return nil, err
	}
	return res.Buffer, nil
}
