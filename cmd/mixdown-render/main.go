package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pion/logging"

	"github.com/cwbudde/algo-mixdown/analysis"
	"github.com/cwbudde/algo-mixdown/internal/cliutil"
	"github.com/cwbudde/algo-mixdown/preset"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/render"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

type job struct {
	projectPath string
	outputPath  string
}

type report struct {
	Project  string           `json:"project"`
	Output   string           `json:"output"`
	RenderID string           `json:"render_id"`
	Clips    int              `json:"clips_scheduled"`
	Omitted  []render.ClipRef `json:"omitted,omitempty"`
	Missing  []string         `json:"missing_sounds,omitempty"`
	Summary  analysis.Summary `json:"summary"`
}

func main() {
	presetPath := flag.String("preset", "", "Render preset (JSON or YAML); defaults apply when empty")
	soundsDir := flag.String("sounds", "", "Directory of WAV sounds; overrides the preset's sounds_dir")
	output := flag.String("output", "", "Output path for a single project (default: <project>.<format>)")
	outDir := flag.String("out-dir", "", "Output directory when rendering several projects")
	formatName := flag.String("format", "", "wav, wav24 or mp3 (default: from -output, else wav)")
	origin := flag.Float64("origin", -1, "Start position in seconds; overrides the preset when >= 0")
	workersRaw := flag.String("workers", "auto", "Parallel renders: integer >= 1 or 'auto'")
	logLevel := flag.String("log-level", "warn", "error, warn, info, debug, trace or disabled")
	jsonOut := flag.Bool("json", false, "Print render reports as JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		cliutil.Die("usage: mixdown-render [flags] project.json [project.yaml ...]")
	}
	if *output != "" && flag.NArg() > 1 {
		cliutil.Die("-output needs exactly one project; use -out-dir for several")
	}
	format, err := cliutil.ParseFormat(*formatName, defaultOutput(*output))
	if err != nil {
		cliutil.Die("%v", err)
	}
	workers, err := cliutil.ParseWorkers(*workersRaw)
	if err != nil {
		cliutil.Die("invalid -workers: %v", err)
	}
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	lf, err := cliutil.NewLoggerFactory(*logLevel)
	if err != nil {
		cliutil.Die("%v", err)
	}
	log := lf.NewLogger("mixdown-render")

	opts := render.DefaultOptions()
	dir := ""
	if *presetPath != "" {
		p, err := preset.Load(*presetPath)
		if err != nil {
			cliutil.Die("failed to load preset: %v", err)
		}
		opts, dir = p.Options, p.SoundsDir
	}
	if *soundsDir != "" {
		dir = *soundsDir
	}
	if *origin >= 0 {
		opts.Origin = *origin
	}
	opts.LoggerFactory = lf

	r, err := render.New(opts)
	if err != nil {
		cliutil.Die("invalid render options: %v", err)
	}

	lib := sound.NewLibrary(opts.SampleRate, lf)
	if dir != "" {
		n, err := lib.LoadDir(dir)
		if err != nil {
			cliutil.Die("failed to load sounds: %v", err)
		}
		log.Infof("loaded %d sounds from %s", n, dir)
	}

	jobs := make([]job, flag.NArg())
	for i, path := range flag.Args() {
		out := *output
		if out == "" {
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "." + extension(format)
			out = filepath.Join(*outDir, base)
			if *outDir == "" {
				out = filepath.Join(filepath.Dir(path), base)
			}
		}
		jobs[i] = job{projectPath: path, outputPath: out}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reports := make([]report, len(jobs))
	errs := make([]error, len(jobs))
	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(workers, len(jobs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				reports[i], errs[i] = run(ctx, r, lib, format, jobs[i], log)
			}
		}()
	}
	for i := range jobs {
		next <- i
	}
	close(next)
	wg.Wait()

	failed := false
	for i, rep := range reports {
		if errs[i] != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", jobs[i].projectPath, errs[i])
			failed = true
			continue
		}
		printReport(rep, *jsonOut)
	}
	if failed {
		os.Exit(1)
	}
}

func run(ctx context.Context, r *render.Renderer, lib *sound.Library, format cliutil.Format, j job, log logging.LeveledLogger) (report, error) {
	p, err := project.Load(j.projectPath)
	if err != nil {
		return report{}, err
	}
	tmap := tempo.New(p)
	withAudio, missing := p.WithAudio(lib, tmap)
	for _, name := range missing {
		log.Warnf("%s: sound %q not found, clips stay silent", j.projectPath, name)
	}

	res, err := r.RenderBuffer(ctx, withAudio, tmap)
	if err != nil {
		return report{}, err
	}
	switch format {
	case cliutil.FormatWAV24:
		err = cliutil.WritePCMWAV(j.outputPath, res.Buffer, 24)
	case cliutil.FormatMP3:
		var blob render.Blob
		if blob, err = r.EncodeMP3(ctx, res); err == nil {
			err = cliutil.WriteFile(j.outputPath, blob.Data)
		}
	default:
		err = cliutil.WriteFile(j.outputPath, render.EncodeWAV(res).Data)
	}
	if err != nil {
		return report{}, fmt.Errorf("write %s: %w", j.outputPath, err)
	}

	sum, err := analysis.Summarize(res.Buffer)
	if err != nil {
		return report{}, err
	}
	clips := 0
	for _, s := range res.Scheduled {
		if s.Play {
			clips++
		}
	}
	return report{
		Project:  j.projectPath,
		Output:   j.outputPath,
		RenderID: res.RenderID,
		Clips:    clips,
		Omitted:  res.Omitted,
		Missing:  missing,
		Summary:  sum,
	}, nil
}

func printReport(rep report, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			cliutil.Die("json encode failed: %v", err)
		}
		return
	}
	s := rep.Summary
	fmt.Printf("Wrote %s\n", rep.Output)
	fmt.Printf("Render %s: %d clips, %d omitted, %d missing sounds\n", rep.RenderID, rep.Clips, len(rep.Omitted), len(rep.Missing))
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Frames: %d\n", s.SampleRate, s.Seconds, s.Frames)
	fmt.Printf("Peak: %.2f dBFS, RMS: %.2f dBFS, Clipped: %d, Centroid: %.0f Hz\n",
		s.PeakDBFS, s.RMSDBFS, s.ClippedSamples, s.SpectralCentroidHz)
}

func defaultOutput(output string) string {
	if output == "" {
		return "mix.wav"
	}
	return output
}

func extension(f cliutil.Format) string {
	if f == cliutil.FormatMP3 {
		return "mp3"
	}
	return "wav"
}
