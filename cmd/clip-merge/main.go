package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/cwbudde/algo-mixdown/analysis"
	"github.com/cwbudde/algo-mixdown/internal/cliutil"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/render"
	"github.com/cwbudde/algo-mixdown/sound"
	"github.com/cwbudde/algo-mixdown/tempo"
)

func main() {
	projectPath := flag.String("project", "", "Project file (JSON or YAML)")
	soundsDir := flag.String("sounds", "sounds", "Directory of WAV sounds")
	track := flag.Int("track", 0, "Track whose clips are merged; -1 merges every track")
	measures := flag.Float64("measures", 0, "Preview length in measures; <= 0 derives it from the clips")
	bpm := flag.Float64("bpm", 0, "Constant tempo override; 0 uses the project's tempo map")
	output := flag.String("output", "merged.wav", "Output path (.wav or .mp3)")
	logLevel := flag.String("log-level", "warn", "error, warn, info, debug, trace or disabled")
	flag.Parse()

	if *projectPath == "" {
		cliutil.Die("-project is required")
	}
	format, err := cliutil.ParseFormat("", *output)
	if err != nil {
		cliutil.Die("%v", err)
	}
	lf, err := cliutil.NewLoggerFactory(*logLevel)
	if err != nil {
		cliutil.Die("%v", err)
	}

	p, err := project.Load(*projectPath)
	if err != nil {
		cliutil.Die("failed to load project: %v", err)
	}
	var tmap tempo.Map = tempo.New(p)
	if *bpm > 0 {
		tmap = tempo.Constant(*bpm)
	}

	lib := sound.NewLibrary(render.SampleRate, lf)
	if _, err := lib.LoadDir(*soundsDir); err != nil {
		cliutil.Die("failed to load sounds: %v", err)
	}
	withAudio, missing := p.WithAudio(lib, tmap)
	for _, name := range missing {
		fmt.Printf("warning: sound %q not found\n", name)
	}

	var clips []project.Clip
	for i, t := range withAudio.Tracks {
		if *track < 0 || i == *track {
			clips = append(clips, t.Clips...)
		}
	}
	if len(clips) == 0 {
		cliutil.Die("no clips on track %d", *track)
	}

	opts := render.DefaultOptions()
	opts.LoggerFactory = lf
	r, err := render.New(opts)
	if err != nil {
		cliutil.Die("%v", err)
	}

	length := *measures
	if length <= 0 {
		length = render.MergeLength(clips)
	}
	ctx := context.Background()
	buf, err := r.MergeClipsFor(ctx, clips, tmap, length)
	if err != nil {
		cliutil.Die("merge failed: %v", err)
	}
	if buf.Frames() == 0 {
		cliutil.Die("merged preview is empty; pass -measures")
	}

	res := &render.Result{Buffer: buf, RenderID: "clip-merge"}
	blob := render.EncodeWAV(res)
	if format == cliutil.FormatMP3 {
		if blob, err = r.EncodeMP3(ctx, res); err != nil {
			cliutil.Die("%v", err)
		}
	}
	if err := cliutil.WriteFile(*output, blob.Data); err != nil {
		cliutil.Die("failed to write %s: %v", *output, err)
	}

	s, err := analysis.Summarize(buf)
	if err != nil {
		cliutil.Die("%v", err)
	}
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("Merged %d clips over %.2f measures: %.3f s, peak %.2f dBFS\n", len(clips), length, s.Seconds, s.PeakDBFS)
}
