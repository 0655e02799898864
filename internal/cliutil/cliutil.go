// Package cliutil holds helpers shared by the command-line tools.
package cliutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/wav"
	"github.com/pion/logging"

	"github.com/cwbudde/algo-mixdown/sound"
)

// Format is an output file format.
type Format string

const (
	FormatWAV   Format = "wav"   // 16-bit PCM via the mixdown encoder
	FormatWAV24 Format = "wav24" // 24-bit PCM via the go-audio encoder
	FormatMP3   Format = "mp3"
)

// Die prints to stderr and exits with status 1.
func Die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// ParseFormat parses an explicit format name, or infers it from the output
// path when raw is empty.
func ParseFormat(raw, outPath string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		v = strings.TrimPrefix(strings.ToLower(filepath.Ext(outPath)), ".")
	}
	switch Format(v) {
	case FormatWAV, FormatWAV24, FormatMP3:
		return Format(v), nil
	}
	return "", fmt.Errorf("unknown format %q (use wav, wav24 or mp3)", v)
}

// ParseWorkers parses a worker count; "auto" returns 0.
func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}

// NewLoggerFactory returns a pion logger factory at the named level
// (error, warn, info, debug, trace or disabled).
func NewLoggerFactory(level string) (*logging.DefaultLoggerFactory, error) {
	lf := logging.NewDefaultLoggerFactory()
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "disabled", "off":
		lf.DefaultLogLevel = logging.LogLevelDisabled
	case "error":
		lf.DefaultLogLevel = logging.LogLevelError
	case "warn", "":
		lf.DefaultLogLevel = logging.LogLevelWarn
	case "info":
		lf.DefaultLogLevel = logging.LogLevelInfo
	case "debug":
		lf.DefaultLogLevel = logging.LogLevelDebug
	case "trace":
		lf.DefaultLogLevel = logging.LogLevelTrace
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return lf, nil
}

// WriteFile writes data, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WritePCMWAV writes buf as integer PCM at the given bit depth.
func WritePCMWAV(path string, buf *sound.Buffer, bitDepth int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, buf.SampleRate, bitDepth, buf.NumChannels(), 1)
	if err := enc.Write(buf.Float32Buffer(bitDepth)); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
