package encode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// ErrEncoderClosed reports use of an encoder after Flush or Close.
var ErrEncoderClosed = errors.New("encoder already flushed")

// FFmpegConfig selects the ffmpeg binary and output format.
type FFmpegConfig struct {
	Path       string // defaults to "ffmpeg" on PATH
	SampleRate int
	Channels   int
	Kbps       int
}

// FFmpegEncoder is a BlockEncoder that pipes 16-bit PCM through an ffmpeg
// process running libmp3lame. Output produced so far is returned from each
// EncodeBuffer call; the rest arrives on Flush.
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	mu      sync.Mutex
	pending bytes.Buffer
	readErr error
	done    chan struct{}

	channels int
	scratch  []byte
	closed   bool
}

// NewFFmpeg starts ffmpeg. The process is killed if ctx is cancelled.
func NewFFmpeg(ctx context.Context, cfg FFmpegConfig) (*FFmpegEncoder, error) {
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.Channels < 1 || cfg.Channels > 2 {
		return nil, fmt.Errorf("ffmpeg encoder: unsupported channel count %d", cfg.Channels)
	}
	if cfg.SampleRate <= 0 || cfg.Kbps <= 0 {
		return nil, fmt.Errorf("ffmpeg encoder: invalid rate %d Hz / %d kbps", cfg.SampleRate, cfg.Kbps)
	}

	cmd := exec.CommandContext(ctx, cfg.Path,
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(cfg.Kbps)+"k",
		"-f", "mp3",
		"-loglevel", "error",
		"pipe:1",
	)
	e := &FFmpegEncoder{cmd: cmd, channels: cfg.Channels, done: make(chan struct{})}
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	e.stdin = stdin

	go e.drain(stdout)
	return e, nil
}

func (e *FFmpegEncoder) drain(r io.Reader) {
	defer close(e.done)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			e.mu.Lock()
			e.pending.Write(buf[:n])
			e.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				e.mu.Lock()
				e.readErr = err
				e.mu.Unlock()
			}
			return
		}
	}
}

func (e *FFmpegEncoder) take() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readErr != nil {
		return nil, e.readErr
	}
	out := append([]byte(nil), e.pending.Bytes()...)
	e.pending.Reset()
	return out, nil
}

// EncodeBuffer writes one block of PCM. right is ignored for mono output.
func (e *FFmpegEncoder) EncodeBuffer(left, right []int16) ([]byte, error) {
	if e.closed {
		return nil, ErrEncoderClosed
	}
	n := len(left)
	if e.channels == 2 && len(right) < n {
		return nil, fmt.Errorf("right channel has %d samples, want %d", len(right), n)
	}
	size := n * 2 * e.channels
	if cap(e.scratch) < size {
		e.scratch = make([]byte, size)
	}
	pcm := e.scratch[:size]
	off := 0
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[off:], uint16(left[i]))
		off += 2
		if e.channels == 2 {
			binary.LittleEndian.PutUint16(pcm[off:], uint16(right[i]))
			off += 2
		}
	}
	if _, err := e.stdin.Write(pcm); err != nil {
		return nil, fmt.Errorf("write pcm: %w", err)
	}
	return e.take()
}

// Flush closes the input, waits for ffmpeg to finish and returns the
// remaining output.
func (e *FFmpegEncoder) Flush() ([]byte, error) {
	if e.closed {
		return nil, ErrEncoderClosed
	}
	e.closed = true
	if err := e.stdin.Close(); err != nil {
		e.kill()
		return nil, fmt.Errorf("close pcm pipe: %w", err)
	}
	<-e.done
	if err := e.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(e.stderr.Bytes()))
	}
	return e.take()
}

// Close abandons the encode: ffmpeg is killed and reaped and pending output
// is dropped. It is a no-op after Flush.
func (e *FFmpegEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	_ = e.stdin.Close()
	e.kill()
	return nil
}

func (e *FFmpegEncoder) kill() {
	// Kill fails only when the process already exited; Wait reaps it either way.
	_ = e.cmd.Process.Kill()
	<-e.done
	_ = e.cmd.Wait()
}
