package encode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFloatToInt16(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{2, 32767},
		{-3, -32768},
		{0.5, 16383},
		{-0.5, -16384},
	}
	for _, tc := range cases {
		if got := FloatToInt16(tc.in); got != tc.want {
			t.Fatalf("FloatToInt16(%g) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestWAVHeaderIsExact(t *testing.T) {
	samples := []float32{0, 1, -1, 2}
	b := WAV(samples, 44100, 2)
	if len(b) != 44+8 {
		t.Fatalf("length = %d, want 52", len(b))
	}
	le := binary.LittleEndian
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"riff size", le.Uint32(b[4:8]), 40},
		{"fmt size", le.Uint32(b[16:20]), 16},
		{"format", uint32(le.Uint16(b[20:22])), 1},
		{"channels", uint32(le.Uint16(b[22:24])), 2},
		{"sample rate", le.Uint32(b[24:28]), 44100},
		{"byte rate", le.Uint32(b[28:32]), 44100 * 4},
		{"block align", uint32(le.Uint16(b[32:34])), 4},
		{"bits", uint32(le.Uint16(b[34:36])), 16},
		{"data size", le.Uint32(b[40:44]), 8},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	for off, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if string(b[off:off+4]) != tag {
			t.Fatalf("tag at %d = %q, want %q", off, b[off:off+4], tag)
		}
	}
	want := []int16{0, 32767, -32768, 32767}
	for i, w := range want {
		if got := int16(le.Uint16(b[44+2*i:])); got != w {
			t.Fatalf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestWAVByteRateIgnoresChannels(t *testing.T) {
	b := WAV([]float32{0, 0}, 22050, 1)
	if got := binary.LittleEndian.Uint32(b[28:32]); got != 22050*4 {
		t.Fatalf("byte rate = %d, want %d", got, 22050*4)
	}
	if got := binary.LittleEndian.Uint16(b[32:34]); got != 2 {
		t.Fatalf("block align = %d, want 2", got)
	}
}

func TestInterleave(t *testing.T) {
	got := Interleave([]float32{1, 2, 3}, []float32{-1, -2})
	want := []float32{1, -1, 2, -2, 3, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// recorder records block sizes and emits one byte per block, skipping the
// first block to exercise empty outputs.
type recorder struct {
	blocks  []int
	flushed bool
	failAt  int
}

func (r *recorder) EncodeBuffer(left, right []int16) ([]byte, error) {
	r.blocks = append(r.blocks, len(left))
	if r.failAt > 0 && len(r.blocks) == r.failAt {
		return nil, errors.New("boom")
	}
	if len(r.blocks) == 1 {
		return nil, nil
	}
	return []byte{byte(len(r.blocks))}, nil
}

func (r *recorder) Flush() ([]byte, error) {
	r.flushed = true
	return []byte{0xFF}, nil
}

func TestMP3ChunksInBlocks(t *testing.T) {
	n := 2*BlockSize + 100
	left, right := make([]int16, n), make([]int16, n)
	rec := &recorder{}
	out, err := MP3(rec, left, right)
	if err != nil {
		t.Fatalf("MP3: %v", err)
	}
	if len(rec.blocks) != 3 || rec.blocks[0] != BlockSize || rec.blocks[1] != BlockSize || rec.blocks[2] != 100 {
		t.Fatalf("unexpected blocks: %v", rec.blocks)
	}
	if !rec.flushed {
		t.Fatal("expected flush")
	}
	if !bytes.Equal(out, []byte{2, 3, 0xFF}) {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestMP3PropagatesEncoderErrors(t *testing.T) {
	n := 3 * BlockSize
	rec := &recorder{failAt: 2}
	if _, err := MP3(rec, make([]int16, n), make([]int16, n)); err == nil {
		t.Fatal("expected encoder error")
	}
	if rec.flushed {
		t.Fatal("must not flush after a failed block")
	}
}

// closingRecorder is a recorder that also counts Close calls.
type closingRecorder struct {
	recorder
	closes int
}

func (r *closingRecorder) Close() error {
	r.closes++
	return nil
}

func TestMP3ClosesEncoderOnlyOnFailure(t *testing.T) {
	n := 3 * BlockSize
	ok := &closingRecorder{}
	if _, err := MP3(ok, make([]int16, n), make([]int16, n)); err != nil {
		t.Fatalf("MP3: %v", err)
	}
	if ok.closes != 0 {
		t.Fatalf("successful encode closed the encoder %d times", ok.closes)
	}
	failed := &closingRecorder{recorder: recorder{failAt: 2}}
	if _, err := MP3(failed, make([]int16, n), make([]int16, n)); err == nil {
		t.Fatal("expected encoder error")
	}
	if failed.closes != 1 {
		t.Fatalf("failed encode closed the encoder %d times, want 1", failed.closes)
	}
}

func TestMP3RejectsMismatchedChannels(t *testing.T) {
	if _, err := MP3(&recorder{}, make([]int16, 3), make([]int16, 2)); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestFFmpegEncoderProducesFrames(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	enc, err := NewFFmpeg(t.Context(), FFmpegConfig{SampleRate: 44100, Channels: 2, Kbps: 160})
	if err != nil {
		t.Fatalf("NewFFmpeg: %v", err)
	}
	n := 44100 / 2
	left, right := make([]int16, n), make([]int16, n)
	for i := range left {
		left[i] = int16((i % 100) * 300)
		right[i] = -left[i]
	}
	out, err := MP3(enc, left, right)
	if err != nil {
		t.Fatalf("MP3: %v", err)
	}
	if len(out) < 1000 {
		t.Fatalf("suspiciously small output: %d bytes", len(out))
	}
	if _, err := enc.EncodeBuffer(left[:1], right[:1]); !errors.Is(err, ErrEncoderClosed) {
		t.Fatalf("expected ErrEncoderClosed, got %v", err)
	}
}

// fakeFFmpeg writes a stand-in for ffmpeg that reads a few bytes of PCM and
// exits, so later writes fail with a broken pipe.
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nhead -c 16 >/dev/null\nexit 0\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegEncoderReapedAfterWriteFailure(t *testing.T) {
	enc, err := NewFFmpeg(t.Context(), FFmpegConfig{Path: fakeFFmpeg(t), SampleRate: 44100, Channels: 2, Kbps: 160})
	if err != nil {
		t.Fatalf("NewFFmpeg: %v", err)
	}
	// Far more than a pipe buffer, so a write is still pending when the
	// process exits.
	n := 200 * BlockSize
	if _, err := MP3(enc, make([]int16, n), make([]int16, n)); err == nil {
		t.Fatal("expected a write error from the exited process")
	}
	if enc.cmd.ProcessState == nil {
		t.Fatal("ffmpeg process was not waited for")
	}
	select {
	case <-enc.done:
	default:
		t.Fatal("output reader still running")
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := enc.EncodeBuffer(make([]int16, 1), make([]int16, 1)); !errors.Is(err, ErrEncoderClosed) {
		t.Fatalf("expected ErrEncoderClosed, got %v", err)
	}
}

func TestFFmpegEncoderCloseBeforeFlush(t *testing.T) {
	enc, err := NewFFmpeg(t.Context(), FFmpegConfig{Path: fakeFFmpeg(t), SampleRate: 44100, Channels: 1, Kbps: 128})
	if err != nil {
		t.Fatalf("NewFFmpeg: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.cmd.ProcessState == nil {
		t.Fatal("ffmpeg process was not waited for")
	}
	if _, err := enc.Flush(); !errors.Is(err, ErrEncoderClosed) {
		t.Fatalf("expected ErrEncoderClosed after Close, got %v", err)
	}
}
