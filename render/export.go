package render

import (
	"context"
	"fmt"

	"github.com/cwbudde/algo-mixdown/encode"
	"github.com/cwbudde/algo-mixdown/project"
	"github.com/cwbudde/algo-mixdown/tempo"
)

// MIME types of exported blobs.
const (
	MIMEWAV = "audio/wav"
	MIMEMP3 = "audio/mp3"
)

// Blob is an encoded mixdown.
type Blob struct {
	Data []byte
	MIME string
}

// RenderWAV renders p and encodes the left and right channels as 16-bit WAV.
func (r *Renderer) RenderWAV(ctx context.Context, p *project.Project, tmap tempo.Map) (Blob, error) {
	res, err := r.RenderBuffer(ctx, p, tmap)
	if err != nil {
		return Blob{}, err
	}
	return EncodeWAV(res), nil
}

// RenderMP3 renders p and encodes it as stereo MP3 in 1152-sample blocks.
// Encoder failures are returned unchanged in the error chain.
func (r *Renderer) RenderMP3(ctx context.Context, p *project.Project, tmap tempo.Map) (Blob, error) {
	res, err := r.RenderBuffer(ctx, p, tmap)
	if err != nil {
		return Blob{}, err
	}
	return r.EncodeMP3(ctx, res)
}

// EncodeWAV encodes an already rendered result as 16-bit stereo WAV.
func EncodeWAV(res *Result) Blob {
	buf := res.Buffer
	samples := encode.Interleave(buf.Channel(0), buf.Channel(1))
	return Blob{Data: encode.WAV(samples, buf.SampleRate, 2), MIME: MIMEWAV}
}

// EncodeMP3 encodes an already rendered result with the configured encoder.
func (r *Renderer) EncodeMP3(ctx context.Context, res *Result) (Blob, error) {
	buf := res.Buffer
	enc, err := r.opts.MP3.NewEncoder(ctx, buf.SampleRate, r.opts.MP3)
	if err != nil {
		return Blob{}, fmt.Errorf("mp3 encoder: %w", err)
	}
	data, err := encode.MP3(enc, encode.ToInt16(buf.Channel(0)), encode.ToInt16(buf.Channel(1)))
	if err != nil {
		return Blob{}, fmt.Errorf("[%s] mp3: %w", res.RenderID, err)
	}
	r.log.Debugf("[%s] encoded %d bytes of mp3", res.RenderID, len(data))
	return Blob{Data: data, MIME: MIMEMP3}, nil
}
