package capture

import (
	"gopkg.in/hraban/opus.v2"
)

// Decoder turns one compressed frame into PCM16 samples.
type Decoder interface {
	// Decode writes decoded samples into pcm and returns the count.
	Decode(payload []byte, pcm []int16) (int, error)

	// Close releases decoder resources. Called before the artifact writer
	// is finalized.
	Close() error
}

// DecoderFactory creates a Decoder for the given PCM parameters.
type DecoderFactory func(sampleRate, channels int) (Decoder, error)

// opusDecoder wraps libopus via hraban/opus.
type opusDecoder struct {
	dec *opus.Decoder
}

// NewOpusDecoder creates the production opus decoder.
func NewOpusDecoder(sampleRate, channels int) (Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &opusDecoder{dec: dec}, nil
}

func (d *opusDecoder) Decode(payload []byte, pcm []int16) (int, error) {
	return d.dec.Decode(payload, pcm)
}

func (d *opusDecoder) Close() error {
	// libopus decoder state is freed by the finalizer; nothing buffered.
	d.dec = nil
	return nil
}

var _ Decoder = (*opusDecoder)(nil)
