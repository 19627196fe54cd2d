package playback

import (
	"gopkg.in/hraban/opus.v2"
)

// maxPacketSize bounds an encoded opus packet. libopus recommends 4000
// bytes for the worst case.
const maxPacketSize = 4000

// Encoder turns a PCM16 frame into one compressed packet.
type Encoder interface {
	// Encode writes the compressed frame into buf and returns the byte count.
	Encode(pcm []int16, buf []byte) (int, error)
}

// EncoderFactory creates an Encoder for the given PCM parameters.
type EncoderFactory func(sampleRate, channels int) (Encoder, error)

// opusEncoder wraps libopus via hraban/opus.
type opusEncoder struct {
	enc *opus.Encoder
}

// NewOpusEncoder creates the production opus encoder.
func NewOpusEncoder(sampleRate, channels int) (Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	return &opusEncoder{enc: enc}, nil
}

func (e *opusEncoder) Encode(pcm []int16, buf []byte) (int, error) {
	return e.enc.Encode(pcm, buf)
}

var _ Encoder = (*opusEncoder)(nil)
