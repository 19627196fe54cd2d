// Package capture records one speaker's utterance from the voice transport.
//
// Each capture runs a small per-speaker state machine:
//
//	Idle → Listening → Draining → Finalizing → Idle
//
// Listening decodes opus frames to PCM16 and persists them to a fresh WAV
// artifact, resetting a silence timer on every frame. The silence timer
// firing, or the transport closing the frame stream, moves the capture to
// Draining: the subscription is cancelled, the decoder is closed first and
// the artifact writer second, and only after the writer's flush
// acknowledgment is the completed Utterance emitted. The session registry
// guarantees at most one capture per speaker at any time.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitten/go-parley/pkg/audiofile"
	"github.com/mwhitten/go-parley/pkg/session"
	"github.com/mwhitten/go-parley/pkg/transport"
)

// Errors returned by Capture.
var (
	ErrSpeakerBusy     = errors.New("capture: speaker already has an active capture")
	ErrNothingCaptured = errors.New("capture: no audio received")
)

// maxFrameSamples is the largest decoded opus frame (120ms at 48kHz).
const maxFrameSamples = 5760

// Utterance is one continuous span of a speaker's audio, bounded by silence,
// persisted as a single artifact. Immutable once emitted; the consumer owns
// the artifact and deletes it when the turn ends.
type Utterance struct {
	SpeakerID  string
	Path       string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Config holds capture tuning.
type Config struct {
	// SilenceTimeout is the duration of no new audio after which the
	// utterance is considered complete. One value for the whole system.
	SilenceTimeout time.Duration

	// SampleRate and Channels describe the decoded PCM.
	SampleRate int
	Channels   int

	// TempDir is where utterance artifacts are written.
	TempDir string
}

// DefaultConfig returns capture defaults: 2s silence window, 48kHz mono.
func DefaultConfig() Config {
	return Config{
		SilenceTimeout: 2 * time.Second,
		SampleRate:     48000,
		Channels:       1,
	}
}

// Capturer records utterances for any number of speakers concurrently,
// guarded by the session registry.
type Capturer struct {
	cfg        Config
	registry   *session.Registry
	recv       transport.Receiver
	newDecoder DecoderFactory
	logger     *slog.Logger
}

// New creates a Capturer. A nil decoder factory selects the opus decoder.
func New(cfg Config, registry *session.Registry, recv transport.Receiver, opts ...Option) *Capturer {
	c := &Capturer{
		cfg:        cfg,
		registry:   registry,
		recv:       recv,
		newDecoder: NewOpusDecoder,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithDecoderFactory overrides the frame decoder, e.g. for tests.
func WithDecoderFactory(f DecoderFactory) Option {
	return func(c *Capturer) { c.newDecoder = f }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) { c.logger = l }
}

// Capture records one utterance for the speaker and returns it once the
// artifact is fully flushed. It returns ErrSpeakerBusy without side effects
// when a capture is already active for the speaker. Cancelling the context
// abandons the capture: the artifact is discarded and ctx.Err() returned.
// Exactly one of the utterance or the error is ever produced per call.
func (c *Capturer) Capture(ctx context.Context, speakerID string) (*Utterance, error) {
	if !c.registry.TryBegin(speakerID) {
		return nil, ErrSpeakerBusy
	}
	defer c.registry.End(speakerID)

	logger := c.logger.With("speaker", speakerID)

	subCtx, unsubscribe := context.WithCancel(ctx)
	defer unsubscribe()

	frames, err := c.recv.Subscribe(subCtx, speakerID)
	if err != nil {
		return nil, fmt.Errorf("capture: subscribe: %w", err)
	}

	dec, err := c.newDecoder(c.cfg.SampleRate, c.cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("capture: decoder: %w", err)
	}

	writer, err := audiofile.NewWriter(audiofile.TempPath(c.cfg.TempDir, "utt"), c.cfg.SampleRate, c.cfg.Channels)
	if err != nil {
		dec.Close()
		return nil, fmt.Errorf("capture: artifact: %w", err)
	}

	logger.Debug("listening", "artifact", writer.Path())

	// Listening: every frame resets the silence timer.
	pcm := make([]int16, maxFrameSamples)
	timer := time.NewTimer(c.cfg.SilenceTimeout)
	defer timer.Stop()

	decodeErrors := 0

listening:
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				// Transport signalled end-of-stream.
				break listening
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.cfg.SilenceTimeout)

			n, derr := dec.Decode(frame.Payload, pcm)
			if derr != nil {
				// A corrupt frame must not abort the utterance.
				decodeErrors++
				logger.Warn("dropping undecodable frame", "err", derr, "bytes", len(frame.Payload))
				continue
			}
			if werr := writer.WriteSamples(pcm[:n]); werr != nil {
				// Writer failure: fail open, no utterance.
				unsubscribe()
				dec.Close()
				writer.Discard()
				logger.Error("capture failed writing artifact", "err", werr)
				return nil, fmt.Errorf("capture: %w", werr)
			}

		case <-timer.C:
			break listening

		case <-ctx.Done():
			unsubscribe()
			dec.Close()
			writer.Discard()
			return nil, ctx.Err()
		}
	}

	// Draining: no new frames accepted past this point.
	unsubscribe()

	// Finalizing: decoder first, then writer; await the flush acknowledgment
	// before anything may read the artifact.
	if cerr := dec.Close(); cerr != nil {
		logger.Warn("decoder close", "err", cerr)
	}

	duration := writer.Duration()
	samples := writer.SampleCount()
	path := writer.Path()

	if ferr := writer.Finalize(); ferr != nil {
		audiofile.Remove(path)
		logger.Error("capture failed flushing artifact", "err", ferr)
		return nil, fmt.Errorf("capture: %w", ferr)
	}

	if samples == 0 {
		audiofile.Remove(path)
		return nil, ErrNothingCaptured
	}

	logger.Debug("utterance finalized",
		"artifact", path,
		"duration", duration,
		"decode_errors", decodeErrors,
	)

	return &Utterance{
		SpeakerID:  speakerID,
		Path:       path,
		SampleRate: c.cfg.SampleRate,
		Channels:   c.cfg.Channels,
		Duration:   duration,
	}, nil
}
