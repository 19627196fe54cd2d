// Package playback plays synthesized reply artifacts into a voice channel.
//
// The player reads a PCM16 WAV artifact, resamples it to the channel rate,
// encodes 20ms opus frames, and paces them out in real time. Playback on a
// given channel is serialized: a Play call blocks while another reply is
// still sounding on the same channel, so overlapping replies queue rather
// than interleave.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mwhitten/go-parley/pkg/audiofile"
	"github.com/mwhitten/go-parley/pkg/transport"
)

// frameDuration is the opus packet duration sent to the channel.
const frameDuration = 20 * time.Millisecond

// Config holds player configuration.
type Config struct {
	// SampleRate is the channel's PCM rate in Hz.
	SampleRate int

	// Channels is the channel's PCM channel count.
	Channels int
}

// DefaultConfig returns the standard voice channel format.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		Channels:   1,
	}
}

// Option customizes a Player.
type Option func(*Player)

// WithEncoderFactory overrides the opus encoder constructor. Tests use this
// to substitute a passthrough encoder.
func WithEncoderFactory(f EncoderFactory) Option {
	return func(p *Player) {
		p.newEncoder = f
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		p.logger = logger.With("component", "playback")
	}
}

// WithOnPlaybackStart registers a callback fired when a channel goes from
// idle to sounding.
func WithOnPlaybackStart(fn func(channelID string)) Option {
	return func(p *Player) {
		p.onStart = fn
	}
}

// WithOnPlaybackEnd registers a callback fired when a channel goes idle.
func WithOnPlaybackEnd(fn func(channelID string)) Option {
	return func(p *Player) {
		p.onEnd = fn
	}
}

// Player sends encoded reply audio to voice channels.
type Player struct {
	cfg        Config
	out        transport.AudioOut
	newEncoder EncoderFactory
	logger     *slog.Logger

	onStart func(channelID string)
	onEnd   func(channelID string)

	mu       sync.Mutex
	channels map[string]*sync.Mutex
}

// New creates a Player sending to out.
func New(cfg Config, out transport.AudioOut, opts ...Option) *Player {
	p := &Player{
		cfg:        cfg,
		out:        out,
		newEncoder: NewOpusEncoder,
		logger:     slog.Default().With("component", "playback"),
		channels:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// channelLock returns the per-channel serialization lock.
func (p *Player) channelLock(channelID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.channels[channelID]
	if !ok {
		lock = &sync.Mutex{}
		p.channels[channelID] = lock
	}
	return lock
}

// Play sends the artifact at path to the channel and blocks until the
// channel is idle again. Concurrent calls for the same channel run one at
// a time in arrival order.
func (p *Player) Play(ctx context.Context, channelID, path string) error {
	samples, info, err := audiofile.ReadSamples(path)
	if err != nil {
		return fmt.Errorf("playback: read artifact: %w", err)
	}

	if info.Channels == 2 {
		samples = downmix(samples)
	}
	if info.SampleRate != p.cfg.SampleRate {
		samples = resample(samples, info.SampleRate, p.cfg.SampleRate)
	}

	lock := p.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if p.onStart != nil {
		p.onStart(channelID)
	}
	defer func() {
		if p.onEnd != nil {
			p.onEnd(channelID)
		}
	}()

	enc, err := p.newEncoder(p.cfg.SampleRate, p.cfg.Channels)
	if err != nil {
		return fmt.Errorf("playback: create encoder: %w", err)
	}

	start := time.Now()
	frameSamples := p.cfg.SampleRate / 50 * p.cfg.Channels
	packet := make([]byte, maxPacketSize)

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var sent int
	for off := 0; off < len(samples); off += frameSamples {
		end := off + frameSamples
		frame := samples[off:min(end, len(samples))]
		if len(frame) < frameSamples {
			padded := make([]int16, frameSamples)
			copy(padded, frame)
			frame = padded
		}

		n, err := enc.Encode(frame, packet)
		if err != nil {
			return fmt.Errorf("playback: encode frame: %w", err)
		}

		if err := p.out.SendFrame(channelID, packet[:n], frameDuration); err != nil {
			return fmt.Errorf("playback: send frame: %w", err)
		}
		sent++

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.logger.Debug("playback complete",
		"channel", channelID,
		"frames", sent,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// downmix folds interleaved stereo samples to mono.
func downmix(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		mono[i] = int16((int32(samples[2*i]) + int32(samples[2*i+1])) / 2)
	}
	return mono
}

// resample converts audio from srcRate to dstRate with linear interpolation.
func resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(dstRate) / float64(srcRate)
	newLen := int(float64(len(samples)) * ratio)
	result := make([]int16, newLen)

	for i := 0; i < newLen; i++ {
		srcIdx := float64(i) / ratio
		idx := int(srcIdx)
		if idx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			frac := srcIdx - float64(idx)
			result[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
		}
	}

	return result
}
