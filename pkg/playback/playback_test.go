package playback

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mwhitten/go-parley/pkg/audiofile"
	"github.com/mwhitten/go-parley/pkg/transport"
)

// fakeEncoder emits a fixed-size packet per frame and counts calls.
type fakeEncoder struct {
	mu     sync.Mutex
	frames int
	err    error
}

func (f *fakeEncoder) Encode(pcm []int16, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.frames++
	copy(buf, []byte{0xF8, 0xFF, 0xFE})
	return 3, nil
}

func (f *fakeEncoder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func writeTone(t *testing.T, dir string, samples, rate int) string {
	t.Helper()
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(i % 200)
	}
	path := filepath.Join(dir, "reply.wav")
	if err := audiofile.WriteFile(path, pcm, rate, 1); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestPlaySendsPacedFrames(t *testing.T) {
	out := transport.NewMockAudioOut()
	enc := &fakeEncoder{}

	player := New(DefaultConfig(), out, WithEncoderFactory(func(rate, ch int) (Encoder, error) {
		if rate != 48000 || ch != 1 {
			t.Errorf("encoder params = %d/%d", rate, ch)
		}
		return enc, nil
	}))

	// 100ms at 24kHz resamples to 4800 samples at 48kHz, five 20ms frames.
	path := writeTone(t, t.TempDir(), 2400, 24000)

	if err := player.Play(context.Background(), "chan-1", path); err != nil {
		t.Fatalf("Play: %v", err)
	}

	frames := out.Frames()
	if len(frames) != 5 {
		t.Fatalf("frames = %d, want 5", len(frames))
	}
	for _, f := range frames {
		if f.ChannelID != "chan-1" {
			t.Errorf("ChannelID = %q", f.ChannelID)
		}
		if f.Duration != 20*time.Millisecond {
			t.Errorf("Duration = %v", f.Duration)
		}
		if len(f.Payload) != 3 {
			t.Errorf("payload bytes = %d", len(f.Payload))
		}
	}
	if enc.count() != 5 {
		t.Errorf("encoded frames = %d", enc.count())
	}
}

func TestPlaySerializesPerChannel(t *testing.T) {
	out := transport.NewMockAudioOut()

	var mu sync.Mutex
	var events []string

	player := New(DefaultConfig(), out,
		WithEncoderFactory(func(rate, ch int) (Encoder, error) { return &fakeEncoder{}, nil }),
		WithOnPlaybackStart(func(channelID string) {
			mu.Lock()
			events = append(events, "start")
			mu.Unlock()
		}),
		WithOnPlaybackEnd(func(channelID string) {
			mu.Lock()
			events = append(events, "end")
			mu.Unlock()
		}),
	)

	dir := t.TempDir()
	path := writeTone(t, dir, 4800, 48000) // 100ms, no resample

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := player.Play(context.Background(), "chan-1", path); err != nil {
				t.Errorf("Play: %v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"start", "end", "start", "end"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i, e := range events {
		if e != want[i] {
			t.Fatalf("events = %v, want strict start/end alternation", events)
		}
	}
}

func TestPlayDistinctChannelsConcurrent(t *testing.T) {
	out := transport.NewMockAudioOut()
	player := New(DefaultConfig(), out,
		WithEncoderFactory(func(rate, ch int) (Encoder, error) { return &fakeEncoder{}, nil }),
	)

	dir := t.TempDir()
	path := writeTone(t, dir, 4800, 48000)

	start := time.Now()
	var wg sync.WaitGroup
	for _, ch := range []string{"chan-a", "chan-b"} {
		wg.Add(1)
		go func(channelID string) {
			defer wg.Done()
			if err := player.Play(context.Background(), channelID, path); err != nil {
				t.Errorf("Play(%s): %v", channelID, err)
			}
		}(ch)
	}
	wg.Wait()

	// Two 100ms playbacks on distinct channels should overlap, not stack.
	if elapsed := time.Since(start); elapsed > 180*time.Millisecond {
		t.Errorf("elapsed = %v, distinct channels should play concurrently", elapsed)
	}
}

func TestPlayCancelStopsEarly(t *testing.T) {
	out := transport.NewMockAudioOut()
	player := New(DefaultConfig(), out,
		WithEncoderFactory(func(rate, ch int) (Encoder, error) { return &fakeEncoder{}, nil }),
	)

	path := writeTone(t, t.TempDir(), 48000, 48000) // one second

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := player.Play(ctx, "chan-1", path)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if frames := out.Frames(); len(frames) >= 50 {
		t.Errorf("frames = %d, expected early stop", len(frames))
	}
}

func TestPlayMissingArtifact(t *testing.T) {
	player := New(DefaultConfig(), transport.NewMockAudioOut(),
		WithEncoderFactory(func(rate, ch int) (Encoder, error) { return &fakeEncoder{}, nil }),
	)

	if err := player.Play(context.Background(), "chan-1", "/nonexistent/reply.wav"); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestPlaySendFailure(t *testing.T) {
	out := transport.NewMockAudioOut()
	out.SendErr = errors.New("gateway closed")

	player := New(DefaultConfig(), out,
		WithEncoderFactory(func(rate, ch int) (Encoder, error) { return &fakeEncoder{}, nil }),
	)

	path := writeTone(t, t.TempDir(), 960, 48000)

	if err := player.Play(context.Background(), "chan-1", path); err == nil {
		t.Fatal("expected send error to surface")
	}
}
