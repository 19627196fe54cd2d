package audiofile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwhitten/go-parley/pkg/audiofile"
)

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utt.wav")

	w, err := audiofile.NewWriter(path, 48000, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	samples := make([]int16, 4800) // 100ms at 48kHz
	for i := range samples {
		samples[i] = int16(i % 256)
	}
	if err := w.WriteSamples(samples[:2400]); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := w.WriteSamples(samples[2400:]); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, info, err := audiofile.ReadSamples(path)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if info.SampleRate != 48000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("unexpected info: %+v", info)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range got {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
	if d := info.Duration(); d != 100*time.Millisecond {
		t.Errorf("expected 100ms duration, got %v", d)
	}
}

func TestWriterFinalizeOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utt.wav")
	w, err := audiofile.NewWriter(path, 48000, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := w.Finalize(); err != audiofile.ErrFinalized {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
	if err := w.WriteSamples([]int16{1}); err != audiofile.ErrFinalized {
		t.Errorf("expected ErrFinalized on write, got %v", err)
	}
}

func TestWriterDiscard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utt.wav")
	w, err := audiofile.NewWriter(path, 48000, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Discard()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected artifact removed, stat err = %v", err)
	}
}

func TestReadInfoRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not a wav file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := audiofile.ReadInfo(path); err == nil {
		t.Error("expected error for non-WAV data")
	}
}

func TestReadInfoRejectsTruncatedFmt(t *testing.T) {
	// RIFF/WAVE header with a fmt chunk claiming only 8 bytes.
	var buf []byte
	buf = append(buf, "RIFF"...)
	buf = append(buf, 0x20, 0x00, 0x00, 0x00)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, 0x08, 0x00, 0x00, 0x00)
	buf = append(buf, make([]byte, 8)...)

	path := filepath.Join(t.TempDir(), "short_fmt.wav")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := audiofile.ReadInfo(path); err != audiofile.ErrNotWAV {
		t.Errorf("expected ErrNotWAV, got %v", err)
	}
}

func TestReadInfoSkipsOddSizedChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "padded.wav")
	if err := audiofile.WriteFile(path, make([]int16, 480), 48000, 1); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Splice an odd-sized LIST chunk (plus its pad byte) between the RIFF
	// header and the fmt chunk.
	extra := append([]byte("LIST"), 0x05, 0x00, 0x00, 0x00)
	extra = append(extra, 'p', 'a', 'r', 'l', 'y', 0x00)
	var buf []byte
	buf = append(buf, raw[:12]...)
	buf = append(buf, extra...)
	buf = append(buf, raw[12:]...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := audiofile.ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.SampleRate != 48000 || info.Channels != 1 || info.Samples != 480 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestTempPathUnique(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		p := audiofile.TempPath(dir, "utt")
		if seen[p] {
			t.Fatalf("duplicate temp path: %s", p)
		}
		seen[p] = true
		if !strings.HasPrefix(filepath.Base(p), "utt_") || !strings.HasSuffix(p, ".wav") {
			t.Fatalf("unexpected temp path shape: %s", p)
		}
	}
}

func TestRemoveTolerant(t *testing.T) {
	if err := audiofile.Remove(filepath.Join(t.TempDir(), "gone.wav")); err != nil {
		t.Errorf("expected nil for missing file, got %v", err)
	}
	if err := audiofile.Remove(""); err != nil {
		t.Errorf("expected nil for empty path, got %v", err)
	}
}
