// Package audiofile reads and writes the PCM16 WAV artifacts produced by
// capture and synthesis. Every artifact is single-channel 16-bit linear PCM;
// one artifact belongs to exactly one conversation turn.
package audiofile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	headerSize = 44
	bitDepth   = 16
)

// Errors returned by readers and writers.
var (
	ErrFinalized = errors.New("audiofile: writer already finalized")
	ErrNotWAV    = errors.New("audiofile: not a RIFF/WAVE file")
)

// Info describes a WAV artifact.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    int
}

// Duration returns the playback duration of the described audio.
func (i Info) Duration() time.Duration {
	if i.SampleRate == 0 || i.Channels == 0 {
		return 0
	}
	frames := i.Samples / i.Channels
	return time.Duration(frames) * time.Second / time.Duration(i.SampleRate)
}

// Writer persists PCM16 samples to a WAV file. The header is written with
// placeholder sizes and patched in Finalize, which also syncs the file so the
// artifact is durable before anyone reads it.
type Writer struct {
	f          *os.File
	path       string
	sampleRate int
	channels   int
	samples    int
	finalized  bool
}

// NewWriter creates the artifact file and writes the provisional header.
func NewWriter(path string, sampleRate, channels int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audiofile: create %s: %w", path, err)
	}

	w := &Writer{f: f, path: path, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("audiofile: write header: %w", err)
	}
	return w, nil
}

// WriteSamples appends PCM16 samples to the artifact.
func (w *Writer) WriteSamples(samples []int16) error {
	if w.finalized {
		return ErrFinalized
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("audiofile: write samples: %w", err)
	}
	w.samples += len(samples)
	return nil
}

// SampleCount returns the number of samples written so far.
func (w *Writer) SampleCount() int {
	return w.samples
}

// Duration returns the duration of the audio written so far.
func (w *Writer) Duration() time.Duration {
	return Info{SampleRate: w.sampleRate, Channels: w.channels, Samples: w.samples}.Duration()
}

// Path returns the artifact path.
func (w *Writer) Path() string {
	return w.path
}

// Finalize patches the header sizes, flushes the file to stable storage and
// closes it. A nil return is the "fully flushed" acknowledgment; after it the
// artifact on disk is complete and safe to read.
func (w *Writer) Finalize() error {
	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		w.f.Close()
		return fmt.Errorf("audiofile: seek header: %w", err)
	}
	if err := w.writeHeader(w.samples * 2); err != nil {
		w.f.Close()
		return fmt.Errorf("audiofile: patch header: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("audiofile: sync: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("audiofile: close: %w", err)
	}
	return nil
}

// Discard abandons the artifact, closing and removing the file.
func (w *Writer) Discard() {
	w.finalized = true
	w.f.Close()
	os.Remove(w.path)
}

func (w *Writer) writeHeader(dataSize int) error {
	var hdr [headerSize]byte

	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")

	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(w.sampleRate*w.channels*2))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(w.channels*2))
	binary.LittleEndian.PutUint16(hdr[34:36], bitDepth)

	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))

	_, err := w.f.Write(hdr[:])
	return err
}

// WriteFile writes a complete WAV artifact from PCM16 samples in one call.
func WriteFile(path string, samples []int16, sampleRate, channels int) error {
	w, err := NewWriter(path, sampleRate, channels)
	if err != nil {
		return err
	}
	if err := w.WriteSamples(samples); err != nil {
		w.Discard()
		return err
	}
	return w.Finalize()
}

// ReadInfo parses the WAV header of an artifact.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("audiofile: open %s: %w", path, err)
	}
	defer f.Close()

	info, _, err := readHeader(f)
	return info, err
}

// ReadSamples reads all PCM16 samples from an artifact.
func ReadSamples(path string) ([]int16, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("audiofile: open %s: %w", path, err)
	}
	defer f.Close()

	info, dataSize, err := readHeader(f)
	if err != nil {
		return nil, Info{}, err
	}

	raw := make([]byte, dataSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, Info{}, fmt.Errorf("audiofile: read data: %w", err)
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, info, nil
}

// readHeader walks the RIFF chunks up to the data chunk.
func readHeader(f *os.File) (Info, int, error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return Info{}, 0, fmt.Errorf("audiofile: read riff: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Info{}, 0, ErrNotWAV
	}

	var info Info
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return Info{}, 0, fmt.Errorf("audiofile: read chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := int(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			// A PCM fmt chunk carries at least 16 bytes.
			if size < 16 {
				return Info{}, 0, ErrNotWAV
			}
			fmtData := make([]byte, size)
			if _, err := io.ReadFull(f, fmtData); err != nil {
				return Info{}, 0, fmt.Errorf("audiofile: read fmt: %w", err)
			}
			info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			info.BitDepth = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			if size%2 == 1 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return Info{}, 0, fmt.Errorf("audiofile: skip fmt pad: %w", err)
				}
			}
		case "data":
			info.Samples = size / 2
			return info, size, nil
		default:
			// RIFF chunks are word-aligned; odd sizes carry a pad byte.
			if _, err := f.Seek(int64(size+size%2), io.SeekCurrent); err != nil {
				return Info{}, 0, fmt.Errorf("audiofile: skip chunk %q: %w", id, err)
			}
		}
	}
}
