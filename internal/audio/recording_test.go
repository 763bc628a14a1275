// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderRoundTrip(t *testing.T) {
	for _, depth := range []int{16, 24, 32} {
		t.Run("", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rec.wav")
			r, err := NewRecorder(path, 8000, depth)
			if err != nil {
				t.Fatalf("NewRecorder(%d): %v", depth, err)
			}
			in := []float32{0, 0.5, -0.5, 0.25, 2, -2, float32(math.NaN()), 1}
			if err := r.Write(in); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if r.Samples() != int64(len(in)) {
				t.Errorf("Samples() = %d, want %d", r.Samples(), len(in))
			}
			if err := r.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			s, err := OpenWAV(path, WAVOptions{FrameSize: len(in)})
			if err != nil {
				t.Fatalf("OpenWAV: %v", err)
			}
			defer s.Close()
			if s.SampleRate() != 8000 || s.Channels() != 1 {
				t.Errorf("format = %v Hz, %d channels", s.SampleRate(), s.Channels())
			}

			out := make([]float32, len(in))
			if err := s.ReadFrame(context.Background(), out); err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			// Out-of-range samples clamp, NaN records as silence.
			want := []float32{0, 0.5, -0.5, 0.25, 1, -1, 0, 1}
			for i := range want {
				if math.Abs(float64(out[i]-want[i])) > 1e-3 {
					t.Errorf("%d-bit sample %d = %v, want %v", depth, i, out[i], want[i])
				}
			}
		})
	}
}

func TestRecorderErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewRecorder(filepath.Join(dir, "x.wav"), 8000, 12); err == nil {
		t.Error("expected error for unsupported bit depth")
	}

	r, err := NewRecorder(filepath.Join(dir, "y.wav"), 8000, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := r.Write([]float32{0}); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("Write after Close = %v, want ErrRecorderClosed", err)
	}
}

func TestRecordingPath(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	got := RecordingPath("out", now)
	want := filepath.Join("out", "visbridge-20250304-050607.wav")
	if got != want {
		t.Errorf("RecordingPath() = %q, want %q", got, want)
	}
}

func TestEngineStopRecordingWithoutRecording(t *testing.T) {
	e := newTestEngine(t, &frameSource{}, nil, Options{})
	if err := e.StopRecording(); err != nil {
		t.Errorf("StopRecording() = %v, want nil", err)
	}
}
