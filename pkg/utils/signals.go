package utils

import (
	"math"
	"sync"
)

// MockTransport implements the bar Transport contract for testing. It keeps
// a copy of every frame it receives.
type MockTransport struct {
	mu     sync.Mutex
	Frames [][]float32
	Err    error // returned from Send when set
	Closed bool
}

// Send stores a copy of bars for later inspection instead of transmitting.
func (m *MockTransport) Send(bars []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	frame := make([]float32, len(bars))
	copy(frame, bars)
	m.Frames = append(m.Frames, frame)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Count returns the number of frames received so far.
func (m *MockTransport) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Frames)
}

// Last returns the most recent frame, or nil.
func (m *MockTransport) Last() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Frames) == 0 {
		return nil
	}
	return m.Frames[len(m.Frames)-1]
}

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics,
// peaking just below full scale.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateConstant returns size samples all equal to value.
func GenerateConstant(size int, value float32) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

// FindPeak returns the index of the largest value in values[start:end+1],
// clamping the range to the slice.
func FindPeak(values []float32, start, end int) int {
	if len(values) == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end >= len(values) {
		end = len(values) - 1
	}
	if start > end {
		return start
	}

	peak := start
	peakValue := values[start]
	for i := start + 1; i <= end; i++ {
		if values[i] > peakValue {
			peakValue = values[i]
			peak = i
		}
	}
	return peak
}
