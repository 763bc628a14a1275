// SPDX-License-Identifier: MIT
package analysis

import "sync"

// tables are the precomputed, read-only inputs of the aggregator. Once
// published through the cache they are never written again.
type tables struct {
	window []float32
	bins   []BinRange
}

// tableKey holds exactly the parameters the tables depend on.
type tableKey struct {
	fftSize    int
	barCount   int
	sampleRate float64
	freqMin    float64
	freqMax    float64
	window     WindowFunc
}

func keyFor(p Params) tableKey {
	return tableKey{
		fftSize:    p.FFTSize,
		barCount:   p.BarCount,
		sampleRate: p.SampleRate,
		freqMin:    p.FreqMin,
		freqMax:    p.FreqMax,
		window:     p.Window,
	}
}

// tableCache shares table sets between analyzers with the same
// configuration for the life of the process.
var tableCache = struct {
	sync.Mutex
	entries map[tableKey]*tables
}{entries: make(map[tableKey]*tables)}

// sharedTables returns the table set for p, building it on first request.
func sharedTables(p Params) *tables {
	key := keyFor(p)

	tableCache.Lock()
	defer tableCache.Unlock()

	if t, ok := tableCache.entries[key]; ok {
		return t
	}
	t := &tables{
		window: NewWindow(p.FFTSize, p.Window),
		bins:   ComputeBinMap(p),
	}
	tableCache.entries[key] = t
	return t
}
