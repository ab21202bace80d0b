// Package meter wires github.com/rcrowley/go-metrics into the named
// read/write meters that core/rawdb/freezer_table.go keeps per table
// (readMeter, writeMeter metrics.Meter, marked on every Retrieve/Append).
// This generalizes that per-table pair to one per named substructure, plus
// a probe-depth histogram for the SmashMap.
package meter

import "github.com/rcrowley/go-metrics"

// Pair is the read/write throughput meters for one substructure.
type Pair struct {
	Reads  metrics.Meter
	Writes metrics.Meter
}

// NewPair returns a fresh, unregistered meter pair.
func NewPair() Pair {
	return Pair{
		Reads:  metrics.NewMeter(),
		Writes: metrics.NewMeter(),
	}
}

// MarkRead records n bytes read.
func (p Pair) MarkRead(n int) {
	if p.Reads != nil {
		p.Reads.Mark(int64(n))
	}
}

// MarkWrite records n bytes written.
func (p Pair) MarkWrite(n int) {
	if p.Writes != nil {
		p.Writes.Mark(int64(n))
	}
}

// NewProbeDepth returns a histogram suitable for recording SmashMap probe
// depths (number of slots visited per Get/Insert).
func NewProbeDepth() metrics.Histogram {
	return metrics.NewHistogram(metrics.NewUniformSample(1028))
}
