package metrics

import "time"

// durationRing is a fixed-capacity ring of durations. Once full, each add
// overwrites the oldest entry.
type durationRing struct {
	buf   []time.Duration
	idx   int
	count int
}

func newDurationRing(n int) *durationRing {
	if n < 1 {
		n = 1
	}
	return &durationRing{buf: make([]time.Duration, n)}
}

func (r *durationRing) add(d time.Duration) {
	r.buf[r.idx] = d
	r.idx++
	if r.idx >= len(r.buf) {
		r.idx = 0
	}
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *durationRing) reset() {
	clear(r.buf)
	r.idx = 0
	r.count = 0
}

type durationStats struct {
	last time.Duration
	max  time.Duration
	avg  time.Duration
	n    int
}

func (r *durationRing) stats() durationStats {
	if r.count == 0 {
		return durationStats{}
	}
	var sum, maxD time.Duration
	for i := 0; i < r.count; i++ {
		d := r.buf[i]
		sum += d
		if d > maxD {
			maxD = d
		}
	}

	lastIdx := r.idx - 1
	if lastIdx < 0 {
		lastIdx = len(r.buf) - 1
	}

	return durationStats{
		last: r.buf[lastIdx],
		max:  maxD,
		avg:  sum / time.Duration(r.count),
		n:    r.count,
	}
}
