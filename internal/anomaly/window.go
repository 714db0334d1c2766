// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package anomaly

// window is the training window. With a positive capacity it is a ring
// buffer that drops the oldest vector; with capacity 0 it grows without bound.
type window struct {
	capacity int
	items    [][]float64
	start    int
}

func newWindow(capacity int) *window {
	w := &window{capacity: capacity}
	if capacity > 0 {
		w.items = make([][]float64, 0, capacity)
	}
	return w
}

func (w *window) add(v []float64) {
	if w.capacity <= 0 || len(w.items) < w.capacity {
		w.items = append(w.items, v)
		return
	}
	w.items[w.start] = v
	w.start = (w.start + 1) % w.capacity
}

func (w *window) len() int {
	return len(w.items)
}

// snapshot returns the vectors oldest first. The vectors themselves are shared.
func (w *window) snapshot() [][]float64 {
	out := make([][]float64, 0, len(w.items))
	out = append(out, w.items[w.start:]...)
	out = append(out, w.items[:w.start]...)
	return out
}
