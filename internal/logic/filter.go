package logic

import "sort"

// Median returns the median of values, or false when values is empty.
// The input is copied and left untouched. For an even count the lower of
// the two middle elements is returned; the pair is never averaged.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[(len(sorted)-1)/2], true
}

// History is a bounded FIFO of readings, most recent last.
// Not safe for concurrent use.
type History struct {
	values   []float64
	capacity int
}

// NewHistory creates an empty history holding at most capacity readings.
func NewHistory(capacity int) *History {
	return &History{
		values:   make([]float64, 0, capacity+1),
		capacity: capacity,
	}
}

// Record appends v and evicts the single oldest reading if the history
// grew past its capacity.
func (h *History) Record(v float64) {
	h.values = append(h.values, v)
	if len(h.values) > h.capacity {
		copy(h.values, h.values[1:])
		h.values = h.values[:len(h.values)-1]
	}
}

// Values returns a copy of the readings, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

// Len returns the number of readings held.
func (h *History) Len() int {
	return len(h.values)
}

// Cap returns the window size.
func (h *History) Cap() int {
	return h.capacity
}

// Full reports whether the history holds a whole window.
func (h *History) Full() bool {
	return len(h.values) >= h.capacity
}

// Median returns the median of the current history.
func (h *History) Median() (float64, bool) {
	return Median(h.values)
}
