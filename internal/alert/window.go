package alert

// Window holds the last N temperatures and reports a sustained breach when
// every one of them is strictly above the ceiling.
type Window struct {
	values  []float64
	next    int
	ceiling float64
}

// NewWindow returns a window of the given size pre-filled with a sentinel
// below the ceiling, so no breach is reported before size real samples.
func NewWindow(size int, ceiling float64) *Window {
	if size < 1 {
		size = 1
	}

	sentinel := 0.0
	if ceiling <= sentinel {
		sentinel = ceiling - 1
	}

	values := make([]float64, size)
	for i := range values {
		values[i] = sentinel
	}

	return &Window{values: values, ceiling: ceiling}
}

// Push evicts the oldest value, appends t and reports whether all values now
// exceed the ceiling.
func (w *Window) Push(t float64) bool {
	w.values[w.next] = t
	w.next = (w.next + 1) % len(w.values)

	for _, v := range w.values {
		// NaN compares false both ways and must not count as a breach.
		if !(v > w.ceiling) {
			return false
		}
	}
	return true
}

// Values returns a copy of the window, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, len(w.values))
	out = append(out, w.values[w.next:]...)
	out = append(out, w.values[:w.next]...)
	return out
}

func (w *Window) Len() int {
	return len(w.values)
}

func (w *Window) Ceiling() float64 {
	return w.ceiling
}
