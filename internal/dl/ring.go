package dl

// ring is a size-bounded circular buffer with a running sum. A fresh ring
// holds a single zero so the first window worth of pushes averages against a
// neutral seed instead of an empty denominator.
type ring struct {
	buf  []float64
	head int
	n    int
	sum  float64
}

func newRing(size int) *ring {
	if size < 1 {
		size = 1
	}

	r := &ring{buf: make([]float64, size)}
	r.n = 1 // seed zero occupies the head slot

	return r
}

// push appends v, evicting the oldest value once the buffer is full. The sum
// is updated against the current head, which is the element the next append
// would displace.
func (r *ring) push(v float64) {
	r.sum += v - r.buf[r.head]

	if r.n == len(r.buf) {
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return
	}

	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring) Sum() float64 { return r.sum }
