package pty

// ring is a fixed-capacity byte ring holding the most recent terminal
// output. A full ring evicts the oldest bytes, so an observer attaching
// mid-session replays at most cap bytes of scrollback.
type ring struct {
	buf   []byte
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 256 << 10
	}
	return &ring{buf: make([]byte, capacity)}
}

// Write appends p, evicting from the front when capacity is exceeded.
func (r *ring) Write(p []byte) {
	n := len(p)
	if n == 0 {
		return
	}
	capn := len(r.buf)
	if n >= capn {
		// Only the tail of p survives.
		copy(r.buf, p[n-capn:])
		r.start = 0
		r.size = capn
		return
	}

	end := (r.start + r.size) % capn
	first := copy(r.buf[end:], p)
	if first < n {
		copy(r.buf, p[first:])
	}

	r.size += n
	if r.size > capn {
		r.start = (r.start + r.size - capn) % capn
		r.size = capn
	}
}

// Bytes returns the buffered output in arrival order.
func (r *ring) Bytes() []byte {
	out := make([]byte, r.size)
	first := copy(out, r.buf[r.start:min(r.start+r.size, len(r.buf))])
	if first < r.size {
		copy(out[first:], r.buf[:r.size-first])
	}
	return out
}

// Len returns the number of buffered bytes.
func (r *ring) Len() int {
	return r.size
}
