package httpd

// span addresses bytes of a readBuffer. A span taken before the buffer was
// reset or compacted resolves to nil.
type span struct {
	start int
	end   int
	gen   uint32
}

type readBuffer struct {
	buf    []byte
	filled int
	gen    uint32
}

func newReadBuffer(buf []byte) readBuffer {
	return readBuffer{buf: buf, gen: 1}
}

func (b *readBuffer) span(start int, end int) span {
	return span{start: start, end: end, gen: b.gen}
}

// bytes returns the spanned bytes, or nil for a stale or empty span.
func (b *readBuffer) bytes(s span) []byte {
	if s.gen != b.gen || s.start >= s.end || s.end > b.filled {
		return nil
	}
	return b.buf[s.start:s.end]
}

func (b *readBuffer) full() bool {
	return b.filled >= len(b.buf)
}

func (b *readBuffer) free() []byte {
	return b.buf[b.filled:]
}

func (b *readBuffer) reset() {
	b.filled = 0
	b.gen++
}

// compact moves the unread tail starting at from to the front of the buffer.
func (b *readBuffer) compact(from int) {
	if from >= b.filled {
		b.reset()
		return
	}
	b.filled = copy(b.buf, b.buf[from:b.filled])
	b.gen++
}
