package runner

import (
	"bytes"
	"sync"
)

// capWriter keeps at most max bytes and discards the rest while still
// consuming every write, so a child writing gigabytes never blocks on a
// full pipe. Crossing the cap fires onBreach exactly once.
type capWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	max      int64
	written  int64
	breached bool
	onBreach func()
}

func newCapWriter(max int64) *capWriter {
	return &capWriter{max: max}
}

func (w *capWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.mu.Lock()
	w.written += int64(n)
	if w.max <= 0 {
		w.buf.Write(p)
	} else if room := w.max - int64(w.buf.Len()); room > 0 {
		if int64(len(p)) > room {
			p = p[:room]
		}
		w.buf.Write(p)
	}
	breach := w.max > 0 && w.written > w.max && !w.breached
	if breach {
		w.breached = true
	}
	cb := w.onBreach
	w.mu.Unlock()

	if breach && cb != nil {
		cb()
	}
	return n, nil
}

func (w *capWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Bytes()
}

func (w *capWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.breached
}
