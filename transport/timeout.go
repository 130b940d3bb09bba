package transport

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tevino/abool"
)

// ErrReadTimeout is returned by a ReadTimeout reader whose Read blocked
// longer than its timeout.
var ErrReadTimeout = errors.New("transport: read timed out")

// TimeoutReader is a body whose reads are bounded in time.
type TimeoutReader struct {
	rc       io.ReadCloser
	d        time.Duration
	timer    *time.Timer
	timedOut *abool.AtomicBool
	once     sync.Once
}

// ReadTimeout wraps body so that a Read blocking longer than d closes the
// body and fails with ErrReadTimeout. Closing the body is what unblocks
// the pending Read.
func ReadTimeout(body io.ReadCloser, d time.Duration) *TimeoutReader {
	r := &TimeoutReader{
		rc:       body,
		d:        d,
		timedOut: abool.New(),
	}
	r.timer = time.AfterFunc(d, r.expire)
	r.timer.Stop()
	return r
}

func (r *TimeoutReader) expire() {
	r.timedOut.Set()
	r.close()
}

func (r *TimeoutReader) close() error {
	var err error
	r.once.Do(func() {
		err = r.rc.Close()
	})
	return err
}

// Read implements io.Reader.
func (r *TimeoutReader) Read(p []byte) (int, error) {
	if r.timedOut.IsSet() {
		return 0, ErrReadTimeout
	}
	r.timer.Reset(r.d)
	n, err := r.rc.Read(p)
	r.timer.Stop()
	if err != nil && r.timedOut.IsSet() {
		return n, ErrReadTimeout
	}
	return n, err
}

// TimedOut reports whether the reader was closed by its timeout.
func (r *TimeoutReader) TimedOut() bool {
	return r.timedOut.IsSet()
}

// Close stops the timer and closes the body. It is safe to call more
// than once.
func (r *TimeoutReader) Close() error {
	r.timer.Stop()
	return r.close()
}
