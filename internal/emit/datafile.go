package emit

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"kiln/internal/diag"
)

const (
	writeQueueDepth = 64
	// maxRecordedErrors caps the retained error list; the counter keeps the
	// true total.
	maxRecordedErrors = 16
)

type writeReq struct {
	off  int64
	data []byte
}

// DataFile is an append-ordered payload file written by background writers.
// Reserve is safe from any goroutine; everything else belongs to the job
// goroutine.
type DataFile struct {
	path    string
	f       *os.File
	size    atomic.Int64
	writes  chan writeReq
	wg      sync.WaitGroup
	pending atomic.Int64
	errn    atomic.Int64
	mu      sync.Mutex
	errs    []error
	closing sync.Once
}

// OpenDataFile creates or truncates the file at path and starts writers
// goroutines servicing the write queue.
func OpenDataFile(path string, writers int) (*DataFile, error) {
	if writers < 1 {
		writers = 1
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, diag.Wrap(diag.ErrIO, "emit", "open", "create data file", err)
	}
	d := &DataFile{
		path:   path,
		f:      f,
		writes: make(chan writeReq, writeQueueDepth),
	}
	d.wg.Add(writers)
	for i := 0; i < writers; i++ {
		go d.writer()
	}
	return d, nil
}

// Path returns the file location.
func (d *DataFile) Path() string {
	return d.path
}

// Size returns the logical end of the file, including reservations whose
// bytes are still queued.
func (d *DataFile) Size() int64 {
	return d.size.Load()
}

// Reserve claims n bytes at the next align boundary and returns the start
// offset. The skipped gap, if any, is queued as a zero write so the file
// content stays deterministic. Lock-free; ranges never overlap.
func (d *DataFile) Reserve(n, align int64) int64 {
	if align < 1 {
		align = 1
	}
	for {
		cur := d.size.Load()
		start := (cur + align - 1) &^ (align - 1)
		if d.size.CompareAndSwap(cur, start+n) {
			if start > cur {
				d.QueueWrite(cur, make([]byte, start-cur))
			}
			return start
		}
	}
}

// QueueWrite hands one positioned write to the writer goroutines. It blocks
// while the queue is full. The caller must not reuse data afterwards.
func (d *DataFile) QueueWrite(off int64, data []byte) {
	d.pending.Add(1)
	d.writes <- writeReq{off: off, data: data}
}

// PendingCount returns queued-or-in-flight writes.
func (d *DataFile) PendingCount() int {
	return int(d.pending.Load())
}

// ErrorCount returns the number of failed writes so far.
func (d *DataFile) ErrorCount() int {
	return int(d.errn.Load())
}

// Errors returns the retained failures.
func (d *DataFile) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]error, len(d.errs))
	copy(out, d.errs)
	return out
}

// Drain blocks until every queued write has been attempted or ctx ends.
func (d *DataFile) Drain(ctx context.Context) error {
	for d.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

// Close drains the queue, stops the writers, and settles the file length to
// the reserved size before syncing. Accumulated write failures do not stop
// the close; the caller checks ErrorCount separately.
func (d *DataFile) Close(ctx context.Context) error {
	if err := d.Drain(ctx); err != nil {
		return err
	}
	d.closing.Do(func() {
		close(d.writes)
	})
	d.wg.Wait()
	if err := d.f.Truncate(d.size.Load()); err != nil {
		d.f.Close()
		return diag.Wrap(diag.ErrIO, "emit", "close", "settle data file length", err)
	}
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return diag.Wrap(diag.ErrIO, "emit", "close", "sync data file", err)
	}
	if err := d.f.Close(); err != nil {
		return diag.Wrap(diag.ErrIO, "emit", "close", "close data file", err)
	}
	return nil
}

func (d *DataFile) writer() {
	defer d.wg.Done()
	for req := range d.writes {
		if _, err := d.f.WriteAt(req.data, req.off); err != nil {
			d.errn.Add(1)
			d.mu.Lock()
			if len(d.errs) < maxRecordedErrors {
				d.errs = append(d.errs, fmt.Errorf("write %d bytes at offset %d: %w", len(req.data), req.off, err))
			}
			d.mu.Unlock()
		}
		d.pending.Add(-1)
	}
}
