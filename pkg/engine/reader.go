package engine

import (
	"github.com/iximiuz/pq/pkg/model"
)

// RecordSource is the mapped record stream the SampleReader pulls from.
// It is implemented by the mapper stage's output iterator.
type RecordSource interface {
	// Next returns the next record, or ok=false once the source is
	// exhausted.
	Next() (model.Record, bool, error)
}

// SampleReader wraps a RecordSource and fans its samples out to many
// cursors, walking the underlying source exactly once regardless of how
// many selectors read from it (spec §4.2).
//
// A garbage-collected runtime doesn't need the weak-reference cursor
// registry the spec's design notes describe for a non-GC target; this
// still keeps cursors in a handle-keyed table rather than holding direct
// pointers, so refill walks live cursors without needing them to
// deregister themselves.
type SampleReader struct {
	src        RecordSource
	cursors    map[int]*cursorState
	nextHandle int
	drained    bool
}

type cursorState struct {
	buf []model.Sample
}

// NewSampleReader wraps src.
func NewSampleReader(src RecordSource) *SampleReader {
	return &SampleReader{src: src, cursors: make(map[int]*cursorState)}
}

// Cursor is a private, ordered view over every sample the reader produces
// from the moment the cursor was created.
type Cursor struct {
	reader *SampleReader
	handle int
}

// NewCursor registers a new cursor against the reader's underlying stream.
func (r *SampleReader) NewCursor() *Cursor {
	h := r.nextHandle
	r.nextHandle++
	r.cursors[h] = &cursorState{}
	return &Cursor{reader: r, handle: h}
}

// Close drops the cursor's registration, so it no longer receives samples
// on refill. Callers that build a cursor they never intend to exhaust
// should call this to free its buffer; per spec §4.2 the evaluator's
// contract is that every cursor it constructs is actually driven, so this
// is a safety valve, not the common path.
func (c *Cursor) Close() {
	delete(c.reader.cursors, c.handle)
}

// Read pops the next sample from the cursor's buffer, triggering a reader
// refill when empty. ok is false once both the cursor's buffer and the
// underlying source are exhausted.
func (c *Cursor) Read() (model.Sample, bool, error) {
	return c.reader.read(c.handle)
}

func (r *SampleReader) read(handle int) (model.Sample, bool, error) {
	st, ok := r.cursors[handle]
	if !ok {
		return model.Sample{}, false, nil
	}
	for len(st.buf) == 0 {
		if r.drained {
			return model.Sample{}, false, nil
		}
		if err := r.refill(); err != nil {
			return model.Sample{}, false, err
		}
	}
	s := st.buf[0]
	st.buf = st.buf[1:]
	return s, true, nil
}

// refill pulls records from the source until one yields samples (skipping
// untimestamped records, spec §4.2: "pulls the next *timestamped*
// record"), or the source is exhausted, and pushes the resulting samples
// into every live cursor's buffer.
func (r *SampleReader) refill() error {
	for {
		rec, ok, err := r.src.Next()
		if err != nil {
			return err
		}
		if !ok {
			r.drained = true
			return nil
		}
		samples := rec.Samples()
		if len(samples) == 0 {
			continue
		}
		for _, cs := range r.cursors {
			cs.buf = append(cs.buf, samples...)
		}
		return nil
	}
}
