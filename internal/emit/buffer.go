package emit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"kiln/internal/cook"
	"kiln/internal/diag"
)

// BufferRecordSize is the packed size of one buffer table entry.
const BufferRecordSize = 48

// BufferRecord locates one buffer payload in the data file.
type BufferRecord struct {
	Offset    uint64
	Size      uint64
	Usage     uint32
	Alignment uint32
	Sig       [SigPrefixLen]byte
}

func (r BufferRecord) pack(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], r.Offset)
	binary.LittleEndian.PutUint64(buf[8:], r.Size)
	binary.LittleEndian.PutUint32(buf[16:], r.Usage)
	binary.LittleEndian.PutUint32(buf[20:], r.Alignment)
	copy(buf[24:48], r.Sig[:])
}

func parseBufferRecord(buf []byte) BufferRecord {
	var r BufferRecord
	r.Offset = binary.LittleEndian.Uint64(buf[0:])
	r.Size = binary.LittleEndian.Uint64(buf[8:])
	r.Usage = binary.LittleEndian.Uint32(buf[16:])
	r.Alignment = binary.LittleEndian.Uint32(buf[20:])
	copy(r.Sig[:], buf[24:48])
	return r
}

// BufferRecords parses a buffer table.
func BufferRecords(t *Table) ([]BufferRecord, error) {
	if t.RecordSize != BufferRecordSize {
		return nil, fmt.Errorf("record size %d, want %d", t.RecordSize, BufferRecordSize)
	}
	out := make([]BufferRecord, t.Count)
	for i := range out {
		out[i] = parseBufferRecord(t.record(i))
	}
	return out, nil
}

// BufferEmitter deduplicates cooked buffers into buffers.dat. Emit and
// Finalize belong to the job goroutine.
type BufferEmitter struct {
	data      *DataFile
	tablePath string
	bySig     map[Signature]uint32
	records   []BufferRecord
	finalized bool
}

// NewBufferEmitter opens the buffer data file under dir.
func NewBufferEmitter(dir string, writers int) (*BufferEmitter, error) {
	data, err := OpenDataFile(filepath.Join(dir, BufferDataName), writers)
	if err != nil {
		return nil, err
	}
	return &BufferEmitter{
		data:      data,
		tablePath: filepath.Join(dir, BufferTableName),
		bySig:     make(map[Signature]uint32),
	}, nil
}

// Emit registers a cooked buffer and returns its stable table index.
func (e *BufferEmitter) Emit(b cook.CookedBuffer) (index uint32, added bool) {
	sig := sign(domainBuffer, []uint32{uint32(b.Usage), b.Alignment}, b.Payload)
	if idx, ok := e.bySig[sig]; ok {
		return idx, false
	}
	align := int64(b.Alignment)
	start := e.data.Reserve(int64(len(b.Payload)), align)
	if len(b.Payload) > 0 {
		e.data.QueueWrite(start, b.Payload)
	}
	idx := uint32(len(e.records))
	e.records = append(e.records, BufferRecord{
		Offset:    uint64(start),
		Size:      uint64(len(b.Payload)),
		Usage:     uint32(b.Usage),
		Alignment: b.Alignment,
		Sig:       sig.Prefix(),
	})
	e.bySig[sig] = idx
	return idx, true
}

// Record returns an emitted record by index.
func (e *BufferEmitter) Record(index uint32) BufferRecord {
	return e.records[index]
}

// Count returns how many distinct buffers were emitted.
func (e *BufferEmitter) Count() int { return len(e.records) }

// Size returns the reserved data file size.
func (e *BufferEmitter) Size() int64 { return e.data.Size() }

// PendingCount returns writes not yet attempted.
func (e *BufferEmitter) PendingCount() int { return e.data.PendingCount() }

// ErrorCount returns failed writes.
func (e *BufferEmitter) ErrorCount() int { return e.data.ErrorCount() }

// DataPath returns the data file location.
func (e *BufferEmitter) DataPath() string { return e.data.Path() }

// TablePath returns the table file location.
func (e *BufferEmitter) TablePath() string { return e.tablePath }

// Finalize drains outstanding writes, settles the data file, and writes the
// packed table. Write failures surface here and skip the table.
func (e *BufferEmitter) Finalize(ctx context.Context) error {
	if e.finalized {
		return nil
	}
	e.finalized = true
	if err := e.data.Close(ctx); err != nil {
		return err
	}
	if n := e.data.ErrorCount(); n > 0 {
		return diag.Wrap(diag.ErrIO, "emit", "finalize",
			fmt.Sprintf("%d buffer writes failed", n), errors.Join(e.data.Errors()...))
	}
	records := e.records
	return writeTable(e.tablePath, BufferRecordSize, len(records), func(buf []byte) {
		for i, r := range records {
			r.pack(buf[i*BufferRecordSize:])
		}
	})
}

// Discard drains and closes the data file without writing a table.
func (e *BufferEmitter) Discard(ctx context.Context) error {
	if e.finalized {
		return nil
	}
	e.finalized = true
	return e.data.Close(ctx)
}
