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

// TextureRecordSize is the packed size of one texture table entry.
const TextureRecordSize = 64

// TextureRecord locates one texture payload in the data file and carries the
// metadata a loader needs to upload it.
type TextureRecord struct {
	Offset      uint64
	Size        uint64
	Format      uint32
	Width       uint32
	Height      uint32
	MipLevels   uint32
	ArrayLayers uint32
	RowPitch    uint32
	Sig         [SigPrefixLen]byte
}

func (r TextureRecord) pack(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], r.Offset)
	binary.LittleEndian.PutUint64(buf[8:], r.Size)
	binary.LittleEndian.PutUint32(buf[16:], r.Format)
	binary.LittleEndian.PutUint32(buf[20:], r.Width)
	binary.LittleEndian.PutUint32(buf[24:], r.Height)
	binary.LittleEndian.PutUint32(buf[28:], r.MipLevels)
	binary.LittleEndian.PutUint32(buf[32:], r.ArrayLayers)
	binary.LittleEndian.PutUint32(buf[36:], r.RowPitch)
	copy(buf[40:64], r.Sig[:])
}

func parseTextureRecord(buf []byte) TextureRecord {
	var r TextureRecord
	r.Offset = binary.LittleEndian.Uint64(buf[0:])
	r.Size = binary.LittleEndian.Uint64(buf[8:])
	r.Format = binary.LittleEndian.Uint32(buf[16:])
	r.Width = binary.LittleEndian.Uint32(buf[20:])
	r.Height = binary.LittleEndian.Uint32(buf[24:])
	r.MipLevels = binary.LittleEndian.Uint32(buf[28:])
	r.ArrayLayers = binary.LittleEndian.Uint32(buf[32:])
	r.RowPitch = binary.LittleEndian.Uint32(buf[36:])
	copy(r.Sig[:], buf[40:64])
	return r
}

// TextureRecords parses a texture table.
func TextureRecords(t *Table) ([]TextureRecord, error) {
	if t.RecordSize != TextureRecordSize {
		return nil, fmt.Errorf("record size %d, want %d", t.RecordSize, TextureRecordSize)
	}
	out := make([]TextureRecord, t.Count)
	for i := range out {
		out[i] = parseTextureRecord(t.record(i))
	}
	return out, nil
}

// TextureEmitter deduplicates cooked textures into textures.dat and keeps the
// table written at finalize. Emit and Finalize belong to the job goroutine.
type TextureEmitter struct {
	data      *DataFile
	tablePath string
	bySig     map[Signature]uint32
	records   []TextureRecord
	finalized bool
}

// NewTextureEmitter opens the texture data file under dir.
func NewTextureEmitter(dir string, writers int) (*TextureEmitter, error) {
	data, err := OpenDataFile(filepath.Join(dir, TextureDataName), writers)
	if err != nil {
		return nil, err
	}
	return &TextureEmitter{
		data:      data,
		tablePath: filepath.Join(dir, TextureTableName),
		bySig:     make(map[Signature]uint32),
	}, nil
}

// Emit registers a cooked texture and returns its stable table index. A
// payload already emitted returns the existing index with added false and
// leaves the data file untouched.
func (e *TextureEmitter) Emit(t cook.CookedTexture) (index uint32, added bool) {
	sig := sign(domainTexture, []uint32{
		uint32(t.Format), t.Width, t.Height, t.MipLevels, t.ArrayLayers, t.RowPitch,
	}, t.Payload)
	if idx, ok := e.bySig[sig]; ok {
		return idx, false
	}
	align := int64(t.RowPitchAlign)
	if align < 1 {
		align = 256
	}
	start := e.data.Reserve(int64(len(t.Payload)), align)
	if len(t.Payload) > 0 {
		e.data.QueueWrite(start, t.Payload)
	}
	idx := uint32(len(e.records))
	e.records = append(e.records, TextureRecord{
		Offset:      uint64(start),
		Size:        uint64(len(t.Payload)),
		Format:      uint32(t.Format),
		Width:       t.Width,
		Height:      t.Height,
		MipLevels:   t.MipLevels,
		ArrayLayers: t.ArrayLayers,
		RowPitch:    t.RowPitch,
		Sig:         sig.Prefix(),
	})
	e.bySig[sig] = idx
	return idx, true
}

// Record returns an emitted record by index.
func (e *TextureEmitter) Record(index uint32) TextureRecord {
	return e.records[index]
}

// Count returns how many distinct textures were emitted.
func (e *TextureEmitter) Count() int { return len(e.records) }

// Size returns the reserved data file size.
func (e *TextureEmitter) Size() int64 { return e.data.Size() }

// PendingCount returns writes not yet attempted.
func (e *TextureEmitter) PendingCount() int { return e.data.PendingCount() }

// ErrorCount returns failed writes.
func (e *TextureEmitter) ErrorCount() int { return e.data.ErrorCount() }

// DataPath returns the data file location.
func (e *TextureEmitter) DataPath() string { return e.data.Path() }

// TablePath returns the table file location.
func (e *TextureEmitter) TablePath() string { return e.tablePath }

// Finalize drains outstanding writes, settles the data file, and writes the
// packed table in one operation. Accumulated write failures surface here and
// skip the table; nothing is retried.
func (e *TextureEmitter) Finalize(ctx context.Context) error {
	if e.finalized {
		return nil
	}
	e.finalized = true
	if err := e.data.Close(ctx); err != nil {
		return err
	}
	if n := e.data.ErrorCount(); n > 0 {
		return diag.Wrap(diag.ErrIO, "emit", "finalize",
			fmt.Sprintf("%d texture writes failed", n), errors.Join(e.data.Errors()...))
	}
	records := e.records
	return writeTable(e.tablePath, TextureRecordSize, len(records), func(buf []byte) {
		for i, r := range records {
			r.pack(buf[i*TextureRecordSize:])
		}
	})
}

// Discard drains and closes the data file without writing a table. Used when
// a job is cancelled.
func (e *TextureEmitter) Discard(ctx context.Context) error {
	if e.finalized {
		return nil
	}
	e.finalized = true
	return e.data.Close(ctx)
}
