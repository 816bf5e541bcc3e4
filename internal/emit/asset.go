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

// AssetRecordSize is the packed size of one asset table entry.
const AssetRecordSize = 48

// AssetRecord locates one packed asset payload in the shared asset data
// file. Audio, materials, geometry, and scenes all live here.
type AssetRecord struct {
	Offset  uint64
	Size    uint64
	Kind    uint32
	Version uint32
	Sig     [SigPrefixLen]byte
}

func (r AssetRecord) pack(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], r.Offset)
	binary.LittleEndian.PutUint64(buf[8:], r.Size)
	binary.LittleEndian.PutUint32(buf[16:], r.Kind)
	binary.LittleEndian.PutUint32(buf[20:], r.Version)
	copy(buf[24:48], r.Sig[:])
}

func parseAssetRecord(buf []byte) AssetRecord {
	var r AssetRecord
	r.Offset = binary.LittleEndian.Uint64(buf[0:])
	r.Size = binary.LittleEndian.Uint64(buf[8:])
	r.Kind = binary.LittleEndian.Uint32(buf[16:])
	r.Version = binary.LittleEndian.Uint32(buf[20:])
	copy(r.Sig[:], buf[24:48])
	return r
}

// AssetRecords parses an asset table.
func AssetRecords(t *Table) ([]AssetRecord, error) {
	if t.RecordSize != AssetRecordSize {
		return nil, fmt.Errorf("record size %d, want %d", t.RecordSize, AssetRecordSize)
	}
	out := make([]AssetRecord, t.Count)
	for i := range out {
		out[i] = parseAssetRecord(t.record(i))
	}
	return out, nil
}

// AssetEmitter deduplicates packed assets into assets.dat. All payloads
// share one alignment from the cooking configuration. Emit and Finalize
// belong to the job goroutine.
type AssetEmitter struct {
	data      *DataFile
	tablePath string
	align     int64
	bySig     map[Signature]uint32
	records   []AssetRecord
	finalized bool
}

// NewAssetEmitter opens the asset data file under dir with the given
// placement alignment.
func NewAssetEmitter(dir string, writers, align int) (*AssetEmitter, error) {
	if align < 1 {
		align = 64
	}
	data, err := OpenDataFile(filepath.Join(dir, AssetDataName), writers)
	if err != nil {
		return nil, err
	}
	return &AssetEmitter{
		data:      data,
		tablePath: filepath.Join(dir, AssetTableName),
		align:     int64(align),
		bySig:     make(map[Signature]uint32),
	}, nil
}

// Emit registers a packed asset and returns its stable table index.
func (e *AssetEmitter) Emit(a cook.CookedAsset) (index uint32, added bool) {
	sig := sign(domainAsset, []uint32{uint32(a.Kind), a.Version}, a.Payload)
	if idx, ok := e.bySig[sig]; ok {
		return idx, false
	}
	start := e.data.Reserve(int64(len(a.Payload)), e.align)
	if len(a.Payload) > 0 {
		e.data.QueueWrite(start, a.Payload)
	}
	idx := uint32(len(e.records))
	e.records = append(e.records, AssetRecord{
		Offset:  uint64(start),
		Size:    uint64(len(a.Payload)),
		Kind:    uint32(a.Kind),
		Version: a.Version,
		Sig:     sig.Prefix(),
	})
	e.bySig[sig] = idx
	return idx, true
}

// Record returns an emitted record by index.
func (e *AssetEmitter) Record(index uint32) AssetRecord {
	return e.records[index]
}

// Count returns how many distinct assets were emitted.
func (e *AssetEmitter) Count() int { return len(e.records) }

// Size returns the reserved data file size.
func (e *AssetEmitter) Size() int64 { return e.data.Size() }

// PendingCount returns writes not yet attempted.
func (e *AssetEmitter) PendingCount() int { return e.data.PendingCount() }

// ErrorCount returns failed writes.
func (e *AssetEmitter) ErrorCount() int { return e.data.ErrorCount() }

// DataPath returns the data file location.
func (e *AssetEmitter) DataPath() string { return e.data.Path() }

// TablePath returns the table file location.
func (e *AssetEmitter) TablePath() string { return e.tablePath }

// Finalize drains outstanding writes, settles the data file, and writes the
// packed table. Write failures surface here and skip the table.
func (e *AssetEmitter) Finalize(ctx context.Context) error {
	if e.finalized {
		return nil
	}
	e.finalized = true
	if err := e.data.Close(ctx); err != nil {
		return err
	}
	if n := e.data.ErrorCount(); n > 0 {
		return diag.Wrap(diag.ErrIO, "emit", "finalize",
			fmt.Sprintf("%d asset writes failed", n), errors.Join(e.data.Errors()...))
	}
	records := e.records
	return writeTable(e.tablePath, AssetRecordSize, len(records), func(buf []byte) {
		for i, r := range records {
			r.pack(buf[i*AssetRecordSize:])
		}
	})
}

// Discard drains and closes the data file without writing a table.
func (e *AssetEmitter) Discard(ctx context.Context) error {
	if e.finalized {
		return nil
	}
	e.finalized = true
	return e.data.Close(ctx)
}
