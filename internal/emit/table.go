package emit

import (
	"encoding/binary"
	"fmt"
	"os"

	"kiln/internal/diag"
)

// Packed table format: a 16-byte header followed by fixed-size records.
const (
	tableMagic      = "KTB1"
	tableVersion    = 1
	tableHeaderSize = 16
)

// Output file names inside a job directory.
const (
	TextureDataName  = "textures.dat"
	TextureTableName = "textures.idx"
	BufferDataName   = "buffers.dat"
	BufferTableName  = "buffers.idx"
	AssetDataName    = "assets.dat"
	AssetTableName   = "assets.idx"
)

// writeTable packs header plus records into one buffer and writes it with a
// single call. pack fills the record region, which is recordSize*count bytes.
func writeTable(path string, recordSize, count int, pack func(records []byte)) error {
	buf := make([]byte, tableHeaderSize+recordSize*count)
	copy(buf[0:4], tableMagic)
	binary.LittleEndian.PutUint32(buf[4:], tableVersion)
	binary.LittleEndian.PutUint32(buf[8:], uint32(recordSize))
	binary.LittleEndian.PutUint32(buf[12:], uint32(count))
	pack(buf[tableHeaderSize:])
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return diag.Wrap(diag.ErrIO, "emit", "finalize", "write table", err)
	}
	return nil
}

// Table is a parsed table file.
type Table struct {
	Version    uint32
	RecordSize uint32
	Count      uint32
	Records    []byte
}

// ReadTable loads and validates a table file.
func ReadTable(path string) (*Table, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.ErrIO, "emit", "read", "read table", err)
	}
	if len(buf) < tableHeaderSize {
		return nil, diag.Wrap(diag.ErrValidation, "emit", "read", "table too short", fmt.Errorf("%d bytes", len(buf)))
	}
	if string(buf[0:4]) != tableMagic {
		return nil, diag.Wrap(diag.ErrValidation, "emit", "read", "bad table magic", fmt.Errorf("%q", buf[0:4]))
	}
	t := &Table{
		Version:    binary.LittleEndian.Uint32(buf[4:]),
		RecordSize: binary.LittleEndian.Uint32(buf[8:]),
		Count:      binary.LittleEndian.Uint32(buf[12:]),
		Records:    buf[tableHeaderSize:],
	}
	if t.Version != tableVersion {
		return nil, diag.Wrap(diag.ErrValidation, "emit", "read", "unsupported table version", fmt.Errorf("%d", t.Version))
	}
	if want := int(t.RecordSize) * int(t.Count); len(t.Records) != want {
		return nil, diag.Wrap(diag.ErrValidation, "emit", "read", "record region size mismatch", fmt.Errorf("%d bytes, want %d", len(t.Records), want))
	}
	return t, nil
}

// record returns the i-th raw record.
func (t *Table) record(i int) []byte {
	start := i * int(t.RecordSize)
	return t.Records[start : start+int(t.RecordSize)]
}
