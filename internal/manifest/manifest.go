package manifest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"kiln/internal/diag"
)

// FileName is the manifest file name inside a job directory.
const FileName = "manifest.bin"

const (
	magic   = "KMF1"
	version = 1

	headerSize     = 32
	fileRecordSize = 24
	assetEntrySize = 56

	flagSuccess = 1 << 0
)

// SigLen is the truncated content signature length carried per asset.
const SigLen = 24

// File roles identify what each output file holds.
const (
	RoleTextureData  uint32 = 1
	RoleTextureTable uint32 = 2
	RoleBufferData   uint32 = 3
	RoleBufferTable  uint32 = 4
	RoleAssetData    uint32 = 5
	RoleAssetTable   uint32 = 6
)

// Table identifiers for asset entries.
const (
	TableTexture uint32 = 1
	TableBuffer  uint32 = 2
	TableAsset   uint32 = 3
)

// File is one job output with its final size.
type File struct {
	Role uint32
	Path string
	Size uint64
}

// Asset maps a declared item key to its cooked payload slot.
type Asset struct {
	Key    string
	Source string
	Kind   uint32
	Table  uint32
	Index  uint32
	Sig    [SigLen]byte
}

// Manifest is the full per-job record.
type Manifest struct {
	Success bool
	Created time.Time
	Files   []File
	Assets  []Asset
}

type stringTable struct {
	buf  bytes.Buffer
	refs map[string][2]uint32
}

func (st *stringTable) ref(s string) (off, n uint32) {
	if r, ok := st.refs[s]; ok {
		return r[0], r[1]
	}
	off = uint32(st.buf.Len())
	n = uint32(len(s))
	st.buf.WriteString(s)
	st.refs[s] = [2]uint32{off, n}
	return off, n
}

// WriteFile packs the manifest and writes it in one operation.
func (m *Manifest) WriteFile(path string) error {
	st := &stringTable{refs: make(map[string][2]uint32)}

	files := make([]byte, len(m.Files)*fileRecordSize)
	for i, f := range m.Files {
		off, n := st.ref(f.Path)
		rec := files[i*fileRecordSize:]
		binary.LittleEndian.PutUint32(rec[0:], f.Role)
		binary.LittleEndian.PutUint32(rec[4:], off)
		binary.LittleEndian.PutUint32(rec[8:], n)
		binary.LittleEndian.PutUint32(rec[12:], 0)
		binary.LittleEndian.PutUint64(rec[16:], f.Size)
	}

	assets := make([]byte, len(m.Assets)*assetEntrySize)
	for i, a := range m.Assets {
		keyOff, keyLen := st.ref(a.Key)
		srcOff, srcLen := st.ref(a.Source)
		rec := assets[i*assetEntrySize:]
		binary.LittleEndian.PutUint32(rec[0:], keyOff)
		binary.LittleEndian.PutUint32(rec[4:], keyLen)
		binary.LittleEndian.PutUint32(rec[8:], srcOff)
		binary.LittleEndian.PutUint32(rec[12:], srcLen)
		binary.LittleEndian.PutUint32(rec[16:], a.Kind)
		binary.LittleEndian.PutUint32(rec[20:], a.Table)
		binary.LittleEndian.PutUint32(rec[24:], a.Index)
		binary.LittleEndian.PutUint32(rec[28:], 0)
		copy(rec[32:32+SigLen], a.Sig[:])
	}

	strings := st.buf.Bytes()
	buf := make([]byte, 0, headerSize+len(strings)+len(files)+len(assets))
	header := make([]byte, headerSize)
	copy(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:], version)
	flags := uint32(0)
	if m.Success {
		flags |= flagSuccess
	}
	binary.LittleEndian.PutUint32(header[8:], flags)
	binary.LittleEndian.PutUint32(header[12:], uint32(len(m.Files)))
	binary.LittleEndian.PutUint32(header[16:], uint32(len(m.Assets)))
	binary.LittleEndian.PutUint32(header[20:], uint32(len(strings)))
	created := m.Created
	if created.IsZero() {
		created = time.Now()
	}
	binary.LittleEndian.PutUint64(header[24:], uint64(created.Unix()))

	buf = append(buf, header...)
	buf = append(buf, strings...)
	buf = append(buf, files...)
	buf = append(buf, assets...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return diag.Wrap(diag.ErrIO, "manifest", "write", "write manifest", err)
	}
	return nil
}

// Read parses a manifest file.
func Read(path string) (*Manifest, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.ErrIO, "manifest", "read", "read manifest", err)
	}
	if len(buf) < headerSize {
		return nil, diag.Wrap(diag.ErrValidation, "manifest", "read", "manifest too short", fmt.Errorf("%d bytes", len(buf)))
	}
	if string(buf[0:4]) != magic {
		return nil, diag.Wrap(diag.ErrValidation, "manifest", "read", "bad manifest magic", fmt.Errorf("%q", buf[0:4]))
	}
	if v := binary.LittleEndian.Uint32(buf[4:]); v != version {
		return nil, diag.Wrap(diag.ErrValidation, "manifest", "read", "unsupported manifest version", fmt.Errorf("%d", v))
	}
	flags := binary.LittleEndian.Uint32(buf[8:])
	fileCount := int(binary.LittleEndian.Uint32(buf[12:]))
	assetCount := int(binary.LittleEndian.Uint32(buf[16:]))
	stringSize := int(binary.LittleEndian.Uint32(buf[20:]))
	created := time.Unix(int64(binary.LittleEndian.Uint64(buf[24:])), 0).UTC()

	want := headerSize + stringSize + fileCount*fileRecordSize + assetCount*assetEntrySize
	if len(buf) != want {
		return nil, diag.Wrap(diag.ErrValidation, "manifest", "read", "manifest size mismatch", fmt.Errorf("%d bytes, want %d", len(buf), want))
	}
	strings := buf[headerSize : headerSize+stringSize]
	str := func(off, n uint32) (string, error) {
		if int(off)+int(n) > len(strings) {
			return "", fmt.Errorf("string ref [%d:%d] outside table of %d bytes", off, off+n, len(strings))
		}
		return string(strings[off : off+n]), nil
	}

	m := &Manifest{
		Success: flags&flagSuccess != 0,
		Created: created,
		Files:   make([]File, fileCount),
		Assets:  make([]Asset, assetCount),
	}

	filesBase := headerSize + stringSize
	for i := 0; i < fileCount; i++ {
		rec := buf[filesBase+i*fileRecordSize:]
		path, err := str(binary.LittleEndian.Uint32(rec[4:]), binary.LittleEndian.Uint32(rec[8:]))
		if err != nil {
			return nil, diag.Wrap(diag.ErrValidation, "manifest", "read", "file record", err)
		}
		m.Files[i] = File{
			Role: binary.LittleEndian.Uint32(rec[0:]),
			Path: path,
			Size: binary.LittleEndian.Uint64(rec[16:]),
		}
	}

	assetsBase := filesBase + fileCount*fileRecordSize
	for i := 0; i < assetCount; i++ {
		rec := buf[assetsBase+i*assetEntrySize:]
		key, err := str(binary.LittleEndian.Uint32(rec[0:]), binary.LittleEndian.Uint32(rec[4:]))
		if err != nil {
			return nil, diag.Wrap(diag.ErrValidation, "manifest", "read", "asset key", err)
		}
		source, err := str(binary.LittleEndian.Uint32(rec[8:]), binary.LittleEndian.Uint32(rec[12:]))
		if err != nil {
			return nil, diag.Wrap(diag.ErrValidation, "manifest", "read", "asset source", err)
		}
		a := Asset{
			Key:    key,
			Source: source,
			Kind:   binary.LittleEndian.Uint32(rec[16:]),
			Table:  binary.LittleEndian.Uint32(rec[20:]),
			Index:  binary.LittleEndian.Uint32(rec[24:]),
		}
		copy(a.Sig[:], rec[32:32+SigLen])
		m.Assets[i] = a
	}
	return m, nil
}
