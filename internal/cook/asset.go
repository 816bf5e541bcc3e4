package cook

import (
	"encoding/binary"
	"math"

	"kiln/internal/plan"
)

// NoIndex marks an absent resource reference inside packed asset payloads.
const NoIndex uint32 = 0xFFFFFFFF

// Payload format versions, bumped whenever the packed layout changes.
const (
	AudioVersion    uint32 = 1
	MaterialVersion uint32 = 1
	GeometryVersion uint32 = 1
	SceneVersion    uint32 = 1
)

// CookedAsset is a packed payload destined for the shared asset data file.
// Audio, material, geometry, and scene cooking all produce this shape.
type CookedAsset struct {
	Payload []byte
	Kind    plan.Kind
	Version uint32
}

// packer builds little-endian payloads. All asset layouts use it so every
// field lands at a deterministic offset regardless of host order.
type packer struct {
	buf []byte
}

func newPacker(capacity int) *packer {
	return &packer{buf: make([]byte, 0, capacity)}
}

func (p *packer) u16(v uint16) {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
}

func (p *packer) u32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *packer) u64(v uint64) {
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *packer) f32(v float32) {
	p.u32(math.Float32bits(v))
}

func (p *packer) bytes(b []byte) {
	p.buf = append(p.buf, b...)
}

func (p *packer) done() []byte {
	return p.buf
}
