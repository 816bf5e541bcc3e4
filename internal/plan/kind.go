package plan

import "fmt"

// Kind identifies the resource family of a plan item. It selects both the
// cooking pipeline and the emitter an item routes through.
type Kind uint8

const (
	KindTexture Kind = iota
	KindBuffer
	KindAudio
	KindMaterial
	KindGeometry
	KindScene

	kindCount
)

var kindNames = [kindCount]string{
	KindTexture:  "texture",
	KindBuffer:   "buffer",
	KindAudio:    "audio",
	KindMaterial: "material",
	KindGeometry: "geometry",
	KindScene:    "scene",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind resolves a kind name as used in bakefiles and the catalog.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", name)
}
