package cook

import (
	"context"
	"fmt"

	"kiln/internal/plan"
)

// MaterialInput describes a PBR material. Texture fields hold resolved table
// indices from already-emitted textures, or NoIndex when a slot is unused.
type MaterialInput struct {
	BaseColor         [4]float32
	Metallic          float32
	Roughness         float32
	AlbedoTexture     uint32
	NormalTexture     uint32
	MetalRoughTexture uint32
}

func (in MaterialInput) validate() error {
	for i, c := range in.BaseColor {
		if c < 0 || c > 1 {
			return fmt.Errorf("base color channel %d out of range: %g", i, c)
		}
	}
	if in.Metallic < 0 || in.Metallic > 1 {
		return fmt.Errorf("metallic out of range: %g", in.Metallic)
	}
	if in.Roughness < 0 || in.Roughness > 1 {
		return fmt.Errorf("roughness out of range: %g", in.Roughness)
	}
	return nil
}

// CookMaterial packs a material constant block. Layout: base color 4xf32,
// metallic f32, roughness f32, albedo u32, normal u32, metal-rough u32,
// reserved u32 keeping the block 16-byte sized for uniform upload.
func CookMaterial(ctx context.Context, run Runner, in MaterialInput) (CookedAsset, error) {
	var out CookedAsset
	if err := in.validate(); err != nil {
		return out, err
	}
	var payload []byte
	if err := run(ctx, func() error {
		p := newPacker(40)
		for _, c := range in.BaseColor {
			p.f32(c)
		}
		p.f32(in.Metallic)
		p.f32(in.Roughness)
		p.u32(in.AlbedoTexture)
		p.u32(in.NormalTexture)
		p.u32(in.MetalRoughTexture)
		p.u32(0)
		payload = p.done()
		return nil
	}); err != nil {
		return out, fmt.Errorf("material packing: %w", err)
	}
	out = CookedAsset{Payload: payload, Kind: plan.KindMaterial, Version: MaterialVersion}
	return out, nil
}
