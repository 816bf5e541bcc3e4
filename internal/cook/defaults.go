package cook

import "kiln/internal/plan"

// Fallback payloads substitute for items whose cooking failed, so dependent
// items and the output tables keep dense indices. Each fallback uses the same
// packed layout as the corresponding Cook function.

// FallbackTexture is a single opaque white texel.
func FallbackTexture(opts TextureOptions) CookedTexture {
	align := opts.rowAlignment()
	white := []byte{255, 255, 255, 255}
	return CookedTexture{
		Payload:       packSubresources([][]byte{white}, []int{1}, []int{1}, 4, align),
		Format:        TextureRGBA8,
		Width:         1,
		Height:        1,
		MipLevels:     1,
		ArrayLayers:   1,
		RowPitch:      uint32(alignUp(4, align)),
		RowPitchAlign: uint32(align),
	}
}

// FallbackBuffer is an empty raw buffer.
func FallbackBuffer(opts BufferOptions) CookedBuffer {
	return CookedBuffer{
		Payload:   []byte{},
		Usage:     BufferRaw,
		Alignment: BufferRaw.Alignment(opts.DataAlignment),
	}
}

// FallbackAsset returns the substitute payload for the asset kinds: a silent
// zero-frame clip, a neutral material, an empty mesh, or an empty scene.
func FallbackAsset(kind plan.Kind) CookedAsset {
	switch kind {
	case plan.KindAudio:
		p := newPacker(16)
		p.u32(44100)
		p.u16(1)
		p.u16(0)
		p.u64(0)
		return CookedAsset{Payload: p.done(), Kind: plan.KindAudio, Version: AudioVersion}
	case plan.KindMaterial:
		p := newPacker(40)
		for i := 0; i < 4; i++ {
			p.f32(1)
		}
		p.f32(0)
		p.f32(1)
		p.u32(NoIndex)
		p.u32(NoIndex)
		p.u32(NoIndex)
		p.u32(0)
		return CookedAsset{Payload: p.done(), Kind: plan.KindMaterial, Version: MaterialVersion}
	case plan.KindGeometry:
		p := newPacker(40)
		p.u32(0)
		p.u32(0)
		p.u32(12)
		p.u32(0)
		for i := 0; i < 6; i++ {
			p.f32(0)
		}
		return CookedAsset{Payload: p.done(), Kind: plan.KindGeometry, Version: GeometryVersion}
	default:
		p := newPacker(8)
		p.u32(0)
		p.u32(0)
		return CookedAsset{Payload: p.done(), Kind: plan.KindScene, Version: SceneVersion}
	}
}
