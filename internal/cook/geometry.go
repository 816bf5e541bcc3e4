package cook

import (
	"context"
	"fmt"

	"kiln/internal/plan"
)

// Vertex channel flags recorded in the geometry payload header.
const (
	ChannelNormals uint32 = 1 << 0
	ChannelUVs     uint32 = 1 << 1
)

// GeometryInput is an indexed triangle mesh. Positions are required, three
// floats per vertex. Normals and UVs are optional channels that must match
// the vertex count when present.
type GeometryInput struct {
	Positions []float32
	Normals   []float32
	UVs       []float32
	Indices   []uint32
}

func (in GeometryInput) validate() error {
	if len(in.Positions) == 0 || len(in.Positions)%3 != 0 {
		return fmt.Errorf("positions length %d is not a positive multiple of 3", len(in.Positions))
	}
	vertexCount := len(in.Positions) / 3
	if len(in.Normals) != 0 && len(in.Normals) != vertexCount*3 {
		return fmt.Errorf("normals for %d vertices, want %d floats got %d", vertexCount, vertexCount*3, len(in.Normals))
	}
	if len(in.UVs) != 0 && len(in.UVs) != vertexCount*2 {
		return fmt.Errorf("uvs for %d vertices, want %d floats got %d", vertexCount, vertexCount*2, len(in.UVs))
	}
	if len(in.Indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(in.Indices))
	}
	for i, idx := range in.Indices {
		if int(idx) >= vertexCount {
			return fmt.Errorf("index %d at position %d exceeds vertex count %d", idx, i, vertexCount)
		}
	}
	return nil
}

// CookGeometry interleaves vertex channels and packs a mesh payload.
// Layout: vertex count u32, index count u32, stride u32, channel flags u32,
// bounds min 3xf32, bounds max 3xf32, interleaved vertices, then indices.
// Interleave order per vertex is position, normal, uv for whichever channels
// the flags carry.
func CookGeometry(ctx context.Context, run Runner, in GeometryInput) (CookedAsset, error) {
	var out CookedAsset
	if err := in.validate(); err != nil {
		return out, err
	}

	vertexCount := len(in.Positions) / 3
	hasNormals := len(in.Normals) != 0
	hasUVs := len(in.UVs) != 0

	var boundsMin, boundsMax [3]float32
	if err := run(ctx, func() error {
		boundsMin, boundsMax = meshBounds(in.Positions)
		return nil
	}); err != nil {
		return out, fmt.Errorf("bounds: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	stride := 3
	flags := uint32(0)
	if hasNormals {
		stride += 3
		flags |= ChannelNormals
	}
	if hasUVs {
		stride += 2
		flags |= ChannelUVs
	}

	var payload []byte
	if err := run(ctx, func() error {
		p := newPacker(40 + vertexCount*stride*4 + len(in.Indices)*4)
		p.u32(uint32(vertexCount))
		p.u32(uint32(len(in.Indices)))
		p.u32(uint32(stride * 4))
		p.u32(flags)
		for _, v := range boundsMin {
			p.f32(v)
		}
		for _, v := range boundsMax {
			p.f32(v)
		}
		for v := 0; v < vertexCount; v++ {
			p.f32(in.Positions[v*3+0])
			p.f32(in.Positions[v*3+1])
			p.f32(in.Positions[v*3+2])
			if hasNormals {
				p.f32(in.Normals[v*3+0])
				p.f32(in.Normals[v*3+1])
				p.f32(in.Normals[v*3+2])
			}
			if hasUVs {
				p.f32(in.UVs[v*2+0])
				p.f32(in.UVs[v*2+1])
			}
		}
		for _, idx := range in.Indices {
			p.u32(idx)
		}
		payload = p.done()
		return nil
	}); err != nil {
		return out, fmt.Errorf("mesh packing: %w", err)
	}

	out = CookedAsset{Payload: payload, Kind: plan.KindGeometry, Version: GeometryVersion}
	return out, nil
}

func meshBounds(positions []float32) (min, max [3]float32) {
	min = [3]float32{positions[0], positions[1], positions[2]}
	max = min
	for v := 3; v+2 < len(positions); v += 3 {
		for c := 0; c < 3; c++ {
			if positions[v+c] < min[c] {
				min[c] = positions[v+c]
			}
			if positions[v+c] > max[c] {
				max[c] = positions[v+c]
			}
		}
	}
	return min, max
}
