package cook

import (
	"context"
	"fmt"

	"kiln/internal/plan"
)

// SceneNode places one geometry and material pairing in the world. The
// resource fields hold resolved asset table indices, or NoIndex for an empty
// node. Rotation is a quaternion in xyzw order.
type SceneNode struct {
	Geometry    uint32
	Material    uint32
	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32
}

// SceneInput is a flat node list. Hierarchy is resolved before cooking, so
// transforms here are world-space.
type SceneInput struct {
	Nodes []SceneNode
}

// CookScene packs a scene payload. Layout: node count u32, reserved u32,
// then per node geometry u32, material u32, translation 3xf32, rotation
// 4xf32 (xyzw), scale 3xf32.
func CookScene(ctx context.Context, run Runner, in SceneInput) (CookedAsset, error) {
	var out CookedAsset
	for i, n := range in.Nodes {
		if n.Rotation == ([4]float32{}) {
			return out, fmt.Errorf("node %d has a zero rotation quaternion", i)
		}
	}
	var payload []byte
	if err := run(ctx, func() error {
		p := newPacker(8 + len(in.Nodes)*48)
		p.u32(uint32(len(in.Nodes)))
		p.u32(0)
		for _, n := range in.Nodes {
			p.u32(n.Geometry)
			p.u32(n.Material)
			for _, v := range n.Translation {
				p.f32(v)
			}
			for _, v := range n.Rotation {
				p.f32(v)
			}
			for _, v := range n.Scale {
				p.f32(v)
			}
		}
		payload = p.done()
		return nil
	}); err != nil {
		return out, fmt.Errorf("scene packing: %w", err)
	}
	out = CookedAsset{Payload: payload, Kind: plan.KindScene, Version: SceneVersion}
	return out, nil
}
