package importer

import (
	"fmt"
	"strings"

	"kiln/internal/cook"
	"kiln/internal/diag"
	"kiln/internal/plan"
)

// Request describes one import job: the declared items and an optional
// human-readable label used in logs.
type Request struct {
	Label string
	Items []Item
}

// Item declares one asset to cook. Key is unique within the request and is
// how other items reference this one. Name is the debug name (Key when
// empty). Source is an optional provenance path recorded in the manifest and
// catalog. Deps lists producer keys that must be emitted first; references
// inside the payload add further deps implicitly. Payload holds the kind's
// input: cook.TextureInput, cook.BufferInput, cook.AudioInput,
// MaterialSpec, cook.GeometryInput, or SceneSpec.
type Item struct {
	Key     string
	Name    string
	Source  string
	Kind    plan.Kind
	Deps    []string
	Payload any
}

// MaterialSpec pairs material constants with producer texture references.
// The reference fields name texture items by key; empty means no texture.
// The Input's texture index fields are ignored and overwritten at submit
// time from the resolved references.
type MaterialSpec struct {
	Input      cook.MaterialInput
	Albedo     string
	Normal     string
	MetalRough string
}

// SceneNode places one cooked geometry/material pair. Geometry and Material
// name producer items by key; empty means none. A zero Rotation is treated
// as the identity quaternion and a zero Scale as one, so literal node
// declarations stay short.
type SceneNode struct {
	Geometry    string
	Material    string
	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32
}

// SceneSpec declares a flat list of scene nodes.
type SceneSpec struct {
	Nodes []SceneNode
}

// TextureItem declares a texture.
func TextureItem(key string, in cook.TextureInput) Item {
	return Item{Key: key, Kind: plan.KindTexture, Payload: in}
}

// BufferItem declares a raw buffer.
func BufferItem(key string, in cook.BufferInput) Item {
	return Item{Key: key, Kind: plan.KindBuffer, Payload: in}
}

// AudioItem declares an audio clip.
func AudioItem(key string, in cook.AudioInput) Item {
	return Item{Key: key, Kind: plan.KindAudio, Payload: in}
}

// MaterialItem declares a material.
func MaterialItem(key string, spec MaterialSpec) Item {
	return Item{Key: key, Kind: plan.KindMaterial, Payload: spec}
}

// GeometryItem declares a mesh.
func GeometryItem(key string, in cook.GeometryInput) Item {
	return Item{Key: key, Kind: plan.KindGeometry, Payload: in}
}

// SceneItem declares a scene.
func SceneItem(key string, spec SceneSpec) Item {
	return Item{Key: key, Kind: plan.KindScene, Payload: spec}
}

// DebugName resolves the display name for logs and diagnostics.
func (it Item) DebugName() string {
	if it.Name != "" {
		return it.Name
	}
	return it.Key
}

// refs lists the producer keys the payload references, in declaration order.
func (it Item) refs() []string {
	var out []string
	add := func(key string) {
		if key != "" {
			out = append(out, key)
		}
	}
	switch p := it.Payload.(type) {
	case MaterialSpec:
		add(p.Albedo)
		add(p.Normal)
		add(p.MetalRough)
	case SceneSpec:
		for _, node := range p.Nodes {
			add(node.Geometry)
			add(node.Material)
		}
	}
	return out
}

// DuplicateKeyError reports two items declared under the same key. The
// request is unusable.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate item key %q", e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return diag.ErrValidation }

// Diagnostic renders the collision as a blocking job diagnostic.
func (e *DuplicateKeyError) Diagnostic() diag.Diagnostic {
	return diag.Error(diag.CodeDuplicateKey, "duplicate item key %q", e.Key)
}

// validate checks the request shape and returns the key index. All checks
// run before any job state exists, so failures here never leave partial
// output.
func validate(req Request) (map[string]int, error) {
	index := make(map[string]int, len(req.Items))
	for i, item := range req.Items {
		key := strings.TrimSpace(item.Key)
		if key == "" {
			return nil, diag.Wrap(diag.ErrValidation, "importer", "validate", fmt.Sprintf("item %d has an empty key", i), nil)
		}
		if key != item.Key {
			return nil, diag.Wrap(diag.ErrValidation, "importer", "validate", fmt.Sprintf("item key %q has surrounding whitespace", item.Key), nil)
		}
		if _, exists := index[key]; exists {
			return nil, &DuplicateKeyError{Key: key}
		}
		if err := checkPayload(item); err != nil {
			return nil, err
		}
		index[key] = i
	}

	for _, item := range req.Items {
		for _, dep := range item.Deps {
			if _, ok := index[dep]; !ok {
				return nil, diag.Wrap(diag.ErrValidation, "importer", "validate",
					fmt.Sprintf("item %q depends on unknown key %q", item.Key, dep), nil)
			}
		}
		if err := checkRefs(item, req.Items, index); err != nil {
			return nil, err
		}
	}
	return index, nil
}

func checkPayload(item Item) error {
	var ok bool
	switch item.Kind {
	case plan.KindTexture:
		_, ok = item.Payload.(cook.TextureInput)
	case plan.KindBuffer:
		_, ok = item.Payload.(cook.BufferInput)
	case plan.KindAudio:
		_, ok = item.Payload.(cook.AudioInput)
	case plan.KindMaterial:
		_, ok = item.Payload.(MaterialSpec)
	case plan.KindGeometry:
		_, ok = item.Payload.(cook.GeometryInput)
	case plan.KindScene:
		_, ok = item.Payload.(SceneSpec)
	default:
		return diag.Wrap(diag.ErrValidation, "importer", "validate",
			fmt.Sprintf("item %q has unknown kind %d", item.Key, item.Kind), nil)
	}
	if !ok {
		return diag.Wrap(diag.ErrValidation, "importer", "validate",
			fmt.Sprintf("item %q payload is %T, which does not cook as %s", item.Key, item.Payload, item.Kind), nil)
	}
	return nil
}

func checkRefs(item Item, items []Item, index map[string]int) error {
	requireKind := func(key string, want plan.Kind, field string) error {
		if key == "" {
			return nil
		}
		pos, ok := index[key]
		if !ok {
			return diag.Wrap(diag.ErrValidation, "importer", "validate",
				fmt.Sprintf("item %q %s references unknown key %q", item.Key, field, key), nil)
		}
		if got := items[pos].Kind; got != want {
			return diag.Wrap(diag.ErrValidation, "importer", "validate",
				fmt.Sprintf("item %q %s references %q, which is %s, not %s", item.Key, field, key, got, want), nil)
		}
		return nil
	}

	switch p := item.Payload.(type) {
	case MaterialSpec:
		if err := requireKind(p.Albedo, plan.KindTexture, "albedo"); err != nil {
			return err
		}
		if err := requireKind(p.Normal, plan.KindTexture, "normal"); err != nil {
			return err
		}
		if err := requireKind(p.MetalRough, plan.KindTexture, "metal_rough"); err != nil {
			return err
		}
	case SceneSpec:
		for i, node := range p.Nodes {
			if err := requireKind(node.Geometry, plan.KindGeometry, fmt.Sprintf("node %d geometry", i)); err != nil {
				return err
			}
			if err := requireKind(node.Material, plan.KindMaterial, fmt.Sprintf("node %d material", i)); err != nil {
				return err
			}
		}
	}
	return nil
}
