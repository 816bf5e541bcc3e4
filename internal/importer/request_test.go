package importer_test

import (
	"errors"
	"testing"

	"kiln/internal/cook"
	"kiln/internal/diag"
	"kiln/internal/importer"
	"kiln/internal/plan"
)

func okMaterial() cook.MaterialInput {
	return cook.MaterialInput{BaseColor: [4]float32{1, 1, 1, 1}, Roughness: 1}
}

func TestSubmitRejectsDuplicateKey(t *testing.T) {
	svc, _ := startService(t)

	req := importer.Request{Items: []importer.Item{rawBuffer("dup", 1), rawBuffer("dup", 2)}}
	_, err := svc.SubmitImport(req, nil)
	if err == nil {
		t.Fatal("duplicate key accepted")
	}
	var dk *importer.DuplicateKeyError
	if !errors.As(err, &dk) || dk.Key != "dup" {
		t.Fatalf("err = %v, want DuplicateKeyError for dup", err)
	}
	if !errors.Is(err, diag.ErrValidation) {
		t.Fatalf("err = %v, want %v", err, diag.ErrValidation)
	}
	if d := dk.Diagnostic(); d.Code != diag.CodeDuplicateKey {
		t.Fatalf("diagnostic = %+v", d)
	}
}

func TestSubmitRejectsMalformedRequests(t *testing.T) {
	svc, _ := startService(t)

	withDeps := func(it importer.Item, deps ...string) importer.Item {
		it.Deps = deps
		return it
	}
	cases := []struct {
		name  string
		items []importer.Item
	}{
		{"empty key", []importer.Item{
			importer.BufferItem("", cook.BufferInput{Usage: cook.BufferRaw}),
		}},
		{"padded key", []importer.Item{
			importer.BufferItem(" pad", cook.BufferInput{Usage: cook.BufferRaw}),
		}},
		{"unknown dep", []importer.Item{
			withDeps(rawBuffer("a", 1), "ghost"),
		}},
		{"payload kind mismatch", []importer.Item{
			{Key: "t", Kind: plan.KindTexture, Payload: cook.BufferInput{}},
		}},
		{"unknown kind", []importer.Item{
			{Key: "x", Kind: plan.Kind(99)},
		}},
		{"material ref wrong kind", []importer.Item{
			rawBuffer("vertices", 1),
			importer.MaterialItem("mat", importer.MaterialSpec{Input: okMaterial(), Albedo: "vertices"}),
		}},
		{"material ref unknown", []importer.Item{
			importer.MaterialItem("mat", importer.MaterialSpec{Input: okMaterial(), Normal: "ghost"}),
		}},
		{"scene ref wrong kind", []importer.Item{
			flatTexture("tex", 1),
			importer.SceneItem("scene", importer.SceneSpec{
				Nodes: []importer.SceneNode{{Geometry: "tex"}},
			}),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitImport(importer.Request{Items: tc.items}, nil)
			if !errors.Is(err, diag.ErrValidation) {
				t.Fatalf("err = %v, want %v", err, diag.ErrValidation)
			}
		})
	}
}

func TestItemDebugNameFallsBackToKey(t *testing.T) {
	it := rawBuffer("hud/verts", 1)
	if it.DebugName() != "hud/verts" {
		t.Fatalf("debug name = %q", it.DebugName())
	}
	it.Name = "HUD Vertices"
	if it.DebugName() != "HUD Vertices" {
		t.Fatalf("debug name = %q", it.DebugName())
	}
}
