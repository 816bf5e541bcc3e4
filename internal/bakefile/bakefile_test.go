package bakefile_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kiln/internal/bakefile"
	"kiln/internal/cook"
	"kiln/internal/diag"
	"kiln/internal/importer"
	"kiln/internal/plan"
	"kiln/internal/testsupport"
)

func writeBakefile(t *testing.T, dir, src string) string {
	t.Helper()

	path := filepath.Join(dir, "assets.bake")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write bakefile: %v", err)
	}
	return path
}

func TestLoadAssemblesRequest(t *testing.T) {
	dir := t.TempDir()
	testsupport.WritePNG(t, filepath.Join(dir, "albedo.png"), 2, 2, color.RGBA{R: 200, G: 40, B: 20, A: 255})
	testsupport.WriteFile(t, filepath.Join(dir, "verts.bin"), 32)
	testsupport.WriteFile(t, filepath.Join(dir, "loop.pcm"), 32)
	testsupport.WriteJSON(t, filepath.Join(dir, "mesh.json"), map[string]any{
		"positions": []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		"indices":   []uint32{0, 1, 2},
	})

	path := writeBakefile(t, dir, `
label = "hero pack"

[[texture]]
key = "hero/albedo"
source = "albedo.png"
mips = true

[[buffer]]
key = "hero/verts"
source = "verts.bin"
usage = "vertex"
deps = ["hero/albedo"]

[[audio]]
key = "theme/loop"
name = "Main Theme"
source = "loop.pcm"
sample_rate = 44100
channels = 2
normalize = true

[[material]]
key = "hero/mat"
base_color = [0.5, 0.25, 0.125, 1.0]
metallic = 0.25
roughness = 0.8
albedo = "hero/albedo"

[[geometry]]
key = "hero/mesh"
source = "mesh.json"

[[scene]]
key = "level/main"

[[scene.nodes]]
geometry = "hero/mesh"
material = "hero/mat"
translation = [1.0, 2.0, 3.0]
`)

	req, err := bakefile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if req.Label != "hero pack" {
		t.Fatalf("label = %q, want %q", req.Label, "hero pack")
	}

	wantKeys := []string{"hero/albedo", "hero/verts", "theme/loop", "hero/mat", "hero/mesh", "level/main"}
	if len(req.Items) != len(wantKeys) {
		t.Fatalf("loaded %d items, want %d: %+v", len(req.Items), len(wantKeys), req.Items)
	}
	for i, want := range wantKeys {
		if req.Items[i].Key != want {
			t.Fatalf("item %d key = %q, want %q", i, req.Items[i].Key, want)
		}
	}

	tex := req.Items[0]
	if tex.Kind != plan.KindTexture || tex.Name != "Albedo" || tex.Source != "albedo.png" {
		t.Fatalf("texture item = %+v", tex)
	}
	texIn, ok := tex.Payload.(cook.TextureInput)
	if !ok {
		t.Fatalf("texture payload is %T", tex.Payload)
	}
	if texIn.Desc.Width != 2 || texIn.Desc.Height != 2 || texIn.Desc.Format != cook.TextureRGBA8 || !texIn.Desc.GenerateMips {
		t.Fatalf("texture desc = %+v", texIn.Desc)
	}
	if len(texIn.Pixels) != 16 {
		t.Fatalf("decoded %d pixel bytes, want 16", len(texIn.Pixels))
	}
	if texIn.Pixels[0] != 200 || texIn.Pixels[1] != 40 || texIn.Pixels[2] != 20 || texIn.Pixels[3] != 255 {
		t.Fatalf("first pixel = %v", texIn.Pixels[:4])
	}

	buf := req.Items[1]
	bufIn := buf.Payload.(cook.BufferInput)
	if bufIn.Usage != cook.BufferVertex || len(bufIn.Data) != 32 {
		t.Fatalf("buffer payload = %+v", bufIn)
	}
	if len(buf.Deps) != 1 || buf.Deps[0] != "hero/albedo" {
		t.Fatalf("buffer deps = %v", buf.Deps)
	}

	aud := req.Items[2]
	if aud.Name != "Main Theme" {
		t.Fatalf("audio name = %q", aud.Name)
	}
	audIn := aud.Payload.(cook.AudioInput)
	if audIn.SampleRate != 44100 || audIn.Channels != 2 || !audIn.Normalize || len(audIn.Samples) != 32 {
		t.Fatalf("audio payload = %+v", audIn)
	}

	mat := req.Items[3].Payload.(importer.MaterialSpec)
	wantColor := [4]float32{0.5, 0.25, 0.125, 1}
	if mat.Input.BaseColor != wantColor || mat.Input.Metallic != 0.25 || mat.Input.Roughness != 0.8 {
		t.Fatalf("material input = %+v", mat.Input)
	}
	if mat.Albedo != "hero/albedo" || mat.Normal != "" || mat.MetalRough != "" {
		t.Fatalf("material refs = %+v", mat)
	}

	geo := req.Items[4].Payload.(cook.GeometryInput)
	if len(geo.Positions) != 9 || len(geo.Indices) != 3 {
		t.Fatalf("geometry payload = %+v", geo)
	}

	scene := req.Items[5].Payload.(importer.SceneSpec)
	if len(scene.Nodes) != 1 {
		t.Fatalf("scene has %d nodes", len(scene.Nodes))
	}
	node := scene.Nodes[0]
	if node.Geometry != "hero/mesh" || node.Material != "hero/mat" {
		t.Fatalf("scene node refs = %+v", node)
	}
	if node.Translation != [3]float32{1, 2, 3} {
		t.Fatalf("scene node translation = %v", node.Translation)
	}
	if node.Rotation != ([4]float32{}) || node.Scale != ([3]float32{}) {
		t.Fatalf("omitted transform fields should stay zero: %+v", node)
	}
}

func TestLoadDefaultsMaterialBaseColor(t *testing.T) {
	dir := t.TempDir()
	path := writeBakefile(t, dir, `
[[material]]
key = "plain"
roughness = 1.0
`)

	req, err := bakefile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mat := req.Items[0].Payload.(importer.MaterialSpec)
	if mat.Input.BaseColor != ([4]float32{1, 1, 1, 1}) {
		t.Fatalf("base color = %v, want opaque white", mat.Input.BaseColor)
	}
}

func TestLoadNormalizesKeysToNFC(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "a.bin"), 8)
	testsupport.WriteFile(t, filepath.Join(dir, "b.bin"), 8)

	// The buffer key uses a combining acute accent, the dependency the
	// precomposed code point. Both must land on the same NFC string.
	path := writeBakefile(t, dir, "[[buffer]]\nkey = \"café\"\nsource = \"a.bin\"\n\n"+
		"[[buffer]]\nkey = \"menu\"\nsource = \"b.bin\"\ndeps = [\"café\"]\n")

	req, err := bakefile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if req.Items[0].Key != "café" {
		t.Fatalf("key = %q, want precomposed form", req.Items[0].Key)
	}
	if req.Items[1].Deps[0] != req.Items[0].Key {
		t.Fatalf("dep %q does not match key %q", req.Items[1].Deps[0], req.Items[0].Key)
	}
}

func TestLoadRejectsDuplicateKeysAfterNormalization(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "a.bin"), 8)
	testsupport.WriteFile(t, filepath.Join(dir, "b.bin"), 8)

	path := writeBakefile(t, dir, "[[buffer]]\nkey = \"café\"\nsource = \"a.bin\"\n\n"+
		"[[buffer]]\nkey = \"café\"\nsource = \"b.bin\"\n")

	_, err := bakefile.Load(path)
	var dup *importer.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("Load error = %v, want duplicate key", err)
	}
	if dup.Key != "café" {
		t.Fatalf("duplicate key = %q", dup.Key)
	}
	if !errors.Is(err, diag.ErrValidation) {
		t.Fatalf("duplicate key error should wrap validation: %v", err)
	}
}

func TestLoadSceneFromJSONSource(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteJSON(t, filepath.Join(dir, "main.json"), map[string]any{
		"nodes": []map[string]any{{
			"geometry":    "hero/mesh",
			"material":    "hero/mat",
			"translation": []float64{4, 5, 6},
			"rotation":    []float64{0, 0, 0, 1},
			"scale":       []float64{2, 2, 2},
		}},
	})
	path := writeBakefile(t, dir, `
[[scene]]
key = "level/main"
source = "main.json"
`)

	req, err := bakefile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	spec := req.Items[0].Payload.(importer.SceneSpec)
	if len(spec.Nodes) != 1 {
		t.Fatalf("scene has %d nodes", len(spec.Nodes))
	}
	node := spec.Nodes[0]
	if node.Geometry != "hero/mesh" || node.Material != "hero/mat" {
		t.Fatalf("node refs = %+v", node)
	}
	if node.Translation != [3]float32{4, 5, 6} || node.Rotation != [4]float32{0, 0, 0, 1} || node.Scale != [3]float32{2, 2, 2} {
		t.Fatalf("node transform = %+v", node)
	}
}

func TestLoadRejectsMalformedDeclarations(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "data.bin"), 8)

	cases := []struct {
		name string
		src  string
	}{
		{"missing key", "[[buffer]]\nsource = \"data.bin\"\n"},
		{"missing source", "[[buffer]]\nkey = \"b\"\n"},
		{"unknown texture format", "[[texture]]\nkey = \"t\"\nsource = \"data.bin\"\nformat = \"bc7\"\n"},
		{"unknown buffer usage", "[[buffer]]\nkey = \"b\"\nsource = \"data.bin\"\nusage = \"scratch\"\n"},
		{"base color arity", "[[material]]\nkey = \"m\"\nbase_color = [1.0, 1.0]\n"},
		{"node translation arity", "[[scene]]\nkey = \"s\"\n\n[[scene.nodes]]\ntranslation = [1.0]\n"},
		{"scene with source and nodes", "[[scene]]\nkey = \"s\"\nsource = \"main.json\"\n\n[[scene.nodes]]\ngeometry = \"g\"\n"},
		{"not toml", "[[buffer\nkey\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := bakefile.Load(writeBakefile(t, dir, tc.src))
			if !errors.Is(err, diag.ErrValidation) {
				t.Fatalf("Load error = %v, want validation failure", err)
			}
		})
	}
}

func TestLoadReportsUnreadableSources(t *testing.T) {
	dir := t.TempDir()
	path := writeBakefile(t, dir, `
[[buffer]]
key = "b"
source = "missing.bin"
`)

	_, err := bakefile.Load(path)
	if !errors.Is(err, diag.ErrIO) {
		t.Fatalf("Load error = %v, want IO failure", err)
	}

	if _, err := bakefile.Load(filepath.Join(dir, "nope.bake")); !errors.Is(err, diag.ErrIO) {
		t.Fatalf("Load error = %v, want IO failure", err)
	}
}

func TestLoadedBakefileCooks(t *testing.T) {
	dir := t.TempDir()
	testsupport.WritePNG(t, filepath.Join(dir, "albedo.png"), 2, 2, color.RGBA{R: 180, G: 90, B: 45, A: 255})
	path := writeBakefile(t, dir, `
[[texture]]
key = "hero/albedo"
source = "albedo.png"

[[material]]
key = "hero/mat"
roughness = 0.5
albedo = "hero/albedo"
`)

	req, err := bakefile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	svc, err := importer.New(cfg)
	if err != nil {
		t.Fatalf("importer.New: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := svc.Stop(ctx); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})

	done := make(chan importer.Report, 1)
	if _, err := svc.SubmitImport(req, func(rep importer.Report) { done <- rep }); err != nil {
		t.Fatalf("SubmitImport: %v", err)
	}

	var rep importer.Report
	select {
	case rep = <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("import did not finish")
	}
	if !rep.Success || rep.Status != importer.StatusComplete {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Counts.Textures != 1 || rep.Counts.Assets != 1 {
		t.Fatalf("counts = %+v", rep.Counts)
	}
	if _, err := os.Stat(rep.ManifestPath); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
}
