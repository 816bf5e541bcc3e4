// Package bakefile parses TOML job descriptions into import requests.
//
// A bakefile declares items in [[texture]], [[buffer]], [[audio]],
// [[material]], [[geometry]], and [[scene]] blocks. Every block carries a
// key unique within the file; dependencies and payload references name
// other items by key. Source paths resolve relative to the bakefile's
// directory and are loaded eagerly, so a request returned by Load is
// self-contained.
package bakefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"kiln/internal/cook"
	"kiln/internal/diag"
	"kiln/internal/importer"
)

type fileDecl struct {
	Label     string         `toml:"label"`
	Textures  []textureDecl  `toml:"texture"`
	Buffers   []bufferDecl   `toml:"buffer"`
	Audio     []audioDecl    `toml:"audio"`
	Materials []materialDecl `toml:"material"`
	Geometry  []geometryDecl `toml:"geometry"`
	Scenes    []sceneDecl    `toml:"scene"`
}

type itemDecl struct {
	Key  string   `toml:"key"`
	Name string   `toml:"name"`
	Deps []string `toml:"deps"`
}

type textureDecl struct {
	itemDecl
	Source      string `toml:"source"`
	Format      string `toml:"format"`
	Mips        bool   `toml:"mips"`
	Premultiply bool   `toml:"premultiply"`
}

type bufferDecl struct {
	itemDecl
	Source string `toml:"source"`
	Usage  string `toml:"usage"`
}

type audioDecl struct {
	itemDecl
	Source     string `toml:"source"`
	SampleRate int    `toml:"sample_rate"`
	Channels   int    `toml:"channels"`
	Normalize  bool   `toml:"normalize"`
}

type materialDecl struct {
	itemDecl
	BaseColor  []float64 `toml:"base_color"`
	Metallic   float64   `toml:"metallic"`
	Roughness  float64   `toml:"roughness"`
	Albedo     string    `toml:"albedo"`
	Normal     string    `toml:"normal"`
	MetalRough string    `toml:"metal_rough"`
}

type geometryDecl struct {
	itemDecl
	Source string `toml:"source"`
}

type sceneDecl struct {
	itemDecl
	Source string          `toml:"source"`
	Nodes  []sceneNodeDecl `toml:"nodes"`
}

type sceneNodeDecl struct {
	Geometry    string    `toml:"geometry"`
	Material    string    `toml:"material"`
	Translation []float64 `toml:"translation"`
	Rotation    []float64 `toml:"rotation"`
	Scale       []float64 `toml:"scale"`
}

// Load parses a bakefile and loads every referenced source file, returning
// the assembled import request. Items keep their block order: textures,
// buffers, audio, materials, geometry, then scenes.
func Load(path string) (importer.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return importer.Request{}, diag.Wrap(diag.ErrIO, "bakefile", "load", "open bakefile", err)
	}
	defer file.Close()

	var decl fileDecl
	if err := toml.NewDecoder(file).Decode(&decl); err != nil {
		return importer.Request{}, diag.Wrap(diag.ErrValidation, "bakefile", "parse", path, err)
	}
	return assemble(filepath.Dir(path), decl)
}

func assemble(dir string, decl fileDecl) (importer.Request, error) {
	b := &builder{dir: dir, seen: make(map[string]struct{})}
	req := importer.Request{Label: decl.Label}

	for _, d := range decl.Textures {
		item, err := b.texture(d)
		if err != nil {
			return importer.Request{}, err
		}
		req.Items = append(req.Items, item)
	}
	for _, d := range decl.Buffers {
		item, err := b.buffer(d)
		if err != nil {
			return importer.Request{}, err
		}
		req.Items = append(req.Items, item)
	}
	for _, d := range decl.Audio {
		item, err := b.audio(d)
		if err != nil {
			return importer.Request{}, err
		}
		req.Items = append(req.Items, item)
	}
	for _, d := range decl.Materials {
		item, err := b.material(d)
		if err != nil {
			return importer.Request{}, err
		}
		req.Items = append(req.Items, item)
	}
	for _, d := range decl.Geometry {
		item, err := b.geometry(d)
		if err != nil {
			return importer.Request{}, err
		}
		req.Items = append(req.Items, item)
	}
	for _, d := range decl.Scenes {
		item, err := b.scene(d)
		if err != nil {
			return importer.Request{}, err
		}
		req.Items = append(req.Items, item)
	}
	return req, nil
}

type builder struct {
	dir  string
	seen map[string]struct{}
}

// common normalizes and registers the shared block fields. Keys collide
// after NFC normalization, so visually identical declarations are rejected
// instead of silently diverging.
func (b *builder) common(d itemDecl, block string) (key, name string, deps []string, err error) {
	key = normKey(d.Key)
	if key == "" {
		return "", "", nil, diag.Wrap(diag.ErrValidation, "bakefile", "parse", fmt.Sprintf("%s block missing key", block), nil)
	}
	if _, dup := b.seen[key]; dup {
		return "", "", nil, &importer.DuplicateKeyError{Key: key}
	}
	b.seen[key] = struct{}{}

	name = d.Name
	if name == "" {
		name = debugName(key)
	}
	for _, dep := range d.Deps {
		deps = append(deps, normKey(dep))
	}
	return key, name, deps, nil
}

func (b *builder) resolve(source, key string) (string, error) {
	if source == "" {
		return "", diag.Wrap(diag.ErrValidation, "bakefile", "parse", fmt.Sprintf("item %q missing source", key), nil)
	}
	if filepath.IsAbs(source) {
		return source, nil
	}
	return filepath.Join(b.dir, source), nil
}

func (b *builder) texture(d textureDecl) (importer.Item, error) {
	key, name, deps, err := b.common(d.itemDecl, "texture")
	if err != nil {
		return importer.Item{}, err
	}
	format := cook.TextureRGBA8
	if d.Format != "" {
		format, err = cook.ParseTextureFormat(d.Format)
		if err != nil {
			return importer.Item{}, diag.Wrap(diag.ErrValidation, "bakefile", "parse", key, err)
		}
	}
	path, err := b.resolve(d.Source, key)
	if err != nil {
		return importer.Item{}, err
	}
	pixels, w, h, err := loadImage(path)
	if err != nil {
		return importer.Item{}, err
	}
	it := importer.TextureItem(key, cook.TextureInput{
		Desc: cook.TextureDesc{
			Width:            w,
			Height:           h,
			Format:           format,
			GenerateMips:     d.Mips,
			PremultiplyAlpha: d.Premultiply,
		},
		Pixels: pixels,
	})
	it.Name, it.Source, it.Deps = name, d.Source, deps
	return it, nil
}

func (b *builder) buffer(d bufferDecl) (importer.Item, error) {
	key, name, deps, err := b.common(d.itemDecl, "buffer")
	if err != nil {
		return importer.Item{}, err
	}
	usage := cook.BufferRaw
	if d.Usage != "" {
		usage, err = cook.ParseBufferUsage(d.Usage)
		if err != nil {
			return importer.Item{}, diag.Wrap(diag.ErrValidation, "bakefile", "parse", key, err)
		}
	}
	path, err := b.resolve(d.Source, key)
	if err != nil {
		return importer.Item{}, err
	}
	data, err := loadBytes(path)
	if err != nil {
		return importer.Item{}, err
	}
	it := importer.BufferItem(key, cook.BufferInput{Usage: usage, Data: data})
	it.Name, it.Source, it.Deps = name, d.Source, deps
	return it, nil
}

func (b *builder) audio(d audioDecl) (importer.Item, error) {
	key, name, deps, err := b.common(d.itemDecl, "audio")
	if err != nil {
		return importer.Item{}, err
	}
	path, err := b.resolve(d.Source, key)
	if err != nil {
		return importer.Item{}, err
	}
	samples, err := loadBytes(path)
	if err != nil {
		return importer.Item{}, err
	}
	it := importer.AudioItem(key, cook.AudioInput{
		SampleRate: d.SampleRate,
		Channels:   d.Channels,
		Normalize:  d.Normalize,
		Samples:    samples,
	})
	it.Name, it.Source, it.Deps = name, d.Source, deps
	return it, nil
}

func (b *builder) material(d materialDecl) (importer.Item, error) {
	key, name, deps, err := b.common(d.itemDecl, "material")
	if err != nil {
		return importer.Item{}, err
	}
	base := [4]float32{1, 1, 1, 1}
	if d.BaseColor != nil {
		base, err = vec4(d.BaseColor, "base_color", key)
		if err != nil {
			return importer.Item{}, err
		}
	}
	it := importer.MaterialItem(key, importer.MaterialSpec{
		Input: cook.MaterialInput{
			BaseColor: base,
			Metallic:  float32(d.Metallic),
			Roughness: float32(d.Roughness),
		},
		Albedo:     normKey(d.Albedo),
		Normal:     normKey(d.Normal),
		MetalRough: normKey(d.MetalRough),
	})
	it.Name, it.Deps = name, deps
	return it, nil
}

func (b *builder) geometry(d geometryDecl) (importer.Item, error) {
	key, name, deps, err := b.common(d.itemDecl, "geometry")
	if err != nil {
		return importer.Item{}, err
	}
	path, err := b.resolve(d.Source, key)
	if err != nil {
		return importer.Item{}, err
	}
	in, err := loadGeometry(path)
	if err != nil {
		return importer.Item{}, err
	}
	it := importer.GeometryItem(key, in)
	it.Name, it.Source, it.Deps = name, d.Source, deps
	return it, nil
}

func (b *builder) scene(d sceneDecl) (importer.Item, error) {
	key, name, deps, err := b.common(d.itemDecl, "scene")
	if err != nil {
		return importer.Item{}, err
	}
	if d.Source != "" && len(d.Nodes) > 0 {
		return importer.Item{}, diag.Wrap(diag.ErrValidation, "bakefile", "parse",
			fmt.Sprintf("scene %q declares both a source and inline nodes", key), nil)
	}

	var spec importer.SceneSpec
	if d.Source != "" {
		path, err := b.resolve(d.Source, key)
		if err != nil {
			return importer.Item{}, err
		}
		nodes, err := loadScene(path)
		if err != nil {
			return importer.Item{}, err
		}
		for _, n := range nodes {
			spec.Nodes = append(spec.Nodes, importer.SceneNode{
				Geometry:    normKey(n.Geometry),
				Material:    normKey(n.Material),
				Translation: n.Translation,
				Rotation:    n.Rotation,
				Scale:       n.Scale,
			})
		}
	} else {
		for _, n := range d.Nodes {
			node := importer.SceneNode{
				Geometry: normKey(n.Geometry),
				Material: normKey(n.Material),
			}
			if node.Translation, err = vec3(n.Translation, "translation", key); err != nil {
				return importer.Item{}, err
			}
			if node.Rotation, err = vec4(n.Rotation, "rotation", key); err != nil {
				return importer.Item{}, err
			}
			if node.Scale, err = vec3(n.Scale, "scale", key); err != nil {
				return importer.Item{}, err
			}
			spec.Nodes = append(spec.Nodes, node)
		}
	}
	it := importer.SceneItem(key, spec)
	it.Name, it.Source, it.Deps = name, d.Source, deps
	return it, nil
}

// normKey puts keys and references into NFC form.
func normKey(key string) string {
	return norm.NFC.String(key)
}

// debugName derives a display name from the last key segment, so
// "hero/albedo_map" reads as "Albedo Map" in logs and progress output.
func debugName(key string) string {
	seg := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		seg = key[i+1:]
	}
	seg = strings.NewReplacer("_", " ", "-", " ").Replace(seg)
	return cases.Title(language.English).String(seg)
}

func vec3(vals []float64, field, key string) ([3]float32, error) {
	var out [3]float32
	if vals == nil {
		return out, nil
	}
	if len(vals) != 3 {
		return out, diag.Wrap(diag.ErrValidation, "bakefile", "parse",
			fmt.Sprintf("item %q %s has %d components, want 3", key, field, len(vals)), nil)
	}
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out, nil
}

func vec4(vals []float64, field, key string) ([4]float32, error) {
	var out [4]float32
	if vals == nil {
		return out, nil
	}
	if len(vals) != 4 {
		return out, diag.Wrap(diag.ErrValidation, "bakefile", "parse",
			fmt.Sprintf("item %q %s has %d components, want 4", key, field, len(vals)), nil)
	}
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out, nil
}
