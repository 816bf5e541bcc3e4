package bakefile

import (
	"encoding/json"
	"image"
	"image/draw"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"kiln/internal/cook"
	"kiln/internal/diag"
)

// loadImage decodes a PNG or JPEG file into non-premultiplied RGBA8 pixels.
func loadImage(path string) (pixels []byte, width, height int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, diag.Wrap(diag.ErrIO, "bakefile", "load", "open image", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, 0, 0, diag.Wrap(diag.ErrValidation, "bakefile", "load", path, err)
	}
	bounds := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba.Pix, bounds.Dx(), bounds.Dy(), nil
}

func loadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.ErrIO, "bakefile", "load", "read source", err)
	}
	return data, nil
}

type geometrySource struct {
	Positions []float32 `json:"positions"`
	Normals   []float32 `json:"normals"`
	UVs       []float32 `json:"uvs"`
	Indices   []uint32  `json:"indices"`
}

func loadGeometry(path string) (cook.GeometryInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cook.GeometryInput{}, diag.Wrap(diag.ErrIO, "bakefile", "load", "read geometry", err)
	}
	var src geometrySource
	if err := json.Unmarshal(raw, &src); err != nil {
		return cook.GeometryInput{}, diag.Wrap(diag.ErrValidation, "bakefile", "load", path, err)
	}
	return cook.GeometryInput{
		Positions: src.Positions,
		Normals:   src.Normals,
		UVs:       src.UVs,
		Indices:   src.Indices,
	}, nil
}

type sceneNodeSource struct {
	Geometry    string     `json:"geometry"`
	Material    string     `json:"material"`
	Translation [3]float32 `json:"translation"`
	Rotation    [4]float32 `json:"rotation"`
	Scale       [3]float32 `json:"scale"`
}

type sceneSource struct {
	Nodes []sceneNodeSource `json:"nodes"`
}

func loadScene(path string) ([]sceneNodeSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.ErrIO, "bakefile", "load", "read scene", err)
	}
	var src sceneSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, diag.Wrap(diag.ErrValidation, "bakefile", "load", path, err)
	}
	return src.Nodes, nil
}
