package cook

import (
	"context"
	"fmt"
)

// TextureFormat identifies the pixel layout of a cooked texture payload.
type TextureFormat uint32

const (
	TextureRGBA8 TextureFormat = 1
	TextureR8    TextureFormat = 2
)

var textureFormatNames = map[TextureFormat]string{
	TextureRGBA8: "rgba8",
	TextureR8:    "r8",
}

func (f TextureFormat) String() string {
	if name, ok := textureFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// BytesPerPixel returns the storage cost of one pixel.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureR8:
		return 1
	default:
		return 4
	}
}

// ParseTextureFormat resolves a format name used in bakefiles.
func ParseTextureFormat(name string) (TextureFormat, error) {
	for f, n := range textureFormatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown texture format %q", name)
}

// TextureDesc describes how a source image should be cooked.
type TextureDesc struct {
	Width            int
	Height           int
	Format           TextureFormat
	GenerateMips     bool
	PremultiplyAlpha bool
}

// TextureInput couples a descriptor with decoded RGBA8 source pixels
// (4 bytes per pixel, row-major, no padding).
type TextureInput struct {
	Desc   TextureDesc
	Pixels []byte
}

// CookedTexture is a packed, ready-to-emit texture payload. Rows inside the
// payload are padded to RowPitchAlign; subresources follow mip-major order
// with layers minor inside each mip.
type CookedTexture struct {
	Payload       []byte
	Format        TextureFormat
	Width         uint32
	Height        uint32
	MipLevels     uint32
	ArrayLayers   uint32
	RowPitch      uint32
	RowPitchAlign uint32
}

// TextureOptions carries job-level cooking configuration.
type TextureOptions struct {
	// RowAlignment pads each packed row to this byte boundary. GPU copy
	// queues require 256 on the platforms this targets.
	RowAlignment int
}

func (o TextureOptions) rowAlignment() int {
	if o.RowAlignment > 0 {
		return o.RowAlignment
	}
	return 256
}

func (in TextureInput) validate() error {
	d := in.Desc
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", d.Width, d.Height)
	}
	if d.Format != TextureRGBA8 && d.Format != TextureR8 {
		return fmt.Errorf("unsupported target format %s", d.Format)
	}
	if want := d.Width * d.Height * 4; len(in.Pixels) != want {
		return fmt.Errorf("pixel data is %d bytes, want %d for %dx%d rgba8", len(in.Pixels), want, d.Width, d.Height)
	}
	return nil
}

// CookTexture runs the texture stage sequence: validate, content-process
// (premultiply), mip generation, format conversion, subresource packing.
func CookTexture(ctx context.Context, run Runner, in TextureInput, opts TextureOptions) (CookedTexture, error) {
	var out CookedTexture
	if err := in.validate(); err != nil {
		return out, err
	}

	pixels := make([]byte, len(in.Pixels))
	copy(pixels, in.Pixels)

	if in.Desc.PremultiplyAlpha {
		if err := run(ctx, func() error {
			premultiplyAlpha(pixels)
			return nil
		}); err != nil {
			return out, fmt.Errorf("premultiply: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	var mips [][]byte
	widths := []int{in.Desc.Width}
	heights := []int{in.Desc.Height}
	if err := run(ctx, func() error {
		mips = [][]byte{pixels}
		if in.Desc.GenerateMips {
			w, h := in.Desc.Width, in.Desc.Height
			for w > 1 || h > 1 {
				next, nw, nh := downsampleRGBA8(mips[len(mips)-1], w, h)
				mips = append(mips, next)
				widths = append(widths, nw)
				heights = append(heights, nh)
				w, h = nw, nh
			}
		}
		return nil
	}); err != nil {
		return out, fmt.Errorf("mip generation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if in.Desc.Format == TextureR8 {
		if err := run(ctx, func() error {
			for i, mip := range mips {
				mips[i] = rgba8ToR8(mip)
			}
			return nil
		}); err != nil {
			return out, fmt.Errorf("format conversion: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	align := opts.rowAlignment()
	bpp := in.Desc.Format.BytesPerPixel()
	var payload []byte
	if err := run(ctx, func() error {
		payload = packSubresources(mips, widths, heights, bpp, align)
		return nil
	}); err != nil {
		return out, fmt.Errorf("subresource packing: %w", err)
	}

	out = CookedTexture{
		Payload:       payload,
		Format:        in.Desc.Format,
		Width:         uint32(in.Desc.Width),
		Height:        uint32(in.Desc.Height),
		MipLevels:     uint32(len(mips)),
		ArrayLayers:   1,
		RowPitch:      uint32(alignUp(in.Desc.Width*bpp, align)),
		RowPitchAlign: uint32(align),
	}
	return out, nil
}

func premultiplyAlpha(pixels []byte) {
	for i := 0; i+3 < len(pixels); i += 4 {
		a := uint32(pixels[i+3])
		if a == 255 {
			continue
		}
		pixels[i+0] = byte((uint32(pixels[i+0])*a + 127) / 255)
		pixels[i+1] = byte((uint32(pixels[i+1])*a + 127) / 255)
		pixels[i+2] = byte((uint32(pixels[i+2])*a + 127) / 255)
	}
}

// downsampleRGBA8 box-filters a mip level to the next. Dimensions halve and
// floor at one; odd edges reuse the last texel so the filter window stays in
// bounds.
func downsampleRGBA8(src []byte, w, h int) ([]byte, int, int) {
	nw, nh := w/2, h/2
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := make([]byte, nw*nh*4)
	for y := 0; y < nh; y++ {
		sy0 := y * 2
		sy1 := sy0 + 1
		if sy1 >= h {
			sy1 = h - 1
		}
		for x := 0; x < nw; x++ {
			sx0 := x * 2
			sx1 := sx0 + 1
			if sx1 >= w {
				sx1 = w - 1
			}
			for c := 0; c < 4; c++ {
				sum := uint32(src[(sy0*w+sx0)*4+c]) +
					uint32(src[(sy0*w+sx1)*4+c]) +
					uint32(src[(sy1*w+sx0)*4+c]) +
					uint32(src[(sy1*w+sx1)*4+c])
				dst[(y*nw+x)*4+c] = byte((sum + 2) / 4)
			}
		}
	}
	return dst, nw, nh
}

// rgba8ToR8 converts to single-channel luminance with BT.709 weights in
// fixed-point arithmetic.
func rgba8ToR8(src []byte) []byte {
	dst := make([]byte, len(src)/4)
	for i := range dst {
		r := uint32(src[i*4+0])
		g := uint32(src[i*4+1])
		b := uint32(src[i*4+2])
		dst[i] = byte((54*r + 183*g + 19*b + 128) >> 8)
	}
	return dst
}

// packSubresources lays mips out mip-major with every row padded to align.
func packSubresources(mips [][]byte, widths, heights []int, bpp, align int) []byte {
	total := 0
	for i := range mips {
		total += alignUp(widths[i]*bpp, align) * heights[i]
	}
	payload := make([]byte, total)
	offset := 0
	for i, mip := range mips {
		rowBytes := widths[i] * bpp
		pitch := alignUp(rowBytes, align)
		for y := 0; y < heights[i]; y++ {
			copy(payload[offset:offset+rowBytes], mip[y*rowBytes:(y+1)*rowBytes])
			offset += pitch
		}
	}
	return payload
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
