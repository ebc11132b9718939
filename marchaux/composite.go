package marchaux

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/glmarch/glrender"
	xdraw "golang.org/x/image/draw"
)

// CompositeMode selects how a rendered frame is combined with a background image.
type CompositeMode uint8

const (
	// CompositeMiss replaces pixels whose ray missed the scene with the background image.
	CompositeMiss CompositeMode = iota
	// CompositeMix blends every pixel of the frame with the background image using [MixWeight].
	CompositeMix
)

// MixWeight is the weight of the background image in [CompositeMix] mode.
const MixWeight = 0.6

// Composite combines frame with background according to mode and returns the result in a new image.
// The background is scaled to the frame size with Catmull-Rom interpolation.
func Composite(frame *image.RGBA, background image.Image, mode CompositeMode) *image.RGBA {
	bb := frame.Bounds()
	scaled := image.NewRGBA(bb)
	xdraw.CatmullRom.Scale(scaled, bb, background, background.Bounds(), xdraw.Src, nil)
	missColor := glrender.ToRGBA(glrender.BackgroundColor())
	dst := image.NewRGBA(bb)
	for y := bb.Min.Y; y < bb.Max.Y; y++ {
		for x := bb.Min.X; x < bb.Max.X; x++ {
			fg := frame.RGBAAt(x, y)
			bg := scaled.RGBAAt(x, y)
			switch mode {
			case CompositeMiss:
				if fg == missColor {
					fg = bg
				}
			case CompositeMix:
				fg = MixColors(fg, bg, MixWeight)
			}
			dst.SetRGBA(x, y, fg)
		}
	}
	return dst
}

// MixColors linearly interpolates each channel between a and b by weight t in [0,1].
func MixColors(a, b color.RGBA, t float32) color.RGBA {
	t = ms1.Clamp(t, 0, 1)
	mix := func(u, v uint8) uint8 {
		return uint8(ms1.Interp(float32(u), float32(v), t) + 0.5)
	}
	return color.RGBA{
		R: mix(a.R, b.R),
		G: mix(a.G, b.G),
		B: mix(a.B, b.B),
		A: mix(a.A, b.A),
	}
}

// DecodeBackground decodes a PNG or JPEG image for use as [RenderConfig.Background].
func DecodeBackground(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}
