// Package glrender sphere-traces signed distance fields into shaded pixels.
//
// Every pixel is an independent function of its coordinate, the viewport
// resolution and the frame time. The camera, light and colors are fixed.
package glrender

import (
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch/glbuild"
	"github.com/soypat/glmarch/gleval"
)

// Sphere tracing constants.
const (
	// MaxMarchSteps is the number of distance field evaluations allowed per ray.
	MaxMarchSteps = 32
	// MinHitDistance is the distance below which a ray is considered to hit the surface.
	MinHitDistance = 0.001
	// MaxTraceDistance is the traveled distance beyond which a ray is considered a miss.
	MaxTraceDistance = 1000.0
	// NormalStep is the central difference offset along each axis used to estimate normals.
	NormalStep = 0.001
)

var (
	camera     = ms3.Vec{X: 0, Y: 0, Z: -2}
	light      = ms3.Vec{X: 2, Y: -5, Z: 5}
	albedo     = ms3.Vec{X: 1, Y: 0, Z: 0.1}
	background = ms3.Vec{X: 0, Y: 0.2, Z: 0.3}
)

// CameraPosition returns the fixed ray origin shared by all pixels.
func CameraPosition() ms3.Vec { return camera }

// BackgroundColor returns the RGBA color of pixels whose ray does not hit a surface.
func BackgroundColor() [4]float32 { return rgba(background) }

// RayDirection returns the direction of the ray through fragCoord. The direction
// is not normalized and there is no aspect correction:
//
//	uv = (fragCoord/resolution)*2 - 1
//	rd = (uv.x, uv.y, 1)
func RayDirection(fragCoord, resolution ms2.Vec) ms3.Vec {
	uv := ms2.Scale(2, ms2.DivElem(fragCoord, resolution))
	return ms3.Vec{X: uv.X - 1, Y: uv.Y - 1, Z: 1}
}

// RaymarchConfig returns the raymarcher constants of this package for GPU program generation
// with [glbuild.Programmer.WriteFragRaymarcher].
func RaymarchConfig(dialect glbuild.Dialect) glbuild.RaymarchConfig {
	return glbuild.RaymarchConfig{
		Dialect:     dialect,
		MaxSteps:    MaxMarchSteps,
		HitDistance: MinHitDistance,
		MaxDistance: MaxTraceDistance,
		NormalStep:  NormalStep,
		Camera:      camera,
		Light:       light,
		Albedo:      albedo,
		Background:  background,
	}
}

// Evaluate returns the RGBA color of a single pixel at fragCoord of a viewport of size
// resolution at time t. Channels lie in [0,1] and alpha is always 1.
// Evaluate allocates scratch buffers on every call; use a [Marcher] or [ImageRenderer]
// when shading many pixels.
func Evaluate(sdf gleval.SDF3, fragCoord, resolution ms2.Vec, t float32) ([4]float32, error) {
	var m Marcher
	fd := gleval.FrameData{Time: t, Resolution: resolution}
	var dst [1][4]float32
	err := m.Shade(sdf, []ms2.Vec{fragCoord}, resolution, dst[:], &fd)
	return dst[0], err
}

func rgba(c ms3.Vec) [4]float32 {
	return [4]float32{c.X, c.Y, c.Z, 1}
}
