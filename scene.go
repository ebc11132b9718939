package glmarch

import (
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch/glbuild"
)

// Scene parameters of the bumpy sphere.
const (
	bumpyRadius = 1.0
	// NoiseSpeed is the rate at which the noise pattern slides along the XY diagonal per unit of time.
	NoiseSpeed = 0.2
)

// MapTheWorld is the closed form distance of the default scene at p and time t:
// a unit sphere at the origin displaced by value noise sliding with time.
//
//	length(p) - 1 + ValueNoise(p.xy + t*0.2)
//
// It is equivalent to evaluating [DefaultScene] with t as the frame time.
func MapTheWorld(p ms3.Vec, t float32) float32 {
	shift := t * NoiseSpeed
	return SphereDistance(p, bumpyRadius) + ValueNoise(ms2.Vec{X: p.X + shift, Y: p.Y + shift})
}

// NewBumpySphere returns a unit sphere displaced by animated value noise. See [MapTheWorld].
func (bld *Builder) NewBumpySphere() glbuild.Shader3D {
	return bld.NoiseDisplace(bld.NewSphere(bumpyRadius), NoiseSpeed)
}

// DefaultScene returns the scene rendered by default, the bumpy sphere.
func DefaultScene() glbuild.Shader3D {
	var bld Builder
	return bld.NewBumpySphere()
}

// SmoothSpheresScene returns two unit spheres, one at the origin and one displaced
// by -0.5 along x, joined with a smooth union of blend radius 0.1.
func SmoothSpheresScene() glbuild.Shader3D {
	var bld Builder
	s0 := bld.NewSphere(1)
	s1 := bld.Translate(bld.NewSphere(1), -0.5, 0, 0)
	return bld.SmoothUnion(0.1, s0, s1)
}

// RoundBoxScene returns a box of half extents (0.2,0.4,0.5) with edges rounded by 0.1.
func RoundBoxScene() glbuild.Shader3D {
	var bld Builder
	return bld.NewRoundBox(0.2, 0.4, 0.5, 0.1)
}

// BentBoxScene returns [RoundBoxScene] with its domain bent by k=5.
func BentBoxScene() glbuild.Shader3D {
	var bld Builder
	return bld.Bend(RoundBoxScene(), 5)
}

// TwistedBoxScene returns [RoundBoxScene] with its domain twisted by k=1.
func TwistedBoxScene() glbuild.Shader3D {
	var bld Builder
	return bld.Twist(RoundBoxScene(), 1)
}

// SphereBoxScene returns a sphere of radius 0.6 centered at x=-0.6 next to
// [RoundBoxScene] centered at x=0.6, joined with an exact union.
func SphereBoxScene() glbuild.Shader3D {
	var bld Builder
	sphere := bld.Translate(bld.NewSphere(0.6), -0.6, 0, 0)
	box := bld.Translate(RoundBoxScene(), 0.6, 0, 0)
	return bld.Union(sphere, box)
}

// Scenes maps scene names to their constructors.
var Scenes = map[string]func() glbuild.Shader3D{
	"bumpy":         DefaultScene,
	"smoothspheres": SmoothSpheresScene,
	"roundbox":      RoundBoxScene,
	"bentbox":       BentBoxScene,
	"twistedbox":    TwistedBoxScene,
	"spherebox":     SphereBoxScene,
}
