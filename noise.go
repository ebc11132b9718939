package glmarch

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

// Hash constants. Changing them changes every generated noise pattern.
const (
	hashKX = 12.9898
	hashKY = 78.233
	hashC  = 43758.5453123
)

// Hash is the classic shader pseudo-random number generator keyed by a 2D coordinate:
//
//	fract(sin(dot(st, vec2(12.9898,78.233))) * 43758.5453123)
//
// The result lies in [0,1). It is deterministic but not uniformly distributed
// and relies on float32 rounding of sin for large arguments.
func Hash(st ms2.Vec) float32 {
	k := ms2.Vec{X: hashKX, Y: hashKY}
	return fractf(math32.Sin(ms2.Dot(st, k)) * hashC)
}

// ValueNoise is 2D value noise over the integer lattice. The corner values
// are given by [Hash] and blended with a cubic Hermite curve:
//
//	mix(a, b, u.x) + (c - a)*u.y*(1 - u.x) + (d - b)*u.x*u.y
//
// where a, b, c, d are the hashes of the lower-left, lower-right, upper-left and
// upper-right corners of the cell containing st. The result lies in [0,1) and
// is continuous across cell boundaries.
func ValueNoise(st ms2.Vec) float32 {
	i := floor2(st)
	f := fract2(st)
	a := Hash(i)
	b := Hash(ms2.Add(i, ms2.Vec{X: 1}))
	c := Hash(ms2.Add(i, ms2.Vec{Y: 1}))
	d := Hash(ms2.Add(i, ms2.Vec{X: 1, Y: 1}))
	u := hermite2(f)
	return mixf(a, b, u.X) +
		(c-a)*u.Y*(1-u.X) +
		(d-b)*u.X*u.Y
}

// hermite2 is f*f*(3-2*f) applied componentwise, same as smoothstep(0,1,f) for f in [0,1].
func hermite2(f ms2.Vec) ms2.Vec {
	return ms2.Vec{
		X: f.X * f.X * (3 - 2*f.X),
		Y: f.Y * f.Y * (3 - 2*f.Y),
	}
}
