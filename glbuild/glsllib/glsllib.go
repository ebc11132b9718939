// Package glsllib contains GLSL functions shared between several shaders.
// Each function is returned as a [glbuild.ShaderObject] so that the
// [glbuild.Programmer] writes it once per program.
package glsllib

import (
	_ "embed"

	"github.com/soypat/glmarch/glbuild"
)

//go:embed hash.glsl
var hashSrc []byte

// Hash is the 2D-keyed pseudo random number generator in [0,1):
//
//	float glmHash(vec2 st)
func Hash() glbuild.ShaderObject {
	obj, _ := glbuild.MakeShaderFunction(hashSrc)
	return obj
}

//go:embed noise.glsl
var valueNoiseSrc []byte

// ValueNoise is 2D value noise over the integer lattice. Requires [Hash] to be declared before it:
//
//	float glmValueNoise(vec2 st)
func ValueNoise() glbuild.ShaderObject {
	obj, _ := glbuild.MakeShaderFunction(valueNoiseSrc)
	return obj
}

//go:embed bend.glsl
var bendSrc []byte

// Bend is a domain warp rotating the XY plane proportional to x:
//
//	vec3 glmBend(vec3 p, float k)
func Bend() glbuild.ShaderObject {
	obj, _ := glbuild.MakeShaderFunction(bendSrc)
	return obj
}

//go:embed twist.glsl
var twistSrc []byte

// Twist is a domain warp rotating the XZ plane proportional to y:
//
//	vec3 glmTwist(vec3 p, float k)
func Twist() glbuild.ShaderObject {
	obj, _ := glbuild.MakeShaderFunction(twistSrc)
	return obj
}
