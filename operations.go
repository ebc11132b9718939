package glmarch

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch/glbuild"
	"github.com/soypat/glmarch/glbuild/glsllib"
)

// OpUnion is the result of the [Union] operation. Prefer using [Union] to using this type directly.
//
// OpUnion is exported so that users can traverse a [glbuild.Shader3D] tree looking for
// unions and inspect the shapes being joined.
type OpUnion struct {
	// joined contains 2 or more 3D SDFs.
	// OpUnion methods will panic if joined less than 2 elements.
	joined []glbuild.Shader3D
}

// Union joins the shapes of several 3D SDFs into one. Is exact.
// Union aggregates nested Union results into its own. To prevent this behaviour use [OpUnion] directly.
func (bld *Builder) Union(shaders ...glbuild.Shader3D) glbuild.Shader3D {
	if len(shaders) < 2 {
		panic("need at least 2 arguments to Union")
	}
	var U OpUnion
	for i, s := range shaders {
		if s == nil {
			bld.nilsdf(fmt.Sprintf("nil arg[%d] to Union", i))
		}
		if subU, ok := s.(*OpUnion); ok {
			// Discard nested union elements and join their elements.
			U.joined = append(U.joined, subU.joined...)
		} else {
			U.joined = append(U.joined, s)
		}
	}
	return &U
}

// Bounds returns the union of all joined SDFs. Implements [glbuild.Shader3D] and [gleval.SDF3].
func (u *OpUnion) Bounds() ms3.Box {
	u.mustValidate()
	bb := u.joined[0].Bounds()
	for _, bb2 := range u.joined[1:] {
		bb = bb.Union(bb2.Bounds())
	}
	return bb
}

// ForEachChild implements [glbuild.Shader3D].
func (u *OpUnion) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	u.mustValidate()
	for i := range u.joined {
		err := fn(userData, &u.joined[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// AppendShaderName implements [glbuild.Shader].
func (u *OpUnion) AppendShaderName(b []byte) []byte {
	u.mustValidate()
	b = append(b, "union_"...)
	for i := range u.joined {
		b = u.joined[i].AppendShaderName(b)
		if i < len(u.joined)-1 {
			b = append(b, '_')
		}
	}
	return b
}

// AppendShaderBody implements [glbuild.Shader].
func (u *OpUnion) AppendShaderBody(b []byte) []byte {
	u.mustValidate()
	b = glbuild.AppendDistanceDecl(b, "d", "p", u.joined[0])
	for i := range u.joined[1:] {
		b = append(b, "d=min(d,"...)
		b = u.joined[i+1].AppendShaderName(b)
		b = append(b, "(p));\n"...)
	}
	b = append(b, "return d;"...)
	return b
}

// AppendShaderObjects implements [glbuild.Shader]. This method returns the argument buffer with no modifications.
func (u *OpUnion) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	u.mustValidate()
	return objects
}

func (u *OpUnion) mustValidate() {
	if len(u.joined) < 2 {
		panic("OpUnion must have at least 2 elements. please prefer using Builder.Union over OpUnion")
	}
}

// SmoothUnion joins the shapes of two shaders into one with a smoothing blend of radius k.
func (bld *Builder) SmoothUnion(k float32, s1, s2 glbuild.Shader3D) glbuild.Shader3D {
	if s1 == nil || s2 == nil {
		bld.nilsdf("SmoothUnion")
	}
	if k <= epstol {
		bld.shapeErrorf("smooth union blend radius too small")
	}
	return &smoothUnion{s1: s1, s2: s2, k: k}
}

type smoothUnion struct {
	s1, s2 glbuild.Shader3D
	k      float32
}

func (s *smoothUnion) Bounds() ms3.Box {
	return s.s1.Bounds().Union(s.s2.Bounds())
}

func (s *smoothUnion) ForEachChild(userData any, fn func(any, *glbuild.Shader3D) error) error {
	err := fn(userData, &s.s1)
	if err != nil {
		return err
	}
	return fn(userData, &s.s2)
}

func (s *smoothUnion) AppendShaderName(b []byte) []byte {
	b = append(b, "smoothUnion"...)
	b = glbuild.AppendFloat(b, 'n', 'p', s.k)
	b = append(b, '_')
	b = s.s1.AppendShaderName(b)
	b = append(b, '_')
	b = s.s2.AppendShaderName(b)
	return b
}

func (s *smoothUnion) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendDistanceDecl(b, "d1", "p", s.s1)
	b = glbuild.AppendDistanceDecl(b, "d2", "p", s.s2)
	b = glbuild.AppendFloatDecl(b, "k", s.k)
	b = append(b, `float h = clamp( 0.5 + 0.5*(d2-d1)/k, 0.0, 1.0 );
return mix( d2, d1, h ) - k*h*(1.0-h);`...)
	return b
}

func (u *smoothUnion) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	return objects
}

// Translate moves the SDF s in the given direction (dirX, dirY, dirZ) and returns the result.
func (bld *Builder) Translate(s glbuild.Shader3D, dirX, dirY, dirZ float32) glbuild.Shader3D {
	if s == nil {
		bld.nilsdf("Translate")
	}
	return &translate{s: s, p: ms3.Vec{X: dirX, Y: dirY, Z: dirZ}}
}

type translate struct {
	s glbuild.Shader3D
	p ms3.Vec
}

func (u *translate) Bounds() ms3.Box {
	return u.s.Bounds().Add(u.p)
}

func (s *translate) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return fn(userData, &s.s)
}

func (s *translate) AppendShaderName(b []byte) []byte {
	b = append(b, "translate"...)
	arr := s.p.Array()
	b = glbuild.AppendFloats(b, 0, 'n', 'p', arr[:]...)
	b = append(b, '_')
	b = s.s.AppendShaderName(b)
	return b
}

func (s *translate) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendVec3Decl(b, "t", s.p)
	b = append(b, "return "...)
	b = s.s.AppendShaderName(b)
	b = append(b, "(p-t);"...)
	return b
}

func (u *translate) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	return objects
}

// NoiseDisplace adds animated value noise to the distance of s:
//
//	s(p) + ValueNoise(p.xy + t*speed)
//
// where t is the frame time. The result is not a true SDF. Since the noise
// is non-negative the surface only shrinks, so the bounds of s are kept.
// CPU evaluation requires a [gleval.FrameData] as userData.
func (bld *Builder) NoiseDisplace(s glbuild.Shader3D, speed float32) glbuild.Shader3D {
	if s == nil {
		bld.nilsdf("NoiseDisplace")
	}
	return &noiseDisplace{s: s, speed: speed}
}

type noiseDisplace struct {
	s     glbuild.Shader3D
	speed float32
}

func (nd *noiseDisplace) Bounds() ms3.Box {
	return nd.s.Bounds()
}

func (nd *noiseDisplace) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return fn(userData, &nd.s)
}

func (nd *noiseDisplace) AppendShaderName(b []byte) []byte {
	b = append(b, "noiseDisplace"...)
	b = glbuild.AppendFloat(b, 'n', 'p', nd.speed)
	b = append(b, '_')
	b = nd.s.AppendShaderName(b)
	return b
}

func (nd *noiseDisplace) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendFloatDecl(b, "speed", nd.speed)
	b = append(b, "return "...)
	b = nd.s.AppendShaderName(b)
	b = append(b, "(p) + glmValueNoise(p.xy + vec2("+glbuild.TimeUniform+"*speed));"...)
	return b
}

func (nd *noiseDisplace) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	return append(objects, glsllib.Hash(), glsllib.ValueNoise())
}

// Bend warps the domain of s by rotating the XY plane by an angle of k*x radians.
// The result is not a true SDF for large k.
func (bld *Builder) Bend(s glbuild.Shader3D, k float32) glbuild.Shader3D {
	if s == nil {
		bld.nilsdf("Bend")
	}
	return &bend{s: s, k: k}
}

type bend struct {
	s glbuild.Shader3D
	k float32
}

// Bounds returns a box enclosing every point whose XY projection lies within the
// radius of the child's XY extents. Rotations in XY preserve that radius.
func (b *bend) Bounds() ms3.Box {
	bb := b.s.Bounds()
	r := planeRadius(bb.Min.X, bb.Max.X, bb.Min.Y, bb.Max.Y)
	return ms3.Box{
		Min: ms3.Vec{X: -r, Y: -r, Z: bb.Min.Z},
		Max: ms3.Vec{X: r, Y: r, Z: bb.Max.Z},
	}
}

func (b *bend) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return fn(userData, &b.s)
}

func (b *bend) AppendShaderName(dst []byte) []byte {
	dst = append(dst, "bend"...)
	dst = glbuild.AppendFloat(dst, 'n', 'p', b.k)
	dst = append(dst, '_')
	dst = b.s.AppendShaderName(dst)
	return dst
}

func (b *bend) AppendShaderBody(dst []byte) []byte {
	dst = append(dst, "return "...)
	dst = b.s.AppendShaderName(dst)
	dst = append(dst, "(glmBend(p,"...)
	dst = glbuild.AppendFloat(dst, '-', '.', b.k)
	dst = append(dst, "));"...)
	return dst
}

func (b *bend) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	return append(objects, glsllib.Bend())
}

// Twist warps the domain of s by rotating the XZ plane by an angle of k*y radians.
// The rotated XZ coordinates become the child's XY and the input y becomes the child's z.
func (bld *Builder) Twist(s glbuild.Shader3D, k float32) glbuild.Shader3D {
	if s == nil {
		bld.nilsdf("Twist")
	}
	return &twist{s: s, k: k}
}

type twist struct {
	s glbuild.Shader3D
	k float32
}

func (t *twist) Bounds() ms3.Box {
	bb := t.s.Bounds()
	r := planeRadius(bb.Min.X, bb.Max.X, bb.Min.Y, bb.Max.Y)
	return ms3.Box{
		Min: ms3.Vec{X: -r, Y: bb.Min.Z, Z: -r},
		Max: ms3.Vec{X: r, Y: bb.Max.Z, Z: r},
	}
}

func (t *twist) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return fn(userData, &t.s)
}

func (t *twist) AppendShaderName(dst []byte) []byte {
	dst = append(dst, "twist"...)
	dst = glbuild.AppendFloat(dst, 'n', 'p', t.k)
	dst = append(dst, '_')
	dst = t.s.AppendShaderName(dst)
	return dst
}

func (t *twist) AppendShaderBody(dst []byte) []byte {
	dst = append(dst, "return "...)
	dst = t.s.AppendShaderName(dst)
	dst = append(dst, "(glmTwist(p,"...)
	dst = glbuild.AppendFloat(dst, '-', '.', t.k)
	dst = append(dst, "));"...)
	return dst
}

func (t *twist) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	return append(objects, glsllib.Twist())
}

// planeRadius returns the largest distance from the origin to the rectangle's corners.
func planeRadius(minA, maxA, minB, maxB float32) float32 {
	a := maxf(math32.Abs(minA), math32.Abs(maxA))
	b := maxf(math32.Abs(minB), math32.Abs(maxB))
	return math32.Hypot(a, b)
}

// bendWarp is the CPU version of glmBend: mat2(c,-s,s,c)*p.xy.
func bendWarp(p ms3.Vec, k float32) ms3.Vec {
	s, c := math32.Sincos(k * p.X)
	return ms3.Vec{
		X: c*p.X + s*p.Y,
		Y: -s*p.X + c*p.Y,
		Z: p.Z,
	}
}

// twistWarp is the CPU version of glmTwist: vec3(mat2(c,-s,s,c)*p.xz, p.y).
func twistWarp(p ms3.Vec, k float32) ms3.Vec {
	s, c := math32.Sincos(k * p.Y)
	return ms3.Vec{
		X: c*p.X + s*p.Z,
		Y: -s*p.X + c*p.Z,
		Z: p.Y,
	}
}
