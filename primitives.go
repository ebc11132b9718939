package glmarch

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch/glbuild"
)

// SphereDistance is the exact signed distance from p to a sphere of radius r centered at the origin.
func SphereDistance(p ms3.Vec, r float32) float32 {
	return ms3.Norm(p) - r
}

// RoundBoxDistance is the signed distance from p to a box centered at the origin with
// half extents b whose edges are rounded by r. The rounding grows the box by r.
func RoundBoxDistance(p, b ms3.Vec, r float32) float32 {
	d := ms3.Sub(ms3.AbsElem(p), b)
	return minf(maxf(d.X, maxf(d.Y, d.Z)), 0) + ms3.Norm(ms3.MaxElem(d, ms3.Vec{})) - r
}

// SmoothMin is the polynomial smooth minimum of two distances with blend radius k.
// For k<=0 it degrades to min(d1,d2).
func SmoothMin(d1, d2, k float32) float32 {
	if k <= epstol {
		return math32.Min(d1, d2)
	}
	h := clampf(0.5+0.5*(d2-d1)/k, 0, 1)
	return mixf(d2, d1, h) - k*h*(1-h)
}

type sphere struct {
	r float32
}

// NewSphere creates a sphere centered at the origin of radius r.
func (bld *Builder) NewSphere(r float32) glbuild.Shader3D {
	valid := r > 0
	if !valid {
		bld.shapeErrorf("zero or negative sphere radius")
	}
	return &sphere{r: r}
}

func (s *sphere) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (s *sphere) AppendShaderName(b []byte) []byte {
	b = append(b, "sphere"...)
	b = glbuild.AppendFloat(b, 'n', 'p', s.r)
	return b
}

func (s *sphere) AppendShaderBody(b []byte) []byte {
	b = append(b, "return length(p)-"...)
	b = glbuild.AppendFloat(b, '-', '.', s.r)
	b = append(b, ';')
	return b
}

func (u *sphere) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	return objects
}

func (s *sphere) Bounds() ms3.Box {
	return ms3.Box{
		Min: ms3.Vec{X: -s.r, Y: -s.r, Z: -s.r},
		Max: ms3.Vec{X: s.r, Y: s.r, Z: s.r},
	}
}

// NewRoundBox creates a box centered at the origin with half extents hx, hy, hz
// and edges rounded by round. The rounding is added on top of the half extents.
func (bld *Builder) NewRoundBox(hx, hy, hz, round float32) glbuild.Shader3D {
	if hx <= 0 || hy <= 0 || hz <= 0 {
		bld.shapeErrorf("zero or negative box half extent")
	}
	if round < 0 {
		bld.shapeErrorf("negative box rounding")
	}
	return &roundBox{half: ms3.Vec{X: hx, Y: hy, Z: hz}, round: round}
}

type roundBox struct {
	half  ms3.Vec
	round float32
}

func (s *roundBox) ForEachChild(userData any, fn func(userData any, s *glbuild.Shader3D) error) error {
	return nil
}

func (s *roundBox) AppendShaderName(b []byte) []byte {
	b = append(b, "roundBox"...)
	arr := s.half.Array()
	b = glbuild.AppendFloats(b, 0, 'n', 'p', arr[:]...)
	b = append(b, 'r')
	b = glbuild.AppendFloat(b, 'n', 'p', s.round)
	return b
}

func (s *roundBox) AppendShaderBody(b []byte) []byte {
	b = glbuild.AppendVec3Decl(b, "b", s.half)
	b = glbuild.AppendFloatDecl(b, "r", s.round)
	b = append(b, `vec3 d = abs(p) - b;
return min(max(d.x,max(d.y,d.z)),0.0) + length(max(d,0.0)) - r;`...)
	return b
}

func (u *roundBox) AppendShaderObjects(objects []glbuild.ShaderObject) []glbuild.ShaderObject {
	return objects
}

func (s *roundBox) Bounds() ms3.Box {
	ext := ms3.AddScalar(s.round, s.half)
	return ms3.Box{
		Min: ms3.Scale(-1, ext),
		Max: ext,
	}
}
