package glmarch

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch/gleval"
)

// minReduce takes element-wise minimum of arguments and stores to first argument.
func minReduce(d1AndDst, d2 []float32) {
	for i := range d1AndDst {
		d1AndDst[i] = math32.Min(d1AndDst[i], d2[i])
	}
}

func evaluateSDF3(obj interface{ Bounds() ms3.Box }, pos []ms3.Vec, dist []float32, userData any) error {
	sdf, err := gleval.AssertSDF3(obj)
	if err != nil {
		return err
	}
	return sdf.Evaluate(pos, dist, userData)
}

func (u *sphere) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	r := u.r
	for i, p := range pos {
		dist[i] = SphereDistance(p, r)
	}
	return nil
}

func (b *roundBox) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	half, r := b.half, b.round
	for i, p := range pos {
		dist[i] = RoundBoxDistance(p, half, r)
	}
	return nil
}

// Evaluate implements [gleval.SDF3].
func (u *OpUnion) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	u.mustValidate()
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	auxDist := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(auxDist)
	err = evaluateSDF3(u.joined[0], pos, dist, userData)
	if err != nil {
		return err
	}
	for _, shape := range u.joined[1:] {
		err = evaluateSDF3(shape, pos, auxDist, userData)
		if err != nil {
			return err
		}
		minReduce(dist, auxDist)
	}
	return nil
}

func (u *smoothUnion) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	d1 := dist
	d2 := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(d2)
	err = evaluateSDF3(u.s1, pos, d1, userData)
	if err != nil {
		return err
	}
	err = evaluateSDF3(u.s2, pos, d2, userData)
	if err != nil {
		return err
	}
	k := u.k
	for i := range dist {
		dist[i] = SmoothMin(d1[i], d2[i], k)
	}
	return nil
}

func (t *translate) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(transformed)
	T := t.p
	for i, p := range pos {
		transformed[i] = ms3.Sub(p, T)
	}
	return evaluateSDF3(t.s, transformed, dist, userData)
}

func (nd *noiseDisplace) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	fd, err := gleval.GetFrameData(userData)
	if err != nil {
		return err
	}
	err = evaluateSDF3(nd.s, pos, dist, userData)
	if err != nil {
		return err
	}
	shift := fd.Time * nd.speed
	for i, p := range pos {
		dist[i] += ValueNoise(ms2.Vec{X: p.X + shift, Y: p.Y + shift})
	}
	return nil
}

func (b *bend) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	warped := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(warped)
	k := b.k
	for i, p := range pos {
		warped[i] = bendWarp(p, k)
	}
	return evaluateSDF3(b.s, warped, dist, userData)
}

func (t *twist) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	warped := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(warped)
	k := t.k
	for i, p := range pos {
		warped[i] = twistWarp(p, k)
	}
	return evaluateSDF3(t.s, warped, dist, userData)
}
