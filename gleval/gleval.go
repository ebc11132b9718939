package gleval

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/soypat/geometry/ms3"
)

// SDF3 implements a 3D signed distance field in vectorized
// form suitable for running on GPU.
type SDF3 interface {
	// Evaluate evaluates the signed distance field over pos positions.
	// dist and pos must be of same length.  Resulting distances are stored
	// in dist.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool] and [FrameData].
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
	// Bounds returns the SDF's bounding box such that all of the shape is contained within.
	Bounds() ms3.Box
}

type bounder3 = interface{ Bounds() ms3.Box }

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
)

// AssertSDF3 asserts the argument as a SDF3 and returns a descriptive error if it fails.
func AssertSDF3(s bounder3) (SDF3, error) {
	evaluator, ok := s.(SDF3)
	if !ok {
		return nil, fmt.Errorf("%T does not implement gleval.SDF3", s)
	}
	return evaluator, nil
}

// NewCPUSDF3 checks if the shader implements CPU evaluation and returns a [SDF3CPU]
// ready for evaluation. SDF3CPU is safe for concurrent use as long as each goroutine
// passes its own [VecPool] through userData.
func NewCPUSDF3(root bounder3) (*SDF3CPU, error) {
	sdf, err := AssertSDF3(root)
	if err != nil {
		return nil, fmt.Errorf("top level SDF cannot be CPU evaluated: %s", err.Error())
	}
	return &SDF3CPU{SDF: sdf}, nil
}

// SDF3CPU implements the SDF3 interface using the CPU for evaluation.
type SDF3CPU struct {
	SDF   SDF3
	evals atomic.Uint64
}

// Evaluate performs CPU evaluation of the underlying SDF3.
func (sdf *SDF3CPU) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	err := sdf.SDF.Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	sdf.evals.Add(uint64(len(pos)))
	return nil
}

// Bounds returns the SDF's bounding box such that all of the shape is contained within.
func (sdf *SDF3CPU) Bounds() ms3.Box {
	return sdf.SDF.Bounds()
}

// Evaluations returns total evaluations performed succesfully during sdf's lifetime.
func (sdf *SDF3CPU) Evaluations() uint64 { return sdf.evals.Load() }

// NormalsCentralDiff uses central differences algorithm for normal calculation, which are stored in normals for each position.
// Each component is calculated as f(p+h)-f(p-h) where h is step/2 along the component's axis.
// All six offset positions are evaluated in a single call to s so GPU evaluators dispatch once.
// The returned normals are not normalized (converted to unit length).
func NormalsCentralDiff(s SDF3, pos []ms3.Vec, normals []ms3.Vec, step float32, userData any) error {
	step *= 0.5
	if step <= 0 {
		return errors.New("invalid step")
	} else if len(pos) != len(normals) {
		return errors.New("length of position must match length of normals")
	} else if s == nil {
		return errors.New("nil SDF3")
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return fmt.Errorf("VecPool required in both GPU and CPU situations for Normal calculation: %s", err)
	}
	n := len(pos)
	offsets := [6]ms3.Vec{{X: step}, {X: -step}, {Y: step}, {Y: -step}, {Z: step}, {Z: -step}}
	auxPos := vp.V3.Acquire(6 * n)
	dist := vp.Float.Acquire(6 * n)
	defer vp.V3.Release(auxPos)
	defer vp.Float.Release(dist)
	for k, h := range offsets {
		shifted := auxPos[k*n : (k+1)*n]
		for i, p := range pos {
			shifted[i] = ms3.Add(p, h)
		}
	}
	err = s.Evaluate(auxPos, dist, userData)
	if err != nil {
		return err
	}
	dx, dy, dz := dist[:2*n], dist[2*n:4*n], dist[4*n:]
	for i := range normals {
		normals[i] = ms3.Vec{
			X: dx[i] - dx[n+i],
			Y: dy[i] - dy[n+i],
			Z: dz[i] - dz[n+i],
		}
	}
	return nil
}
