//go:build tinygo || !cgo

package gleval

import (
	"errors"
	"io"

	"github.com/soypat/geometry/ms3"
)

var errNoCGO = errors.New("GPU evaluation requires CGo and is not supported on TinyGo")

// Init1x1GLFW starts a 1x1 sized GLFW so that user can start working with GPU.
func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// ComputeConfig configures GPU compute evaluation.
type ComputeConfig struct {
	InvocX int
}

// NewComputeGPUSDF3 instantiates a [SDF3] that runs on the GPU.
func NewComputeGPUSDF3(glglSourceCode io.Reader, bb ms3.Box, cfg ComputeConfig) (*SDF3Compute, error) {
	return nil, errNoCGO
}

type SDF3Compute struct {
	bb ms3.Box
}

func (sdf *SDF3Compute) Bounds() ms3.Box {
	return sdf.bb
}

func (sdf *SDF3Compute) Evaluations() uint64 { return 0 }

func (sdf *SDF3Compute) Release() {}

func (sdf *SDF3Compute) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	return errNoCGO
}
