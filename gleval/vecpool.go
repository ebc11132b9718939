package gleval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// VecPool provides scratch buffers for SDF evaluation so that evaluators
// do not allocate on every call. A VecPool must not be shared between goroutines.
type VecPool struct {
	V3    bufPool[ms3.Vec]
	Float bufPool[float32]
}

// AssertAllReleased returns an error if any buffer is still acquired.
func (vp *VecPool) AssertAllReleased() error {
	err := vp.Float.assertAllReleased()
	if err != nil {
		return fmt.Errorf("float pool: %w", err)
	}
	err = vp.V3.assertAllReleased()
	if err != nil {
		return fmt.Errorf("vec3 pool: %w", err)
	}
	return nil
}

// GetVecPool extracts the [VecPool] from userData. userData may be a *VecPool
// or implement a VecPool() *VecPool method such as [FrameData].
func GetVecPool(userData any) (*VecPool, error) {
	switch ud := userData.(type) {
	case *VecPool:
		if ud != nil {
			return ud, nil
		}
	case interface{ VecPool() *VecPool }:
		vp := ud.VecPool()
		if vp != nil {
			return vp, nil
		}
	}
	return nil, fmt.Errorf("userData of type %T does not contain a VecPool", userData)
}

type bufPool[T any] struct {
	ins      [][]T
	acquired []bool
}

// Acquire returns a buffer of the requested length. The contents of the buffer are not zeroed.
// Release must be called on the buffer when done.
func (bp *bufPool[T]) Acquire(length int) []T {
	for i, locked := range bp.acquired {
		if !locked && cap(bp.ins[i]) >= length {
			bp.acquired[i] = true
			return bp.ins[i][:length]
		}
	}
	newSlice := make([]T, length)
	bp.ins = append(bp.ins, newSlice)
	bp.acquired = append(bp.acquired, true)
	return newSlice
}

// Release returns a buffer obtained from Acquire to the pool.
func (bp *bufPool[T]) Release(buf []T) error {
	if cap(buf) == 0 {
		return errors.New("release of zero capacity buffer")
	}
	for i, instance := range bp.ins {
		if cap(instance) == cap(buf) && &instance[:1][0] == &buf[:1][0] {
			if !bp.acquired[i] {
				return errors.New("release of unacquired resource")
			}
			bp.acquired[i] = false
			return nil
		}
	}
	return errors.New("release of nonexistent resource")
}

func (bp *bufPool[T]) assertAllReleased() error {
	for _, locked := range bp.acquired {
		if locked {
			return errors.New("not all buffers released")
		}
	}
	return nil
}

// FrameData holds values that are constant over a single frame, akin to shader uniforms.
// It is passed as userData to [SDF3.Evaluate] so time-animated distance fields can
// read the elapsed time. Each goroutine evaluating a frame must use its own FrameData
// since it carries a [VecPool].
type FrameData struct {
	// Time is the elapsed animation time in seconds.
	Time float32
	// Resolution is the viewport size in pixels.
	Resolution ms2.Vec
	VP         VecPool
}

// VecPool returns the FrameData's scratch buffers.
func (fd *FrameData) VecPool() *VecPool { return &fd.VP }

// GetFrameData extracts the [FrameData] from userData.
func GetFrameData(userData any) (*FrameData, error) {
	switch ud := userData.(type) {
	case *FrameData:
		if ud != nil {
			return ud, nil
		}
	case interface{ FrameData() *FrameData }:
		fd := ud.FrameData()
		if fd != nil {
			return fd, nil
		}
	}
	return nil, fmt.Errorf("time dependent SDF requires *gleval.FrameData userData, got %T", userData)
}
