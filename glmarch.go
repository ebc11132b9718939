package glmarch

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

const (
	// epstol is used to check for badly conditioned denominators
	// such as blend radii used for smooth operations.
	epstol = 6e-7
)

// Flags is a bitmask of values to control the functioning of the [Builder] type.
type Flags uint64

const (
	// FlagNoDimensionPanic controls panicking behavior on invalid shape dimension errors.
	// If set then these errors are stored in [Builder.Err] instead of panicking.
	FlagNoDimensionPanic Flags = 1 << iota
)

// Builder wraps all SDF primitive and operation logic generation.
// Provides error handling strategies with panics or error accumulation during shape generation.
type Builder struct {
	flags     Flags
	accumErrs []error
}

// Flags returns the current builder flags.
func (bld *Builder) Flags() Flags {
	return bld.flags
}

// SetFlags sets the builder flags.
func (bld *Builder) SetFlags(flags Flags) {
	bld.flags = flags
}

// Err returns all errors accumulated by the builder joined. Is nil if no errors were accumulated.
func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

// ClearErrors clears accumulated errors such that [Builder.Err] returns nil on next call.
func (bld *Builder) ClearErrors() {
	bld.accumErrs = bld.accumErrs[:0]
}

func (bld *Builder) shapeErrorf(msg string, args ...any) {
	if bld.flags&FlagNoDimensionPanic == 0 {
		panic(fmt.Sprintf(msg, args...))
	}
	bld.accumErrs = append(bld.accumErrs, fmt.Errorf(msg, args...))
}

func (*Builder) nilsdf(msg string) {
	panic("nil SDF argument: " + msg)
}

func minf(a, b float32) float32 {
	return math32.Min(a, b)
}

func maxf(a, b float32) float32 {
	return math32.Max(a, b)
}

func clampf(v, Min, Max float32) float32 {
	if v < Min {
		return Min
	} else if v > Max {
		return Max
	}
	return v
}

// mixf is GLSL's mix.
func mixf(x, y, a float32) float32 {
	return x*(1-a) + y*a
}

// fractf is GLSL's fract, which differs from math32.Modf for negative numbers.
func fractf(x float32) float32 {
	return x - math32.Floor(x)
}

func floor2(v ms2.Vec) ms2.Vec {
	return ms2.Vec{X: math32.Floor(v.X), Y: math32.Floor(v.Y)}
}

func fract2(v ms2.Vec) ms2.Vec {
	return ms2.Vec{X: fractf(v.X), Y: fractf(v.Y)}
}
