package glrender

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch/gleval"
)

// MarchStatus is the outcome of sphere tracing a single ray.
type MarchStatus uint8

const (
	// MarchExhausted means the step budget ran out before a hit or miss. Shaded as a miss.
	MarchExhausted MarchStatus = iota
	// MarchHit means the distance field fell below [MinHitDistance].
	MarchHit
	// MarchMiss means the ray traveled beyond [MaxTraceDistance].
	MarchMiss
)

func (ms MarchStatus) String() string {
	switch ms {
	case MarchExhausted:
		return "exhausted"
	case MarchHit:
		return "hit"
	case MarchMiss:
		return "miss"
	}
	return "MarchStatus(" + fmt.Sprint(uint8(ms)) + ")"
}

// MarchResult is the result of sphere tracing a single ray.
type MarchResult struct {
	// Pos is the last position evaluated. For hits it is the surface position.
	Pos ms3.Vec
	// Traveled is the ray parameter of Pos, in units of the ray direction length.
	Traveled float32
	// Steps is the number of distance field evaluations performed for the ray.
	Steps  int
	Status MarchStatus
}

// Marcher sphere traces batches of rays against a [gleval.SDF3].
// Rays still marching are evaluated together each step so that the SDF sees
// one call per step instead of one per ray. The zero value is ready to use.
// A Marcher must not be used concurrently.
type Marcher struct {
	pos     []ms3.Vec
	dist    []float32
	active  []int
	rd      []ms3.Vec
	results []MarchResult
	hitPos  []ms3.Vec
	hitIdx  []int
	normals []ms3.Vec
	coords  []ms2.Vec
}

// March sphere traces the rays starting at ro with directions rd and stores
// the outcome of ray i in results[i]. For each ray and step:
//
//	pos = ro + traveled*rd
//	d = sdf(pos)
//	d < MinHitDistance: hit at pos
//	traveled > MaxTraceDistance: miss
//	otherwise traveled += d
//
// Rays that do neither within [MaxMarchSteps] steps are marked [MarchExhausted].
func (m *Marcher) March(sdf gleval.SDF3, ro ms3.Vec, rd []ms3.Vec, results []MarchResult, userData any) error {
	if len(rd) != len(results) {
		return errors.New("ray direction and result buffer length mismatch")
	} else if len(rd) == 0 {
		return nil
	}
	n := len(rd)
	m.pos = grow(m.pos, n)
	m.dist = grow(m.dist, n)
	active := grow(m.active, n)
	for i := range results {
		results[i] = MarchResult{Pos: ro}
		active[i] = i
	}
	for step := 0; step < MaxMarchSteps && len(active) > 0; step++ {
		pos := m.pos[:len(active)]
		dist := m.dist[:len(active)]
		for j, idx := range active {
			pos[j] = ms3.Add(ro, ms3.Scale(results[idx].Traveled, rd[idx]))
		}
		err := sdf.Evaluate(pos, dist, userData)
		if err != nil {
			return err
		}
		nActive := 0
		for j, idx := range active {
			res := &results[idx]
			res.Pos = pos[j]
			res.Steps = step + 1
			d := dist[j]
			switch {
			case d < MinHitDistance:
				res.Status = MarchHit
			case res.Traveled > MaxTraceDistance:
				res.Status = MarchMiss
			default:
				res.Traveled += d
				active[nActive] = idx
				nActive++
			}
		}
		active = active[:nActive]
	}
	m.active = active[:0]
	return nil
}

// Shade computes the RGBA color of each pixel in fragCoords for a viewport of size resolution
// and stores it in dst. userData is passed to every SDF evaluation and must provide a [gleval.VecPool],
// usually through a [gleval.FrameData] carrying the frame time.
//
// Hits are shaded with a single point light without ambient term:
//
//	albedo * max(0, dot(normal, normalize(hit - light)))
//
// Misses and exhausted rays take the background color.
func (m *Marcher) Shade(sdf gleval.SDF3, fragCoords []ms2.Vec, resolution ms2.Vec, dst [][4]float32, userData any) error {
	if len(fragCoords) != len(dst) {
		return errors.New("fragment coordinate and color buffer length mismatch")
	} else if len(dst) == 0 {
		return nil
	}
	n := len(dst)
	m.rd = grow(m.rd, n)
	m.results = grow(m.results, n)
	for i, fc := range fragCoords {
		m.rd[i] = RayDirection(fc, resolution)
	}
	err := m.March(sdf, camera, m.rd, m.results, userData)
	if err != nil {
		return err
	}
	bg := rgba(background)
	m.hitPos = m.hitPos[:0]
	m.hitIdx = m.hitIdx[:0]
	for i, res := range m.results {
		if res.Status == MarchHit {
			m.hitPos = append(m.hitPos, res.Pos)
			m.hitIdx = append(m.hitIdx, i)
		} else {
			dst[i] = bg
		}
	}
	if len(m.hitPos) == 0 {
		return nil
	}
	m.normals = grow(m.normals, len(m.hitPos))
	err = m.Normals(sdf, m.hitPos, m.normals, userData)
	if err != nil {
		return err
	}
	for j, idx := range m.hitIdx {
		dst[idx] = rgba(diffuse(m.hitPos[j], m.normals[j]))
	}
	return nil
}

// ShadeRow shades the pixel row y of a viewport of size resolution into dst, which must
// be of length resolution.X. Pixel x is sampled at its center (x+0.5, y+0.5).
func (m *Marcher) ShadeRow(sdf gleval.SDF3, y int, resolution ms2.Vec, dst [][4]float32, userData any) error {
	if len(dst) != int(resolution.X) {
		return fmt.Errorf("row buffer length %d does not match resolution width %d", len(dst), int(resolution.X))
	}
	m.coords = grow(m.coords, len(dst))
	fy := float32(y) + 0.5
	for x := range m.coords {
		m.coords[x] = ms2.Vec{X: float32(x) + 0.5, Y: fy}
	}
	return m.Shade(sdf, m.coords, resolution, dst, userData)
}

// Normals stores the unit surface normal of sdf at each position in normals.
// Normals are estimated with central differences of [NormalStep] along each axis.
func (m *Marcher) Normals(sdf gleval.SDF3, pos, normals []ms3.Vec, userData any) error {
	// NormalsCentralDiff offsets by half the step.
	err := gleval.NormalsCentralDiff(sdf, pos, normals, 2*NormalStep, userData)
	if err != nil {
		return err
	}
	for i, n := range normals {
		normals[i] = unit(n)
	}
	return nil
}

func diffuse(hit, normal ms3.Vec) ms3.Vec {
	toLight := unit(ms3.Sub(hit, light))
	intensity := math32.Max(0, ms3.Dot(normal, toLight))
	return ms3.Scale(intensity, albedo)
}

// unit normalizes v. The zero vector is returned unchanged.
func unit(v ms3.Vec) ms3.Vec {
	norm := ms3.Norm(v)
	if norm == 0 {
		return v
	}
	return ms3.Scale(1/norm, v)
}

func grow[T any](buf []T, n int) []T {
	if cap(buf) < n {
		return make([]T, n)
	}
	return buf[:n]
}
