package glmarch_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch"
	"github.com/soypat/glmarch/glbuild"
	"github.com/soypat/glmarch/gleval"
)

func TestHash(t *testing.T) {
	if got := glmarch.Hash(ms2.Vec{}); got != 0 {
		t.Errorf("want Hash(0,0)=0, got %f", got)
	}
	for x := float32(-20); x < 20; x += 0.37 {
		for y := float32(-20); y < 20; y += 0.53 {
			st := ms2.Vec{X: x, Y: y}
			h := glmarch.Hash(st)
			if h < 0 || h >= 1 {
				t.Fatalf("Hash(%v)=%f out of [0,1)", st, h)
			}
			if h2 := glmarch.Hash(st); h2 != h {
				t.Fatalf("Hash(%v) not deterministic: %f != %f", st, h, h2)
			}
		}
	}
}

func TestValueNoiseLattice(t *testing.T) {
	// At lattice points the blend weights vanish and the noise equals the corner hash.
	for i := -5; i <= 5; i++ {
		for j := -5; j <= 5; j++ {
			st := ms2.Vec{X: float32(i), Y: float32(j)}
			got := glmarch.ValueNoise(st)
			want := glmarch.Hash(st)
			if got != want {
				t.Errorf("ValueNoise(%v)=%f, want corner hash %f", st, got, want)
			}
		}
	}
}

func TestValueNoiseContinuity(t *testing.T) {
	const eps = 1e-3
	const tol = 1e-2
	for i := -8; i <= 8; i++ {
		boundary := float32(i)
		for _, other := range []float32{-2.3, -0.5, 0.1, 0.77, 3.9} {
			// Across vertical cell boundary.
			a := glmarch.ValueNoise(ms2.Vec{X: boundary - eps, Y: other})
			b := glmarch.ValueNoise(ms2.Vec{X: boundary + eps, Y: other})
			if math32.Abs(a-b) > tol {
				t.Errorf("discontinuity across x=%v at y=%v: %f vs %f", boundary, other, a, b)
			}
			// Across horizontal cell boundary.
			a = glmarch.ValueNoise(ms2.Vec{X: other, Y: boundary - eps})
			b = glmarch.ValueNoise(ms2.Vec{X: other, Y: boundary + eps})
			if math32.Abs(a-b) > tol {
				t.Errorf("discontinuity across y=%v at x=%v: %f vs %f", boundary, other, a, b)
			}
		}
	}
}

func TestValueNoiseRange(t *testing.T) {
	for x := float32(-10); x < 10; x += 0.13 {
		for y := float32(-10); y < 10; y += 0.29 {
			v := glmarch.ValueNoise(ms2.Vec{X: x, Y: y})
			if v < 0 || v > 1 {
				t.Fatalf("ValueNoise(%f,%f)=%f out of range", x, y, v)
			}
		}
	}
}

func TestDistancePrimitives(t *testing.T) {
	if d := glmarch.SphereDistance(ms3.Vec{Z: -2}, 1); d != 1 {
		t.Errorf("sphere distance from camera: want 1, got %f", d)
	}
	b := ms3.Vec{X: 0.2, Y: 0.4, Z: 0.5}
	const r = 0.1
	if d := glmarch.RoundBoxDistance(ms3.Vec{}, b, r); math32.Abs(d+0.3) > 1e-6 {
		t.Errorf("round box at center: want -0.3, got %f", d)
	}
	if d := glmarch.RoundBoxDistance(ms3.Vec{X: 1}, b, r); math32.Abs(d-0.7) > 1e-6 {
		t.Errorf("round box at (1,0,0): want 0.7, got %f", d)
	}
	// Far apart distances are not blended.
	if d := glmarch.SmoothMin(-1, 5, 0.1); d != -1 {
		t.Errorf("smooth min of distant values: want -1, got %f", d)
	}
	// Equal distances are blended the most.
	if d := glmarch.SmoothMin(0.5, 0.5, 0.1); math32.Abs(d-(0.5-0.025)) > 1e-6 {
		t.Errorf("smooth min of equal values: want 0.475, got %f", d)
	}
	if d := glmarch.SmoothMin(0.3, 0.2, 0); d != 0.2 {
		t.Errorf("smooth min with zero radius: want 0.2, got %f", d)
	}
}

func TestDefaultSceneMatchesMapTheWorld(t *testing.T) {
	sdf, err := gleval.NewCPUSDF3(glmarch.DefaultScene())
	if err != nil {
		t.Fatal(err)
	}
	var pos []ms3.Vec
	for x := float32(-1.5); x <= 1.5; x += 0.25 {
		for y := float32(-1.5); y <= 1.5; y += 0.25 {
			for z := float32(-2); z <= 1.5; z += 0.5 {
				pos = append(pos, ms3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	dist := make([]float32, len(pos))
	for _, tm := range []float32{0, 0.02, 1.5, 99.98, 9999.98} {
		fd := gleval.FrameData{Time: tm}
		err = sdf.Evaluate(pos, dist, &fd)
		if err != nil {
			t.Fatal(err)
		}
		for i, p := range pos {
			want := glmarch.MapTheWorld(p, tm)
			if math32.Abs(dist[i]-want) > 1e-5 {
				t.Fatalf("t=%v p=%v: scene %f != MapTheWorld %f", tm, p, dist[i], want)
			}
		}
		err = fd.VP.AssertAllReleased()
		if err != nil {
			t.Fatal(err)
		}
	}
	if sdf.Evaluations() != uint64(5*len(pos)) {
		t.Errorf("want %d evaluations, got %d", 5*len(pos), sdf.Evaluations())
	}
}

func TestNoiseDisplaceRequiresFrameData(t *testing.T) {
	sdf, err := gleval.NewCPUSDF3(glmarch.DefaultScene())
	if err != nil {
		t.Fatal(err)
	}
	var vp gleval.VecPool
	pos := []ms3.Vec{{}}
	err = sdf.Evaluate(pos, make([]float32, 1), &vp)
	if err == nil {
		t.Error("expected error evaluating time dependent SDF without frame data")
	}
}

func TestSmoothSpheresScene(t *testing.T) {
	sdf, err := gleval.NewCPUSDF3(glmarch.SmoothSpheresScene())
	if err != nil {
		t.Fatal(err)
	}
	pos := []ms3.Vec{{}, {X: -0.5}, {X: -0.25}, {Y: 3}}
	dist := make([]float32, len(pos))
	var vp gleval.VecPool
	err = sdf.Evaluate(pos, dist, &vp)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range pos {
		s0 := glmarch.SphereDistance(p, 1)
		s1 := glmarch.SphereDistance(ms3.Add(p, ms3.Vec{X: 0.5}), 1)
		want := glmarch.SmoothMin(s0, s1, 0.1)
		if math32.Abs(dist[i]-want) > 1e-6 {
			t.Errorf("p=%v: want %f, got %f", p, want, dist[i])
		}
	}
	if dist[0] != -1 {
		t.Errorf("center of smooth spheres: want -1, got %f", dist[0])
	}
}

func TestSphereBoxScene(t *testing.T) {
	sdf, err := gleval.NewCPUSDF3(glmarch.SphereBoxScene())
	if err != nil {
		t.Fatal(err)
	}
	pos := []ms3.Vec{{}, {X: -0.6}, {X: 0.6}, {X: -1.5, Y: 0.2}, {X: 0.6, Z: 2}, {Y: 3}}
	dist := make([]float32, len(pos))
	var vp gleval.VecPool
	err = sdf.Evaluate(pos, dist, &vp)
	if err != nil {
		t.Fatal(err)
	}
	half := ms3.Vec{X: 0.2, Y: 0.4, Z: 0.5}
	for i, p := range pos {
		sphere := glmarch.SphereDistance(ms3.Add(p, ms3.Vec{X: 0.6}), 0.6)
		box := glmarch.RoundBoxDistance(ms3.Sub(p, ms3.Vec{X: 0.6}), half, 0.1)
		want := math32.Min(sphere, box)
		if math32.Abs(dist[i]-want) > 1e-6 {
			t.Errorf("p=%v: want %f, got %f", p, want, dist[i])
		}
	}
	if dist[1] > -0.599 || dist[2] > -0.099 {
		t.Errorf("sphere and box centers must be inside: %v", dist[1:3])
	}
	err = vp.AssertAllReleased()
	if err != nil {
		t.Error(err)
	}
}

func TestWarpsPreserveIdentity(t *testing.T) {
	var bld glmarch.Builder
	half := ms3.Vec{X: 0.2, Y: 0.4, Z: 0.5}
	for _, test := range []struct {
		s glbuild.Shader3D
		// swizzle maps the evaluated position to the child's position.
		swizzle func(ms3.Vec) ms3.Vec
	}{
		{s: bld.Bend(glmarch.RoundBoxScene(), 0), swizzle: func(p ms3.Vec) ms3.Vec { return p }},
		{s: bld.Twist(glmarch.RoundBoxScene(), 0), swizzle: func(p ms3.Vec) ms3.Vec { return ms3.Vec{X: p.X, Y: p.Z, Z: p.Y} }},
	} {
		sdf, err := gleval.NewCPUSDF3(test.s)
		if err != nil {
			t.Fatal(err)
		}
		pos := []ms3.Vec{{}, {X: 0.3}, {Y: 0.45, X: 0.1}, {X: 0.1, Y: 0.2, Z: 0.3}}
		dist := make([]float32, len(pos))
		var vp gleval.VecPool
		err = sdf.Evaluate(pos, dist, &vp)
		if err != nil {
			t.Fatal(err)
		}
		for i, p := range pos {
			want := glmarch.RoundBoxDistance(test.swizzle(p), half, 0.1)
			if math32.Abs(dist[i]-want) > 1e-6 {
				t.Errorf("%s p=%v: want %f, got %f", glbuild.FormatShader(test.s), p, want, dist[i])
			}
		}
		err = vp.AssertAllReleased()
		if err != nil {
			t.Error(err)
		}
	}
}

func TestBoundsEnclose(t *testing.T) {
	for name, newScene := range glmarch.Scenes {
		s := newScene()
		sdf, err := gleval.NewCPUSDF3(s)
		if err != nil {
			t.Fatal(err)
		}
		bb := s.Bounds()
		// Sample points just outside each face of the bounding box.
		const margin = 1e-2
		center := bb.Center()
		outside := []ms3.Vec{
			{X: bb.Max.X + margin, Y: center.Y, Z: center.Z},
			{X: bb.Min.X - margin, Y: center.Y, Z: center.Z},
			{X: center.X, Y: bb.Max.Y + margin, Z: center.Z},
			{X: center.X, Y: bb.Min.Y - margin, Z: center.Z},
			{X: center.X, Y: center.Y, Z: bb.Max.Z + margin},
			{X: center.X, Y: center.Y, Z: bb.Min.Z - margin},
			ms3.AddScalar(margin, bb.Max),
			ms3.AddScalar(-margin, bb.Min),
		}
		dist := make([]float32, len(outside))
		fd := gleval.FrameData{Time: 3.14}
		err = sdf.Evaluate(outside, dist, &fd)
		if err != nil {
			t.Fatal(err)
		}
		for i, d := range dist {
			if d <= 0 {
				t.Errorf("%s: point %v outside bounds %v has non-positive distance %f", name, outside[i], bb, d)
			}
		}
	}
}

func TestBuilderErrors(t *testing.T) {
	var bld glmarch.Builder
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on negative radius")
			}
		}()
		bld.NewSphere(-1)
	}()
	bld.SetFlags(glmarch.FlagNoDimensionPanic)
	bld.NewSphere(-1)
	bld.NewRoundBox(0, 1, 1, 0.1)
	if bld.Err() == nil {
		t.Fatal("expected accumulated errors")
	}
	bld.ClearErrors()
	if bld.Err() != nil {
		t.Error("expected no errors after clearing")
	}
	bld.NewSphere(1)
	if bld.Err() != nil {
		t.Error("unexpected error for valid sphere", bld.Err())
	}
}

func TestSceneShaderSource(t *testing.T) {
	for name, newScene := range glmarch.Scenes {
		s := newScene()
		var buf bytes.Buffer
		prog := glbuild.NewDefaultProgrammer()
		n, objs, err := prog.WriteComputeSDF3(&buf, s)
		if err != nil {
			t.Fatal(name, err)
		} else if n != buf.Len() {
			t.Fatalf("%s: wrote %d bytes but counted %d", name, buf.Len(), n)
		}
		src := buf.String()
		rootDecl := "float " + string(s.AppendShaderName(nil)) + "(vec3 p)"
		if strings.Count(src, rootDecl) != 1 {
			t.Errorf("%s: want single root declaration %q\n%s", name, rootDecl, src)
		}
		for _, obj := range objs {
			decl := string(obj.NamePtr) + "("
			if !strings.Contains(src, decl) {
				t.Errorf("%s: missing function object %q", name, obj.NamePtr)
			}
		}
	}
}
