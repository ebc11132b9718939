package glrender_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glmarch"
	"github.com/soypat/glmarch/gleval"
	"github.com/soypat/glmarch/glrender"
)

var res300 = ms2.Vec{X: 300, Y: 300}

func TestRayDirection(t *testing.T) {
	for _, test := range []struct {
		frag ms2.Vec
		want ms3.Vec
	}{
		{frag: ms2.Vec{X: 150, Y: 150}, want: ms3.Vec{Z: 1}},
		{frag: ms2.Vec{}, want: ms3.Vec{X: -1, Y: -1, Z: 1}},
		{frag: res300, want: ms3.Vec{X: 1, Y: 1, Z: 1}},
		{frag: ms2.Vec{X: 75, Y: 225}, want: ms3.Vec{X: -0.5, Y: 0.5, Z: 1}},
	} {
		got := glrender.RayDirection(test.frag, res300)
		if got != test.want {
			t.Errorf("RayDirection(%v): want %v, got %v", test.frag, test.want, got)
		}
	}
}

func TestEvaluateCenterHit(t *testing.T) {
	sdf := defaultSDF(t)
	var m glrender.Marcher
	fd := gleval.FrameData{Time: 0, Resolution: res300}
	rd := []ms3.Vec{glrender.RayDirection(ms2.Vec{X: 150, Y: 150}, res300)}
	results := make([]glrender.MarchResult, 1)
	err := m.March(sdf, glrender.CameraPosition(), rd, results, &fd)
	if err != nil {
		t.Fatal(err)
	}
	res := results[0]
	if res.Status != glrender.MarchHit {
		t.Fatalf("want hit, got %s", res.Status)
	} else if res.Steps != 2 {
		t.Errorf("want 2 steps, got %d", res.Steps)
	} else if math32.Abs(res.Traveled-1) > 1e-6 {
		t.Errorf("want traveled 1, got %f", res.Traveled)
	} else if ms3.Norm(ms3.Sub(res.Pos, ms3.Vec{Z: -1})) > 1e-6 {
		t.Errorf("want hit at (0,0,-1), got %v", res.Pos)
	}

	c, err := glrender.Evaluate(sdf, ms2.Vec{X: 150, Y: 150}, res300, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Noise tilts the estimated normal slightly away from (0,0,-1),
	// so the expected color is derived from the estimated normal.
	normals := make([]ms3.Vec, 1)
	err = m.Normals(sdf, []ms3.Vec{res.Pos}, normals, &fd)
	if err != nil {
		t.Fatal(err)
	}
	n := normals[0]
	if math32.Abs(ms3.Norm(n)-1) > 1e-5 || n.Z > -0.999 {
		t.Errorf("want normal close to (0,0,-1), got %v", n)
	}
	light := ms3.Vec{X: 2, Y: -5, Z: 5}
	diffuse := math32.Max(0, ms3.Dot(n, ms3.Unit(ms3.Sub(res.Pos, light))))
	want := [4]float32{diffuse, 0, 0.1 * diffuse, 1}
	for i := range c {
		if math32.Abs(c[i]-want[i]) > 1e-5 {
			t.Fatalf("center pixel: want %v, got %v", want, c)
		}
	}
	// An untilted normal would give 6/sqrt(65); the tilt is a few thousandths at most.
	if math32.Abs(c[0]-6/math32.Sqrt(65)) > 5e-3 {
		t.Errorf("center red %v too far from unperturbed diffuse %v", c[0], 6/math32.Sqrt(65))
	}
	if c[0] <= c[1] || c[0] <= c[2] || c[0] > 1 {
		t.Errorf("center pixel not red dominant within [0,1]: %v", c)
	}
}

func TestEvaluateCornerMiss(t *testing.T) {
	sdf := defaultSDF(t)
	for _, tm := range []float32{0, 1, 500} {
		c, err := glrender.Evaluate(sdf, ms2.Vec{}, res300, tm)
		if err != nil {
			t.Fatal(err)
		}
		if c != glrender.BackgroundColor() {
			t.Errorf("t=%v: corner pixel want background %v, got %v", tm, glrender.BackgroundColor(), c)
		}
	}
	if glrender.BackgroundColor() != [4]float32{0, 0.2, 0.3, 1} {
		t.Error("unexpected background", glrender.BackgroundColor())
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	sdf := defaultSDF(t)
	coords := []ms2.Vec{{X: 150, Y: 150}, {X: 120, Y: 170}, {X: 200, Y: 90}, {X: 10, Y: 290}}
	for _, tm := range []float32{0, 0.02, 3.7, 9999.98} {
		for _, fc := range coords {
			c1, err := glrender.Evaluate(sdf, fc, res300, tm)
			if err != nil {
				t.Fatal(err)
			}
			c2, err := glrender.Evaluate(sdf, fc, res300, tm)
			if err != nil {
				t.Fatal(err)
			}
			if c1 != c2 {
				t.Fatalf("t=%v frag=%v: nondeterministic %v != %v", tm, fc, c1, c2)
			}
			for i, v := range c1 {
				if v < 0 || v > 1 {
					t.Fatalf("channel %d out of range: %v", i, c1)
				}
			}
			if c1[3] != 1 {
				t.Fatal("alpha must be 1")
			}
		}
	}
}

func TestMarchStatus(t *testing.T) {
	var m glrender.Marcher
	var vp gleval.VecPool
	rd := []ms3.Vec{{Z: 1}}
	results := make([]glrender.MarchResult, 1)
	for _, test := range []struct {
		d         float32
		wantSteps int
		want      glrender.MarchStatus
	}{
		// Never gets close enough nor far enough within the step budget.
		{d: 0.01, wantSteps: glrender.MaxMarchSteps, want: glrender.MarchExhausted},
		// First step advances past the maximum distance, second step reports miss.
		{d: 2000, wantSteps: 2, want: glrender.MarchMiss},
		{d: -1, wantSteps: 1, want: glrender.MarchHit},
		{d: glrender.MinHitDistance / 2, wantSteps: 1, want: glrender.MarchHit},
	} {
		err := m.March(constSDF(test.d), ms3.Vec{}, rd, results, &vp)
		if err != nil {
			t.Fatal(err)
		}
		got := results[0]
		if got.Status != test.want {
			t.Errorf("d=%v: want %s, got %s", test.d, test.want, got.Status)
		}
		if got.Steps != test.wantSteps {
			t.Errorf("d=%v: want %d steps, got %d", test.d, test.wantSteps, got.Steps)
		}
	}
	// Exhausted rays are shaded as misses.
	dst := make([][4]float32, 1)
	err := m.Shade(constSDF(0.01), []ms2.Vec{{X: 1, Y: 1}}, ms2.Vec{X: 2, Y: 2}, dst, &vp)
	if err != nil {
		t.Fatal(err)
	}
	if dst[0] != glrender.BackgroundColor() {
		t.Errorf("exhausted ray want background, got %v", dst[0])
	}
	if glrender.MarchExhausted.String() != "exhausted" || glrender.MarchHit.String() != "hit" || glrender.MarchMiss.String() != "miss" {
		t.Error("bad status strings")
	}
}

func TestMarchBatchMatchesSingle(t *testing.T) {
	sdf := defaultSDF(t)
	var rd []ms3.Vec
	for y := float32(0); y < 300; y += 37 {
		for x := float32(0); x < 300; x += 23 {
			rd = append(rd, glrender.RayDirection(ms2.Vec{X: x, Y: y}, res300))
		}
	}
	var m glrender.Marcher
	fd := gleval.FrameData{Time: 2}
	batch := make([]glrender.MarchResult, len(rd))
	err := m.March(sdf, glrender.CameraPosition(), rd, batch, &fd)
	if err != nil {
		t.Fatal(err)
	}
	hits := 0
	single := make([]glrender.MarchResult, 1)
	for i := range rd {
		err = m.March(sdf, glrender.CameraPosition(), rd[i:i+1], single, &fd)
		if err != nil {
			t.Fatal(err)
		}
		if single[0] != batch[i] {
			t.Errorf("ray %d: batched %+v != single %+v", i, batch[i], single[0])
		}
		if batch[i].Status == glrender.MarchHit {
			hits++
		}
	}
	if hits == 0 || hits == len(rd) {
		t.Errorf("expected mix of hits and misses, got %d hits of %d", hits, len(rd))
	}
	err = fd.VP.AssertAllReleased()
	if err != nil {
		t.Error(err)
	}
}

func TestNormalsUnit(t *testing.T) {
	for name, newScene := range glmarch.Scenes {
		sdf, err := gleval.NewCPUSDF3(newScene())
		if err != nil {
			t.Fatal(err)
		}
		var m glrender.Marcher
		fd := gleval.FrameData{Time: 1}
		pos := []ms3.Vec{{X: 1}, {Y: 0.3, Z: -0.9}, {X: -0.2, Y: 0.1, Z: 0.5}, {X: 2, Y: 2, Z: 2}}
		normals := make([]ms3.Vec, len(pos))
		err = m.Normals(sdf, pos, normals, &fd)
		if err != nil {
			t.Fatal(err)
		}
		for i, n := range normals {
			if math32.Abs(ms3.Norm(n)-1) > 1e-4 {
				t.Errorf("%s: normal at %v not unit length: %v", name, pos[i], n)
			}
		}
	}
	// Sphere normals point radially outward.
	var bld glmarch.Builder
	sdf, err := gleval.NewCPUSDF3(bld.NewSphere(1))
	if err != nil {
		t.Fatal(err)
	}
	var m glrender.Marcher
	var vp gleval.VecPool
	pos := []ms3.Vec{{Z: -1}, {X: 0.6, Y: 0.8}}
	normals := make([]ms3.Vec, len(pos))
	err = m.Normals(sdf, pos, normals, &vp)
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range normals {
		if ms3.Norm(ms3.Sub(n, pos[i])) > 1e-3 {
			t.Errorf("sphere normal at %v: got %v", pos[i], n)
		}
	}
}

func TestShadeRow(t *testing.T) {
	sdf := defaultSDF(t)
	var m glrender.Marcher
	fd := gleval.FrameData{Time: 0.5}
	res := ms2.Vec{X: 16, Y: 16}
	err := m.ShadeRow(sdf, 0, res, make([][4]float32, 15), &fd)
	if err == nil {
		t.Error("expected row length error")
	}
	row := make([][4]float32, 16)
	const y = 8
	err = m.ShadeRow(sdf, y, res, row, &fd)
	if err != nil {
		t.Fatal(err)
	}
	for x, got := range row {
		want, err := glrender.Evaluate(sdf, ms2.Vec{X: float32(x) + 0.5, Y: y + 0.5}, res, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("pixel %d: row shading %v != single evaluation %v", x, got, want)
		}
	}
}

func TestImageRendererParallel(t *testing.T) {
	sdf := defaultSDF(t)
	const w, h = 40, 30
	const tm = 1.3
	serial := image.NewRGBA(image.Rect(0, 0, w, h))
	parallel := image.NewRGBA(image.Rect(0, 0, w, h))
	err := glrender.NewImageRenderer(1).Render(sdf, serial, tm)
	if err != nil {
		t.Fatal(err)
	}
	err = glrender.NewImageRenderer(4).Render(sdf, parallel, tm)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if serial.RGBAAt(x, y) != parallel.RGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) differs: serial %v parallel %v", x, y, serial.RGBAAt(x, y), parallel.RGBAAt(x, y))
			}
		}
	}
	bg := glrender.ToRGBA(glrender.BackgroundColor())
	if serial.RGBAAt(0, 0) != bg {
		t.Errorf("corner pixel want background %v, got %v", bg, serial.RGBAAt(0, 0))
	}
	if serial.RGBAAt(w/2, h/2) == bg {
		t.Error("center pixel should hit the sphere")
	}
	err = glrender.NewImageRenderer(2).Render(sdf, image.NewRGBA(image.Rect(0, 0, 0, 0)), tm)
	if err == nil {
		t.Error("expected error rendering empty image")
	}
}

func TestToRGBA(t *testing.T) {
	got := glrender.ToRGBA([4]float32{2, -1, 0.5, 1})
	want := color.RGBA{R: 255, G: 0, B: 128, A: 255}
	if got != want {
		t.Errorf("want %v, got %v", want, got)
	}
}

func defaultSDF(t *testing.T) gleval.SDF3 {
	t.Helper()
	sdf, err := gleval.NewCPUSDF3(glmarch.DefaultScene())
	if err != nil {
		t.Fatal(err)
	}
	return sdf
}

// constSDF has the same distance everywhere.
type constSDF float32

func (c constSDF) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	for i := range dist {
		dist[i] = float32(c)
	}
	return nil
}

func (c constSDF) Bounds() ms3.Box { return ms3.Box{} }
