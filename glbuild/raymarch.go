package glbuild

import (
	"errors"
	"fmt"
	"io"

	"github.com/soypat/geometry/ms3"
)

// Dialect selects the shading language flavor of a generated fragment program.
type Dialect uint8

const (
	// DialectGLSL generates a desktop OpenGL 4.6 fragment shader with a fragColor output.
	DialectGLSL Dialect = iota
	// DialectAGSL generates an Android Graphics Shading Language program for use with
	// android.graphics.RuntimeShader. The input image is declared as the composable shader.
	DialectAGSL
)

func (d Dialect) String() string {
	switch d {
	case DialectGLSL:
		return "GLSL"
	case DialectAGSL:
		return "AGSL"
	}
	return "Dialect(" + fmt.Sprint(uint8(d)) + ")"
}

// RaymarchConfig contains the constants baked into a fragment raymarching program.
type RaymarchConfig struct {
	Dialect Dialect
	// MaxSteps is the march iteration budget per pixel.
	MaxSteps int
	// HitDistance is the distance below which the surface is considered hit.
	HitDistance float32
	// MaxDistance is the traveled distance after which the ray is considered a miss.
	MaxDistance float32
	// NormalStep is the central difference offset for normal calculation.
	NormalStep float32
	Camera     ms3.Vec
	Light      ms3.Vec
	Albedo     ms3.Vec
	Background ms3.Vec
}

func (cfg RaymarchConfig) validate() error {
	if cfg.Dialect > DialectAGSL {
		return errors.New("unknown shader dialect")
	} else if cfg.MaxSteps <= 0 {
		return errors.New("zero or negative march step budget")
	} else if cfg.HitDistance <= 0 || cfg.MaxDistance <= cfg.HitDistance {
		return errors.New("invalid hit/max distance")
	} else if cfg.NormalStep <= 0 {
		return errors.New("zero or negative normal step")
	}
	return nil
}

// WriteFragRaymarcher writes a complete per-pixel program that sphere-traces obj from a fixed camera,
// shades hits with a single point light and returns the background color on miss. The generated program
// reads the [ResolutionUniform] and [TimeUniform] uniforms.
func (p *Programmer) WriteFragRaymarcher(w io.Writer, obj Shader3D, cfg RaymarchConfig) (n int, err error) {
	err = cfg.validate()
	if err != nil {
		return 0, err
	}
	var header string
	switch cfg.Dialect {
	case DialectGLSL:
		header = "#version 460\nuniform vec2 " + ResolutionUniform + ";\nuniform float " + TimeUniform + ";\nout vec4 fragColor;\n\n"
	case DialectAGSL:
		header = "uniform shader composable;\nuniform float2 " + ResolutionUniform + ";\nuniform float " + TimeUniform + ";\n\n"
	}
	n, err = io.WriteString(w, header)
	if err != nil {
		return n, err
	}
	baseName, ngot, _, err := p.WriteSDFDecl(w, obj)
	n += ngot
	if err != nil {
		return n, err
	}
	b := p.scratch[:0]
	b = append(b, "\nfloat map_the_world(vec3 p) { return "...)
	b = append(b, baseName...)
	b = append(b, "(p); }\n\n"...)
	b = appendMarchFuncs(b, cfg)
	switch cfg.Dialect {
	case DialectGLSL:
		// gl_FragCoord has origin at bottom-left, flip to match top-left pixel convention.
		b = append(b, `
void main() {
	vec2 fragCoord = vec2(gl_FragCoord.x, `+ResolutionUniform+`.y - gl_FragCoord.y);
	fragColor = vec4(shade(fragCoord), 1.0);
}
`...)
	case DialectAGSL:
		b = append(b, `
half4 main(float2 fragCoord) {
	return half4(shade(fragCoord), 1.0);
}
`...)
	}
	p.scratch = b
	ngot, err = w.Write(b)
	n += ngot
	return n, err
}

func appendMarchFuncs(b []byte, cfg RaymarchConfig) []byte {
	b = append(b, "vec3 calculate_normal(vec3 p) {\n"...)
	b = AppendVec3Decl(b, "h", ms3.Vec{X: cfg.NormalStep})
	b = append(b, `float gx = map_the_world(p + h.xyy) - map_the_world(p - h.xyy);
float gy = map_the_world(p + h.yxy) - map_the_world(p - h.yxy);
float gz = map_the_world(p + h.yyx) - map_the_world(p - h.yyx);
return normalize(vec3(gx, gy, gz));
}

vec3 ray_march(vec3 ro, vec3 rd) {
`...)
	b = AppendVec3Decl(b, "light", cfg.Light)
	b = AppendVec3Decl(b, "albedo", cfg.Albedo)
	b = append(b, "float traveled = 0.0;\nfor (int i = 0; i < "...)
	b = fmt.Appendf(b, "%d", cfg.MaxSteps)
	b = append(b, "; ++i) {\n\tvec3 pos = ro + traveled * rd;\n\tfloat d = map_the_world(pos);\n\tif (d < "...)
	b = AppendFloat(b, '-', '.', cfg.HitDistance)
	b = append(b, `) {
		vec3 normal = calculate_normal(pos);
		float diffuse = max(0.0, dot(normal, normalize(pos - light)));
		return albedo * diffuse;
	}
	if (traveled > `...)
	b = AppendFloat(b, '-', '.', cfg.MaxDistance)
	b = append(b, ") {\n\t\tbreak;\n\t}\n\ttraveled += d;\n}\nreturn vec3("...)
	bg := cfg.Background.Array()
	b = AppendFloats(b, ',', '-', '.', bg[:]...)
	b = append(b, ");\n}\n\nvec3 shade(vec2 fragCoord) {\n"...)
	b = append(b, "vec2 uv = (fragCoord / "+ResolutionUniform+") * 2.0 - 1.0;\n"...)
	b = AppendVec3Decl(b, "ro", cfg.Camera)
	b = append(b, "return ray_march(ro, vec3(uv, 1.0));\n}\n"...)
	return b
}
