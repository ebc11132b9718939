package glbuild

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/soypat/geometry/ms3"
)

// VersionStr is the GLSL version directive of generated compute programs.
const VersionStr = "#version 430\n"

// TimeUniform is the name of the float uniform holding the elapsed animation time.
// Shaders that animate their distance field reference it directly in their body.
const TimeUniform = "u_time"

// ResolutionUniform is the name of the vec2 uniform holding the viewport size in pixels.
const ResolutionUniform = "u_res"

// Shader stores information for automatically generating SDF Shader pipelines
// and evaluating them correctly on a GPU.
type Shader interface {
	// AppendShaderName appends the name of the GL shader function
	// to the buffer and returns the result. It should be unique to that shader.
	AppendShaderName(b []byte) []byte
	// AppendShaderBody appends the body of the shader function to the
	// buffer and returns the result.
	AppendShaderBody(b []byte) []byte
	// AppendShaderObjects appends "objects" needed to evaluate the shader correctly.
	// See [ShaderObject] for more information on what an object can represent.
	AppendShaderObjects(objs []ShaderObject) []ShaderObject
}

// ShaderObject is a handle to auxiliary source needed to evaluate a [Shader] correctly.
// As of now the only supported object is a GLSL function declaration shared between
// several shaders, such as the noise functions.
type ShaderObject struct {
	// NamePtr is a pointer to the name of the function inside of the [Shader].
	NamePtr []byte
	// Binding is always -1 for function objects.
	Binding int
	// for function shaders.
	funcSource []byte
}

// Shader3D can create SDF shader source code for an arbitrary 3D shape.
type Shader3D interface {
	Shader
	// ForEachChild iterates over the Shader3D's direct Shader3D children.
	// Unary operations have one child i.e: Translate, NoiseDisplace.
	// Binary operations have two children i.e: SmoothUnion.
	ForEachChild(userData any, fn func(userData any, s *Shader3D) error) error
	// Bounds returns the Shader3D's bounding box where the SDF is negative.
	Bounds() ms3.Box
}

// MakeShaderFunction parses a GLSL function definition and returns a [ShaderObject]
// that can be returned by [Shader.AppendShaderObjects].
func MakeShaderFunction(shaderDef []byte) (sf ShaderObject, err error) {
	shaderDef = bytes.TrimSpace(shaderDef)
	// Name lies between the return type and the argument list.
	nameStart := bytes.IndexByte(shaderDef, ' ')
	nameEnd := bytes.IndexByte(shaderDef, '(')
	if nameStart < 0 || nameEnd < 0 || nameStart > nameEnd {
		return ShaderObject{}, errors.New("unable to parse function name")
	}
	name := bytes.TrimSpace(shaderDef[nameStart:nameEnd])
	if len(name) == 0 {
		return ShaderObject{}, errors.New("empty function name")
	}
	return ShaderObject{NamePtr: name, Binding: -1, funcSource: shaderDef}, nil
}

// IsFunction reports whether the object is a GLSL function declaration.
func (obj ShaderObject) IsFunction() bool { return len(obj.funcSource) > 0 }

// Programmer implements shader generation logic for Shader type.
// A Programmer reuses its buffers between calls and must not be used concurrently.
type Programmer struct {
	nodes   []Shader
	scratch []byte
	objs    []ShaderObject
	// declared maps every written function name to the hash of its source
	// so that identical declarations are written once and distinct ones conflict.
	declared map[string]uint64
	// Invocations size in X (local group size) to give each compute work group.
	invocX int
}

// NewDefaultProgrammer returns a Programmer with reasonable default parameters for use with glgl package on the local machine.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		nodes:    make([]Shader, 0, 64),
		scratch:  make([]byte, 0, 1024), // Shader tokens of around 1024 characters are common.
		declared: make(map[string]uint64),
		invocX:   32,
	}
}

// SetComputeInvocations sets the work group local-sizes. x*y*z must be less than maximum number of invocations.
func (p *Programmer) SetComputeInvocations(x, y, z int) {
	if y != 1 || z != 1 {
		panic("unsupported")
	} else if x < 1 {
		panic("zero or negative X invocation size")
	}
	p.invocX = x
}

// ComputeInvocations returns the worker group invocation size in x y and z.
func (p *Programmer) ComputeInvocations() (int, int, int) {
	return p.invocX, 1, 1
}

// WriteComputeSDF3 creates the bare bones I/O compute program for calculating SDF
// and writes it to the writer. Positions are read as an std430 vec3 array, which has a 16 byte
// stride matching the memory layout of []ms3.Vec, and the elapsed time is read from the [TimeUniform] uniform.
func (p *Programmer) WriteComputeSDF3(w io.Writer, obj Shader3D) (int, []ShaderObject, error) {
	var buf bytes.Buffer
	buf.WriteString("#shader compute\n" + VersionStr)
	fmt.Fprintf(&buf, "uniform float %s;\n\n", TimeUniform)
	baseName, _, objs, err := p.WriteSDFDecl(&buf, obj)
	if err != nil {
		return 0, nil, err
	}
	fmt.Fprintf(&buf, `

layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

// Input: 3D positions at which to evaluate SDF.
layout(std430, binding = 0) buffer PositionsBuffer {
    vec3 vbo_positions[];
};

// Output: Result of SDF evaluation are the distances. Maps to position buffer.
layout(std430, binding = 1) buffer DistancesBuffer {
    float vbo_distances[];
};

void main() {
	int idx = int( gl_GlobalInvocationID.x );
	if (idx >= vbo_distances.length()) {
		return;
	}
	vec3 p = vbo_positions[idx];
	vbo_distances[idx] = %s(p);
}
`, p.invocX, baseName)
	n, err := w.Write(buf.Bytes())
	return n, objs, err
}

// WriteSDFDecl writes the function objects and SDF function declarations of the tree rooted at s,
// dependencies first, and returns the top-level SDF function name.
func (p *Programmer) WriteSDFDecl(w io.Writer, s Shader) (baseName string, n int, objs []ShaderObject, err error) {
	baseName, p.nodes, err = ParseAppendNodes(p.nodes[:0], s)
	if err != nil {
		return "", 0, nil, err
	}
	clear(p.declared)
	p.objs = p.objs[:0]
	src := p.scratch[:0]
	// Children are always found after their parents so iterate in reverse.
	for i := len(p.nodes) - 1; i >= 0; i-- {
		src, err = p.appendObjects(src, p.nodes[i])
		if err != nil {
			return "", 0, nil, err
		}
	}
	for i := len(p.nodes) - 1; i >= 0; i-- {
		src, err = p.appendDecl(src, p.nodes[i])
		if err != nil {
			return "", 0, nil, err
		}
	}
	p.scratch = src
	n, err = w.Write(src)
	objs = append([]ShaderObject(nil), p.objs...)
	return baseName, n, objs, err
}

func (p *Programmer) appendObjects(dst []byte, node Shader) ([]byte, error) {
	start := len(p.objs)
	p.objs = node.AppendShaderObjects(p.objs)
	for _, obj := range p.objs[start:] {
		if !obj.IsFunction() {
			return dst, fmt.Errorf("%T has non-function shader object %q, only function objects are supported", unwraproot(node), obj.NamePtr)
		}
		written, err := p.declare(obj.NamePtr, obj.funcSource)
		if err != nil {
			return dst, fmt.Errorf("%T: %w", unwraproot(node), err)
		} else if !written {
			dst = append(dst, obj.funcSource...)
			dst = append(dst, "\n\n"...)
		}
	}
	return dst, nil
}

func (p *Programmer) appendDecl(dst []byte, node Shader) ([]byte, error) {
	start := len(dst)
	dst, name, body := AppendShaderSource(dst, node)
	written, err := p.declare(name, body)
	if err != nil {
		return dst[:start], fmt.Errorf("%T shader with body:\n%s\n\n%w", unwraproot(node), body, err)
	} else if written {
		dst = dst[:start] // Identical shader already declared.
	}
	return dst, nil
}

// declare registers a function name with its source. It reports whether an identical
// function was already declared and errors if a distinct function has the same name.
func (p *Programmer) declare(name, source []byte) (alreadyWritten bool, err error) {
	h := hashBytes(source, 0)
	got, ok := p.declared[string(name)]
	if !ok {
		p.declared[string(name)] = h
		return false, nil
	} else if got != h {
		return false, fmt.Errorf("shader function name conflict: %q declared with distinct bodies", name)
	}
	return true, nil
}

const shorteningBufsize = 1024

// ShortenNames3D rewrites the names of all shaders in the tree with names longer
// than maxRewriteLen to a short name with a hash suffix. Useful since shader compilers
// limit identifier length.
func ShortenNames3D(root *Shader3D, maxRewriteLen int) error {
	if root == nil || *root == nil {
		return errors.New("nil shader")
	}
	scratch := make([]byte, 0, shorteningBufsize)
	err := walkBFS(*root, func(s3 *Shader3D) error {
		scratch = rename(s3, scratch, maxRewriteLen)
		return nil
	})
	if err != nil {
		return err
	}
	rename(root, scratch, maxRewriteLen)
	return nil
}

func rename(s3 *Shader3D, scratch []byte, maxLen int) []byte {
	if _, ok := (*s3).(*renamedShader3D); ok {
		return scratch
	}
	scratch = (*s3).AppendShaderName(scratch[:0])
	if len(scratch) < maxLen {
		return scratch
	}
	h := hashBytes(scratch, 0xff51afd7ed558ccd)
	newName := append([]byte{}, scratch[:maxLen]...)
	scratch = (*s3).AppendShaderBody(scratch[:0])
	h = hashBytes(scratch, h)
	newName = strconv.AppendUint(newName, h, 32)
	*s3 = &renamedShader3D{Shader3D: *s3, name: newName}
	return scratch
}

// ParseAppendNodes parses the shader object tree and appends all nodes in Breadth First order
// to the dst Shader argument buffer and returns the result.
func ParseAppendNodes(dst []Shader, root Shader) (baseName string, nodes []Shader, err error) {
	if root == nil {
		return "", nil, errors.New("nil shader object")
	}
	baseName = string(root.AppendShaderName(nil))
	if baseName == "" {
		return "", nil, errors.New("empty shader name")
	}
	dst, err = AppendAllNodes(dst, root)
	if err != nil {
		return "", nil, err
	}
	return baseName, dst, nil
}

// AppendShaderSource appends the GL function of a single shader to dst and returns the result
// along with the name and body slices pointing into it.
func AppendShaderSource(dst []byte, s Shader) (result, name, body []byte) {
	dst = append(dst, "float "...)
	nameStart := len(dst)
	dst = s.AppendShaderName(dst)
	nameEnd := len(dst)
	dst = append(dst, "(vec3 p){\n"...)
	bodyStart := len(dst)
	dst = s.AppendShaderBody(dst)
	bodyEnd := len(dst)
	dst = append(dst, "\n}\n"...)
	return dst, dst[nameStart:nameEnd], dst[bodyStart:bodyEnd]
}

// AppendAllNodes appends root and all of its descendants to dst in breadth first order.
//
// To generate shaders one must iterate over nodes in reverse order to ensure
// the first iterated nodes are the nodes with no dependencies on other nodes.
func AppendAllNodes(dst []Shader, root Shader) ([]Shader, error) {
	root3, ok := root.(Shader3D)
	if !ok {
		return dst, fmt.Errorf("found shader %T that does not implement Shader3D", root)
	}
	dst = append(dst, root)
	err := walkBFS(root3, func(s3 *Shader3D) error {
		dst = append(dst, *s3)
		return nil
	})
	return dst, err
}

// walkBFS calls fn on every descendant of root in breadth first order.
// fn may replace the shader pointed to before its children are visited.
func walkBFS(root Shader3D, fn func(s3 *Shader3D) error) error {
	queue := []Shader3D{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		err := node.ForEachChild(nil, func(_ any, s *Shader3D) error {
			if s == nil || *s == nil {
				return fmt.Errorf("%T has nil child", unwraproot(node))
			}
			err := fn(s)
			if err != nil {
				return err
			}
			queue = append(queue, *s)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FormatShader returns a compact human readable representation of the shader tree, i.e:
//
//	noiseDisplace(sphere)
func FormatShader(sh Shader3D) string {
	if sh == nil {
		panic("nil shader")
	}
	var sb strings.Builder
	formatShader(&sb, sh)
	return sb.String()
}

func formatShader(sb *strings.Builder, s Shader3D) {
	tp := reflect.TypeOf(unwraproot(s))
	if tp.Kind() == reflect.Pointer {
		tp = tp.Elem()
	}
	sb.WriteString(tp.Name())
	first := true
	s.ForEachChild(nil, func(_ any, child *Shader3D) error {
		if first {
			sb.WriteByte('(')
			first = false
		} else {
			sb.WriteByte(',')
		}
		formatShader(sb, *child)
		return nil
	})
	if !first {
		sb.WriteByte(')')
	}
}

// AppendDistanceDecl appends a float declaration of floatVarname holding the distance of s
// evaluated at sdfPositionArgInput, i.e: "float d=sphere1p0(p);".
func AppendDistanceDecl(b []byte, floatVarname, sdfPositionArgInput string, s Shader) []byte {
	b = append(b, "float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = s.AppendShaderName(b)
	b = append(b, '(')
	b = append(b, sdfPositionArgInput...)
	b = append(b, ");\n"...)
	return b
}

func AppendVec3Decl(b []byte, vec3Varname string, v ms3.Vec) []byte {
	b = append(b, "vec3 "...)
	b = append(b, vec3Varname...)
	b = append(b, "=vec3("...)
	arr := v.Array()
	b = AppendFloats(b, ',', '-', '.', arr[:]...)
	b = append(b, ')', ';', '\n')
	return b
}

func AppendFloatDecl(b []byte, floatVarname string, v float32) []byte {
	b = append(b, "float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = AppendFloat(b, '-', '.', v)
	b = append(b, ';', '\n')
	return b
}

// AppendFloat appends v to b in the shortest decimal notation that represents it exactly,
// always with a decimal part, replacing the minus sign and decimal point with neg and decimal.
// Passing 'n' and 'p' yields identifier-safe text for shader names, i.e: 0.2 is appended as "0p2".
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', -1, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if idx < 0 {
		b = append(b, decimal, '0')
	} else {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	return b
}

func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

// renamedShader3D overrides the name of a shader and forwards everything else.
type renamedShader3D struct {
	Shader3D
	name []byte
}

// mirror of gleval.SDF3 interface to avoid cyclic dependencies.
type sdf3 interface {
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
}

func (r *renamedShader3D) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	sdf, ok := r.Shader3D.(sdf3)
	if !ok {
		return fmt.Errorf("%T does not implement gleval.SDF3", r.Shader3D)
	}
	return sdf.Evaluate(pos, dist, userData)
}

func (r *renamedShader3D) AppendShaderName(b []byte) []byte {
	return append(b, r.name...)
}

func (r *renamedShader3D) unwrap() Shader { return r.Shader3D }

func hashBytes(b []byte, seed uint64) uint64 {
	h := fnv.New64a()
	var s [8]byte
	for i := range s {
		s[i] = byte(seed >> (8 * i))
	}
	h.Write(s[:])
	h.Write(b)
	return h.Sum64()
}

// unwraproot returns the innermost shader of a chain of wrappers such as renamed shaders.
func unwraproot(s Shader) Shader {
	for i := 0; i < 6; i++ {
		u, ok := s.(interface{ unwrap() Shader })
		if !ok {
			break
		}
		s = u.unwrap()
	}
	return s
}
