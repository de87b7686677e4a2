package mesh

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/notargets/hpfem/types"
)

type Format uint8

const (
	FormatNative Format = iota
	FormatGambit
	FormatYAML
)

// FormatFromExtension maps a file name to a mesh format
func FormatFromExtension(filename string) (f Format, err error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mesh":
		f = FormatNative
	case ".neu":
		f = FormatGambit
	case ".yaml", ".yml":
		f = FormatYAML
	default:
		err = fmt.Errorf("unsupported mesh format: %q", ext)
	}
	return
}

// Load reads a mesh file based on extension
func Load(filename string) (m *Mesh, err error) {
	var (
		f    Format
		file *os.File
	)
	if f, err = FormatFromExtension(filename); err != nil {
		return
	}
	if file, err = os.Open(filename); err != nil {
		return
	}
	defer file.Close()
	if m, err = Read(file, f); err != nil {
		err = fmt.Errorf("%s: %w", filename, err)
	}
	return
}

// Read parses a mesh description from r
func Read(r io.Reader, f Format) (m *Mesh, err error) {
	var d *description
	switch f {
	case FormatNative:
		d, err = readNative(r)
	case FormatGambit:
		d, err = readGambit(r)
	case FormatYAML:
		d, err = readYAML(r)
	default:
		err = fmt.Errorf("unknown mesh format %d", f)
	}
	if err != nil {
		return
	}
	return d.build()
}

// description is the format independent content of a mesh file
type description struct {
	Vertices      [][]float64    `json:"vertices"`
	Elements      [][]int        `json:"elements"`   // vertex ids followed by the material marker
	Boundaries    [][]int        `json:"boundaries"` // v1, v2, marker
	Curves        [][]float64    `json:"curves"`     // v1, v2, angle in degrees
	BoundaryNames map[int]string `json:"boundaryNames"`
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMeshFile, fmt.Sprintf(format, args...))
}

func (d *description) build() (m *Mesh, err error) {
	if len(d.Vertices) == 0 {
		return nil, malformed("no vertices")
	}
	if len(d.Elements) == 0 {
		return nil, malformed("no elements")
	}
	m = NewMesh()
	for i, v := range d.Vertices {
		if len(v) != 2 {
			return nil, malformed("vertex %d has %d coordinates, need 2", i, len(v))
		}
		m.AddVertex(v[0], v[1])
	}
	nv := len(m.Vertices)
	for i, e := range d.Elements {
		var shape Shape
		switch len(e) {
		case 4:
			shape = Triangle
		case 5:
			shape = Quad
		default:
			return nil, malformed("element %d has %d entries, need 3 or 4 vertices and a marker", i, len(e))
		}
		verts := e[:len(e)-1]
		for j, v := range verts {
			if v < 0 || v >= nv {
				return nil, malformed("element %d references vertex %d, have %d vertices", i, v, nv)
			}
			for _, w := range verts[:j] {
				if w == v {
					return nil, malformed("element %d repeats vertex %d", i, v)
				}
			}
		}
		id := m.AddRootElement(shape, verts, e[len(e)-1])
		if area := m.Area(id); area <= 0 {
			return nil, malformed("element %d is degenerate or clockwise, area %g", i, area)
		}
		if shape == Quad {
			// a non convex quad has a corner with negative jacobian
			for _, c := range quadRefVerts {
				if _, _, _, det := m.Map(id, c[0], c[1]); det <= 0 {
					return nil, malformed("element %d is not convex", i)
				}
			}
		}
	}
	for k, n := range m.edgeUse {
		if n > 2 {
			v := k.GetVertices(false)
			return nil, malformed("edge %d-%d is shared by %d elements", v[0], v[1], n)
		}
	}
	for i, b := range d.Boundaries {
		if len(b) != 3 {
			return nil, malformed("boundary %d has %d entries, need v1, v2, marker", i, len(b))
		}
		if b[0] < 0 || b[0] >= nv || b[1] < 0 || b[1] >= nv {
			return nil, malformed("boundary %d references a missing vertex", i)
		}
		if m.EdgeUse(b[0], b[1]) != 1 {
			return nil, malformed("boundary %d: %d-%d is not a boundary edge of the mesh", i, b[0], b[1])
		}
		if b[2] <= 0 {
			return nil, malformed("boundary %d: marker %d must be positive", i, b[2])
		}
		m.SetBoundary(b[0], b[1], b[2])
	}
	for k, n := range m.edgeUse {
		if n == 1 {
			if _, ok := m.boundary[k]; !ok {
				v := k.GetVertices(false)
				return nil, malformed("boundary edge %d-%d has no marker", v[0], v[1])
			}
		}
	}
	for i, c := range d.Curves {
		if len(c) != 3 {
			return nil, malformed("curve %d has %d entries, need v1, v2, angle", i, len(c))
		}
		a, b := int(c[0]), int(c[1])
		if float64(a) != c[0] || float64(b) != c[1] || a < 0 || a >= nv || b < 0 || b >= nv {
			return nil, malformed("curve %d references an invalid vertex", i)
		}
		if m.boundary[types.Key(a, b)] == 0 {
			return nil, malformed("curve %d: %d-%d is not a boundary edge", i, a, b)
		}
		if math.Abs(c[2]) >= 360 || c[2] == 0 {
			return nil, malformed("curve %d: angle %g out of range", i, c[2])
		}
		m.Curves = append(m.Curves, Curve{V1: a, V2: b, Angle: c[2]})
	}
	for k, v := range d.BoundaryNames {
		m.BoundaryNames[k] = v
	}
	return
}
