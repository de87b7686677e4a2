package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/hpfem/types"
)

var (
	// ErrMalformedMeshFile reports a structurally inconsistent mesh description
	ErrMalformedMeshFile = errors.New("malformed mesh file")
	// ErrRegularityViolation reports a refinement that would exceed the hanging node bound
	ErrRegularityViolation = errors.New("mesh regularity violation")
)

type Shape uint8

const (
	Quad Shape = iota
	Triangle
)

func (s Shape) String() string {
	return [...]string{"Quad", "Triangle"}[s]
}

func (s Shape) NumVertices() int {
	if s == Triangle {
		return 3
	}
	return 4
}

type SplitKind uint8

const (
	SplitNone SplitKind = iota
	SplitIso
	SplitHorizontal // cut parallel to the xi axis, bottom and top sons
	SplitVertical   // cut parallel to the eta axis, left and right sons
)

func (s SplitKind) String() string {
	return [...]string{"None", "Iso", "Horizontal", "Vertical"}[s]
}

// NumSons is the number of children produced by the split
func (s SplitKind) NumSons(shape Shape) int {
	switch s {
	case SplitIso:
		return 4
	case SplitHorizontal, SplitVertical:
		return 2
	}
	return 0
}

// Vertex is a mesh node; Parents holds the edge it bisects, or -1,-1 for file vertices
type Vertex struct {
	X, Y    float64
	Parents [2]int
}

// Element is a node of the refinement tree, addressed by its index in Mesh.Elements
type Element struct {
	ID       int
	Shape    Shape
	Verts    [4]int
	Marker   int
	Parent   int
	Children []int
	Split    SplitKind
	Active   bool
	Level    int
	Root     int
	RefVerts [4][2]float64 // corners in the reference coordinates of the root element
}

func (e *Element) NumVertices() int { return e.Shape.NumVertices() }

// Edge returns the vertices of local edge i, running from vertex i to vertex i+1
func (e *Element) Edge(i int) (a, b int) {
	nv := e.NumVertices()
	return e.Verts[i], e.Verts[(i+1)%nv]
}

// Curve marks a boundary edge as a circular arc of Angle degrees
type Curve struct {
	V1, V2 int
	Angle  float64
}

type Mesh struct {
	Vertices      []Vertex
	Elements      []Element
	Curves        []Curve
	BoundaryNames map[int]string
	// Regularity is the maximum hanging node level, -1 for unconstrained
	Regularity int
	boundary   map[types.EdgeKey]int
	mids       map[types.EdgeKey]int
	edgeUse    map[types.EdgeKey]int
	nActive    int
}

func NewMesh() *Mesh {
	return &Mesh{
		BoundaryNames: make(map[int]string),
		Regularity:    -1,
		boundary:      make(map[types.EdgeKey]int),
		mids:          make(map[types.EdgeKey]int),
		edgeUse:       make(map[types.EdgeKey]int),
	}
}

func (m *Mesh) AddVertex(x, y float64) int {
	m.Vertices = append(m.Vertices, Vertex{X: x, Y: y, Parents: [2]int{-1, -1}})
	return len(m.Vertices) - 1
}

var (
	quadRefVerts = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	triRefVerts  = [4][2]float64{{-1, -1}, {1, -1}, {-1, 1}}
)

// AddRootElement appends an active level 0 element
func (m *Mesh) AddRootElement(shape Shape, verts []int, marker int) (id int) {
	var ref [4][2]float64
	if shape == Quad {
		ref = quadRefVerts
	} else {
		ref = triRefVerts
	}
	id = m.addElement(shape, verts, marker, -1, ref)
	m.Elements[id].Root = id
	return
}

func (m *Mesh) addElement(shape Shape, verts []int, marker, parent int, ref [4][2]float64) (id int) {
	id = len(m.Elements)
	el := Element{
		ID:       id,
		Shape:    shape,
		Marker:   marker,
		Parent:   parent,
		RefVerts: ref,
	}
	copy(el.Verts[:], verts)
	if parent >= 0 {
		el.Level = m.Elements[parent].Level + 1
		el.Root = m.Elements[parent].Root
	}
	m.Elements = append(m.Elements, el)
	m.activate(id)
	return
}

func (m *Mesh) activate(id int) {
	el := &m.Elements[id]
	el.Active = true
	for i := 0; i < el.NumVertices(); i++ {
		a, b := el.Edge(i)
		m.edgeUse[types.Key(a, b)]++
	}
	m.nActive++
}

func (m *Mesh) deactivate(id int) {
	el := &m.Elements[id]
	el.Active = false
	for i := 0; i < el.NumVertices(); i++ {
		a, b := el.Edge(i)
		k := types.Key(a, b)
		if m.edgeUse[k]--; m.edgeUse[k] == 0 {
			delete(m.edgeUse, k)
		}
	}
	m.nActive--
}

// SetBoundary records the marker of a boundary edge
func (m *Mesh) SetBoundary(a, b, marker int) {
	m.boundary[types.Key(a, b)] = marker
}

// BoundaryMarker returns the marker of edge a-b, 0 when the edge is interior
func (m *Mesh) BoundaryMarker(a, b int) int {
	return m.boundary[types.Key(a, b)]
}

// Markers lists the distinct boundary markers in use by active elements
func (m *Mesh) Markers() (markers []int) {
	seen := make(map[int]bool)
	for _, id := range m.ActiveElements() {
		el := &m.Elements[id]
		for i := 0; i < el.NumVertices(); i++ {
			a, b := el.Edge(i)
			if mk := m.BoundaryMarker(a, b); mk != 0 && !seen[mk] {
				seen[mk] = true
				markers = append(markers, mk)
			}
		}
	}
	return
}

// EdgeUse is the number of active elements having a-b as one of their edges
func (m *Mesh) EdgeUse(a, b int) int {
	return m.edgeUse[types.Key(a, b)]
}

func (m *Mesh) Element(id int) *Element {
	if id < 0 || id >= len(m.Elements) {
		panic(fmt.Errorf("element id %d out of range [0,%d)", id, len(m.Elements)))
	}
	return &m.Elements[id]
}

func (m *Mesh) NumActive() int { return m.nActive }

// ActiveElements returns the ids of all leaf elements in ascending order
func (m *Mesh) ActiveElements() (ids []int) {
	ids = make([]int, 0, m.nActive)
	for i := range m.Elements {
		if m.Elements[i].Active {
			ids = append(ids, i)
		}
	}
	return
}

// Descendants returns the active leaves below id, or id itself when it is active
func (m *Mesh) Descendants(id int) (leaves []int) {
	el := &m.Elements[id]
	if el.Active {
		return []int{id}
	}
	for _, c := range el.Children {
		leaves = append(leaves, m.Descendants(c)...)
	}
	return
}

// Ancestor walks up from id and returns the first ancestor (or id itself) that is active in other.
// The two meshes must share element ids, as a mesh and its Copy do.
func (m *Mesh) Ancestor(id int, other *Mesh) (anc int, ok bool) {
	for anc = id; anc >= 0; anc = m.Elements[anc].Parent {
		if anc < len(other.Elements) && other.Elements[anc].Active {
			return anc, true
		}
	}
	return -1, false
}

// Area of an element with straight edges (shoelace)
func (m *Mesh) Area(id int) (area float64) {
	el := &m.Elements[id]
	nv := el.NumVertices()
	for i := 0; i < nv; i++ {
		a, b := el.Edge(i)
		va, vb := m.Vertices[a], m.Vertices[b]
		area += va.X*vb.Y - vb.X*va.Y
	}
	return 0.5 * area
}

// Diameter is the longest edge length of an element
func (m *Mesh) Diameter(id int) (h float64) {
	el := &m.Elements[id]
	for i := 0; i < el.NumVertices(); i++ {
		a, b := el.Edge(i)
		h = math.Max(h, m.Length(a, b))
	}
	return
}

func (m *Mesh) Length(a, b int) float64 {
	va, vb := m.Vertices[a], m.Vertices[b]
	return math.Hypot(vb.X-va.X, vb.Y-va.Y)
}

// Copy returns an independent mesh with identical ids, used to build the reference mesh
func (m *Mesh) Copy() (c *Mesh) {
	c = &Mesh{
		Vertices:      make([]Vertex, len(m.Vertices)),
		Elements:      make([]Element, len(m.Elements)),
		Curves:        append([]Curve(nil), m.Curves...),
		BoundaryNames: make(map[int]string, len(m.BoundaryNames)),
		Regularity:    m.Regularity,
		boundary:      make(map[types.EdgeKey]int, len(m.boundary)),
		mids:          make(map[types.EdgeKey]int, len(m.mids)),
		edgeUse:       make(map[types.EdgeKey]int, len(m.edgeUse)),
		nActive:       m.nActive,
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Elements, m.Elements)
	for i := range c.Elements {
		c.Elements[i].Children = append([]int(nil), m.Elements[i].Children...)
	}
	for k, v := range m.BoundaryNames {
		c.BoundaryNames[k] = v
	}
	for k, v := range m.boundary {
		c.boundary[k] = v
	}
	for k, v := range m.mids {
		c.mids[k] = v
	}
	for k, v := range m.edgeUse {
		c.edgeUse[k] = v
	}
	return
}
