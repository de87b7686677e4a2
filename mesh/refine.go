package mesh

import (
	"fmt"

	"github.com/notargets/hpfem/types"
)

// halvedEdges lists the local edges a split cuts in two
func halvedEdges(shape Shape, split SplitKind) []int {
	switch {
	case shape == Triangle && split == SplitIso:
		return []int{0, 1, 2}
	case split == SplitIso:
		return []int{0, 1, 2, 3}
	case split == SplitHorizontal:
		return []int{1, 3}
	case split == SplitVertical:
		return []int{0, 2}
	}
	return nil
}

// CanRefine checks that the split is valid for the element and would keep every hanging level within Regularity
func (m *Mesh) CanRefine(id int, split SplitKind) error {
	if id < 0 || id >= len(m.Elements) {
		return fmt.Errorf("element id %d out of range [0,%d)", id, len(m.Elements))
	}
	el := &m.Elements[id]
	if !el.Active {
		return fmt.Errorf("element %d is not active", id)
	}
	if split == SplitNone || (el.Shape == Triangle && split != SplitIso) {
		return fmt.Errorf("split %s not supported on %s element %d", split, el.Shape, id)
	}
	if m.Regularity < 0 {
		return nil
	}
	for _, i := range halvedEdges(el.Shape, split) {
		a, b := el.Edge(i)
		if lev := m.levelAfterSplit(a, b); lev > m.Regularity {
			return fmt.Errorf("%w: splitting element %d along edge %d-%d gives hanging level %d, bound is %d",
				ErrRegularityViolation, id, a, b, lev, m.Regularity)
		}
	}
	return nil
}

// levelAfterSplit is the hanging level the halves of edge a-b would have once the element owning it is split
func (m *Mesh) levelAfterSplit(a, b int) int {
	if m.BoundaryMarker(a, b) != 0 {
		return 0
	}
	if _, _, lev, ok := m.ConstrainingEdge(a, b); ok {
		return lev + 1
	}
	if m.EdgeUse(a, b) == 2 {
		return 1
	}
	// the neighbour is already finer along this edge
	return 0
}

// RefineElement splits an active element and returns the ids of the sons
func (m *Mesh) RefineElement(id int, split SplitKind) (sons []int, err error) {
	if err = m.CanRefine(id, split); err != nil {
		return
	}
	sons = m.split(id, split)
	return
}

// RefineUniformly splits every active element isotropically
func (m *Mesh) RefineUniformly() {
	for _, id := range m.ActiveElements() {
		m.split(id, SplitIso)
	}
}

// midpoint returns the vertex bisecting edge a-b, creating it on first use
func (m *Mesh) midpoint(a, b int) (mid int) {
	k := types.Key(a, b)
	var ok bool
	if mid, ok = m.mids[k]; ok {
		return
	}
	va, vb := m.Vertices[a], m.Vertices[b]
	mid = m.AddVertex(0.5*(va.X+vb.X), 0.5*(va.Y+vb.Y))
	m.Vertices[mid].Parents = k.GetVertices(false)
	m.mids[k] = mid
	if mk, bnd := m.boundary[k]; bnd {
		m.SetBoundary(a, mid, mk)
		m.SetBoundary(mid, b, mk)
	}
	return
}

// Midpoint reports the vertex bisecting edge a-b, if it exists
func (m *Mesh) Midpoint(a, b int) (mid int, ok bool) {
	mid, ok = m.mids[types.Key(a, b)]
	return
}

func avg(p, q [2]float64) [2]float64 {
	return [2]float64{0.5 * (p[0] + q[0]), 0.5 * (p[1] + q[1])}
}

func (m *Mesh) split(id int, split SplitKind) (sons []int) {
	var (
		el = m.Elements[id]
		v  = el.Verts
		r  = el.RefVerts
	)
	type son struct {
		verts []int
		ref   [4][2]float64
	}
	var list []son
	if el.Shape == Triangle {
		m0, m1, m2 := m.midpoint(v[0], v[1]), m.midpoint(v[1], v[2]), m.midpoint(v[2], v[0])
		r0, r1, r2 := avg(r[0], r[1]), avg(r[1], r[2]), avg(r[2], r[0])
		list = []son{
			{[]int{v[0], m0, m2}, [4][2]float64{r[0], r0, r2}},
			{[]int{m0, v[1], m1}, [4][2]float64{r0, r[1], r1}},
			{[]int{m2, m1, v[2]}, [4][2]float64{r2, r1, r[2]}},
			{[]int{m0, m1, m2}, [4][2]float64{r0, r1, r2}},
		}
	} else {
		switch split {
		case SplitIso:
			m0, m1 := m.midpoint(v[0], v[1]), m.midpoint(v[1], v[2])
			m2, m3 := m.midpoint(v[3], v[2]), m.midpoint(v[0], v[3])
			c := m.midpoint(m3, m1)
			if _, ok := m.mids[types.Key(m0, m2)]; !ok {
				m.mids[types.Key(m0, m2)] = c
			}
			r0, r1, r2, r3 := avg(r[0], r[1]), avg(r[1], r[2]), avg(r[3], r[2]), avg(r[0], r[3])
			rc := avg(r3, r1)
			list = []son{
				{[]int{v[0], m0, c, m3}, [4][2]float64{r[0], r0, rc, r3}},
				{[]int{m0, v[1], m1, c}, [4][2]float64{r0, r[1], r1, rc}},
				{[]int{c, m1, v[2], m2}, [4][2]float64{rc, r1, r[2], r2}},
				{[]int{m3, c, m2, v[3]}, [4][2]float64{r3, rc, r2, r[3]}},
			}
		case SplitHorizontal:
			m1, m3 := m.midpoint(v[1], v[2]), m.midpoint(v[0], v[3])
			r1, r3 := avg(r[1], r[2]), avg(r[0], r[3])
			list = []son{
				{[]int{v[0], v[1], m1, m3}, [4][2]float64{r[0], r[1], r1, r3}},
				{[]int{m3, m1, v[2], v[3]}, [4][2]float64{r3, r1, r[2], r[3]}},
			}
		case SplitVertical:
			m0, m2 := m.midpoint(v[0], v[1]), m.midpoint(v[3], v[2])
			r0, r2 := avg(r[0], r[1]), avg(r[3], r[2])
			list = []son{
				{[]int{v[0], m0, m2, v[3]}, [4][2]float64{r[0], r0, r2, r[3]}},
				{[]int{m0, v[1], v[2], m2}, [4][2]float64{r0, r[1], r[2], r2}},
			}
		default:
			panic(fmt.Errorf("split %s not supported on quads", split))
		}
	}
	m.deactivate(id)
	sons = make([]int, len(list))
	for i, s := range list {
		sons[i] = m.addElement(el.Shape, s.verts, el.Marker, id, s.ref)
	}
	m.Elements[id].Children = sons
	m.Elements[id].Split = split
	return
}
