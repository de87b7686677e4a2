package mesh

import "github.com/notargets/hpfem/types"

// parentEdge finds the edge that a-b is one half of
func (m *Mesh) parentEdge(a, b int) (pa, pb int, ok bool) {
	if p := m.Vertices[a].Parents; p[0] >= 0 && (p[0] == b || p[1] == b) {
		return p[0], p[1], true
	}
	if p := m.Vertices[b].Parents; p[0] >= 0 && (p[0] == a || p[1] == a) {
		return p[0], p[1], true
	}
	return -1, -1, false
}

// ConstrainingEdge walks up the bisection history of edge a-b and returns the first ancestor edge
// that belongs to an active element, with the number of halvings between the two.
// ok is false when a-b is not hanging.
func (m *Mesh) ConstrainingEdge(a, b int) (ca, cb, level int, ok bool) {
	ca, cb = a, b
	for {
		pa, pb, found := m.parentEdge(ca, cb)
		if !found {
			return a, b, 0, false
		}
		level++
		if m.edgeUse[types.Key(pa, pb)] > 0 {
			return pa, pb, level, true
		}
		ca, cb = pa, pb
	}
}

// HangingLevel of an active edge, 0 when both sides match
func (m *Mesh) HangingLevel(a, b int) (level int) {
	_, _, level, _ = m.ConstrainingEdge(a, b)
	return
}

// MaxHangingLevel over all active element edges
func (m *Mesh) MaxHangingLevel() (level int) {
	for _, id := range m.ActiveElements() {
		el := &m.Elements[id]
		for i := 0; i < el.NumVertices(); i++ {
			if l := m.HangingLevel(el.Edge(i)); l > level {
				level = l
			}
		}
	}
	return
}

// VertexConstraint returns the active edge whose interior contains v, ok is false for regular vertices
func (m *Mesh) VertexConstraint(v int) (a, b int, ok bool) {
	p := m.Vertices[v].Parents
	if p[0] < 0 {
		return -1, -1, false
	}
	a, b = p[0], p[1]
	for {
		if m.edgeUse[types.Key(a, b)] > 0 {
			return a, b, true
		}
		if a, b, ok = m.parentEdge(a, b); !ok {
			return -1, -1, false
		}
	}
}
