package space

import (
	"fmt"
	"math"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/shapeset"
	"github.com/notargets/hpfem/types"
)

// Term is one contribution of a global DOF to a local basis function
type Term struct {
	Index int
	Coef  float64
}

// LocalFn is the local basis function l_I(xi) l_J(eta), expanded over global DOFs
type LocalFn struct {
	I, J  int
	Terms []Term
}

// vertex and edge basis functions as pairs of Lobatto indices; k marks the edge degree
var vertexLobatto = [4][2]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

func edgeLobatto(e, k int) (i, j int) {
	switch e {
	case 0:
		return k, 0
	case 1:
		return 1, k
	case 2:
		return k, 1
	}
	return 0, k
}

// localEdge returns the end points of edge e in the direction of increasing xi or eta
func localEdge(el *mesh.Element, e int) (start, end int) {
	v := el.Verts
	switch e {
	case 0:
		return v[0], v[1]
	case 1:
		return v[1], v[2]
	case 2:
		return v[3], v[2]
	}
	return v[0], v[3]
}

// masterEdge is an unconstrained active edge, oriented from the lower to the higher vertex id
type masterEdge struct {
	a, b   int
	order  int
	marker int
	slots  []int // k = 2..order
}

type numbering struct {
	s        *Space
	masters  map[types.EdgeKey]*masterEdge
	vslot    map[int]int
	vmemo    map[int][]Term
	visiting map[int]bool
	nfree    int
	fixed    []float64
}

// slot encoding: free DOFs are >= 0, fixed DOFs are -(j+1)
func (n *numbering) newFree() (slot int) {
	slot = n.nfree
	n.nfree++
	return
}

func (n *numbering) newFixed(val float64) (slot int) {
	n.fixed = append(n.fixed, val)
	return -len(n.fixed)
}

func (n *numbering) index(slot int) int {
	if slot >= 0 {
		return slot
	}
	return n.nfree - slot - 1
}

func (n *numbering) slotValue(slot int) float64 { return n.fixed[-slot-1] }

func directionalOrder(o Order, e int) int {
	if e%2 == 0 {
		return o.H
	}
	return o.V
}

// Renumber regenerates the DOF numbering after mesh or order changes
func (s *Space) Renumber() (err error) {
	m := s.Mesh
	if len(m.Curves) > 0 {
		return fmt.Errorf("%w: curved boundaries are not supported", ErrUnsupportedShape)
	}
	active := m.ActiveElements()
	for _, id := range active {
		if sh := m.Elements[id].Shape; sh != mesh.Quad {
			return fmt.Errorf("%w: element %d is a %s", ErrUnsupportedShape, id, sh)
		}
	}
	if err = s.checkBoundaries(); err != nil {
		return
	}
	n := &numbering{
		s:        s,
		masters:  make(map[types.EdgeKey]*masterEdge),
		vslot:    make(map[int]int),
		vmemo:    make(map[int][]Term),
		visiting: make(map[int]bool),
	}
	// minimum rule over every element touching a master edge
	for _, id := range active {
		el := &m.Elements[id]
		o := s.Order(id)
		for e := 0; e < 4; e++ {
			me := n.master(el.Edge(e))
			if p := directionalOrder(o, e); me.order == 0 || p < me.order {
				me.order = p
			}
		}
	}
	essential := make(map[int]int)
	for _, id := range active {
		el := &m.Elements[id]
		for e := 0; e < 4; e++ {
			a, b := el.Edge(e)
			if mk := m.BoundaryMarker(a, b); mk != 0 && s.Classify(mk) == types.BC_Essential {
				for _, v := range [2]int{a, b} {
					if _, ok := essential[v]; !ok {
						essential[v] = mk
					}
				}
			}
		}
	}
	var (
		bubbles = make(map[int][]int)
		blocks  [][]int
	)
	for _, id := range active {
		el := &m.Elements[id]
		for _, v := range el.Verts {
			if _, done := n.vslot[v]; done {
				continue
			}
			if _, _, hanging := m.VertexConstraint(v); hanging {
				continue
			}
			if mk, ok := essential[v]; ok {
				vx := m.Vertices[v]
				n.vslot[v] = n.newFixed(s.BoundaryValue(mk, vx.X, vx.Y))
			} else {
				n.vslot[v] = n.newFree()
				blocks = append(blocks, []int{n.vslot[v]})
			}
		}
		for e := 0; e < 4; e++ {
			me := n.master(el.Edge(e))
			if me.slots != nil || me.order < 2 {
				continue
			}
			if me.marker != 0 && s.Classify(me.marker) == types.BC_Essential {
				for _, c := range n.dirichletEdge(me) {
					me.slots = append(me.slots, n.newFixed(c))
				}
				continue
			}
			var blk []int
			for k := 2; k <= me.order; k++ {
				slot := n.newFree()
				me.slots = append(me.slots, slot)
				blk = append(blk, slot)
			}
			blocks = append(blocks, blk)
		}
		o := s.Order(id)
		if o.H >= 2 && o.V >= 2 {
			blk := make([]int, 0, (o.H-1)*(o.V-1))
			for i := 2; i <= o.H; i++ {
				for j := 2; j <= o.V; j++ {
					blk = append(blk, n.newFree())
				}
			}
			bubbles[id] = blk
			blocks = append(blocks, blk)
		}
	}
	s.ndof = n.nfree
	s.FixedValues = n.fixed
	s.blocks = blocks
	s.elemMaps = make(map[int][]LocalFn, len(active))
	s.edgeOrders = make(map[int][4]int, len(active))
	for _, id := range active {
		s.elemMaps[id], s.edgeOrders[id] = n.elementMap(id, bubbles[id])
	}
	s.dirty = false
	s.numberedFor = len(m.Elements)
	return
}

// master returns the master edge of the active edge a-b, creating it on first use
func (n *numbering) master(a, b int) *masterEdge {
	m := n.s.Mesh
	if ca, cb, _, ok := m.ConstrainingEdge(a, b); ok {
		a, b = ca, cb
	}
	if a > b {
		a, b = b, a
	}
	k := types.Key(a, b)
	me, ok := n.masters[k]
	if !ok {
		me = &masterEdge{a: a, b: b, marker: m.BoundaryMarker(a, b)}
		n.masters[k] = me
	}
	return me
}

// param locates vertex v on a master edge, -1 at a and 1 at b
func (n *numbering) param(me *masterEdge, v int) float64 {
	m := n.s.Mesh
	return 2*m.Length(me.a, v)/m.Length(me.a, me.b) - 1
}

// dirichletEdge projects the boundary data minus its linear interpolant onto the edge functions
// in the H1 seminorm, c_k = -int r(s) l_k''(s) ds
func (n *numbering) dirichletEdge(me *masterEdge) (c []float64) {
	var (
		m      = n.s.Mesh
		va, vb = m.Vertices[me.a], m.Vertices[me.b]
		ga     = n.slotValue(n.vslot[me.a])
		gb     = n.slotValue(n.vslot[me.b])
		rule   = shapeset.GaussLegendre(2*me.order + 4)
	)
	c = make([]float64, me.order-1)
	for q, s := range rule.X {
		l0, l1 := 0.5*(1-s), 0.5*(1+s)
		g := n.s.BoundaryValue(me.marker, l0*va.X+l1*vb.X, l0*va.Y+l1*vb.Y)
		r := g - l0*ga - l1*gb
		for k := 2; k <= me.order; k++ {
			c[k-2] -= rule.W[q] * r * shapeset.LobattoSecond(k, s)
		}
	}
	return
}

// vertexTerms expresses the value at a vertex through global DOFs, resolving hanging vertices recursively
func (n *numbering) vertexTerms(v int) []Term {
	if t, ok := n.vmemo[v]; ok {
		return t
	}
	if n.visiting[v] {
		panic(fmt.Errorf("cyclic hanging vertex constraint at vertex %d", v))
	}
	n.visiting[v] = true
	defer delete(n.visiting, v)
	var (
		m     = n.s.Mesh
		terms []Term
	)
	if a, b, hanging := m.VertexConstraint(v); !hanging {
		slot, ok := n.vslot[v]
		if !ok {
			panic(fmt.Errorf("vertex %d has no DOF", v))
		}
		terms = []Term{{Index: n.index(slot), Coef: 1}}
	} else {
		me := n.master(a, b)
		sigma := n.param(me, v)
		l0, l1 := 0.5*(1-sigma), 0.5*(1+sigma)
		terms = addTerms(terms, n.vertexTerms(me.a), l0)
		terms = addTerms(terms, n.vertexTerms(me.b), l1)
		for k := 2; k <= me.order; k++ {
			lk, _ := shapeset.Lobatto(k, sigma)
			terms = addTerms(terms, []Term{{Index: n.index(me.slots[k-2]), Coef: 1}}, lk)
		}
	}
	n.vmemo[v] = terms
	return terms
}

const termTol = 1e-14

// addTerms accumulates scale*src into dst, merging equal indices
func addTerms(dst, src []Term, scale float64) []Term {
	if math.Abs(scale) < termTol {
		return dst
	}
outer:
	for _, t := range src {
		c := t.Coef * scale
		for i := range dst {
			if dst[i].Index == t.Index {
				dst[i].Coef += c
				continue outer
			}
		}
		dst = append(dst, Term{Index: t.Index, Coef: c})
	}
	return dst
}

func (n *numbering) elementMap(id int, bubbles []int) (fns []LocalFn, edgeOrders [4]int) {
	var (
		m  = n.s.Mesh
		el = &m.Elements[id]
		o  = n.s.Order(id)
	)
	for i, v := range el.Verts {
		fns = append(fns, LocalFn{I: vertexLobatto[i][0], J: vertexLobatto[i][1], Terms: n.vertexTerms(v)})
	}
	for e := 0; e < 4; e++ {
		a, b := localEdge(el, e)
		me := n.master(a, b)
		edgeOrders[e] = me.order
		_, _, _, constrained := m.ConstrainingEdge(a, b)
		var (
			sa, sb float64
			rule   shapeset.Rule
		)
		if constrained {
			sa, sb = n.param(me, a), n.param(me, b)
			rule = shapeset.GaussLegendre(me.order + 1)
		}
		for k := 2; k <= me.order; k++ {
			fn := LocalFn{}
			fn.I, fn.J = edgeLobatto(e, k)
			switch {
			case !constrained:
				sign := 1.
				if a > b && k%2 == 1 {
					sign = -1
				}
				fn.Terms = []Term{{Index: n.index(me.slots[k-2]), Coef: sign}}
			default:
				// d_kj = h int l_j'(sigma(s)) l_k'(s) ds over the sub edge
				h := 0.5 * (sb - sa)
				for j := 2; j <= me.order; j++ {
					var d float64
					for q, s := range rule.X {
						sigma := 0.5*(1-s)*sa + 0.5*(1+s)*sb
						_, dj := shapeset.Lobatto(j, sigma)
						_, dk := shapeset.Lobatto(k, s)
						d += rule.W[q] * dj * dk
					}
					fn.Terms = addTerms(fn.Terms, []Term{{Index: n.index(me.slots[j-2]), Coef: 1}}, h*d)
				}
			}
			fns = append(fns, fn)
		}
	}
	b := 0
	for i := 2; i <= o.H; i++ {
		for j := 2; j <= o.V; j++ {
			fns = append(fns, LocalFn{I: i, J: j, Terms: []Term{{Index: n.index(bubbles[b]), Coef: 1}}})
			b++
		}
	}
	return
}
