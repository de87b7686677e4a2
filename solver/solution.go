package solver

import (
	"github.com/notargets/hpfem/space"
)

// Solution is a discrete function: the free DOF values of a space plus its Dirichlet lift
type Solution struct {
	Space *space.Space
	Coefs []float64
	local map[int][]float64
	basis map[int]*pointBasis
}

func NewSolution(s *space.Space, coefs []float64) *Solution {
	return &Solution{
		Space: s,
		Coefs: coefs,
		local: make(map[int][]float64),
		basis: make(map[int]*pointBasis),
	}
}

// Local returns the local coefficients of an active element
func (u *Solution) Local(id int) []float64 {
	c, ok := u.local[id]
	if !ok {
		c = u.Space.Local(id, u.Coefs)
		u.local[id] = c
	}
	return c
}

// Eval returns the value and physical gradient at a reference point of an active element
func (u *Solution) Eval(id int, xi, eta float64) ShapeValue {
	fns := u.Space.ElementMap(id)
	pb, ok := u.basis[id]
	if !ok {
		pb = newPointBasis(maxIndex(fns), len(fns))
		u.basis[id] = pb
	}
	pb.eval(u.Space.Mesh, id, fns, xi, eta)
	return pb.combine(u.Local(id))
}

// ValueAt locates the active element containing (x, y) and evaluates there.
// Only axis aligned rectangular elements are searched, ok is false outside the mesh.
func (u *Solution) ValueAt(x, y float64) (v ShapeValue, ok bool) {
	const tol = 1e-12
	m := u.Space.Mesh
	for _, id := range m.ActiveElements() {
		el := m.Element(id)
		lo, hi := m.Vertices[el.Verts[0]], m.Vertices[el.Verts[2]]
		if x < lo.X-tol || x > hi.X+tol || y < lo.Y-tol || y > hi.Y+tol {
			continue
		}
		xi := 2*(x-lo.X)/(hi.X-lo.X) - 1
		eta := 2*(y-lo.Y)/(hi.Y-lo.Y) - 1
		return u.Eval(id, xi, eta), true
	}
	return
}
