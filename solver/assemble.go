package solver

import (
	"fmt"

	"github.com/notargets/hpfem/shapeset"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/types"
	"github.com/notargets/hpfem/utils"
)

// localSystem returns the element matrix (row major, row = test function) and load vector
type localSystem func(id int, fns []space.LocalFn) (K, F []float64)

// assemble scatters the element systems through the DOF map, moving Dirichlet columns to the right hand side
func assemble(s *space.Space, local localSystem) (A utils.CSR, b []float64) {
	var (
		n   = s.DOFCount()
		dok = utils.NewDOK(n, n)
	)
	b = make([]float64, n)
	for _, id := range s.Mesh.ActiveElements() {
		fns := s.ElementMap(id)
		K, F := local(id, fns)
		nl := len(fns)
		for i, fi := range fns {
			for _, ti := range fi.Terms {
				if ti.Index >= n {
					continue
				}
				b[ti.Index] += ti.Coef * F[i]
				for j, fj := range fns {
					kij := K[i*nl+j]
					if kij == 0 {
						continue
					}
					for _, tj := range fj.Terms {
						v := ti.Coef * tj.Coef * kij
						if tj.Index < n {
							dok.Add(ti.Index, tj.Index, v)
						} else {
							b[ti.Index] -= v * s.FixedValues[tj.Index-n]
						}
					}
				}
			}
		}
	}
	dok.SetReadOnly("stiffness")
	A = dok.ToCSR()
	return
}

// weakFormSystem integrates the weak form over one element, including natural boundary fluxes
func weakFormSystem(s *space.Space, wf WeakForm) localSystem {
	sym := wf.Bilinear.Symmetric()
	return func(id int, fns []space.LocalFn) (K, F []float64) {
		var (
			m    = s.Mesh
			nl   = len(fns)
			maxK = maxIndex(fns)
			rule = shapeset.GaussLegendre(maxK + 1)
			pb   = newPointBasis(maxK, nl)
		)
		K, F = make([]float64, nl*nl), make([]float64, nl)
		for qi, xi := range rule.X {
			for qj, eta := range rule.X {
				pb.eval(m, id, fns, xi, eta)
				w := rule.W[qi] * rule.W[qj] * pb.DetJ
				for i, v := range pb.Phi {
					if wf.Linear != nil {
						F[i] += w * wf.Linear.Integrand(v, pb.X, pb.Y)
					}
					j0 := 0
					if sym {
						j0 = i
					}
					for j := j0; j < nl; j++ {
						K[i*nl+j] += w * wf.Bilinear.Integrand(pb.Phi[j], v, pb.X, pb.Y)
					}
				}
			}
		}
		if sym {
			for i := 0; i < nl; i++ {
				for j := 0; j < i; j++ {
					K[i*nl+j] = K[j*nl+i]
				}
			}
		}
		el := m.Element(id)
		for e := 0; e < 4; e++ {
			a, b := el.Edge(e)
			mk := m.BoundaryMarker(a, b)
			if mk == 0 || s.Classify(mk) != types.BC_Natural {
				continue
			}
			half := 0.5 * m.Length(a, b)
			for q, t := range rule.X {
				xi, eta := edgePoint(e, t)
				pb.eval(m, id, fns, xi, eta)
				g := s.BoundaryValue(mk, pb.X, pb.Y)
				if g == 0 {
					continue
				}
				w := rule.W[q] * half * g
				for i, v := range pb.Phi {
					F[i] += w * v.Val
				}
			}
		}
		return
	}
}

// Solve assembles the weak form on the space and solves the resulting system
func Solve(s *space.Space, wf WeakForm, opt Options) (u *Solution, err error) {
	if s.Dirty() {
		return nil, space.ErrStaleSpace
	}
	if wf.Bilinear == nil {
		return nil, fmt.Errorf("weak form has no bilinear form")
	}
	if s.DOFCount() == 0 {
		return NewSolution(s, nil), nil
	}
	A, b := assemble(s, weakFormSystem(s, wf))
	var x []float64
	if x, err = SolveSystem(A, b, wf.Bilinear.Symmetric(), s.Blocks(), opt); err != nil {
		return
	}
	return NewSolution(s, x), nil
}
