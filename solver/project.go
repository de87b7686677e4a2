package solver

import (
	"fmt"

	"github.com/notargets/hpfem/shapeset"
	"github.com/notargets/hpfem/space"
)

// Project computes the global H1 projection of a reference solution onto a coarse space.
// The reference mesh must be a refined copy of the coarse mesh so every coarse element has fine descendants.
func Project(fine *Solution, coarse *space.Space, opt Options) (u *Solution, err error) {
	if coarse.Dirty() || fine.Space.Dirty() {
		return nil, space.ErrStaleSpace
	}
	if coarse.DOFCount() == 0 {
		return NewSolution(coarse, nil), nil
	}
	ref := fine.Space.Mesh
	for _, id := range coarse.Mesh.ActiveElements() {
		if id >= len(ref.Elements) {
			return nil, fmt.Errorf("coarse element %d is missing from the reference mesh", id)
		}
	}
	local := func(id int, fns []space.LocalFn) (K, F []float64) {
		K, _ = weakFormSystem(coarse, WeakForm{Bilinear: H1Product})(id, fns)
		var (
			nl   = len(fns)
			maxK = maxIndex(fns)
			pb   = newPointBasis(maxK, nl)
		)
		F = make([]float64, nl)
		for _, f := range ref.Descendants(id) {
			fk := maxIndex(fine.Space.ElementMap(f))
			if fk < maxK {
				fk = maxK
			}
			rule := shapeset.GaussLegendre(fk + 1)
			for qi, xi := range rule.X {
				for qj, eta := range rule.X {
					uf := fine.Eval(f, xi, eta)
					_, _, _, detJ := ref.Map(f, xi, eta)
					cxi, ceta := ref.ToAncestor(f, id, xi, eta)
					pb.eval(coarse.Mesh, id, fns, cxi, ceta)
					w := rule.W[qi] * rule.W[qj] * detJ
					for i, v := range pb.Phi {
						F[i] += w * (uf.Val*v.Val + uf.Dx*v.Dx + uf.Dy*v.Dy)
					}
				}
			}
		}
		return
	}
	A, b := assemble(coarse, local)
	var x []float64
	if x, err = SolveSystem(A, b, true, coarse.Blocks(), opt); err != nil {
		return
	}
	return NewSolution(coarse, x), nil
}
