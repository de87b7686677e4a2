package adapt

import (
	"fmt"
	"math"

	"github.com/notargets/hpfem/shapeset"
	"github.com/notargets/hpfem/solver"
	"github.com/notargets/hpfem/space"
)

// ExactSolution is a closed form solution with its gradient
type ExactSolution interface {
	Value(x, y float64) (u, dudx, dudy float64)
}

type ExactFunc func(x, y float64) (u, dudx, dudy float64)

func (f ExactFunc) Value(x, y float64) (u, dudx, dudy float64) { return f(x, y) }

// ErrorRecord holds the per element errors of one estimate, indexed like Elements
type ErrorRecord struct {
	Elements  []int     // active coarse element ids, ascending
	Squared   []float64 // squared error of the element
	Relative  []float64 // Squared divided by FineNorm2
	FineNorm2 float64
	Estimate  float64 // percent
	Exact     float64 // percent, NaN without an exact solution
}

func (r *ErrorRecord) Total() (sum float64) {
	for _, e := range r.Squared {
		sum += e
	}
	return
}

// ElementError is the relative error of the i-th element, not squared
func (r *ErrorRecord) ElementError(i int) float64 { return math.Sqrt(r.Relative[i]) }

// Estimate measures the coarse solution against the reference solution element by element.
// The reference mesh must be a refinement of the coarse mesh with shared element ids, norm defaults to H1.
func Estimate(coarse, fine *solver.Solution, norm solver.BilinearForm) (rec *ErrorRecord, err error) {
	if coarse.Space.Dirty() || fine.Space.Dirty() {
		return nil, space.ErrStaleSpace
	}
	if norm == nil {
		norm = solver.H1Product
	}
	var (
		cm, ref = coarse.Space.Mesh, fine.Space.Mesh
		pos     = make(map[int]int)
	)
	rec = &ErrorRecord{Elements: cm.ActiveElements(), Exact: math.NaN()}
	rec.Squared = make([]float64, len(rec.Elements))
	rec.Relative = make([]float64, len(rec.Elements))
	for i, id := range rec.Elements {
		pos[id] = i
	}
	for _, f := range ref.ActiveElements() {
		anc, ok := ref.Ancestor(f, cm)
		if !ok {
			return nil, fmt.Errorf("reference element %d has no coarse ancestor", f)
		}
		rule := shapeset.GaussLegendre(fine.Space.Order(f).Max() + 2)
		for qi, xi := range rule.X {
			for qj, eta := range rule.X {
				var (
					x, y, _, detJ = ref.Map(f, xi, eta)
					cxi, ceta     = ref.ToAncestor(f, anc, xi, eta)
					uf            = fine.Eval(f, xi, eta)
					e             = uf.Sub(coarse.Eval(anc, cxi, ceta))
					w             = rule.W[qi] * rule.W[qj] * detJ
				)
				rec.Squared[pos[anc]] += w * norm.Integrand(e, e, x, y)
				rec.FineNorm2 += w * norm.Integrand(uf, uf, x, y)
			}
		}
	}
	if rec.FineNorm2 > 0 {
		for i, e := range rec.Squared {
			rec.Relative[i] = e / rec.FineNorm2
		}
		rec.Estimate = math.Sqrt(rec.Total()/rec.FineNorm2) * 100
	}
	return
}

// ExactError returns the relative error percent of a solution against a closed form solution
func ExactError(u *solver.Solution, exact ExactSolution, norm solver.BilinearForm) (percent float64, err error) {
	if u.Space.Dirty() {
		return 0, space.ErrStaleSpace
	}
	if norm == nil {
		norm = solver.H1Product
	}
	var (
		m          = u.Space.Mesh
		diff, full float64
	)
	for _, id := range m.ActiveElements() {
		rule := shapeset.GaussLegendre(u.Space.Order(id).Max() + 4)
		for qi, xi := range rule.X {
			for qj, eta := range rule.X {
				var (
					x, y, _, detJ = m.Map(id, xi, eta)
					w             = rule.W[qi] * rule.W[qj] * detJ
					ex            solver.ShapeValue
				)
				ex.Val, ex.Dx, ex.Dy = exact.Value(x, y)
				e := u.Eval(id, xi, eta).Sub(ex)
				diff += w * norm.Integrand(e, e, x, y)
				full += w * norm.Integrand(ex, ex, x, y)
			}
		}
	}
	if full == 0 {
		return 0, fmt.Errorf("exact solution has zero norm")
	}
	return math.Sqrt(diff/full) * 100, nil
}
