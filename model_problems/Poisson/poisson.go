package Poisson

import (
	"github.com/notargets/hpfem/adapt"
	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/solver"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/types"
)

// NewProblem sets up -Laplace u = source on any mesh. Without boundary conditions every marker is
// homogeneous Dirichlet. There is no exact solution.
func NewProblem(m *mesh.Mesh, source float64, bc space.BoundaryConditions) adapt.Problem {
	prob := adapt.Problem{
		Mesh: m,
		Form: solver.WeakForm{
			Bilinear: solver.Laplace,
			Linear:   solver.Source(func(x, y float64) float64 { return source }),
		},
	}
	if len(bc) == 0 {
		prob.Classifier = space.ClassifierFunc(func(marker int) types.BCTYPE { return types.BC_Essential })
		prob.Value = space.ValueFunc(func(marker int, x, y float64) float64 { return 0 })
		return prob
	}
	prob.Classifier, prob.Value = bc, bc
	return prob
}
