package space

import "github.com/notargets/hpfem/types"

// BoundaryClassifier decides the condition type of a boundary marker
type BoundaryClassifier interface {
	Classify(marker int) types.BCTYPE
}

// BoundaryValue supplies Dirichlet values on essential markers and fluxes on natural ones
type BoundaryValue interface {
	Value(marker int, x, y float64) float64
}

type ClassifierFunc func(marker int) types.BCTYPE

func (f ClassifierFunc) Classify(marker int) types.BCTYPE { return f(marker) }

type ValueFunc func(marker int, x, y float64) float64

func (f ValueFunc) Value(marker int, x, y float64) float64 { return f(marker, x, y) }

// BoundaryCondition is the condition applied on one marker
type BoundaryCondition struct {
	Type  types.BCTYPE
	Value func(x, y float64) float64
}

// BoundaryConditions maps markers to conditions and serves as both classifier and value source
type BoundaryConditions map[int]BoundaryCondition

func (bc BoundaryConditions) Classify(marker int) types.BCTYPE {
	if c, ok := bc[marker]; ok {
		return c.Type
	}
	return types.BC_None
}

func (bc BoundaryConditions) Value(marker int, x, y float64) float64 {
	if c, ok := bc[marker]; ok && c.Value != nil {
		return c.Value(x, y)
	}
	return 0
}

// Defines reports whether a value function is present for the marker
func (bc BoundaryConditions) Defines(marker int) bool {
	c, ok := bc[marker]
	return ok && c.Value != nil
}

// valueDefiner is implemented by value sources that can tell a missing marker from a zero value
type valueDefiner interface {
	Defines(marker int) bool
}
