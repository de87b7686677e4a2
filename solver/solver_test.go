package solver

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/types"
	"github.com/notargets/hpfem/utils"
)

const (
	lshapeMesh = `vertices = {
  { -1, -1 }, { 0, -1 }, { -1, 0 }, { 0, 0 },
  { 1, 0 }, { -1, 1 }, { 0, 1 }, { 1, 1 }
}
elements = { { 0, 1, 3, 2, 0 }, { 2, 3, 6, 5, 0 }, { 3, 4, 7, 6, 0 } }
boundaries = {
  { 0, 1, 1 }, { 1, 3, 1 }, { 3, 4, 1 }, { 4, 7, 1 },
  { 7, 6, 1 }, { 6, 5, 1 }, { 5, 2, 1 }, { 2, 0, 1 }
}
`
	squareMesh = `vertices = { {0,0}, {1,0}, {1,1}, {0,1} }
elements = { {0,1,2,3,0} }
boundaries = { {0,1,1}, {1,2,2}, {2,3,3}, {3,0,4} }
`
)

func readMesh(t *testing.T, content string) *mesh.Mesh {
	t.Helper()
	m, err := mesh.Read(strings.NewReader(content), mesh.FormatNative)
	require.NoError(t, err)
	return m
}

// cubic exact solution and its source for -laplace u = f
func cubic(x, y float64) float64 { return x*x*x + x*y*y - 2*y + 1 }

func cubicSource(x, y float64) float64 { return -8 * x }

// hangingSpace refines the L-shape to hanging levels 1 and 2 with mixed orders of at least 3
func hangingSpace(t *testing.T, bc space.BoundaryConditions) *space.Space {
	t.Helper()
	m := readMesh(t, lshapeMesh)
	sons, err := m.RefineElement(0, mesh.SplitIso)
	require.NoError(t, err)
	grand, err := m.RefineElement(sons[3], mesh.SplitIso)
	require.NoError(t, err)
	_, err = m.RefineElement(2, mesh.SplitHorizontal)
	require.NoError(t, err)
	s, err := space.New(m, bc, bc, 3)
	require.NoError(t, err)
	require.NoError(t, s.SetOrder(1, space.Order{H: 4, V: 3}))
	require.NoError(t, s.SetOrder(grand[2], space.Order{H: 3, V: 5}))
	require.NoError(t, s.SetOrder(sons[2], space.Order{H: 5, V: 4}))
	require.NoError(t, s.Renumber())
	return s
}

func checkAgainst(t *testing.T, u *Solution, exact func(x, y float64) float64, region [4]float64, tol float64) {
	t.Helper()
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		x := region[0] + rnd.Float64()*(region[1]-region[0])
		y := region[2] + rnd.Float64()*(region[3]-region[2])
		v, ok := u.ValueAt(x, y)
		if !ok {
			continue
		}
		assert.InDelta(t, exact(x, y), v.Val, tol, "at (%g,%g)", x, y)
	}
}

func TestExactPolynomialWithHangingNodes(t *testing.T) {
	bc := space.BoundaryConditions{1: {Type: types.BC_Essential, Value: cubic}}
	wf := WeakForm{Bilinear: Laplace, Linear: Source(cubicSource)}
	for name, opt := range map[string]Options{
		"dense":     DefaultOptions(),
		"iterative": {DenseLimit: 0, Tolerance: 1e-13},
	} {
		t.Run(name, func(t *testing.T) {
			s := hangingSpace(t, bc)
			u, err := Solve(s, wf, opt)
			require.NoError(t, err)
			checkAgainst(t, u, cubic, [4]float64{-1, 1, -1, 1}, 1e-8)
		})
	}
}

func TestNonSymmetricForm(t *testing.T) {
	// -laplace u + 2 du/dx = f
	convection := GeneralForm(func(u, v ShapeValue, x, y float64) float64 {
		return u.Dx*v.Dx + u.Dy*v.Dy + 2*u.Dx*v.Val
	})
	source := Source(func(x, y float64) float64 {
		return cubicSource(x, y) + 2*(3*x*x+y*y)
	})
	bc := space.BoundaryConditions{1: {Type: types.BC_Essential, Value: cubic}}
	for name, opt := range map[string]Options{
		"lu":       DefaultOptions(),
		"bicgstab": {DenseLimit: 0, Tolerance: 1e-12},
	} {
		t.Run(name, func(t *testing.T) {
			s := hangingSpace(t, bc)
			u, err := Solve(s, WeakForm{Bilinear: convection, Linear: source}, opt)
			require.NoError(t, err)
			checkAgainst(t, u, cubic, [4]float64{-1, 1, -1, 1}, 1e-6)
		})
	}
}

func TestNaturalBoundary(t *testing.T) {
	exact := func(x, y float64) float64 { return x*x + y }
	bc := space.BoundaryConditions{
		1: {Type: types.BC_Essential, Value: exact},
		2: {Type: types.BC_Natural, Value: func(x, y float64) float64 { return 2 * x }},
		3: {Type: types.BC_Natural, Value: func(x, y float64) float64 { return 1 }},
		4: {Type: types.BC_Natural},
	}
	m := readMesh(t, squareMesh)
	m.RefineUniformly()
	_, err := m.RefineElement(m.ActiveElements()[0], mesh.SplitVertical)
	require.NoError(t, err)
	s, err := space.New(m, bc, bc, 2)
	require.NoError(t, err)
	u, err := Solve(s, WeakForm{Bilinear: Laplace, Linear: Source(func(x, y float64) float64 { return -2 })}, DefaultOptions())
	require.NoError(t, err)
	checkAgainst(t, u, exact, [4]float64{0, 1, 0, 1}, 1e-10)
	v, ok := u.ValueAt(0.5, 0.25)
	require.True(t, ok)
	assert.InDelta(t, 1.0, v.Dx, 1e-9)
	assert.InDelta(t, 1.0, v.Dy, 1e-9)
}

func TestSolveErrors(t *testing.T) {
	bc := space.BoundaryConditions{1: {Type: types.BC_Essential, Value: cubic}}
	s := hangingSpace(t, bc)
	require.NoError(t, s.SetOrder(1, space.Iso(2)))
	_, err := Solve(s, WeakForm{Bilinear: Laplace}, DefaultOptions())
	assert.True(t, errors.Is(err, space.ErrStaleSpace))
	require.NoError(t, s.Renumber())

	negative := SymmetricForm(func(u, v ShapeValue, x, y float64) float64 { return -(u.Dx*v.Dx + u.Dy*v.Dy) })
	for _, opt := range []Options{DefaultOptions(), {DenseLimit: 0}} {
		_, err = Solve(s, WeakForm{Bilinear: negative}, opt)
		assert.True(t, errors.Is(err, ErrSolverFailure))
	}
	_, err = Solve(s, WeakForm{}, DefaultOptions())
	assert.Error(t, err)
}

func TestSolveSystemSmall(t *testing.T) {
	dok := utils.NewDOK(4, 4)
	for i := 0; i < 4; i++ {
		dok.Add(i, i, 4)
		if i > 0 {
			dok.Add(i, i-1, -1)
			dok.Add(i-1, i, -1)
		}
	}
	dok.Add(0, 0, 1)
	A := dok.ToCSR()
	b := []float64{1, 2, 3, 4}
	xd, err := SolveSystem(A, b, true, nil, DefaultOptions())
	require.NoError(t, err)
	xi, err := SolveSystem(A, b, true, [][]int{{0, 1}, {3}}, Options{Tolerance: 1e-14})
	require.NoError(t, err)
	xb, err := SolveSystem(A, b, false, nil, Options{Tolerance: 1e-14})
	require.NoError(t, err)
	r := make([]float64, 4)
	A.MulVec(r, xd)
	assert.InDeltaSlice(t, b, r, 1e-13)
	assert.InDeltaSlice(t, xd, xi, 1e-12)
	assert.InDeltaSlice(t, xd, xb, 1e-12)
	assert.Equal(t, []float64{5, 4, 4, 4}, A.Diagonal())
}

func TestProjectionReproducesCoarseFunctions(t *testing.T) {
	bc := space.BoundaryConditions{1: {Type: types.BC_Essential, Value: cubic}}
	wf := WeakForm{Bilinear: Laplace, Linear: Source(cubicSource)}
	coarse := hangingSpace(t, bc)
	ref := coarse.Mesh.Copy()
	ref.RefineUniformly()
	fineSpace, err := coarse.NewReference(ref, 1)
	require.NoError(t, err)
	fine, err := Solve(fineSpace, wf, DefaultOptions())
	require.NoError(t, err)
	proj, err := Project(fine, coarse, DefaultOptions())
	require.NoError(t, err)
	checkAgainst(t, proj, cubic, [4]float64{-1, 1, -1, 1}, 1e-9)

	direct, err := Solve(coarse, wf, DefaultOptions())
	require.NoError(t, err)
	assert.InDeltaSlice(t, direct.Coefs, proj.Coefs, 1e-9)
}
