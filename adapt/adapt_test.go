package adapt

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/selector"
	"github.com/notargets/hpfem/solver"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/types"
	"github.com/notargets/hpfem/utils"
)

const lshapeMesh = `vertices = {
  { 0, -1 }, { 1, -1 }, { -1, 0 }, { 0, 0 },
  { 1, 0 }, { -1, 1 }, { 0, 1 }, { 1, 1 }
}
elements = { { 0, 1, 4, 3, 0 }, { 3, 4, 7, 6, 0 }, { 2, 3, 6, 5, 0 } }
boundaries = {
  { 0, 1, 1 }, { 1, 4, 1 }, { 4, 7, 1 }, { 7, 6, 1 },
  { 6, 5, 1 }, { 5, 2, 1 }, { 2, 3, 1 }, { 3, 0, 1 }
}
`

func singular(x, y float64) (u, dudx, dudy float64) {
	var (
		r2  = x*x + y*y
		r   = math.Sqrt(r2)
		phi = 2*math.Atan2(x, y)/3 + math.Pi/3
		rp  = math.Pow(r, 2./3)
	)
	u = rp * math.Sin(phi)
	if r == 0 {
		return
	}
	dudx = 2./3*rp*(x*math.Sin(phi)+y*math.Cos(phi))/r2
	dudy = 2./3*rp*(y*math.Sin(phi)-x*math.Cos(phi))/r2
	return
}

func saddle(x, y float64) (u, dudx, dudy float64) { return x*x - y*y, 2 * x, -2 * y }

func newProblem(t *testing.T, exact ExactFunc) Problem {
	t.Helper()
	m, err := mesh.Read(strings.NewReader(lshapeMesh), mesh.FormatNative)
	require.NoError(t, err)
	bc := space.BoundaryConditions{1: {Type: types.BC_Essential, Value: func(x, y float64) float64 {
		u, _, _ := exact(x, y)
		return u
	}}}
	return Problem{
		Mesh:       m,
		Classifier: bc,
		Value:      bc,
		Form:       solver.WeakForm{Bilinear: solver.Laplace},
		Exact:      exact,
	}
}

func quiet() Option {
	return WithLogger(utils.NewLogger(&bytes.Buffer{}, 0))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	for name, mod := range map[string]func(*Config){
		"initRefNum":   func(c *Config) { c.InitRefNum = -1 },
		"order":        func(c *Config) { c.InitialOrder = 0 },
		"maxOrder":     func(c *Config) { c.MaxOrder = 2 },
		"threshold":    func(c *Config) { c.Threshold = 1.5 },
		"zeroThresh":   func(c *Config) { c.Threshold = 0 },
		"strategy":     func(c *Config) { c.Strategy = 3 },
		"regularity":   func(c *Config) { c.MeshRegularity = -2 },
		"convExp":      func(c *Config) { c.ConvExp = 0 },
		"errStop":      func(c *Config) { c.ErrStop = 0 },
		"ndofStop":     func(c *Config) { c.NDOFStop = 0 },
		"iterations":   func(c *Config) { c.MaxIterations = -1 },
		"refIncrement": func(c *Config) { c.RefOrderIncrease = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mod(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
	cfg := DefaultConfig()
	cfg.CandLists = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, selector.ErrNoCandidatesAvailable)

	cfg = DefaultConfig()
	cfg.Strategy, cfg.Threshold = 2, 5
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.Threshold = 1
	assert.NoError(t, cfg.Validate())

	n, err := NewNormType("energy")
	require.NoError(t, err)
	assert.Equal(t, NormEnergy, n)
	_, err = NewNormType("L7")
	assert.Error(t, err)
}

func TestIterationError(t *testing.T) {
	err := error(&IterationError{Iteration: 3, State: StateMarkAndRefine, Element: 12, Err: solver.ErrSolverFailure})
	assert.ErrorIs(t, err, solver.ErrSolverFailure)
	assert.Equal(t, "iteration 3, MARK_AND_REFINE, element 12: "+solver.ErrSolverFailure.Error(), err.Error())
	var ie *IterationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 12, ie.Element)
	err = &IterationError{Iteration: 1, State: StateInit, Element: -1, Err: space.ErrInconsistentBoundaryData}
	assert.NotContains(t, err.Error(), "element")
}

func record(ids []int, sq []float64) *ErrorRecord {
	rec := &ErrorRecord{Elements: ids, Squared: sq, FineNorm2: 100}
	for _, e := range sq {
		rec.Relative = append(rec.Relative, e/rec.FineNorm2)
	}
	return rec
}

func TestMarkStrategies(t *testing.T) {
	rec := record([]int{0, 1, 2, 3, 4}, []float64{4, 3, 3, 1, 0.5})
	assert.Equal(t, []int{0}, Mark(0, 0.3, rec))
	// the element tied with the last included one is marked too
	assert.Equal(t, []int{0, 1, 2}, Mark(0, 0.5, rec))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, Mark(0, 1, rec))

	assert.Equal(t, []int{0, 1, 2}, Mark(1, 0.8, rec))
	assert.Equal(t, []int{0}, Mark(1, 0.9, rec))

	// relative errors are 0.2, 0.173, 0.173, 0.1, 0.0707
	assert.Equal(t, []int{0, 1, 2}, Mark(2, 0.15, rec))
	assert.Empty(t, Mark(2, 0.5, rec))

	// descending error, ties by ascending id
	rec = record([]int{5, 2, 9}, []float64{1, 2, 1})
	assert.Equal(t, []int{2, 5, 9}, Mark(1, 0.1, rec))
	assert.Empty(t, Mark(0, 0.5, record([]int{1, 2}, []float64{0, 0})))
}

func TestMarkMonotonicInThreshold(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	var (
		ids []int
		sq  []float64
	)
	for i := 0; i < 40; i++ {
		ids = append(ids, i)
		sq = append(sq, rnd.Float64())
	}
	rec := record(ids, sq)
	for _, strategy := range []int{1, 2} {
		prev := 0
		for thr := 0.99; thr > 0.01; thr -= 0.07 {
			n := len(Mark(strategy, thr, rec))
			assert.GreaterOrEqual(t, n, prev, "strategy %d threshold %g", strategy, thr)
			prev = n
		}
	}
}

func solvedPair(t *testing.T, order int) (coarse, fine *solver.Solution) {
	t.Helper()
	prob := newProblem(t, singular)
	m := prob.Mesh
	m.RefineUniformly()
	s, err := space.New(m, prob.Classifier, prob.Value, order)
	require.NoError(t, err)
	ref := m.Copy()
	ref.RefineUniformly()
	fs, err := s.NewReference(ref, 1)
	require.NoError(t, err)
	fine, err = solver.Solve(fs, prob.Form, solver.DefaultOptions())
	require.NoError(t, err)
	coarse, err = solver.Project(fine, s, solver.DefaultOptions())
	require.NoError(t, err)
	return
}

func TestEstimateIsAdditive(t *testing.T) {
	coarse, fine := solvedPair(t, 2)
	rec, err := Estimate(coarse, fine, nil)
	require.NoError(t, err)
	require.Len(t, rec.Elements, 12)
	assert.Greater(t, rec.Estimate, 0.)
	var sum float64
	for i := range rec.Elements {
		assert.GreaterOrEqual(t, rec.Squared[i], 0.)
		sum += rec.Relative[i]
	}
	assert.InDelta(t, rec.Estimate*rec.Estimate, sum*1e4, 1e-9*rec.Estimate*rec.Estimate)
	assert.True(t, math.IsNaN(rec.Exact))

	// the corner elements carry the largest errors
	order := byError(rec)
	top := coarse.Space.Mesh.Element(rec.Elements[order[0]])
	hasCorner := false
	for _, v := range top.Verts[:4] {
		p := coarse.Space.Mesh.Vertices[v]
		if p.X == 0 && p.Y == 0 {
			hasCorner = true
		}
	}
	assert.True(t, hasCorner)

	// projecting again reproduces the estimate
	again, err := solver.Project(fine, coarse.Space, solver.DefaultOptions())
	require.NoError(t, err)
	rec2, err := Estimate(again, fine, nil)
	require.NoError(t, err)
	assert.InDelta(t, rec.Estimate, rec2.Estimate, 1e-10)

	energy, err := Estimate(coarse, fine, solver.Laplace)
	require.NoError(t, err)
	assert.Greater(t, energy.Estimate, 0.)

	exact, err := ExactError(coarse, ExactFunc(singular), nil)
	require.NoError(t, err)
	assert.Greater(t, exact, 0.)
	assert.Less(t, exact, 100.)
}

func TestSingleIterationTransitions(t *testing.T) {
	var (
		cfg = DefaultConfig()
		dir = filepath.Join(t.TempDir(), "out")
	)
	cfg.InitialOrder = 2
	cfg.OutputDir = dir
	c, err := New(cfg, newProblem(t, saddle), quiet())
	require.NoError(t, err)
	assert.Equal(t, StateInit, c.State().State)

	for _, want := range []State{StateSolveFine, StateSolveCoarseOrProject, StateEstimate, StateCheckStop, StateDone} {
		require.NoError(t, c.Step())
		assert.Equal(t, want, c.State().State)
	}
	st := c.State()
	assert.True(t, st.Done)
	assert.Equal(t, ErrorTolerance, st.Reason)
	assert.Equal(t, 1, st.Iteration)
	assert.Less(t, st.ErrEst, 1e-6)
	assert.Less(t, st.ErrExact, 1e-6)
	assert.Equal(t, 12, c.Mesh.NumActive())
	assert.Greater(t, st.NDOFFine, st.NDOF)

	require.NoError(t, c.Step())
	assert.Equal(t, st, c.State())

	for _, name := range []string{"conv_dof_est.dat", "conv_dof_exact.dat", "conv_cpu_est.dat", "conv_cpu_exact.dat"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, 1, strings.Count(string(data), "\n"), name)
	}
}

func TestStopReasons(t *testing.T) {
	t.Run("Stalled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InitialOrder, cfg.Strategy, cfg.Threshold = 2, 2, 1
		c, err := New(cfg, newProblem(t, singular), quiet())
		require.NoError(t, err)
		require.NoError(t, c.Run())
		assert.Equal(t, Stalled, c.State().Reason)
		assert.Equal(t, 2, c.State().Iteration)
	})
	t.Run("DOFLimit", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InitialOrder, cfg.NDOFStop = 2, 40
		c, err := New(cfg, newProblem(t, singular), quiet())
		require.NoError(t, err)
		require.NoError(t, c.Run())
		assert.Equal(t, DOFLimit, c.State().Reason)
		assert.GreaterOrEqual(t, c.State().NDOF, 40)
		assert.Equal(t, c.Space.DOFCount(), c.State().NDOF)
	})
	t.Run("IterationLimit", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InitialOrder, cfg.MaxIterations = 2, 2
		c, err := New(cfg, newProblem(t, singular), quiet())
		require.NoError(t, err)
		require.NoError(t, c.Run())
		assert.Equal(t, IterationLimit, c.State().Reason)
		assert.Equal(t, 2, c.State().Iteration)
		assert.Equal(t, 2, c.Graphs()[0].Len())
	})
}

func TestFatalErrors(t *testing.T) {
	prob := newProblem(t, singular)
	prob.Classifier = space.BoundaryConditions{}
	c, err := New(DefaultConfig(), prob, quiet())
	require.NoError(t, err)
	err = c.Run()
	assert.ErrorIs(t, err, space.ErrInconsistentBoundaryData)
	var ie *IterationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, StateInit, ie.State)
	assert.Equal(t, -1, ie.Element)

	cfg := DefaultConfig()
	cfg.ErrStop = -1
	_, err = New(cfg, newProblem(t, singular))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Norm = NormEnergy
	prob = newProblem(t, singular)
	prob.Form.Bilinear = solver.GeneralForm(func(u, v solver.ShapeValue, x, y float64) float64 {
		return u.Dx*v.Dx + u.Dy*v.Dy + u.Dx*v.Val
	})
	_, err = New(cfg, prob)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegularityIsKept(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialOrder, cfg.MeshRegularity, cfg.CandLists, cfg.MaxIterations = 1, 1, selector.ListHIso, 5
	cfg.Strategy, cfg.Threshold = 1, 0.5
	c, err := New(cfg, newProblem(t, singular), quiet())
	require.NoError(t, err)
	require.NoError(t, c.Run())
	assert.LessOrEqual(t, c.Mesh.MaxHangingLevel(), 1)
	assert.Greater(t, c.Mesh.NumActive(), 12)
}

func TestLShapeConverges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialOrder, cfg.ErrStop, cfg.MaxIterations = 2, 1, 40
	c, err := New(cfg, newProblem(t, singular), quiet())
	require.NoError(t, err)
	ndof := 0
	for !c.State().Done {
		require.NoError(t, c.Step())
		if c.State().State == StateCheckStop {
			assert.GreaterOrEqual(t, c.State().NDOF, ndof)
			ndof = c.State().NDOF
		}
	}
	st := c.State()
	assert.Equal(t, ErrorTolerance, st.Reason)
	assert.Less(t, st.ErrEst, 1.)
	assert.False(t, math.IsNaN(st.ErrExact))
	assert.Equal(t, st.Iteration, c.Graphs()[1].Len())
}

func TestLShapeBenchmark(t *testing.T) {
	if testing.Short() {
		t.Skip("full L-shape benchmark")
	}
	c, err := New(DefaultConfig(), newProblem(t, singular), quiet())
	require.NoError(t, err)
	require.NoError(t, c.Run())
	assert.Equal(t, ErrorTolerance, c.State().Reason)
	assert.Less(t, c.State().NDOF, DefaultConfig().NDOFStop)
}
