package adapt

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/selector"
	"github.com/notargets/hpfem/solver"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/utils"
)

type State uint8

const (
	StateInit State = iota
	StateSolveFine
	StateSolveCoarseOrProject
	StateEstimate
	StateCheckStop
	StateMarkAndRefine
	StateDone
)

func (s State) String() string {
	return [...]string{"INIT", "SOLVE_FINE", "SOLVE_COARSE_OR_PROJECT", "ESTIMATE", "CHECK_STOP",
		"MARK_AND_REFINE", "DONE"}[s]
}

type StopReason uint8

const (
	NotStopped StopReason = iota
	ErrorTolerance
	DOFLimit
	Stalled
	IterationLimit
)

func (r StopReason) String() string {
	return [...]string{"NotStopped", "ErrorTolerance", "DOFLimit", "Stalled", "IterationLimit"}[r]
}

// AdaptivityState is the observable progress of the loop
type AdaptivityState struct {
	Iteration int
	State     State
	ErrEst    float64 // percent
	ErrExact  float64 // percent, NaN without an exact solution
	NDOF      int
	NDOFFine  int
	Done      bool
	Reason    StopReason
}

// Problem is the PDE solved by the loop. Exact is optional and used for reporting only.
type Problem struct {
	Mesh       *mesh.Mesh
	Classifier space.BoundaryClassifier
	Value      space.BoundaryValue
	Form       solver.WeakForm
	Exact      ExactSolution
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

func WithSolverOptions(o solver.Options) Option { return func(c *Controller) { c.solverOpts = o } }

type Controller struct {
	cfg        Config
	prob       Problem
	log        *slog.Logger
	solverOpts solver.Options
	sel        *selector.Selector
	state      AdaptivityState
	// Mesh and Space are the coarse discretization, owned by the controller
	Mesh   *mesh.Mesh
	Space  *space.Space
	fine   *solver.Solution
	coarse *solver.Solution
	record *ErrorRecord
	timer  *utils.Timer
	graphs struct {
		dofEst, dofExact, wallEst, wallExact *utils.Graph
	}
}

// New validates the configuration and prepares a controller in state INIT.
// The problem mesh is copied, the caller's mesh is never refined.
func New(cfg Config, prob Problem, opts ...Option) (c *Controller, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	if prob.Mesh == nil || prob.Form.Bilinear == nil {
		return nil, fmt.Errorf("%w: problem needs a mesh and a bilinear form", ErrInvalidConfig)
	}
	if cfg.Norm == NormEnergy && !prob.Form.Bilinear.Symmetric() {
		return nil, fmt.Errorf("%w: energy norm needs a symmetric bilinear form", ErrInvalidConfig)
	}
	c = &Controller{
		cfg:        cfg,
		prob:       prob,
		log:        slog.Default(),
		solverOpts: solver.DefaultOptions(),
		sel:        selector.New(cfg.MaxOrder),
		state:      AdaptivityState{State: StateInit, ErrEst: math.NaN(), ErrExact: math.NaN()},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.graphs.dofEst = utils.NewGraph("conv_dof_est.dat")
	c.graphs.dofExact = utils.NewGraph("conv_dof_exact.dat")
	c.graphs.wallEst = utils.NewGraph("conv_cpu_est.dat")
	c.graphs.wallExact = utils.NewGraph("conv_cpu_exact.dat")
	return
}

func (c *Controller) State() AdaptivityState { return c.state }

func (c *Controller) Config() Config { return c.cfg }

// Fine and Coarse are the solutions of the current iteration
func (c *Controller) Fine() *solver.Solution { return c.fine }

func (c *Controller) Coarse() *solver.Solution { return c.coarse }

// Record is the error record of the last estimate
func (c *Controller) Record() *ErrorRecord { return c.record }

// Graphs returns the convergence series: DOF/estimate, DOF/exact, wall time/estimate, wall time/exact.
// The conv_cpu files hold accumulated wall time in seconds, without exact error evaluation.
func (c *Controller) Graphs() []*utils.Graph {
	g := c.graphs
	return []*utils.Graph{g.dofEst, g.dofExact, g.wallEst, g.wallExact}
}

func (c *Controller) norm() solver.BilinearForm {
	if c.cfg.Norm == NormEnergy {
		return c.prob.Form.Bilinear
	}
	return solver.H1Product
}

func (c *Controller) fail(element int, err error) error {
	return &IterationError{Iteration: c.state.Iteration, State: c.state.State, Element: element, Err: err}
}

// Step performs one transition of the state machine, it is a no-op once done
func (c *Controller) Step() (err error) {
	switch c.state.State {
	case StateInit:
		err = c.init()
	case StateSolveFine:
		err = c.solveFine()
	case StateSolveCoarseOrProject:
		err = c.solveCoarse()
	case StateEstimate:
		err = c.estimate()
	case StateCheckStop:
		c.checkStop()
	case StateMarkAndRefine:
		err = c.markAndRefine()
	}
	return
}

// Run steps until the loop is done
func (c *Controller) Run() (err error) {
	for !c.state.Done {
		if err = c.Step(); err != nil {
			return
		}
	}
	c.log.Info("adaptivity done",
		"reason", c.state.Reason.String(),
		"iterations", c.state.Iteration,
		"ndof", c.state.NDOF,
		"err_est", c.state.ErrEst,
		"wall_time", c.timer.Accumulated().String())
	return
}

func (c *Controller) init() (err error) {
	c.timer = utils.NewTimer()
	c.Mesh = c.prob.Mesh.Copy()
	c.Mesh.Regularity = c.cfg.MeshRegularity
	for i := 0; i < c.cfg.InitRefNum; i++ {
		c.Mesh.RefineUniformly()
	}
	if c.Space, err = space.New(c.Mesh, c.prob.Classifier, c.prob.Value, c.cfg.InitialOrder); err != nil {
		return c.fail(-1, err)
	}
	if c.cfg.OutputDir != "" {
		if err = os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
			return c.fail(-1, err)
		}
	}
	c.state.Iteration = 1
	c.state.NDOF = c.Space.DOFCount()
	c.log.Info("initial space",
		"elements", c.Mesh.NumActive(),
		"order", c.cfg.InitialOrder,
		"ndof", c.state.NDOF)
	c.state.State = StateSolveFine
	return
}

func (c *Controller) solveFine() (err error) {
	c.log.Info("adaptivity step", "iteration", c.state.Iteration)
	c.log.Debug("solving on fine mesh")
	ref := c.Mesh.Copy()
	ref.Regularity = -1
	ref.RefineUniformly()
	var fs *space.Space
	if fs, err = c.Space.NewReference(ref, c.cfg.RefOrderIncrease); err != nil {
		return c.fail(-1, err)
	}
	if c.fine, err = solver.Solve(fs, c.prob.Form, c.solverOpts); err != nil {
		return c.fail(-1, err)
	}
	c.state.NDOFFine = fs.DOFCount()
	c.state.State = StateSolveCoarseOrProject
	return
}

func (c *Controller) solveCoarse() (err error) {
	if c.cfg.SolveOnCoarseMesh {
		c.log.Debug("solving on coarse mesh")
		c.coarse, err = solver.Solve(c.Space, c.prob.Form, c.solverOpts)
	} else {
		c.log.Debug("projecting fine mesh solution on coarse mesh")
		c.coarse, err = solver.Project(c.fine, c.Space, c.solverOpts)
	}
	if err != nil {
		return c.fail(-1, err)
	}
	c.timer.Tick()
	c.state.State = StateEstimate
	return
}

func (c *Controller) estimate() (err error) {
	c.state.ErrExact = math.NaN()
	if c.prob.Exact != nil {
		c.log.Debug("calculating error (exact)")
		if c.state.ErrExact, err = ExactError(c.coarse, c.prob.Exact, c.norm()); err != nil {
			return c.fail(-1, err)
		}
	}
	// exact error time is not charged to the run
	c.timer.Skip()

	c.log.Debug("calculating error (est)")
	if c.record, err = Estimate(c.coarse, c.fine, c.norm()); err != nil {
		return c.fail(-1, err)
	}
	c.record.Exact = c.state.ErrExact
	c.state.ErrEst = c.record.Estimate
	c.state.NDOF = c.Space.DOFCount()
	c.log.Info("errors",
		"iteration", c.state.Iteration,
		"ndof", c.state.NDOF,
		"ndof_fine", c.state.NDOFFine,
		"err_est", c.state.ErrEst,
		"err_exact", c.state.ErrExact)

	var (
		ndof = float64(c.state.NDOF)
		wall = c.timer.Accumulated().Seconds()
	)
	c.graphs.dofEst.Add(ndof, c.state.ErrEst)
	c.graphs.wallEst.Add(wall, c.state.ErrEst)
	if c.prob.Exact != nil {
		c.graphs.dofExact.Add(ndof, c.state.ErrExact)
		c.graphs.wallExact.Add(wall, c.state.ErrExact)
	}
	if err = c.saveGraphs(); err != nil {
		return c.fail(-1, err)
	}
	c.state.State = StateCheckStop
	return
}

func (c *Controller) saveGraphs() (err error) {
	if c.cfg.OutputDir == "" {
		return
	}
	for _, g := range c.Graphs() {
		if g.Len() == 0 {
			continue
		}
		if err = g.Save(filepath.Join(c.cfg.OutputDir, g.Name)); err != nil {
			return
		}
	}
	return
}

func (c *Controller) checkStop() {
	switch {
	case c.state.ErrEst < c.cfg.ErrStop:
		c.stop(ErrorTolerance)
	case c.cfg.MaxIterations > 0 && c.state.Iteration >= c.cfg.MaxIterations:
		c.stop(IterationLimit)
	default:
		c.state.State = StateMarkAndRefine
	}
}

func (c *Controller) stop(reason StopReason) {
	c.state.Done = true
	c.state.Reason = reason
	c.state.State = StateDone
}

func (c *Controller) markAndRefine() (err error) {
	var (
		marked  = Mark(c.cfg.Strategy, c.cfg.Threshold, c.record)
		refined int
	)
	c.log.Debug("adapting the coarse mesh", "marked", len(marked))
	for _, id := range marked {
		var ok bool
		if ok, err = c.refine(id); err != nil {
			return c.fail(id, err)
		}
		if ok {
			refined++
		}
	}
	if err = c.Space.Renumber(); err != nil {
		return c.fail(-1, err)
	}
	prev := c.state.NDOF
	c.state.NDOF = c.Space.DOFCount()
	if c.state.NDOF < prev {
		c.log.Warn("DOF count decreased", "from", prev, "to", c.state.NDOF)
	}
	c.log.Debug("refined", "elements", refined, "marked", len(marked), "ndof", c.state.NDOF,
		"mem", utils.GetMemUsage())
	c.state.Iteration++
	switch {
	case refined == 0:
		c.stop(Stalled)
	case c.state.NDOF >= c.cfg.NDOFStop:
		c.stop(DOFLimit)
	default:
		c.state.State = StateSolveFine
	}
	return
}

// refine applies the best candidate of an element that satisfies the mesh regularity
func (c *Controller) refine(id int) (ok bool, err error) {
	el := selector.Element{
		ID:    id,
		Order: c.Space.Order(id),
	}
	el.Field, el.FineOrder = c.field(id)
	var cands []selector.Candidate
	if cands, err = c.sel.Rank(el, c.cfg.CandLists, c.cfg.ConvExp); err != nil {
		return
	}
	for _, cand := range cands {
		switch {
		case cand.Kind == selector.NoChange:
			return false, nil
		case !cand.Kind.IsSplit():
			if err = c.Space.SetOrder(id, cand.Orders[0]); err != nil {
				return
			}
		default:
			var sons []int
			if sons, err = c.Mesh.RefineElement(id, cand.Split); err != nil {
				if errors.Is(err, mesh.ErrRegularityViolation) {
					err = nil
					continue
				}
				return
			}
			for k, son := range sons {
				if err = c.Space.SetOrder(son, cand.Orders[k]); err != nil {
					return
				}
			}
		}
		c.log.Debug("refining element", "element", id, "candidate", cand.String())
		return true, nil
	}
	c.log.Warn("skipping element, every candidate violates the mesh regularity",
		"element", id, "regularity", c.cfg.MeshRegularity)
	return false, nil
}

// field restricts the fine solution to a coarse element, in the element's reference coordinates
func (c *Controller) field(id int) (f selector.Field, fineOrder int) {
	var (
		ref  = c.fine.Space.Mesh
		sons = ref.Descendants(id)
	)
	for _, s := range sons {
		if o := c.fine.Space.Order(s).Max(); o > fineOrder {
			fineOrder = o
		}
	}
	tol := utils.NODETOL
	f = func(xi, eta float64) (u, dxi, deta float64) {
		rx, ry := c.Mesh.ToRoot(id, xi, eta)
		for _, s := range sons {
			sxi, seta := ref.FromRoot(s, rx, ry)
			if math.Abs(sxi) > 1+tol || math.Abs(seta) > 1+tol {
				continue
			}
			v := c.fine.Eval(s, sxi, seta)
			_, _, jac, _ := c.Mesh.Map(id, xi, eta)
			return v.Val, v.Dx*jac[0][0] + v.Dy*jac[1][0], v.Dx*jac[0][1] + v.Dy*jac[1][1]
		}
		panic(fmt.Errorf("point (%g,%g) of element %d is not covered by the reference mesh", xi, eta, id))
	}
	return
}
