package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/hpfem/utils"
)

// ErrSolverFailure reports a singular system or an iterative solve that did not converge
var ErrSolverFailure = errors.New("linear solver failure")

type Options struct {
	DenseLimit int     // systems up to this size are factorized directly
	Tolerance  float64 // relative residual of the iterative solvers
	MaxIter    int     // 0 selects 10n+100
}

func DefaultOptions() Options {
	return Options{
		DenseLimit: 1500,
		Tolerance:  1e-11,
	}
}

// SolveSystem solves A x = b. Small systems use Cholesky or LU, large ones block Jacobi
// preconditioned CG or BiCGSTAB with the given DOF blocks.
func SolveSystem(A utils.CSR, b []float64, symmetric bool, blocks [][]int, opt Options) (x []float64, err error) {
	n := len(b)
	if n == 0 {
		return nil, nil
	}
	if opt.Tolerance <= 0 {
		opt.Tolerance = DefaultOptions().Tolerance
	}
	if opt.MaxIter <= 0 {
		opt.MaxIter = 10*n + 100
	}
	switch {
	case n <= opt.DenseLimit:
		x, err = solveDense(A, b, symmetric)
	default:
		var M *blockJacobi
		if M, err = newBlockJacobi(A, blocks, symmetric); err != nil {
			return
		}
		if symmetric {
			x, err = pcg(A, b, M, opt)
		} else {
			x, err = bicgstab(A, b, M, opt)
		}
	}
	if err == nil && utils.IsNan(x) {
		x, err = nil, fmt.Errorf("%w: non-finite solution", ErrSolverFailure)
	}
	return
}

func solveDense(A utils.CSR, b []float64, symmetric bool) (x []float64, err error) {
	var (
		bv = mat.NewVecDense(len(b), b)
		xv mat.VecDense
	)
	if symmetric {
		var ch mat.Cholesky
		if ok := ch.Factorize(A.ToSymDense()); !ok {
			return nil, fmt.Errorf("%w: matrix is not positive definite", ErrSolverFailure)
		}
		if err = ch.SolveVecTo(&xv, bv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSolverFailure, err)
		}
	} else {
		var lu mat.LU
		lu.Factorize(A.ToDense())
		if err = lu.SolveVecTo(&xv, false, bv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSolverFailure, err)
		}
	}
	x = make([]float64, len(b))
	copy(x, xv.RawVector().Data)
	return
}

// blockJacobi inverts the diagonal blocks of A exactly
type blockJacobi struct {
	blocks   [][]int
	chol     []mat.Cholesky
	lu       []mat.LU
	sym      bool
	rhs, sol []*mat.VecDense
}

func newBlockJacobi(A utils.CSR, blocks [][]int, symmetric bool) (M *blockJacobi, err error) {
	n, _ := A.Dims()
	var (
		owner = make([]int, n)
		pos   = make([]int, n)
		dense = make([]*mat.Dense, len(blocks))
	)
	for i := range owner {
		owner[i] = -1
	}
	for bi, blk := range blocks {
		for p, i := range blk {
			owner[i], pos[i] = bi, p
		}
		dense[bi] = mat.NewDense(len(blk), len(blk), nil)
	}
	// DOFs outside every block get a block of their own
	for i, o := range owner {
		if o < 0 {
			owner[i], pos[i] = len(blocks), 0
			blocks = append(blocks, []int{i})
			dense = append(dense, mat.NewDense(1, 1, nil))
		}
	}
	A.DoNonZero(func(i, j int, v float64) {
		if owner[i] == owner[j] {
			dense[owner[i]].Set(pos[i], pos[j], v)
		}
	})
	M = &blockJacobi{
		blocks: blocks,
		sym:    symmetric,
		rhs:    make([]*mat.VecDense, len(blocks)),
		sol:    make([]*mat.VecDense, len(blocks)),
	}
	if symmetric {
		M.chol = make([]mat.Cholesky, len(blocks))
	} else {
		M.lu = make([]mat.LU, len(blocks))
	}
	for bi, blk := range blocks {
		nb := len(blk)
		M.rhs[bi], M.sol[bi] = mat.NewVecDense(nb, nil), mat.NewVecDense(nb, nil)
		if symmetric {
			sym := mat.NewSymDense(nb, nil)
			for i := 0; i < nb; i++ {
				for j := i; j < nb; j++ {
					sym.SetSym(i, j, dense[bi].At(i, j))
				}
			}
			if ok := M.chol[bi].Factorize(sym); !ok {
				return nil, fmt.Errorf("%w: preconditioner block %d is not positive definite", ErrSolverFailure, bi)
			}
		} else {
			M.lu[bi].Factorize(dense[bi])
		}
	}
	return
}

// apply computes z = M^-1 r
func (M *blockJacobi) apply(z, r []float64) (err error) {
	for bi, blk := range M.blocks {
		rv, zv := M.rhs[bi], M.sol[bi]
		for p, i := range blk {
			rv.SetVec(p, r[i])
		}
		if M.sym {
			err = M.chol[bi].SolveVecTo(zv, rv)
		} else {
			err = M.lu[bi].SolveVecTo(zv, false, rv)
		}
		if err != nil {
			return fmt.Errorf("%w: preconditioner block %d: %v", ErrSolverFailure, bi, err)
		}
		for p, i := range blk {
			z[i] = zv.AtVec(p)
		}
	}
	return
}

func pcg(A utils.CSR, b []float64, M *blockJacobi, opt Options) (x []float64, err error) {
	n := len(b)
	var (
		r     = make([]float64, n)
		z     = make([]float64, n)
		p     = make([]float64, n)
		Ap    = make([]float64, n)
		bnorm = floats.Norm(b, 2)
	)
	x = make([]float64, n)
	if bnorm == 0 {
		return
	}
	copy(r, b)
	if err = M.apply(z, r); err != nil {
		return
	}
	copy(p, z)
	rz := floats.Dot(r, z)
	for it := 0; it < opt.MaxIter; it++ {
		A.MulVec(Ap, p)
		pAp := floats.Dot(p, Ap)
		if pAp <= 0 {
			return nil, fmt.Errorf("%w: CG breakdown at iteration %d", ErrSolverFailure, it)
		}
		alpha := rz / pAp
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		if floats.Norm(r, 2) <= opt.Tolerance*bnorm {
			return
		}
		if err = M.apply(z, r); err != nil {
			return
		}
		rzNew := floats.Dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		floats.AddScaledTo(p, z, beta, p)
	}
	return nil, fmt.Errorf("%w: CG did not converge in %d iterations, residual %g",
		ErrSolverFailure, opt.MaxIter, floats.Norm(r, 2)/bnorm)
}

func bicgstab(A utils.CSR, b []float64, M *blockJacobi, opt Options) (x []float64, err error) {
	n := len(b)
	var (
		r, rhat    = make([]float64, n), make([]float64, n)
		p, v       = make([]float64, n), make([]float64, n)
		phat, shat = make([]float64, n), make([]float64, n)
		s, t       = make([]float64, n), make([]float64, n)
		bnorm      = floats.Norm(b, 2)
		rho, alpha = 1., 1.
		omega      = 1.
	)
	x = make([]float64, n)
	if bnorm == 0 {
		return
	}
	copy(r, b)
	copy(rhat, b)
	for it := 0; it < opt.MaxIter; it++ {
		rhoNew := floats.Dot(rhat, r)
		if rhoNew == 0 {
			return nil, fmt.Errorf("%w: BiCGSTAB breakdown at iteration %d", ErrSolverFailure, it)
		}
		if it == 0 {
			copy(p, r)
		} else {
			beta := (rhoNew / rho) * (alpha / omega)
			floats.AddScaled(p, -omega, v)
			floats.AddScaledTo(p, r, beta, p)
		}
		if err = M.apply(phat, p); err != nil {
			return
		}
		A.MulVec(v, phat)
		alpha = rhoNew / floats.Dot(rhat, v)
		floats.AddScaledTo(s, r, -alpha, v)
		if floats.Norm(s, 2) <= opt.Tolerance*bnorm {
			floats.AddScaled(x, alpha, phat)
			return
		}
		if err = M.apply(shat, s); err != nil {
			return
		}
		A.MulVec(t, shat)
		omega = floats.Dot(t, s) / floats.Dot(t, t)
		floats.AddScaled(x, alpha, phat)
		floats.AddScaled(x, omega, shat)
		floats.AddScaledTo(r, s, -omega, t)
		if floats.Norm(r, 2) <= opt.Tolerance*bnorm {
			return
		}
		if omega == 0 {
			return nil, fmt.Errorf("%w: BiCGSTAB stagnated at iteration %d", ErrSolverFailure, it)
		}
		rho = rhoNew
	}
	return nil, fmt.Errorf("%w: BiCGSTAB did not converge in %d iterations", ErrSolverFailure, opt.MaxIter)
}
