package selector

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/space"
)

var ErrNoCandidatesAvailable = errors.New("no candidate lists allowed")

const DefaultMaxOrder = 10

// relative floor for predicted errors, below it candidates are exact to round-off
const errFloor = 1e-12

// Field is a reference solution restricted to one element, returning the value and the derivatives
// along the element's reference coordinates xi and eta
type Field func(xi, eta float64) (u, dxi, deta float64)

// Element is what the selector needs to know about an element
type Element struct {
	ID        int
	Order     space.Order
	FineOrder int // highest polynomial order of the reference solution on the element
	Field     Field
}

type Selector struct {
	MaxOrder int
	bases    map[basisKey]*basis1D
	grids    map[int]grid
}

func New(maxOrder int) *Selector {
	if maxOrder < 1 {
		maxOrder = DefaultMaxOrder
	}
	return &Selector{
		MaxOrder: maxOrder,
		bases:    make(map[basisKey]*basis1D),
		grids:    make(map[int]grid),
	}
}

func (s *Selector) grid(n int) grid {
	g, ok := s.grids[n]
	if !ok {
		g = newGrid(n)
		s.grids[n] = g
	}
	return g
}

func (s *Selector) basis(g grid, n, q int) *basis1D {
	key := basisKey{N: g.N, n: n, q: q}
	b, ok := s.bases[key]
	if !ok {
		b = newBasis1D(g, n, q)
		s.bases[key] = b
	}
	return b
}

// sample holds the field on the grid, the weighted copies are w_i w_j f_ij
type sample struct {
	g            grid
	U, Ux, Uy    *mat.Dense
	WU, WUx, WUy *mat.Dense
	wij          *mat.Dense
}

func (s *Selector) sample(el Element) (sm *sample) {
	n := s.MaxOrder
	if el.FineOrder > n {
		n = el.FineOrder
	}
	if mo := el.Order.Max() + 2; mo > n {
		n = mo
	}
	g := s.grid(n + 1)
	np := len(g.X)
	sm = &sample{g: g}
	for _, d := range []**mat.Dense{&sm.U, &sm.Ux, &sm.Uy, &sm.WU, &sm.WUx, &sm.WUy, &sm.wij} {
		*d = mat.NewDense(np, np, nil)
	}
	for i, xi := range g.X {
		for j, eta := range g.X {
			u, ux, uy := el.Field(xi, eta)
			w := g.W[i] * g.W[j]
			sm.U.Set(i, j, u)
			sm.Ux.Set(i, j, ux)
			sm.Uy.Set(i, j, uy)
			sm.WU.Set(i, j, w*u)
			sm.WUx.Set(i, j, w*ux)
			sm.WUy.Set(i, j, w*uy)
			sm.wij.Set(i, j, w)
		}
	}
	return
}

// projectionError returns the H1 error on the reference square of the projection of the sample onto a tensor space
func (s *Selector) projectionError(sm *sample, t tensorShape) float64 {
	var (
		bx, by = s.basis(sm.g, t.nx, t.qx), s.basis(sm.g, t.ny, t.qy)
		dx, dy = bx.dim(), by.dim()
	)
	R := mul3(bx.Phi.T(), sm.WU, by.Phi)
	R.Add(R, mul3(bx.DP.T(), sm.WUx, by.Phi))
	R.Add(R, mul3(bx.Phi.T(), sm.WUy, by.DP))

	// (Kx+Mx) X My + Mx X Ky = R, diagonalised along y: X = Y Vy^T, (Kx+Mx+lambda_k Mx) y_k = (R Vy)_k
	var RV mat.Dense
	RV.Mul(R, by.V)
	var (
		Y    = mat.NewDense(dx, dy, nil)
		Ak   = mat.NewSymDense(dx, nil)
		chol mat.Cholesky
		rhs  = mat.NewVecDense(dx, nil)
		y    mat.VecDense
	)
	for k, lambda := range by.Lambda {
		for i := 0; i < dx; i++ {
			for j := i; j < dx; j++ {
				Ak.SetSym(i, j, bx.K.At(i, j)+(1+lambda)*bx.M.At(i, j))
			}
		}
		if !chol.Factorize(Ak) {
			panic("candidate projection matrix is not positive definite")
		}
		for i := 0; i < dx; i++ {
			rhs.SetVec(i, RV.At(i, k))
		}
		if err := chol.SolveVecTo(&y, rhs); err != nil {
			panic(err)
		}
		Y.SetCol(k, y.RawVector().Data)
	}
	var X mat.Dense
	X.Mul(Y, by.V.T())
	var (
		P  = mul3(bx.Phi, &X, by.Phi.T())
		Px = mul3(bx.DP, &X, by.Phi.T())
		Py = mul3(bx.Phi, &X, by.DP.T())
	)

	var (
		np  = len(sm.g.X)
		err float64
	)
	for i := 0; i < np; i++ {
		for j := 0; j < np; j++ {
			e, ex, ey := sm.U.At(i, j)-P.At(i, j), sm.Ux.At(i, j)-Px.At(i, j), sm.Uy.At(i, j)-Py.At(i, j)
			err += sm.wij.At(i, j) * (e*e + ex*ex + ey*ey)
		}
	}
	return math.Sqrt(err)
}

// Rank scores every candidate enabled by allowed and returns them best first.
// When no list produces a candidate that differs from the element, the only entry has kind NoChange.
func (s *Selector) Rank(el Element, allowed CandList, convExp float64) (cands []Candidate, err error) {
	if allowed == 0 {
		return nil, ErrNoCandidatesAvailable
	}
	var (
		base   = tensorShape{nx: 1, ny: 1, qx: el.Order.H, qy: el.Order.V}
		shapes = generate(el.Order, allowed, s.MaxOrder)
	)
	if len(shapes) == 0 {
		return []Candidate{{
			Kind:   NoChange,
			Split:  mesh.SplitNone,
			Orders: []space.Order{el.Order},
			DOFs:   base.dofs(),
		}}, nil
	}
	var (
		sm    = s.sample(el)
		e0    = s.projectionError(sm, base)
		floor = errFloor * e0
	)
	cands = make([]Candidate, len(shapes))
	for i, t := range shapes {
		c := Candidate{
			Kind:  t.kind,
			Split: t.split,
			DOFs:  t.dofs(),
			Added: t.dofs() - base.dofs(),
			Error: s.projectionError(sm, t),
			seq:   i,
		}
		nsons := 1
		if t.split != mesh.SplitNone {
			nsons = t.split.NumSons(mesh.Quad)
		}
		for k := 0; k < nsons; k++ {
			c.Orders = append(c.Orders, space.Order{H: t.qx, V: t.qy})
		}
		if c.Error < e0 {
			ec := math.Max(c.Error, floor)
			c.Score = (math.Log10(e0) - math.Log10(ec)) / math.Pow(float64(c.Added), convExp)
		}
		cands[i] = c
	}
	rank(cands, e0)
	return
}

// SelectCandidate returns the best ranked candidate
func (s *Selector) SelectCandidate(el Element, allowed CandList, convExp float64) (c Candidate, err error) {
	var cands []Candidate
	if cands, err = s.Rank(el, allowed, convExp); err != nil {
		return
	}
	return cands[0], nil
}

func mul3(a, b, c mat.Matrix) *mat.Dense {
	var t, r mat.Dense
	t.Mul(a, b)
	r.Mul(&t, c)
	return &r
}
