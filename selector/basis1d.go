package selector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/hpfem/shapeset"
)

// grid is a tensor sampling of the reference square with n Gauss points per half per direction
type grid struct {
	N    int
	X, W []float64 // 2N points in [-1,1], points [0,N) lie in [-1,0]
}

func newGrid(n int) (g grid) {
	rule := shapeset.GaussLegendre(n)
	xl, wl := rule.Map(-1, 0)
	xr, wr := rule.Map(0, 1)
	g.N = n
	g.X = append(append([]float64{}, xl...), xr...)
	g.W = append(append([]float64{}, wl...), wr...)
	return
}

// basis1D is a continuous piecewise Lobatto basis of order q on n equal intervals of [-1,1],
// tabulated on a grid along with its mass and stiffness matrices and the
// generalized eigenvectors V of (K, M) with V^T M V = I, V^T K V = diag(Lambda)
type basis1D struct {
	n, q    int
	Phi, DP *mat.Dense // [point][function]
	M, K    *mat.SymDense
	V       *mat.Dense
	Lambda  []float64
}

func (b *basis1D) dim() int { return b.n*b.q + 1 }

func newBasis1D(g grid, n, q int) (b *basis1D) {
	if n != 1 && n != 2 {
		panic(fmt.Errorf("unsupported interval count %d", n))
	}
	b = &basis1D{n: n, q: q}
	var (
		np  = len(g.X)
		dim = b.dim()
		v   = make([]float64, q+1)
		dv  = make([]float64, q+1)
	)
	b.Phi, b.DP = mat.NewDense(np, dim, nil), mat.NewDense(np, dim, nil)
	for i, x := range g.X {
		var (
			t, scale = x, 1.
			iv       int // interval containing the point
		)
		if n == 2 {
			scale = 2
			if i < g.N {
				t = 2*x + 1
			} else {
				t, iv = 2*x-1, 1
			}
		}
		shapeset.LobattoTable(q, t, v, dv)
		// nodal functions: node iv on the left of the interval, iv+1 on the right
		b.Phi.Set(i, iv, v[0])
		b.DP.Set(i, iv, scale*dv[0])
		b.Phi.Set(i, iv+1, v[1])
		b.DP.Set(i, iv+1, scale*dv[1])
		for k := 2; k <= q; k++ {
			col := n + 1 + iv*(q-1) + k - 2
			b.Phi.Set(i, col, v[k])
			b.DP.Set(i, col, scale*dv[k])
		}
	}
	b.M, b.K = gram(b.Phi, g.W), gram(b.DP, g.W)
	b.generalizedEigen()
	return
}

// gram returns A^T diag(w) A
func gram(A *mat.Dense, w []float64) *mat.SymDense {
	_, c := A.Dims()
	G := mat.NewSymDense(c, nil)
	var (
		ai, aj = make([]float64, len(w)), make([]float64, len(w))
	)
	for i := 0; i < c; i++ {
		mat.Col(ai, i, A)
		for p := range ai {
			ai[p] *= w[p]
		}
		for j := i; j < c; j++ {
			mat.Col(aj, j, A)
			var s float64
			for p := range ai {
				s += ai[p] * aj[p]
			}
			G.SetSym(i, j, s)
		}
	}
	return G
}

func (b *basis1D) generalizedEigen() {
	var (
		dim = b.dim()
		eig mat.EigenSym
	)
	if !eig.Factorize(b.M, true) {
		panic(fmt.Errorf("mass matrix eigen decomposition failed, order %d", b.q))
	}
	var (
		Q     mat.Dense
		sigma = eig.Values(nil)
	)
	eig.VectorsTo(&Q)
	// Minv2 = M^{-1/2}
	Minv2 := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			var s float64
			for k := 0; k < dim; k++ {
				s += Q.At(i, k) * Q.At(j, k) / math.Sqrt(sigma[k])
			}
			Minv2.Set(i, j, s)
		}
	}
	var MK, T mat.Dense
	MK.Mul(Minv2, b.K)
	T.Mul(&MK, Minv2)
	S := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			S.SetSym(i, j, 0.5*(T.At(i, j)+T.At(j, i)))
		}
	}
	if !eig.Factorize(S, true) {
		panic(fmt.Errorf("stiffness eigen decomposition failed, order %d", b.q))
	}
	b.Lambda = eig.Values(nil)
	var P mat.Dense
	eig.VectorsTo(&P)
	b.V = mat.NewDense(dim, dim, nil)
	b.V.Mul(Minv2, &P)
}

type basisKey struct{ N, n, q int }
