package shapeset

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// JacobiGQ returns the N+1 point Gauss-Jacobi nodes and weights for the weight (1-x)^alpha (1+x)^beta,
// computed from the eigen decomposition of the Jacobi matrix (Golub-Welsch)
func JacobiGQ(alpha, beta float64, N int) (x, w []float64) {
	var (
		fac    float64
		h1, d0 []float64
		VVr    *mat.Dense
	)
	if N == 0 {
		x = []float64{-(alpha - beta) / (alpha + beta + 2.)}
		w = []float64{2.}
		return
	}

	h1 = make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: diag(-1/2*(alpha^2-beta^2)./(h1+2)./h1)
	d0 = make([]float64, N+1)
	fac = -.5 * (alpha*alpha - beta*beta)
	for i := 0; i < N+1; i++ {
		val := h1[i]
		d0[i] = fac / (val * (val + 2.))
	}
	// Handle division by zero
	eps := 1.e-16
	if alpha+beta < 10*eps {
		d0[0] = 0.
	}

	JJ := mat.NewSymDense(N+1, nil)
	for i := 0; i < N+1; i++ {
		JJ.SetSym(i, i, d0[i])
	}
	var ip1 float64
	for i := 0; i < N; i++ {
		ip1 = float64(i + 1)
		val := h1[i]
		d1 := 2. / (val + 2.)
		d1 *= math.Sqrt(ip1 * (ip1 + alpha + beta) * (ip1 + alpha) * (ip1 + beta) / ((val + 1.) * (val + 3.)))
		JJ.SetSym(i, i+1, d1)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		panic(fmt.Errorf("eigenvalue decomposition failed for Jacobi matrix of order %d", N+1))
	}
	x = eig.Values(nil)

	VVr = mat.NewDense(N+1, N+1, nil)
	eig.VectorsTo(VVr)
	w = make([]float64, N+1)
	g0 := gamma0(alpha, beta)
	for i := range w {
		v := VVr.At(0, i)
		w[i] = v * v * g0
	}
	return
}

func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	a1 := alpha + 1.
	b1 := beta + 1.
	return math.Gamma(a1) * math.Gamma(b1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// Rule is a one dimensional quadrature rule on [-1,1]
type Rule struct {
	X, W []float64
}

var (
	ruleMu    sync.Mutex
	ruleCache = make(map[int]Rule)
)

// GaussLegendre returns the n point Gauss-Legendre rule, exact for polynomials up to degree 2n-1.
// Rules are cached and must not be modified by callers.
func GaussLegendre(n int) Rule {
	if n < 1 {
		panic(fmt.Errorf("quadrature needs at least one point, have %d", n))
	}
	ruleMu.Lock()
	defer ruleMu.Unlock()
	if r, ok := ruleCache[n]; ok {
		return r
	}
	x, w := JacobiGQ(0, 0, n-1)
	r := Rule{X: x, W: w}
	ruleCache[n] = r
	return r
}

// PointsForDegree returns the number of Gauss points that integrates degree exactly
func PointsForDegree(degree int) int {
	n := degree/2 + 1
	if n < 1 {
		n = 1
	}
	return n
}

// Map returns the rule mapped onto [a,b]
func (r Rule) Map(a, b float64) (x, w []float64) {
	var (
		h = 0.5 * (b - a)
		c = 0.5 * (b + a)
	)
	x, w = make([]float64, len(r.X)), make([]float64, len(r.W))
	for i := range r.X {
		x[i] = c + h*r.X[i]
		w[i] = h * r.W[i]
	}
	return
}
