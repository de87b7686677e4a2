package shapeset

import "math"

// Legendre returns P_n(x) and its derivative using the three term recurrence
func Legendre(n int, x float64) (p, dp float64) {
	if n == 0 {
		return 1, 0
	}
	var (
		p0, p1   = 1., x
		dp0, dp1 = 0., 1.
	)
	for k := 1; k < n; k++ {
		fk := float64(k)
		p2 := ((2*fk+1)*x*p1 - fk*p0) / (fk + 1)
		dp2 := dp0 + (2*fk+1)*p1
		p0, p1 = p1, p2
		dp0, dp1 = dp1, dp2
	}
	return p1, dp1
}

// Lobatto returns the k-th hierarchical Lobatto shape function on [-1,1] and its derivative.
// l0 and l1 are the linear vertex functions, l_k for k >= 2 vanish at both ends.
func Lobatto(k int, x float64) (v, dv float64) {
	switch k {
	case 0:
		return 0.5 * (1 - x), -0.5
	case 1:
		return 0.5 * (1 + x), 0.5
	}
	pk, _ := Legendre(k, x)
	pkm2, _ := Legendre(k-2, x)
	pkm1, _ := Legendre(k-1, x)
	fk := float64(k)
	v = (pk - pkm2) / math.Sqrt(2*(2*fk-1))
	dv = math.Sqrt((2*fk-1)/2) * pkm1
	return
}

// LobattoSecond returns the second derivative of l_k
func LobattoSecond(k int, x float64) float64 {
	if k < 2 {
		return 0
	}
	_, dp := Legendre(k-1, x)
	return math.Sqrt((2*float64(k)-1)/2) * dp
}

// LobattoTable fills v[k], dv[k] for k = 0..maxK at x in one recurrence sweep.
// v and dv must have length >= maxK+1.
func LobattoTable(maxK int, x float64, v, dv []float64) {
	v[0], dv[0] = 0.5*(1-x), -0.5
	if maxK < 1 {
		return
	}
	v[1], dv[1] = 0.5*(1+x), 0.5
	var (
		pm2, pm1 = 1., x // P_{k-2}, P_{k-1} entering k = 2
	)
	for k := 2; k <= maxK; k++ {
		fk := float64(k)
		pk := ((2*fk-1)*x*pm1 - (fk-1)*pm2) / fk
		v[k] = (pk - pm2) / math.Sqrt(2*(2*fk-1))
		dv[k] = math.Sqrt((2*fk-1)/2) * pm1
		pm2, pm1 = pm1, pk
	}
}

// Table holds l_k and l_k' tabulated on a set of points, indexed [point][k]
type Table struct {
	MaxK   int
	V, DV  [][]float64
	Points []float64
}

func NewTable(maxK int, points []float64) (t *Table) {
	t = &Table{
		MaxK:   maxK,
		V:      make([][]float64, len(points)),
		DV:     make([][]float64, len(points)),
		Points: points,
	}
	for i, x := range points {
		t.V[i] = make([]float64, maxK+1)
		t.DV[i] = make([]float64, maxK+1)
		LobattoTable(maxK, x, t.V[i], t.DV[i])
	}
	return
}
