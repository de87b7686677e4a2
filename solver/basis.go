package solver

import (
	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/shapeset"
	"github.com/notargets/hpfem/space"
)

// maxIndex is the largest Lobatto index used by a set of local functions
func maxIndex(fns []space.LocalFn) (k int) {
	for _, fn := range fns {
		if fn.I > k {
			k = fn.I
		}
		if fn.J > k {
			k = fn.J
		}
	}
	return
}

// pointBasis holds the local basis of one element evaluated at one reference point
type pointBasis struct {
	X, Y, DetJ float64
	Phi        []ShapeValue
	lx, dlx    []float64
	ly, dly    []float64
}

func newPointBasis(maxK, nfns int) *pointBasis {
	return &pointBasis{
		Phi: make([]ShapeValue, nfns),
		lx:  make([]float64, maxK+1), dlx: make([]float64, maxK+1),
		ly: make([]float64, maxK+1), dly: make([]float64, maxK+1),
	}
}

// eval fills the basis values and physical gradients at (xi, eta)
func (pb *pointBasis) eval(m *mesh.Mesh, id int, fns []space.LocalFn, xi, eta float64) {
	maxK := len(pb.lx) - 1
	shapeset.LobattoTable(maxK, xi, pb.lx, pb.dlx)
	shapeset.LobattoTable(maxK, eta, pb.ly, pb.dly)
	var jac [2][2]float64
	pb.X, pb.Y, jac, pb.DetJ = m.Map(id, xi, eta)
	var (
		ixx = jac[1][1] / pb.DetJ  // dxi/dx
		ixy = -jac[0][1] / pb.DetJ // dxi/dy
		iyx = -jac[1][0] / pb.DetJ // deta/dx
		iyy = jac[0][0] / pb.DetJ  // deta/dy
	)
	for i, fn := range fns {
		v := pb.lx[fn.I] * pb.ly[fn.J]
		dxi := pb.dlx[fn.I] * pb.ly[fn.J]
		deta := pb.lx[fn.I] * pb.dly[fn.J]
		pb.Phi[i] = ShapeValue{
			Val: v,
			Dx:  dxi*ixx + deta*iyx,
			Dy:  dxi*ixy + deta*iyy,
		}
	}
}

// combine sums coefs[i] * Phi[i]
func (pb *pointBasis) combine(coefs []float64) (u ShapeValue) {
	for i, c := range coefs {
		u.Val += c * pb.Phi[i].Val
		u.Dx += c * pb.Phi[i].Dx
		u.Dy += c * pb.Phi[i].Dy
	}
	return
}

// edgePoint maps the edge parameter s of local edge e to reference coordinates
func edgePoint(e int, s float64) (xi, eta float64) {
	switch e {
	case 0:
		return s, -1
	case 1:
		return 1, s
	case 2:
		return s, 1
	}
	return -1, s
}
