package LShape

import (
	_ "embed"
	"math"
	"strings"

	"github.com/notargets/hpfem/adapt"
	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/solver"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/types"
)

//go:embed lshape.mesh
var meshFile string

// Exact is the harmonic function r^(2/3) sin(2a/3 + pi/3), a = atan2(x, y), with a singular gradient at the origin
func Exact(x, y float64) (u, dudx, dudy float64) {
	var (
		r2  = x*x + y*y
		rp  = math.Pow(r2, 1./3)
		phi = 2*math.Atan2(x, y)/3 + math.Pi/3
	)
	sin, cos := math.Sincos(phi)
	u = rp * sin
	if r2 == 0 {
		return
	}
	dudx = 2. / 3 * rp * (x*sin + y*cos) / r2
	dudy = 2. / 3 * rp * (y*sin - x*cos) / r2
	return
}

// Mesh is the three element L-shaped domain
func Mesh() (*mesh.Mesh, error) {
	return mesh.Read(strings.NewReader(meshFile), mesh.FormatNative)
}

// NewProblem sets up -Laplace u = 0 with Dirichlet data from Exact on every marker.
// A nil mesh selects the built in L-shape.
func NewProblem(m *mesh.Mesh) (prob adapt.Problem, err error) {
	if m == nil {
		if m, err = Mesh(); err != nil {
			return
		}
	}
	prob = adapt.Problem{
		Mesh: m,
		Classifier: space.ClassifierFunc(func(marker int) types.BCTYPE {
			return types.BC_Essential
		}),
		Value: space.ValueFunc(func(marker int, x, y float64) float64 {
			u, _, _ := Exact(x, y)
			return u
		}),
		Form:  solver.WeakForm{Bilinear: solver.Laplace},
		Exact: adapt.ExactFunc(Exact),
	}
	return
}
