package space

import (
	"errors"
	"fmt"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/types"
)

var (
	// ErrInconsistentBoundaryData reports a marker without a classification or an essential marker without values
	ErrInconsistentBoundaryData = errors.New("inconsistent boundary data")
	// ErrUnsupportedShape reports elements or geometry the H1 space cannot be built on
	ErrUnsupportedShape = errors.New("unsupported element shape")
	// ErrStaleSpace reports use of a space whose mesh or orders changed since the last Renumber
	ErrStaleSpace = errors.New("function space numbering is stale")
)

// Order is the polynomial degree of an element along xi (H) and eta (V)
type Order struct {
	H, V int
}

func Iso(p int) Order { return Order{H: p, V: p} }

func (o Order) Max() int {
	if o.H > o.V {
		return o.H
	}
	return o.V
}

func (o Order) Add(d int) Order { return Order{H: o.H + d, V: o.V + d} }

func (o Order) String() string {
	if o.H == o.V {
		return fmt.Sprintf("%d", o.H)
	}
	return fmt.Sprintf("(%d,%d)", o.H, o.V)
}

// Space is an H1 conforming hierarchical space over the active quads of a mesh
type Space struct {
	Mesh        *mesh.Mesh
	FixedValues []float64 // Dirichlet values, FixedValues[i] belongs to global index NDOF+i
	classifier  BoundaryClassifier
	value       BoundaryValue
	orders      map[int]Order
	dirty       bool
	numberedFor int // len(Mesh.Elements) at the last numbering
	ndof        int
	elemMaps    map[int][]LocalFn
	edgeOrders  map[int][4]int
	blocks      [][]int
}

// New assigns initialOrder to every active element and numbers the DOFs
func New(m *mesh.Mesh, classifier BoundaryClassifier, value BoundaryValue, initialOrder int) (s *Space, err error) {
	if initialOrder < 1 {
		return nil, fmt.Errorf("initial order %d must be at least 1", initialOrder)
	}
	s = &Space{
		Mesh:       m,
		classifier: classifier,
		value:      value,
		orders:     make(map[int]Order),
	}
	for _, id := range m.ActiveElements() {
		s.orders[id] = Iso(initialOrder)
	}
	if err = s.Renumber(); err != nil {
		return nil, err
	}
	return
}

// NewReference builds the space of a refined copy of the mesh, raising every ancestor's order by increase
func (s *Space) NewReference(ref *mesh.Mesh, increase int) (fine *Space, err error) {
	fine = &Space{
		Mesh:       ref,
		classifier: s.classifier,
		value:      s.value,
		orders:     make(map[int]Order),
	}
	for _, id := range ref.ActiveElements() {
		anc, ok := ref.Ancestor(id, s.Mesh)
		if !ok {
			return nil, fmt.Errorf("reference element %d has no active ancestor in the coarse mesh", id)
		}
		fine.orders[id] = s.Order(anc).Add(increase)
	}
	if err = fine.Renumber(); err != nil {
		return nil, err
	}
	return
}

// Order returns the explicit order of id or the one inherited from its nearest ancestor
func (s *Space) Order(id int) Order {
	for e := id; e >= 0; e = s.Mesh.Elements[e].Parent {
		if o, ok := s.orders[e]; ok {
			return o
		}
	}
	panic(fmt.Errorf("element %d has no order", id))
}

// SetOrder changes the order of one element, the space must be renumbered before use
func (s *Space) SetOrder(id int, o Order) error {
	if id < 0 || id >= len(s.Mesh.Elements) {
		return fmt.Errorf("element id %d out of range", id)
	}
	if o.H < 1 || o.V < 1 {
		return fmt.Errorf("order %s of element %d must be at least 1", o, id)
	}
	s.orders[id] = o
	s.dirty = true
	return nil
}

// Dirty reports whether the mesh or the orders changed since the last Renumber
func (s *Space) Dirty() bool {
	return s.dirty || s.numberedFor != len(s.Mesh.Elements)
}

// DOFCount is the number of free (non Dirichlet) degrees of freedom
func (s *Space) DOFCount() int { return s.ndof }

func (s *Space) Classify(marker int) types.BCTYPE {
	if s.classifier == nil {
		return types.BC_None
	}
	return s.classifier.Classify(marker)
}

func (s *Space) BoundaryValue(marker int, x, y float64) float64 {
	if s.value == nil {
		return 0
	}
	return s.value.Value(marker, x, y)
}

func (s *Space) checkBoundaries() error {
	for _, mk := range s.Mesh.Markers() {
		switch s.Classify(mk) {
		case types.BC_None:
			return fmt.Errorf("%w: boundary marker %d has no condition", ErrInconsistentBoundaryData, mk)
		case types.BC_Essential:
			if s.value == nil {
				return fmt.Errorf("%w: essential marker %d has no value", ErrInconsistentBoundaryData, mk)
			}
			if d, ok := s.value.(valueDefiner); ok && !d.Defines(mk) {
				return fmt.Errorf("%w: essential marker %d has no value", ErrInconsistentBoundaryData, mk)
			}
		}
	}
	return nil
}

// ElementMap lists the local basis functions of an active element with their global expansion
func (s *Space) ElementMap(id int) []LocalFn {
	fns, ok := s.elemMaps[id]
	if !ok {
		panic(fmt.Errorf("element %d is not active in the numbered space", id))
	}
	return fns
}

// EdgeOrders returns the order used on each local edge of an active element
func (s *Space) EdgeOrders(id int) [4]int { return s.edgeOrders[id] }

// Blocks groups the free DOFs by vertex, edge and element interior
func (s *Space) Blocks() [][]int { return s.blocks }

// Local expands a global coefficient vector of free DOFs into the local coefficients of an element
func (s *Space) Local(id int, x []float64) (coefs []float64) {
	fns := s.ElementMap(id)
	coefs = make([]float64, len(fns))
	for i, fn := range fns {
		for _, t := range fn.Terms {
			if t.Index < s.ndof {
				coefs[i] += t.Coef * x[t.Index]
			} else {
				coefs[i] += t.Coef * s.FixedValues[t.Index-s.ndof]
			}
		}
	}
	return
}
