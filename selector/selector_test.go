package selector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/space"
)

func TestParseCandLists(t *testing.T) {
	cl, err := ParseCandLists("HP_ANISO, p_iso")
	require.NoError(t, err)
	assert.Equal(t, ListHPAniso|ListPIso, cl)
	assert.Equal(t, "P_ISO,HP_ANISO", cl.String())

	_, err = ParseCandLists("HP_SOMETHING")
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	shapes := generate(space.Iso(2), ListPIso, DefaultMaxOrder)
	require.Len(t, shapes, 2)
	assert.Equal(t, PIso, shapes[0].kind)
	assert.Equal(t, 3, shapes[0].qx)
	assert.Equal(t, 4, shapes[1].qy)

	// capped at the maximum order and deduplicated
	shapes = generate(space.Iso(9), ListPIso, DefaultMaxOrder)
	require.Len(t, shapes, 1)
	assert.Equal(t, 10, shapes[0].qx)
	assert.Empty(t, generate(space.Iso(10), ListPIso, DefaultMaxOrder))

	// lowered son orders for hp candidates, the (2,2) sons do not enlarge the order 4 space
	shapes = generate(space.Iso(4), ListHPIso, DefaultMaxOrder)
	require.Len(t, shapes, 3)
	assert.Equal(t, tensorShape{kind: HPIso, split: mesh.SplitIso, nx: 2, ny: 2, qx: 3, qy: 3}, shapes[0])
	assert.Equal(t, PIso, shapes[1].kind)
	shapes = generate(space.Iso(3), ListHPIso, DefaultMaxOrder)
	require.Len(t, shapes, 4)
	assert.Equal(t, 2, shapes[0].qx)

	shapes = generate(space.Iso(1), ListHAniso, DefaultMaxOrder)
	require.Len(t, shapes, 3)
	assert.Equal(t, mesh.SplitIso, shapes[0].split)
	assert.Equal(t, 1, shapes[1].nx)
	assert.Equal(t, 2, shapes[1].ny)
	assert.Equal(t, 25, tensorShape{nx: 2, ny: 2, qx: 2, qy: 2}.dofs())
}

func TestNoCandidates(t *testing.T) {
	s := New(DefaultMaxOrder)
	_, err := s.SelectCandidate(Element{Order: space.Iso(2)}, 0, 1)
	assert.ErrorIs(t, err, ErrNoCandidatesAvailable)

	c, err := s.SelectCandidate(Element{Order: space.Iso(10)}, ListPIso, 1)
	require.NoError(t, err)
	assert.Equal(t, NoChange, c.Kind)
}

func TestOrderIncreaseIsExact(t *testing.T) {
	var (
		s  = New(DefaultMaxOrder)
		el = Element{
			Order: space.Iso(1),
			Field: func(xi, eta float64) (u, dxi, deta float64) {
				return xi*xi*eta + eta, 2 * xi * eta, xi*xi + 1
			},
		}
	)
	c, err := s.SelectCandidate(el, ListPIso, 1)
	require.NoError(t, err)
	assert.Equal(t, PIso, c.Kind)
	assert.Equal(t, []space.Order{space.Iso(2)}, c.Orders)
	assert.Equal(t, 5, c.Added)
	assert.Less(t, c.Error, 1e-10)

	c, err = s.SelectCandidate(el, ListPAniso, 1)
	require.NoError(t, err)
	assert.Equal(t, PAniso, c.Kind)
	assert.Equal(t, []space.Order{{H: 2, V: 1}}, c.Orders)
	assert.Equal(t, 2, c.Added)
}

func TestSplitCapturesKink(t *testing.T) {
	var (
		s    = New(DefaultMaxOrder)
		kink = Element{
			Order: space.Iso(1),
			Field: func(xi, eta float64) (u, dxi, deta float64) {
				return math.Abs(xi), math.Copysign(1, xi), 0
			},
		}
	)
	cands, err := s.Rank(kink, ListHIso|ListPIso, 1)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, HIso, cands[0].Kind)
	assert.Equal(t, mesh.SplitIso, cands[0].Split)
	assert.Len(t, cands[0].Orders, 4)
	assert.Less(t, cands[0].Error, 1e-10)
	for _, c := range cands[1:] {
		assert.Greater(t, c.Error, 1e-3)
		assert.Greater(t, cands[0].Score, c.Score)
	}

	c, err := s.SelectCandidate(kink, ListHAniso, 1)
	require.NoError(t, err)
	assert.Equal(t, HAniso, c.Kind)
	assert.Equal(t, mesh.SplitVertical, c.Split)
	assert.Equal(t, 2, c.Added)
}

func TestProjectionErrorOfLinearSpace(t *testing.T) {
	s := New(4)
	el := Element{
		Order: space.Iso(1),
		Field: func(xi, eta float64) (u, dxi, deta float64) {
			return xi * xi, 2 * xi, 0
		},
	}
	sm := s.sample(el)
	e1 := s.projectionError(sm, tensorShape{nx: 1, ny: 1, qx: 1, qy: 1})
	e2 := s.projectionError(sm, tensorShape{nx: 1, ny: 1, qx: 2, qy: 1})
	// the bilinear projection of xi^2 is its mean 1/3, the error is the integral of (xi^2-1/3)^2 + (2 xi)^2
	var (
		l2   = 2 * (2./5 - 2*(1./3)*(2./3) + 2*(1./9))
		h1   = 2 * (4 * 2. / 3)
		want = math.Sqrt(l2 + h1)
	)
	assert.InDelta(t, want, e1, 1e-10)
	assert.Less(t, e2, 1e-10)
}

func TestRankTieRules(t *testing.T) {
	e0 := 1.
	cands := []Candidate{
		{Kind: PIso, Error: 0.1, Score: 1, Added: 5, seq: 0},
		{Kind: HIso, Error: 0.1, Score: 1, Added: 5, seq: 1},
		{Kind: HIso, Error: 0.1, Score: 1, Added: 3, seq: 2},
		{Kind: PAniso, Error: 2, Added: 1, seq: 3},
		{Kind: HAniso, Error: 0.01, Score: 2, Added: 9, seq: 4},
		{Kind: HIso, Error: 0.1, Score: 1, Added: 5, seq: 5},
		{Kind: PIso, Error: 1.5, Added: 2, seq: 6},
	}
	rank(cands, e0)
	var order []int
	for _, c := range cands {
		order = append(order, c.seq)
	}
	assert.Equal(t, []int{4, 2, 1, 5, 0, 6, 3}, order)
}

func TestSelectionIsRepeatable(t *testing.T) {
	var (
		s      = New(6)
		smooth = func(xi, eta float64) (u, dxi, deta float64) {
			e := math.Exp(0.7 * xi)
			sn, cs := math.Sincos(2 * eta)
			return e * sn, 0.7 * e * sn, 2 * e * cs
		}
		el      = Element{ID: 3, Order: space.Order{H: 2, V: 3}, Field: smooth}
		allowed = ListHPAniso | ListPAniso | ListHAniso
	)
	first, err := s.Rank(el, allowed, 1)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	best, err := s.SelectCandidate(el, allowed, 1)
	require.NoError(t, err)
	assert.Equal(t, first[0], best)

	// other orders and fine orders fill the caches with new grids and bases
	for _, o := range []space.Order{space.Iso(1), {H: 4, V: 2}, space.Iso(5)} {
		_, err = s.Rank(Element{Order: o, FineOrder: 6, Field: smooth}, allowed|ListPIso|ListHIso, 0.5)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		again, err := s.Rank(el, allowed, 1)
		require.NoError(t, err)
		assert.Equal(t, first, again)
		c, err := s.SelectCandidate(el, allowed, 1)
		require.NoError(t, err)
		assert.Equal(t, best, c)
	}

	fresh, err := New(6).Rank(el, allowed, 1)
	require.NoError(t, err)
	assert.Equal(t, first, fresh)
}
