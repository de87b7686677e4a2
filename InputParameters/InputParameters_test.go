package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/hpfem/adapt"
	"github.com/notargets/hpfem/selector"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/types"
)

func TestParse(t *testing.T) {
	fileInput := []byte(`
Title: Plate
PolynomialOrder: 3
Strategy: 1
Threshold: 0.5
CandList: HP_ANISO, P_ISO
ErrStop: 0.1
Source: 2.5
BCs:
  Dirichlet:
      1:
         Value: 0.
      3:
         Value: 1.5
  Neumann:
      2:
         Value: -1
`)
	ip := NewInputParametersHP()
	require.NoError(t, ip.Parse(fileInput))
	assert.Equal(t, "Plate", ip.Title)
	assert.Equal(t, 3, ip.PolynomialOrder)
	assert.Equal(t, 2.5, ip.Source)
	assert.Equal(t, 1.5, ip.BCs["Dirichlet"][3]["Value"])
	// unset fields keep their defaults
	assert.Equal(t, -1, ip.MeshRegularity)
	assert.Equal(t, 60000, ip.NDOFStop)
	ip.Print()

	cfg, err := ip.ToConfig("out")
	require.NoError(t, err)
	assert.Equal(t, selector.ListHPAniso|selector.ListPIso, cfg.CandLists)
	assert.Equal(t, 3, cfg.InitialOrder)
	assert.Equal(t, 1, cfg.Strategy)
	assert.Equal(t, adapt.NormH1, cfg.Norm)
	assert.Equal(t, "out", cfg.OutputDir)

	bc, err := ip.BoundaryConditions()
	require.NoError(t, err)
	require.Len(t, bc, 3)
	assert.Equal(t, types.BC_Essential, bc.Classify(3))
	assert.Equal(t, 1.5, bc.Value(3, 0.2, 0.7))
	assert.Equal(t, types.BC_Natural, bc.Classify(2))
	assert.Equal(t, -1., bc.Value(2, 0, 0))
}

func TestDefaultsMatchBenchmark(t *testing.T) {
	cfg, err := NewInputParametersHP().ToConfig("")
	require.NoError(t, err)
	assert.Equal(t, adapt.DefaultConfig(), cfg)
}

func TestBadParameters(t *testing.T) {
	ip := NewInputParametersHP()
	require.NoError(t, ip.Parse([]byte("CandList: HQ_ISO\n")))
	_, err := ip.ToConfig("")
	assert.Error(t, err)

	ip = NewInputParametersHP()
	require.NoError(t, ip.Parse([]byte("Strategy: 7\n")))
	_, err = ip.ToConfig("")
	assert.ErrorIs(t, err, adapt.ErrInvalidConfig)

	ip = NewInputParametersHP()
	require.NoError(t, ip.Parse([]byte("BCs:\n  Slip:\n    1:\n      Value: 0\n")))
	_, err = ip.BoundaryConditions()
	assert.ErrorIs(t, err, space.ErrInconsistentBoundaryData)

	assert.Error(t, ip.Parse([]byte("PolynomialOrder: [1, 2\n")))
}
