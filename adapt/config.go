package adapt

import (
	"errors"
	"fmt"

	"github.com/notargets/hpfem/selector"
)

var ErrInvalidConfig = errors.New("invalid adaptivity configuration")

type NormType uint8

const (
	NormH1 NormType = iota
	NormEnergy
)

func (n NormType) String() string {
	return [...]string{"H1", "Energy"}[n]
}

func NewNormType(label string) (n NormType, err error) {
	switch label {
	case "", "H1", "h1":
		return NormH1, nil
	case "Energy", "energy", "ENERGY":
		return NormEnergy, nil
	}
	return 0, fmt.Errorf("%w: unknown norm %q", ErrInvalidConfig, label)
}

// Config is fixed for a run
type Config struct {
	SolveOnCoarseMesh bool
	InitRefNum        int
	InitialOrder      int
	Threshold         float64
	Strategy          int
	CandLists         selector.CandList
	MeshRegularity    int // -1 for arbitrary level hanging nodes
	ConvExp           float64
	ErrStop           float64 // percent
	NDOFStop          int
	MaxIterations     int // 0 for no limit
	MaxOrder          int
	RefOrderIncrease  int
	Norm              NormType
	OutputDir         string // convergence graphs are written here when set
}

// DefaultConfig is the L-shape benchmark setup
func DefaultConfig() Config {
	return Config{
		SolveOnCoarseMesh: false,
		InitRefNum:        1,
		InitialOrder:      4,
		Threshold:         0.3,
		Strategy:          0,
		CandLists:         selector.ListHPAnisoH,
		MeshRegularity:    -1,
		ConvExp:           1,
		ErrStop:           0.01,
		NDOFStop:          60000,
		MaxOrder:          selector.DefaultMaxOrder,
		RefOrderIncrease:  1,
		Norm:              NormH1,
	}
}

func (c Config) Validate() (err error) {
	bad := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...)
	}
	switch {
	case c.InitRefNum < 0:
		return bad("INIT_REF_NUM must be >= 0, have %d", c.InitRefNum)
	case c.InitialOrder < 1:
		return bad("initial order must be >= 1, have %d", c.InitialOrder)
	case c.MaxOrder < c.InitialOrder:
		return bad("max order %d is below the initial order %d", c.MaxOrder, c.InitialOrder)
	case c.Threshold <= 0 || c.Threshold > 1:
		return bad("THRESHOLD must be in (0,1], have %g", c.Threshold)
	case c.Strategy < 0 || c.Strategy > 2:
		return bad("STRATEGY must be 0, 1 or 2, have %d", c.Strategy)
	case c.CandLists == 0:
		return bad("no candidate lists: %w", selector.ErrNoCandidatesAvailable)
	case c.MeshRegularity < -1:
		return bad("MESH_REGULARITY must be -1 or >= 0, have %d", c.MeshRegularity)
	case c.ConvExp <= 0:
		return bad("CONV_EXP must be > 0, have %g", c.ConvExp)
	case c.ErrStop <= 0:
		return bad("ERR_STOP must be > 0, have %g", c.ErrStop)
	case c.NDOFStop <= 0:
		return bad("NDOF_STOP must be > 0, have %d", c.NDOFStop)
	case c.MaxIterations < 0:
		return bad("max iterations must be >= 0, have %d", c.MaxIterations)
	case c.RefOrderIncrease < 0:
		return bad("reference order increase must be >= 0, have %d", c.RefOrderIncrease)
	case c.Norm > NormEnergy:
		return bad("unknown norm %d", c.Norm)
	}
	return
}
