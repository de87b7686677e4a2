package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/hpfem/adapt"
	"github.com/notargets/hpfem/selector"
	"github.com/notargets/hpfem/space"
	"github.com/notargets/hpfem/types"
)

// Parameters obtained from the YAML input file
type InputParametersHP struct {
	Title             string                                `yaml:"Title"`
	SolveOnCoarseMesh bool                                  `yaml:"SolveOnCoarseMesh"`
	InitRefNum        int                                   `yaml:"InitRefNum"`
	PolynomialOrder   int                                   `yaml:"PolynomialOrder"`
	Threshold         float64                               `yaml:"Threshold"`
	Strategy          int                                   `yaml:"Strategy"`
	CandList          string                                `yaml:"CandList"`
	MeshRegularity    int                                   `yaml:"MeshRegularity"`
	ConvExp           float64                               `yaml:"ConvExp"`
	ErrStop           float64                               `yaml:"ErrStop"`
	NDOFStop          int                                   `yaml:"NDOFStop"`
	MaxIterations     int                                   `yaml:"MaxIterations"`
	MaxOrder          int                                   `yaml:"MaxOrder"`
	RefOrderIncrease  int                                   `yaml:"RefOrderIncrease"`
	Norm              string                                `yaml:"Norm"`
	Source            float64                               `yaml:"Source"` // constant volume source of the Poisson model
	BCs               map[string]map[int]map[string]float64 `yaml:"BCs"`    // First key is BC name/type, second is the marker
}

// NewInputParametersHP returns the L-shape benchmark parameters, Parse overrides what the file sets
func NewInputParametersHP() *InputParametersHP {
	cfg := adapt.DefaultConfig()
	return &InputParametersHP{
		Title:             "L-shape",
		SolveOnCoarseMesh: cfg.SolveOnCoarseMesh,
		InitRefNum:        cfg.InitRefNum,
		PolynomialOrder:   cfg.InitialOrder,
		Threshold:         cfg.Threshold,
		Strategy:          cfg.Strategy,
		CandList:          cfg.CandLists.String(),
		MeshRegularity:    cfg.MeshRegularity,
		ConvExp:           cfg.ConvExp,
		ErrStop:           cfg.ErrStop,
		NDOFStop:          cfg.NDOFStop,
		MaxIterations:     cfg.MaxIterations,
		MaxOrder:          cfg.MaxOrder,
		RefOrderIncrease:  cfg.RefOrderIncrease,
		Norm:              cfg.Norm.String(),
		Source:            1,
	}
}

func (ip *InputParametersHP) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParametersHP) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t\t= Polynomial Order\n", ip.PolynomialOrder)
	fmt.Printf("[%d]\t\t\t\t= Initial Refinements\n", ip.InitRefNum)
	fmt.Printf("%8.5f\t\t= Threshold\n", ip.Threshold)
	fmt.Printf("[%d]\t\t\t\t= Strategy\n", ip.Strategy)
	fmt.Printf("[%s]\t\t= Candidates\n", ip.CandList)
	fmt.Printf("[%d]\t\t\t\t= Mesh Regularity\n", ip.MeshRegularity)
	fmt.Printf("%8.5f\t\t= Convergence Exponent\n", ip.ConvExp)
	fmt.Printf("%8.5f\t\t= Error Stop (%%)\n", ip.ErrStop)
	fmt.Printf("[%d]\t\t\t= DOF Stop\n", ip.NDOFStop)
	fmt.Printf("[%s]\t\t\t= Norm\n", ip.Norm)
	fmt.Printf("%t\t\t\t= Solve On Coarse Mesh\n", ip.SolveOnCoarseMesh)
	keys := make([]string, len(ip.BCs))
	i := 0
	for k := range ip.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}

func (ip *InputParametersHP) ToConfig(outputDir string) (cfg adapt.Config, err error) {
	cfg = adapt.Config{
		SolveOnCoarseMesh: ip.SolveOnCoarseMesh,
		InitRefNum:        ip.InitRefNum,
		InitialOrder:      ip.PolynomialOrder,
		Threshold:         ip.Threshold,
		Strategy:          ip.Strategy,
		MeshRegularity:    ip.MeshRegularity,
		ConvExp:           ip.ConvExp,
		ErrStop:           ip.ErrStop,
		NDOFStop:          ip.NDOFStop,
		MaxIterations:     ip.MaxIterations,
		MaxOrder:          ip.MaxOrder,
		RefOrderIncrease:  ip.RefOrderIncrease,
		OutputDir:         outputDir,
	}
	if cfg.CandLists, err = selector.ParseCandLists(ip.CandList); err != nil {
		return
	}
	if cfg.Norm, err = adapt.NewNormType(ip.Norm); err != nil {
		return
	}
	err = cfg.Validate()
	return
}

// BoundaryConditions builds constant conditions from the BCs section, each marker takes its "Value" parameter
func (ip *InputParametersHP) BoundaryConditions() (bc space.BoundaryConditions, err error) {
	bc = make(space.BoundaryConditions)
	for name, markers := range ip.BCs {
		bt := types.NewBCTYPE(name)
		if bt == types.BC_None {
			return nil, fmt.Errorf("%w: unknown boundary condition type %q", space.ErrInconsistentBoundaryData, name)
		}
		for marker, params := range markers {
			if _, dup := bc[marker]; dup {
				return nil, fmt.Errorf("%w: marker %d has more than one condition", space.ErrInconsistentBoundaryData, marker)
			}
			val := params["Value"]
			bc[marker] = space.BoundaryCondition{Type: bt, Value: func(x, y float64) float64 { return val }}
		}
	}
	return
}
