package types

import "strings"

type BCTYPE uint8

const (
	BC_None BCTYPE = iota
	BC_Essential
	BC_Natural
)

var BCNameMap = map[string]BCTYPE{
	"dirichlet": BC_Essential,
	"essential": BC_Essential,
	"neuman":    BC_Natural,
	"neumann":   BC_Natural,
	"natural":   BC_Natural,
}

func NewBCTYPE(name string) BCTYPE {
	if bt, ok := BCNameMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return bt
	}
	return BC_None
}

func (bt BCTYPE) String() string {
	switch bt {
	case BC_Essential:
		return "Essential"
	case BC_Natural:
		return "Natural"
	}
	return "None"
}
