package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/hpfem/mesh"
	"github.com/notargets/hpfem/space"
)

// Kind classifies a candidate; the numeric order is the tie break order
type Kind uint8

const (
	HIso Kind = iota
	HAniso
	HPIso
	HPAniso
	PIso
	PAniso
	NoChange
)

func (k Kind) String() string {
	return [...]string{"H_ISO", "H_ANISO", "HP_ISO", "HP_ANISO", "P_ISO", "P_ANISO", "NONE"}[k]
}

// IsSplit reports whether the candidate refines the element geometrically
func (k Kind) IsSplit() bool { return k <= HPAniso }

// CandList is a set of candidate lists
type CandList uint16

const (
	ListPIso CandList = 1 << iota
	ListPAniso
	ListHIso
	ListHAniso
	ListHPIso
	ListHPAnisoH
	ListHPAnisoP
	ListHPAniso
)

var candListNames = []struct {
	name string
	list CandList
}{
	{"P_ISO", ListPIso},
	{"P_ANISO", ListPAniso},
	{"H_ISO", ListHIso},
	{"H_ANISO", ListHAniso},
	{"HP_ISO", ListHPIso},
	{"HP_ANISO_H", ListHPAnisoH},
	{"HP_ANISO_P", ListHPAnisoP},
	{"HP_ANISO", ListHPAniso},
}

// ParseCandLists reads a comma separated list of names such as "HP_ANISO,P_ISO"
func ParseCandLists(s string) (cl CandList, err error) {
	for _, f := range strings.Split(s, ",") {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		found := false
		for _, n := range candListNames {
			if n.name == f {
				cl |= n.list
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown candidate list %q", f)
		}
	}
	return
}

func (cl CandList) String() string {
	var names []string
	for _, n := range candListNames {
		if cl&n.list != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// Candidate is one proposed refinement of an element
type Candidate struct {
	Kind   Kind
	Split  mesh.SplitKind
	Orders []space.Order // one per son, or the new element order for p candidates
	DOFs   int           // dimension of the candidate's local space
	Added  int           // DOFs minus the dimension of the unchanged element
	Error  float64       // predicted H1 error on the reference element
	Score  float64
	seq    int
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s split=%s orders=%v dofs=%d added=%d err=%.3e score=%.4g",
		c.Kind, c.Split, c.Orders, c.DOFs, c.Added, c.Error, c.Score)
}

// shape of a candidate in the tensor product model: intervals and order per direction
type tensorShape struct {
	kind   Kind
	split  mesh.SplitKind
	nx, ny int
	qx, qy int
}

func (t tensorShape) dofs() int { return (t.nx*t.qx + 1) * (t.ny*t.qy + 1) }

func intervals(split mesh.SplitKind) (nx, ny int) {
	switch split {
	case mesh.SplitIso:
		return 2, 2
	case mesh.SplitHorizontal:
		return 1, 2
	case mesh.SplitVertical:
		return 2, 1
	}
	return 1, 1
}

// lowered is the first son order of an hp candidate
func lowered(p int) int {
	q := (p + 1) / 2
	if q < 1 {
		q = 1
	}
	return q
}

// generate lists the candidate shapes enabled by the lists, in generation order without duplicates
func generate(o space.Order, allowed CandList, maxOrder int) (shapes []tensorShape) {
	seen := make(map[tensorShape]bool)
	add := func(kind Kind, split mesh.SplitKind, qx, qy int) {
		if qx > maxOrder {
			qx = maxOrder
		}
		if qy > maxOrder {
			qy = maxOrder
		}
		nx, ny := intervals(split)
		t := tensorShape{split: split, nx: nx, ny: ny, qx: qx, qy: qy}
		if split == mesh.SplitNone && qx == o.H && qy == o.V {
			return
		}
		// every candidate must enlarge the local space
		if t.dofs() <= (o.H+1)*(o.V+1) {
			return
		}
		if seen[t] {
			return
		}
		seen[t] = true
		t.kind = kind
		shapes = append(shapes, t)
	}
	var (
		pIso   = allowed&(ListPIso|ListPAniso|ListHPIso|ListHPAnisoH|ListHPAnisoP|ListHPAniso) != 0
		pAniso = allowed&(ListPAniso|ListHPAnisoP|ListHPAniso) != 0
		hIso   = allowed&(ListHIso|ListHAniso) != 0
		hAniso = allowed&ListHAniso != 0
		// hp splits with lowered son orders
		hpIso      = allowed&(ListHPIso|ListHPAnisoH|ListHPAnisoP|ListHPAniso) != 0
		hpAnisoH   = allowed&(ListHPAnisoH|ListHPAniso) != 0
		hpAnisoOrd = allowed&(ListHPAnisoP|ListHPAniso) != 0
	)
	if hIso {
		add(HIso, mesh.SplitIso, o.H, o.V)
	}
	if hAniso {
		add(HAniso, mesh.SplitHorizontal, o.H, o.V)
		add(HAniso, mesh.SplitVertical, o.H, o.V)
	}
	if hpIso || hpAnisoH {
		qh, qv := lowered(o.H), lowered(o.V)
		splits := []mesh.SplitKind{}
		if hpIso {
			splits = append(splits, mesh.SplitIso)
		}
		if hpAnisoH {
			splits = append(splits, mesh.SplitHorizontal, mesh.SplitVertical)
		}
		for _, split := range splits {
			kind := HPIso
			if split != mesh.SplitIso {
				kind = HPAniso
			}
			for d := 0; d <= 1; d++ {
				add(kind, split, qh+d, qv+d)
			}
			if hpAnisoOrd {
				add(kind, split, qh+1, qv)
				add(kind, split, qh, qv+1)
			}
		}
	}
	if pIso {
		for d := 1; d <= 2; d++ {
			add(PIso, mesh.SplitNone, o.H+d, o.V+d)
		}
	}
	if pAniso {
		for dh := 0; dh <= 2; dh++ {
			for dv := 0; dv <= 2; dv++ {
				if dh != dv {
					add(PAniso, mesh.SplitNone, o.H+dh, o.V+dv)
				}
			}
		}
	}
	return
}

// rank orders scored candidates best first
func rank(cands []Candidate, e0 float64) {
	improves := func(c Candidate) bool { return c.Error < e0 }
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		ia, ib := improves(a), improves(b)
		if ia != ib {
			return ia
		}
		if ia {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
		} else if a.Error != b.Error {
			return a.Error < b.Error
		}
		if a.Added != b.Added {
			return a.Added < b.Added
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.seq < b.seq
	})
}
