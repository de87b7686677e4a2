package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Gambit neutral element types
const (
	gambitQuad     = 2
	gambitTriangle = 3
)

type gambitReader struct {
	scanner *bufio.Scanner
	line    int
}

func (g *gambitReader) getLine() (line string, err error) {
	if !g.scanner.Scan() {
		if err = g.scanner.Err(); err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", malformed("line %d: %v", g.line, err)
	}
	g.line++
	return strings.TrimSpace(g.scanner.Text()), nil
}

func (g *gambitReader) ints(line string, min int) (vals []int, err error) {
	fields := strings.Fields(line)
	if len(fields) < min {
		return nil, malformed("line %d: read %d values, need %d: %q", g.line, len(fields), min, line)
	}
	vals = make([]int, len(fields))
	for i, f := range fields {
		if vals[i], err = strconv.Atoi(f); err != nil {
			return nil, malformed("line %d: %v", g.line, err)
		}
	}
	return
}

// readGambit reads a 2D Gambit neutral file with quadrilateral and triangular cells.
// Element markers are the element group ids; boundary markers are the boundary set order, starting at 1.
func readGambit(r io.Reader) (d *description, err error) {
	var (
		line                       string
		numnp, nelem, nbsets, ndfcd int
		haveHeader                 bool
		nbc                        int
		vals                       []int
	)
	g := &gambitReader{scanner: bufio.NewScanner(r)}
	d = &description{BoundaryNames: make(map[int]string)}
	for {
		if !g.scanner.Scan() {
			if err = g.scanner.Err(); err != nil {
				return nil, err
			}
			break
		}
		g.line++
		line = strings.TrimSpace(g.scanner.Text())
		switch {
		case strings.Contains(line, "NUMNP") && strings.Contains(line, "NELEM"):
			if line, err = g.getLine(); err != nil {
				return
			}
			if vals, err = g.ints(line, 5); err != nil {
				return
			}
			numnp, nelem, nbsets, ndfcd = vals[0], vals[1], vals[3], vals[4]
			if ndfcd != 2 {
				return nil, malformed("space dimensions %d not 2", ndfcd)
			}
			haveHeader = true
			d.Vertices = make([][]float64, numnp)
			d.Elements = make([][]int, nelem)
		case !haveHeader:
		case strings.Contains(line, "NODAL COORDINATES"):
			for i := 0; i < numnp; i++ {
				if line, err = g.getLine(); err != nil {
					return
				}
				fields := strings.Fields(line)
				if len(fields) < 3 {
					return nil, malformed("line %d: vertex needs id, x, y: %q", g.line, line)
				}
				var (
					ind  int
					x, y float64
				)
				if ind, err = strconv.Atoi(fields[0]); err == nil {
					if x, err = strconv.ParseFloat(fields[1], 64); err == nil {
						y, err = strconv.ParseFloat(fields[2], 64)
					}
				}
				if err != nil {
					return nil, malformed("line %d: %v", g.line, err)
				}
				if ind < 1 || ind > numnp {
					return nil, malformed("line %d: vertex id %d out of range", g.line, ind)
				}
				d.Vertices[ind-1] = []float64{x, y}
			}
		case strings.Contains(line, "ELEMENTS/CELLS"):
			for i := 0; i < nelem; i++ {
				if line, err = g.getLine(); err != nil {
					return
				}
				if vals, err = g.ints(line, 3); err != nil {
					return
				}
				ind, typ, ndp := vals[0], vals[1], vals[2]
				if (typ != gambitQuad || ndp != 4) && (typ != gambitTriangle || ndp != 3) {
					return nil, malformed("line %d: unsupported element type %d with %d nodes", g.line, typ, ndp)
				}
				if len(vals) < 3+ndp || ind < 1 || ind > nelem {
					return nil, malformed("line %d: bad element record %q", g.line, line)
				}
				el := make([]int, ndp+1)
				for j := 0; j < ndp; j++ {
					el[j] = vals[3+j] - 1
				}
				d.Elements[ind-1] = el
			}
		case strings.HasPrefix(line, "GROUP:"):
			var gn, count int
			if _, err = fmt.Sscanf(line, "GROUP: %d ELEMENTS: %d", &gn, &count); err != nil {
				return nil, malformed("line %d: %v", g.line, err)
			}
			// title and flags
			if _, err = g.getLine(); err != nil {
				return
			}
			if _, err = g.getLine(); err != nil {
				return
			}
			for read := 0; read < count; {
				if line, err = g.getLine(); err != nil {
					return
				}
				if vals, err = g.ints(line, 1); err != nil {
					return
				}
				for _, e := range vals {
					if e < 1 || e > nelem || d.Elements[e-1] == nil {
						return nil, malformed("line %d: group references element %d", g.line, e)
					}
					el := d.Elements[e-1]
					el[len(el)-1] = gn
				}
				read += len(vals)
			}
		case strings.Contains(line, "BOUNDARY CONDITIONS"):
			if nbc >= nbsets {
				return nil, malformed("line %d: more boundary sets than the %d declared", g.line, nbsets)
			}
			if line, err = g.getLine(); err != nil {
				return
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, malformed("line %d: bad boundary header %q", g.line, line)
			}
			var nfaces int
			if nfaces, err = strconv.Atoi(fields[2]); err != nil {
				return nil, malformed("line %d: %v", g.line, err)
			}
			nbc++
			d.BoundaryNames[nbc] = fields[0]
			for i := 0; i < nfaces; i++ {
				if line, err = g.getLine(); err != nil {
					return
				}
				if vals, err = g.ints(line, 3); err != nil {
					return
				}
				k, face := vals[0], vals[2]
				if k < 1 || k > nelem || d.Elements[k-1] == nil {
					return nil, malformed("line %d: boundary face on element %d", g.line, k)
				}
				el := d.Elements[k-1]
				nv := len(el) - 1
				if face < 1 || face > nv {
					return nil, malformed("line %d: face %d out of range", g.line, face)
				}
				d.Boundaries = append(d.Boundaries, []int{el[face-1], el[face%nv], nbc})
			}
		}
	}
	if !haveHeader {
		return nil, malformed("missing NUMNP/NELEM header")
	}
	for i, v := range d.Vertices {
		if v == nil {
			return nil, malformed("vertex %d not defined", i+1)
		}
	}
	for i, e := range d.Elements {
		if e == nil {
			return nil, malformed("element %d not defined", i+1)
		}
	}
	return
}
