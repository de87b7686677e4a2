package mesh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
)

/*
The native format is a list of assignments:

	a = 0.5                              # numeric variables may be used in later expressions
	vertices = { { 0, -1 }, { a, 1 } }   // x, y
	elements = { { 0, 1, 2, 3, 0 } }     // 3 or 4 vertex ids then the material marker
	boundaries = { { 0, 1, 1 } }         // v1, v2, marker
	curves = { { 0, 1, 90 } }            // optional arcs: v1, v2, angle in degrees

Expressions support + - * / ^, parentheses and the functions sqrt, sin, cos, tan, exp, log, abs.
*/

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokPunct
)

type token struct {
	kind tokKind
	text string
	num  float64
	line int
}

type lexer struct {
	r    *bufio.Reader
	line int
	peek *token
}

func (lx *lexer) next() (t token, err error) {
	if lx.peek != nil {
		t, lx.peek = *lx.peek, nil
		return
	}
	var c rune
	for {
		if c, _, err = lx.r.ReadRune(); err == io.EOF {
			return token{kind: tokEOF, line: lx.line}, nil
		} else if err != nil {
			return
		}
		switch {
		case c == '\n':
			lx.line++
		case unicode.IsSpace(c):
		case c == '#':
			lx.skipLine()
		case c == '/':
			if n, _, e := lx.r.ReadRune(); e == nil && n == '/' {
				lx.skipLine()
				continue
			} else if e == nil {
				_ = lx.r.UnreadRune()
			}
			return token{kind: tokPunct, text: "/", line: lx.line}, nil
		case unicode.IsDigit(c) || c == '.':
			return lx.number(c)
		case unicode.IsLetter(c) || c == '_':
			return lx.ident(c)
		case strings.ContainsRune("{},=+-*^()", c):
			return token{kind: tokPunct, text: string(c), line: lx.line}, nil
		default:
			return t, fmt.Errorf("line %d: unexpected character %q", lx.line, c)
		}
	}
}

func (lx *lexer) unread(t token) { lx.peek = &t }

func (lx *lexer) skipLine() {
	if _, err := lx.r.ReadString('\n'); err == nil {
		lx.line++
	}
}

func (lx *lexer) number(first rune) (t token, err error) {
	var sb strings.Builder
	sb.WriteRune(first)
	prev := first
	for {
		c, _, e := lx.r.ReadRune()
		if e != nil {
			break
		}
		if unicode.IsDigit(c) || c == '.' || c == 'e' || c == 'E' ||
			((c == '-' || c == '+') && (prev == 'e' || prev == 'E')) {
			sb.WriteRune(c)
			prev = c
			continue
		}
		_ = lx.r.UnreadRune()
		break
	}
	t = token{kind: tokNumber, text: sb.String(), line: lx.line}
	if t.num, err = strconv.ParseFloat(t.text, 64); err != nil {
		err = fmt.Errorf("line %d: bad number %q", lx.line, t.text)
	}
	return
}

func (lx *lexer) ident(first rune) (t token, err error) {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		c, _, e := lx.r.ReadRune()
		if e != nil {
			break
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			sb.WriteRune(c)
			continue
		}
		_ = lx.r.UnreadRune()
		break
	}
	return token{kind: tokIdent, text: sb.String(), line: lx.line}, nil
}

// value is either a number or a brace list
type value struct {
	num    float64
	list   []value
	isList bool
}

type nativeParser struct {
	lx   *lexer
	vars map[string]value
}

var nativeFuncs = map[string]func(float64) float64{
	"sqrt": math.Sqrt, "sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
	"exp": math.Exp, "log": math.Log, "abs": math.Abs,
}

func (p *nativeParser) expect(text string) error {
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	if t.kind != tokPunct || t.text != text {
		return fmt.Errorf("line %d: expected %q, found %q", t.line, text, t.text)
	}
	return nil
}

func (p *nativeParser) value() (v value, err error) {
	var t token
	if t, err = p.lx.next(); err != nil {
		return
	}
	if t.kind != tokPunct || t.text != "{" {
		p.lx.unread(t)
		v.num, err = p.expr()
		return
	}
	v.isList = true
	if t, err = p.lx.next(); err != nil {
		return
	}
	if t.kind == tokPunct && t.text == "}" {
		return
	}
	p.lx.unread(t)
	for {
		var item value
		if item, err = p.value(); err != nil {
			return
		}
		v.list = append(v.list, item)
		if t, err = p.lx.next(); err != nil {
			return
		}
		if t.kind == tokPunct && t.text == "}" {
			return
		}
		if t.kind != tokPunct || t.text != "," {
			err = fmt.Errorf("line %d: expected ',' or '}', found %q", t.line, t.text)
			return
		}
	}
}

func (p *nativeParser) expr() (x float64, err error) {
	if x, err = p.term(); err != nil {
		return
	}
	for {
		t, e := p.lx.next()
		if e != nil {
			return x, e
		}
		if t.kind != tokPunct || (t.text != "+" && t.text != "-") {
			p.lx.unread(t)
			return
		}
		var y float64
		if y, err = p.term(); err != nil {
			return
		}
		if t.text == "+" {
			x += y
		} else {
			x -= y
		}
	}
}

func (p *nativeParser) term() (x float64, err error) {
	if x, err = p.power(); err != nil {
		return
	}
	for {
		t, e := p.lx.next()
		if e != nil {
			return x, e
		}
		if t.kind != tokPunct || (t.text != "*" && t.text != "/") {
			p.lx.unread(t)
			return
		}
		var y float64
		if y, err = p.power(); err != nil {
			return
		}
		if t.text == "*" {
			x *= y
		} else {
			x /= y
		}
	}
}

func (p *nativeParser) power() (x float64, err error) {
	if x, err = p.factor(); err != nil {
		return
	}
	t, e := p.lx.next()
	if e != nil {
		return x, e
	}
	if t.kind != tokPunct || t.text != "^" {
		p.lx.unread(t)
		return
	}
	var y float64
	if y, err = p.power(); err != nil {
		return
	}
	return math.Pow(x, y), nil
}

func (p *nativeParser) factor() (x float64, err error) {
	var t token
	if t, err = p.lx.next(); err != nil {
		return
	}
	switch {
	case t.kind == tokNumber:
		return t.num, nil
	case t.kind == tokPunct && t.text == "-":
		x, err = p.factor()
		return -x, err
	case t.kind == tokPunct && t.text == "+":
		return p.factor()
	case t.kind == tokPunct && t.text == "(":
		if x, err = p.expr(); err != nil {
			return
		}
		err = p.expect(")")
		return
	case t.kind == tokIdent:
		if f, ok := nativeFuncs[t.text]; ok {
			if err = p.expect("("); err != nil {
				return
			}
			if x, err = p.expr(); err != nil {
				return
			}
			err = p.expect(")")
			return f(x), err
		}
		if t.text == "pi" {
			return math.Pi, nil
		}
		v, ok := p.vars[t.text]
		if !ok {
			return 0, fmt.Errorf("line %d: undefined variable %q", t.line, t.text)
		}
		if v.isList {
			return 0, fmt.Errorf("line %d: %q is a list, not a number", t.line, t.text)
		}
		return v.num, nil
	}
	return 0, fmt.Errorf("line %d: unexpected %q in expression", t.line, t.text)
}

func (p *nativeParser) parse() (err error) {
	for {
		var t token
		if t, err = p.lx.next(); err != nil {
			return
		}
		if t.kind == tokEOF {
			return
		}
		if t.kind != tokIdent {
			return fmt.Errorf("line %d: expected a name, found %q", t.line, t.text)
		}
		if err = p.expect("="); err != nil {
			return
		}
		var v value
		if v, err = p.value(); err != nil {
			return
		}
		p.vars[t.text] = v
	}
}

func toFloats(name string, v value) (rows [][]float64, err error) {
	if !v.isList {
		return nil, malformed("%s must be a list", name)
	}
	rows = make([][]float64, len(v.list))
	for i, row := range v.list {
		if !row.isList {
			return nil, malformed("%s entry %d must be a list", name, i)
		}
		rows[i] = make([]float64, len(row.list))
		for j, x := range row.list {
			if x.isList {
				return nil, malformed("%s entry %d has a nested list", name, i)
			}
			rows[i][j] = x.num
		}
	}
	return
}

func toInts(name string, v value) (rows [][]int, err error) {
	var fl [][]float64
	if fl, err = toFloats(name, v); err != nil {
		return
	}
	rows = make([][]int, len(fl))
	for i, row := range fl {
		rows[i] = make([]int, len(row))
		for j, x := range row {
			if x != math.Trunc(x) {
				return nil, malformed("%s entry %d: %g is not an integer", name, i, x)
			}
			rows[i][j] = int(x)
		}
	}
	return
}

func readNative(r io.Reader) (d *description, err error) {
	p := &nativeParser{
		lx:   &lexer{r: bufio.NewReader(r), line: 1},
		vars: make(map[string]value),
	}
	if err = p.parse(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMeshFile, err)
	}
	d = &description{}
	for _, name := range []string{"vertices", "elements", "boundaries"} {
		if _, ok := p.vars[name]; !ok {
			return nil, malformed("missing section %q", name)
		}
	}
	if d.Vertices, err = toFloats("vertices", p.vars["vertices"]); err != nil {
		return nil, err
	}
	if d.Elements, err = toInts("elements", p.vars["elements"]); err != nil {
		return nil, err
	}
	if d.Boundaries, err = toInts("boundaries", p.vars["boundaries"]); err != nil {
		return nil, err
	}
	if c, ok := p.vars["curves"]; ok {
		if d.Curves, err = toFloats("curves", c); err != nil {
			return nil, err
		}
	}
	return
}
