package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Graph is a two column data series saved as "x y" lines
type Graph struct {
	Name string
	X, Y []float64
}

func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

func (g *Graph) Add(x, y float64) {
	g.X = append(g.X, x)
	g.Y = append(g.Y, y)
}

func (g *Graph) Len() int { return len(g.X) }

func (g *Graph) WriteTo(w io.Writer) (n int64, err error) {
	bw := bufio.NewWriter(w)
	for i := range g.X {
		var nn int
		if nn, err = fmt.Fprintf(bw, "%g %g\n", g.X[i], g.Y[i]); err != nil {
			return
		}
		n += int64(nn)
	}
	err = bw.Flush()
	return
}

// Save rewrites filename with the full history
func (g *Graph) Save(filename string) (err error) {
	var file *os.File
	if file, err = os.Create(filename); err != nil {
		return
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = g.WriteTo(file)
	return
}
