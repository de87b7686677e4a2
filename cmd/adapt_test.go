package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareMesh = `vertices = { {0,0}, {1,0}, {1,1}, {0,1} }
elements = { {0,1,2,3,0} }
boundaries = { {0,1,1}, {1,2,1}, {2,3,1}, {3,0,1} }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	fn := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
	return fn
}

func TestRunAdaptLShape(t *testing.T) {
	var (
		dir = t.TempDir()
		out = filepath.Join(dir, "results")
		log bytes.Buffer
	)
	ic := writeFile(t, dir, "input.yaml", `
Title: quick L-shape
PolynomialOrder: 2
ErrStop: 5
MaxIterations: 3
`)
	err := RunAdapt(&ModelHP{ICFile: ic, Model: "lshape", OutputDir: out, LogLevel: "info"}, &log)
	require.NoError(t, err)
	for _, name := range []string{"conv_dof_est.dat", "conv_cpu_est.dat", "conv_dof_exact.dat", "conv_cpu_exact.dat"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
	assert.Contains(t, log.String(), "err_est")
	assert.Contains(t, log.String(), "adaptivity done")
	assert.Contains(t, log.String(), "wall_time")
	assert.NotContains(t, log.String(), "cpu=")
}

func TestRunAdaptPoisson(t *testing.T) {
	var (
		dir = t.TempDir()
		log bytes.Buffer
	)
	grid := writeFile(t, dir, "square.mesh", squareMesh)
	ic := writeFile(t, dir, "input.yaml", `
PolynomialOrder: 2
ErrStop: 2
MaxIterations: 2
Source: 4
BCs:
  Dirichlet:
    1:
      Value: 0
`)
	require.NoError(t, RunAdapt(&ModelHP{GridFile: grid, ICFile: ic, Model: "poisson", LogLevel: "warn"}, &log))
	_, err := os.Stat(filepath.Join(dir, "conv_dof_est.dat"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunAdaptErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, RunAdapt(&ModelHP{Model: "poisson"}, &bytes.Buffer{}))
	assert.Error(t, RunAdapt(&ModelHP{Model: "heat"}, &bytes.Buffer{}))
	assert.Error(t, RunAdapt(&ModelHP{Model: "lshape", LogLevel: "chatty"}, &bytes.Buffer{}))
	assert.Error(t, RunAdapt(&ModelHP{Model: "lshape", ICFile: filepath.Join(dir, "missing.yaml")}, &bytes.Buffer{}))
	bad := writeFile(t, dir, "bad.yaml", "Strategy: 9\n")
	assert.Error(t, RunAdapt(&ModelHP{Model: "lshape", ICFile: bad}, &bytes.Buffer{}))
	grid := writeFile(t, dir, "broken.mesh", "vertices = { {0,0} }\n")
	assert.Error(t, RunAdapt(&ModelHP{Model: "lshape", GridFile: grid}, &bytes.Buffer{}))
}
