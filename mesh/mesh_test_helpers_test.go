package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const lshapeMesh = `# L-shaped domain
vertices = {
  { -1, -1 }, { 0, -1 }, { -1, 0 }, { 0, 0 },
  { 1, 0 }, { -1, 1 }, { 0, 1 }, { 1, 1 }
}
elements = {
  { 0, 1, 3, 2, 0 },
  { 2, 3, 6, 5, 0 },
  { 3, 4, 7, 6, 0 }
}
boundaries = {
  { 0, 1, 1 }, { 1, 3, 1 }, { 3, 4, 1 }, { 4, 7, 1 },
  { 7, 6, 1 }, { 6, 5, 1 }, { 5, 2, 1 }, { 2, 0, 1 }
}
`

func newLShape(t *testing.T) *Mesh {
	t.Helper()
	m, err := Read(strings.NewReader(lshapeMesh), FormatNative)
	require.NoError(t, err)
	return m
}

func createTempMeshFile(t *testing.T, name, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return tmpFile
}

func activeArea(m *Mesh) (area float64) {
	for _, id := range m.ActiveElements() {
		area += m.Area(id)
	}
	return
}
