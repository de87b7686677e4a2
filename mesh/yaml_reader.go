package mesh

import (
	"fmt"
	"io"

	"github.com/ghodss/yaml"
)

// readYAML reads the description from a YAML document with the keys
// vertices, elements, boundaries, curves and boundaryNames
func readYAML(r io.Reader) (d *description, err error) {
	var data []byte
	if data, err = io.ReadAll(r); err != nil {
		return
	}
	d = &description{}
	if err = yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMeshFile, err)
	}
	return
}
