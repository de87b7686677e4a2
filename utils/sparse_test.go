package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparseAssembly(t *testing.T) {
	A := NewDOK(3, 3)
	A.Add(0, 0, 2)
	A.Add(0, 0, 2)
	A.Add(0, 1, -1)
	A.Add(1, 0, -1)
	A.Add(1, 1, 4)
	A.Add(2, 2, 3)
	A.Add(1, 2, 0)
	assert.Equal(t, 4., A.At(0, 0))

	C := A.ToCSR()
	assert.Equal(t, 5, C.NNZ())
	r, c := C.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []float64{4, 4, 3}, C.Diagonal())

	dst := []float64{9, 9, 9}
	C.MulVec(dst, []float64{1, 2, 3})
	assert.InDeltaSlice(t, []float64{2, 7, 9}, dst, 1e-14)

	D := C.ToDense()
	S := C.ToSymDense()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, D.At(i, j), S.At(i, j))
		}
	}
}

func TestSparseReadOnly(t *testing.T) {
	A := NewDOK(2, 2)
	A.Set(0, 0, 1)
	A.SetReadOnly("A")
	assert.PanicsWithError(t, `attempt to write to a read only matrix named: "A"`, func() {
		A.Add(1, 1, 1)
	})
	assert.Equal(t, 1., A.At(0, 0))
}
