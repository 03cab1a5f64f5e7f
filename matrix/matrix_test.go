package matrix

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat64MatrixShape(t *testing.T) {
	m, err := NewFloat64Matrix(2, 3)
	require.NoError(t, err)

	r, c := m.Shape()

	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)

	_, err = NewFloat64Matrix(-1, 3)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestFloat64MatrixGet(t *testing.T) {
	m, err := NewFloat64Matrix(2, 3)
	require.NoError(t, err)

	val := 0.0
	for r := 0; r < 2; r += 1 {
		for c := 0; c < 3; c += 1 {
			m.Set(r, c, val)
			val += 1.0
		}
	}

	assert.Equal(t, 0.0, m.Get(0, 0))
	assert.Equal(t, 2.0, m.Get(0, 2))
	assert.Equal(t, 4.0, m.Get(1, 1))
	assert.Equal(t, []float64{3, 4, 5}, m.Row(1))
	assert.Equal(t, []float64{1, 4}, m.Col(1))

	assert.PanicsWithValue(t, ErrIndexOutOfRange, func() { m.Get(2, 0) })
}

func TestFloat64MatrixSerialization(t *testing.T) {
	m, err := NewFloat64Matrix(2, 2)
	require.NoError(t, err)
	m.Set(0, 1, 0.25)
	m.Set(1, 0, 1.5)

	var buf bytes.Buffer
	require.NoError(t, m.Serialize(&buf))
	assert.Equal(t, "2,2\n0,1,2.500000e-01\n1,0,1.500000e+00\n", buf.String())

	restored, err := Deserialize(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, restored)

	_, err = Deserialize(strings.NewReader("2,2\n3,0,1\n"))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}
