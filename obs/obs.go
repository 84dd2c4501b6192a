// Package obs holds rectangular panels of optional observations.
// A missing cell is explicit and never takes part in arithmetic.
package obs

import (
	"fmt"
	"gonum.org/v1/gonum/mat"
)

// Value is a single optional observation.
// The zero value is missing.
type Value struct {
	X     float64
	Valid bool
}

// Some returns a present value.
func Some(x float64) Value {
	return Value{X: x, Valid: true}
}

// Matrix is a rows × cols matrix of optional values,
// stored row-major.
type Matrix struct {
	rows, cols int
	data       []Value
}

// NewMatrix returns a matrix with all cells missing.
func NewMatrix(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Errorf("obs: negative dimensions %d×%d", rows, cols))
	}
	return &Matrix{
		rows: rows,
		cols: cols,
		data: make([]Value, rows*cols),
	}
}

func (m *Matrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

func (m *Matrix) index(i, j int) int {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Errorf("obs: index (%d, %d) out of range %d×%d",
			i, j, m.rows, m.cols))
	}
	return i*m.cols + j
}

func (m *Matrix) At(i, j int) Value {
	return m.data[m.index(i, j)]
}

// Set stores a present value at (i, j).
func (m *Matrix) Set(i, j int, x float64) {
	m.data[m.index(i, j)] = Some(x)
}

// Unset marks (i, j) missing.
func (m *Matrix) Unset(i, j int) {
	m.data[m.index(i, j)] = Value{}
}

// Row returns row i; the slice aliases the matrix.
func (m *Matrix) Row(i int) []Value {
	k := m.index(i, 0)
	return m.data[k : k+m.cols]
}

func (m *Matrix) Clone() *Matrix {
	c := NewMatrix(m.rows, m.cols)
	copy(c.data, m.data)
	return c
}

// Augment returns a copy grown by rows and cols;
// the new cells are missing.
func (m *Matrix) Augment(rows, cols int) *Matrix {
	a := NewMatrix(m.rows+rows, m.cols+cols)
	for i := 0; i != m.rows; i++ {
		copy(a.Row(i), m.Row(i))
	}
	return a
}

// Scale multiplies every present value by f in place.
func (m *Matrix) Scale(f float64) {
	for k := range m.data {
		if m.data[k].Valid {
			m.data[k].X *= f
		}
	}
}

// Complete returns a dense copy with missing cells
// replaced by placeholder.
func (m *Matrix) Complete(placeholder float64) *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i != m.rows; i++ {
		for j := 0; j != m.cols; j++ {
			v := m.At(i, j)
			if v.Valid {
				d.Set(i, j, v.X)
			} else {
				d.Set(i, j, placeholder)
			}
		}
	}
	return d
}

// Count returns the number of present values in column j.
func (m *Matrix) Count(j int) int {
	n := 0
	for i := 0; i != m.rows; i++ {
		if m.At(i, j).Valid {
			n++
		}
	}
	return n
}

// Aligned reports whether m and o have the same shape and
// the same missing cells.
func (m *Matrix) Aligned(o *Matrix) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for k := range m.data {
		if m.data[k].Valid != o.data[k].Valid {
			return false
		}
	}
	return true
}
