// Package matrix implements the linear-algebra layer the rs package builds
// its generator matrix from: matrix-matrix product, Gauss-Jordan inversion,
// and a fast Vandermonde-specific inverse, all over GF(2^m) via the gf
// package's tables.
package matrix

import (
	"errors"
	"runtime"
	"sync"

	"github.com/xtaci/fectun/gf"
)

// ErrSingular is returned by Invert when the matrix has no inverse.
var ErrSingular = errors.New("matrix: singular matrix")

// ErrDimension is returned when an operation receives mismatched shapes.
var ErrDimension = errors.New("matrix: dimension mismatch")

// Matrix is a dense, row-major rectangular array of GF(2^m) field elements.
type Matrix struct {
	Rows, Cols int
	Data       []uint16 // row-major, length Rows*Cols
	tbl        *gf.Tables
}

// New allocates a zeroed Rows x Cols matrix over the field selected by m.
func New(rows, cols, m int) (*Matrix, error) {
	t, err := gf.Get(m)
	if err != nil {
		return nil, err
	}
	return &Matrix{Rows: rows, Cols: cols, Data: make([]uint16, rows*cols), tbl: t}, nil
}

// Row returns the slice backing row i; mutations through it modify the
// matrix.
func (a *Matrix) Row(i int) []uint16 {
	return a.Data[i*a.Cols : (i+1)*a.Cols]
}

// At returns element (i, j).
func (a *Matrix) At(i, j int) uint16 { return a.Data[i*a.Cols+j] }

// Set assigns element (i, j).
func (a *Matrix) Set(i, j int, v uint16) { a.Data[i*a.Cols+j] = v }

// minSplitRows caps how finely Multiply divides work across goroutines;
// below this many output rows the per-goroutine overhead isn't worth it.
const minSplitRows = 32

// Multiply computes c = a*b for (n x k)*(k x m) = (n x m), clearing c first.
// It uses row-scaled-accumulate ordering rather than the textbook triple
// loop, so the inner pass is a run of gf.AddMul calls: for each output row
// i, for each pivot j, if a[i,j] != 0, accumulate c[i,:] ^= a[i,j] * b[j,:].
// Output rows are independent, so Multiply spreads them across a bounded
// worker pool, one goroutine per contiguous row range.
func Multiply(a, b, c *Matrix) error {
	if a.Cols != b.Rows || a.Rows != c.Rows || b.Cols != c.Cols {
		return ErrDimension
	}
	for i := range c.Data {
		c.Data[i] = 0
	}

	n := a.Rows
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if n < minSplitRows || workers <= 1 {
		multiplyRows(a, b, c, 0, n)
		return nil
	}

	rowsPer := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += rowsPer {
		end := start + rowsPer
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			multiplyRows(a, b, c, start, end)
		}(start, end)
	}
	wg.Wait()
	return nil
}

func multiplyRows(a, b, c *Matrix, start, end int) {
	for i := start; i < end; i++ {
		arow := a.Row(i)
		crow := c.Row(i)
		for j, aij := range arow {
			if aij == 0 {
				continue
			}
			a.tbl.AddMul(crow, b.Row(j), aij)
		}
	}
}

// Invert inverts the k x k matrix a in place using Gauss-Jordan elimination
// over GF(2^m): full pivoting with ipiv/indxr/indxc bookkeeping,
// diagonal-preferred pivot selection, and an undo pass that swaps columns
// back at the end.
func (a *Matrix) Invert() error {
	if a.Rows != a.Cols {
		return ErrDimension
	}
	k := a.Rows
	ipiv := make([]int, k)
	indxr := make([]int, k)
	indxc := make([]int, k)

	for col := 0; col < k; col++ {
		irow, icol := -1, -1
		if ipiv[col] != 1 && a.At(col, col) != 0 {
			irow, icol = col, col
		} else {
			for row := 0; row < k && icol == -1; row++ {
				if ipiv[row] == 1 {
					continue
				}
				for ix := 0; ix < k; ix++ {
					if ipiv[ix] == 0 && a.At(row, ix) != 0 {
						irow, icol = row, ix
						break
					}
					if ipiv[ix] > 1 {
						return ErrSingular
					}
				}
			}
		}
		if icol == -1 {
			return ErrSingular
		}
		ipiv[icol]++

		if irow != icol {
			a.swapRows(irow, icol)
		}
		indxr[col] = irow
		indxc[col] = icol

		pivot := a.At(icol, icol)
		if pivot == 0 {
			return ErrSingular
		}
		if pivot != 1 {
			inv := uint16(a.tbl.Inverse[pivot])
			prow := a.Row(icol)
			for j := range prow {
				prow[j] = a.tbl.Mul(prow[j], inv)
			}
		}

		pivotRow := a.Row(icol)
		for ix := 0; ix < k; ix++ {
			if ix == icol {
				continue
			}
			p := a.Row(ix)
			c := p[icol]
			if c == 0 {
				continue
			}
			p[icol] = 0
			a.tbl.AddMul(p, pivotRow, c)
		}
	}

	for col := k - 1; col >= 0; col-- {
		if indxr[col] != indxc[col] {
			a.swapCols(indxr[col], indxc[col])
		}
	}
	return nil
}

func (a *Matrix) swapRows(r1, r2 int) {
	row1 := a.Row(r1)
	row2 := a.Row(r2)
	for i := range row1 {
		row1[i], row2[i] = row2[i], row1[i]
	}
}

func (a *Matrix) swapCols(c1, c2 int) {
	for i := 0; i < a.Rows; i++ {
		row := a.Row(i)
		row[c1], row[c2] = row[c2], row[c1]
	}
}

// InvertVandermonde inverts a in place given that column 1 holds k distinct
// field elements p_0..p_{k-1} (the rest of the matrix is ignored on input).
// This is an O(k^2) synthetic-division recurrence, far cheaper than the
// general Gauss-Jordan path for the genuinely Vandermonde matrices the rs
// package's constructor builds.
func (a *Matrix) InvertVandermonde() error {
	if a.Rows != a.Cols {
		return ErrDimension
	}
	k := a.Rows
	if k == 1 {
		a.Set(0, 0, 1)
		return nil
	}
	t := a.tbl

	p := make([]uint16, k)
	for i := 0; i < k; i++ {
		p[i] = a.At(i, 1)
	}

	c := make([]uint16, k)
	c[k-1] = p[0]
	for i := 1; i < k; i++ {
		pi := p[i]
		for j := k - 1 - i; j <= k-2; j++ {
			c[j] ^= t.Mul(pi, c[j+1])
		}
		c[k-1] ^= pi
	}

	b := make([]uint16, k)
	for row := 0; row < k; row++ {
		xx := p[row]
		b[k-1] = 1
		tt := uint16(1)
		for i := k - 2; i >= 0; i-- {
			b[i] = c[i+1] ^ t.Mul(xx, b[i+1])
			tt = t.Mul(xx, tt) ^ b[i]
		}
		invT := uint16(t.Inverse[tt])
		for col := 0; col < k; col++ {
			a.Set(col, row, t.Mul(invT, b[col]))
		}
	}
	return nil
}
