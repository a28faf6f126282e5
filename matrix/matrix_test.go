package matrix

import (
	"math/rand"
	"testing"
)

func identity(n, m int) (*Matrix, error) {
	mat, err := New(n, n, m)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		mat.Set(i, i, 1)
	}
	return mat, nil
}

func TestMultiplyByIdentity(t *testing.T) {
	const m = 8
	a, err := New(5, 5, m)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(1))
	for i := range a.Data {
		a.Data[i] = uint16(r.Intn(256))
	}
	id, err := identity(5, m)
	if err != nil {
		t.Fatal(err)
	}
	out, err := New(5, 5, m)
	if err != nil {
		t.Fatal(err)
	}
	if err := Multiply(a, id, out); err != nil {
		t.Fatal(err)
	}
	for i := range a.Data {
		if a.Data[i] != out.Data[i] {
			t.Fatalf("A*I != A at %d: %d vs %d", i, a.Data[i], out.Data[i])
		}
	}
}

func TestMultiplyLargeParallelMatchesSmall(t *testing.T) {
	const m = 8
	const n = 200
	a, err := New(n, n, m)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(n, n, m)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(2))
	for i := range a.Data {
		a.Data[i] = uint16(r.Intn(256))
	}
	for i := range b.Data {
		b.Data[i] = uint16(r.Intn(256))
	}
	out, err := New(n, n, m)
	if err != nil {
		t.Fatal(err)
	}
	if err := Multiply(a, b, out); err != nil {
		t.Fatal(err)
	}

	ref, err := New(n, n, m)
	if err != nil {
		t.Fatal(err)
	}
	multiplyRows(a, b, ref, 0, n)

	for i := range out.Data {
		if out.Data[i] != ref.Data[i] {
			t.Fatalf("parallel/serial mismatch at %d", i)
		}
	}
}

func TestInvertRoundTrip(t *testing.T) {
	const m = 8
	k := 6
	mat, err := New(k, k, m)
	if err != nil {
		t.Fatal(err)
	}
	tb := mat.tbl
	// Build a genuine Vandermonde matrix (rows = powers of distinct points).
	for r := 0; r < k; r++ {
		row := mat.Row(r)
		p := uint16(r + 1)
		acc := uint16(1)
		for c := 0; c < k; c++ {
			row[c] = acc
			acc = tb.Mul(acc, p)
		}
	}
	orig, err := New(k, k, m)
	if err != nil {
		t.Fatal(err)
	}
	copy(orig.Data, mat.Data)

	if err := mat.Invert(); err != nil {
		t.Fatal(err)
	}

	prod, err := New(k, k, m)
	if err != nil {
		t.Fatal(err)
	}
	if err := Multiply(orig, mat, prod); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			want := uint16(0)
			if i == j {
				want = 1
			}
			if prod.At(i, j) != want {
				t.Fatalf("A*A^-1 != I at (%d,%d): got %d", i, j, prod.At(i, j))
			}
		}
	}
}

func TestInvertSingular(t *testing.T) {
	const m = 8
	mat, err := New(3, 3, m)
	if err != nil {
		t.Fatal(err)
	}
	// Two identical rows -> singular.
	mat.Set(0, 0, 1)
	mat.Set(0, 1, 2)
	mat.Set(0, 2, 3)
	mat.Set(1, 0, 1)
	mat.Set(1, 1, 2)
	mat.Set(1, 2, 3)
	mat.Set(2, 0, 4)
	mat.Set(2, 1, 5)
	mat.Set(2, 2, 6)
	if err := mat.Invert(); err != ErrSingular {
		t.Fatalf("Invert on singular matrix = %v, want ErrSingular", err)
	}
}

func TestInvertVandermondeMatchesGaussJordan(t *testing.T) {
	const m = 8
	k := 5
	vdm, err := New(k, k, m)
	if err != nil {
		t.Fatal(err)
	}
	tb := vdm.tbl
	for r := 0; r < k; r++ {
		row := vdm.Row(r)
		p := uint16(r + 1)
		acc := uint16(1)
		for c := 0; c < k; c++ {
			row[c] = acc
			acc = tb.Mul(acc, p)
		}
	}

	viaGJ, err := New(k, k, m)
	if err != nil {
		t.Fatal(err)
	}
	copy(viaGJ.Data, vdm.Data)
	if err := viaGJ.Invert(); err != nil {
		t.Fatal(err)
	}

	viaFast, err := New(k, k, m)
	if err != nil {
		t.Fatal(err)
	}
	copy(viaFast.Data, vdm.Data)
	if err := viaFast.InvertVandermonde(); err != nil {
		t.Fatal(err)
	}

	for i := range viaGJ.Data {
		if viaGJ.Data[i] != viaFast.Data[i] {
			t.Fatalf("invert_vdm disagrees with Gauss-Jordan at %d: %d vs %d", i, viaFast.Data[i], viaGJ.Data[i])
		}
	}
}

func TestInvertVandermondeK1(t *testing.T) {
	mat, err := New(1, 1, 8)
	if err != nil {
		t.Fatal(err)
	}
	mat.Set(0, 0, 5)
	if err := mat.InvertVandermonde(); err != nil {
		t.Fatal(err)
	}
	if mat.At(0, 0) != 1 {
		t.Fatalf("k=1 invert_vdm should yield [1], got %d", mat.At(0, 0))
	}
}
