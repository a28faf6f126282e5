package gf

import "testing"

func TestAddMulAllPaths(t *testing.T) {
	widths := []int{4, 8, 12, 16}
	for _, m := range widths {
		tb, err := BuildTables(m)
		if err != nil {
			t.Fatal(err)
		}
		size := 1 << uint(m)
		n := 37 // deliberately not a multiple of 8 or 16
		src := make([]uint16, n)
		for i := range src {
			src[i] = uint16(i % size)
		}
		c := uint16(size - 1)

		want := make([]uint16, n)
		for i, s := range src {
			want[i] = tb.Mul(c, s)
		}

		for _, path := range []struct {
			name string
			fn   func(dst, src []uint16, c uint16)
		}{
			{"table", tb.addMulTable},
			{"scalar", tb.addMulScalar},
			{"split", tb.addMulSplit},
		} {
			if path.name == "table" && tb.mulTable == nil {
				continue
			}
			dst := make([]uint16, n)
			path.fn(dst, src, c)
			for i := range dst {
				if dst[i] != want[i] {
					t.Fatalf("m=%d path=%s: dst[%d]=%d want %d", m, path.name, i, dst[i], want[i])
				}
			}
		}
	}
}

func TestAddMulZeroScalarNoop(t *testing.T) {
	tb, err := BuildTables(8)
	if err != nil {
		t.Fatal(err)
	}
	dst := []uint16{1, 2, 3}
	orig := append([]uint16(nil), dst...)
	tb.AddMul(dst, []uint16{4, 5, 6}, 0)
	for i := range dst {
		if dst[i] != orig[i] {
			t.Fatalf("AddMul with c=0 modified dst")
		}
	}
}

func TestAddMulAccumulates(t *testing.T) {
	tb, err := BuildTables(8)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]uint16, 4)
	src1 := []uint16{1, 2, 3, 4}
	src2 := []uint16{5, 6, 7, 8}
	tb.AddMul(dst, src1, 9)
	tb.AddMul(dst, src2, 11)
	want := make([]uint16, 4)
	for i := range want {
		want[i] = tb.Mul(9, src1[i]) ^ tb.Mul(11, src2[i])
	}
	for i := range dst {
		if dst[i] != want[i] {
			t.Fatalf("accumulate mismatch at %d: got %d want %d", i, dst[i], want[i])
		}
	}
}
