package rs

import (
	"math/rand"
	"testing"
)

func makeSymbols(k, sz int, r *rand.Rand) [][]byte {
	src := make([][]byte, k)
	for i := range src {
		buf := make([]byte, sz)
		r.Read(buf)
		src[i] = buf
	}
	return src
}

func encodeAll(t *testing.T, c *Codec, src [][]byte, sz int) [][]byte {
	all := make([][]byte, c.N)
	for i := 0; i < c.N; i++ {
		out := make([]byte, sz)
		if err := c.EncodeSymbol(src, out, i); err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
		all[i] = out
	}
	return all
}

func decodeSubset(t *testing.T, c *Codec, all [][]byte, idx []int, sz int) [][]byte {
	pkt := make([][]byte, len(idx))
	for i, ix := range idx {
		buf := make([]byte, sz)
		copy(buf, all[ix])
		pkt[i] = buf
	}
	idxCopy := append([]int(nil), idx...)
	if err := c.DecodeBytes(pkt, idxCopy); err != nil {
		t.Fatalf("decode %v: %v", idx, err)
	}
	return pkt
}

func TestRoundTripFirstLastRandomSubsets(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	cases := []struct{ k, n, sz int }{
		{1, 1, 4}, {2, 3, 2}, {3, 5, 4}, {4, 8, 7}, {1, 4, 16},
	}
	for _, tc := range cases {
		c, err := New(tc.k, tc.n, 8)
		if err != nil {
			t.Fatalf("New(%d,%d,8): %v", tc.k, tc.n, err)
		}
		src := makeSymbols(tc.k, tc.sz, r)
		all := encodeAll(t, c, src, tc.sz)

		// first k
		first := make([]int, tc.k)
		for i := range first {
			first[i] = i
		}
		got := decodeSubset(t, c, all, first, tc.sz)
		for i := range src {
			if string(got[i]) != string(src[i]) {
				t.Fatalf("k=%d n=%d first-k mismatch at %d", tc.k, tc.n, i)
			}
		}

		// last k
		last := make([]int, tc.k)
		for i := range last {
			last[i] = tc.n - tc.k + i
		}
		// Decode leaves source symbol i at position i.
		got = decodeSubset(t, c, all, last, tc.sz)
		for i := range src {
			if string(got[i]) != string(src[i]) {
				t.Fatalf("k=%d n=%d last-k mismatch at %d", tc.k, tc.n, i)
			}
		}

		// random subset
		perm := r.Perm(tc.n)[:tc.k]
		got = decodeSubset(t, c, all, perm, tc.sz)
		for i := range src {
			if string(got[i]) != string(src[i]) {
				t.Fatalf("k=%d n=%d random-subset mismatch at %d", tc.k, tc.n, i)
			}
		}
	}
}

func TestScenarioKThreeNFiveBytes(t *testing.T) {
	c, err := New(3, 5, 8)
	if err != nil {
		t.Fatal(err)
	}
	src := [][]byte{
		{0, 1, 2, 3},
		{4, 5, 6, 7},
		{8, 9, 10, 11},
	}
	p3 := make([]byte, 4)
	p4 := make([]byte, 4)
	if err := c.EncodeSymbol(src, p3, 3); err != nil {
		t.Fatal(err)
	}
	if err := c.EncodeSymbol(src, p4, 4); err != nil {
		t.Fatal(err)
	}
	pkt := [][]byte{
		append([]byte(nil), p3...),
		append([]byte(nil), src[1]...),
		append([]byte(nil), p4...),
	}
	idx := []int{3, 1, 4}
	if err := c.DecodeBytes(pkt, idx); err != nil {
		t.Fatal(err)
	}
	want := map[int][]byte{0: src[0], 1: src[1], 2: src[2]}
	for i, ix := range idx {
		if string(pkt[i]) != string(want[ix]) {
			t.Fatalf("pos %d (orig idx %d): got %v want %v", i, ix, pkt[i], want[ix])
		}
	}
}

func TestScenarioKOneNOne(t *testing.T) {
	c, err := New(1, 1, 8)
	if err != nil {
		t.Fatal(err)
	}
	src := [][]byte{{1, 2, 3, 4}}
	out := make([]byte, 4)
	if err := c.EncodeSymbol(src, out, 0); err != nil {
		t.Fatal(err)
	}
	if string(out) != string(src[0]) {
		t.Fatalf("k=1,n=1 encode should pass through unchanged")
	}
	pkt := [][]byte{append([]byte(nil), out...)}
	idx := []int{0}
	if err := c.DecodeBytes(pkt, idx); err != nil {
		t.Fatal(err)
	}
	if string(pkt[0]) != string(src[0]) {
		t.Fatalf("k=1,n=1 decode should be a no-op")
	}
}

func TestScenarioKTwoNThree(t *testing.T) {
	c, err := New(2, 3, 8)
	if err != nil {
		t.Fatal(err)
	}
	src := [][]byte{{0xAA, 0xBB}, {0xCC, 0xDD}}
	p2 := make([]byte, 2)
	if err := c.EncodeSymbol(src, p2, 2); err != nil {
		t.Fatal(err)
	}
	pkt := [][]byte{append([]byte(nil), p2...), append([]byte(nil), src[1]...)}
	idx := []int{2, 1}
	if err := c.DecodeBytes(pkt, idx); err != nil {
		t.Fatal(err)
	}
	if string(pkt[0]) != string(src[0]) {
		t.Fatalf("recovered source 0 mismatch: got %v want %v", pkt[0], src[0])
	}
}

func TestScenarioSingularDuplicateIndices(t *testing.T) {
	c, err := New(3, 5, 8)
	if err != nil {
		t.Fatal(err)
	}
	pkt := [][]byte{{1, 2}, {3, 4}, {5, 6}}
	idx := []int{1, 1, 1}
	before := make([][]byte, len(pkt))
	for i, p := range pkt {
		before[i] = append([]byte(nil), p...)
	}
	if err := c.DecodeBytes(pkt, idx); err == nil {
		t.Fatalf("expected error decoding duplicate indices")
	}
}

func TestScenarioInvalidEncodeIndex(t *testing.T) {
	c, err := New(3, 5, 8)
	if err != nil {
		t.Fatal(err)
	}
	src := makeSymbols(3, 4, rand.New(rand.NewSource(1)))
	out := make([]byte, 4)
	if err := c.EncodeSymbol(src, out, 5); err != ErrInvalidIndex {
		t.Fatalf("encode with index=n should fail with ErrInvalidIndex, got %v", err)
	}
}

func TestScenario16BitLargeRandom(t *testing.T) {
	const m = 16
	k, n, sz := 4, 8, 1024
	c, err := New(k, n, m)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(7))
	src := make([][]uint16, k)
	for i := range src {
		row := make([]uint16, sz)
		for j := range row {
			row[j] = uint16(r.Intn(1 << m))
		}
		src[i] = row
	}

	all := make([][]uint16, n)
	for i := 0; i < n; i++ {
		out := make([]uint16, sz)
		if err := c.EncodeElements(src, out, i, sz); err != nil {
			t.Fatal(err)
		}
		all[i] = out
	}

	drop := map[int]bool{}
	for len(drop) < 4 {
		drop[r.Intn(n)] = true
	}
	var idx []int
	for i := 0; i < n; i++ {
		if !drop[i] {
			idx = append(idx, i)
		}
	}
	pkt := make([][]uint16, len(idx))
	for i, ix := range idx {
		buf := make([]uint16, sz)
		copy(buf, all[ix])
		pkt[i] = buf
	}
	if err := c.DecodeElements(pkt, idx, sz); err != nil {
		t.Fatal(err)
	}
	for i, ix := range idx {
		if ix < k {
			for j := 0; j < sz; j++ {
				if pkt[i][j] != src[ix][j] {
					t.Fatalf("16-bit recovery mismatch at symbol %d elem %d", ix, j)
				}
			}
		}
	}
}

func TestKEqualsN(t *testing.T) {
	c, err := New(4, 4, 8)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(3))
	src := makeSymbols(4, 8, r)
	all := encodeAll(t, c, src, 8)
	for i := range src {
		if string(all[i]) != string(src[i]) {
			t.Fatalf("k=n: encode at %d should be pass-through", i)
		}
	}
	idx := []int{0, 1, 2, 3}
	got := decodeSubset(t, c, all, idx, 8)
	for i := range src {
		if string(got[i]) != string(src[i]) {
			t.Fatalf("k=n: decode mismatch at %d", i)
		}
	}
}

func TestNonLaneAlignedSize(t *testing.T) {
	c, err := New(3, 6, 8)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(9))
	src := makeSymbols(3, 37, r)
	all := encodeAll(t, c, src, 37)
	idx := []int{1, 3, 5}
	got := decodeSubset(t, c, all, idx, 37)
	// Decode leaves source symbol i at position i.
	for i := range src {
		if string(got[i]) != string(src[i]) {
			t.Fatalf("non-lane-aligned recovery mismatch at %d", i)
		}
	}
}
