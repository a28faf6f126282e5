package gf

import (
	"github.com/klauspost/cpuid"
	"github.com/templexxx/xorsimd"
)

// simdEligible reports whether this process can use the nibble-split bulk
// multiply path: it requires a vector-capable CPU (16-byte SIMD width) and
// is only worthwhile for m > 8, where there is no full 2^m x 2^m
// multiplication table to fall back on.
var simdEligible = cpuid.CPU.SSSE3() || cpuid.CPU.AVX() || cpuid.CPU.AVX2()

// Mul returns x*y in GF(2^m). mul(0, y) = mul(x, 0) = 0; the doubled Exp
// table means log(x)+log(y) never needs a modular reduction.
func (t *Tables) Mul(x, y uint16) uint16 {
	if x == 0 || y == 0 {
		return 0
	}
	return uint16(t.Exp[t.Log[uint32(x)]+t.Log[uint32(y)]])
}

// selectAddMul picks the bulk multiply-accumulate implementation to use for
// this table set: the full-table scalar path for m <= 8, and either the
// nibble-split SIMD-style path or the plain scalar/log-exp path for m > 8,
// depending on what this CPU supports. The choice only affects speed; every
// variant computes the same result.
func (t *Tables) selectAddMul() {
	switch {
	case t.mulTable != nil:
		t.addMul = t.addMulTable
	case simdEligible:
		t.addMul = t.addMulSplit
	default:
		t.addMul = t.addMulScalar
	}
}

// AddMul computes dst[i] ^= c*src[i] for i in [0, len(dst)). It is the hot
// path of the codec: matmul and encode/decode route all of their
// field-element work through it. dst and src must have equal length;
// AddMul tolerates dst/src aliasing only when they are the same slice.
func (t *Tables) AddMul(dst, src []uint16, c uint16) {
	if c == 0 {
		return
	}
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	t.addMul(dst[:n], src[:n], c)
}

// addMulTable is the m <= 8 fast path: a full multiplication table removes
// the zero test and the two log lookups per element.
func (t *Tables) addMulTable(dst, src []uint16, c uint16) {
	row := t.mulTable[c]
	i := 0
	for ; i+8 <= len(src); i += 8 {
		dst[i+0] ^= uint16(row[src[i+0]])
		dst[i+1] ^= uint16(row[src[i+1]])
		dst[i+2] ^= uint16(row[src[i+2]])
		dst[i+3] ^= uint16(row[src[i+3]])
		dst[i+4] ^= uint16(row[src[i+4]])
		dst[i+5] ^= uint16(row[src[i+5]])
		dst[i+6] ^= uint16(row[src[i+6]])
		dst[i+7] ^= uint16(row[src[i+7]])
	}
	for ; i < len(src); i++ {
		dst[i] ^= uint16(row[src[i]])
	}
}

// addMulScalar is the general m > 8 path: log(c) plus the doubled exp table
// turns each element multiply into one table lookup and an add.
func (t *Tables) addMulScalar(dst, src []uint16, c uint16) {
	row := t.Exp[t.Log[uint32(c)]:]
	i := 0
	for ; i+8 <= len(src); i += 8 {
		for j := 0; j < 8; j++ {
			if s := src[i+j]; s != 0 {
				dst[i+j] ^= uint16(row[t.Log[uint32(s)]])
			}
		}
	}
	for ; i < len(src); i++ {
		if s := src[i]; s != 0 {
			dst[i] ^= uint16(row[t.Log[uint32(s)]])
		}
	}
}

// addMulSplit implements the "split multiplication by table lookup"
// technique used for m > 8, where a full multiplication table is too big to
// build: each 16-bit source element is split into four 4-bit nibbles, each
// nibble indexes a small precomputed partial-product table, and the four
// partial products are XORed into the destination. This is mathematically
// the SIMD PSHUFB technique (Plank et al., "Screaming Fast Galois Field
// Arithmetic"): GF multiplication is linear over GF(2), so
// c*(n0 | n1<<4 | n2<<8 | n3<<12) = c*n0 ^ c*(n1<<4) ^ c*(n2<<8) ^ c*(n3<<12),
// and each term depends only on a 4-bit nibble. The final XOR-accumulate is
// delegated to xorsimd, the pack's bulk-XOR primitive.
func (t *Tables) addMulSplit(dst, src []uint16, c uint16) {
	// Nibble values that would form an element >= 2^m never occur in valid
	// input, so their entries stay zero instead of indexing past the tables.
	var t0, t1, t2, t3 [16]uint16
	size := uint32(1) << uint(t.M)
	for v := uint16(0); v < 16; v++ {
		if uint32(v) < size {
			t0[v] = t.Mul(c, v)
		}
		if uint32(v)<<4 < size {
			t1[v] = t.Mul(c, v<<4)
		}
		if uint32(v)<<8 < size {
			t2[v] = t.Mul(c, v<<8)
		}
		if uint32(v)<<12 < size {
			t3[v] = t.Mul(c, v<<12)
		}
	}

	n := len(src)
	p0 := make([]uint16, n)
	p1 := make([]uint16, n)
	p2 := make([]uint16, n)
	p3 := make([]uint16, n)
	for i, s := range src {
		p0[i] = t0[s&0xF]
		p1[i] = t1[(s>>4)&0xF]
		p2[i] = t2[(s>>8)&0xF]
		p3[i] = t3[(s>>12)&0xF]
	}

	xorsimd.Encode(u16Bytes(dst), [][]byte{
		u16Bytes(dst), u16Bytes(p0), u16Bytes(p1), u16Bytes(p2), u16Bytes(p3),
	})
}
