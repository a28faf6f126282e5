// Package gf implements arithmetic over the binary extension fields
// GF(2^m), 2 <= m <= 16, used by the rs and matrix packages to build and
// invert Reed-Solomon generator matrices.
package gf

import (
	"errors"
	"sync"
)

// ErrFieldWidth is returned by Get/BuildTables when m falls outside [2, 16].
var ErrFieldWidth = errors.New("gf: field width m must be in [2, 16]")

// primitivePolynomials holds the mandatory primitive polynomial for every
// supported field width. Bit i is the coefficient of x^i; the low m+1 bits
// describe an irreducible polynomial of degree m over GF(2). These values
// are fixed by the codec's wire-level compatibility requirements: tables
// built from any other polynomial are not interchangeable with these.
var primitivePolynomials = map[int]uint32{
	2:  0x07,
	3:  0x0B,
	4:  0x13,
	5:  0x25,
	6:  0x43,
	7:  0x89,
	8:  0x11D,
	9:  0x211,
	10: 0x409,
	11: 0x805,
	12: 0x1053,
	13: 0x201B,
	14: 0x4443,
	15: 0x8003,
	16: 0x1100B,
}

// Tables is the set of process-wide, immutable lookup tables for one field
// width m: exp, log and inverse, plus (for m <= 8) a full multiplication
// table. All fields are read-only after BuildTables returns.
type Tables struct {
	M       int
	Exp     []uint32 // length 2*(2^m-1), doubled so log(x)+log(y) needs no reduction
	Log     []uint32 // length 2^m; Log[0] holds the sentinel 2^m-1
	Inverse []uint32 // length 2^m; Inverse[0] holds the sentinel 0

	mulTable [][]byte // present only when m <= 8; mulTable[x][y] = x*y

	addMul func(dst, src []uint16, c uint16) // selected bulk-multiply implementation
}

var (
	registryMu sync.Mutex
	registry   [17]*Tables
	buildOnce  [17]sync.Once
	buildErr   [17]error
)

// Get returns the process-wide Tables for field width m, building them on
// first use. Concurrent callers racing to build the same m converge on the
// same pointer; the table-construction work happens exactly once (a
// one-shot initialization barrier), and every caller observes fully built
// tables before using them.
func Get(m int) (*Tables, error) {
	if m < 2 || m > 16 {
		return nil, ErrFieldWidth
	}
	buildOnce[m].Do(func() {
		t, err := BuildTables(m)
		if err != nil {
			buildErr[m] = err
			return
		}
		registryMu.Lock()
		registry[m] = t
		registryMu.Unlock()
	})
	if buildErr[m] != nil {
		return nil, buildErr[m]
	}
	registryMu.Lock()
	t := registry[m]
	registryMu.Unlock()
	return t, nil
}

// BuildTables deterministically constructs exp/log/inverse for field width
// m from the mandatory primitive polynomial table, following the
// generator/doubling/inverse algorithm exactly.
func BuildTables(m int) (*Tables, error) {
	if m < 2 || m > 16 {
		return nil, ErrFieldWidth
	}
	p := primitivePolynomials[m]
	size := 1 << uint(m)

	exp := make([]uint32, 2*(size-1))
	log := make([]uint32, size)

	var mask uint32 = 1
	var acc uint32
	for i := 0; i < m; i++ {
		exp[i] = mask
		log[mask] = uint32(i)
		if p&(1<<uint(i)) != 0 {
			acc ^= mask
		}
		mask <<= 1
	}
	exp[m] = acc
	log[exp[m]] = uint32(m)

	topBit := uint32(1) << uint(m-1)
	for i := m + 1; i <= size-2; i++ {
		if exp[i-1]&topBit != 0 {
			exp[i] = exp[m] ^ ((exp[i-1] ^ topBit) << 1)
		} else {
			exp[i] = exp[i-1] << 1
		}
		log[exp[i]] = uint32(i)
	}
	log[0] = uint32(size - 1)

	for i := 0; i <= size-2; i++ {
		exp[i+size-1] = exp[i]
	}

	inverse := make([]uint32, size)
	inverse[0] = 0
	inverse[1] = 1
	for i := 2; i < size; i++ {
		inverse[i] = exp[(size-1)-int(log[i])]
	}

	t := &Tables{
		M:       m,
		Exp:     exp,
		Log:     log,
		Inverse: inverse,
	}

	if m <= 8 {
		t.mulTable = buildMulTable(t, size)
	}
	t.selectAddMul()
	return t, nil
}

// buildMulTable constructs the full size x size multiplication table used
// as a fast path when m <= 8: the field is small enough that a dense
// 2^m x 2^m lookup table fits comfortably in memory and beats log/exp
// multiply in the hot AddMul loop.
func buildMulTable(t *Tables, size int) [][]byte {
	mt := make([][]byte, size)
	row0 := make([]byte, size*size)
	for x := 0; x < size; x++ {
		mt[x] = row0[x*size : x*size+size]
		for y := 0; y < size; y++ {
			mt[x][y] = byte(t.mulRaw(uint32(x), uint32(y)))
		}
	}
	return mt
}

// mulRaw is the scalar multiply used only while bootstrapping mulTable
// itself (mulTable isn't available yet during its own construction).
func (t *Tables) mulRaw(x, y uint32) uint32 {
	if x == 0 || y == 0 {
		return 0
	}
	return t.Exp[t.Log[x]+t.Log[y]]
}
