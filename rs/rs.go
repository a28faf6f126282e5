// Package rs implements the systematic, MDS Reed-Solomon codec over
// GF(2^m): encoder-matrix construction, single-symbol encode, and in-place
// decode of k symbols received out of n.
package rs

import (
	"errors"

	"github.com/xtaci/fectun/gf"
	"github.com/xtaci/fectun/matrix"
)

// ErrInvShardNum is returned by New when k or n is out of range
// (1 <= k <= n <= 2^m).
var ErrInvShardNum = errors.New("rs: invalid k/n for this field width")

// ErrInvalidIndex is returned by the encode and decode entry points when a
// symbol index is outside [0, n).
var ErrInvalidIndex = errors.New("rs: index out of range")

// ErrDuplicateIndex is returned by Decode when two received symbols name
// the same index.
var ErrDuplicateIndex = errors.New("rs: duplicate index")

// ErrShortSymbol is returned when a caller supplies a symbol buffer shorter
// than sz elements.
var ErrShortSymbol = errors.New("rs: symbol shorter than sz")

// Codec is an immutable systematic Reed-Solomon descriptor: k source
// symbols, n total symbols, field width m, and the n x k generator matrix G
// whose upper k x k block is the identity.
type Codec struct {
	K, N, M int
	gen     *matrix.Matrix
	tbl     *gf.Tables
}

// New builds a systematic generator matrix for the given k, n over GF(2^m):
// a temp n x k matrix whose row 0 is (1,0,...,0) and whose remaining rows
// are powers of alpha, Vandermonde inversion of the upper k x k block, a
// matmul for the lower block, and an identity overwrite of the upper block.
func New(k, n, m int) (*Codec, error) {
	t, err := gf.Get(m)
	if err != nil {
		return nil, err
	}
	size := 1 << uint(m)
	if k < 1 || n < k || n > size {
		return nil, ErrInvShardNum
	}

	temp, err := matrix.New(n, k, m)
	if err != nil {
		return nil, err
	}
	temp.Set(0, 0, 1)
	for c := 1; c < k; c++ {
		temp.Set(0, c, 0)
	}
	modulus := uint32(size - 1)
	for r := 1; r < n; r++ {
		row := temp.Row(r)
		for c := 0; c < k; c++ {
			row[c] = uint16(t.Exp[(uint32(r)*uint32(c))%modulus])
		}
	}

	upper, err := matrix.New(k, k, m)
	if err != nil {
		return nil, err
	}
	copy(upper.Data, temp.Data[:k*k])
	if err := upper.InvertVandermonde(); err != nil {
		return nil, err
	}

	gen, err := matrix.New(n, k, m)
	if err != nil {
		return nil, err
	}

	if n > k {
		lower, err := matrix.New(n-k, k, m)
		if err != nil {
			return nil, err
		}
		copy(lower.Data, temp.Data[k*k:])

		lowerOut, err := matrix.New(n-k, k, m)
		if err != nil {
			return nil, err
		}
		if err := matrix.Multiply(lower, upper, lowerOut); err != nil {
			return nil, err
		}
		copy(gen.Data[k*k:], lowerOut.Data)
	}

	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				gen.Set(i, j, 1)
			} else {
				gen.Set(i, j, 0)
			}
		}
	}

	return &Codec{K: k, N: n, M: m, gen: gen, tbl: t}, nil
}

// EncodeElements produces the symbol at index (one of n) from the k source
// symbols src, each sz field elements long, into out. For index < k this is
// a copy of the matching source symbol (systematic); for index >= k it is
// the corresponding row of G applied to the source symbols via AddMul.
func (c *Codec) EncodeElements(src [][]uint16, out []uint16, index int, sz int) error {
	if index < 0 || index >= c.N {
		return ErrInvalidIndex
	}
	if len(out) < sz {
		return ErrShortSymbol
	}
	if index < c.K {
		if len(src[index]) < sz {
			return ErrShortSymbol
		}
		copy(out[:sz], src[index][:sz])
		return nil
	}
	for i := 0; i < sz; i++ {
		out[i] = 0
	}
	row := c.gen.Row(index)
	for i := 0; i < c.K; i++ {
		if len(src[i]) < sz {
			return ErrShortSymbol
		}
		c.tbl.AddMul(out[:sz], src[i][:sz], row[i])
	}
	return nil
}

// DecodeElements recovers the k source symbols in place. pkt holds k
// mutable symbol buffers, index holds the n-space index each corresponds
// to. It first cycle-shuffles pkt/index so that position i holds the
// symbol for index i whenever that symbol was actually received, then
// builds a k x k decode matrix from the rows of the generator matching the
// received indices, inverts it, and recovers any still-missing source
// symbols. On return every pkt[i] with index[i] < k holds the original
// source symbol; both slices are mutated in place by the shuffle.
func (c *Codec) DecodeElements(pkt [][]uint16, index []int, sz int) error {
	k := c.K
	if len(pkt) != k || len(index) != k {
		return ErrInvShardNum
	}

	// Shuffle: cycle-following so that any symbol with index[i] < k ends up
	// at position index[i].
	for i := 0; i < k; i++ {
		for index[i] < k && index[i] != i {
			target := index[i]
			if index[target] == target {
				return ErrDuplicateIndex
			}
			pkt[i], pkt[target] = pkt[target], pkt[i]
			index[i], index[target] = index[target], index[i]
		}
	}
	for i := 0; i < k; i++ {
		if index[i] >= c.N {
			return ErrInvalidIndex
		}
	}

	dm, err := matrix.New(k, k, c.M)
	if err != nil {
		return err
	}
	for i := 0; i < k; i++ {
		if index[i] < k {
			dm.Set(i, index[i], 1)
		} else {
			copy(dm.Row(i), c.gen.Row(index[i]))
		}
	}
	if err := dm.Invert(); err != nil {
		return err
	}

	// Compute every recovered buffer from the as-received pkt contents
	// before writing any of them back: recovered row i's column loop may
	// read pkt[j] for another missing row j, so pkt must stay untouched
	// until all recoveries have been computed.
	type recovery struct {
		i   int
		buf []uint16
	}
	var pending []recovery
	for i := 0; i < k; i++ {
		if index[i] < k {
			continue
		}
		newBuf := make([]uint16, sz)
		row := dm.Row(i)
		for col := 0; col < k; col++ {
			if len(pkt[col]) < sz {
				return ErrShortSymbol
			}
			c.tbl.AddMul(newBuf, pkt[col][:sz], row[col])
		}
		pending = append(pending, recovery{i: i, buf: newBuf})
	}
	for _, r := range pending {
		if len(pkt[r.i]) < sz {
			return ErrShortSymbol
		}
		copy(pkt[r.i][:sz], r.buf)
		index[r.i] = r.i
	}
	return nil
}
