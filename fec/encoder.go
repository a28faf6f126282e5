package fec

import (
	"sync/atomic"

	"github.com/xtaci/fectun/rs"
)

// encoder groups outgoing packets into shard sets of k data shards and
// produces n-k parity shards once a set fills. It is driven entirely by
// the rs package, so the data/parity shard counts and the GF field width
// are all caller-chosen rather than fixed.
type encoder struct {
	codec *rs.Codec

	k, n      int
	shardSize int
	next      uint32 // next seqid to seal
	paws      uint32 // protect-against-wrapped-sequence-numbers boundary

	shardCount int // data shards collected so far in the current set
	maxLen     int // longest payload seen in the current set

	shards [][]byte // len n, each headerSize+maxPayload bytes

	counters *Counters
}

func newEncoder(k, n, m, maxPayload int, counters *Counters) (*encoder, error) {
	codec, err := rs.New(k, n, m)
	if err != nil {
		return nil, err
	}
	e := &encoder{
		codec:     codec,
		k:         k,
		n:         n,
		shardSize: n,
		paws:      0xffffffff / uint32(n) * uint32(n),
		shards:    make([][]byte, n),
		counters:  counters,
	}
	for i := range e.shards {
		e.shards[i] = make([]byte, headerSize+maxPayload)
	}
	return e, nil
}

// encode appends payload as the next data shard of the current set. When
// the set fills (k data shards collected) it returns the n framed shards
// (data then parity) ready to send; otherwise it returns nil.
func (e *encoder) encode(payload []byte) [][]byte {
	idx := e.shardCount
	buf := e.shards[idx]
	need := headerSize + len(payload)
	if cap(buf) < need {
		buf = make([]byte, need)
	} else {
		buf = buf[:need]
	}
	sealHeader(buf, e.next, typeData)
	copy(buf[headerSize:], payload)
	e.shards[idx] = buf
	e.next = (e.next + 1) % e.paws
	e.shardCount++
	if len(payload) > e.maxLen {
		e.maxLen = len(payload)
	}

	if e.shardCount < e.k {
		return nil
	}

	out := e.finishSet()
	e.shardCount = 0
	e.maxLen = 0
	return out
}

// finishSet pads every data shard's payload to the set's max length,
// computes the n-k parity shards via the codec and seals their headers.
func (e *encoder) finishSet() [][]byte {
	src := make([][]byte, e.k)
	for i := 0; i < e.k; i++ {
		shard := e.shards[i]
		payload := shard[headerSize:]
		if len(payload) < e.maxLen {
			padded := make([]byte, e.maxLen)
			copy(padded, payload)
			shard = append(shard[:headerSize], padded...)
			e.shards[i] = shard
		}
		src[i] = e.shards[i][headerSize : headerSize+e.maxLen]
	}

	out := make([][]byte, e.n)
	for i := 0; i < e.k; i++ {
		out[i] = e.shards[i][:headerSize+e.maxLen]
	}
	for i := e.k; i < e.n; i++ {
		parity := e.shards[i]
		need := headerSize + e.maxLen
		if cap(parity) < need {
			parity = make([]byte, need)
		} else {
			parity = parity[:need]
		}
		if err := e.codec.EncodeSymbol(src, parity[headerSize:headerSize+e.maxLen], i); err != nil {
			atomic.AddUint64(&e.counters.Errs, 1)
			e.next = (e.next + uint32(e.n-i)) % e.paws
			break
		}
		sealHeader(parity, e.next, typeParity)
		e.next = (e.next + 1) % e.paws
		e.shards[i] = parity
		out[i] = parity
	}
	atomic.AddUint64(&e.counters.Encoded, uint64(e.n))
	return out
}
