package fec

import (
	"container/heap"
	"sync/atomic"

	"github.com/xtaci/fectun/rs"
)

// decoder reassembles shard sets and recovers missing data shards via the
// rs codec: a map of shard-set id to an out-of-order shardHeap, the newest
// shard-set id seen so far (minShardID; shards of any older set are
// discarded as stragglers), and recovery triggered once k of n shards of a
// set arrive.
type decoder struct {
	codec *rs.Codec

	k, n      int
	shardSize int

	shardSet   map[uint32]*shardHeap
	minShardID uint32

	counters *Counters
}

// maxPendingShardSets is how many set ids a shard set may fall behind the
// newest one seen before flushOldSets discards it, so at most
// maxPendingShardSets+1 recent sets are kept, per kcp-go's maxShardSets.
const maxPendingShardSets = 3

func newDecoder(k, n, m int, counters *Counters) (*decoder, error) {
	codec, err := rs.New(k, n, m)
	if err != nil {
		return nil, err
	}
	return &decoder{
		codec:     codec,
		k:         k,
		n:         n,
		shardSize: n,
		shardSet:  make(map[uint32]*shardHeap),
		counters:  counters,
	}, nil
}

func (d *decoder) shardSetID(seqid uint32) uint32 { return seqid / uint32(d.shardSize) }

// decode ingests one received, framed shard. It returns nil until the
// shard's set holds k shards; the shard that completes that quorum returns
// the set's k data shard payloads, indexed by position, with received ones
// passed through and missing ones recovered from parity.
func (d *decoder) decode(in shard) [][]byte {
	setID := d.shardSetID(in.seqid())
	if timediff(setID, d.minShardID) < 0 {
		return nil
	}

	set, ok := d.shardSet[setID]
	if !ok {
		set = newShardHeap()
		d.shardSet[setID] = set
		atomic.AddUint64(&d.counters.ShardSets, 1)
	}
	if set.Has(in.seqid()) {
		return nil
	}

	cp := make(shard, len(in))
	copy(cp, in)
	heap.Push(set, cp)

	var delivered [][]byte
	if set.Len() >= d.k {
		delivered = d.resolveSet(set)
	}

	if timediff(setID, d.minShardID) > 0 {
		d.minShardID = setID
	}
	d.flushOldSets()
	return delivered
}

// resolveSet drains one complete-enough shard set, directly delivering any
// data shards present and invoking the codec to recover the rest.
func (d *decoder) resolveSet(set *shardHeap) [][]byte {
	pkt := make([][]byte, 0, d.n)
	idx := make([]int, 0, d.n)
	present := make(map[int]bool, d.n)

	maxLen := 0
	for set.Len() > 0 {
		s := heap.Pop(set).(shard)
		i := int(s.seqid() % uint32(d.shardSize))
		if len(s.payload()) > maxLen {
			maxLen = len(s.payload())
		}
		pkt = append(pkt, s.payload())
		idx = append(idx, i)
		present[i] = true
	}

	haveAllData := true
	for i := 0; i < d.k; i++ {
		if !present[i] {
			haveAllData = false
			break
		}
	}
	if haveAllData {
		out := make([][]byte, d.k)
		for n, i := range idx {
			if i < d.k {
				out[i] = pkt[n]
			}
		}
		return out
	}

	for n := range pkt {
		if len(pkt[n]) < maxLen {
			padded := make([]byte, maxLen)
			copy(padded, pkt[n])
			pkt[n] = padded
		}
	}

	if err := d.codec.DecodeBytes(pkt, idx); err != nil {
		atomic.AddUint64(&d.counters.Errs, 1)
		return nil
	}

	out := make([][]byte, d.k)
	recovered := 0
	for n, i := range idx {
		if i < d.k {
			out[i] = pkt[n]
			if !present[i] {
				recovered++
			}
		}
	}
	atomic.AddUint64(&d.counters.Recovered, uint64(recovered))
	return out
}

func (d *decoder) flushOldSets() {
	for id := range d.shardSet {
		if timediff(d.minShardID, id) > maxPendingShardSets {
			delete(d.shardSet, id)
		}
	}
	atomic.StoreUint64(&d.counters.ShardSets, uint64(len(d.shardSet)))
}
