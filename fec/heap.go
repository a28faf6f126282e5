package fec

import "container/heap"

// timediff computes a wraparound-safe signed difference between two
// sequence numbers, matching kcp-go's own _itimediff: positive when later
// is ahead of earlier.
func timediff(later, earlier uint32) int32 {
	return int32(later - earlier)
}

// shardHeap orders the shards of one shard-set by sequence id and tracks
// which seqids have already been seen, so duplicate shards (retransmits,
// or a shard seen twice across reordering) are dropped rather than double
// counted.
type shardHeap struct {
	elements []shard
	marks    map[uint32]struct{}
}

func newShardHeap() *shardHeap {
	h := &shardHeap{marks: make(map[uint32]struct{})}
	heap.Init(h)
	return h
}

func (h *shardHeap) Len() int { return len(h.elements) }
func (h *shardHeap) Less(i, j int) bool {
	return timediff(h.elements[j].seqid(), h.elements[i].seqid()) > 0
}
func (h *shardHeap) Swap(i, j int) { h.elements[i], h.elements[j] = h.elements[j], h.elements[i] }

func (h *shardHeap) Push(x any) {
	s := x.(shard)
	h.elements = append(h.elements, s)
	h.marks[s.seqid()] = struct{}{}
}

func (h *shardHeap) Pop() any {
	n := len(h.elements)
	x := h.elements[n-1]
	h.elements = h.elements[:n-1]
	delete(h.marks, x.seqid())
	return x
}

func (h *shardHeap) Has(seqid uint32) bool {
	_, ok := h.marks[seqid]
	return ok
}
