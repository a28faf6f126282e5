package fec

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// Counters mirrors kcp.DefaultSnmp's style of plain exported uint64 fields
// updated via sync/atomic, so std.SnmpLogger can log them next to kcp-go's
// own counters.
type Counters struct {
	Encoded   uint64 // data+parity shards produced
	Recovered uint64 // data shards rebuilt from parity
	Errs      uint64 // codec failures (singular matrix, etc.)
	ShardSets uint64 // shard sets currently pending at the decoder
}

// Header names the columns ToSlice returns, in the same order.
func (s *Counters) Header() []string {
	return []string{"FECEncoded", "FECRecovered", "FECErrs", "FECShardSets"}
}

// ToSlice snapshots the counters as strings for CSV logging.
func (s *Counters) ToSlice() []string {
	return []string{
		fmt.Sprint(atomic.LoadUint64(&s.Encoded)),
		fmt.Sprint(atomic.LoadUint64(&s.Recovered)),
		fmt.Sprint(atomic.LoadUint64(&s.Errs)),
		fmt.Sprint(atomic.LoadUint64(&s.ShardSets)),
	}
}

// defaultMaxPayload bounds the per-shard buffer size; KCP/UDP packets never
// approach it, so one allocation per peer covers the session's lifetime.
const defaultMaxPayload = 2048

type peer struct {
	mu  sync.Mutex
	enc *encoder
	dec *decoder
}

// queuedPacket is a decoded/recovered payload awaiting delivery through
// ReadFrom: a shard set can yield up to k payloads at once, but ReadFrom
// hands them to the caller one at a time.
type queuedPacket struct {
	addr net.Addr
	data []byte
}

// Conn wraps a net.PacketConn with packet-level FEC: Write-side traffic is
// grouped into k-of-n shard sets and the parity shards are sent alongside
// the data; read-side traffic is reassembled per shard set and missing
// data shards are recovered transparently before being handed to the
// caller. It is meant to sit below kcp-go's ARQ layer (kcp-go's own
// internal FEC disabled via dataShards=0, parityShards=0) where losses
// are genuine and worth spending parity bandwidth to recover.
type Conn struct {
	net.PacketConn
	k, n, m int

	mu    sync.Mutex
	peers map[string]*peer
	queue []queuedPacket

	Counters Counters
}

// NewConn wraps conn with FEC parameterized by k data shards, n total
// shards (n-k parity shards) and GF(2^m) field width m.
func NewConn(conn net.PacketConn, k, n, m int) *Conn {
	return &Conn{
		PacketConn: conn,
		k:          k,
		n:          n,
		m:          m,
		peers:      make(map[string]*peer),
	}
}

func (c *Conn) peerFor(addr net.Addr) (*peer, error) {
	key := addr.String()
	c.mu.Lock()
	p, ok := c.peers[key]
	if !ok {
		enc, err := newEncoder(c.k, c.n, c.m, defaultMaxPayload, &c.Counters)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		dec, err := newDecoder(c.k, c.n, c.m, &c.Counters)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		p = &peer{enc: enc, dec: dec}
		c.peers[key] = p
	}
	c.mu.Unlock()
	return p, nil
}

// WriteTo frames b as the next data shard of addr's current shard set.
// Nothing is sent until the set holds k data shards; the call that
// completes it sends all n framed shards, data then parity.
func (c *Conn) WriteTo(b []byte, addr net.Addr) (int, error) {
	p, err := c.peerFor(addr)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	shards := p.enc.encode(b)
	p.mu.Unlock()

	for _, s := range shards {
		if s == nil {
			continue
		}
		if _, err := c.PacketConn.WriteTo(s, addr); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// ReadFrom reads raw shards from the underlying connection and feeds each
// to the originating peer's decoder. Once a shard set reaches k shards, the
// first of its data payloads (directly received or recovered) is copied
// into p and returned, and the rest are queued for later calls. A shard
// that does not complete a set yields nothing and is skipped by reading
// again.
func (c *Conn) ReadFrom(p []byte) (int, net.Addr, error) {
	buf := make([]byte, defaultMaxPayload+headerSize)
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			qp := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return copy(p, qp.data), qp.addr, nil
		}
		c.mu.Unlock()

		n, addr, err := c.PacketConn.ReadFrom(buf)
		if err != nil {
			return 0, addr, err
		}
		if n < headerSize {
			continue
		}
		peerState, err := c.peerFor(addr)
		if err != nil {
			continue
		}

		peerState.mu.Lock()
		recovered := peerState.dec.decode(shard(buf[:n]))
		peerState.mu.Unlock()

		if len(recovered) == 0 {
			continue
		}

		c.mu.Lock()
		first := -1
		for i, payload := range recovered {
			if payload == nil {
				continue
			}
			if first == -1 {
				first = i
				continue
			}
			c.queue = append(c.queue, queuedPacket{addr: addr, data: payload})
		}
		c.mu.Unlock()
		if first != -1 {
			return copy(p, recovered[first]), addr, nil
		}
	}
}
