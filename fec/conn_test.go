package fec

import (
	"net"
	"testing"
	"time"
)

func TestConnRecoversDroppedShards(t *testing.T) {
	lc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer lc.Close()

	// A lossy passthrough: drops every 2nd datagram the receiver reads
	// (data shard 1 and parity shard 3 of the 3-of-5 set) so the
	// receiver's decoder must lean on parity shards.
	rc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	sender := NewConn(lc, 3, 5, 8)
	receiver := NewConn(&lossyConn{PacketConn: rc, dropEvery: 2}, 3, 5, 8)

	dst := rc.LocalAddr()
	messages := [][]byte{
		[]byte("alpha-message"),
		[]byte("bravo-message"),
		[]byte("charlie-msg"),
	}
	for _, m := range messages {
		if _, err := sender.WriteTo(m, dst); err != nil {
			t.Fatal(err)
		}
	}

	got := make([][]byte, 0, len(messages))
	rc.SetReadDeadline(time.Now().Add(3 * time.Second))
	for i := 0; i < len(messages); i++ {
		buf := make([]byte, 2048)
		n, _, err := receiver.ReadFrom(buf)
		if err != nil {
			t.Fatalf("ReadFrom: %v", err)
		}
		got = append(got, append([]byte(nil), buf[:n]...))
	}

	for i, m := range messages {
		if string(got[i]) != string(m) {
			t.Fatalf("message %d: got %q want %q", i, got[i], m)
		}
	}
}

// lossyConn drops every Nth ReadFrom result transparently to simulate shard
// loss on the wire below the FEC layer.
type lossyConn struct {
	net.PacketConn
	dropEvery int
	count     int
}

func (l *lossyConn) ReadFrom(p []byte) (int, net.Addr, error) {
	for {
		n, addr, err := l.PacketConn.ReadFrom(p)
		if err != nil {
			return n, addr, err
		}
		l.count++
		if l.dropEvery > 0 && l.count%l.dropEvery == 0 {
			continue
		}
		return n, addr, err
	}
}
