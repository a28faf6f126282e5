// Package fec layers packet-level forward error correction on top of a raw
// net.PacketConn, using the rs package's generator-matrix codec as the
// underlying erasure coder. Outgoing packets are grouped into k-of-n shard
// sets; on the receive side, shards are regrouped by sequence number in an
// out-of-order heap and missing data shards are recovered from parity
// once a set has enough of its members.
package fec

import "encoding/binary"

// Header layout: | seqid (4B) | type (2B) | payload... |
const (
	headerSize = 6
	typeData   = uint16(0xf1)
	typeParity = uint16(0xf2)
)

// shard is one received, length-prefix-free framed packet: the header plus
// whatever payload bytes the sender included (padded to the shard-set's
// maximum length before encoding).
type shard []byte

func (s shard) seqid() uint32 { return binary.LittleEndian.Uint32(s) }
func (s shard) typ() uint16   { return binary.LittleEndian.Uint16(s[4:]) }
func (s shard) payload() []byte {
	return s[headerSize:]
}

func sealHeader(buf []byte, seqid uint32, typ uint16) {
	binary.LittleEndian.PutUint32(buf, seqid)
	binary.LittleEndian.PutUint16(buf[4:], typ)
}
