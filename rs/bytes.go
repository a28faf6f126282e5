package rs

// EncodeSymbol is the byte-oriented entry point: src holds k source
// symbols as raw bytes, out receives the symbol at index. For m <= 8, one
// element is one byte; for m > 8, len(src[i]) and len(out) must be even
// (two bytes per element, little-endian) and are viewed as uint16 elements.
func (c *Codec) EncodeSymbol(src [][]byte, out []byte, index int) error {
	if c.M <= 8 {
		srcEl := make([][]uint16, len(src))
		for i, s := range src {
			srcEl[i] = bytesToElements(s)
		}
		outEl := make([]uint16, len(out))
		if err := c.EncodeElements(srcEl, outEl, index, len(out)); err != nil {
			return err
		}
		elementsToBytes(outEl, out)
		return nil
	}
	srcEl := make([][]uint16, len(src))
	for i, s := range src {
		srcEl[i] = bytesToUint16(s)
	}
	outEl := make([]uint16, len(out)/2)
	if err := c.EncodeElements(srcEl, outEl, index, len(out)/2); err != nil {
		return err
	}
	uint16ToBytes(outEl, out)
	return nil
}

// DecodeBytes is the byte-oriented form of DecodeElements: pkt holds k
// received symbols as raw bytes, recovered in place.
func (c *Codec) DecodeBytes(pkt [][]byte, index []int) error {
	if c.M <= 8 {
		pktEl := make([][]uint16, len(pkt))
		sz := 0
		for i, p := range pkt {
			pktEl[i] = bytesToElements(p)
			if i == 0 {
				sz = len(p)
			}
		}
		if err := c.DecodeElements(pktEl, index, sz); err != nil {
			return err
		}
		for i, p := range pkt {
			elementsToBytes(pktEl[i], p)
		}
		return nil
	}
	pktEl := make([][]uint16, len(pkt))
	sz := 0
	for i, p := range pkt {
		pktEl[i] = bytesToUint16(p)
		if i == 0 {
			sz = len(p) / 2
		}
	}
	if err := c.DecodeElements(pktEl, index, sz); err != nil {
		return err
	}
	for i, p := range pkt {
		uint16ToBytes(pktEl[i], p)
	}
	return nil
}

// bytesToElements views raw bytes as one field element per byte, the
// storage convention used when m <= 8.
func bytesToElements(b []byte) []uint16 {
	out := make([]uint16, len(b))
	for i, v := range b {
		out[i] = uint16(v)
	}
	return out
}

// elementsToBytes writes back m <= 8 elements (each in [0,255]) as bytes.
func elementsToBytes(el []uint16, b []byte) {
	for i := range b {
		b[i] = byte(el[i])
	}
}

// bytesToUint16 views raw bytes as little-endian uint16 elements, the
// storage convention used when m > 8.
func bytesToUint16(b []byte) []uint16 {
	n := len(b) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return out
}

// uint16ToBytes writes back elements as little-endian byte pairs.
func uint16ToBytes(el []uint16, b []byte) {
	for i, v := range el {
		b[2*i] = byte(v)
		b[2*i+1] = byte(v >> 8)
	}
}
