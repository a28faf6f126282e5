package gf

import "unsafe"

// u16Bytes reinterprets a []uint16 as the []byte view over the same memory,
// letting the nibble-split path hand its partial-product slices to
// xorsimd.Encode (a []byte bulk-XOR primitive) without a copy. Field
// elements are XORed independently of byte order on both sides of any
// given AddMul call, so this is safe regardless of host endianness.
func u16Bytes(s []uint16) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*2)
}
