package wsv

import (
	"encoding/binary"
	"fmt"
)

// Instruction payloads are opaque bytes at the block/consensus layer
// (§3: "wsv owns decoding Payload into a concrete instruction struct and
// executing it"). This file is the minimal length-prefixed codec wsv uses
// for that — simpler than the block package's CompactSize wire format
// since instruction payloads never cross the content-hash boundary raw
// (only their hash, via the transaction's signing bytes, does).
func appendStr(dst []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, s...)
	return dst
}

func readStr(b []byte, off *int) (string, error) {
	if *off+4 > len(b) {
		return "", fmt.Errorf("wsv: truncated string length")
	}
	n := binary.BigEndian.Uint32(b[*off : *off+4])
	*off += 4
	if *off+int(n) > len(b) {
		return "", fmt.Errorf("wsv: truncated string body")
	}
	s := string(b[*off : *off+int(n)])
	*off += int(n)
	return s, nil
}

func appendU64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func readU64(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, fmt.Errorf("wsv: truncated u64")
	}
	v := binary.BigEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}
