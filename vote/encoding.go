package vote

import (
	"encoding/binary"
	"errors"
)

// ErrDecodeFailed is returned by the Decode* helpers when a buffer is
// truncated or otherwise malformed.
var ErrDecodeFailed = errors.New("grandpa/vote: decode failed")

// compactUint appends x to dst as a SCALE-compatible little-endian
// compact integer: values that fit in a byte, two bytes, four bytes or
// eight bytes are mode-tagged with the low two bits, so the produced
// bytes match peers running the reference wire format.
func compactUint(dst []byte, x uint64) []byte {
	switch {
	case x < 1<<6:
		return append(dst, byte(x<<2))
	case x < 1<<14:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(x<<2)|0b01)
		return append(dst, b[:]...)
	case x < 1<<30:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(x<<2)|0b10)
		return append(dst, b[:]...)
	default:
		b := make([]byte, 9)
		b[0] = 0b11
		binary.LittleEndian.PutUint64(b[1:], x)
		return append(dst, b...)
	}
}

// encodeBlockInfo appends a fixed-width hash followed by a compact
// integer height.
func encodeBlockInfo(dst []byte, b BlockInfo) []byte {
	dst = append(dst, b.Hash[:]...)
	return compactUint(dst, b.Number)
}

// EncodeCompactUint is the exported form of compactUint, used by other
// packages (gossip messages, justifications) that serialize the wire
// format without duplicating the scheme.
func EncodeCompactUint(dst []byte, x uint64) []byte { return compactUint(dst, x) }

// DecodeCompactUint reads one compact integer from the front of b,
// returning its value and the number of bytes consumed.
func DecodeCompactUint(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrDecodeFailed
	}
	switch b[0] & 0b11 {
	case 0b00:
		return uint64(b[0] >> 2), 1, nil
	case 0b01:
		if len(b) < 2 {
			return 0, 0, ErrDecodeFailed
		}
		return uint64(binary.LittleEndian.Uint16(b[:2]) >> 2), 2, nil
	case 0b10:
		if len(b) < 4 {
			return 0, 0, ErrDecodeFailed
		}
		return uint64(binary.LittleEndian.Uint32(b[:4]) >> 2), 4, nil
	default:
		if len(b) < 9 {
			return 0, 0, ErrDecodeFailed
		}
		return binary.LittleEndian.Uint64(b[1:9]), 9, nil
	}
}

// EncodeBlockInfo is the exported form of encodeBlockInfo.
func EncodeBlockInfo(dst []byte, b BlockInfo) []byte { return encodeBlockInfo(dst, b) }

// DecodeBlockInfo reads a fixed-width hash followed by a compact
// integer height from the front of b, returning the block and the
// number of bytes consumed.
func DecodeBlockInfo(b []byte) (BlockInfo, int, error) {
	if len(b) < 32 {
		return BlockInfo{}, 0, ErrDecodeFailed
	}
	var info BlockInfo
	copy(info.Hash[:], b[:32])
	n, adv, err := DecodeCompactUint(b[32:])
	if err != nil {
		return BlockInfo{}, 0, err
	}
	info.Number = n
	return info, 32 + adv, nil
}

// SignedPayload returns the deterministic canonical encoding of
// (stageTag, message, round, setID) that must be Ed25519-signed and
// verified for a vote.
func SignedPayload(stage Kind, target BlockInfo, round RoundNumber, set SetID) []byte {
	buf := make([]byte, 0, 1+32+9+9+9)
	buf = append(buf, byte(stage))
	buf = encodeBlockInfo(buf, target)
	buf = compactUint(buf, uint64(round))
	buf = compactUint(buf, uint64(set))
	return buf
}
