package common

import "encoding/binary"

// All multi-byte values are little endian, matching the on-chain program.

func Uint64ToBytes(u uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, u)

	return buf
}

func Int64ToBytes(i int64) []byte {
	//nolint:gosec // Intentional conversion for binary encoding
	return Uint64ToBytes(uint64(i))
}

func BytesToInt64(b []byte, _default int64) int64 {
	if len(b) == 0 {
		return _default
	}

	//nolint:gosec // Intentional conversion from binary encoding
	return int64(binary.LittleEndian.Uint64(b))
}
