package hash

import "encoding/binary"

// fingerprintSeed is the seed CurseForge uses for file fingerprints.
const fingerprintSeed = 1

// Fingerprint computes the CurseForge file fingerprint: 32-bit MurmurHash2 with
// seed 1 over data with every tab, LF, CR and space byte removed. The filter
// must stay bit-exact or every mod download fails verification.
func Fingerprint(data []byte) uint32 {
	return murmur2(stripWhitespace(data), fingerprintSeed)
}

func stripWhitespace(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case 9, 10, 13, 32:
			continue
		}
		out = append(out, b)
	}
	return out
}

func murmur2(data []byte, seed uint32) uint32 {
	const (
		m = 0x5bd1e995
		r = 24
	)

	h := seed ^ uint32(len(data))
	for len(data) >= 4 {
		k := binary.LittleEndian.Uint32(data)
		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k
		data = data[4:]
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}
