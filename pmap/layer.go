package pmap

import (
	"encoding/binary"

	"github.com/minio/blake2b-simd"
)

// keyLayer computes the layer (ideal distance from the leaves) of the given
// key in a tree with the given branch factor.
func keyLayer(key []byte, branchFactor uint) uint8 {
	sum := blake2b.Sum256(key)
	return uintLayer(binary.BigEndian.Uint64(sum[:8]), branchFactor)
}

func uintLayer(v uint64, branchFactor uint) uint8 {
	layer := uint8(0)
	for ; v != 0 && v%uint64(branchFactor) == 0; layer++ {
		v /= uint64(branchFactor)
	}
	return layer
}

// heightLimit is floor(log_b(size)): the tallest a tree of the given size
// is allowed to be.
func heightLimit(size int, branchFactor uint) uint8 {
	if size <= 0 {
		return 0
	}
	n := uint64(size)
	b := uint64(branchFactor)
	h := uint8(0)
	for p := b; p <= n; p *= b {
		h++
		if p > n/b {
			break
		}
	}
	return h
}
