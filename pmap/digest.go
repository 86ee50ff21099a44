package pmap

import (
	"encoding/binary"
	"hash"

	"github.com/minio/blake2b-simd"
)

// Digest returns a Merkle digest of the map's entries. Maps holding the same
// entries have the same shape, so they have the same digest regardless of
// the order in which the entries were written.
func (m Map) Digest() [32]byte {
	return m.root.digest()
}

func (n *node) digest() [32]byte {
	var sum [32]byte
	if n == nil {
		return sum
	}
	h := blake2b.New256()
	var buf []byte
	buf = appendLength(buf, len(n.keys))
	for i := range n.keys {
		buf = appendBytes(buf, n.keys[i])
		buf = appendBytes(buf, n.values[i])
	}
	writeTo(h, buf)
	for _, link := range n.links {
		child := link.digest()
		writeTo(h, child[:])
	}
	copy(sum[:], h.Sum(nil))
	return sum
}

func appendLength(buf []byte, n int) []byte {
	var tmpbuf [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(tmpbuf[:], uint64(n))
	return append(buf, tmpbuf[:l]...)
}

func appendBytes(buf []byte, body []byte) []byte {
	buf = appendLength(buf, len(body))
	return append(buf, body...)
}

func writeTo(h hash.Hash, b []byte) {
	// hash.Hash.Write never returns an error
	_, _ = h.Write(b)
}
