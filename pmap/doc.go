/*
Package pmap provides an immutable, ordered map from byte-string keys
to byte-string values, implemented as a Merkle Search Tree (MST)
with path copying.

Every mutation returns a new Map. The receiver is never modified:
only the nodes on the path from the root to the affected key are
rebuilt, and every other subtree is shared by reference with the
previous version. Holding on to a Map therefore holds on to a frozen
snapshot, which any number of goroutines may read without locking.

# Shape

MSTs are similar to persistent B-Trees, except an entry's layer
(distance from the leaves) is computed deterministically from a hash
of its key. There are no rotations or rebalancing; the tree has the
same shape no matter what order entries were inserted in, so two maps
holding the same entries have the same Digest.

A node at level l below the root holds exactly the keys whose layer
is l. The root, at the map's height h, holds every key whose layer is
at least h. The height is kept at min(maximum key layer, floor(log_b
n)) so a rare high-layer key does not stretch a small tree.

See "Merkle Search Trees: Efficient State-Based CRDTs in Open
Networks", Alex Auvolat and François Taïani, 2019.
*/
package pmap
