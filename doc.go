/*
Package snapkv provides an in-memory, multi-version key-value store
with serializable transactions.

Data lives in a persistent map (package pmap) whose nodes are never
modified once published. Every committed write transaction produces a
new version that shares all unmodified subtrees with its predecessor,
so readers hold a consistent snapshot for as long as they like without
taking locks, and writers never copy more than the path to the keys
they touch.

# Transactions

A read transaction captures the current version when it begins and
sees exactly that version until it ends; it never blocks and is never
blocked. A write transaction works on a private copy-on-write view of
the current version. Only one write transaction is admitted at a time,
so the committed history is trivially serializable: commit publishes
the working map as the next version with a single atomic pointer swap,
and readers observe either all of a transaction's changes or none.

How a second writer waits for the first is chosen with WithWritePolicy:
Block waits until the gate is free or the context ends, FailFast
returns ErrWriteContention immediately, and Timeout waits a bounded
time.

Transactions should be ended with Commit or Rollback; View and Update
do that automatically. A write transaction that is dropped without
being ended is rolled back when the garbage collector finds it, which
logs a warning.

# History and change feed

WithRetainVersions keeps recent versions reachable for BeginReadAt.
WithChangeFeed publishes the entries changed by every commit as
watermill messages, see package changefeed.
*/
package snapkv
