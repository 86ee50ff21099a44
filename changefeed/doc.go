// Package changefeed publishes the entries changed by each committed
// transaction as watermill messages, one message per commit. Publish is
// called in commit order, but delivery order depends on the publisher;
// consumers that need commit order should sort by the "version" metadata
// (or Event.Version) and use Event.Parent to detect gaps.
package changefeed
