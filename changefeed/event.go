package changefeed

import (
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
)

// VersionMetadataKey is the message metadata entry holding the committed
// version.
const VersionMetadataKey = "version"

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Op is the kind of a change.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change is one entry written or removed by a commit. Previous is nil when
// the key was absent before the commit.
type Change struct {
	Op       Op     `json:"op"`
	Key      []byte `json:"key"`
	Value    []byte `json:"value,omitempty"`
	Previous []byte `json:"previous,omitempty"`
}

// Event describes a single commit: the version it produced, the version it
// replaced, and its changes in ascending key order.
type Event struct {
	Version uint64   `json:"version"`
	Parent  uint64   `json:"parent"`
	Changes []Change `json:"changes"`
}

// Encode wraps the event in a new message.
func Encode(ev Event) (*message.Message, error) {
	payload, err := jsonCodec.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(VersionMetadataKey, strconv.FormatUint(ev.Version, 10))
	return msg, nil
}

// Decode parses an event previously produced by Encode.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := jsonCodec.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event %s: %w", msg.UUID, err)
	}
	if v := msg.Metadata.Get(VersionMetadataKey); v != "" && v != strconv.FormatUint(ev.Version, 10) {
		return Event{}, fmt.Errorf("event %s: metadata version %s does not match payload version %d", msg.UUID, v, ev.Version)
	}
	return ev, nil
}
