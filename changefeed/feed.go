package changefeed

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DefaultTopic is used when a Feed is created without a topic.
const DefaultTopic = "snapkv.changes"

// Feed publishes commit events to a single topic.
type Feed struct {
	publisher message.Publisher
	topic     string
}

// New returns a feed publishing to topic through publisher.
func New(publisher message.Publisher, topic string) (*Feed, error) {
	if publisher == nil {
		return nil, errors.New("changefeed: nil publisher")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Feed{publisher: publisher, topic: topic}, nil
}

// Topic returns the topic events are published to.
func (f *Feed) Topic() string {
	return f.topic
}

// Publish encodes and publishes the event. Events without changes are not
// published.
func (f *Feed) Publish(ev Event) error {
	if len(ev.Changes) == 0 {
		return nil
	}
	msg, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := f.publisher.Publish(f.topic, msg); err != nil {
		return fmt.Errorf("publish version %d: %w", ev.Version, err)
	}
	return nil
}
