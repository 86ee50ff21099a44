package changefeed

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEncodeDecode(t *testing.T) {
	ev := Event{
		Version: 7,
		Parent:  6,
		Changes: []Change{
			{Op: OpPut, Key: []byte("a"), Value: []byte("1")},
			{Op: OpPut, Key: []byte("b"), Value: []byte("2"), Previous: []byte("0")},
			{Op: OpDelete, Key: []byte("c"), Previous: []byte("3")},
		},
	}
	msg, err := Encode(ev)
	require.NoError(t, err)
	assert.Equal(t, "7", msg.Metadata.Get(VersionMetadataKey))
	assert.NotEmpty(t, msg.UUID)

	got, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeRejectsMismatchedVersion(t *testing.T) {
	msg, err := Encode(Event{Version: 3, Changes: []Change{{Op: OpPut, Key: []byte("k")}}})
	require.NoError(t, err)
	msg.Metadata.Set(VersionMetadataKey, "4")
	_, err = Decode(msg)
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(message.NewMessage("x", []byte("{not json")))
	assert.Error(t, err)
}

func TestNewRequiresPublisher(t *testing.T) {
	_, err := New(nil, "t")
	assert.Error(t, err)
}

func TestFeedDefaultTopic(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, NewLogAdapter(zerolog.Nop()))
	defer pubSub.Close()
	f, err := New(pubSub, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, f.Topic())
}

func TestFeedDeliversToSubscribers(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, NewLogAdapter(zerolog.Nop()))
	defer pubSub.Close()
	f, err := New(pubSub, "changes")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, "changes")
	require.NoError(t, err)

	for v := uint64(1); v <= 3; v++ {
		require.NoError(t, f.Publish(Event{
			Version: v,
			Parent:  v - 1,
			Changes: []Change{{Op: OpPut, Key: []byte{byte(v)}, Value: []byte("x")}},
		}))
	}
	// empty events are skipped
	require.NoError(t, f.Publish(Event{Version: 4, Parent: 3}))

	// gochannel may deliver out of order; the version orders them
	var got []Event
	for len(got) < 3 {
		select {
		case msg := <-messages:
			ev, err := Decode(msg)
			require.NoError(t, err)
			got = append(got, ev)
			msg.Ack()
		case <-ctx.Done():
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Version < got[j].Version })
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.Version)
		assert.Equal(t, uint64(i), ev.Parent)
	}
	select {
	case msg := <-messages:
		t.Fatalf("unexpected message %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

// recordingPublisher remembers the order of Publish calls.
type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	messages []*message.Message
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range messages {
		p.topics = append(p.topics, topic)
		p.messages = append(p.messages, msg)
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) versions(t *testing.T) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var versions []uint64
	for _, msg := range p.messages {
		ev, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, strconv.FormatUint(ev.Version, 10), msg.Metadata.Get(VersionMetadataKey))
		versions = append(versions, ev.Version)
	}
	return versions
}

func TestFeedPublishCallOrder(t *testing.T) {
	pub := &recordingPublisher{}
	f, err := New(pub, "changes")
	require.NoError(t, err)
	for v := uint64(1); v <= 5; v++ {
		require.NoError(t, f.Publish(Event{
			Version: v,
			Parent:  v - 1,
			Changes: []Change{{Op: OpDelete, Key: []byte{byte(v)}}},
		}))
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, pub.versions(t))
	assert.Equal(t, []string{"changes", "changes", "changes", "changes", "changes"}, pub.topics)
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func TestFeedPublishError(t *testing.T) {
	f, err := New(failingPublisher{}, "t")
	require.NoError(t, err)
	err = f.Publish(Event{Version: 1, Changes: []Change{{Op: OpDelete, Key: []byte("k")}}})
	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "version 1")
}
