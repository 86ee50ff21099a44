package snapkv

import (
	"context"
	"errors"
	"fmt"
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

	"github.com/jrhy/snapkv/changefeed"
)

func TestChangeFeed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, changefeed.NewLogAdapter(zerolog.Nop()))
	defer pubSub.Close()
	messages, err := pubSub.Subscribe(ctx, "kv")
	require.NoError(t, err)

	db := openTestDB(t, WithChangeFeed(pubSub, "kv"))
	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		if err := tx.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}
		return tx.Set([]byte("b"), []byte("2"))
	}))
	// no-op commit publishes nothing
	require.NoError(t, db.Update(ctx, func(tx *Tx) error { return nil }))
	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		if err := tx.Set([]byte("a"), []byte("3")); err != nil {
			return err
		}
		return tx.Delete([]byte("b"))
	}))

	// delivery order is up to the publisher; the version restores commit order
	var got []changefeed.Event
	for len(got) < 2 {
		select {
		case msg := <-messages:
			msg.Ack()
			ev, err := changefeed.Decode(msg)
			require.NoError(t, err)
			got = append(got, ev)
		case <-ctx.Done():
			t.Fatalf("timed out after %d change events", len(got))
		}
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Version < got[j].Version })

	assert.Equal(t, []changefeed.Event{
		{
			Version: 1,
			Parent:  0,
			Changes: []changefeed.Change{
				{Op: changefeed.OpPut, Key: []byte("a"), Value: []byte("1")},
				{Op: changefeed.OpPut, Key: []byte("b"), Value: []byte("2")},
			},
		},
		{
			Version: 2,
			Parent:  1,
			Changes: []changefeed.Change{
				{Op: changefeed.OpPut, Key: []byte("a"), Value: []byte("3"), Previous: []byte("1")},
				{Op: changefeed.OpDelete, Key: []byte("b"), Previous: []byte("2")},
			},
		},
	}, got)
}

// recordingPublisher keeps messages in the order Publish was called.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []*message.Message
}

func (p *recordingPublisher) Publish(_ string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, messages...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestChangeFeedPublishesInCommitOrder(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	db := openTestDB(t, WithChangeFeed(pub, "kv"))

	const writers = 4
	const commits = 20
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < commits; i++ {
				err := db.Update(ctx, func(tx *Tx) error {
					return tx.Set([]byte(fmt.Sprintf("w%d", w)), []byte(strconv.Itoa(i)))
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.messages, writers*commits)
	for i, msg := range pub.messages {
		ev, err := changefeed.Decode(msg)
		require.NoError(t, err)
		want := uint64(i + 1)
		require.Equal(t, want, ev.Version)
		require.Equal(t, want-1, ev.Parent)
		require.Equal(t, strconv.FormatUint(want, 10), msg.Metadata.Get(changefeed.VersionMetadataKey))
	}
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(string, ...*message.Message) error { return errors.New("unreachable") }
func (brokenPublisher) Close() error                              { return nil }

func TestChangeFeedFailureKeepsCommit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, WithChangeFeed(brokenPublisher{}, ""))
	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		return tx.Set([]byte("a"), []byte("1"))
	}))
	require.Equal(t, uint64(1), db.CurrentVersion())
	require.Equal(t, uint64(1), db.Stats().ChangeFeedErrors)
	require.NoError(t, db.View(func(tx *Tx) error {
		v, ok := mustGet(t, tx, "a")
		require.True(t, ok)
		require.Equal(t, "1", v)
		return nil
	}))
}
