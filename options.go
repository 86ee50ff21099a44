package snapkv

import (
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// WritePolicy decides what BeginWrite does while another write
// transaction is open.
type WritePolicy int

const (
	// Block waits until the gate is free or the context is done.
	Block WritePolicy = iota
	// FailFast returns ErrWriteContention immediately.
	FailFast
	// Timeout waits at most the configured write timeout.
	Timeout
)

func (p WritePolicy) String() string {
	switch p {
	case Block:
		return "block"
	case FailFast:
		return "fail-fast"
	case Timeout:
		return "timeout"
	}
	return fmt.Sprintf("WritePolicy(%d)", int(p))
}

// ParseWritePolicy accepts the names produced by WritePolicy.String.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "fail-fast", "failfast", "fail_fast":
		return FailFast, nil
	case "timeout":
		return Timeout, nil
	}
	return 0, fmt.Errorf("unknown write policy %q", s)
}

// DefaultWriteTimeout applies when the Timeout policy is chosen without a
// duration.
const DefaultWriteTimeout = time.Second

type options struct {
	writePolicy    WritePolicy
	writeTimeout   time.Duration
	branchFactor   uint
	retainVersions int
	paranoid       bool
	logger         zerolog.Logger
	registerer     prometheus.Registerer
	feedPublisher  message.Publisher
	feedTopic      string
}

func defaultOptions() options {
	return options{
		writePolicy:  Block,
		writeTimeout: DefaultWriteTimeout,
		logger:       zerolog.Nop(),
	}
}

// Option configures a DB.
type Option func(*options)

// WithWritePolicy chooses how BeginWrite waits for the write gate.
func WithWritePolicy(p WritePolicy) Option {
	return func(o *options) { o.writePolicy = p }
}

// WithWriteTimeout selects the Timeout policy with the given bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writePolicy = Timeout
		o.writeTimeout = d
	}
}

// WithBranchFactor sets the branch factor of the underlying maps. Zero
// keeps the default.
func WithBranchFactor(b uint) Option {
	return func(o *options) { o.branchFactor = b }
}

// WithRetainVersions keeps up to n recent versions available to
// BeginReadAt.
func WithRetainVersions(n int) Option {
	return func(o *options) { o.retainVersions = n }
}

// WithParanoid validates the structure of every working map before it is
// published.
func WithParanoid(on bool) Option {
	return func(o *options) { o.paranoid = on }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the database's metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithChangeFeed publishes every commit's changes to topic. The publisher
// remains owned by the caller.
func WithChangeFeed(publisher message.Publisher, topic string) Option {
	return func(o *options) {
		o.feedPublisher = publisher
		o.feedTopic = topic
	}
}

func (o *options) validate() error {
	switch o.writePolicy {
	case Block, FailFast:
	case Timeout:
		if o.writeTimeout <= 0 {
			return fmt.Errorf("write timeout must be positive, got %v", o.writeTimeout)
		}
	default:
		return fmt.Errorf("invalid write policy %v", o.writePolicy)
	}
	if o.branchFactor == 1 {
		return fmt.Errorf("branch factor must be at least 2")
	}
	if o.retainVersions < 0 {
		return fmt.Errorf("retained versions must not be negative, got %d", o.retainVersions)
	}
	return nil
}
