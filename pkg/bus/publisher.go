package bus

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/focus"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

// DefaultSubject is the subject prefix focus changes are published under.
const DefaultSubject = "regionfocus.focus"

// FocusPublisher is a focus.Observer that publishes every change as JSON on
// "<prefix>.<kind>".
type FocusPublisher struct {
	bus    MessageBus
	prefix string
	log    *logging.Logger
	failed atomic.Uint64
}

var _ focus.Observer = (*FocusPublisher)(nil)

// NewFocusPublisher publishes on b under prefix. An empty prefix uses
// DefaultSubject.
func NewFocusPublisher(b MessageBus, prefix string, log *logging.Logger) *FocusPublisher {
	if prefix == "" {
		prefix = DefaultSubject
	}
	return &FocusPublisher{bus: b, prefix: prefix, log: log}
}

// Subject returns the subject a change of kind is published on.
func (p *FocusPublisher) Subject(kind focus.ChangeKind) string {
	return p.prefix + "." + string(kind)
}

// FocusChanged implements focus.Observer. Failures are logged and counted;
// they never reach the engine.
func (p *FocusPublisher) FocusChanged(c focus.Change) {
	if err := p.Publish(context.Background(), c); err != nil {
		p.failed.Add(1)
		_ = p.log.Warn(logging.CategoryBus, "publish_failed", c.RegionID, err.Error(), map[string]any{
			"subject": p.Subject(c.Kind),
		})
	}
}

// Publish encodes and sends one change.
func (p *FocusPublisher) Publish(ctx context.Context, c focus.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBusPublish, "encode focus change")
	}
	if err := p.bus.Publish(ctx, p.Subject(c.Kind), data); err != nil {
		return errors.Wrap(err, errors.ErrCodeBusPublish, "publish focus change").
			WithContext("subject", p.Subject(c.Kind))
	}
	return nil
}

// Failed returns the number of changes that could not be published.
func (p *FocusPublisher) Failed() uint64 {
	return p.failed.Load()
}

// SubscribeChanges decodes focus changes published under prefix and passes
// them to fn. Undecodable messages are skipped.
func SubscribeChanges(ctx context.Context, b MessageBus, prefix string, fn func(focus.Change)) (Subscription, error) {
	if prefix == "" {
		prefix = DefaultSubject
	}
	return b.Subscribe(ctx, prefix+".*", func(msg *Message) {
		var c focus.Change
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			return
		}
		fn(c)
	})
}
