// Package memory keeps published events in memory, for single-process
// deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// Publisher records completion events instead of sending them anywhere.
// Tests inspect the recorded slice; a single-process deployment simply has
// no external subscriber to notify.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a sequence-derived pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", len(p.messages)), nil
}

// Messages returns a copy of every recorded publish, in order.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// MessagesFor returns the recorded publishes for one topic.
func (p *Publisher) MessagesFor(topic string) []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []PublishedMessage
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
