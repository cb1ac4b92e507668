// Package transport defines the messaging boundary the sender, the rpc layer
// and the publisher facade talk to.
//
// A MessagingService moves opaque payloads tagged with an int32 topic. Start
// and Shutdown are idempotent; Send on a service that is not running fails
// with errs.ErrTransport.
package transport

import (
	"context"
	"sync"
)

// Receiver consumes payloads delivered for a topic. The payload is only valid
// for the duration of the call.
type Receiver interface {
	Receive(topic int32, payload []byte)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(topic int32, payload []byte)

// Receive implements Receiver.
func (f ReceiverFunc) Receive(topic int32, payload []byte) {
	f(topic, payload)
}

// MessagingService is an asynchronous topic based transport.
type MessagingService interface {
	Send(ctx context.Context, topic int32, payload []byte) error
	RegisterReceiver(topic int32, r Receiver) error
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Dispatcher fans payloads out to the receivers registered per topic.
type Dispatcher struct {
	mu        sync.RWMutex
	receivers map[int32][]Receiver
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{receivers: make(map[int32][]Receiver)}
}

// Register adds r for topic. A nil receiver is ignored.
func (d *Dispatcher) Register(topic int32, r Receiver) {
	if r == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receivers[topic] = append(d.receivers[topic], r)
}

// Has reports whether any receiver is registered for topic.
func (d *Dispatcher) Has(topic int32) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.receivers[topic]) > 0
}

// Dispatch delivers payload to every receiver of topic and returns how many
// received it. Receivers run on the caller's goroutine without the
// dispatcher lock held.
func (d *Dispatcher) Dispatch(topic int32, payload []byte) int {
	d.mu.RLock()
	rs := d.receivers[topic]
	d.mu.RUnlock()

	for _, r := range rs {
		r.Receive(topic, payload)
	}

	return len(rs)
}
