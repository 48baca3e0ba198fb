package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Bus is an explicit event bus handle constructed once at startup and passed
// to collaborators. Publishes are dispatched by a worker pool so that
// subscribers can never block the publisher.
type Bus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan pendingEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

type pendingEvent struct {
	topic string
	args  []interface{}
}

// New creates a started Bus with the given number of dispatch workers.
func New(workerNum int) *Bus {
	if workerNum <= 0 {
		workerNum = 4
	}

	b := &Bus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan pendingEvent, 256),
		stopChan:  make(chan struct{}),
	}

	for i := 0; i < b.workerNum; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopChan:
			return
		case ev := <-b.workChan:
			func() {
				defer func() {
					// Subscriber panics must not take down the dispatcher.
					_ = recover()
				}()
				b.bus.Publish(ev.topic, ev.args...)
			}()
		}
	}
}

// Publish enqueues an event for asynchronous delivery. When the queue is full
// the event is dropped; notification is best-effort by contract.
func (b *Bus) Publish(topic string, args ...interface{}) {
	select {
	case b.workChan <- pendingEvent{topic: topic, args: args}:
	case <-b.stopChan:
	default:
	}
}

// PublishSync delivers an event on the caller's goroutine. Used by tests.
func (b *Bus) PublishSync(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasSubscriber reports whether any handler is registered for the topic.
func (b *Bus) HasSubscriber(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Close stops the dispatch workers. Pending queued events are discarded.
func (b *Bus) Close() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	b.wg.Wait()
}
