package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := New(2)
	t.Cleanup(bus.Close)

	received := make(chan WakeDetectedEvent, 1)
	if err := bus.OnWakeDetected(func(ev WakeDetectedEvent) {
		received <- ev
	}); err != nil {
		t.Fatalf("subscribe returned error: %v", err)
	}

	bus.PublishWakeDetected(WakeDetectedEvent{
		ConversationID: "conv-1",
		Transcript:     "hey cipher",
		Response:       "Yes?",
		At:             time.Now(),
	})

	select {
	case ev := <-received:
		if ev.ConversationID != "conv-1" || ev.Response != "Yes?" {
			t.Fatalf("unexpected event payload: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := New(1)
	t.Cleanup(bus.Close)

	block := make(chan struct{})
	var once sync.Once
	_ = bus.Subscribe(TopicConversationEnded, func(ev ConversationEndedEvent) {
		once.Do(func() { <-block })
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			bus.PublishConversationEnded(ConversationEndedEvent{ConversationID: "c", Reason: "end_phrase"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
	close(block)
}

func TestSubscriberPanicDoesNotKillWorker(t *testing.T) {
	bus := New(1)
	t.Cleanup(bus.Close)

	_ = bus.Subscribe(TopicRecognizerError, func(ev RecognizerErrorEvent) {
		panic("subscriber bug")
	})

	got := make(chan struct{}, 1)
	_ = bus.OnConversationPaused(func(ev ConversationPausedEvent) {
		got <- struct{}{}
	})

	bus.PublishRecognizerError(RecognizerErrorEvent{Code: "network"})
	bus.PublishConversationPaused(ConversationPausedEvent{ConversationID: "c", Response: "Pausing for now."})

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after subscriber panic")
	}
}

func TestHasSubscriber(t *testing.T) {
	bus := New(1)
	t.Cleanup(bus.Close)

	if bus.HasSubscriber(TopicWakeDetected) {
		t.Fatal("expected no subscribers initially")
	}
	fn := func(ev WakeDetectedEvent) {}
	_ = bus.OnWakeDetected(fn)
	if !bus.HasSubscriber(TopicWakeDetected) {
		t.Fatal("expected subscriber to be registered")
	}
	_ = bus.Unsubscribe(TopicWakeDetected, fn)
	if bus.HasSubscriber(TopicWakeDetected) {
		t.Fatal("expected subscriber to be removed")
	}
}
