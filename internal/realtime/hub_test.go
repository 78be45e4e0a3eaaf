package realtime

import (
	"testing"
	"time"
)

func TestPublishReachesOnlySubscribersOfTheFrame(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	subA := hub.Subscribe(1)
	subB := hub.Subscribe(2)

	hub.Publish(Event{Type: EventPixel, FrameID: 1, Timestamp: time.Now()})

	select {
	case ev := <-subA.Events():
		if ev.FrameID != 1 {
			t.Fatalf("frame id = %d", ev.FrameID)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber of frame 1 received nothing")
	}

	select {
	case ev := <-subB.Events():
		t.Fatalf("subscriber of frame 2 received %+v", ev)
	default:
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	done := make(chan struct{})
	go func() {
		hub.Publish(Event{Type: EventPixel, FrameID: 99})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked with no subscribers")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe(1)
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(Event{Type: EventPixel, FrameID: 1})
	}
	if sub.Dropped() != 10 {
		t.Fatalf("dropped = %d, want 10", sub.Dropped())
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe(1)
	hub.Unsubscribe(sub)

	if _, open := <-sub.Events(); open {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	if hub.SubscriberCount(1) != 0 {
		t.Fatalf("subscriber count = %d", hub.SubscriberCount(1))
	}

	// Publishing after unsubscribe must not panic or deliver.
	hub.Publish(Event{Type: EventPixel, FrameID: 1})
}

func TestBridgeSeesLocalEventsOnly(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var bridged []Event
	hub.SetBridge(func(ev Event) { bridged = append(bridged, ev) })

	hub.Publish(Event{Type: EventFreeze, FrameID: 3})
	hub.publishLocal(Event{Type: EventFreeze, FrameID: 3})

	if len(bridged) != 1 {
		t.Fatalf("bridge saw %d events, want 1", len(bridged))
	}
}
