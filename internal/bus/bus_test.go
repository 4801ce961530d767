package bus

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe("query")
	defer b.Unsubscribe(sub)

	b.Publish(TopicQuerySubmitted, QueryEvent{RequestID: "r1", SQL: "SELECT 1"})

	select {
	case event := <-sub.Ch():
		if event.Topic != TopicQuerySubmitted {
			t.Fatalf("topic = %q, want %q", event.Topic, TopicQuerySubmitted)
		}
		payload := event.Payload.(QueryEvent)
		if payload.RequestID != "r1" {
			t.Fatalf("payload = %+v, want request r1", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_PrefixMatching(t *testing.T) {
	b := New()

	// Subscribe to "record." prefix.
	recordSub := b.Subscribe("record.")
	defer b.Unsubscribe(recordSub)

	// Subscribe to all events.
	allSub := b.Subscribe("")
	defer b.Unsubscribe(allSub)

	b.Publish(TopicRecordInserted, RecordChange{Key: 1})
	b.Publish(TopicQueryCompleted, QueryEvent{RequestID: "r1"})

	// recordSub should receive record.inserted but not query.completed.
	select {
	case event := <-recordSub.Ch():
		if event.Topic != TopicRecordInserted {
			t.Fatalf("topic = %q, want record.inserted", event.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for record event")
	}

	// recordSub should not have query.completed.
	select {
	case event := <-recordSub.Ch():
		t.Fatalf("unexpected event on recordSub: %v", event)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}

	// allSub should receive both.
	received := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allSub.Ch():
			received++
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for all event")
		}
	}
	if received != 2 {
		t.Fatalf("allSub received %d events, want 2", received)
	}
}

func TestBus_NonBlocking(t *testing.T) {
	b := New()
	sub := b.Subscribe("query")
	defer b.Unsubscribe(sub)

	// Fill the buffer.
	for i := 0; i < defaultBufferSize+10; i++ {
		b.Publish(TopicQuerySubmitted, i)
	}

	// Should not deadlock. Drain what we can.
	count := 0
	for {
		select {
		case <-sub.Ch():
			count++
		default:
			goto done
		}
	}
done:
	if count != defaultBufferSize {
		t.Fatalf("received %d events, expected %d (buffer size)", count, defaultBufferSize)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe("query")

	if b.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", b.SubscriberCount())
	}

	b.Unsubscribe(sub)

	if b.SubscriberCount() != 0 {
		t.Fatalf("count = %d, want 0", b.SubscriberCount())
	}

	// Channel should be closed.
	_, ok := <-sub.Ch()
	if ok {
		t.Fatal("expected closed channel")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	b := New()
	sub1 := b.Subscribe("record")
	sub2 := b.Subscribe("record")
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish(TopicRecordUpdated, "shared")

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case event := <-sub.Ch():
			if event.Payload != "shared" {
				t.Fatalf("payload = %v, want shared", event.Payload)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	const goroutines = 10
	const perGoroutine = 5
	total := goroutines * perGoroutine

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				b.Publish(TopicQueryCompleted, id*100+i)
			}
		}(g)
	}
	wg.Wait()

	received := 0
	for {
		select {
		case <-sub.Ch():
			received++
		default:
			goto done2
		}
	}
done2:
	if received != total {
		t.Fatalf("received %d events, want %d", received, total)
	}
}

func TestTopics_Unique(t *testing.T) {
	topics := map[string]bool{
		TopicQuerySubmitted: true,
		TopicQueryCompleted: true,
		TopicQueryFailed:    true,
		TopicRecordInserted: true,
		TopicRecordUpdated:  true,
		TopicRecordRemoved:  true,
	}
	if len(topics) != 6 {
		t.Fatalf("expected 6 unique topics, got %d", len(topics))
	}
}
