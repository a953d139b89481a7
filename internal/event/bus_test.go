package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(8)
	_, ch := bus.Subscribe()

	bus.Publish(New(TypeCheckStarted, "job1", map[string]any{"checker": "linter"}))
	bus.Publish(New(TypeCheckCompleted, "job1", nil))
	bus.PublishTerminal(New(TypeReviewCompleted, "job1", nil))

	var got []string
	for ev := range ch {
		got = append(got, ev.Type)
	}

	want := []string{TypeCheckStarted, TypeCheckCompleted, TypeReviewCompleted}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLateSubscriberGetsOnlyTerminal(t *testing.T) {
	bus := NewBus(8)
	bus.Publish(New(TypeCheckStarted, "job1", nil))
	bus.PublishTerminal(New(TypeReviewCompleted, "job1", nil))

	id, ch := bus.Subscribe()
	if id != 0 {
		t.Errorf("late subscription id = %d, want 0", id)
	}

	var got []string
	for ev := range ch {
		got = append(got, ev.Type)
	}
	if len(got) != 1 || got[0] != TypeReviewCompleted {
		t.Fatalf("late subscriber got %v, want only terminal", got)
	}
}

func TestSubscribingTwiceAfterCompletion(t *testing.T) {
	bus := NewBus(8)
	bus.PublishTerminal(New(TypeGradeCompleted, "job1", nil))

	for i := 0; i < 2; i++ {
		_, ch := bus.Subscribe()
		count := 0
		for range ch {
			count++
		}
		if count != 1 {
			t.Errorf("subscription %d received %d events, want 1", i, count)
		}
	}
}

func TestSlowSubscriberSeesLagMarkerAndTerminal(t *testing.T) {
	bus := NewBus(2)
	_, ch := bus.Subscribe()

	// Fill the backlog and then overflow it without draining.
	for i := 0; i < 6; i++ {
		bus.Publish(New(TypeCriterionChecked, "job1", nil))
	}
	bus.PublishTerminal(New(TypeGradeCompleted, "job1", nil))

	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				goto done
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out draining channel")
		}
	}
done:
	if len(got) == 0 {
		t.Fatal("received no events")
	}
	last := got[len(got)-1]
	if last.Type != TypeGradeCompleted {
		t.Errorf("last event = %s, want terminal %s", last.Type, TypeGradeCompleted)
	}

	sawMarker := false
	for _, ev := range got {
		if ev.Type == TypeEventsDropped {
			sawMarker = true
		}
	}
	if !sawMarker {
		t.Error("expected an events_dropped marker for the lagged subscriber")
	}
}

func TestUnsubscribeBeforeTerminal(t *testing.T) {
	bus := NewBus(2)
	id, _ := bus.Subscribe()
	bus.Unsubscribe(id)

	if n := bus.SubscriberCount(); n != 0 {
		t.Fatalf("subscriber count = %d, want 0", n)
	}

	// Terminal delivery must not hang on the departed subscriber.
	finished := make(chan struct{})
	go func() {
		bus.PublishTerminal(New(TypeReviewCompleted, "job1", nil))
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("PublishTerminal blocked on unsubscribed channel")
	}
}

func TestTerminalOnlyOnce(t *testing.T) {
	bus := NewBus(8)
	_, ch := bus.Subscribe()

	bus.PublishTerminal(New(TypeReviewFailed, "job1", Failed{Kind: "clone", Error: "boom"}))
	bus.PublishTerminal(New(TypeReviewCompleted, "job1", nil))
	bus.Publish(New(TypeCheckStarted, "job1", nil))

	var got []string
	for ev := range ch {
		got = append(got, ev.Type)
	}
	if len(got) != 1 || got[0] != TypeReviewFailed {
		t.Fatalf("got %v, want exactly one terminal review_failed", got)
	}
}

func TestEventMarshalFlattensPayload(t *testing.T) {
	ev := Event{
		Type:        TypeCriterionChecked,
		TimestampMS: 1700000000000,
		JobID:       "abc",
		Data: map[string]any{
			"task_index": 0,
			"passed":     false,
			"confidence": 0.5,
		},
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["type"] != TypeCriterionChecked {
		t.Errorf("type = %v", decoded["type"])
	}
	if decoded["job_id"] != "abc" {
		t.Errorf("job_id = %v", decoded["job_id"])
	}
	if decoded["passed"] != false {
		t.Errorf("passed = %v, want false to survive flattening", decoded["passed"])
	}
	if decoded["confidence"] != 0.5 {
		t.Errorf("confidence = %v", decoded["confidence"])
	}
}
