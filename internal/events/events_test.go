package events

import (
	"encoding/json"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe("test_event", handler)

	payload := map[string]string{"foo": "bar"}
	err := bus.PublishJSON("test_event", payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}

	var decoded map[string]string
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2, countAll int

	bus.Subscribe(EventBookingCreated, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventBookingCreated, func(_ *Event) error { count2++; return nil })
	bus.SubscribeAll(func(_ *Event) error { countAll++; return nil })

	bus.Publish(&Event{Type: EventBookingCreated})
	bus.Publish(&Event{Type: EventUserLoggedOut})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
	if countAll != 2 {
		t.Errorf("expected catch-all handler to see 2 events, got %d", countAll)
	}
}

func TestEventBusAssignsIDs(t *testing.T) {
	bus := NewEventBus()
	var ids []int64
	bus.SubscribeAll(func(e *Event) error { ids = append(ids, e.ID); return nil })

	_ = bus.PublishJSON(EventItemCreated, ItemEventPayload{ItemID: "product-1"})
	_ = bus.PublishJSON(EventItemStatusChanged, ItemEventPayload{ItemID: "product-1"})

	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("expected sequential ids [1 2], got %v", ids)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	err := bus.PublishJSON("unknown", nil)
	if err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("nil bus PublishJSON failed: %v", err)
	}
}

func TestNewJSONEvent(t *testing.T) {
	payload := BookingEventPayload{BookingID: "booking-123", FromDate: "2024-03-01"}
	event, err := NewJSONEvent("type", payload)
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}

	if event.Type != "type" {
		t.Errorf("expected type, got %s", event.Type)
	}

	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if decoded.BookingID != "booking-123" {
		t.Errorf("expected BookingID booking-123, got %s", decoded.BookingID)
	}
}
