package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestClient(topics ...string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Topics: topics,
		Send:   make(chan []byte, 8),
	}
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub()
	pid := uuid.New()
	board := newTestClient(TopicBoard)
	watcher := newTestClient(TopicPatient(pid))
	hub.Register(board)
	hub.Register(watcher)

	hub.Broadcast(TopicPatient(pid), NewEvent("alerts.changed", TopicPatient(pid), pid, nil))

	ev := recvEvent(t, watcher)
	if ev.Type != "alerts.changed" || ev.PatientID != pid.String() {
		t.Errorf("event = %+v, want alerts.changed for patient", ev)
	}
	select {
	case <-board.Send:
		t.Error("board client must not receive a patient-topic event")
	default:
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	c := newTestClient(TopicBoard)
	hub.Register(c)
	if hub.ClientCount() != 1 || hub.TopicCount(TopicBoard) != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", hub.ClientCount(), hub.TopicCount(TopicBoard))
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 || hub.TopicCount(TopicBoard) != 0 {
		t.Errorf("counts after unregister = %d/%d, want 0/0", hub.ClientCount(), hub.TopicCount(TopicBoard))
	}
	if _, open := <-c.Send; open {
		t.Error("Send channel should be closed")
	}

	// A second unregister must be a no-op, not a double close.
	hub.Unregister(c)
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	pid := uuid.New()
	c := newTestClient(TopicBoard)
	hub.Register(c)

	hub.ProcessMessage(c, ClientMessage{Action: "subscribe", Topics: []string{TopicPatient(pid)}})
	if hub.TopicCount(TopicPatient(pid)) != 1 {
		t.Fatal("client should be subscribed to the patient topic")
	}

	hub.ProcessMessage(c, ClientMessage{Action: "unsubscribe", Topics: []string{TopicPatient(pid)}})
	if hub.TopicCount(TopicPatient(pid)) != 0 {
		t.Error("client should be unsubscribed from the patient topic")
	}
	if hub.TopicCount(TopicBoard) != 1 {
		t.Error("board subscription must survive the patient unsubscribe")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub()
	c := &Client{ID: "slow", Topics: []string{TopicBoard}, Send: make(chan []byte)}
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(TopicBoard, NewEvent("board.changed", TopicBoard, uuid.Nil, nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on an unread client")
	}
}

func TestNewEvent_Payload(t *testing.T) {
	pid := uuid.New()
	ev := NewEvent("plan.changed", TopicPatient(pid), pid, map[string]string{"option": "today"})
	if ev.Topic != TopicPatient(pid) {
		t.Errorf("topic = %q, want %q", ev.Topic, TopicPatient(pid))
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["option"] != "today" {
		t.Errorf("payload = %v, want option today", payload)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}
