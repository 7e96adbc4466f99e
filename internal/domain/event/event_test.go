package event

import (
	"testing"
	"time"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{
			name:      "valid - request submitted",
			eventType: TypeRequestSubmitted,
			want:      true,
		},
		{
			name:      "valid - request transitioned",
			eventType: TypeRequestTransitioned,
			want:      true,
		},
		{
			name:      "invalid - notification sent",
			eventType: Type("notification.sent"),
			want:      false,
		},
		{
			name:      "invalid - unknown type",
			eventType: Type("unknown.type"),
			want:      false,
		},
		{
			name:      "invalid - empty string",
			eventType: Type(""),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		KeyNewStatus: "Pending HR Approval",
	}

	event := NewEvent(TypeRequestTransitioned, "leave", 123, payload)

	if event == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeRequestTransitioned {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeRequestTransitioned)
	}
	if event.RequestType != "leave" || event.RequestID != 123 {
		t.Errorf("Event request = %s/%d, want leave/123", event.RequestType, event.RequestID)
	}
	if event.CorrelationID == "" || event.CorrelationID == event.ID {
		t.Error("Event CorrelationID should be a distinct generated id")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e := NewEvent(TypeRequestSubmitted, "asset", int64(i), nil)
		if seen[e.ID] {
			t.Fatalf("duplicate event id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeRequestTransitioned, "travel", 789, nil, "req-abc")

	if event.CorrelationID != "req-abc" {
		t.Errorf("Event CorrelationID = %v, want %v", event.CorrelationID, "req-abc")
	}

	generated := NewEventWithCorrelation(TypeRequestTransitioned, "travel", 789, nil, "")
	if generated.CorrelationID == "" {
		t.Error("empty correlation id should be replaced")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRequestSubmitted, "leave", 1, map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.RequestID != original.RequestID || modified.CorrelationID != original.CorrelationID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_PayloadGetters(t *testing.T) {
	event := NewEvent(TypeRequestTransitioned, "leave", 1, map[string]interface{}{
		"status":   "Approved",
		"state":    stringer("Rejected"),
		"int64":    int64(100),
		"int":      50,
		"float64":  75.5,
		"terminal": true,
		"string":   "not a number",
	})

	if got := event.GetPayloadString("status"); got != "Approved" {
		t.Errorf("GetPayloadString(status) = %v", got)
	}
	if got := event.GetPayloadString("state"); got != "Rejected" {
		t.Errorf("GetPayloadString(state) = %v", got)
	}
	if got := event.GetPayloadString("int"); got != "" {
		t.Errorf("GetPayloadString(int) = %v, want empty", got)
	}

	intTests := map[string]int64{"int64": 100, "int": 50, "float64": 75, "string": 0, "missing": 0}
	for key, want := range intTests {
		if got := event.GetPayloadInt(key); got != want {
			t.Errorf("GetPayloadInt(%v) = %v, want %v", key, got, want)
		}
	}

	if !event.GetPayloadBool("terminal") {
		t.Error("GetPayloadBool(terminal) should be true")
	}
	if event.GetPayloadBool("string") {
		t.Error("GetPayloadBool(string) should be false")
	}
}
