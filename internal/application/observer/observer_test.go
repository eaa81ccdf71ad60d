package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeFilter_ShouldNotify(t *testing.T) {
	tests := []struct {
		name         string
		allowedTypes []EventType
		event        Event
		want         bool
	}{
		{
			name:         "no types allows all",
			allowedTypes: []EventType{},
			event:        Event{Type: EventTypeRuleFired},
			want:         true,
		},
		{
			name:         "matching type passes",
			allowedTypes: []EventType{EventTypeCycleStarted},
			event:        Event{Type: EventTypeCycleStarted},
			want:         true,
		},
		{
			name:         "non-matching type blocked",
			allowedTypes: []EventType{EventTypeCycleStarted},
			event:        Event{Type: EventTypeRuleFired},
			want:         false,
		},
		{
			name: "one of several types matches",
			allowedTypes: []EventType{
				EventTypeCycleStarted, EventTypeCycleCompleted, EventTypeRuleFired,
			},
			event: Event{Type: EventTypeRuleFired},
			want:  true,
		},
		{
			name: "none of several types matches",
			allowedTypes: []EventType{
				EventTypeCycleStarted, EventTypeCycleCompleted,
			},
			event: Event{Type: EventTypeRuleFailed},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewEventTypeFilter(tt.allowedTypes...)
			if filter == nil {
				assert.True(t, tt.want)
				return
			}
			assert.Equal(t, tt.want, filter.ShouldNotify(tt.event))
		})
	}
}

func TestNewEventTypeFilter_NoTypes(t *testing.T) {
	filter := NewEventTypeFilter()
	assert.Nil(t, filter)
}

func TestNewEventTypeFilter_SingleType(t *testing.T) {
	filter := NewEventTypeFilter(EventTypeCycleStarted)
	typeFilter, ok := filter.(*EventTypeFilter)
	assert.True(t, ok, "Expected EventTypeFilter type")
	assert.True(t, typeFilter.allowedTypes[EventTypeCycleStarted])
}

func TestNewEventTypeFilter_MultipleTypes(t *testing.T) {
	types := []EventType{
		EventTypeCycleStarted, EventTypeCycleCompleted, EventTypeRuleFired, EventTypeRuleFailed,
	}

	filter := NewEventTypeFilter(types...)
	typeFilter, ok := filter.(*EventTypeFilter)
	assert.True(t, ok, "Expected EventTypeFilter type")
	assert.Len(t, typeFilter.allowedTypes, len(types))
}

func TestRuleNameFilter_ShouldNotify(t *testing.T) {
	filter := NewRuleNameFilter("HighTemp")

	assert.True(t, filter.ShouldNotify(Event{RuleName: "HighTemp"}))
	assert.False(t, filter.ShouldNotify(Event{RuleName: "LowHumidity"}))
}

func TestCompoundEventFilter_AllMustPass(t *testing.T) {
	filter := NewCompoundEventFilter(
		NewEventTypeFilter(EventTypeRuleFired),
		NewRuleNameFilter("HighTemp"),
	)

	assert.True(t, filter.ShouldNotify(Event{Type: EventTypeRuleFired, RuleName: "HighTemp"}))
	assert.False(t, filter.ShouldNotify(Event{Type: EventTypeRuleFired, RuleName: "LowHumidity"}))
	assert.False(t, filter.ShouldNotify(Event{Type: EventTypeRuleFailed, RuleName: "HighTemp"}))
}

func TestCompoundEventFilter_NilFiltersIgnored(t *testing.T) {
	filter := NewCompoundEventFilter(nil, NewEventTypeFilter(EventTypeRuleFired), nil)
	typeFilter, ok := filter.(*EventTypeFilter)
	assert.True(t, ok, "single surviving filter should be returned unwrapped")
	assert.True(t, typeFilter.allowedTypes[EventTypeRuleFired])
}

func TestCompoundEventFilter_AllNilReturnsNil(t *testing.T) {
	filter := NewCompoundEventFilter(nil, nil)
	assert.Nil(t, filter)
}

func TestEvent_FullyPopulated(t *testing.T) {
	event := Event{
		Type:         EventTypeRuleFired,
		Cycle:        3,
		RuleName:     "HighTemp",
		ActivationID: 42,
		FactHandle:   7,
		FactType:     "Sensor",
		Status:       "completed",
		DurationMs:   12,
		Message:      "fired",
		Metadata:     map[string]any{"key": "value"},
	}

	assert.Equal(t, EventTypeRuleFired, event.Type)
	assert.Equal(t, 3, event.Cycle)
	assert.Equal(t, "HighTemp", event.RuleName)
	assert.Equal(t, int64(42), event.ActivationID)
	assert.Equal(t, uint64(7), event.FactHandle)
	assert.Equal(t, "Sensor", event.FactType)
	assert.NotNil(t, event.Metadata)
}

func TestEventType_Constants(t *testing.T) {
	assert.Equal(t, EventType("cycle.started"), EventTypeCycleStarted)
	assert.Equal(t, EventType("cycle.completed"), EventTypeCycleCompleted)
	assert.Equal(t, EventType("rule.fired"), EventTypeRuleFired)
	assert.Equal(t, EventType("rule.failed"), EventTypeRuleFailed)
	assert.Equal(t, EventType("fact.asserted"), EventTypeFactAsserted)
	assert.Equal(t, EventType("fact.retracted"), EventTypeFactRetracted)
	assert.Equal(t, EventType("justification.cascaded"), EventTypeJustificationCascaded)
}

func TestEventTypeFilter_NilSafety(t *testing.T) {
	var filter *EventTypeFilter
	event := Event{Type: EventTypeCycleStarted}

	result := filter.ShouldNotify(event)
	assert.True(t, result, "Nil filter should allow all events")
}

func TestEventTypeFilter_ThreadSafety(t *testing.T) {
	filter := NewEventTypeFilter(
		EventTypeCycleStarted,
		EventTypeCycleCompleted,
		EventTypeRuleFired,
	)

	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()
			for j := 0; j < 100; j++ {
				event := Event{Type: EventTypeCycleStarted}
				filter.ShouldNotify(event)
			}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
