package meeting

import (
	"errors"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindDisconnected, "disconnected"},
		{KindConnecting, "connecting"},
		{KindJoining, "joining"},
		{KindLoadingMedia, "loading_media"},
		{KindPublishingMedia, "publishing_media"},
		{KindOngoing, "ongoing"},
		{KindReconnecting, "reconnecting"},
		{KindDisconnecting, "disconnecting"},
		{KindFailure, "failure"},
		{Kind(99), "unknown"},
	}

	for _, test := range tests {
		if got := test.kind.String(); got != test.expected {
			t.Errorf("Kind(%d).String() = %q, want %q", test.kind, got, test.expected)
		}
	}
}

func TestIsProgress(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{Disconnected{}, false},
		{Connecting{Heading: "h"}, true},
		{Joining{}, true},
		{LoadingMedia{}, true},
		{PublishingMedia{}, true},
		{Ongoing{}, false},
		{Reconnecting{}, true},
		{Disconnecting{}, true},
		{Failure{Err: errors.New("x")}, false},
	}

	for _, test := range tests {
		if got := IsProgress(test.state); got != test.expected {
			t.Errorf("IsProgress(%s) = %t, want %t", test.state, got, test.expected)
		}
	}
}

func TestProgressString(t *testing.T) {
	if got := (Connecting{Heading: "Connecting..."}).String(); got != `Connecting("Connecting...")` {
		t.Errorf("unexpected string %q", got)
	}
	if got := (Reconnecting{Heading: "R", Message: "m"}).String(); got != `Reconnecting("R", "m")` {
		t.Errorf("unexpected string %q", got)
	}
}

func TestStateQueue_PreservesOrder(t *testing.T) {
	q := newStateQueue()
	defer q.close()

	for i := 0; i < 100; i++ {
		q.push(Reconnecting{Message: string(rune('a' + i%26))})
	}
	for i := 0; i < 100; i++ {
		s := (<-q.out).(Reconnecting)
		if want := string(rune('a' + i%26)); s.Message != want {
			t.Fatalf("item %d = %q, want %q", i, s.Message, want)
		}
	}
}
