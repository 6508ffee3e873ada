package meeting

import "fmt"

// Kind identifies a connection state variant.
type Kind int

const (
	KindDisconnected Kind = iota
	KindConnecting
	KindJoining
	KindLoadingMedia
	KindPublishingMedia
	KindOngoing
	KindReconnecting
	KindDisconnecting
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindDisconnected:
		return "disconnected"
	case KindConnecting:
		return "connecting"
	case KindJoining:
		return "joining"
	case KindLoadingMedia:
		return "loading_media"
	case KindPublishingMedia:
		return "publishing_media"
	case KindOngoing:
		return "ongoing"
	case KindReconnecting:
		return "reconnecting"
	case KindDisconnecting:
		return "disconnecting"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// State is one connection state of a call. The set of implementations is
// closed; switch on the concrete type or on Kind().
type State interface {
	Kind() Kind
	String() string
	state()
}

// Progress is implemented by the transient states that show a blocking
// progress surface.
type Progress interface {
	State
	Progress() (heading, message string)
}

// Disconnected is the initial and terminal state.
type Disconnected struct {
	GoToHome bool
}

type Connecting struct{ Heading, Message string }
type Joining struct{ Heading, Message string }
type LoadingMedia struct{ Heading, Message string }
type PublishingMedia struct{ Heading, Message string }

// Ongoing means the call is live.
type Ongoing struct{}

type Reconnecting struct{ Heading, Message string }
type Disconnecting struct{ Heading, Message string }

// Failure carries the cause of one failed attempt together with every
// failure accumulated since the user last acknowledged them, oldest first.
type Failure struct {
	Err      error
	Failures []error
}

func (Disconnected) Kind() Kind    { return KindDisconnected }
func (Connecting) Kind() Kind      { return KindConnecting }
func (Joining) Kind() Kind         { return KindJoining }
func (LoadingMedia) Kind() Kind    { return KindLoadingMedia }
func (PublishingMedia) Kind() Kind { return KindPublishingMedia }
func (Ongoing) Kind() Kind         { return KindOngoing }
func (Reconnecting) Kind() Kind    { return KindReconnecting }
func (Disconnecting) Kind() Kind   { return KindDisconnecting }
func (Failure) Kind() Kind         { return KindFailure }

func (Disconnected) state()    {}
func (Connecting) state()      {}
func (Joining) state()         {}
func (LoadingMedia) state()    {}
func (PublishingMedia) state() {}
func (Ongoing) state()         {}
func (Reconnecting) state()    {}
func (Disconnecting) state()   {}
func (Failure) state()         {}

func (s Connecting) Progress() (string, string)      { return s.Heading, s.Message }
func (s Joining) Progress() (string, string)         { return s.Heading, s.Message }
func (s LoadingMedia) Progress() (string, string)    { return s.Heading, s.Message }
func (s PublishingMedia) Progress() (string, string) { return s.Heading, s.Message }
func (s Reconnecting) Progress() (string, string)    { return s.Heading, s.Message }
func (s Disconnecting) Progress() (string, string)   { return s.Heading, s.Message }

func (s Disconnected) String() string {
	return fmt.Sprintf("Disconnected(goToHome=%t)", s.GoToHome)
}
func (s Connecting) String() string      { return progressString("Connecting", s.Heading, s.Message) }
func (s Joining) String() string         { return progressString("Joining", s.Heading, s.Message) }
func (s LoadingMedia) String() string    { return progressString("LoadingMedia", s.Heading, s.Message) }
func (s PublishingMedia) String() string { return progressString("PublishingMedia", s.Heading, s.Message) }
func (Ongoing) String() string           { return "Ongoing" }
func (s Reconnecting) String() string    { return progressString("Reconnecting", s.Heading, s.Message) }
func (s Disconnecting) String() string   { return progressString("Disconnecting", s.Heading, s.Message) }
func (s Failure) String() string {
	return fmt.Sprintf("Failure(%v, total=%d)", s.Err, len(s.Failures))
}

func progressString(name, heading, message string) string {
	if message == "" {
		return fmt.Sprintf("%s(%q)", name, heading)
	}
	return fmt.Sprintf("%s(%q, %q)", name, heading, message)
}

// IsProgress reports whether s shows the progress surface.
func IsProgress(s State) bool {
	_, ok := s.(Progress)
	return ok
}
