package screen

import (
	"fmt"
	"strings"
)

// Surface is what the observer drives. Implementations must be safe for
// concurrent use: audio routing reports device changes from its own
// goroutine.
type Surface interface {
	SetState(label string)

	ShowProgress(heading, message string)
	RefreshProgress(heading, message string)
	HideProgress()

	ShowModal(d Dialog)
	DismissModal()

	NavigateHome()

	SetMediaControlsEnabled(enabled bool)
	SetControls(c Controls)
	SetLocalAudio(enabled bool)
	SetLocalVideo(enabled bool)
	SetUnreadCount(n int)
	SetAudioDevice(name string)
	SetViewMode(m ViewMode)

	Notify(text string)
}

// Choice is an answer to the failure dialog.
type Choice int

const (
	ChoiceRetry Choice = iota
	ChoiceLeave
	ChoiceReport
)

func (c Choice) String() string {
	switch c {
	case ChoiceRetry:
		return "retry"
	case ChoiceLeave:
		return "leave"
	case ChoiceReport:
		return "report"
	default:
		return "unknown"
	}
}

// Dialog is a modal shown over the call screen.
type Dialog struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Failures []string `json:"failures"`
	Choices  []string `json:"choices"`
}

// failureDialog lists every failure in arrival order.
func failureDialog(failures []error) Dialog {
	causes := make([]string, len(failures))
	for i, err := range failures {
		causes[i] = err.Error()
	}
	return Dialog{
		Title:    "Error",
		Message:  fmt.Sprintf("%d failures: \n%s", len(causes), strings.Join(causes, "\n\n")),
		Failures: causes,
		Choices:  []string{ChoiceRetry.String(), ChoiceLeave.String(), ChoiceReport.String()},
	}
}

// Controls says which local media toggles the call screen exposes.
type Controls struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// ViewMode is the layout of remote video tiles.
type ViewMode int

const (
	ViewGrid ViewMode = iota
	ViewPinned
	ViewActiveSpeaker
	ViewAudioOnly
)

func (m ViewMode) String() string {
	switch m {
	case ViewGrid:
		return "Grid"
	case ViewPinned:
		return "Pinned"
	case ViewActiveSpeaker:
		return "ActiveSpeaker"
	case ViewAudioOnly:
		return "AudioOnly"
	default:
		return "Unknown"
	}
}

// ParseViewMode accepts the names returned by String, case-insensitively.
func ParseViewMode(s string) (ViewMode, error) {
	for m := ViewGrid; m <= ViewAudioOnly; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return ViewGrid, fmt.Errorf("%w: view mode %q", ErrUnknownCommand, s)
}

func (m ViewMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ViewMode) UnmarshalText(text []byte) error {
	parsed, err := ParseViewMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
