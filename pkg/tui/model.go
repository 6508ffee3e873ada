package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/qieqieplus/meeting-client/pkg/screen"
)

// Commander runs user commands on the screen loop.
type Commander interface {
	Submit(ctx context.Context, cmd screen.Command) error
}

// Views is the source of rendered views.
type Views interface {
	Watch() (<-chan screen.View, func())
}

// Run shows the call screen until the user quits or ctx is done.
func Run(ctx context.Context, commands Commander, views Views) error {
	ch, stop := views.Watch()
	defer stop()

	p := tea.NewProgram(NewModel(ctx, commands, ch), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type model struct {
	ctx      context.Context
	commands Commander
	views    <-chan screen.View

	view      screen.View
	composing bool
	draft     []rune
	err       error
	width     int
}

type viewMsg screen.View

type viewsClosedMsg struct{}

type resultMsg struct {
	cmd screen.Command
	err error
}

// NewModel creates the call screen model.
func NewModel(ctx context.Context, commands Commander, views <-chan screen.View) model {
	return model{
		ctx:      ctx,
		commands: commands,
		views:    views,
		view:     screen.View{State: "Disconnected", Home: true},
	}
}

func waitForView(ch <-chan screen.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return viewsClosedMsg{}
		}
		return viewMsg(v)
	}
}

func submit(ctx context.Context, commands Commander, cmd screen.Command) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{cmd: cmd, err: commands.Submit(ctx, cmd)}
	}
}

func (m model) Init() tea.Cmd {
	return waitForView(m.views)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case viewMsg:
		m.view = screen.View(msg)
		return m, waitForView(m.views)

	case viewsClosedMsg:
		return m, tea.Quit

	case resultMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m model) send(cmd screen.Command) (tea.Model, tea.Cmd) {
	m.err = nil
	return m, submit(m.ctx, m.commands, cmd)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.composing {
		return m.handleCompose(msg)
	}
	if m.view.Modal != nil {
		return m.handleModal(msg)
	}
	if m.view.Home {
		switch msg.String() {
		case "enter", "j":
			return m.send(screen.Start())
		case "q", "esc":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "a":
		return m.send(screen.ToggleAudio())
	case "v":
		return m.send(screen.ToggleVideo())
	case "f":
		return m.send(screen.FlipCamera())
	case "m":
		return m.send(screen.Menu(screen.MenuVolume))
	case "1", "2", "3", "4":
		mode := screen.ViewMode(msg.Runes[0] - '1')
		return m.send(screen.SetViewMode(mode))
	case "s":
		return m.send(screen.Menu(screen.MenuShareLink))
	case "e":
		return m.send(screen.Menu(screen.MenuEmailLogs))
	case "d":
		return m.send(screen.RefreshAudio())
	case "c":
		m.composing = true
		m.draft = m.draft[:0]
		return m.send(screen.OpenChat())
	case "q", "esc":
		return m.send(screen.EndCall())
	}
	return m, nil
}

func (m model) handleModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		return m.send(screen.Choose(screen.ChoiceRetry))
	case "l", "q", "esc":
		return m.send(screen.Choose(screen.ChoiceLeave))
	case "b":
		return m.send(screen.Choose(screen.ChoiceReport))
	}
	return m, nil
}

func (m model) handleCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.composing = false
		m.draft = nil
		return m, nil
	case tea.KeyEnter:
		text := string(m.draft)
		m.composing = false
		m.draft = nil
		if text == "" {
			return m, nil
		}
		return m.send(screen.SendChat(text))
	case tea.KeyBackspace:
		if len(m.draft) > 0 {
			m.draft = m.draft[:len(m.draft)-1]
		}
		return m, nil
	case tea.KeySpace:
		m.draft = append(m.draft, ' ')
		return m, nil
	case tea.KeyRunes:
		m.draft = append(m.draft, msg.Runes...)
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	return render(m)
}
