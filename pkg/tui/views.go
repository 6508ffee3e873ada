package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/qieqieplus/meeting-client/pkg/screen"
)

func render(m model) string {
	v := m.view
	var b strings.Builder

	b.WriteString(titleStyle.Render("meeting-client"))
	b.WriteString(" ")
	b.WriteString(headingStyle.Render(v.State))
	b.WriteString("\n\n")

	switch {
	case v.Home && !v.Progress.Visible:
		b.WriteString("Not in a call.\n")
	case v.Progress.Visible:
		b.WriteString(progressStyle.Render(v.Progress.Heading + "\n" + mutedStyle.Render(v.Progress.Message)))
		b.WriteString("\n")
	case v.ContentVisible:
		b.WriteString(renderCall(v))
	}

	if v.Modal != nil {
		b.WriteString("\n")
		b.WriteString(renderModal(*v.Modal))
		b.WriteString("\n")
	}

	if m.composing {
		fmt.Fprintf(&b, "\nMessage: %s_\n", string(m.draft))
	}
	if v.Notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(v.Notice))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderStatusBar(v, m.width))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(help(m)))
	return b.String()
}

func renderCall(v screen.View) string {
	controls := make([]string, 0, 2)
	if v.Controls.Audio {
		controls = append(controls, toggle("mic", v.LocalAudio, v.MediaControlsEnabled))
	}
	if v.Controls.Video {
		controls = append(controls, toggle("camera", v.LocalVideo, v.MediaControlsEnabled))
	}
	line := strings.Join(controls, "  ")
	if line == "" {
		line = mutedStyle.Render("no local media")
	}
	return fmt.Sprintf("%s\nLayout: %s\n", line, v.ViewMode)
}

func toggle(name string, on, enabled bool) string {
	switch {
	case !enabled:
		return mutedStyle.Render(name + " -")
	case on:
		return onStyle.Render(name + " on")
	default:
		return offStyle.Render(name + " off")
	}
}

func renderModal(d screen.Dialog) string {
	var b strings.Builder
	b.WriteString(errorStyle.Render(d.Title))
	b.WriteString("\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("r: retry  l: leave  b: report"))
	return modalStyle.Render(b.String())
}

func renderStatusBar(v screen.View, width int) string {
	parts := []string{fmt.Sprintf("unread %d", v.Unread)}
	if v.AudioDevice != "" {
		parts = append(parts, "audio "+v.AudioDevice)
	}
	bar := statusBarStyle.Render(strings.Join(parts, " | "))
	if width > 0 && lipgloss.Width(bar) < width {
		bar = statusBarStyle.Width(width).Render(strings.Join(parts, " | "))
	}
	return bar
}

func help(m model) string {
	switch {
	case m.composing:
		return "enter: send  esc: cancel"
	case m.view.Modal != nil:
		return "r: retry  l: leave  b: report  ctrl+c: quit"
	case m.view.Home:
		return "enter: join  q: quit"
	default:
		return "a: mic  v: camera  f: flip  m: volume  1-4: layout  s: share  e: logs  d: audio devices  c: chat  q: end call"
	}
}
