package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/qieqieplus/meeting-client/pkg/audio"
	"github.com/qieqieplus/meeting-client/pkg/chat"
	"github.com/qieqieplus/meeting-client/pkg/log"
	"github.com/qieqieplus/meeting-client/pkg/meeting"
	"github.com/qieqieplus/meeting-client/pkg/metrics"
	"github.com/qieqieplus/meeting-client/pkg/screen"
	"github.com/qieqieplus/meeting-client/pkg/settings"
)

// Commander runs user commands on the screen loop.
type Commander interface {
	Submit(ctx context.Context, cmd screen.Command) error
}

// Views exposes the rendered view.
type Views interface {
	Snapshot() screen.View
	Watch() (<-chan screen.View, func())
}

// Status exposes the controller's connection state.
type Status interface {
	Current() meeting.State
	Prior() meeting.State
	Failures() []error
	SessionID() string
}

// Deps are the collaborators of the HTTP server. Settings, Chat and Metrics
// are optional.
type Deps struct {
	Commands Commander
	Views    Views
	Status   Status
	Settings *settings.Store
	Chat     *chat.Store
	Metrics  *metrics.Manager
}

// HTTPServer handles REST API requests
type HTTPServer struct {
	deps     Deps
	wsServer *WebSocketServer
	router   http.Handler
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(deps Deps, wsServer *WebSocketServer) *HTTPServer {
	server := &HTTPServer{
		deps:     deps,
		wsServer: wsServer,
	}
	server.registerRoutes()
	return server
}

// ServeHTTP implements the http.Handler interface
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debugf("Received request: %s %s", r.Method, r.URL.Path)
	s.router.ServeHTTP(w, r)
}

// registerRoutes sets up the API routes
func (s *HTTPServer) registerRoutes() {
	pr := NewParamRouter()
	pr.Handle(http.MethodGet, "/health", s.handleHealth)
	pr.Handle(http.MethodGet, "/api/meeting", s.handleGetMeeting)
	pr.Handle(http.MethodPost, "/api/meeting/{action}", s.handleMeetingAction)
	pr.Handle(http.MethodGet, "/api/chat", s.handleListChat)
	pr.Handle(http.MethodPost, "/api/chat", s.handleSendChat)
	pr.Handle(http.MethodGet, "/api/settings", s.handleListSettings)
	pr.Handle(http.MethodGet, "/api/settings/{key}", s.handleGetSetting)
	pr.Handle(http.MethodPut, "/api/settings/{key}", s.handlePutSetting)
	if s.wsServer != nil {
		pr.Handle(http.MethodGet, "/ws/view", s.wsServer.HandleConnection)
	}

	var handler http.Handler = pr
	if m := s.deps.Metrics; m != nil {
		pr.Handle(http.MethodGet, "/metrics", m.Handler().ServeHTTP)
		handler = m.HTTPMiddleware(pr)
	}
	s.router = handler
}

// MeetingResponse describes the call and what is on screen. Prior is the
// state the pending failures interrupted.
type MeetingResponse struct {
	State    string      `json:"state"`
	Kind     string      `json:"kind"`
	Prior    string      `json:"prior,omitempty"`
	Session  string      `json:"session,omitempty"`
	Failures []string    `json:"failures"`
	View     screen.View `json:"view"`
}

func (s *HTTPServer) meetingResponse() MeetingResponse {
	current := s.deps.Status.Current()
	failures := s.deps.Status.Failures()
	resp := MeetingResponse{
		State:    current.String(),
		Kind:     current.Kind().String(),
		Session:  s.deps.Status.SessionID(),
		Failures: make([]string, len(failures)),
		View:     s.deps.Views.Snapshot(),
	}
	for i, err := range failures {
		resp.Failures[i] = err.Error()
	}
	if current.Kind() == meeting.KindFailure {
		if prior := s.deps.Status.Prior(); prior != nil && prior.Kind() != meeting.KindFailure {
			resp.Prior = prior.String()
		}
	}
	return resp
}

func (s *HTTPServer) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.meetingResponse())
}

// handleMeetingAction runs one call action. The body may carry a
// CommandMessage for actions that take arguments.
func (s *HTTPServer) handleMeetingAction(w http.ResponseWriter, r *http.Request) {
	msg := CommandMessage{Type: MessageTypeCommand}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	msg.Action = GetPathParam(r, "action")
	if mode := r.URL.Query().Get("mode"); mode != "" {
		msg.Mode = mode
	}
	if device := r.URL.Query().Get("device"); device != "" {
		msg.Device = device
	}

	cmd, err := msg.ToCommand()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !s.submit(w, r, msg.Action, cmd) {
		return
	}
	writeJSON(w, http.StatusAccepted, s.meetingResponse())
}

// ChatRequest is the request body for sending a chat message
type ChatRequest struct {
	Text string `json:"text"`
}

func (s *HTTPServer) handleSendChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	if !s.submit(w, r, "send-chat", screen.SendChat(req.Text)) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *HTTPServer) handleListChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		writeError(w, http.StatusNotFound, "Chat is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": s.deps.Chat.Messages(),
		"unread":   s.deps.Chat.UnreadCount(),
	})
}

func (s *HTTPServer) submit(w http.ResponseWriter, r *http.Request, action string, cmd screen.Command) bool {
	err := s.deps.Commands.Submit(r.Context(), cmd)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordCommand(action, err)
	}
	if err != nil {
		log.WithFields(log.Fields{"action": action}).Warnf("Command rejected: %v", err)
		writeError(w, statusFor(err), err.Error())
		return false
	}
	return true
}

func (s *HTTPServer) handleListSettings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotFound, "Settings are not enabled")
		return
	}
	snap, err := s.deps.Settings.Snapshot()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SettingResponse is the value of one setting.
type SettingResponse struct {
	Key        string      `json:"key"`
	Value      interface{} `json:"value"`
	Constraint bool        `json:"constraint"`
}

func (s *HTTPServer) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotFound, "Settings are not enabled")
		return
	}
	key := GetPathParam(r, "key")
	v, err := s.deps.Settings.Value(key)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: v, Constraint: settings.IsConstraintKey(key)})
}

// SettingRequest carries the new value in its textual form, e.g. "true",
// "1280", "250ms" or "WARN".
type SettingRequest struct {
	Value string `json:"value"`
}

func (s *HTTPServer) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotFound, "Settings are not enabled")
		return
	}
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	key := GetPathParam(r, "key")
	if err := s.deps.Settings.SetRaw(key, req.Value); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordSettingWrite(key)
	}
	log.WithFields(log.Fields{"key": key, "value": req.Value}).Info("Setting updated")

	v, err := s.deps.Settings.Value(key)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: v, Constraint: settings.IsConstraintKey(key)})
}

// handleHealth returns health status
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if s.deps.Status != nil {
		resp["state"] = s.deps.Status.Current().Kind().String()
	}
	if s.wsServer != nil {
		resp["ws_clients"] = s.wsServer.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, screen.ErrUnknownCommand), errors.Is(err, settings.ErrUnknownKey):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrInvalidValue), errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, ErrUnknownDevice):
		return http.StatusBadRequest
	case errors.Is(err, screen.ErrNotAvailable), errors.Is(err, meeting.ErrNotOngoing),
		errors.Is(err, chat.ErrNoSendCallback), errors.Is(err, audio.ErrDeviceUnavailable),
		errors.Is(err, audio.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, screen.ErrClosed), errors.Is(err, meeting.ErrClosed), errors.Is(err, settings.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
