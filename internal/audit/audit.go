package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

const (
	EventLoginSuccess   = "login_success"
	EventLoginFailure   = "login_failure"
	EventAccountLockout = "account_lockout"
	EventTokenRotation  = "token_rotation"
	EventTokenReuse     = "token_reuse"
	EventSessionEvicted = "session_evicted"
	EventLogout         = "logout"
	EventLogoutAll      = "logout_all"
)

// Event is the fire-and-forget record handed to the audit/notification
// collaborator. Emitting one must never block or fail an auth operation.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Sink interface {
	Emit(ctx context.Context, event Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// JSONWriterSink writes one JSON line per event, suitable for piping into an
// external collector.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
