package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// Hidden field names used by the WebForms postback protocol.
const (
	FieldViewState          = "__VIEWSTATE"
	FieldViewStateGenerator = "__VIEWSTATEGENERATOR"
	FieldViewStateEncrypted = "__VIEWSTATEENCRYPTED"
	FieldEventValidation    = "__EVENTVALIDATION"
	FieldEventTarget        = "__EVENTTARGET"
	FieldEventArgument      = "__EVENTARGUMENT"
	FieldLastFocus          = "__LASTFOCUS"
)

// CookieName is the cookie holding the server-side session identifier.
const CookieName = "ASP.NET_SessionId"

// requiredFields must be present for a postback to be accepted.
var requiredFields = []string{FieldViewState, FieldEventValidation, FieldViewStateGenerator}

// controlFields are sent on every submission, empty unless a postback
// control is being triggered.
var controlFields = []string{FieldEventTarget, FieldEventArgument, FieldLastFocus, FieldViewStateEncrypted}

// Field is one hidden form field.
type Field struct {
	Name  string
	Value string
}

// State is an immutable snapshot of the portal's continuation tokens.
// The zero value is an empty state, valid only for the first request of a
// session.
type State struct {
	tokens    *orderedmap.OrderedMap[string, string]
	sessionID string
}

// New builds a State from fields in document order. Later duplicates
// overwrite earlier values but keep the first position.
func New(fields []Field, sessionID string) State {
	tokens := orderedmap.NewOrderedMap[string, string]()
	for _, f := range fields {
		tokens.Set(f.Name, f.Value)
	}
	return State{tokens: tokens, sessionID: sessionID}
}

// Empty reports whether the state carries no tokens.
func (s State) Empty() bool {
	return s.tokens == nil || s.tokens.Len() == 0
}

// Token returns the value of a hidden field.
func (s State) Token(name string) (string, bool) {
	if s.tokens == nil {
		return "", false
	}
	return s.tokens.Get(name)
}

// Fields returns a copy of the tokens in document order.
func (s State) Fields() []Field {
	if s.tokens == nil {
		return nil
	}
	fields := make([]Field, 0, s.tokens.Len())
	for el := s.tokens.Front(); el != nil; el = el.Next() {
		fields = append(fields, Field{Name: el.Key, Value: el.Value})
	}
	return fields
}

// Payload returns the tokens as form values, including the postback control
// fields the portal expects even when they are empty.
func (s State) Payload() map[string]string {
	payload := make(map[string]string, len(controlFields)+s.len())
	for _, name := range controlFields {
		payload[name] = ""
	}
	for _, f := range s.Fields() {
		payload[f.Name] = f.Value
	}
	return payload
}

// SessionID returns the ASP.NET session identifier bound to this state.
func (s State) SessionID() string {
	return s.sessionID
}

// WithSessionID returns a copy of the state bound to a different session
// identifier. The receiver is not modified.
func (s State) WithSessionID(id string) State {
	return State{tokens: s.tokens, sessionID: id}
}

// Validate checks that every token required for a postback is present.
func (s State) Validate() error {
	if s.Empty() {
		return ErrNoForm
	}
	var missing []string
	for _, name := range requiredFields {
		if _, ok := s.Token(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingToken, strings.Join(missing, ", "))
	}
	return nil
}

// LogValue implements slog.LogValuer. Token values are replaced by their
// length so that state can be logged safely.
func (s State) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Bool("has_session", s.sessionID != "")}
	for _, f := range s.Fields() {
		attrs = append(attrs, slog.Int(strings.TrimLeft(strings.ToLower(f.Name), "_")+"_len", len(f.Value)))
	}
	return slog.GroupValue(attrs...)
}

func (s State) len() int {
	if s.tokens == nil {
		return 0
	}
	return s.tokens.Len()
}
