package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/Raam977/citius-scraper/internal/session"
)

const sampleViewState = "/wEPDwUKMTUxNTc1NTIzMGRkZGRkZGRkZGRkZGRkZGRkZGRkZGRk"

// TestSecureHandler_SanitizesSensitiveKeys tests that sensitive keys are masked.
func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "cookie", key: "cookie", value: "ASP.NET_SessionId=abc", wantMask: true},
		{name: "uppercase Set-Cookie", key: "Set-Cookie", value: "x=1", wantMask: true},
		{name: "session id", key: "session_id", value: "kq1r2", wantMask: true},
		{name: "viewstate field name", key: "__VIEWSTATE", value: "short", wantMask: true},
		{name: "eventvalidation", key: "eventvalidation", value: "short", wantMask: true},
		{name: "keyword in key", key: "request_viewstate", value: "abc", wantMask: true},
		{name: "token", key: "token", value: "abc", wantMask: true},
		{name: "reference is kept", key: "reference", value: "431299870", wantMask: false},
		{name: "url is kept", key: "url", value: "https://www.citius.mj.pt/portal/consultas/ConsultasCire.aspx", wantMask: false},
		{name: "step is kept", key: "step", value: "search", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test", tt.key, tt.value)

			output := buf.String()
			masked := strings.Contains(output, MaskValue)
			if masked != tt.wantMask {
				t.Errorf("masked = %v, want %v (output %q)", masked, tt.wantMask, output)
			}
			if tt.wantMask && strings.Contains(output, tt.value) {
				t.Errorf("value %q leaked into output %q", tt.value, output)
			}
		})
	}
}

// TestSecureHandler_SanitizesSensitivePatterns tests value-based masking.
func TestSecureHandler_SanitizesSensitivePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{name: "serialized view state", value: "/wEPDwUKLTk2", wantMask: true},
		{name: "long base64 blob", value: strings.Repeat("QUJD", 12), wantMask: true},
		{name: "cookie header", value: "ASP.NET_SessionId=kq1r2; path=/", wantMask: true},
		{name: "bearer token", value: "Bearer abc.def", wantMask: true},
		{name: "case number", value: "412/24.9T8OLH", wantMask: false},
		{name: "court name", value: "Olhão - Juízo de Comércio", wantMask: false},
		{name: "short alnum", value: "Page$2", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isSensitiveValue(tt.value); got != tt.wantMask {
				t.Errorf("isSensitiveValue(%q) = %v, want %v", tt.value, got, tt.wantMask)
			}
		})
	}
}

// TestSecureHandler_KeepsCounts tests that numeric values are not masked even
// when their key names a token.
func TestSecureHandler_KeepsCounts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)
	logger.Info("state", "viewstate_len", 1024, "has_cookie", true)

	output := buf.String()
	if strings.Contains(output, MaskValue) {
		t.Errorf("counts should not be masked: %q", output)
	}
	if !strings.Contains(output, "viewstate_len=1024") {
		t.Errorf("expected length in output: %q", output)
	}
}

// TestSecureHandler_SessionState tests logging a session.State value.
func TestSecureHandler_SessionState(t *testing.T) {
	t.Parallel()

	state := session.New([]session.Field{
		{Name: session.FieldViewState, Value: sampleViewState},
		{Name: session.FieldEventValidation, Value: "/wEdAAformvalidation"},
	}, "kq1r2")

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)
	logger.Info("state", "state", state, "viewstate", sampleViewState)

	output := buf.String()
	if strings.Contains(output, sampleViewState) || strings.Contains(output, "kq1r2") {
		t.Errorf("session material leaked: %q", output)
	}
	if !strings.Contains(output, "state.viewstate_len=") {
		t.Errorf("expected token lengths in output: %q", output)
	}
}

// TestSecureHandler_LogLevels tests level selection.
func TestSecureHandler_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		log     func(*slog.Logger)
		want    bool
	}{
		{name: "debug hidden by default", verbose: false, log: func(l *slog.Logger) { l.Debug("msg") }, want: false},
		{name: "info hidden by default", verbose: false, log: func(l *slog.Logger) { l.Info("msg") }, want: false},
		{name: "warn shown by default", verbose: false, log: func(l *slog.Logger) { l.Warn("msg") }, want: true},
		{name: "debug shown when verbose", verbose: true, log: func(l *slog.Logger) { l.Debug("msg") }, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.log(NewSecureLogger(&buf, tt.verbose))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("logged = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSecureHandler_WithAttrs tests that attributes added up front are masked.
func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).With("cookie", "ASP.NET_SessionId=abc", "page", 2)
	logger.Info("fetched")

	output := buf.String()
	if strings.Contains(output, "abc") {
		t.Errorf("cookie leaked: %q", output)
	}
	if !strings.Contains(output, "page=2") {
		t.Errorf("expected page attribute: %q", output)
	}
}

// TestSecureHandler_WithGroup tests masking inside groups.
func TestSecureHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).WithGroup("request")
	logger.Info("sent", slog.Group("form", slog.String("__EVENTVALIDATION", "secret-value"), slog.String("btnSearch", "Pesquisar")))

	output := buf.String()
	if strings.Contains(output, "secret-value") {
		t.Errorf("token leaked: %q", output)
	}
	if !strings.Contains(output, "request.form.btnSearch=Pesquisar") {
		t.Errorf("expected grouped attribute: %q", output)
	}
}

// TestNewLogger tests format selection.
func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewLogger(&buf, FormatJSON, false).Warn("retrying", "step", "search", "cookie", "x")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
		}
		if entry["step"] != "search" || entry["cookie"] != MaskValue {
			t.Errorf("unexpected entry %v", entry)
		}
	})

	t.Run("unknown format falls back to text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewLogger(&buf, "logfmt", false).Warn("retrying", "step", "search")
		if !strings.Contains(buf.String(), "step=search") {
			t.Errorf("expected text output, got %q", buf.String())
		}
	})
}

// TestNewSecureHandler_NilHandler tests the default handler fallback.
func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	h := NewSecureHandler(nil)
	if h.handler == nil {
		t.Error("expected default handler")
	}
}
