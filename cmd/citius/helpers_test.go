package main

import (
	_ "embed"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Raam977/citius-scraper/internal/query"
	"github.com/Raam977/citius-scraper/internal/session"
)

var (
	//go:embed testdata/form.html
	formFixture []byte

	//go:embed testdata/results_515755230.html
	resultsFixture []byte

	//go:embed testdata/creditors_515755230.html
	creditorsFixture []byte
)

// subcommand returns a subcommand of a fresh root command with the global
// flags merged in, so flags can be set without executing the root.
func subcommand(t *testing.T, name string) *cobra.Command {
	t.Helper()

	cmd, _, err := NewRootCmd().Find([]string{name})
	if err != nil {
		t.Fatalf("subcommand %s not found: %v", name, err)
	}
	_ = cmd.InheritedFlags()
	return cmd
}

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".citius.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// portalHandler serves the "515755230" fixtures like the real portal.
func portalHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if r.Method == http.MethodGet {
		http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "sess-515"})
		_, _ = w.Write(formFixture)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.HasSuffix(r.PostFormValue(session.FieldEventTarget), "lnkCredores") {
		_, _ = w.Write(creditorsFixture)
		return
	}
	if r.PostFormValue(query.FieldSearchText) != "515755230" {
		http.Error(w, "unexpected search", http.StatusBadRequest)
		return
	}
	_, _ = w.Write(resultsFixture)
}
