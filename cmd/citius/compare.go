package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/Raam977/citius-scraper/internal/database"
	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/query"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [old-id new-id]",
		Short: "Compare two saved runs of a search",
		Long: `Compare shows the notices added and removed between two saved runs.

By default the two latest saved runs of the search described by the flags
are compared. Two search IDs (see 'citius history') compare those runs
instead. Records are matched by their reference.

Examples:
  # Compare the latest two runs for a NIF/NIPC
  citius compare --nif 515755230

  # Compare the latest two runs of a saved profile
  citius compare --profile empresa

  # Compare two specific runs
  citius compare 0b6e3f1c-... 5d2a9c7e-...

  # Output comparison in JSON format
  citius compare --nif 515755230 --json`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("expected no arguments or two search IDs")
			}
			return nil
		},
		RunE: runCompareCmd,
	}

	addCriteriaFlags(cmd)

	cmd.Flags().BoolP("json", "j", false, "Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output comparison result in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	cfg, file, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Validate the criteria before opening the database.
	var criteria model.SearchCriteria
	if len(args) == 0 {
		if criteria, err = criteriaFromFlags(cmd, file); err != nil {
			return err
		}
		if err := query.Validate(criteria); err != nil {
			return err
		}
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	var older, newer *model.SearchResult
	if len(args) == 2 {
		if older, err = db.GetSearch(ctx, args[0]); err != nil {
			return err
		}
		if newer, err = db.GetSearch(ctx, args[1]); err != nil {
			return err
		}
		if older.StartedAt.After(newer.StartedAt) {
			older, newer = newer, older
		}
	} else {
		older, newer, err = db.LatestPair(ctx, criteria.Fingerprint())
		if err != nil {
			return fmt.Errorf("%s: %w", criteria.Query(), err)
		}
	}

	comparison := compareRuns(older, newer)

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, comparison)
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// ComparisonResult holds the result of comparing two saved runs.
type ComparisonResult struct {
	// Query is the searched NIF/NIPC or designation.
	Query string `json:"query"`

	// Previous describes the older run.
	Previous RunMetadata `json:"previous"`

	// Current describes the newer run.
	Current RunMetadata `json:"current"`

	// Diff lists the record changes.
	Diff model.ResultDiff `json:"diff"`
}

// RunMetadata identifies a run in a comparison.
type RunMetadata struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Records   int       `json:"records"`
	Creditors int       `json:"creditors"`
}

func runMetadata(r *model.SearchResult) RunMetadata {
	return RunMetadata{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Records:   len(r.Records),
		Creditors: r.CreditorCount(),
	}
}

// compareRuns compares two runs, older first.
func compareRuns(older, newer *model.SearchResult) *ComparisonResult {
	return &ComparisonResult{
		Query:    newer.Criteria.Query(),
		Previous: runMetadata(older),
		Current:  runMetadata(newer),
		Diff:     model.CompareResults(older, newer),
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Search Comparison: " + result.Query)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"ID", "`" + result.Previous.ID + "`", "`" + result.Current.ID + "`", "-"},
			{"Date",
				result.Previous.StartedAt.Format("2006-01-02 15:04"),
				result.Current.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Records",
				strconv.Itoa(result.Previous.Records), strconv.Itoa(result.Current.Records),
				formatDelta(result.Current.Records - result.Previous.Records)},
			{"Creditors",
				strconv.Itoa(result.Previous.Creditors), strconv.Itoa(result.Current.Creditors),
				formatDelta(result.Current.Creditors - result.Previous.Creditors)},
		},
	})
	md.PlainText("")

	d := result.Diff
	if d.Empty() {
		md.Note("No changes between the two runs.")
		md.PlainText("")
	}

	if len(d.Added) > 0 {
		md.H2(fmt.Sprintf("New Notices (%d)", len(d.Added)))
		md.PlainText("")
		md.BulletList(recordLines(d.Added)...)
		md.PlainText("")
	}
	if len(d.Removed) > 0 {
		md.H2(fmt.Sprintf("Removed Notices (%d)", len(d.Removed)))
		md.PlainText("")
		md.BulletList(recordLines(d.Removed)...)
		md.PlainText("")
	}
	if len(d.CreditorChanges) > 0 {
		md.H2(fmt.Sprintf("Creditor Changes (%d)", len(d.CreditorChanges)))
		md.PlainText("")
		lines := make([]string, 0, len(d.CreditorChanges))
		for _, c := range d.CreditorChanges {
			lines = append(lines, fmt.Sprintf("`%s`: %d → %d creditors", c.Key, c.Before, c.After))
		}
		md.BulletList(lines...)
		md.PlainText("")
	}
	if d.Unchanged > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d notice(s) unchanged*", d.Unchanged)
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Search Comparison: %s\n", result.Query)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: %s  %s\n", result.Previous.StartedAt.Format("2006-01-02 15:04:05"), result.Previous.ID)
	fmt.Fprintf(out, "Current run:  %s  %s\n", result.Current.StartedAt.Format("2006-01-02 15:04:05"), result.Current.ID)

	fmt.Fprintf(out, "\n  %-10s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Records",
		result.Previous.Records, result.Current.Records,
		formatDelta(result.Current.Records-result.Previous.Records))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Creditors",
		result.Previous.Creditors, result.Current.Creditors,
		formatDelta(result.Current.Creditors-result.Previous.Creditors))

	d := result.Diff
	if d.Empty() {
		fmt.Fprintln(out, "\nNo changes between the two runs.")
	}
	if len(d.Added) > 0 {
		fmt.Fprintf(out, "\nNew Notices (%d):\n", len(d.Added))
		for _, line := range recordLines(d.Added) {
			fmt.Fprintf(out, "  [+] %s\n", line)
		}
	}
	if len(d.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved Notices (%d):\n", len(d.Removed))
		for _, line := range recordLines(d.Removed) {
			fmt.Fprintf(out, "  [-] %s\n", line)
		}
	}
	if len(d.CreditorChanges) > 0 {
		fmt.Fprintf(out, "\nCreditor Changes (%d):\n", len(d.CreditorChanges))
		for _, c := range d.CreditorChanges {
			fmt.Fprintf(out, "  [~] %s: %d -> %d creditors\n", c.Key, c.Before, c.After)
		}
	}
	if d.Unchanged > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d notice(s)\n", d.Unchanged)
	}

	return nil
}

// recordLines renders one line per record.
func recordLines(records []model.Record) []string {
	lines := make([]string, 0, len(records))
	for i := range records {
		r := &records[i]
		parts := []string{r.Key()}
		if r.Date != "" {
			parts = append(parts, r.Date)
		}
		if r.ActType != "" {
			parts = append(parts, r.ActType)
		}
		if r.Court != "" {
			parts = append(parts, r.Court)
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return lines
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
