package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Raam977/citius-scraper/internal/database"
	"github.com/Raam977/citius-scraper/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [query]",
		Short: "List saved searches",
		Long: `History lists the searches saved with 'citius search --save', newest first.

An optional NIF/NIPC or designation restricts the list to that query.

Examples:
  # List the latest saved searches
  citius history

  # List saved searches for one NIF/NIPC
  citius history 515755230

  # Print a saved search again
  citius history --show 0b6e3f1c-6b7d-4b8e-9a51-2f3c9d1e7a10 --format markdown

  # Delete a saved search
  citius history --delete 0b6e3f1c-6b7d-4b8e-9a51-2f3c9d1e7a10`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of searches to list (0 for all)")
	cmd.Flags().BoolP("json", "j", false, "Output the list in JSON format")
	cmd.Flags().String("show", "", "Print the saved search with this ID")
	cmd.Flags().StringP("format", "f", "text", "Format used with --show: csv, json, markdown or text")
	cmd.Flags().String("delete", "", "Delete the saved search with this ID")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	showID, err := flags.GetString("show")
	if err != nil {
		return err
	}
	formatName, err := flags.GetString("format")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetString("delete")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID != "":
		if err := db.DeleteSearch(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted search %s\n", deleteID)
		return nil

	case showID != "":
		result, err := db.GetSearch(ctx, showID)
		if err != nil {
			return err
		}
		w, err := report.NewWriter(format, out, getVersion())
		if err != nil {
			return err
		}
		_, err = w.Write(result)
		return err
	}

	var query string
	if len(args) > 0 {
		query = strings.TrimSpace(args[0])
	}

	// The query filter is applied after loading, so load everything.
	fetchLimit := limit
	if query != "" {
		fetchLimit = 0
	}
	summaries, err := db.ListSearches(ctx, "", fetchLimit)
	if err != nil {
		return err
	}
	if query != "" {
		filtered := summaries[:0]
		for _, s := range summaries {
			if strings.EqualFold(s.Query, query) {
				filtered = append(filtered, s)
			}
		}
		summaries = filtered
		if limit > 0 && len(summaries) > limit {
			summaries = summaries[:limit]
		}
	}

	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summaries)
	}
	return printHistory(out, query, summaries)
}

// printHistory prints saved searches as a text table.
func printHistory(out io.Writer, query string, summaries []database.SearchSummary) error {
	if len(summaries) == 0 {
		if query != "" {
			fmt.Fprintf(out, "No saved searches found for %s\n", query)
		} else {
			fmt.Fprintln(out, "No saved searches found.")
		}
		fmt.Fprintln(out, "\nUse 'citius search --save' to save a search.")
		return nil
	}

	fmt.Fprintf(out, "Saved searches (%d):\n\n", len(summaries))
	fmt.Fprintf(out, "  %-36s  %-19s  %-10s  %-24s  %7s  %9s  %s\n",
		"ID", "Date", "Type", "Query", "Records", "Creditors", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 124))

	for _, s := range summaries {
		status := s.Termination.String()
		if s.Error != "" {
			status = "error"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-10s  %-24s  %7d  %9d  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Type,
			truncate(s.Query, 24),
			s.RecordCount,
			s.CreditorCount,
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'citius compare --nif <NIF>' to compare the latest two runs of a search.")
	return nil
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
