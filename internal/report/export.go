package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Raam977/citius-scraper/internal/model"
)

// DefaultCSVFile is the default CSV export path.
const DefaultCSVFile = "resultados_citius.csv"

// CreateFile creates or truncates path with owner-only permissions,
// creating missing parent directories.
func CreateFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// SiblingJSONPath returns the JSON path written next to a CSV export:
// "out.csv" becomes "out.json".
func SiblingJSONPath(csvPath string) string {
	if ext := filepath.Ext(csvPath); strings.EqualFold(ext, ".csv") {
		return strings.TrimSuffix(csvPath, ext) + ".json"
	}
	return csvPath + ".json"
}

// SaveCSV writes the CSV export to csvPath and the full record structure
// to the sibling JSON file. It returns the JSON path.
func SaveCSV(result *model.SearchResult, csvPath string) (string, error) {
	jsonPath := SiblingJSONPath(csvPath)

	csvFile, err := CreateFile(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	jsonFile, err := CreateFile(jsonPath)
	if err != nil {
		return "", err
	}
	defer jsonFile.Close()

	mw := NewMultiWriter(NewCSVWriter(csvFile), NewJSONWriter(jsonFile, WithPrettyPrint()))
	if _, err := mw.Write(result); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	if err := csvFile.Close(); err != nil {
		return "", err
	}
	if err := jsonFile.Close(); err != nil {
		return "", err
	}
	return jsonPath, nil
}
