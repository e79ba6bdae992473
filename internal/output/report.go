package output

import (
	"os"
	"strings"

	"github.com/rpgo/loan-simulator/internal/domain"
	"gopkg.in/yaml.v3"
)

// GenerateReport writes the comparison to a timestamped file in dir using the
// named formatter and returns the file name. "all" writes the verbose console
// report and the schedule CSV.
func GenerateReport(results *domain.ProjectionComparison, format, dir string) ([]string, error) {
	if NormalizeFormatName(format) == "all" {
		a, err := WriteFormatted(ConsoleVerboseFormatter{}, results, dir, "txt")
		if err != nil {
			return nil, err
		}
		b, err := WriteFormatted(CSVDetailedExporter{}, results, dir, "csv")
		if err != nil {
			return []string{a}, err
		}
		return []string{a, b}, nil
	}

	f := GetFormatterByName(format)
	if f == nil {
		return nil, UnsupportedFormatError(format)
	}
	name, err := WriteFormatted(f, results, dir, extensionFor(f.Name()))
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func extensionFor(name string) string {
	switch {
	case strings.Contains(name, "csv"):
		return "csv"
	case strings.HasPrefix(name, "console"):
		return "txt"
	default:
		return name
	}
}

// SavePortfolio writes a portfolio back out in the YAML form LoadPortfolio reads.
func SavePortfolio(portfolio *domain.Portfolio, filename string) error {
	b, err := yaml.Marshal(portfolio)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0644)
}
