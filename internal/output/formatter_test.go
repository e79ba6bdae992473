package output

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rpgo/loan-simulator/internal/calculation"
	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

func buildTestComparison(t *testing.T) *domain.ProjectionComparison {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	loans := []domain.Loan{
		{ID: "car", Principal: decimal.NewFromInt(12000), RemainingBalance: decimal.NewFromInt(12000),
			AnnualRate: decimal.RequireFromString("0.07"), TermMonths: 48, StartMonth: start},
		{ID: "student", Principal: decimal.NewFromInt(20000), RemainingBalance: decimal.NewFromInt(20000),
			AnnualRate: decimal.RequireFromString("0.04"), TermMonths: 120, StartMonth: start},
	}
	cmp, err := calculation.NewProjectionEngine().Run(loans, calculation.RunOptions{
		Start:         start,
		Strategy:      domain.StrategyAvalanche,
		Goal:          domain.GoalFastestPayoff,
		MonthlyBudget: decimal.NewFromInt(250),
	})
	if err != nil {
		t.Fatalf("run projection: %v", err)
	}
	return cmp
}

func TestConsoleLiteFormatter(t *testing.T) {
	f := ConsoleFormatter{}
	out, err := f.Format(buildTestComparison(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content := string(out)
	if !strings.HasPrefix(content, "LOAN OVERPAYMENT SUMMARY") {
		t.Fatalf("expected summary heading, got: %s", firstLine(content))
	}
	if !strings.Contains(content, "Interest saved: $") {
		t.Fatalf("expected interest saved line, got: %s", content)
	}
	if !strings.Contains(content, "  car: baseline month ") {
		t.Fatalf("expected car payoff line, got: %s", content)
	}
}

func TestConsoleVerboseFormatter(t *testing.T) {
	f := ConsoleVerboseFormatter{ScheduleRows: 3}
	out, err := f.Format(buildTestComparison(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content := string(out)
	for _, want := range []string{
		"DETAILED LOAN OVERPAYMENT ANALYSIS",
		"KEY ASSUMPTIONS:",
		"Monthly overpayment budget: $250.00 allocated by avalanche",
		"PER-LOAN BREAKDOWN",
		"STRATEGY SCHEDULE (first 3 months)",
		"2025-03-01",
		"First loan retired: car",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in verbose output:\n%s", want, truncate(content, 800))
		}
	}
	if strings.Contains(content, "2025-04-01") {
		t.Fatalf("schedule should stop after 3 rows")
	}
}

func TestCSVSummarizerDeterministicOrder(t *testing.T) {
	f := CSVSummarizer{}
	out, err := f.Format(buildTestComparison(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (header+2 loans+total), got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "car,") || !strings.HasPrefix(lines[2], "student,") || !strings.HasPrefix(lines[3], "TOTAL,") {
		t.Fatalf("rows not sorted deterministically: %v", lines)
	}
}

func TestCSVSummarizerTotalsMatchSummary(t *testing.T) {
	cmp := buildTestComparison(t)
	out, err := CSVSummarizer{}.Format(cmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	saved := decimal.Zero
	for _, r := range records[1 : len(records)-1] {
		saved = saved.Add(decimal.RequireFromString(r[3]))
	}
	total := records[len(records)-1]
	if !saved.Equal(decimal.RequireFromString(total[3])) {
		t.Fatalf("per-loan savings %s do not add up to total %s", saved, total[3])
	}
	if total[3] != cmp.Summary.TotalInterestSaved.StringFixed(2) {
		t.Fatalf("total row %s, summary %s", total[3], cmp.Summary.TotalInterestSaved.StringFixed(2))
	}
}

func TestCSVDetailedExporterRows(t *testing.T) {
	cmp := buildTestComparison(t)
	out, err := CSVDetailedExporter{}.Format(cmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := 1
	for _, p := range []domain.Projection{cmp.Baseline, cmp.StrategyRun} {
		for _, m := range p.Months {
			want += len(m.Loans)
		}
	}
	if len(records) != want {
		t.Fatalf("expected %d records, got %d", want, len(records))
	}
	if records[1][0] != "baseline" || records[1][2] != "2025-01-01" {
		t.Fatalf("unexpected first row: %v", records[1])
	}
}

func TestJSONFormatterRoundTrip(t *testing.T) {
	cmp := buildTestComparison(t)
	out, err := JSONFormatter{}.Format(cmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back domain.ProjectionComparison
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !back.Summary.TotalInterestSaved.Equal(cmp.Summary.TotalInterestSaved) {
		t.Fatalf("summary lost in JSON: %s vs %s", back.Summary.TotalInterestSaved, cmp.Summary.TotalInterestSaved)
	}
	if back.Strategy != domain.StrategyAvalanche {
		t.Fatalf("strategy name lost in JSON: %q", back.Strategy)
	}
	if len(back.StrategyRun.Months) != len(cmp.StrategyRun.Months) || back.StrategyRun.MonthsToPayoff != cmp.StrategyRun.MonthsToPayoff {
		t.Fatalf("strategy schedule lost in JSON: %d months, want %d", len(back.StrategyRun.Months), len(cmp.StrategyRun.Months))
	}
	if len(back.Baseline.Months) != len(cmp.Baseline.Months) {
		t.Fatalf("baseline schedule lost in JSON: %d months, want %d", len(back.Baseline.Months), len(cmp.Baseline.Months))
	}
}

func TestYAMLFormatter(t *testing.T) {
	cmp := buildTestComparison(t)
	out, err := YAMLFormatter{}.Format(cmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back yamlReport
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Strategy != "avalanche" || len(back.Loans) != 2 {
		t.Fatalf("unexpected yaml report: %+v", back)
	}
	if back.Loans[0].ID != "car" || back.Loans[0].StrategyPayoffIdx >= back.Loans[0].BaselinePayoffIdx {
		t.Fatalf("car should be retired early under avalanche: %+v", back.Loans[0])
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func TestFormatterAliasResolution(t *testing.T) {
	cases := map[string]string{
		"console-verbose": "console",
		"CSV-Schedule":    "detailed-csv",
		"summary":         "console-lite",
		"yml":             "yaml",
		"json":            "json",
	}
	for alias, want := range cases {
		f := GetFormatterByName(alias)
		if f == nil {
			t.Fatalf("alias %s did not resolve to a formatter", alias)
		}
		if f.Name() != want {
			t.Fatalf("alias %s resolved to %q, want %q", alias, f.Name(), want)
		}
	}
}

func TestUnknownFormatErrorIncludesSuggestions(t *testing.T) {
	_, err := GenerateReport(&domain.ProjectionComparison{}, "definitely-not-a-format", t.TempDir())
	if err == nil {
		t.Fatalf("expected error for unknown format")
	}
	msg := err.Error()
	if !strings.Contains(msg, "unsupported report format") || !strings.Contains(msg, "Try one of:") {
		t.Fatalf("error message missing suggestions: %s", msg)
	}
}
