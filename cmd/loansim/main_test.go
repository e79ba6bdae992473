package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPortfolio = `loans:
  - id: car
    name: Car
    principal: 15000
    remaining_balance: 12000
    annual_rate: 0.065
    term_months: 48
    start_month: 2025-01-01T00:00:00Z
  - id: student
    principal: 20000
    annual_rate: 4.5
    term_months: 120
    start_month: 2025-01-01T00:00:00Z
settings:
  monthly_overpayment_limit: 200
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), "loansim %v", args)
	return out.String()
}

func TestParseMonth(t *testing.T) {
	m, err := parseMonth("2025-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), m)

	m, err = parseMonth("2025-07-19")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Day())

	_, err = parseMonth("July")
	assert.Error(t, err)
}

func TestProjectCommandJSON(t *testing.T) {
	path := writeFile(t, "portfolio.yaml", testPortfolio)

	out := execute(t, "project", path, "--format", "json", "--start", "2025-03")

	var cmp domain.ProjectionComparison
	require.NoError(t, json.Unmarshal([]byte(out), &cmp))
	assert.Equal(t, domain.StrategyAvalanche, cmp.Strategy)
	assert.True(t, cmp.Summary.TotalInterestSaved.IsPositive())
	assert.Less(t, cmp.Summary.ProjectedMonthsToPayoff, cmp.Summary.BaselineMonthsToPayoff)
}

func TestPortfolioAndSimulationCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, "loansim.yaml", "store:\n  path: "+filepath.Join(dir, "loansim.db")+"\n"+
		"polling:\n  initial_interval: 10ms\n  max_interval: 50ms\n  multiplier: 2\n"+
		"log:\n  level: error\n  format: text\n")
	portfolioFile := writeFile(t, "portfolio.yaml", testPortfolio)
	base := []string{"--config", cfg, "--user", "alice"}

	out := execute(t, append([]string{"loans", "import", portfolioFile}, base...)...)
	assert.Contains(t, out, "Imported 2 loans")

	out = execute(t, append([]string{"loans", "list"}, base...)...)
	assert.Contains(t, out, "car")
	assert.Contains(t, out, "$12000.00")

	out = execute(t, append([]string{"settings"}, base...)...)
	assert.Contains(t, out, "Monthly overpayment limit: $200.00")

	out = execute(t, append([]string{"simulate", "submit", "--strategy", "snowball"}, base...)...)
	assert.Contains(t, out, "Status:            completed")
	assert.Contains(t, out, "Strategy:          snowball")

	out = execute(t, append([]string{"dashboard", "--json"}, base...)...)
	var view struct {
		Totals struct {
			Loans int `json:"loans"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 2, view.Totals.Loans)

	exported := filepath.Join(dir, "export.yaml")
	out = execute(t, append([]string{"loans", "export", exported}, base...)...)
	assert.Contains(t, out, "Wrote 2 loans")
	_, err := os.Stat(exported)
	assert.NoError(t, err)
}
