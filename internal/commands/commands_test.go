package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "Date,Description,Amount\n" +
	"2026-03-01,Grocery Store,-45.50\n" +
	"2026-03-02,Salary Payment,2500.00\n" +
	"2026-03-03,Netflix,-15.99\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI in-process against a bolt file in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--db", filepath.Join(dir, "cli.db"), "--no-color", "--config", ""))
	err := cmd.Execute()
	return out.String(), err
}

func TestPreview_PrintsSummary(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "march.csv", statementCSV)

	out, err := run(t, dir, "preview", csv)
	require.NoError(t, err)

	assert.Contains(t, out, "Grocery Store")
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "2500.00")
	assert.Contains(t, out, "3 transactions")
	assert.Contains(t, out, "1 income, 2 expenses, 0 duplicates")
}

func TestPreview_JSON(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "march.csv", statementCSV)

	out, err := run(t, dir, "preview", csv, "--json")
	require.NoError(t, err)

	var preview struct {
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &preview))
	assert.Equal(t, 3, preview.Summary.Total)
}

func TestPreview_MalformedStatement(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "bad.csv", "Payee,Memo\nfoo,bar\n")

	_, err := run(t, dir, "preview", csv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed statement")
}

func TestPreview_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "preview", filepath.Join(dir, "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading statement")
}

func TestImport_PersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "march.csv", statementCSV)

	out, err := run(t, dir, "import", csv, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 of 3 transactions")

	// Second run sees the first run's rows through the bolt file.
	out, err = run(t, dir, "import", csv, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 of 3 transactions (3 skipped, 0 errored)")

	out, err = run(t, dir, "preview", csv, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "3 duplicates")
	assert.Contains(t, out, "DUPLICATE")

	// Other users are unaffected.
	out, err = run(t, dir, "import", csv, "--user", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 of 3 transactions")
}

func TestImport_KeepDuplicates(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "march.csv", statementCSV)

	_, err := run(t, dir, "import", csv)
	require.NoError(t, err)

	out, err := run(t, dir, "import", csv, "--skip-duplicates=false", "--currency", "eur", "--json")
	require.NoError(t, err)

	var result struct {
		Summary struct {
			Imported int `json:"imported"`
		} `json:"summary"`
		Imported []struct {
			Transaction struct {
				Currency string `json:"currency"`
			} `json:"transaction"`
		} `json:"imported"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.Summary.Imported)
	require.Len(t, result.Imported, 3)
	assert.Equal(t, "EUR", result.Imported[0].Transaction.Currency)
}

func TestAnomalies_InsufficientHistory(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "anomalies", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "30 days")
	assert.Contains(t, out, "Not enough transaction history")
}

func TestAnomalies_FlagsLargeExpense(t *testing.T) {
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	amounts := []string{"45.00", "48.00", "50.00", "52.00", "55.00", "500.00"}
	today := time.Now()
	for i, amount := range amounts {
		date := today.AddDate(0, 0, -(len(amounts) - i))
		fmt.Fprintf(&b, "%s,Purchase %d,-%s\n", date.Format("2006-01-02"), i, amount)
	}
	csv := writeFile(t, dir, "recent.csv", b.String())

	_, err := run(t, dir, "import", csv)
	require.NoError(t, err)

	out, err := run(t, dir, "anomalies", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "6 expenses analyzed")
	assert.Contains(t, out, "Unusual transactions (1)")
	assert.Contains(t, out, "Purchase 5")

	out, err = run(t, dir, "anomalies", "--days", "30", "--json")
	require.NoError(t, err)
	var report struct {
		AmountAnomalies []struct {
			Type string `json:"type"`
		} `json:"amountAnomalies"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.AmountAnomalies, 1)
	assert.Equal(t, "unusually_high", report.AmountAnomalies[0].Type)
}

func TestInsights_Fallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	dir := t.TempDir()
	csv := writeFile(t, dir, "march.csv", statementCSV)

	_, err := run(t, dir, "import", csv)
	require.NoError(t, err)

	out, err := run(t, dir, "insights", "--timeframe", "quarter", "--json")
	require.NoError(t, err)
	var report struct {
		Insights struct {
			TopCategories []struct {
				Category string `json:"category"`
			} `json:"topCategories"`
		} `json:"insights"`
		Metadata struct {
			Source string `json:"source"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "fallback", report.Metadata.Source)

	out, err = run(t, dir, "insights", "--budgets")
	require.NoError(t, err)
	assert.Contains(t, out, "Suggested monthly budgets")
	assert.Contains(t, out, "source: fallback")
}

func TestUpload_RequiresBucket(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "march.csv", statementCSV)
	t.Setenv("GCS_BUCKET", "")

	_, err := run(t, dir, "upload", csv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bucket")
}

func TestRequiresUser(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "anomalies", "--user", " ")
	require.Error(t, err)
}

func TestConfigFileOverridesCategories(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "march.csv", statementCSV)
	cfgPath := writeFile(t, dir, "statement-insights.yaml", `
store:
  backend: bolt
  bolt_path: `+filepath.Join(dir, "from-config.db")+`
categories:
  - category: Streaming
    keywords: [netflix]
`)

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"import", csv, "--config", cfgPath, "--no-color", "--json"})
	require.NoError(t, cmd.Execute())

	var result struct {
		Imported []struct {
			Candidate struct {
				Description       string `json:"description"`
				SuggestedCategory string `json:"suggestedCategory"`
			} `json:"candidate"`
		} `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Len(t, result.Imported, 3)
	assert.Equal(t, "Streaming", result.Imported[2].Candidate.SuggestedCategory)
	// Rules not in the file no longer apply.
	assert.Empty(t, result.Imported[0].Candidate.SuggestedCategory)

	_, err := os.Stat(filepath.Join(dir, "from-config.db"))
	assert.NoError(t, err)
}
