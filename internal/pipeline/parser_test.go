package pipeline

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestParseCSV_SignConvention(t *testing.T) {
	result, err := ParseCSV([]byte("Date,Description,Amount\n2026-02-01,Grocery,-45.50"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	assert.Equal(t, domain.TransactionTypeExpense, c.Type)
	assert.True(t, c.Amount.Equal(dec("45.50")), "amount = %s", c.Amount)
	assert.Equal(t, date(2026, time.February, 1), c.Date)
	assert.Equal(t, "Grocery", c.Description)
	assert.Equal(t, "2026-02-01,Grocery,-45.50", c.SourceLine)
	assert.Equal(t, 2, c.LineNumber)
}

func TestParseCSV_PositiveAmountIsIncome(t *testing.T) {
	result, err := ParseCSV([]byte("Date,Description,Amount\n2026-03-02,Payroll,1000.00"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, domain.TransactionTypeIncome, result.Candidates[0].Type)
	assert.True(t, result.Candidates[0].Amount.Equal(dec("1000")))
}

func TestParseCSV_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no date column", "Col1,Col2\nval1,val2"},
		{"header only", "Date,Description,Amount"},
		{"empty", ""},
		{"header and blank lines", "Date,Description,Amount\n\n\n"},
		{"no amount shape", "Date,Description\n2026-01-01,Coffee"},
		{"debit without credit", "Date,Description,Debit\n2026-01-01,Coffee,4.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, IsMalformedInput(err), "expected MalformedInputError, got %v", err)
		})
	}
}

func TestParseCSV_DebitCredit(t *testing.T) {
	input := "Posted Date,Memo,Withdrawal,Deposit\n" +
		"01/15/2026,Coffee Shop,4.50,\n" +
		"01/16/2026,Payroll,,\"$2,500.00\"\n" +
		"01/17/2026,Nothing,,\n" +
		"01/18/2026,Refund of fee,-3.00,\n"

	result, err := ParseCSV([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)

	assert.Equal(t, domain.TransactionTypeExpense, result.Candidates[0].Type)
	assert.True(t, result.Candidates[0].Amount.Equal(dec("4.50")))
	assert.Equal(t, date(2026, time.January, 15), result.Candidates[0].Date)

	assert.Equal(t, domain.TransactionTypeIncome, result.Candidates[1].Type)
	assert.True(t, result.Candidates[1].Amount.Equal(dec("2500")))

	assert.Equal(t, domain.TransactionTypeExpense, result.Candidates[2].Type)
	assert.True(t, result.Candidates[2].Amount.Equal(dec("3")))

	assert.Equal(t, 4, result.DataRows)
	assert.Equal(t, 1, result.SkippedRows)
}

func TestParseCSV_SkipsBadRowsAndCountsThem(t *testing.T) {
	input := "Date,Description,Amount\n" +
		"2026-02-01,Good row,-10.00\n" +
		"not-a-date,Bad date,-10.00\n" +
		"2026-02-02,Bad amount,abc\n" +
		"2026-02-03,Zero,0\n" +
		"2026-02-30,Impossible date,-5\n" +
		"\n" +
		"2026-02-04,Tiny,-0.001\n" +
		"2026-02-05,Another good row,20\n"

	result, err := ParseCSV([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "Good row", result.Candidates[0].Description)
	assert.Equal(t, "Another good row", result.Candidates[1].Description)
	assert.Equal(t, 7, result.DataRows)
	assert.Equal(t, 5, result.SkippedRows)
}

func TestParseCSV_QuotedFieldsAndPunctuation(t *testing.T) {
	input := "\"Transaction Date\",\"Description\",\"Amount\"\r\n" +
		"\"2026-04-01\",\"ACME, INC. PAYMENT\",\"-$1,234.567\"\r\n"

	result, err := ParseCSV([]byte(input))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	assert.Equal(t, "ACME, INC. PAYMENT", c.Description)
	assert.True(t, c.Amount.Equal(dec("1234.57")), "amount = %s", c.Amount)
	assert.Equal(t, domain.TransactionTypeExpense, c.Type)
}

func TestParseCSV_ByteOrderMark(t *testing.T) {
	result, err := ParseCSV([]byte("\ufeffDate,Description,Amount\n2026-02-01,Grocery,-1"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
}

func TestParseCSV_DescriptionFallsBackToSecondColumn(t *testing.T) {
	result, err := ParseCSV([]byte("Date,Payee,Amount\n2026-02-01,Corner Shop,-3"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "Corner Shop", result.Candidates[0].Description)

	result, err = ParseCSV([]byte("Date,Amount\n2026-02-01,-3"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "", result.Candidates[0].Description)
}

func TestParseCSV_Deterministic(t *testing.T) {
	input := []byte("Date,Description,Amount\n2026-02-01,A,-1\n02/03/2026,B,2\n04-02-2026,C,-3")

	first, err := ParseCSV(input)
	require.NoError(t, err)
	second, err := ParseCSV(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{` a , b ,c `, []string{"a", "b", "c"}},
		{`"a,b",c`, []string{"a,b", "c"}},
		{`a,,c`, []string{"a", "", "c"}},
		{`a,`, []string{"a", ""}},
		{`"x ""y"" z",1`, []string{"x y z", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, splitLine(tt.line))
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want civil.Date
		ok   bool
	}{
		{"2026-02-01", date(2026, time.February, 1), true},
		{"2026-02-01T10:30:00Z", date(2026, time.February, 1), true},
		{"02/03/2026", date(2026, time.February, 3), true},
		{"2/3/2026", date(2026, time.February, 3), true},
		{"04-02-2026", date(2026, time.February, 4), true},
		{"4-2-2026", date(2026, time.February, 4), true},
		{"Feb 5, 2026", date(2026, time.February, 5), true},
		{"5 Feb 2026", date(2026, time.February, 5), true},
		{"2026/02/06", date(2026, time.February, 6), true},
		{"13/01/2026", civil.Date{}, false},
		{"2026-13-01", civil.Date{}, false},
		{"yesterday", civil.Date{}, false},
		{"", civil.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
