package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// Header patterns are matched against lowercased, unquoted header cells.
// The first matching column wins.
var (
	dateHeaderPattern   = regexp.MustCompile(`(?i)date|trans.*date|posted`)
	descHeaderPattern   = regexp.MustCompile(`(?i)desc|description|memo|narration|particular`)
	amountHeaderPattern = regexp.MustCompile(`(?i)^amount$|^value$`)
	debitHeaderPattern  = regexp.MustCompile(`(?i)debit|withdrawal|expense`)
	creditHeaderPattern = regexp.MustCompile(`(?i)credit|deposit|income`)
)

var (
	isoDatePattern      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	monthFirstPattern   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)
	dayFirstDatePattern = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})`)

	// fallbackDateLayouts are tried in order once the explicit shapes fail.
	fallbackDateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006/01/02",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"2 Jan 2006",
		"02 Jan 2006",
		"2 January 2006",
		"Mon, 02 Jan 2006",
		time.RFC1123,
	}

	numericReplacer = strings.NewReplacer(`"`, "", ",", "", "$", "", " ", "")
)

// ParseResult is the output of ParseCSV. SkippedRows counts non-blank data
// lines that were dropped because their amount or date could not be used.
type ParseResult struct {
	Candidates  []CandidateTransaction
	DataRows    int
	SkippedRows int
}

type columnLayout struct {
	date, desc, amount, debit, credit int
}

func (l columnLayout) hasSingleAmount() bool { return l.amount != -1 }

func (l columnLayout) hasDebitCredit() bool { return l.debit != -1 && l.credit != -1 }

func (l columnLayout) claims(idx int) bool {
	return idx == l.date || idx == l.amount || idx == l.debit || idx == l.credit
}

// ParseCSV turns a bank-exported CSV into candidate transactions.
//
// The header row decides the layout: a date column is required, plus either a
// single signed amount column or a debit/credit pair. Rows whose amount or
// date cannot be used are skipped and counted rather than failing the parse.
func ParseCSV(data []byte) (*ParseResult, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return nil, malformed("CSV file must have at least a header row and one data row")
	}

	layout, err := detectLayout(lines[0])
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		result.DataRows++

		candidate, ok := parseRow(layout, line)
		if !ok {
			result.SkippedRows++
			continue
		}
		candidate.LineNumber = i + 1
		result.Candidates = append(result.Candidates, candidate)
	}

	return result, nil
}

func detectLayout(headerLine string) (columnLayout, error) {
	headers := splitLine(headerLine)
	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	layout := columnLayout{
		date:   findColumn(headers, dateHeaderPattern),
		desc:   findColumn(headers, descHeaderPattern),
		amount: findColumn(headers, amountHeaderPattern),
		debit:  findColumn(headers, debitHeaderPattern),
		credit: findColumn(headers, creditHeaderPattern),
	}

	if layout.date == -1 {
		return layout, malformed("CSV must contain a date column (Date, Transaction Date, Posted)")
	}
	if !layout.hasSingleAmount() && !layout.hasDebitCredit() {
		return layout, malformed("CSV must contain an amount column or both debit and credit columns")
	}

	// Without a description header the second column is used, unless it is
	// already claimed by another field.
	if layout.desc == -1 && len(headers) > 1 && !layout.claims(1) {
		layout.desc = 1
	}

	return layout, nil
}

func findColumn(headers []string, pattern *regexp.Regexp) int {
	for i, h := range headers {
		if pattern.MatchString(h) {
			return i
		}
	}
	return -1
}

func parseRow(layout columnLayout, line string) (CandidateTransaction, bool) {
	values := splitLine(line)

	var (
		amount decimal.Decimal
		txType domain.TransactionType
	)

	if layout.hasSingleAmount() {
		value, ok := parseAmount(field(values, layout.amount))
		if !ok {
			return CandidateTransaction{}, false
		}
		txType = domain.TransactionTypeIncome
		if value.IsNegative() {
			txType = domain.TransactionTypeExpense
		}
		amount = value.Abs()
	} else {
		debit, ok := parseAmount(field(values, layout.debit))
		if !ok {
			return CandidateTransaction{}, false
		}
		credit, ok := parseAmount(field(values, layout.credit))
		if !ok {
			return CandidateTransaction{}, false
		}
		if !debit.IsZero() {
			amount, txType = debit.Abs(), domain.TransactionTypeExpense
		} else {
			amount, txType = credit.Abs(), domain.TransactionTypeIncome
		}
	}

	amount = amount.Round(2)
	if !amount.IsPositive() {
		return CandidateTransaction{}, false
	}

	date, ok := parseDate(field(values, layout.date))
	if !ok {
		return CandidateTransaction{}, false
	}

	return CandidateTransaction{
		Date:        date,
		Description: field(values, layout.desc),
		Amount:      amount,
		Type:        txType,
		SourceLine:  line,
	}, true
}

// splitLine splits one CSV line on commas that are outside quotes. Quote
// characters toggle the quoted state and are dropped.
func splitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}

	return append(fields, strings.TrimSpace(current.String()))
}

func field(values []string, idx int) string {
	if idx < 0 || idx >= len(values) {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(values[idx], `"`, ""))
}

// parseAmount strips currency and thousands punctuation before parsing.
// An empty cell is zero.
func parseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := numericReplacer.Replace(raw)
	if cleaned == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseDate tries ISO, then MM/DD/YYYY, then DD-MM-YYYY, then the generic
// layouts. Impossible calendar dates such as 02/30/2026 are rejected.
func parseDate(raw string) (civil.Date, bool) {
	if raw == "" {
		return civil.Date{}, false
	}

	if m := isoDatePattern.FindStringSubmatch(raw); m != nil {
		return calendarDate(m[1], m[2], m[3])
	}
	if m := monthFirstPattern.FindStringSubmatch(raw); m != nil {
		return calendarDate(m[3], m[1], m[2])
	}
	if m := dayFirstDatePattern.FindStringSubmatch(raw); m != nil {
		return calendarDate(m[3], m[2], m[1])
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func calendarDate(year, month, day string) (civil.Date, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return civil.Date{}, false
	}

	date := civil.Date{Year: y, Month: time.Month(m), Day: d}
	if !date.IsValid() {
		return civil.Date{}, false
	}
	return date, true
}
