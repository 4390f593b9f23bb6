// Package csvparse turns raw transaction/trading-activity CSV bytes into
// typed pending rows, tolerating flexible headers and locale-ambiguous
// numeric formatting. Row-level problems are collected rather than aborting
// the whole parse (spec.md §4.11).
package csvparse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// ParsedTransaction is one successfully parsed transaction CSV row.
type ParsedTransaction struct {
	RowNumber          int
	Date               string
	Amount             string // cleaned, canonical "."-decimal string
	Currency           string
	Description        string
	Category           string
	AccountID          int64
	Tags               []string
	Notes              string
	ValueDate          string
	Payer              string
	Payee              string
	Reference          string
	TransactionType    string
	CounterpartyIBAN   string
	CreditorID         string
	MandateReference   string
	CustomerReference  string
}

// TransactionResult is the outcome of parsing a transaction CSV.
type TransactionResult struct {
	Rows   []ParsedTransaction
	Errors []string
}

var transactionColumns = []string{
	"currency", "category", "account_id", "tags", "notes", "value_date",
	"payer", "payee", "reference", "transaction_type", "counterparty_iban",
	"creditor_id", "mandate_reference", "customer_reference",
}

// ParseTransactions parses transaction CSV bytes. The required header triad
// is date, amount, description; everything else is optional.
func ParseTransactions(content []byte) (*TransactionResult, error) {
	if !isValidUTF8String(content) {
		return nil, errs.New(errs.KindCsvParse, "file is not valid UTF-8")
	}

	r := csv.NewReader(strings.NewReader(string(content)))
	r.FieldsPerRecord = -1 // flexible: rows may have fewer/more fields than the header

	headerRow, err := r.Read()
	if err != nil {
		return nil, errs.Wrap(errs.KindCsvParse, "failed to read CSV header", err)
	}
	headers := normalizeHeaders(headerRow)

	dateCol, okDate := findColumn(headers, "date")
	amountCol, okAmount := findColumn(headers, "amount")
	descCol, okDesc := findColumn(headers, "description")
	if !okDate {
		return nil, errs.New(errs.KindCsvParse, "no date column found in CSV")
	}
	if !okAmount {
		return nil, errs.New(errs.KindCsvParse, "no amount column found in CSV")
	}
	if !okDesc {
		return nil, errs.New(errs.KindCsvParse, "no description column found in CSV")
	}

	optional := map[string]int{}
	for _, name := range transactionColumns {
		if col, ok := findColumn(headers, name); ok {
			optional[name] = col
		}
	}

	result := &TransactionResult{}
	rowNumber := 1 // header consumes row 1; first data row reports as Row 2

	for {
		record, readErr := r.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			rowNumber++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNumber, readErr))
			continue
		}
		rowNumber++

		date := trimField(record, dateCol)
		amountRaw := trimField(record, amountCol)
		description := trimField(record, descCol)

		if date == "" || amountRaw == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: missing date or amount", rowNumber))
			continue
		}

		cleaned := CleanAmount(amountRaw)
		if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: invalid amount %q", rowNumber, amountRaw))
			continue
		}

		row := ParsedTransaction{
			RowNumber:   rowNumber,
			Date:        date,
			Amount:      cleaned,
			Description: description,
			Currency:    optionalOrDefault(record, optional, "currency", "USD"),
			Category:    optionalField(record, optional, "category"),
			Notes:       optionalField(record, optional, "notes"),
			ValueDate:   optionalField(record, optional, "value_date"),
			Payer:       optionalField(record, optional, "payer"),
			Payee:       optionalField(record, optional, "payee"),
			Reference:   optionalField(record, optional, "reference"),
			TransactionType:   optionalField(record, optional, "transaction_type"),
			CounterpartyIBAN:  optionalField(record, optional, "counterparty_iban"),
			CreditorID:        optionalField(record, optional, "creditor_id"),
			MandateReference:  optionalField(record, optional, "mandate_reference"),
			CustomerReference: optionalField(record, optional, "customer_reference"),
		}

		if col, ok := optional["account_id"]; ok {
			if v := trimField(record, col); v != "" {
				if id, err := strconv.ParseInt(v, 10, 64); err == nil {
					row.AccountID = id
				}
			}
		}
		if col, ok := optional["tags"]; ok {
			if v := trimField(record, col); v != "" {
				for _, t := range strings.Split(v, ",") {
					t = strings.TrimSpace(t)
					if t != "" {
						row.Tags = append(row.Tags, t)
					}
				}
			}
		}

		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// ParsedActivity is one successfully parsed trading-activity CSV row.
type ParsedActivity struct {
	RowNumber int
	Date      string
	Symbol    string
	Kind      string
	Quantity  string
	UnitPrice string
	Currency  string
	Fee       string
}

// ActivityResult is the outcome of parsing a trading-activity CSV.
type ActivityResult struct {
	Rows   []ParsedActivity
	Errors []string
}

var validActivityKinds = map[string]bool{
	"BUY": true, "SELL": true, "DIVIDEND": true, "INTEREST": true,
	"DEPOSIT": true, "WITHDRAWAL": true, "ADDHOLDING": true,
	"REMOVEHOLDING": true, "TRANSFERIN": true, "TRANSFEROUT": true,
	"FEE": true, "TAX": true, "SPLIT": true,
}

// ParseActivities parses trading-activity CSV bytes. The required header
// triad is date, symbol, activityType (accepting activity_type/type as
// aliases); optional columns are quantity, unitPrice (or price), currency,
// fee.
func ParseActivities(content []byte) (*ActivityResult, error) {
	if !isValidUTF8String(content) {
		return nil, errs.New(errs.KindCsvParse, "file is not valid UTF-8")
	}

	r := csv.NewReader(strings.NewReader(string(content)))
	r.FieldsPerRecord = -1

	headerRow, err := r.Read()
	if err != nil {
		return nil, errs.Wrap(errs.KindCsvParse, "failed to read CSV header", err)
	}
	headers := normalizeHeaders(headerRow)

	dateCol, okDate := findColumn(headers, "date")
	symbolCol, okSymbol := findColumn(headers, "symbol")
	kindCol, okKind := findAnyColumn(headers, "activitytype", "activity_type", "type")
	if !okDate {
		return nil, errs.New(errs.KindCsvParse, "no date column found in CSV")
	}
	if !okSymbol {
		return nil, errs.New(errs.KindCsvParse, "no symbol column found in CSV")
	}
	if !okKind {
		return nil, errs.New(errs.KindCsvParse, "no activityType column found in CSV")
	}

	quantityCol, hasQuantity := findColumn(headers, "quantity")
	priceCol, hasPrice := findAnyColumn(headers, "unitprice", "price")
	currencyCol, hasCurrency := findColumn(headers, "currency")
	feeCol, hasFee := findColumn(headers, "fee")

	result := &ActivityResult{}
	rowNumber := 1

	for {
		record, readErr := r.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			rowNumber++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNumber, readErr))
			continue
		}
		rowNumber++

		date := trimField(record, dateCol)
		symbol := trimField(record, symbolCol)
		kindRaw := strings.ToUpper(trimField(record, kindCol))

		if date == "" || symbol == "" || kindRaw == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: missing date, symbol, or activity type", rowNumber))
			continue
		}
		if !validActivityKinds[kindRaw] {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: unknown activity kind %q", rowNumber, kindRaw))
			continue
		}

		row := ParsedActivity{
			RowNumber: rowNumber,
			Date:      date,
			Symbol:    symbol,
			Kind:      kindRaw,
			Currency:  "USD",
		}

		if hasQuantity {
			if v := trimField(record, quantityCol); v != "" {
				row.Quantity = CleanAmount(v)
			}
		}
		if hasPrice {
			if v := trimField(record, priceCol); v != "" {
				row.UnitPrice = CleanAmount(v)
			}
		}
		if hasCurrency {
			if v := trimField(record, currencyCol); v != "" {
				row.Currency = v
			}
		}
		if hasFee {
			if v := trimField(record, feeCol); v != "" {
				row.Fee = CleanAmount(v)
			}
		}

		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// CleanAmount normalizes a locale-ambiguous numeric string into a canonical
// "."-decimal form parseable as a float. If both '.' and ',' appear, the
// last-occurring one is the decimal separator and the other is discarded as
// a thousands separator; if only one appears, it is the decimal separator.
// Only the first occurrence of the decimal separator is kept. A '-' is kept
// when nothing has been written before it; every other non-digit character
// (currency symbols, spaces) is dropped. CleanAmount is idempotent: clean(clean(x)) == clean(x).
func CleanAmount(amount string) string {
	lastDot := strings.LastIndexByte(amount, '.')
	lastComma := strings.LastIndexByte(amount, ',')

	var decimalChar rune
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimalChar = '.'
		} else {
			decimalChar = ','
		}
	case lastDot >= 0:
		decimalChar = '.'
	case lastComma >= 0:
		decimalChar = ','
	default:
		decimalChar = 0
	}

	var b strings.Builder
	hasDecimal := false
	for _, c := range amount {
		switch {
		case unicode.IsDigit(c):
			b.WriteRune(c)
		case c == decimalChar && !hasDecimal:
			b.WriteRune('.')
			hasDecimal = true
		case c == '-' && b.Len() == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ValidateDecimal parses a cleaned amount string through shopspring/decimal
// as a sanity check before the caller rounds it to cents; decimal.Decimal's
// arbitrary precision catches cases a naive float64 parse would silently
// round differently than the eventual int64-cents conversion.
func ValidateDecimal(cleaned string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, errs.Wrap(errs.KindValidation, fmt.Sprintf("invalid amount %q", cleaned), err)
	}
	return d, nil
}

func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func findColumn(headers []string, name string) (int, bool) {
	for i, h := range headers {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

func findAnyColumn(headers []string, names ...string) (int, bool) {
	for _, name := range names {
		if col, ok := findColumn(headers, name); ok {
			return col, true
		}
	}
	return -1, false
}

func trimField(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}

func optionalField(record []string, optional map[string]int, name string) string {
	col, ok := optional[name]
	if !ok {
		return ""
	}
	return trimField(record, col)
}

func optionalOrDefault(record []string, optional map[string]int, name, fallback string) string {
	v := optionalField(record, optional, name)
	if v == "" {
		return fallback
	}
	return v
}

func isValidUTF8String(b []byte) bool {
	return strings.ToValidUTF8(string(b), "�") == string(b)
}
