package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names as submitted by callers.
const (
	FieldIncome         = "income"
	FieldDebts          = "debts"
	FieldPaymentHistory = "paymentHistory"
)

// NumericInput is a number submitted either as a JSON number or as a
// numeric string.
type NumericInput string

// UnmarshalJSON accepts 50000, "50000", "50000.00" and null.
func (n *NumericInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericInput(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = NumericInput(num.String())
	return nil
}

// RawProfile is an unvalidated profile submission.
type RawProfile struct {
	Income         NumericInput `json:"income"`
	Debts          NumericInput `json:"debts"`
	PaymentHistory string       `json:"paymentHistory"`
}

// ValidationError names the offending field and a human-readable message.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every field violation of one submission.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Fields returns a field → message map for inline display.
func (e ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		out[fe.Field] = fe.Message
	}
	return out
}

// FieldNames returns the offending field names, sorted.
func (e ValidationErrors) FieldNames() []string {
	names := make([]string, 0, len(e))
	for _, fe := range e {
		names = append(names, fe.Field)
	}
	sort.Strings(names)
	return names
}

func (e ValidationErrors) add(fe *ValidationError) ValidationErrors {
	if fe == nil {
		return e
	}
	return append(e, fe)
}

// AsValidationErrors extracts ValidationErrors from err's chain.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ParseProfile coerces and validates a raw submission. On failure the
// returned error is a ValidationErrors listing every offending field.
func ParseProfile(raw RawProfile) (Profile, error) {
	var errs ValidationErrors

	income, fe := parseAmount(FieldIncome, "Annual income", raw.Income)
	if fe == nil {
		fe = checkIncome(income)
	}
	errs = errs.add(fe)

	debts, fe := parseAmount(FieldDebts, "Debts", raw.Debts)
	if fe == nil {
		fe = checkDebts(debts)
	}
	errs = errs.add(fe)

	history := strings.TrimSpace(raw.PaymentHistory)
	errs = errs.add(checkPaymentHistory(history))

	if len(errs) > 0 {
		return Profile{}, errs
	}
	return Profile{income: income, debts: debts, paymentHistory: PaymentHistory(history)}, nil
}

// Amount bounds. Checked on the exponent before any comparison so that
// inputs like "1e-40000000" are rejected without rescaling.
const (
	MaxAmountDigits   = 15 // amounts must be below 10^15
	MaxFractionDigits = 12
)

var maxAmount = decimal.New(1, MaxAmountDigits)

func parseAmount(field, label string, in NumericInput) (decimal.Decimal, *ValidationError) {
	s := strings.TrimSpace(string(in))
	if s == "" {
		return decimal.Zero, &ValidationError{Field: field, Message: label + " is required."}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: label + " must be a number."}
	}
	return normalizeZero(d), nil
}

// normalizeZero drops the exponent of a zero value, e.g. "0e-99".
func normalizeZero(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return d
}

// checkMagnitude rejects amounts whose scale or size the scorer should
// never have to handle.
func checkMagnitude(field, tooLarge, tooPrecise string, d decimal.Decimal) *ValidationError {
	if d.IsZero() {
		return nil
	}
	if d.Exponent() < -MaxFractionDigits {
		return &ValidationError{Field: field, Message: tooPrecise}
	}
	if d.Exponent() >= MaxAmountDigits || d.Abs().GreaterThanOrEqual(maxAmount) {
		return &ValidationError{Field: field, Message: tooLarge}
	}
	return nil
}

func checkIncome(income decimal.Decimal) *ValidationError {
	if !income.IsPositive() {
		return &ValidationError{Field: FieldIncome, Message: "Annual income must be greater than 0."}
	}
	return checkMagnitude(FieldIncome, "Annual income is too large.",
		"Annual income has too many decimal places.", income)
}

func checkDebts(debts decimal.Decimal) *ValidationError {
	if debts.IsNegative() {
		return &ValidationError{Field: FieldDebts, Message: "Debts cannot be negative."}
	}
	return checkMagnitude(FieldDebts, "Debts are too large.",
		"Debts have too many decimal places.", debts)
}

func checkPaymentHistory(history string) *ValidationError {
	if history == "" {
		return &ValidationError{Field: FieldPaymentHistory, Message: "You need to select a payment history status."}
	}
	if !PaymentHistory(history).Valid() {
		return &ValidationError{Field: FieldPaymentHistory, Message: "Payment history must be one of: excellent, good, fair, poor."}
	}
	return nil
}
