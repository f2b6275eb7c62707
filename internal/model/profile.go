package model

import (
	"github.com/shopspring/decimal"
)

// PaymentHistory is the self-reported payment-history category.
type PaymentHistory string

const (
	PaymentHistoryExcellent PaymentHistory = "excellent"
	PaymentHistoryGood      PaymentHistory = "good"
	PaymentHistoryFair      PaymentHistory = "fair"
	PaymentHistoryPoor      PaymentHistory = "poor"
)

// Valid reports whether h is one of the four accepted categories.
func (h PaymentHistory) Valid() bool {
	switch h {
	case PaymentHistoryExcellent, PaymentHistoryGood, PaymentHistoryFair, PaymentHistoryPoor:
		return true
	default:
		return false
	}
}

// PaymentHistoryOption describes a category for form rendering.
type PaymentHistoryOption struct {
	Value PaymentHistory `json:"value"`
	Label string         `json:"label"`
}

// PaymentHistoryOptions returns the accepted categories, best first.
func PaymentHistoryOptions() []PaymentHistoryOption {
	return []PaymentHistoryOption{
		{Value: PaymentHistoryExcellent, Label: "Excellent (No missed payments)"},
		{Value: PaymentHistoryGood, Label: "Good (1-2 late payments)"},
		{Value: PaymentHistoryFair, Label: "Fair (A few late payments)"},
		{Value: PaymentHistoryPoor, Label: "Poor (Multiple late payments/defaults)"},
	}
}

// Profile is a validated financial profile. The zero value is not valid;
// build one with ParseProfile or NewProfile.
type Profile struct {
	income         decimal.Decimal
	debts          decimal.Decimal
	paymentHistory PaymentHistory
}

// NewProfile validates already-typed values and returns a Profile.
func NewProfile(income, debts decimal.Decimal, history PaymentHistory) (Profile, error) {
	income, debts = normalizeZero(income), normalizeZero(debts)

	var errs ValidationErrors
	errs = errs.add(checkIncome(income))
	errs = errs.add(checkDebts(debts))
	errs = errs.add(checkPaymentHistory(string(history)))
	if len(errs) > 0 {
		return Profile{}, errs
	}
	return Profile{income: income, debts: debts, paymentHistory: history}, nil
}

// Income is the annual income in currency units.
func (p Profile) Income() decimal.Decimal { return p.income }

// Debts is the total outstanding debt in currency units.
func (p Profile) Debts() decimal.Decimal { return p.debts }

// PaymentHistory is the payment-history category.
func (p Profile) PaymentHistory() PaymentHistory { return p.paymentHistory }

// Raw converts the profile back into its submission form.
func (p Profile) Raw() RawProfile {
	return RawProfile{
		Income:         NumericInput(p.income.String()),
		Debts:          NumericInput(p.debts.String()),
		PaymentHistory: string(p.paymentHistory),
	}
}
