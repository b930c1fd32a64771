package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// BaseViewed anchors an intent at the month the user is looking at.
	BaseViewed BaseMonthRef = "viewed"
	// BaseCurrent anchors an intent at the latest month ever written.
	BaseCurrent BaseMonthRef = "current"
)

type (
	// BaseMonthRef selects the anchor month for relative expense intents.
	BaseMonthRef string

	// Budget maps category names to monthly allowances for exactly one
	// month. Names are case-preserved and compared case-insensitively.
	// A month's snapshot is independent of every other month's; copying
	// forward is an explicit operation, never inheritance.
	Budget map[string]Money

	// Expense is a persisted ledger record. ID, Category, Amount and Month
	// are immutable after creation; records are deleted, never edited.
	Expense struct {
		ID          string
		Category    string
		Description string
		Amount      Money
		Month       MonthKey // the month it counts against
		CreatedAt   time.Time
		GroupID     string // shared by all installments of one purchase
		GroupLabel  string // "2/3", empty for simple expenses
	}

	// InstallmentPlan describes how an installment purchase spreads over
	// consecutive months. Exactly one of PerInstallment or Total is
	// expected; Total is split cent-exactly, PerInstallment is replicated
	// literally.
	InstallmentPlan struct {
		Count             int
		PerInstallment    *Money
		Total             *Money
		BaseMonth         BaseMonthRef
		StartOffsetMonths int
	}

	// ExpenseIntent is an ephemeral add-expense request, never persisted.
	// Installments takes precedence over Amount when both are present.
	ExpenseIntent struct {
		Category     string
		Description  string
		Amount       *Money
		Installments *InstallmentPlan
	}
)

var (
	ErrInvalidMonthKey = errors.New("invalid month key")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
	ErrExpenseNotFound = errors.New("expense not found")
)

// Lookup finds a budget entry by name, case-insensitively, returning the
// stored (case-preserved) name.
func (b Budget) Lookup(category string) (string, Money, bool) {
	for name, amount := range b {
		if strings.EqualFold(name, category) {
			return name, amount, true
		}
	}
	return "", Money{}, false
}

// Merge patches b with entries from patch, matching existing keys
// case-insensitively so "mercado" updates "Mercado" instead of duplicating it.
func (b Budget) Merge(patch Budget) Budget {
	merged := make(Budget, len(b)+len(patch))
	for name, amount := range b {
		merged[name] = amount
	}
	for name, amount := range patch {
		if existing, _, ok := merged.Lookup(name); ok {
			merged[existing] = amount
			continue
		}
		merged[name] = amount
	}
	return merged
}

func (b Budget) Validate() error {
	for name, amount := range b {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyCategory
		}
		if amount.Cents < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// GroupLabel renders the installment position label, one-based.
func GroupLabel(position, count int) string {
	return strconv.Itoa(position) + "/" + strconv.Itoa(count)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("empty expense id")
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Month.Validate(); err != nil {
		return err
	}
	return nil
}

func (p InstallmentPlan) Validate() error {
	if p.Count < 2 {
		return errors.New("installment count must be at least 2")
	}
	if p.StartOffsetMonths < 0 {
		return errors.New("start offset must not be negative")
	}
	switch p.BaseMonth {
	case "", BaseViewed, BaseCurrent:
	default:
		return errors.New("invalid base month reference")
	}
	return nil
}

// Amounts resolves the per-installment cent amounts for the plan. The second
// result is false when neither a literal per-installment amount nor a total
// is present.
func (p InstallmentPlan) Amounts() ([]int64, bool) {
	if p.PerInstallment != nil {
		parts := make([]int64, p.Count)
		for i := range parts {
			parts[i] = p.PerInstallment.Cents
		}
		return parts, true
	}
	if p.Total != nil {
		return SplitCents(p.Total.Cents, p.Count), true
	}
	return nil, false
}

func (i ExpenseIntent) Validate() error {
	if strings.TrimSpace(i.Category) == "" {
		return ErrEmptyCategory
	}
	if i.Installments != nil {
		return i.Installments.Validate()
	}
	if i.Amount != nil {
		return i.Amount.Validate()
	}
	return nil
}
