// Package models defines the domain entities for the ledger core.
package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the primary currency used when none is configured.
const DefaultCurrency = "PHP"

// MaxCategoryNameLength is the maximum allowed length for category names.
const MaxCategoryNameLength = 50

// ErrIO is returned when the persistence collaborator fails. The in-memory
// mutation that triggered the write has already been rolled back.
var ErrIO = errors.New("persistence failure")

// SupportedCurrencies lists all supported currency codes.
var SupportedCurrencies = map[string]string{
	"SGD": "S$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"MYR": "RM",
	"THB": "฿",
	"IDR": "Rp",
	"PHP": "₱",
	"VND": "₫",
	"KRW": "₩",
	"INR": "₹",
	"AUD": "A$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"TWD": "NT$",
}

// CategoryType classifies a category as income or expense.
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Valid reports whether t is one of the known category types.
func (t CategoryType) Valid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Sign returns +1 for income and -1 for expense.
func (t CategoryType) Sign() decimal.Decimal {
	if t == CategoryTypeIncome {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// TypeForAmount returns the category type matching the sign of amount.
// Zero counts as income.
func TypeForAmount(amount decimal.Decimal) CategoryType {
	if amount.IsNegative() {
		return CategoryTypeExpense
	}
	return CategoryTypeIncome
}

// Reserved category identifiers.
const (
	ContainerIncomeID  = "no-parent-income"
	ContainerExpenseID = "no-parent-expense"
	SentinelIncomeID   = "no-category-income"
	SentinelExpenseID  = "no-category-expense"
)

// Reserved category names.
const (
	ContainerIncomeName  = "No Parent (Income)"
	ContainerExpenseName = "No Parent (Expense)"
	SentinelIncomeName   = "No Category (Income)"
	SentinelExpenseName  = "No Category (Expense)"
)

// ContainerID returns the identifier of the container category for t.
func ContainerID(t CategoryType) string {
	if t == CategoryTypeIncome {
		return ContainerIncomeID
	}
	return ContainerExpenseID
}

// SentinelID returns the identifier of the sentinel category for t.
func SentinelID(t CategoryType) string {
	if t == CategoryTypeIncome {
		return SentinelIncomeID
	}
	return SentinelExpenseID
}

// IsContainerID reports whether id names one of the container categories.
func IsContainerID(id string) bool {
	return id == ContainerIncomeID || id == ContainerExpenseID
}

// IsSentinelID reports whether id names one of the sentinel categories.
func IsSentinelID(id string) bool {
	return id == SentinelIncomeID || id == SentinelExpenseID
}

// IsReservedID reports whether id is a container or sentinel identifier.
func IsReservedID(id string) bool {
	return IsContainerID(id) || IsSentinelID(id)
}

// Subcategory is embedded in its owning Category. Its Type is stored
// independently of the parent's type.
type Subcategory struct {
	ID    string
	Name  string
	Emoji string
	Type  CategoryType
}

// Category is a node of the two-level taxonomy.
type Category struct {
	ID            string
	Name          string
	Emoji         string
	Type          CategoryType
	ParentID      *string
	Subcategories []Subcategory
	CreatedAt     time.Time
}

// HasParent reports whether the category designates parentID as its parent.
func (c *Category) HasParent(parentID string) bool {
	return c.ParentID != nil && *c.ParentID == parentID
}

// IsTopLevel reports whether the category hangs directly off a container.
func (c *Category) IsTopLevel() bool {
	return c.ParentID == nil || IsContainerID(*c.ParentID)
}

// Clone returns a deep copy of the category.
func (c Category) Clone() Category {
	out := c
	if c.ParentID != nil {
		id := *c.ParentID
		out.ParentID = &id
	}
	if c.Subcategories != nil {
		out.Subcategories = append([]Subcategory(nil), c.Subcategories...)
	}
	return out
}

// ReservedCategories returns the container and sentinel rows created once
// at initialization.
func ReservedCategories() []Category {
	incomeParent := ContainerIncomeID
	expenseParent := ContainerExpenseID
	return []Category{
		{ID: ContainerIncomeID, Name: ContainerIncomeName, Type: CategoryTypeIncome},
		{ID: ContainerExpenseID, Name: ContainerExpenseName, Type: CategoryTypeExpense},
		{ID: SentinelIncomeID, Name: SentinelIncomeName, Emoji: "❔", Type: CategoryTypeIncome, ParentID: &incomeParent},
		{ID: SentinelExpenseID, Name: SentinelExpenseName, Emoji: "❔", Type: CategoryTypeExpense, ParentID: &expenseParent},
	}
}

// Transaction is a single ledger entry. OriginalAmount and OriginalCurrency
// are what the user entered; Amount is the signed value converted into
// PrimaryCurrency at ExchangeRate when the transaction was last edited.
type Transaction struct {
	ID                    string
	WalletID              string
	CategoryID            string
	CategoryName          string
	Merchant              string
	Note                  string
	Date                  time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	OriginalAmount        decimal.Decimal
	OriginalCurrency      string
	Amount                decimal.Decimal
	PrimaryCurrency       string
	ExchangeRate          decimal.Decimal
	SecondaryCurrency     *string
	SecondaryAmount       *decimal.Decimal
	SecondaryExchangeRate *decimal.Decimal
}

// Period is a budget period.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Periods lists all periods from shortest to longest.
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Budget is a spending limit for one category of one wallet.
type Budget struct {
	ID                string
	WalletID          string
	CategoryID        string
	CategoryName      string
	Amount            decimal.Decimal
	Currency          string
	Period            Period
	ApplyToAllPeriods bool
}
