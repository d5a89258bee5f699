// Package domain provides core domain models and types.
package domain

import "time"

// FrequencyType represents how often a recurring rule fires
type FrequencyType string

const (
	FrequencyDaily   FrequencyType = "DAILY"
	FrequencyWeekly  FrequencyType = "WEEKLY"
	FrequencyMonthly FrequencyType = "MONTHLY"
	FrequencyYearly  FrequencyType = "YEARLY"
)

// Valid reports whether the frequency is one of the supported values.
func (f FrequencyType) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RuleType classifies a rule as income or expense.
// The signed amount is the source of truth during processing; the type flag
// is carried through to generated transactions verbatim and is validated
// when rules are created, upstream of this service.
type RuleType string

const (
	RuleTypeIncome  RuleType = "income"
	RuleTypeExpense RuleType = "expense"
)

// RecurringRule is a standing instruction to produce transactions on a schedule.
type RecurringRule struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	AccountID  string `json:"account_id"`
	CategoryID string `json:"category_id"`

	Amount      float64  `json:"amount"`
	Type        RuleType `json:"type"`
	Description string   `json:"description"`
	Notes       *string  `json:"notes,omitempty"`

	FrequencyType     FrequencyType `json:"frequency_type"`
	FrequencyInterval int           `json:"frequency_interval"`
	DayOfMonth        *int          `json:"day_of_month,omitempty"`
	// DayOfWeek is stored for WEEKLY rules but not consumed by the date
	// advance; weekly occurrences are spaced in whole weeks from the start.
	DayOfWeek *int       `json:"day_of_week,omitempty"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	NextDueDate                time.Time  `json:"next_due_date"`
	OccurrencesGenerated       int        `json:"occurrences_generated"`
	IsFirstOccurrenceGenerated bool       `json:"is_first_occurrence_generated"`
	LastProcessedAt            *time.Time `json:"last_processed_at,omitempty"`

	IsInstallment    bool `json:"is_installment"`
	TotalOccurrences *int `json:"total_occurrences,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue reports whether the rule is eligible for processing at the given time.
func (r *RecurringRule) IsDue(now time.Time) bool {
	return r.IsActive && !r.NextDueDate.After(now)
}

// Transaction is an immutable ledger entry. Scheduler-generated entries carry
// IsRecurringInstance = true and a back-reference to the source rule.
type Transaction struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	AccountID           string    `json:"account_id"`
	CategoryID          string    `json:"category_id"`
	Amount              float64   `json:"amount"`
	Description         string    `json:"description"`
	Notes               *string   `json:"notes,omitempty"`
	Date                time.Time `json:"date"`
	IsRecurringInstance bool      `json:"is_recurring_instance"`
	RecurringRuleID     *string   `json:"recurring_rule_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// DeactivationReason explains why a rule was retired during processing.
type DeactivationReason string

const (
	// DeactivationNone means the rule stays active.
	DeactivationNone DeactivationReason = ""
	// DeactivationEndDateReached means now is strictly past the rule's end date.
	DeactivationEndDateReached DeactivationReason = "End date reached"
	// DeactivationInstallmentsDone means all installment occurrences exist.
	DeactivationInstallmentsDone DeactivationReason = "All installments completed"
)

// ProcessingResult aggregates the outcome of one sweep.
type ProcessingResult struct {
	Processed           int `json:"processed"`
	Errors              int `json:"errors"`
	CreatedTransactions int `json:"created_transactions"`
	DeactivatedRules    int `json:"deactivated_rules"`
	SkippedFirst        int `json:"skipped_first"`
}

// Add folds another result into this one. Results are accumulated locally by
// the sweep runner, never shared across goroutines.
func (r ProcessingResult) Add(other ProcessingResult) ProcessingResult {
	return ProcessingResult{
		Processed:           r.Processed + other.Processed,
		Errors:              r.Errors + other.Errors,
		CreatedTransactions: r.CreatedTransactions + other.CreatedTransactions,
		DeactivatedRules:    r.DeactivatedRules + other.DeactivatedRules,
		SkippedFirst:        r.SkippedFirst + other.SkippedFirst,
	}
}

// RuleCounts summarizes the rule table for health reporting.
type RuleCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Due    int `json:"due"`
}
