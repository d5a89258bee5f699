package testing

import (
	"testing"
	"time"

	"github.com/ledgerkeep/ledgerkeep/internal/database"
	"github.com/ledgerkeep/ledgerkeep/internal/domain"
)

// Fixture ids shared by SeedLedger and NewRuleFixture.
const (
	FixtureUserID     = "user-1"
	FixtureAccountID  = "acct-1"
	FixtureCategoryID = "cat-1"
)

// NewRuleFixture returns a monthly expense rule with sensible defaults.
// Callers adjust fields before seeding.
func NewRuleFixture(id string, nextDue time.Time) domain.RecurringRule {
	now := time.Now().UTC()
	return domain.RecurringRule{
		ID:                id,
		UserID:            FixtureUserID,
		AccountID:         FixtureAccountID,
		CategoryID:        FixtureCategoryID,
		Amount:            -9.99,
		Type:              domain.RuleTypeExpense,
		Description:       "Streaming service",
		FrequencyType:     domain.FrequencyMonthly,
		FrequencyInterval: 1,
		StartDate:         nextDue.AddDate(0, -1, 0),
		NextDueDate:       nextDue,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SeedLedger inserts the fixture user, account and category rows that
// recurring rules and transactions reference.
func SeedLedger(t *testing.T, db *database.DB) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := db.Exec(`
		INSERT INTO users (id, display_name, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING`, FixtureUserID, "Test User", now)
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO accounts (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`, FixtureAccountID, FixtureUserID, "Checking", now)
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO categories (id, user_id, name, kind) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`, FixtureCategoryID, FixtureUserID, "Subscriptions", "expense")
	if err != nil {
		t.Fatalf("Failed to seed category: %v", err)
	}
}

// SeedRule inserts a recurring rule row. Referenced user, account and
// category must exist; use SeedLedger first.
func SeedRule(t *testing.T, db *database.DB, rule domain.RecurringRule) {
	t.Helper()

	var endDate, lastProcessed interface{}
	if rule.EndDate != nil {
		endDate = rule.EndDate.UTC().Format(time.RFC3339)
	}
	if rule.LastProcessedAt != nil {
		lastProcessed = rule.LastProcessedAt.UTC().Format(time.RFC3339)
	}

	var dayOfMonth, dayOfWeek, totalOccurrences interface{}
	if rule.DayOfMonth != nil {
		dayOfMonth = *rule.DayOfMonth
	}
	if rule.DayOfWeek != nil {
		dayOfWeek = *rule.DayOfWeek
	}
	if rule.TotalOccurrences != nil {
		totalOccurrences = *rule.TotalOccurrences
	}

	var notes interface{}
	if rule.Notes != nil {
		notes = *rule.Notes
	}

	_, err := db.Exec(`
		INSERT INTO recurring_rules (
			id, user_id, account_id, category_id,
			amount, type, description, notes,
			frequency_type, frequency_interval, day_of_month, day_of_week,
			start_date, end_date, next_due_date,
			occurrences_generated, is_first_occurrence_generated, last_processed_at,
			is_installment, total_occurrences,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.AccountID, rule.CategoryID,
		rule.Amount, string(rule.Type), rule.Description, notes,
		string(rule.FrequencyType), rule.FrequencyInterval, dayOfMonth, dayOfWeek,
		rule.StartDate.UTC().Format(time.RFC3339), endDate, rule.NextDueDate.UTC().Format(time.RFC3339),
		rule.OccurrencesGenerated, boolToInt(rule.IsFirstOccurrenceGenerated), lastProcessed,
		boolToInt(rule.IsInstallment), totalOccurrences,
		boolToInt(rule.IsActive), rule.CreatedAt.UTC().Format(time.RFC3339), rule.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("Failed to seed rule %s: %v", rule.ID, err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
