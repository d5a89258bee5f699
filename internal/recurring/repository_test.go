package recurring

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgerkeep/internal/database"
	"github.com/ledgerkeep/ledgerkeep/internal/domain"
	testingpkg "github.com/ledgerkeep/ledgerkeep/internal/testing"
)

func newTestRepo(t *testing.T) (*Repository, *database.DB) {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t)
	t.Cleanup(cleanup)
	testingpkg.SeedLedger(t, db)

	return NewRepository(db.Conn(), zerolog.Nop()), db
}

func TestFindDueRules(t *testing.T) {
	repo, db := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("due-past", now.Add(-24*time.Hour)))
	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("due-now", now))
	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("not-due", now.Add(24*time.Hour)))

	inactive := testingpkg.NewRuleFixture("inactive", now.Add(-24*time.Hour))
	inactive.IsActive = false
	testingpkg.SeedRule(t, db, inactive)

	rules, err := repo.FindDueRules(now)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	ids := []string{rules[0].ID, rules[1].ID}
	assert.Contains(t, ids, "due-past")
	assert.Contains(t, ids, "due-now")
}

func TestGetRule(t *testing.T) {
	repo, db := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	seeded := testingpkg.NewRuleFixture("rule-1", now)
	seeded.DayOfMonth = intPtr(15)
	seeded.IsInstallment = true
	seeded.TotalOccurrences = intPtr(12)
	endDate := now.AddDate(1, 0, 0)
	seeded.EndDate = &endDate
	testingpkg.SeedRule(t, db, seeded)

	rule, err := repo.GetRule("rule-1")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, seeded.Amount, rule.Amount)
	assert.Equal(t, domain.FrequencyMonthly, rule.FrequencyType)
	require.NotNil(t, rule.DayOfMonth)
	assert.Equal(t, 15, *rule.DayOfMonth)
	require.NotNil(t, rule.TotalOccurrences)
	assert.Equal(t, 12, *rule.TotalOccurrences)
	require.NotNil(t, rule.EndDate)
	assert.True(t, rule.EndDate.Equal(endDate))
	assert.True(t, rule.NextDueDate.Equal(now))

	missing, err := repo.GetRule("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApplyRuleProcessingCommitsBothWrites(t *testing.T) {
	repo, db := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("rule-1", now))

	ruleID := "rule-1"
	txn := &domain.Transaction{
		ID:                  "txn-1",
		UserID:              testingpkg.FixtureUserID,
		AccountID:           testingpkg.FixtureAccountID,
		CategoryID:          testingpkg.FixtureCategoryID,
		Amount:              -9.99,
		Description:         "Recurring: Streaming service",
		Date:                now,
		IsRecurringInstance: true,
		RecurringRuleID:     &ruleID,
		CreatedAt:           now,
	}

	nextDue := now.AddDate(0, 1, 0)
	err := repo.ApplyRuleProcessing(ruleID, txn, RuleUpdate{
		NextDueDate:          nextDue,
		OccurrencesGenerated: 1,
		LastProcessedAt:      now,
	})
	require.NoError(t, err)

	rule, err := repo.GetRule(ruleID)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.True(t, rule.NextDueDate.Equal(nextDue))
	assert.Equal(t, 1, rule.OccurrencesGenerated)
	assert.True(t, rule.IsActive)
	require.NotNil(t, rule.LastProcessedAt)

	txns, err := repo.TransactionsForRule(ruleID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].IsRecurringInstance)
}

func TestApplyRuleProcessingRollsBackOnMissingRule(t *testing.T) {
	repo, _ := newTestRepo(t)
	now := time.Now().UTC()

	ruleID := "ghost"
	txn := &domain.Transaction{
		ID:              "txn-1",
		UserID:          testingpkg.FixtureUserID,
		AccountID:       testingpkg.FixtureAccountID,
		CategoryID:      testingpkg.FixtureCategoryID,
		Amount:          -9.99,
		Date:            now,
		RecurringRuleID: &ruleID,
		CreatedAt:       now,
	}

	err := repo.ApplyRuleProcessing(ruleID, txn, RuleUpdate{
		NextDueDate:          now.AddDate(0, 1, 0),
		OccurrencesGenerated: 1,
		LastProcessedAt:      now,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreIntegrity)

	// The transaction insert must have been rolled back with the failed update.
	txns, err := repo.TransactionsForRule(ruleID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestApplyRuleProcessingDeactivates(t *testing.T) {
	repo, db := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("rule-1", now))

	err := repo.ApplyRuleProcessing("rule-1", nil, RuleUpdate{
		NextDueDate:          now.AddDate(0, 1, 0),
		OccurrencesGenerated: 12,
		LastProcessedAt:      now,
		Deactivate:           true,
	})
	require.NoError(t, err)

	rule, err := repo.GetRule("rule-1")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.False(t, rule.IsActive)

	// Deactivated rules drop out of the due set.
	due, err := repo.FindDueRules(now.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestApplyRuleProcessingPreservesExternalDeactivation(t *testing.T) {
	repo, db := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("rule-1", now))

	// A collaborator turns the rule off between the due-rules read and the
	// processing write. The advance must not turn it back on.
	_, err := db.Conn().Exec(`UPDATE recurring_rules SET is_active = 0 WHERE id = ?`, "rule-1")
	require.NoError(t, err)

	err = repo.ApplyRuleProcessing("rule-1", nil, RuleUpdate{
		NextDueDate:          now.AddDate(0, 1, 0),
		OccurrencesGenerated: 1,
		LastProcessedAt:      now,
	})
	require.NoError(t, err)

	rule, err := repo.GetRule("rule-1")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.False(t, rule.IsActive)
	assert.Equal(t, 1, rule.OccurrencesGenerated)
}

func TestCounts(t *testing.T) {
	repo, db := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("due", now.Add(-time.Hour)))
	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("pending", now.Add(time.Hour)))

	inactive := testingpkg.NewRuleFixture("inactive", now.Add(-time.Hour))
	inactive.IsActive = false
	testingpkg.SeedRule(t, db, inactive)

	counts, err := repo.Counts(now)
	require.NoError(t, err)
	assert.Equal(t, domain.RuleCounts{Total: 3, Active: 2, Due: 1}, counts)
}

func TestListRules(t *testing.T) {
	repo, db := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("rule-1", now))
	testingpkg.SeedRule(t, db, testingpkg.NewRuleFixture("rule-2", now))

	all, err := repo.ListRules("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byUser, err := repo.ListRules(testingpkg.FixtureUserID)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	none, err := repo.ListRules("nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
