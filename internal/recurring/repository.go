package recurring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerkeep/ledgerkeep/internal/database"
	"github.com/ledgerkeep/ledgerkeep/internal/domain"
)

// RuleUpdate is the mutation the processor applies to a rule after one step.
type RuleUpdate struct {
	NextDueDate          time.Time
	OccurrencesGenerated int
	LastProcessedAt      time.Time
	Deactivate           bool
}

// Repository is the rule store port implementation over the ledger database.
// All date columns are RFC3339 UTC strings.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new recurring rule repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "recurring_rules").Logger(),
	}
}

const ruleColumns = `
	id, user_id, account_id, category_id,
	amount, type, description, notes,
	frequency_type, frequency_interval, day_of_month, day_of_week,
	start_date, end_date, next_due_date,
	occurrences_generated, is_first_occurrence_generated, last_processed_at,
	is_installment, total_occurrences,
	is_active, created_at, updated_at`

// FindDueRules returns all rules eligible for processing at the given time:
// active, with a next due date at or before now.
func (r *Repository) FindDueRules(now time.Time) ([]domain.RecurringRule, error) {
	rows, err := r.db.Query(
		`SELECT `+ruleColumns+`
		 FROM recurring_rules
		 WHERE is_active = 1 AND next_due_date <= ?`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due rules: %w", err)
	}

	return rules, nil
}

// GetRule returns a single rule by id, or nil if it does not exist.
func (r *Repository) GetRule(id string) (*domain.RecurringRule, error) {
	row := r.db.QueryRow(
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule %s: %w", id, err)
	}

	return &rule, nil
}

// ListRules returns all rules, optionally filtered by user.
// Read-only surface for external collaborators; ordered newest first.
func (r *Repository) ListRules(userID string) ([]domain.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// Counts returns rule table counts for health reporting.
func (r *Repository) Counts(now time.Time) (domain.RuleCounts, error) {
	var counts domain.RuleCounts
	err := r.db.QueryRow(
		`SELECT
			COUNT(*),
			COALESCE(SUM(is_active), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND next_due_date <= ? THEN 1 ELSE 0 END), 0)
		 FROM recurring_rules`,
		now.UTC().Format(time.RFC3339),
	).Scan(&counts.Total, &counts.Active, &counts.Due)
	if err != nil {
		return domain.RuleCounts{}, fmt.Errorf("failed to count rules: %w", err)
	}

	return counts, nil
}

// ApplyRuleProcessing commits one processing step atomically: the generated
// transaction (nil for the first-occurrence skip) and the rule update land in
// a single database transaction, or neither does.
func (r *Repository) ApplyRuleProcessing(ruleID string, txn *domain.Transaction, update RuleUpdate) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if txn != nil {
			if err := insertTransaction(tx, txn); err != nil {
				return err
			}
		}

		// On the non-deactivate path is_active is left untouched so a rule a
		// collaborator deactivated mid-sweep stays deactivated. Processing
		// only ever flips a rule off, never back on.
		deactivate := 0
		if update.Deactivate {
			deactivate = 1
		}

		res, err := tx.Exec(
			`UPDATE recurring_rules
			 SET next_due_date = ?,
			     occurrences_generated = ?,
			     last_processed_at = ?,
			     is_active = CASE WHEN ? = 1 THEN 0 ELSE is_active END,
			     updated_at = ?
			 WHERE id = ?`,
			update.NextDueDate.UTC().Format(time.RFC3339),
			update.OccurrencesGenerated,
			update.LastProcessedAt.UTC().Format(time.RFC3339),
			deactivate,
			update.LastProcessedAt.UTC().Format(time.RFC3339),
			ruleID,
		)
		if err != nil {
			return fmt.Errorf("failed to update rule %s: %w", ruleID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for rule %s: %w", ruleID, err)
		}
		if affected == 0 {
			return fmt.Errorf("rule %s vanished during processing: %w", ruleID, domain.ErrStoreIntegrity)
		}

		return nil
	})
}

// InsertTransaction writes a standalone ledger transaction.
// The sweep itself goes through ApplyRuleProcessing; this is used by tests
// and by collaborator surfaces seeding data.
func (r *Repository) InsertTransaction(txn *domain.Transaction) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return insertTransaction(tx, txn)
	})
}

// TransactionsForRule returns all transactions generated from a rule,
// newest first.
func (r *Repository) TransactionsForRule(ruleID string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT id, user_id, account_id, category_id, amount, description, notes,
		        date, is_recurring_instance, recurring_rule_id, created_at
		 FROM transactions
		 WHERE recurring_rule_id = ?
		 ORDER BY date DESC`,
		ruleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var isRecurring int
		var date, createdAt string
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Amount,
			&t.Description, &t.Notes, &date, &isRecurring, &t.RecurringRuleID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.IsRecurringInstance = isRecurring == 1
		if t.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("bad transaction date %q: %w", date, err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("bad transaction created_at %q: %w", createdAt, err)
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

func insertTransaction(tx *sql.Tx, txn *domain.Transaction) error {
	recurring := 0
	if txn.IsRecurringInstance {
		recurring = 1
	}

	_, err := tx.Exec(
		`INSERT INTO transactions
			(id, user_id, account_id, category_id, amount, description, notes,
			 date, is_recurring_instance, recurring_rule_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, txn.AccountID, txn.CategoryID, txn.Amount,
		txn.Description, txn.Notes,
		txn.Date.UTC().Format(time.RFC3339), recurring, txn.RecurringRuleID,
		txn.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}

	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (domain.RecurringRule, error) {
	var (
		rule                                domain.RecurringRule
		firstGenerated, installment, active int
		startDate, nextDueDate              string
		endDate, lastProcessedAt            sql.NullString
		createdAt, updatedAt                string
	)

	err := row.Scan(
		&rule.ID, &rule.UserID, &rule.AccountID, &rule.CategoryID,
		&rule.Amount, &rule.Type, &rule.Description, &rule.Notes,
		&rule.FrequencyType, &rule.FrequencyInterval, &rule.DayOfMonth, &rule.DayOfWeek,
		&startDate, &endDate, &nextDueDate,
		&rule.OccurrencesGenerated, &firstGenerated, &lastProcessedAt,
		&installment, &rule.TotalOccurrences,
		&active, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.RecurringRule{}, err
	}

	rule.IsFirstOccurrenceGenerated = firstGenerated == 1
	rule.IsInstallment = installment == 1
	rule.IsActive = active == 1

	if rule.StartDate, err = time.Parse(time.RFC3339, startDate); err != nil {
		return domain.RecurringRule{}, fmt.Errorf("bad start_date %q: %w", startDate, err)
	}
	if rule.NextDueDate, err = time.Parse(time.RFC3339, nextDueDate); err != nil {
		return domain.RecurringRule{}, fmt.Errorf("bad next_due_date %q: %w", nextDueDate, err)
	}
	if rule.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return domain.RecurringRule{}, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if rule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return domain.RecurringRule{}, fmt.Errorf("bad updated_at %q: %w", updatedAt, err)
	}

	if endDate.Valid {
		t, err := time.Parse(time.RFC3339, endDate.String)
		if err != nil {
			return domain.RecurringRule{}, fmt.Errorf("bad end_date %q: %w", endDate.String, err)
		}
		rule.EndDate = &t
	}
	if lastProcessedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastProcessedAt.String)
		if err != nil {
			return domain.RecurringRule{}, fmt.Errorf("bad last_processed_at %q: %w", lastProcessedAt.String, err)
		}
		rule.LastProcessedAt = &t
	}

	return rule, nil
}
