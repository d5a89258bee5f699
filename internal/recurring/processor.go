package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerkeep/ledgerkeep/internal/domain"
)

// Store is the rule store port the processor writes through. Both writes of
// one step (transaction insert + rule update) must commit atomically.
type Store interface {
	ApplyRuleProcessing(ruleID string, txn *domain.Transaction, update RuleUpdate) error
}

// StepOutcome reports what one processing step did, for sweep aggregation.
type StepOutcome struct {
	CreatedTransaction bool
	SkippedFirst       bool
	Deactivated        bool
	Reason             domain.DeactivationReason
}

// Processor advances one due rule by one occurrence.
type Processor struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewProcessor creates a new rule processor.
func NewProcessor(store Store, log zerolog.Logger) *Processor {
	return &Processor{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "rule_processor").Logger(),
	}
}

// SetClock overrides the time source. Used by tests.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}

// ProcessRule advances the rule by exactly one occurrence.
//
// Errors are never swallowed here: they bubble to the sweep runner, which is
// the single point of per-rule error isolation.
func (p *Processor) ProcessRule(ctx context.Context, rule *domain.RecurringRule) (StepOutcome, error) {
	if rule == nil {
		return StepOutcome{}, fmt.Errorf("nil rule: %w", domain.ErrStoreIntegrity)
	}
	if err := ctx.Err(); err != nil {
		return StepOutcome{}, err
	}

	now := p.now()

	nextDue, err := NextDueDate(rule.NextDueDate, rule.FrequencyType, rule.FrequencyInterval, rule.DayOfMonth)
	if err != nil {
		return StepOutcome{}, err
	}

	// First encounter with a rule whose first transaction was already created
	// at rule-creation time: advance the due date without generating a
	// duplicate of the seed occurrence.
	if isFirstOccurrenceSkip(rule) {
		update := RuleUpdate{
			NextDueDate:          nextDue,
			OccurrencesGenerated: rule.OccurrencesGenerated,
			LastProcessedAt:      now,
		}
		if err := p.store.ApplyRuleProcessing(rule.ID, nil, update); err != nil {
			return StepOutcome{}, err
		}

		p.log.Debug().
			Str("rule_id", rule.ID).
			Time("next_due", nextDue).
			Msg("Skipped seed occurrence, advanced due date")

		return StepOutcome{SkippedFirst: true}, nil
	}

	txn := p.buildTransaction(rule, now)

	occurrences := rule.OccurrencesGenerated + 1
	deactivate, reason := shouldDeactivate(rule, occurrences, now)

	update := RuleUpdate{
		NextDueDate:          nextDue,
		OccurrencesGenerated: occurrences,
		LastProcessedAt:      now,
		Deactivate:           deactivate,
	}

	if err := p.store.ApplyRuleProcessing(rule.ID, txn, update); err != nil {
		return StepOutcome{}, err
	}

	evt := p.log.Info().
		Str("rule_id", rule.ID).
		Str("transaction_id", txn.ID).
		Int("occurrences", occurrences).
		Time("next_due", nextDue)
	if deactivate {
		evt = evt.Str("deactivated", string(reason))
	}
	evt.Msg("Generated recurring transaction")

	return StepOutcome{
		CreatedTransaction: true,
		Deactivated:        deactivate,
		Reason:             reason,
	}, nil
}

// isFirstOccurrenceSkip detects the seed-occurrence case: exactly one
// occurrence exists, it was generated at rule creation, and the rule's due
// date still sits on its start date (time-of-day ignored).
func isFirstOccurrenceSkip(rule *domain.RecurringRule) bool {
	return rule.OccurrencesGenerated == 1 &&
		rule.IsFirstOccurrenceGenerated &&
		sameDay(rule.NextDueDate, rule.StartDate)
}

// sameDay compares two instants with time-of-day zeroed, in UTC.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// shouldDeactivate decides whether the rule is finished after this step.
// Deactivation is a normal terminal transition, not a failure.
func shouldDeactivate(rule *domain.RecurringRule, occurrences int, now time.Time) (bool, domain.DeactivationReason) {
	// End date passed: strictly after, so a rule ending today still fires today.
	if rule.EndDate != nil && now.After(*rule.EndDate) {
		return true, domain.DeactivationEndDateReached
	}

	if rule.IsInstallment && rule.TotalOccurrences != nil && occurrences >= *rule.TotalOccurrences {
		return true, domain.DeactivationInstallmentsDone
	}

	return false, domain.DeactivationNone
}

// buildTransaction materializes one occurrence as a ledger entry.
func (p *Processor) buildTransaction(rule *domain.RecurringRule, now time.Time) *domain.Transaction {
	description := rule.Description
	if description == "" {
		description = "Recurring transaction"
	} else {
		description = fmt.Sprintf("Recurring: %s", description)
	}

	notes := fmt.Sprintf("Auto-generated from recurring rule %s", rule.ID)
	ruleID := rule.ID

	return &domain.Transaction{
		ID:                  uuid.NewString(),
		UserID:              rule.UserID,
		AccountID:           rule.AccountID,
		CategoryID:          rule.CategoryID,
		Amount:              rule.Amount,
		Description:         description,
		Notes:               &notes,
		Date:                now,
		IsRecurringInstance: true,
		RecurringRuleID:     &ruleID,
		CreatedAt:           now,
	}
}
