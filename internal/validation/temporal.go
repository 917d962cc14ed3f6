// Package validation содержит чистые проверки предложений: сроки и суммы.
package validation

import "github.com/senyabanana/proposal-service/internal/models"

const (
	RuleRequired      = "is required"
	RuleNotInPast     = "must not be in the past"
	RuleAfterStart    = "must be after proposedStartDate"
	RuleNotAfterStart = "must be on or before proposedStartDate"
	RulePositive      = "must be greater than zero"
	RuleNotAboveTotal = "must not exceed totalAmount"
	RuleUnknownValue  = "has an unsupported value"
	RuleAfterExpiry   = "must be after expiryDate"
	RuleNotEmpty      = "must not be empty"
	RuleCents         = "must have at most two decimal places"
)

// Schedule - даты предложения, участвующие во временных проверках.
type Schedule struct {
	DepositDueOn      models.Date
	ProposedStartDate models.Date
	ProposedEndDate   models.Date
	ExpiryDate        models.Date
}

// ScheduleOf извлекает даты из предложения.
func ScheduleOf(p models.Proposal) Schedule {
	return Schedule{
		DepositDueOn:      p.DepositDueOn,
		ProposedStartDate: p.ProposedStartDate,
		ProposedEndDate:   p.ProposedEndDate,
		ExpiryDate:        p.ExpiryDate,
	}
}

// ValidateSchedule проверяет порядок дат относительно today и друг друга.
// Все проверки выполняются в фиксированном порядке против одного и того же today,
// возвращаются все нарушения.
func ValidateSchedule(s Schedule, today models.Date) []models.Violation {
	var violations []models.Violation
	required := []struct {
		field string
		date  models.Date
	}{
		{"depositDueOn", s.DepositDueOn},
		{"proposedStartDate", s.ProposedStartDate},
		{"proposedEndDate", s.ProposedEndDate},
		{"expiryDate", s.ExpiryDate},
	}
	for _, r := range required {
		if r.date.IsZero() {
			violations = append(violations, models.Violation{Field: r.field, Rule: RuleRequired})
		}
	}
	if len(violations) > 0 {
		return violations
	}

	if s.DepositDueOn.Before(today) {
		violations = append(violations, models.Violation{Field: "depositDueOn", Rule: RuleNotInPast})
	}
	if s.ProposedStartDate.Before(today) {
		violations = append(violations, models.Violation{Field: "proposedStartDate", Rule: RuleNotInPast})
	}
	if !s.ProposedEndDate.After(s.ProposedStartDate) {
		violations = append(violations, models.Violation{Field: "proposedEndDate", Rule: RuleAfterStart})
	}
	if s.ExpiryDate.Before(today) {
		violations = append(violations, models.Violation{Field: "expiryDate", Rule: RuleNotInPast})
	}
	if s.ExpiryDate.After(s.ProposedStartDate) {
		violations = append(violations, models.Violation{Field: "expiryDate", Rule: RuleNotAfterStart})
	}
	return violations
}

// IsLapsed сообщает, что срок действия предложения прошел к дате today.
func IsLapsed(p models.Proposal, today models.Date) bool {
	return !p.ExpiryDate.IsZero() && p.ExpiryDate.Before(today)
}
