// Package lifecycle описывает конечный автомат статусов предложения:
// допустимые переходы, роли, которые могут их выполнять, и поля,
// которые переход заполняет.
package lifecycle

import (
	"slices"
	"time"

	"github.com/senyabanana/proposal-service/internal/models"
)

// rule - допустимый переход в статус To.
type rule struct {
	From  []models.ProposalStatus
	Roles []models.Role
}

var transitions = map[models.ProposalStatus]rule{
	models.SubmittedProposal: {
		From:  []models.ProposalStatus{models.DraftProposal},
		Roles: []models.Role{models.ContractorRole},
	},
	models.ViewedProposal: {
		From:  []models.ProposalStatus{models.SubmittedProposal},
		Roles: []models.Role{models.HomeownerRole, models.SystemRole},
	},
	models.AcceptedProposal: {
		From:  []models.ProposalStatus{models.SubmittedProposal, models.ViewedProposal},
		Roles: []models.Role{models.HomeownerRole},
	},
	models.RejectedProposal: {
		From:  []models.ProposalStatus{models.SubmittedProposal, models.ViewedProposal},
		Roles: []models.Role{models.HomeownerRole},
	},
	models.WithdrawnProposal: {
		From:  []models.ProposalStatus{models.DraftProposal, models.SubmittedProposal},
		Roles: []models.Role{models.ContractorRole},
	},
	models.ExpiredProposal: {
		From:  []models.ProposalStatus{models.SubmittedProposal, models.ViewedProposal},
		Roles: []models.Role{models.SystemRole},
	},
}

// Allowed сообщает, разрешен ли переход from -> to для роли.
func Allowed(from, to models.ProposalStatus, role models.Role) bool {
	r, ok := transitions[to]
	if !ok {
		return false
	}
	return slices.Contains(r.From, from) && slices.Contains(r.Roles, role)
}

// Check возвращает InvalidTransition, если переход недопустим. Запрос текущего
// статуса проверяется вызывающей стороной как no-op до вызова Check.
func Check(from, to models.ProposalStatus, role models.Role) error {
	if !to.Valid() {
		return models.NewBadRequest("unknown proposal status: " + string(to))
	}
	if from.IsTerminal() || !Allowed(from, to, role) {
		return models.NewInvalidTransition(from, to)
	}
	return nil
}

// CanEdit возвращает NotEditable, если содержимое предложения менять нельзя.
func CanEdit(status models.ProposalStatus) error {
	if !status.IsEditable() {
		return models.NewNotEditable(status)
	}
	return nil
}

// Decision - дополнительные данные перехода в rejected.
type Decision struct {
	Reason models.RejectionReason
	Notes  string
}

// Apply проверяет переход и заполняет поля, которые он выставляет.
// При ошибке предложение не изменяется.
func Apply(p *models.Proposal, to models.ProposalStatus, actor models.Actor, now time.Time, d Decision) error {
	if err := Check(p.Status, to, actor.Role); err != nil {
		return err
	}
	if to == models.RejectedProposal && !d.Reason.Valid() {
		return models.NewValidationError([]models.Violation{{Field: "rejectionReason", Rule: "has an unsupported value"}})
	}

	ts := now.UTC()
	switch to {
	case models.SubmittedProposal:
		p.SubmittedDate = &ts
	case models.ViewedProposal:
		p.ViewedDate = &ts
	case models.AcceptedProposal:
		p.AcceptedDate = &ts
		p.IsSelected = true
	case models.RejectedProposal:
		p.RejectedDate = &ts
		p.RejectedBy = actor.UserID
		p.RejectionReason = d.Reason
		p.RejectionReasonNotes = d.Notes
	case models.WithdrawnProposal:
		p.WithdrawnDate = &ts
	case models.ExpiredProposal:
		p.ExpiredDate = &ts
	}
	if to != models.AcceptedProposal {
		p.IsSelected = false
	}
	p.Status = to
	p.LastUpdated = ts
	return nil
}
