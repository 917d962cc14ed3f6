package services

import (
	"fmt"

	"github.com/senyabanana/proposal-service/internal/models"
)

// CheckProjectConsistency проверяет инварианты проекта и его предложений:
// не более одного принятого предложения, проект присужден тогда и только тогда,
// когда принято ровно одно предложение, задаток не больше итога, порядок дат.
// Удаленные предложения не учитываются.
func CheckProjectConsistency(project models.Project, proposals []models.Proposal) models.ConsistencyReport {
	report := models.ConsistencyReport{ProjectID: project.ID, Violations: []string{}}
	fail := func(format string, args ...any) {
		report.Violations = append(report.Violations, fmt.Sprintf(format, args...))
	}

	var accepted []models.Proposal
	for _, p := range proposals {
		if p.IsDeleted || p.ProjectID != project.ID {
			continue
		}
		if p.Status == models.AcceptedProposal {
			accepted = append(accepted, p)
			if !p.IsSelected {
				fail("accepted proposal %s is not marked as selected", p.ID)
			}
		} else if p.IsSelected {
			fail("proposal %s is selected but has status %s", p.ID, p.Status)
		}
		if p.DepositAmount.GreaterThan(p.TotalAmount) {
			fail("proposal %s deposit %s exceeds total %s", p.ID, p.DepositAmount, p.TotalAmount)
		}
		if !p.ProposedStartDate.IsZero() && !p.ProposedEndDate.After(p.ProposedStartDate) {
			fail("proposal %s ends on %s, not after its start %s", p.ID, p.ProposedEndDate, p.ProposedStartDate)
		}
		if !p.ProposedStartDate.IsZero() && p.ExpiryDate.After(p.ProposedStartDate) {
			fail("proposal %s expires on %s, after its start %s", p.ID, p.ExpiryDate, p.ProposedStartDate)
		}
	}

	if len(accepted) > 1 {
		fail("project has %d accepted proposals", len(accepted))
	}
	awarded := isAwarded(project.Status)
	switch {
	case awarded && len(accepted) == 0:
		fail("project is %s but has no accepted proposal", project.Status)
	case !awarded && len(accepted) > 0:
		fail("project is %s but proposal %s is accepted", project.Status, accepted[0].ID)
	case awarded && len(accepted) == 1 && project.AwardedProposalID != accepted[0].ID:
		fail("project records awarded proposal %q but %s is accepted", project.AwardedProposalID, accepted[0].ID)
	}

	if len(accepted) == 1 {
		report.AcceptedProposalID = accepted[0].ID
	}
	report.Consistent = len(report.Violations) == 0
	return report
}

// isAwarded сообщает, что проект прошел через присуждение.
func isAwarded(status models.ProjectStatus) bool {
	return status == models.AwardedProject || status == models.InProgressProject || status == models.CompletedProject
}
