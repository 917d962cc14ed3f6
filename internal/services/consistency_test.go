package services

import (
	"testing"
	"time"

	"github.com/senyabanana/proposal-service/internal/lifecycle"
	"github.com/senyabanana/proposal-service/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func consistentPair() (models.Project, []models.Proposal) {
	project := models.Project{ID: "p-1", Status: models.AwardedProject, AwardedProposalID: "a"}
	base := models.Proposal{
		ProjectID:         "p-1",
		TotalAmount:       decimal.NewFromInt(1130),
		DepositAmount:     decimal.NewFromInt(200),
		ProposedStartDate: models.NewDate(2025, 2, 1),
		ProposedEndDate:   models.NewDate(2025, 3, 1),
		ExpiryDate:        models.NewDate(2025, 1, 20),
	}
	a := base
	a.ID, a.Status, a.IsSelected = "a", models.AcceptedProposal, true
	b := base
	b.ID, b.Status = "b", models.RejectedProposal
	return project, []models.Proposal{a, b}
}

func TestCheckProjectConsistency(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Project, []models.Proposal)
		ok     bool
	}{
		{name: "awarded with one accepted", mutate: func(*models.Project, []models.Proposal) {}, ok: true},
		{
			name: "two accepted",
			mutate: func(_ *models.Project, ps []models.Proposal) {
				ps[1].Status, ps[1].IsSelected = models.AcceptedProposal, true
			},
		},
		{
			name:   "awarded without accepted",
			mutate: func(_ *models.Project, ps []models.Proposal) { ps[0].Status, ps[0].IsSelected = models.RejectedProposal, false },
		},
		{
			name:   "accepted while open",
			mutate: func(p *models.Project, _ []models.Proposal) { p.Status, p.AwardedProposalID = models.OpenProject, "" },
		},
		{
			name:   "awarded to another proposal",
			mutate: func(p *models.Project, _ []models.Proposal) { p.AwardedProposalID = "b" },
		},
		{
			name:   "selected flag on rejected",
			mutate: func(_ *models.Project, ps []models.Proposal) { ps[1].IsSelected = true },
		},
		{
			name:   "deposit above total",
			mutate: func(_ *models.Project, ps []models.Proposal) { ps[1].DepositAmount = decimal.NewFromInt(2000) },
		},
		{
			name:   "expiry after start",
			mutate: func(_ *models.Project, ps []models.Proposal) { ps[1].ExpiryDate = models.NewDate(2025, 2, 2) },
		},
		{
			name:   "end before start",
			mutate: func(_ *models.Project, ps []models.Proposal) { ps[1].ProposedEndDate = models.NewDate(2025, 1, 31) },
		},
		{
			name: "deleted proposals are ignored",
			mutate: func(_ *models.Project, ps []models.Proposal) {
				ps[1].Status, ps[1].IsSelected, ps[1].IsDeleted = models.AcceptedProposal, true, true
			},
			ok: true,
		},
		{
			name:   "completed project keeps its award",
			mutate: func(p *models.Project, _ []models.Proposal) { p.Status = models.CompletedProject },
			ok:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project, proposals := consistentPair()
			tt.mutate(&project, proposals)

			report := CheckProjectConsistency(project, proposals)
			assert.Equal(t, tt.ok, report.Consistent, "violations: %v", report.Violations)
			assert.Equal(t, tt.ok, len(report.Violations) == 0)
		})
	}
}

// Случайная последовательность действий над проектом с тремя предложениями
// не нарушает инварианты: не больше одного принятого предложения, проект
// присужден ровно тогда, когда оно есть.
func TestProjectInvariants_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	contractors := []models.Actor{contractor, rival, third}

	properties.Property("at most one accepted proposal", prop.ForAll(
		func(ops []int, transactional bool) bool {
			f := newFixture(t, transactional)
			project := f.project(t)
			ids := make([]string, len(contractors))
			for i, c := range contractors {
				ids[i] = f.submit(t, c, project.ID).ID
			}

			for _, op := range ops {
				i := op % len(ids)
				switch op / len(ids) {
				case 0:
					_, _ = f.proposals.AcceptProposal(f.ctx, ids[i], homeowner)
				case 1:
					_, _ = f.proposals.RejectProposal(f.ctx, ids[i], homeowner, lifecycle.Decision{Reason: models.ScopeMismatch})
				case 2:
					_, _ = f.proposals.TransitionProposal(f.ctx, ids[i], models.WithdrawnProposal, contractors[i], lifecycle.Decision{})
				case 3:
					_, _ = f.proposals.GetProposal(f.ctx, ids[i], homeowner)
				case 4:
					f.clock.Advance(6 * 24 * time.Hour)
					_, _ = f.proposals.ExpireLapsed(f.ctx)
				}
			}

			report, err := f.projects.CheckConsistency(f.ctx, project.ID, homeowner)
			if err != nil || !report.Consistent {
				return false
			}
			accepted := 0
			for _, id := range ids {
				if f.reload(t, id).Status == models.AcceptedProposal {
					accepted++
				}
			}
			awarded := f.reloadProject(t, project.ID).Status == models.AwardedProject
			return accepted <= 1 && awarded == (accepted == 1)
		},
		gen.SliceOf(gen.IntRange(0, 14)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
