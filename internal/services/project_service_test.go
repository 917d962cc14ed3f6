package services

import (
	"testing"

	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t, true)

	p := f.project(t, func(r *models.ProjectRequest) { r.Publish = false; r.Region = " on " })
	assert.Equal(t, models.DraftProject, p.Status)
	assert.Equal(t, "ON", p.Region)
	assert.Equal(t, homeowner.UserID, p.CreatorID)
	assert.Equal(t, 1, p.Version)

	_, err := f.projects.CreateProject(f.ctx, contractor, models.ProjectRequest{Title: "x"})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.projects.CreateProject(f.ctx, homeowner, models.ProjectRequest{
		Title:        "Deck",
		ExpiryDate:   models.NewDate(2025, 2, 1),
		DecisionDate: models.NewDate(2025, 2, 1),
	})
	require.ErrorIs(t, err, models.ErrValidation)
	resp, _ := models.AsErrorResponse(err)
	assert.Contains(t, resp.Violations, models.Violation{Field: "decisionDate", Rule: validation.RuleAfterExpiry})

	_, err = f.projects.CreateProject(f.ctx, homeowner, models.ProjectRequest{
		Title:        "Deck",
		Type:         "castle",
		ExpiryDate:   models.NewDate(2024, 12, 1),
		DecisionDate: models.NewDate(2025, 2, 1),
	})
	require.ErrorIs(t, err, models.ErrValidation)
	resp, _ = models.AsErrorResponse(err)
	assert.Contains(t, resp.Violations, models.Violation{Field: "type", Rule: validation.RuleUnknownValue})
	assert.Contains(t, resp.Violations, models.Violation{Field: "expiryDate", Rule: validation.RuleNotInPast})
}

func TestGetProject_DraftVisibility(t *testing.T) {
	f := newFixture(t, true)
	draft := f.project(t, func(r *models.ProjectRequest) { r.Publish = false })

	got, err := f.projects.GetProject(f.ctx, draft.ID, homeowner)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)

	_, err = f.projects.GetProject(f.ctx, draft.ID, contractor)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.proposals.SubmitProposal(f.ctx, contractor, proposalRequest(draft.ID))
	assert.ErrorIs(t, err, models.ErrConflict)

	open, err := f.projects.UpdateProjectStatus(f.ctx, draft.ID, homeowner, models.OpenProject)
	require.NoError(t, err)
	assert.Equal(t, models.OpenProject, open.Status)

	_, err = f.projects.GetProject(f.ctx, draft.ID, contractor)
	assert.NoError(t, err)
}

func TestListMyProjects(t *testing.T) {
	f := newFixture(t, true)
	first := f.project(t)
	f.clock.Advance(1)
	second := f.project(t)

	list, err := f.projects.ListMyProjects(f.ctx, homeowner, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	other, err := f.projects.ListMyProjects(f.ctx, stranger, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = f.projects.ListMyProjects(f.ctx, contractor, 10, 0)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestEditProject(t *testing.T) {
	f := newFixture(t, true)
	p := f.project(t)

	title := "Kitchen and dining"
	budget := decimal.NewFromInt(25000)
	edited, err := f.projects.EditProject(f.ctx, p.ID, homeowner, models.ProjectPatch{Title: &title, Budget: &budget, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, title, edited.Title)
	assert.Equal(t, 2, f.reloadProject(t, p.ID).Version)

	_, err = f.projects.EditProject(f.ctx, p.ID, homeowner, models.ProjectPatch{Title: &title, Version: 1})
	assert.ErrorIs(t, err, models.ErrConflict, "stale version")

	_, err = f.projects.EditProject(f.ctx, p.ID, homeowner, models.ProjectPatch{Title: &title})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = f.projects.EditProject(f.ctx, p.ID, stranger, models.ProjectPatch{Title: &title, Version: 2})
	assert.ErrorIs(t, err, models.ErrForbidden)

	decision := models.NewDate(2025, 1, 20)
	_, err = f.projects.EditProject(f.ctx, p.ID, homeowner, models.ProjectPatch{DecisionDate: &decision, Version: 2})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.projects.UpdateProjectStatus(f.ctx, p.ID, homeowner, models.CancelledProject)
	require.NoError(t, err)
	_, err = f.projects.EditProject(f.ctx, p.ID, homeowner, models.ProjectPatch{Title: &title, Version: 3})
	assert.ErrorIs(t, err, models.ErrConflict, "cancelled project")
}

func TestUpdateProjectStatus(t *testing.T) {
	f := newFixture(t, true)
	p := f.project(t)

	_, err := f.projects.UpdateProjectStatus(f.ctx, p.ID, homeowner, models.AwardedProject)
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "awarded is set by acceptance only")

	_, err = f.projects.UpdateProjectStatus(f.ctx, p.ID, homeowner, "paused")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = f.projects.UpdateProjectStatus(f.ctx, p.ID, contractor, models.CancelledProject)
	assert.ErrorIs(t, err, models.ErrForbidden)

	same, err := f.projects.UpdateProjectStatus(f.ctx, p.ID, homeowner, models.OpenProject)
	require.NoError(t, err)
	assert.Equal(t, p.Version, same.Version)

	a := f.submit(t, contractor, p.ID)
	_, err = f.proposals.AcceptProposal(f.ctx, a.ID, homeowner)
	require.NoError(t, err)

	_, err = f.projects.UpdateProjectStatus(f.ctx, p.ID, homeowner, models.CancelledProject)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	started, err := f.projects.UpdateProjectStatus(f.ctx, p.ID, homeowner, models.InProgressProject)
	require.NoError(t, err)
	assert.Equal(t, models.InProgressProject, started.Status)

	done, err := f.projects.UpdateProjectStatus(f.ctx, p.ID, homeowner, models.CompletedProject)
	require.NoError(t, err)
	assert.Equal(t, models.CompletedProject, done.Status)
	f.requireConsistent(t, p.ID)
}

func TestCheckConsistency_Authorization(t *testing.T) {
	f := newFixture(t, true)
	p := f.project(t)

	_, err := f.projects.CheckConsistency(f.ctx, p.ID, contractor)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.projects.CheckConsistency(f.ctx, "missing", homeowner)
	assert.ErrorIs(t, err, models.ErrNotFound)

	report, err := f.projects.CheckConsistency(f.ctx, p.ID, homeowner)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Empty(t, report.AcceptedProposalID)
}
