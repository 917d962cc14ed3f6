package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/senyabanana/proposal-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testProposal(id, projectID, contractorID string, created time.Time) *models.Proposal {
	return &models.Proposal{
		ID:           id,
		ProjectID:    projectID,
		ContractorID: contractorID,
		HomeownerID:  "homeowner",
		Title:        "Kitchen",
		Status:       models.SubmittedProposal,
		ExpiryDate:   models.NewDate(2026, 3, 10),
		Attachments:  []models.FileReference{},
		Visibility:   models.PrivateVisibility,
		Version:      1,
		CreatedAt:    created,
		LastUpdated:  created,
	}
}

func TestMemoryStore_ProposalCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(true)

	p := testProposal("p1", "proj", "c1", base)
	require.NoError(t, s.CreateProposal(ctx, p))
	assert.ErrorIs(t, s.CreateProposal(ctx, p), models.ErrConflict)

	got, err := s.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", got.Title)

	// Изменение полученной копии не затрагивает хранилище
	got.Attachments = append(got.Attachments, models.FileReference{ID: "f"})
	again, err := s.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, again.Attachments)

	got.Title = "Bathroom"
	require.NoError(t, s.UpdateProposal(ctx, got))
	again, err = s.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Bathroom", again.Title)

	_, err = s.GetProposal(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.UpdateProposal(ctx, testProposal("missing", "proj", "c1", base)), models.ErrNotFound)
}

func TestMemoryStore_Listings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(false)

	require.NoError(t, s.CreateProposal(ctx, testProposal("a", "proj", "c1", base)))
	require.NoError(t, s.CreateProposal(ctx, testProposal("b", "proj", "c2", base.Add(time.Hour))))
	require.NoError(t, s.CreateProposal(ctx, testProposal("c", "other", "c1", base.Add(2*time.Hour))))
	deleted := testProposal("d", "proj", "c1", base.Add(3*time.Hour))
	deleted.IsDeleted = true
	require.NoError(t, s.CreateProposal(ctx, deleted))

	forProject, err := s.ListProjectProposals(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, forProject, 2)
	assert.Equal(t, "a", forProject[0].ID)
	assert.Equal(t, "b", forProject[1].ID)

	mine, err := s.ListContractorProposals(ctx, "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "c", mine[0].ID, "newest first")

	paged, err := s.ListContractorProposals(ctx, "c1", 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "a", paged[0].ID)

	empty, err := s.ListContractorProposals(ctx, "c1", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_ListLapsedProposals(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(true)

	lapsed := testProposal("lapsed", "proj", "c1", base)
	lapsed.ExpiryDate = models.NewDate(2026, 3, 4)
	onDay := testProposal("today", "proj", "c2", base)
	onDay.ExpiryDate = models.NewDate(2026, 3, 5)
	draft := testProposal("draft", "proj", "c3", base)
	draft.Status = models.DraftProposal
	draft.ExpiryDate = models.NewDate(2026, 3, 1)

	for _, p := range []*models.Proposal{lapsed, onDay, draft} {
		require.NoError(t, s.CreateProposal(ctx, p))
	}

	got, err := s.ListLapsedProposals(ctx, models.NewDate(2026, 3, 5), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lapsed", got[0].ID)
}

func TestMemoryStore_ProjectVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(true)

	p := &models.Project{ID: "proj", CreatorID: "h1", Status: models.OpenProject, Version: 1, CreatedAt: base}
	require.NoError(t, s.CreateProject(ctx, p))

	stale := *p
	p.Title = "first"
	require.NoError(t, s.UpdateProject(ctx, p, 1))
	assert.Equal(t, 2, p.Version)

	stale.Title = "second"
	assert.ErrorIs(t, s.UpdateProject(ctx, &stale, 1), models.ErrConflict)

	got, err := s.GetProject(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	assert.ErrorIs(t, s.UpdateProject(ctx, &models.Project{ID: "missing"}, 1), models.ErrNotFound)
}

func TestMemoryStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(true)
	require.NoError(t, s.CreateProposal(ctx, testProposal("p1", "proj", "c1", base)))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Store) error {
		p, err := tx.GetProposal(ctx, "p1")
		require.NoError(t, err)
		p.Status = models.AcceptedProposal
		require.NoError(t, tx.UpdateProposal(ctx, p))

		inside, err := tx.GetProposal(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.AcceptedProposal, inside.Status)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmittedProposal, got.Status)
}

func TestMemoryStore_NonTransactionalKeepsPartialWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(false)
	require.NoError(t, s.CreateProposal(ctx, testProposal("p1", "proj", "c1", base)))
	require.NoError(t, s.CreateProposal(ctx, testProposal("p2", "proj", "c2", base)))

	s.SetWriteHook(func(op, id string) error {
		if op == "UpdateProposal" && id == "p2" {
			return errors.New("write failed")
		}
		return nil
	})

	err := s.InTx(ctx, func(tx Store) error {
		for _, id := range []string{"p1", "p2"} {
			p, err := tx.GetProposal(ctx, id)
			if err != nil {
				return err
			}
			p.Status = models.RejectedProposal
			if err := tx.UpdateProposal(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	require.Error(t, err)
	assert.False(t, s.Transactional())

	p1, err := s.GetProposal(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.RejectedProposal, p1.Status)
	p2, err := s.GetProposal(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.SubmittedProposal, p2.Status)
}

func TestMemoryStore_ProposalHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(true)

	v := models.ProposalVersion{ProposalID: "p1", Version: 1, Content: models.ProposalContent{Title: "v1"}, CreatedAt: base}
	require.NoError(t, s.SaveProposalVersion(ctx, v))
	assert.ErrorIs(t, s.SaveProposalVersion(ctx, v), models.ErrConflict)

	got, err := s.GetProposalVersion(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content.Title)

	_, err = s.GetProposalVersion(ctx, "p1", 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_ListCreatorProjects(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(false)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateProject(ctx, &models.Project{ID: id, CreatorID: "h1", CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "x", CreatorID: "h2", CreatedAt: base}))

	got, err := s.ListCreatorProjects(ctx, "h1", 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}
