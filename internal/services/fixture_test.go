package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/senyabanana/proposal-service/internal/clock"
	"github.com/senyabanana/proposal-service/internal/lock"
	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/repository"
	"github.com/senyabanana/proposal-service/internal/storage"
	"github.com/senyabanana/proposal-service/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	homeowner  = models.Actor{UserID: "h-1", Role: models.HomeownerRole}
	stranger   = models.Actor{UserID: "h-2", Role: models.HomeownerRole}
	contractor = models.Actor{UserID: "c-1", Role: models.ContractorRole}
	rival      = models.Actor{UserID: "c-2", Role: models.ContractorRole}
	third      = models.Actor{UserID: "c-3", Role: models.ContractorRole}
)

type fakeFiles struct {
	stored []storage.FileMeta
}

func (f *fakeFiles) Store(_ context.Context, data []byte, meta storage.FileMeta) (models.FileReference, error) {
	f.stored = append(f.stored, meta)
	return models.FileReference{
		ID:       "file-" + meta.Filename,
		Filename: meta.Filename,
		URL:      "https://files.example.com/" + meta.Filename,
		Size:     int64(len(data)),
		MimeType: meta.MimeType,
	}, nil
}

type fixture struct {
	ctx       context.Context
	store     *repository.MemoryStore
	clock     *clock.FakeClock
	files     *fakeFiles
	proposals *ProposalService
	projects  *ProjectService
}

func newFixture(t *testing.T, transactional bool) *fixture {
	t.Helper()
	store := repository.NewMemoryStore(transactional)
	clk := clock.Fake(time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC))
	locker := lock.NewMemoryLocker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files := &fakeFiles{}
	calc := validation.NewCalculator(validation.TaxTable{
		Default:  validation.DefaultTaxRate,
		ByRegion: map[string]decimal.Decimal{"QC": decimal.RequireFromString("0.14975")},
	})

	return &fixture{
		ctx:       context.Background(),
		store:     store,
		clock:     clk,
		files:     files,
		proposals: NewProposalService(store, locker, clk, calc, files, time.UTC, logger),
		projects:  NewProjectService(store, locker, clk, time.UTC, logger),
	}
}

func (f *fixture) project(t *testing.T, mutate ...func(*models.ProjectRequest)) *models.Project {
	t.Helper()
	req := models.ProjectRequest{
		Title:           "Kitchen renovation",
		StatementOfWork: "Replace cabinets and counters",
		Budget:          decimal.NewFromInt(20000),
		Categories:      []string{"kitchen"},
		Location:        "Toronto",
		Region:          "ON",
		Type:            models.Renovation,
		ExpiryDate:      models.NewDate(2025, 1, 31),
		DecisionDate:    models.NewDate(2025, 2, 15),
		Publish:         true,
	}
	for _, m := range mutate {
		m(&req)
	}
	p, err := f.projects.CreateProject(f.ctx, homeowner, req)
	require.NoError(t, err)
	return p
}

func proposalRequest(projectID string) models.ProposalRequest {
	return models.ProposalRequest{
		ProjectID:         projectID,
		Title:             "Full kitchen",
		DescriptionOfWork: "Cabinets, counters, backsplash",
		SubtotalAmount:    decimal.NewFromInt(1000),
		TaxIncluded:       false,
		DepositAmount:     decimal.NewFromInt(200),
		DepositDueOn:      models.NewDate(2025, 1, 5),
		ProposedStartDate: models.NewDate(2025, 2, 1),
		ProposedEndDate:   models.NewDate(2025, 3, 1),
		ExpiryDate:        models.NewDate(2025, 1, 20),
		Submit:            true,
	}
}

func (f *fixture) submit(t *testing.T, actor models.Actor, projectID string, mutate ...func(*models.ProposalRequest)) *models.Proposal {
	t.Helper()
	req := proposalRequest(projectID)
	for _, m := range mutate {
		m(&req)
	}
	p, err := f.proposals.SubmitProposal(f.ctx, actor, req)
	require.NoError(t, err)
	return p
}

func (f *fixture) reload(t *testing.T, proposalID string) *models.Proposal {
	t.Helper()
	p, err := f.store.GetProposal(f.ctx, proposalID)
	require.NoError(t, err)
	return p
}

func (f *fixture) reloadProject(t *testing.T, projectID string) *models.Project {
	t.Helper()
	p, err := f.store.GetProject(f.ctx, projectID)
	require.NoError(t, err)
	return p
}

func (f *fixture) requireConsistent(t *testing.T, projectID string) {
	t.Helper()
	report, err := f.projects.CheckConsistency(f.ctx, projectID, homeowner)
	require.NoError(t, err)
	require.True(t, report.Consistent, "violations: %v", report.Violations)
}
