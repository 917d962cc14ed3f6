package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/senyabanana/proposal-service/internal/clock"
	"github.com/senyabanana/proposal-service/internal/lock"
	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/repository"
	"github.com/senyabanana/proposal-service/internal/validation"

	"github.com/google/uuid"
)

type ProjectService struct {
	Store  repository.Store
	guard  projectGuard
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
}

// NewProjectService создает новый экземпляр ProjectService.
func NewProjectService(store repository.Store, locker lock.Locker, clk clock.Clock, loc *time.Location, logger *slog.Logger) *ProjectService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProjectService{
		Store:  store,
		guard:  projectGuard{store: store, locker: locker},
		clock:  clk,
		loc:    loc,
		logger: logger,
	}
}

// Переходы статуса проекта, доступные домовладельцу. awarded выставляет только
// принятие предложения.
var projectTransitions = map[models.ProjectStatus][]models.ProjectStatus{
	models.DraftProject:      {models.OpenProject, models.CancelledProject},
	models.OpenProject:       {models.CancelledProject},
	models.AwardedProject:    {models.InProgressProject},
	models.InProgressProject: {models.CompletedProject},
}

func validateProjectFields(p *models.Project, today models.Date, checkExpiryNotPast bool) []models.Violation {
	var violations []models.Violation
	if strings.TrimSpace(p.Title) == "" {
		violations = append(violations, models.Violation{Field: "title", Rule: validation.RuleNotEmpty})
	}
	if p.Budget.IsNegative() {
		violations = append(violations, models.Violation{Field: "budget", Rule: "must not be negative"})
	}
	if !p.Type.Valid() {
		violations = append(violations, models.Violation{Field: "type", Rule: validation.RuleUnknownValue})
	}
	switch {
	case p.ExpiryDate.IsZero():
		violations = append(violations, models.Violation{Field: "expiryDate", Rule: validation.RuleRequired})
	case checkExpiryNotPast && p.ExpiryDate.Before(today):
		violations = append(violations, models.Violation{Field: "expiryDate", Rule: validation.RuleNotInPast})
	}
	switch {
	case p.DecisionDate.IsZero():
		violations = append(violations, models.Violation{Field: "decisionDate", Rule: validation.RuleRequired})
	case !p.ExpiryDate.IsZero() && !p.DecisionDate.After(p.ExpiryDate):
		violations = append(violations, models.Violation{Field: "decisionDate", Rule: validation.RuleAfterExpiry})
	}
	return violations
}

// CreateProject создает проект домовладельца в статусе draft или open.
func (s *ProjectService) CreateProject(ctx context.Context, actor models.Actor, req models.ProjectRequest) (*models.Project, error) {
	if actor.Role != models.HomeownerRole {
		return nil, models.NewForbidden("only homeowners can create projects")
	}

	now := s.clock.Now().UTC()
	p := &models.Project{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(req.Title),
		StatementOfWork: req.StatementOfWork,
		Budget:          req.Budget,
		Categories:      req.Categories,
		Location:        req.Location,
		Region:          strings.ToUpper(strings.TrimSpace(req.Region)),
		Type:            req.Type,
		Status:          models.DraftProject,
		ExpiryDate:      req.ExpiryDate,
		DecisionDate:    req.DecisionDate,
		CreatorID:       actor.UserID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if req.Publish {
		p.Status = models.OpenProject
	}

	if violations := validateProjectFields(p, today(s.clock, s.loc), true); len(violations) > 0 {
		return nil, models.NewValidationError(violations)
	}
	if err := s.Store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject возвращает проект. Черновик виден только владельцу.
func (s *ProjectService) GetProject(ctx context.Context, projectID string, actor models.Actor) (*models.Project, error) {
	p, err := s.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.DraftProject && !isOwner(actor, models.HomeownerRole, p.CreatorID) {
		return nil, models.NewNotFound("project not found")
	}
	return p, nil
}

// ListMyProjects возвращает проекты домовладельца, новые первыми.
func (s *ProjectService) ListMyProjects(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Project, error) {
	if actor.Role != models.HomeownerRole {
		return nil, models.NewForbidden("only homeowners have projects")
	}
	projects, err := s.Store.ListCreatorProjects(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

// EditProject меняет поля проекта, если patch.Version совпадает с текущей версией.
func (s *ProjectService) EditProject(ctx context.Context, projectID string, actor models.Actor, patch models.ProjectPatch) (*models.Project, error) {
	if patch.Version <= 0 {
		return nil, models.NewBadRequest("version is required")
	}

	var result *models.Project
	err := s.guard.run(ctx, projectID, func(tx repository.Store, project *models.Project) error {
		if !isOwner(actor, models.HomeownerRole, project.CreatorID) {
			return models.NewForbidden("only the project homeowner can edit the project")
		}
		if project.Version != patch.Version {
			return models.NewConflict(fmt.Sprintf("project version is %d, got %d", project.Version, patch.Version))
		}
		if project.Status.IsClosed() {
			return models.NewConflict(fmt.Sprintf("project is %s and cannot be edited", project.Status))
		}

		p := project.Clone()
		expiryChanged := applyProjectPatch(&p, patch)
		if violations := validateProjectFields(&p, today(s.clock, s.loc), expiryChanged); len(violations) > 0 {
			return models.NewValidationError(violations)
		}
		p.UpdatedAt = s.clock.Now().UTC()
		if err := tx.UpdateProject(ctx, &p, patch.Version); err != nil {
			return err
		}
		result = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyProjectPatch(p *models.Project, patch models.ProjectPatch) (expiryChanged bool) {
	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.StatementOfWork != nil {
		p.StatementOfWork = *patch.StatementOfWork
	}
	if patch.Budget != nil {
		p.Budget = *patch.Budget
	}
	if patch.Categories != nil {
		p.Categories = append([]string{}, patch.Categories...)
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Region != nil {
		p.Region = strings.ToUpper(strings.TrimSpace(*patch.Region))
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.ExpiryDate != nil {
		p.ExpiryDate = *patch.ExpiryDate
		expiryChanged = true
	}
	if patch.DecisionDate != nil {
		p.DecisionDate = *patch.DecisionDate
	}
	return expiryChanged
}

// UpdateProjectStatus меняет статус проекта по таблице projectTransitions.
func (s *ProjectService) UpdateProjectStatus(ctx context.Context, projectID string, actor models.Actor, status models.ProjectStatus) (*models.Project, error) {
	if !status.Valid() {
		return nil, models.NewBadRequest("unknown project status: " + string(status))
	}

	var result *models.Project
	err := s.guard.run(ctx, projectID, func(tx repository.Store, project *models.Project) error {
		if !isOwner(actor, models.HomeownerRole, project.CreatorID) {
			return models.NewForbidden("only the project homeowner can change its status")
		}
		if project.Status == status {
			result = project
			return nil
		}
		if !slices.Contains(projectTransitions[project.Status], status) {
			return models.NewErrorResponse(http.StatusConflict, models.KindInvalidTransition,
				fmt.Sprintf("cannot transition project from %s to %s", project.Status, status))
		}

		p := project.Clone()
		p.Status = status
		p.UpdatedAt = s.clock.Now().UTC()
		if err := tx.UpdateProject(ctx, &p, project.Version); err != nil {
			return err
		}
		result = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("project status changed", slog.String("project_id", projectID), slog.String("status", string(result.Status)))
	return result, nil
}

// CheckConsistency проверяет инварианты проекта и возвращает отчет владельцу.
func (s *ProjectService) CheckConsistency(ctx context.Context, projectID string, actor models.Actor) (*models.ConsistencyReport, error) {
	project, err := s.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !isOwner(actor, models.HomeownerRole, project.CreatorID) {
		return nil, models.NewForbidden("only the project homeowner can check consistency")
	}
	proposals, err := s.Store.ListProjectProposals(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := CheckProjectConsistency(*project, proposals)
	if !report.Consistent {
		s.logger.Warn("project is inconsistent", slog.String("project_id", projectID), slog.Any("violations", report.Violations))
	}
	return &report, nil
}
