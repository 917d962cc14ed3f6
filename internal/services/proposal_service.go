package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/senyabanana/proposal-service/internal/clock"
	"github.com/senyabanana/proposal-service/internal/lifecycle"
	"github.com/senyabanana/proposal-service/internal/lock"
	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/repository"
	"github.com/senyabanana/proposal-service/internal/storage"
	"github.com/senyabanana/proposal-service/internal/validation"

	"github.com/google/uuid"
)

const expireBatchSize = 100

type ProposalService struct {
	Store  repository.Store
	guard  projectGuard
	clock  clock.Clock
	calc   *validation.Calculator
	files  storage.FileStore
	loc    *time.Location
	logger *slog.Logger
}

// NewProposalService создает новый экземпляр ProposalService.
func NewProposalService(
	store repository.Store,
	locker lock.Locker,
	clk clock.Clock,
	calc *validation.Calculator,
	files storage.FileStore,
	loc *time.Location,
	logger *slog.Logger,
) *ProposalService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProposalService{
		Store:  store,
		guard:  projectGuard{store: store, locker: locker},
		clock:  clk,
		calc:   calc,
		files:  files,
		loc:    loc,
		logger: logger,
	}
}

func (s *ProposalService) today() models.Date {
	return today(s.clock, s.loc)
}

// SubmitProposal проверяет черновик и сохраняет новое предложение в статусе
// draft или, если req.Submit, сразу submitted.
func (s *ProposalService) SubmitProposal(ctx context.Context, actor models.Actor, req models.ProposalRequest) (*models.Proposal, error) {
	if actor.Role != models.ContractorRole {
		return nil, models.NewForbidden("only contractors can submit proposals")
	}

	var violations []models.Violation
	if strings.TrimSpace(req.ProjectID) == "" {
		violations = append(violations, models.Violation{Field: "projectId", Rule: validation.RuleRequired})
	}
	if strings.TrimSpace(req.Title) == "" {
		violations = append(violations, models.Violation{Field: "title", Rule: validation.RuleNotEmpty})
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = models.PrivateVisibility
	}
	if !visibility.Valid() {
		violations = append(violations, models.Violation{Field: "visibilitySettings", Rule: validation.RuleUnknownValue})
	}
	if len(violations) > 0 {
		return nil, models.NewValidationError(violations)
	}

	project, err := s.Store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.CreatorID == actor.UserID {
		return nil, models.NewForbidden("cannot submit a proposal to your own project")
	}

	now := s.clock.Now()
	p := &models.Proposal{
		ID:                uuid.NewString(),
		ProjectID:         project.ID,
		ContractorID:      actor.UserID,
		HomeownerID:       project.CreatorID,
		Title:             strings.TrimSpace(req.Title),
		DescriptionOfWork: req.DescriptionOfWork,
		Notes:             req.Notes,
		ClausePreviewHTML: req.ClausePreviewHTML,
		SubtotalAmount:    req.SubtotalAmount,
		TaxIncluded:       req.TaxIncluded,
		DepositAmount:     req.DepositAmount,
		DepositDueOn:      req.DepositDueOn,
		ProposedStartDate: req.ProposedStartDate,
		ProposedEndDate:   req.ProposedEndDate,
		ExpiryDate:        req.ExpiryDate,
		Status:            models.DraftProposal,
		Attachments:       []models.FileReference{},
		Visibility:        visibility,
		Version:           1,
		CreatedAt:         now.UTC(),
		LastUpdated:       now.UTC(),
	}

	violations = append(violations, validation.ValidateSchedule(validation.ScheduleOf(*p), s.today())...)
	violations = append(violations, s.calc.Apply(p, project.Region)...)
	if len(violations) > 0 {
		return nil, models.NewValidationError(violations)
	}

	if req.Submit {
		if err := lifecycle.Apply(p, models.SubmittedProposal, actor, now, lifecycle.Decision{}); err != nil {
			return nil, err
		}
	}

	err = s.guard.run(ctx, project.ID, func(tx repository.Store, project *models.Project) error {
		if !acceptsProposals(project, s.today()) {
			return models.NewConflict(fmt.Sprintf("project %s is not accepting proposals", project.ID))
		}
		if err := tx.CreateProposal(ctx, p); err != nil {
			return err
		}
		return tx.SaveProposalVersion(ctx, snapshot(p))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func acceptsProposals(project *models.Project, today models.Date) bool {
	if project.Status != models.OpenProject {
		return false
	}
	return project.ExpiryDate.IsZero() || !project.ExpiryDate.Before(today)
}

func snapshot(p *models.Proposal) models.ProposalVersion {
	return models.ProposalVersion{
		ProposalID: p.ID,
		Version:    p.Version,
		Content:    p.Content(),
		CreatedAt:  p.LastUpdated,
	}
}

// loadProposal возвращает неудаленное предложение.
func loadProposal(ctx context.Context, repo repository.ProposalRepository, proposalID string) (*models.Proposal, error) {
	p, err := repo.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, models.NewNotFound("proposal not found")
	}
	return p, nil
}

// mutate выполняет fn над свежей копией предложения под блокировкой его проекта.
// Предложение с прошедшим сроком сначала переводится в expired.
func (s *ProposalService) mutate(ctx context.Context, proposalID string, fn func(tx repository.Store, project *models.Project, p *models.Proposal) error) (*models.Proposal, error) {
	current, err := loadProposal(ctx, s.Store, proposalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.expireIfLapsed(ctx, current); err != nil {
		return nil, err
	}

	var result *models.Proposal
	err = s.guard.run(ctx, current.ProjectID, func(tx repository.Store, project *models.Project) error {
		p, err := loadProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if err := fn(tx, project, p); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func requireOwnContent(actor models.Actor, p *models.Proposal) error {
	if !isOwner(actor, models.ContractorRole, p.ContractorID) {
		return models.NewForbidden("only the submitting contractor can change this proposal")
	}
	return lifecycle.CanEdit(p.Status)
}

// saveContent проверяет измененное содержимое, увеличивает версию и пишет снимок в историю.
// changedDates - поля дат, для которых проверяется "не в прошлом".
func (s *ProposalService) saveContent(ctx context.Context, tx repository.Store, project *models.Project, p *models.Proposal, changedDates map[string]bool) error {
	var violations []models.Violation
	for _, v := range validation.ValidateSchedule(validation.ScheduleOf(*p), s.today()) {
		if v.Rule == validation.RuleNotInPast && !changedDates[v.Field] {
			continue
		}
		violations = append(violations, v)
	}
	violations = append(violations, s.calc.Apply(p, project.Region)...)
	if strings.TrimSpace(p.Title) == "" {
		violations = append(violations, models.Violation{Field: "title", Rule: validation.RuleNotEmpty})
	}
	if !p.Visibility.Valid() {
		violations = append(violations, models.Violation{Field: "visibilitySettings", Rule: validation.RuleUnknownValue})
	}
	if len(violations) > 0 {
		return models.NewValidationError(violations)
	}

	p.Version++
	p.LastUpdated = s.clock.Now().UTC()
	if err := tx.SaveProposalVersion(ctx, snapshot(p)); err != nil {
		return err
	}
	return tx.UpdateProposal(ctx, p)
}

// UpdateProposal меняет содержимое предложения в статусах draft и submitted.
// Переданный итог игнорируется и пересчитывается.
func (s *ProposalService) UpdateProposal(ctx context.Context, proposalID string, patch models.ProposalPatch, actor models.Actor) (*models.Proposal, error) {
	return s.mutate(ctx, proposalID, func(tx repository.Store, project *models.Project, p *models.Proposal) error {
		if err := requireOwnContent(actor, p); err != nil {
			return err
		}
		if patch.IsEmpty() {
			return nil
		}
		return s.saveContent(ctx, tx, project, p, applyPatch(p, patch))
	})
}

func applyPatch(p *models.Proposal, patch models.ProposalPatch) map[string]bool {
	changed := make(map[string]bool)
	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.DescriptionOfWork != nil {
		p.DescriptionOfWork = *patch.DescriptionOfWork
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	if patch.ClausePreviewHTML != nil {
		p.ClausePreviewHTML = *patch.ClausePreviewHTML
	}
	if patch.SubtotalAmount != nil {
		p.SubtotalAmount = *patch.SubtotalAmount
	}
	if patch.TaxIncluded != nil {
		p.TaxIncluded = *patch.TaxIncluded
	}
	if patch.DepositAmount != nil {
		p.DepositAmount = *patch.DepositAmount
	}
	if patch.DepositDueOn != nil {
		p.DepositDueOn = *patch.DepositDueOn
		changed["depositDueOn"] = true
	}
	if patch.ProposedStartDate != nil {
		p.ProposedStartDate = *patch.ProposedStartDate
		changed["proposedStartDate"] = true
	}
	if patch.ProposedEndDate != nil {
		p.ProposedEndDate = *patch.ProposedEndDate
		changed["proposedEndDate"] = true
	}
	if patch.ExpiryDate != nil {
		p.ExpiryDate = *patch.ExpiryDate
		changed["expiryDate"] = true
	}
	if patch.Visibility != nil {
		p.Visibility = *patch.Visibility
	}
	return changed
}

// RollbackProposal восстанавливает содержимое версии как новую версию.
func (s *ProposalService) RollbackProposal(ctx context.Context, proposalID string, version int, actor models.Actor) (*models.Proposal, error) {
	if version <= 0 {
		return nil, models.NewBadRequest("version must be a positive integer")
	}
	return s.mutate(ctx, proposalID, func(tx repository.Store, project *models.Project, p *models.Proposal) error {
		if err := requireOwnContent(actor, p); err != nil {
			return err
		}
		v, err := tx.GetProposalVersion(ctx, p.ID, version)
		if err != nil {
			return err
		}
		c := v.Content
		p.Title = c.Title
		p.DescriptionOfWork = c.DescriptionOfWork
		p.Notes = c.Notes
		p.ClausePreviewHTML = c.ClausePreviewHTML
		p.SubtotalAmount = c.SubtotalAmount
		p.TaxIncluded = c.TaxIncluded
		p.DepositAmount = c.DepositAmount
		p.DepositDueOn = c.DepositDueOn
		p.ProposedStartDate = c.ProposedStartDate
		p.ProposedEndDate = c.ProposedEndDate
		p.ExpiryDate = c.ExpiryDate
		p.Attachments = append([]models.FileReference{}, c.Attachments...)
		p.Visibility = c.Visibility

		allDates := map[string]bool{"depositDueOn": true, "proposedStartDate": true, "proposedEndDate": true, "expiryDate": true}
		return s.saveContent(ctx, tx, project, p, allDates)
	})
}

// AttachFile сохраняет файл во внешнем хранилище и добавляет ссылку в предложение.
func (s *ProposalService) AttachFile(ctx context.Context, proposalID string, actor models.Actor, filename, mimeType string, data []byte) (*models.Proposal, error) {
	if s.files == nil {
		return nil, errors.New("file storage is not configured")
	}
	if len(data) == 0 {
		return nil, models.NewValidationError([]models.Violation{{Field: "file", Rule: validation.RuleNotEmpty}})
	}

	current, err := loadProposal(ctx, s.Store, proposalID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnContent(actor, current); err != nil {
		return nil, err
	}

	ref, err := s.files.Store(ctx, data, storage.FileMeta{ProposalID: proposalID, Filename: filename, MimeType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	return s.mutate(ctx, proposalID, func(tx repository.Store, project *models.Project, p *models.Proposal) error {
		if err := requireOwnContent(actor, p); err != nil {
			return err
		}
		p.Attachments = append(p.Attachments, ref)
		return s.saveContent(ctx, tx, project, p, nil)
	})
}

// TransitionProposal переводит предложение в статус target. Запрос текущего
// статуса - успешный no-op; переход в accepted выполняет AcceptProposal.
func (s *ProposalService) TransitionProposal(ctx context.Context, proposalID string, target models.ProposalStatus, actor models.Actor, d lifecycle.Decision) (*models.Proposal, error) {
	if !target.Valid() {
		return nil, models.NewBadRequest("unknown proposal status: " + string(target))
	}

	current, err := loadProposal(ctx, s.Store, proposalID)
	if err != nil {
		return nil, err
	}
	if !isParty(actor, current) {
		return nil, models.NewForbidden("user is not a party to this proposal")
	}
	if current.Status == target {
		return current, nil
	}
	if target == models.AcceptedProposal {
		if !lifecycle.Allowed(current.Status, target, actor.Role) {
			return nil, models.NewInvalidTransition(current.Status, target)
		}
		res, err := s.AcceptProposal(ctx, proposalID, actor)
		if err != nil {
			return nil, err
		}
		return &res.AcceptedProposal, nil
	}

	return s.mutate(ctx, proposalID, func(tx repository.Store, project *models.Project, p *models.Proposal) error {
		if p.Status == target {
			return nil
		}
		if target == models.SubmittedProposal {
			if err := s.checkSubmission(project, p, actor); err != nil {
				return err
			}
		}
		if err := lifecycle.Apply(p, target, actor, s.clock.Now(), d); err != nil {
			return err
		}
		return tx.UpdateProposal(ctx, p)
	})
}

// checkSubmission повторяет проверки SubmitProposal для отправки черновика:
// проект принимает предложения, даты не в прошлом, итог пересчитан.
func (s *ProposalService) checkSubmission(project *models.Project, p *models.Proposal, actor models.Actor) error {
	if err := lifecycle.Check(p.Status, models.SubmittedProposal, actor.Role); err != nil {
		return err
	}
	today := s.today()
	if !acceptsProposals(project, today) {
		return models.NewConflict(fmt.Sprintf("project %s is not accepting proposals", project.ID))
	}
	violations := validation.ValidateSchedule(validation.ScheduleOf(*p), today)
	violations = append(violations, s.calc.Apply(p, project.Region)...)
	if len(violations) > 0 {
		return models.NewValidationError(violations)
	}
	return nil
}

// RejectProposal отклоняет одно предложение, не затрагивая проект и остальные предложения.
func (s *ProposalService) RejectProposal(ctx context.Context, proposalID string, actor models.Actor, d lifecycle.Decision) (*models.Proposal, error) {
	return s.TransitionProposal(ctx, proposalID, models.RejectedProposal, actor, d)
}

func isParty(actor models.Actor, p *models.Proposal) bool {
	return isOwner(actor, models.ContractorRole, p.ContractorID) || isOwner(actor, models.HomeownerRole, p.HomeownerID)
}

// GetProposal возвращает предложение участнику сделки. Первое чтение отправленного
// предложения домовладельцем переводит его в viewed.
func (s *ProposalService) GetProposal(ctx context.Context, proposalID string, actor models.Actor) (*models.Proposal, error) {
	p, err := loadProposal(ctx, s.Store, proposalID)
	if err != nil {
		return nil, err
	}
	if !isParty(actor, p) {
		return nil, models.NewForbidden("user is not a party to this proposal")
	}
	if actor.Role == models.HomeownerRole && p.Status == models.DraftProposal {
		return nil, models.NewNotFound("proposal not found")
	}

	expired, err := s.expireIfLapsed(ctx, p)
	if err != nil {
		return nil, err
	}
	if expired != nil {
		return expired, nil
	}

	if actor.Role == models.HomeownerRole && p.Status == models.SubmittedProposal {
		return s.mutate(ctx, proposalID, func(tx repository.Store, _ *models.Project, p *models.Proposal) error {
			if p.Status != models.SubmittedProposal {
				return nil
			}
			if err := lifecycle.Apply(p, models.ViewedProposal, models.SystemActor, s.clock.Now(), lifecycle.Decision{}); err != nil {
				return err
			}
			return tx.UpdateProposal(ctx, p)
		})
	}
	return p, nil
}

// ListProposalsForProject возвращает неудаленные предложения проекта: домовладельцу -
// все, кроме черновиков, подрядчику - только собственные.
func (s *ProposalService) ListProposalsForProject(ctx context.Context, projectID string, actor models.Actor) ([]models.Proposal, error) {
	project, err := s.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var keep func(models.Proposal) bool
	switch {
	case isOwner(actor, models.HomeownerRole, project.CreatorID):
		keep = func(p models.Proposal) bool { return p.Status != models.DraftProposal }
	case actor.Role == models.ContractorRole && actor.UserID != "":
		keep = func(p models.Proposal) bool { return p.ContractorID == actor.UserID }
	default:
		return nil, models.NewForbidden("user is not authorized to view proposals for this project")
	}

	all, err := s.Store.ListProjectProposals(ctx, projectID)
	if err != nil {
		return nil, err
	}

	proposals := make([]models.Proposal, 0, len(all))
	for _, p := range all {
		if !keep(p) {
			continue
		}
		if expired, err := s.expireIfLapsed(ctx, &p); err != nil {
			return nil, err
		} else if expired != nil {
			p = *expired
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// ListMyProposals возвращает предложения подрядчика, новые первыми.
func (s *ProposalService) ListMyProposals(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Proposal, error) {
	if actor.Role != models.ContractorRole {
		return nil, models.NewForbidden("only contractors have proposals")
	}
	proposals, err := s.Store.ListContractorProposals(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range proposals {
		expired, err := s.expireIfLapsed(ctx, &proposals[i])
		if err != nil {
			return nil, err
		}
		if expired != nil {
			proposals[i] = *expired
		}
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	return proposals, nil
}

// DeleteProposal помечает предложение удаленным. Принятое предложение удалить нельзя.
func (s *ProposalService) DeleteProposal(ctx context.Context, proposalID string, actor models.Actor) error {
	_, err := s.mutate(ctx, proposalID, func(tx repository.Store, _ *models.Project, p *models.Proposal) error {
		if !isOwner(actor, models.ContractorRole, p.ContractorID) {
			return models.NewForbidden("only the submitting contractor can delete this proposal")
		}
		if p.Status == models.AcceptedProposal {
			return models.NewConflict("an accepted proposal cannot be deleted")
		}
		p.IsDeleted = true
		p.LastUpdated = s.clock.Now().UTC()
		return tx.UpdateProposal(ctx, p)
	})
	return err
}

// expireIfLapsed переводит ожидающее решения предложение с прошедшим сроком в expired.
// Возвращает nil, если переход не понадобился.
func (s *ProposalService) expireIfLapsed(ctx context.Context, p *models.Proposal) (*models.Proposal, error) {
	if !p.Status.IsPending() || !validation.IsLapsed(*p, s.today()) {
		return nil, nil
	}
	return s.expire(ctx, p.ProjectID, p.ID)
}

func (s *ProposalService) expire(ctx context.Context, projectID, proposalID string) (*models.Proposal, error) {
	var expired *models.Proposal
	err := s.guard.run(ctx, projectID, func(tx repository.Store, _ *models.Project) error {
		p, err := loadProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if !p.Status.IsPending() || !validation.IsLapsed(*p, s.today()) {
			return nil
		}
		if err := lifecycle.Apply(p, models.ExpiredProposal, models.SystemActor, s.clock.Now(), lifecycle.Decision{}); err != nil {
			return err
		}
		if err := tx.UpdateProposal(ctx, p); err != nil {
			return err
		}
		expired = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expire proposal %s: %w", proposalID, err)
	}
	if expired != nil {
		s.logger.Info("proposal expired", slog.String("proposal_id", proposalID), slog.String("project_id", projectID))
	}
	return expired, nil
}

// ExpireLapsed переводит в expired все ожидающие решения предложения с прошедшим
// сроком и возвращает их число.
func (s *ProposalService) ExpireLapsed(ctx context.Context) (int, error) {
	var (
		count  int
		errs   []error
		failed = make(map[string]bool)
	)
	for {
		limit := expireBatchSize + len(failed)
		lapsed, err := s.Store.ListLapsedProposals(ctx, s.today(), limit)
		if err != nil {
			return count, fmt.Errorf("list lapsed proposals: %w", err)
		}

		progressed := false
		for _, p := range lapsed {
			if failed[p.ID] {
				continue
			}
			expired, err := s.expire(ctx, p.ProjectID, p.ID)
			if err != nil {
				failed[p.ID] = true
				errs = append(errs, err)
				continue
			}
			if expired != nil {
				count++
				progressed = true
			}
		}
		if !progressed || len(lapsed) < limit {
			break
		}
	}
	return count, errors.Join(errs...)
}
