package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/senyabanana/proposal-service/internal/lifecycle"
	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/repository"

	"github.com/google/uuid"
)

// cascadeAttempts - сколько раз нетранзакционное хранилище повторяет
// незавершенные шаги каскада, прежде чем вернуть PartialAcceptanceError.
const cascadeAttempts = 2

// cascade - состояние одной операции принятия.
type cascade struct {
	opID     string
	actor    models.Actor
	now      time.Time
	target   *models.Proposal
	project  *models.Project
	rejected []string
	pending  []string
	awarded  bool
}

// AcceptProposal принимает предложение, отклоняет остальные ожидающие решения
// предложения проекта и переводит проект в awarded. Для транзакционного хранилища
// шаги выполняются в одной транзакции; иначе незавершенный каскад возвращается
// как PartialAcceptanceError и может быть продолжен повторным вызовом.
func (s *ProposalService) AcceptProposal(ctx context.Context, proposalID string, actor models.Actor) (*models.AcceptanceResult, error) {
	current, err := loadProposal(ctx, s.Store, proposalID)
	if err != nil {
		return nil, err
	}
	if !isOwner(actor, models.HomeownerRole, current.HomeownerID) {
		return nil, models.NewForbidden("only the project homeowner can accept proposals")
	}
	if _, err := s.expireIfLapsed(ctx, current); err != nil {
		return nil, err
	}

	var c *cascade
	err = s.guard.run(ctx, current.ProjectID, func(tx repository.Store, project *models.Project) error {
		target, err := loadProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if !isOwner(actor, models.HomeownerRole, project.CreatorID) {
			return models.NewForbidden("only the project homeowner can accept proposals")
		}

		c = &cascade{actor: actor, now: s.clock.Now(), target: target, project: project}
		if resumable(project, target) {
			c.opID = target.DecisionOperationID
			if c.opID == "" {
				c.opID = uuid.NewString()
			}
			s.logger.Warn("resuming acceptance",
				slog.String("operation_id", c.opID),
				slog.String("proposal_id", target.ID),
				slog.String("project_id", project.ID))
			return s.finish(ctx, tx, c)
		}

		if err := checkAcceptable(ctx, tx, project, target); err != nil {
			return err
		}

		c.opID = uuid.NewString()
		accepted := target.Clone()
		if err := lifecycle.Apply(&accepted, models.AcceptedProposal, actor, c.now, lifecycle.Decision{}); err != nil {
			return err
		}
		accepted.DecisionOperationID = c.opID
		if err := tx.UpdateProposal(ctx, &accepted); err != nil {
			return fmt.Errorf("accept proposal %s: %w", target.ID, err)
		}
		c.target = &accepted

		return s.finish(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("proposal accepted",
		slog.String("operation_id", c.opID),
		slog.String("proposal_id", c.target.ID),
		slog.String("project_id", c.project.ID),
		slog.Int("rejected_siblings", len(c.rejected)))

	rejected := c.rejected
	if rejected == nil {
		rejected = []string{}
	}
	return &models.AcceptanceResult{
		OperationID:        c.opID,
		AcceptedProposal:   *c.target,
		RejectedSiblingIDs: rejected,
		Project:            *c.project,
	}, nil
}

// resumable сообщает, что предыдущая операция приняла предложение, но не
// довела каскад до конца.
func resumable(project *models.Project, target *models.Proposal) bool {
	return target.Status == models.AcceptedProposal &&
		project.Status == models.OpenProject &&
		(project.AwardedProposalID == "" || project.AwardedProposalID == target.ID)
}

func checkAcceptable(ctx context.Context, tx repository.Store, project *models.Project, target *models.Proposal) error {
	if project.Status != models.OpenProject {
		return models.NewErrorResponse(http.StatusConflict, models.KindInvalidTransition,
			fmt.Sprintf("project %s is %s, proposals can no longer be accepted", project.ID, project.Status))
	}
	siblings, err := tx.ListProjectProposals(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		if sib.ID != target.ID && sib.Status == models.AcceptedProposal {
			return models.NewErrorResponse(http.StatusConflict, models.KindInvalidTransition,
				fmt.Sprintf("proposal %s is already accepted for project %s", sib.ID, project.ID))
		}
	}
	return lifecycle.Check(target.Status, models.AcceptedProposal, models.HomeownerRole)
}

// finish выполняет шаги каскада после принятия целевого предложения.
func (s *ProposalService) finish(ctx context.Context, tx repository.Store, c *cascade) error {
	var (
		step models.AcceptanceStep
		err  error
	)
	attempts := 1
	if !s.Store.Transactional() {
		attempts = cascadeAttempts
	}
	for i := 0; i < attempts; i++ {
		if step, err = s.completeCascade(ctx, tx, c); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	if s.Store.Transactional() {
		return fmt.Errorf("accept proposal %s: %s: %w", c.target.ID, step, err)
	}

	partial := &models.PartialAcceptanceError{
		OperationID:        c.opID,
		ProjectID:          c.project.ID,
		FailedStep:         step,
		AcceptedProposalID: c.target.ID,
		RejectedSiblingIDs: append([]string{}, c.rejected...),
		PendingSiblingIDs:  append([]string{}, c.pending...),
		ProjectAwarded:     c.awarded,
		Err:                err,
	}
	s.logger.Error("partial acceptance",
		slog.String("operation_id", c.opID),
		slog.String("project_id", c.project.ID),
		slog.String("proposal_id", c.target.ID),
		slog.String("failed_step", string(step)),
		slog.Any("rejected", partial.RejectedSiblingIDs),
		slog.Any("pending", partial.PendingSiblingIDs),
		slog.Any("error", err))
	return partial
}

// completeCascade отклоняет оставшиеся ожидающие предложения и присуждает проект.
// Повторный вызов пропускает уже выполненные шаги.
func (s *ProposalService) completeCascade(ctx context.Context, tx repository.Store, c *cascade) (models.AcceptanceStep, error) {
	siblings, err := tx.ListProjectProposals(ctx, c.project.ID)
	if err != nil {
		return models.StepRejectSiblings, err
	}

	var pending []models.Proposal
	for _, sib := range siblings {
		if sib.ID == c.target.ID {
			continue
		}
		switch {
		case sib.Status.IsPending():
			pending = append(pending, sib)
		case sib.Status == models.RejectedProposal && sib.DecisionOperationID == c.opID && !slices.Contains(c.rejected, sib.ID):
			c.rejected = append(c.rejected, sib.ID)
		}
	}

	decision := lifecycle.Decision{
		Reason: models.OtherReason,
		Notes:  fmt.Sprintf("another proposal (%s) was selected for this project", c.target.ID),
	}
	for i := range pending {
		sib := pending[i]
		if err := lifecycle.Apply(&sib, models.RejectedProposal, c.actor, c.now, decision); err != nil {
			c.pending = proposalIDs(pending[i:])
			return models.StepRejectSiblings, err
		}
		sib.DecisionOperationID = c.opID
		if err := tx.UpdateProposal(ctx, &sib); err != nil {
			c.pending = proposalIDs(pending[i:])
			return models.StepRejectSiblings, err
		}
		c.rejected = append(c.rejected, sib.ID)
	}
	c.pending = nil

	if c.project.Status != models.AwardedProject {
		awarded := c.project.Clone()
		awarded.Status = models.AwardedProject
		awarded.AwardedProposalID = c.target.ID
		awarded.UpdatedAt = c.now.UTC()
		if err := tx.UpdateProject(ctx, &awarded, c.project.Version); err != nil {
			return models.StepAwardProject, err
		}
		c.project = &awarded
	}
	c.awarded = true
	return "", nil
}

func proposalIDs(ps []models.Proposal) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}
