package repository

import (
	"context"
	"fmt"

	"github.com/senyabanana/proposal-service/internal/models"

	"github.com/jackc/pgx/v5"
)

const proposalColumns = `id, project_id, contractor_id, homeowner_id, title, description_of_work, notes, clause_preview_html,
	subtotal_amount, tax_included, total_amount, deposit_amount, deposit_due_on,
	proposed_start_date, proposed_end_date, expiry_date,
	status, is_selected, submitted_date, viewed_date, accepted_date, rejected_date, withdrawn_date, expired_date, last_updated,
	rejected_by, rejection_reason, rejection_reason_notes, attachments, visibility, is_deleted, version,
	decision_operation_id, created_at`

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	var p models.Proposal
	err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.ContractorID,
		&p.HomeownerID,
		&p.Title,
		&p.DescriptionOfWork,
		&p.Notes,
		&p.ClausePreviewHTML,
		&p.SubtotalAmount,
		&p.TaxIncluded,
		&p.TotalAmount,
		&p.DepositAmount,
		&p.DepositDueOn,
		&p.ProposedStartDate,
		&p.ProposedEndDate,
		&p.ExpiryDate,
		&p.Status,
		&p.IsSelected,
		&p.SubmittedDate,
		&p.ViewedDate,
		&p.AcceptedDate,
		&p.RejectedDate,
		&p.WithdrawnDate,
		&p.ExpiredDate,
		&p.LastUpdated,
		&p.RejectedBy,
		&p.RejectionReason,
		&p.RejectionReasonNotes,
		&p.Attachments,
		&p.Visibility,
		&p.IsDeleted,
		&p.Version,
		&p.DecisionOperationID,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Attachments == nil {
		p.Attachments = []models.FileReference{}
	}
	return &p, nil
}

func collectProposals(rows pgx.Rows) ([]models.Proposal, error) {
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

func proposalArgs(p *models.Proposal) []any {
	attachments := p.Attachments
	if attachments == nil {
		attachments = []models.FileReference{}
	}
	return []any{
		p.ID,
		p.ProjectID,
		p.ContractorID,
		p.HomeownerID,
		p.Title,
		p.DescriptionOfWork,
		p.Notes,
		p.ClausePreviewHTML,
		p.SubtotalAmount,
		p.TaxIncluded,
		p.TotalAmount,
		p.DepositAmount,
		p.DepositDueOn,
		p.ProposedStartDate,
		p.ProposedEndDate,
		p.ExpiryDate,
		p.Status,
		p.IsSelected,
		p.SubmittedDate,
		p.ViewedDate,
		p.AcceptedDate,
		p.RejectedDate,
		p.WithdrawnDate,
		p.ExpiredDate,
		p.LastUpdated,
		p.RejectedBy,
		p.RejectionReason,
		p.RejectionReasonNotes,
		attachments,
		p.Visibility,
		p.IsDeleted,
		p.Version,
		p.DecisionOperationID,
		p.CreatedAt,
	}
}

// CreateProposal сохраняет новое предложение.
func (s *PostgresStore) CreateProposal(ctx context.Context, p *models.Proposal) error {
	insertQuery := `INSERT INTO proposal (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		        $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34)`
	if _, err := s.q.Exec(ctx, insertQuery, proposalArgs(p)...); err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// GetProposal возвращает предложение по ID, включая помеченные удаленными.
func (s *PostgresStore) GetProposal(ctx context.Context, proposalID string) (*models.Proposal, error) {
	if !validID(proposalID) {
		return nil, errProposalNotFound
	}
	query := `SELECT ` + proposalColumns + ` FROM proposal WHERE id = $1`
	p, err := scanProposal(s.q.QueryRow(ctx, query, proposalID))
	if err != nil {
		return nil, notFound(err, errProposalNotFound)
	}
	return p, nil
}

// UpdateProposal перезаписывает все изменяемые поля предложения.
func (s *PostgresStore) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	updateQuery := `
		UPDATE proposal SET
			title = $2, description_of_work = $3, notes = $4, clause_preview_html = $5,
			subtotal_amount = $6, tax_included = $7, total_amount = $8, deposit_amount = $9, deposit_due_on = $10,
			proposed_start_date = $11, proposed_end_date = $12, expiry_date = $13,
			status = $14, is_selected = $15, submitted_date = $16, viewed_date = $17, accepted_date = $18,
			rejected_date = $19, withdrawn_date = $20, expired_date = $21, last_updated = $22,
			rejected_by = $23, rejection_reason = $24, rejection_reason_notes = $25,
			attachments = $26, visibility = $27, is_deleted = $28, version = $29, decision_operation_id = $30
		WHERE id = $1`
	attachments := p.Attachments
	if attachments == nil {
		attachments = []models.FileReference{}
	}
	tag, err := s.q.Exec(ctx, updateQuery,
		p.ID,
		p.Title,
		p.DescriptionOfWork,
		p.Notes,
		p.ClausePreviewHTML,
		p.SubtotalAmount,
		p.TaxIncluded,
		p.TotalAmount,
		p.DepositAmount,
		p.DepositDueOn,
		p.ProposedStartDate,
		p.ProposedEndDate,
		p.ExpiryDate,
		p.Status,
		p.IsSelected,
		p.SubmittedDate,
		p.ViewedDate,
		p.AcceptedDate,
		p.RejectedDate,
		p.WithdrawnDate,
		p.ExpiredDate,
		p.LastUpdated,
		p.RejectedBy,
		p.RejectionReason,
		p.RejectionReasonNotes,
		attachments,
		p.Visibility,
		p.IsDeleted,
		p.Version,
		p.DecisionOperationID,
	)
	if isUniqueViolation(err) {
		return models.NewConflict(fmt.Sprintf("another proposal is already accepted for project %s", p.ProjectID))
	}
	if err != nil {
		return fmt.Errorf("update proposal %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return errProposalNotFound
	}
	return nil
}

// ListProjectProposals возвращает неудаленные предложения проекта.
func (s *PostgresStore) ListProjectProposals(ctx context.Context, projectID string) ([]models.Proposal, error) {
	if !validID(projectID) {
		return []models.Proposal{}, nil
	}
	query := `SELECT ` + proposalColumns + `
		FROM proposal
		WHERE project_id = $1 AND NOT is_deleted
		ORDER BY created_at, id`
	rows, err := s.q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list proposals for project %s: %w", projectID, err)
	}
	return collectProposals(rows)
}

// ListContractorProposals возвращает неудаленные предложения подрядчика.
func (s *PostgresStore) ListContractorProposals(ctx context.Context, contractorID string, limit, offset int) ([]models.Proposal, error) {
	query := `SELECT ` + proposalColumns + `
		FROM proposal
		WHERE contractor_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := s.q.Query(ctx, query, contractorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list proposals for contractor %s: %w", contractorID, err)
	}
	return collectProposals(rows)
}

// ListLapsedProposals возвращает ожидающие решения предложения с истекшим сроком.
func (s *PostgresStore) ListLapsedProposals(ctx context.Context, today models.Date, limit int) ([]models.Proposal, error) {
	query := `SELECT ` + proposalColumns + `
		FROM proposal
		WHERE status IN ('submitted', 'viewed') AND expiry_date < $1 AND NOT is_deleted
		ORDER BY expiry_date, id
		LIMIT $2`
	rows, err := s.q.Query(ctx, query, today, limit)
	if err != nil {
		return nil, fmt.Errorf("list lapsed proposals: %w", err)
	}
	return collectProposals(rows)
}

// SaveProposalVersion сохраняет снимок содержимого в истории.
func (s *PostgresStore) SaveProposalVersion(ctx context.Context, v models.ProposalVersion) error {
	historyInsertQuery := `INSERT INTO proposal_history (proposal_id, version, content, created_at) VALUES ($1, $2, $3, $4)`
	_, err := s.q.Exec(ctx, historyInsertQuery, v.ProposalID, v.Version, v.Content, v.CreatedAt)
	if isUniqueViolation(err) {
		return models.NewConflict(fmt.Sprintf("proposal %s version %d already exists", v.ProposalID, v.Version))
	}
	if err != nil {
		return fmt.Errorf("insert proposal history: %w", err)
	}
	return nil
}

// GetProposalVersion возвращает снимок предложения заданной версии.
func (s *PostgresStore) GetProposalVersion(ctx context.Context, proposalID string, version int) (*models.ProposalVersion, error) {
	if !validID(proposalID) {
		return nil, errVersionNotFound
	}
	var v models.ProposalVersion
	query := `SELECT proposal_id, version, content, created_at FROM proposal_history WHERE proposal_id = $1 AND version = $2`
	err := s.q.QueryRow(ctx, query, proposalID, version).Scan(&v.ProposalID, &v.Version, &v.Content, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err, errVersionNotFound)
	}
	return &v, nil
}
