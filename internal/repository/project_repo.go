package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/proposal-service/internal/models"

	"github.com/jackc/pgx/v5"
)

const projectColumns = `id, title, statement_of_work, budget, categories, location, region, type, status,
	expiry_date, decision_date, creator_id, awarded_proposal_id, version, created_at, updated_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.StatementOfWork,
		&p.Budget,
		&p.Categories,
		&p.Location,
		&p.Region,
		&p.Type,
		&p.Status,
		&p.ExpiryDate,
		&p.DecisionDate,
		&p.CreatorID,
		&p.AwardedProposalID,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject сохраняет новый проект.
func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	insertQuery := `INSERT INTO project (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := s.q.Exec(
		ctx,
		insertQuery,
		p.ID,
		p.Title,
		p.StatementOfWork,
		p.Budget,
		categories,
		p.Location,
		p.Region,
		p.Type,
		p.Status,
		p.ExpiryDate,
		p.DecisionDate,
		p.CreatorID,
		p.AwardedProposalID,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject возвращает проект по ID.
func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	if !validID(projectID) {
		return nil, errProjectNotFound
	}
	query := `SELECT ` + projectColumns + ` FROM project WHERE id = $1`
	p, err := scanProject(s.q.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, notFound(err, errProjectNotFound)
	}
	return p, nil
}

// LockProject читает проект с блокировкой строки. Вне транзакции блокировка
// снимается сразу после запроса, поэтому вызывается из InTx.
func (s *PostgresStore) LockProject(ctx context.Context, projectID string) (*models.Project, error) {
	if !validID(projectID) {
		return nil, errProjectNotFound
	}
	query := `SELECT ` + projectColumns + ` FROM project WHERE id = $1 FOR UPDATE`
	p, err := scanProject(s.q.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, notFound(err, errProjectNotFound)
	}
	return p, nil
}

// UpdateProject сохраняет проект с проверкой версии.
func (s *PostgresStore) UpdateProject(ctx context.Context, p *models.Project, expectedVersion int) error {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	updateQuery := `
		UPDATE project SET
			title = $3, statement_of_work = $4, budget = $5, categories = $6, location = $7, region = $8,
			type = $9, status = $10, expiry_date = $11, decision_date = $12, awarded_proposal_id = $13,
			updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version`
	var newVersion int
	err := s.q.QueryRow(ctx, updateQuery,
		p.ID,
		expectedVersion,
		p.Title,
		p.StatementOfWork,
		p.Budget,
		categories,
		p.Location,
		p.Region,
		p.Type,
		p.Status,
		p.ExpiryDate,
		p.DecisionDate,
		p.AwardedProposalID,
		p.UpdatedAt,
	).Scan(&newVersion)
	if err == nil {
		p.Version = newVersion
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}

	var exists bool
	if err := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM project WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check project %s: %w", p.ID, err)
	}
	if !exists {
		return errProjectNotFound
	}
	return errProjectConflict
}

// ListCreatorProjects возвращает проекты домовладельца.
func (s *PostgresStore) ListCreatorProjects(ctx context.Context, creatorID string, limit, offset int) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM project
		WHERE creator_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := s.q.Query(ctx, query, creatorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list projects for %s: %w", creatorID, err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}
