package repository

import (
	"context"

	"github.com/senyabanana/proposal-service/internal/models"
)

// ProposalRepository - интерфейс для работы с предложениями.
type ProposalRepository interface {
	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, proposalID string) (*models.Proposal, error)
	UpdateProposal(ctx context.Context, p *models.Proposal) error
	ListProjectProposals(ctx context.Context, projectID string) ([]models.Proposal, error)
	ListContractorProposals(ctx context.Context, contractorID string, limit, offset int) ([]models.Proposal, error)
	ListLapsedProposals(ctx context.Context, today models.Date, limit int) ([]models.Proposal, error)
	SaveProposalVersion(ctx context.Context, v models.ProposalVersion) error
	GetProposalVersion(ctx context.Context, proposalID string, version int) (*models.ProposalVersion, error)
}

// ProjectRepository - интерфейс для работы с проектами.
type ProjectRepository interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	// LockProject читает проект и блокирует его строку до конца транзакции.
	LockProject(ctx context.Context, projectID string) (*models.Project, error)
	// UpdateProject сохраняет проект, если его версия равна expectedVersion,
	// и увеличивает версию. Иначе возвращает Conflict.
	UpdateProject(ctx context.Context, p *models.Project, expectedVersion int) error
	ListCreatorProjects(ctx context.Context, creatorID string, limit, offset int) ([]models.Project, error)
}

// Store объединяет репозитории и единицу работы над ними.
type Store interface {
	ProposalRepository
	ProjectRepository
	// InTx выполняет fn в транзакции. Для нетранзакционного хранилища fn
	// выполняется напрямую, и уже сделанные записи не откатываются.
	InTx(ctx context.Context, fn func(tx Store) error) error
	// Transactional сообщает, откатывает ли InTx записи при ошибке.
	Transactional() bool
}

var (
	errProposalNotFound = models.NewNotFound("proposal not found")
	errProjectNotFound  = models.NewNotFound("project not found")
	errVersionNotFound  = models.NewNotFound("proposal version not found")
	errProjectConflict  = models.NewConflict("project was modified concurrently, reload and retry")
)
