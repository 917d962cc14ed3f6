package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/senyabanana/proposal-service/internal/models"
)

// WriteHook вызывается перед каждой записью в MemoryStore. Ненулевая ошибка
// отменяет запись; используется для проверки частичных сбоев.
type WriteHook func(op, id string) error

type memoryData struct {
	proposals map[string]models.Proposal
	projects  map[string]models.Project
	history   map[string]map[int]models.ProposalVersion
}

func newMemoryData() *memoryData {
	return &memoryData{
		proposals: make(map[string]models.Proposal),
		projects:  make(map[string]models.Project),
		history:   make(map[string]map[int]models.ProposalVersion),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for id, p := range d.proposals {
		c.proposals[id] = p.Clone()
	}
	for id, p := range d.projects {
		c.projects[id] = p.Clone()
	}
	for id, versions := range d.history {
		c.history[id] = make(map[int]models.ProposalVersion, len(versions))
		for n, v := range versions {
			c.history[id][n] = v
		}
	}
	return c
}

// MemoryStore - реализация Store в памяти процесса для тестов и локального запуска.
// В транзакционном режиме InTx работает на копии данных и публикует ее целиком;
// в нетранзакционном каждая запись применяется сразу.
type MemoryStore struct {
	mu            sync.RWMutex
	txMu          *sync.Mutex
	data          *memoryData
	transactional bool
	inTx          bool
	hookMu        *sync.RWMutex
	hook          *WriteHook
}

// NewMemoryStore создает пустое хранилище.
func NewMemoryStore(transactional bool) *MemoryStore {
	var hook WriteHook
	return &MemoryStore{
		txMu:          &sync.Mutex{},
		data:          newMemoryData(),
		transactional: transactional,
		hookMu:        &sync.RWMutex{},
		hook:          &hook,
	}
}

// SetWriteHook устанавливает перехватчик записей, nil снимает его.
func (s *MemoryStore) SetWriteHook(h WriteHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	*s.hook = h
}

func (s *MemoryStore) checkHook(op, id string) error {
	s.hookMu.RLock()
	h := *s.hook
	s.hookMu.RUnlock()
	if h == nil {
		return nil
	}
	return h(op, id)
}

func (s *MemoryStore) Transactional() bool { return s.transactional }

// InTx выполняет fn. В транзакционном режиме транзакции выполняются по одной.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if !s.transactional || s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &MemoryStore{
		txMu:          s.txMu,
		data:          snapshot,
		transactional: true,
		inTx:          true,
		hookMu:        s.hookMu,
		hook:          s.hook,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
	return nil
}

// write применяет изменение данных. Запись вне транзакции в транзакционном
// режиме ждет завершения текущей транзакции.
func (s *MemoryStore) write(op, id string, apply func(d *memoryData) error) error {
	if err := s.checkHook(op, id); err != nil {
		return err
	}
	if s.transactional && !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return apply(s.data)
}

func (s *MemoryStore) CreateProposal(_ context.Context, p *models.Proposal) error {
	return s.write("CreateProposal", p.ID, func(d *memoryData) error {
		if _, exists := d.proposals[p.ID]; exists {
			return models.NewConflict("proposal already exists")
		}
		d.proposals[p.ID] = p.Clone()
		return nil
	})
}

func (s *MemoryStore) GetProposal(_ context.Context, proposalID string) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.proposals[proposalID]
	if !ok {
		return nil, errProposalNotFound
	}
	c := p.Clone()
	return &c, nil
}

func (s *MemoryStore) UpdateProposal(_ context.Context, p *models.Proposal) error {
	return s.write("UpdateProposal", p.ID, func(d *memoryData) error {
		if _, ok := d.proposals[p.ID]; !ok {
			return errProposalNotFound
		}
		d.proposals[p.ID] = p.Clone()
		return nil
	})
}

func (s *MemoryStore) ListProjectProposals(_ context.Context, projectID string) ([]models.Proposal, error) {
	return s.filterProposals(func(p models.Proposal) bool {
		return p.ProjectID == projectID && !p.IsDeleted
	}, false), nil
}

func (s *MemoryStore) ListContractorProposals(_ context.Context, contractorID string, limit, offset int) ([]models.Proposal, error) {
	all := s.filterProposals(func(p models.Proposal) bool {
		return p.ContractorID == contractorID && !p.IsDeleted
	}, true)
	return page(all, limit, offset), nil
}

func (s *MemoryStore) ListLapsedProposals(_ context.Context, today models.Date, limit int) ([]models.Proposal, error) {
	lapsed := s.filterProposals(func(p models.Proposal) bool {
		return p.Status.IsPending() && !p.IsDeleted && p.ExpiryDate.Before(today)
	}, false)
	return page(lapsed, limit, 0), nil
}

func (s *MemoryStore) filterProposals(keep func(models.Proposal) bool, newestFirst bool) []models.Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Proposal
	for _, p := range s.data.proposals {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) SaveProposalVersion(_ context.Context, v models.ProposalVersion) error {
	return s.write("SaveProposalVersion", v.ProposalID, func(d *memoryData) error {
		if d.history[v.ProposalID] == nil {
			d.history[v.ProposalID] = make(map[int]models.ProposalVersion)
		}
		if _, exists := d.history[v.ProposalID][v.Version]; exists {
			return models.NewConflict("proposal version already recorded")
		}
		d.history[v.ProposalID][v.Version] = v
		return nil
	})
}

func (s *MemoryStore) GetProposalVersion(_ context.Context, proposalID string, version int) (*models.ProposalVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.history[proposalID][version]
	if !ok {
		return nil, errVersionNotFound
	}
	return &v, nil
}

func (s *MemoryStore) CreateProject(_ context.Context, p *models.Project) error {
	return s.write("CreateProject", p.ID, func(d *memoryData) error {
		if _, exists := d.projects[p.ID]; exists {
			return models.NewConflict("project already exists")
		}
		d.projects[p.ID] = p.Clone()
		return nil
	})
}

func (s *MemoryStore) GetProject(_ context.Context, projectID string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.projects[projectID]
	if !ok {
		return nil, errProjectNotFound
	}
	c := p.Clone()
	return &c, nil
}

// LockProject в памяти не блокирует: транзакции и так выполняются по одной.
func (s *MemoryStore) LockProject(ctx context.Context, projectID string) (*models.Project, error) {
	return s.GetProject(ctx, projectID)
}

func (s *MemoryStore) UpdateProject(_ context.Context, p *models.Project, expectedVersion int) error {
	return s.write("UpdateProject", p.ID, func(d *memoryData) error {
		current, ok := d.projects[p.ID]
		if !ok {
			return errProjectNotFound
		}
		if current.Version != expectedVersion {
			return errProjectConflict
		}
		p.Version = expectedVersion + 1
		d.projects[p.ID] = p.Clone()
		return nil
	})
}

func (s *MemoryStore) ListCreatorProjects(_ context.Context, creatorID string, limit, offset int) ([]models.Project, error) {
	s.mu.RLock()
	var out []models.Project
	for _, p := range s.data.projects {
		if p.CreatorID == creatorID {
			out = append(out, p.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
