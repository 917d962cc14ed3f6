package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	ProjectStatus string // Статус проекта
	ProjectType   string // Тип проекта
)

const (
	DraftProject      ProjectStatus = "draft"       // Проект создан, но не опубликован
	OpenProject       ProjectStatus = "open"        // Принимает предложения
	AwardedProject    ProjectStatus = "awarded"     // Выбрано предложение
	InProgressProject ProjectStatus = "in_progress" // Работы начаты
	CompletedProject  ProjectStatus = "completed"   // Работы завершены
	CancelledProject  ProjectStatus = "cancelled"   // Проект отменен

	Renovation   ProjectType = "renovation"
	NewBuild     ProjectType = "new_build"
	Repair       ProjectType = "repair"
	Landscaping  ProjectType = "landscaping"
	OtherProject ProjectType = "other"
)

// Valid проверяет, что статус входит в известный набор.
func (s ProjectStatus) Valid() bool {
	switch s {
	case DraftProject, OpenProject, AwardedProject, InProgressProject, CompletedProject, CancelledProject:
		return true
	}
	return false
}

// IsClosed сообщает, что проект больше не принимает решений по предложениям.
func (s ProjectStatus) IsClosed() bool {
	return s == CompletedProject || s == CancelledProject
}

// Valid проверяет тип проекта. Пустой тип допустим.
func (t ProjectType) Valid() bool {
	switch t {
	case "", Renovation, NewBuild, Repair, Landscaping, OtherProject:
		return true
	}
	return false
}

// Project представляет модель проекта домовладельца.
type Project struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	StatementOfWork   string          `json:"statementOfWork"`
	Budget            decimal.Decimal `json:"budget"`
	Categories        []string        `json:"categories"`
	Location          string          `json:"location"`
	Region            string          `json:"region"`
	Type              ProjectType     `json:"type"`
	Status            ProjectStatus   `json:"status"`
	ExpiryDate        Date            `json:"expiryDate"`
	DecisionDate      Date            `json:"decisionDate"`
	CreatorID         string          `json:"creatorId"`
	AwardedProposalID string          `json:"awardedProposalId,omitempty"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Clone возвращает копию проекта, не разделяющую срез категорий.
func (p Project) Clone() Project {
	c := p
	if p.Categories != nil {
		c.Categories = append([]string(nil), p.Categories...)
	}
	return c
}

// ProjectRequest представляет структуру запроса для создания проекта.
type ProjectRequest struct {
	Title           string          `json:"title"`
	StatementOfWork string          `json:"statementOfWork"`
	Budget          decimal.Decimal `json:"budget"`
	Categories      []string        `json:"categories"`
	Location        string          `json:"location"`
	Region          string          `json:"region"`
	Type            ProjectType     `json:"type"`
	ExpiryDate      Date            `json:"expiryDate"`
	DecisionDate    Date            `json:"decisionDate"`
	Publish         bool            `json:"publish"`
}

// ProjectPatch - изменяемые поля проекта. Статус меняется отдельной операцией.
type ProjectPatch struct {
	Title           *string          `json:"title,omitempty"`
	StatementOfWork *string          `json:"statementOfWork,omitempty"`
	Budget          *decimal.Decimal `json:"budget,omitempty"`
	Categories      []string         `json:"categories,omitempty"`
	Location        *string          `json:"location,omitempty"`
	Region          *string          `json:"region,omitempty"`
	Type            *ProjectType     `json:"type,omitempty"`
	ExpiryDate      *Date            `json:"expiryDate,omitempty"`
	DecisionDate    *Date            `json:"decisionDate,omitempty"`
	Version         int              `json:"version"`
}

// ConsistencyReport - результат проверки инвариантов проекта и его предложений.
type ConsistencyReport struct {
	ProjectID          string   `json:"projectId"`
	Consistent         bool     `json:"consistent"`
	AcceptedProposalID string   `json:"acceptedProposalId,omitempty"`
	Violations         []string `json:"violations"`
}
