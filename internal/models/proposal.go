package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	ProposalStatus  string // Статус предложения
	RejectionReason string // Причина отклонения предложения
	Visibility      string // Видимость предложения
)

const (
	DraftProposal     ProposalStatus = "draft"     // Черновик подрядчика
	SubmittedProposal ProposalStatus = "submitted" // Отправлено домовладельцу
	ViewedProposal    ProposalStatus = "viewed"    // Просмотрено домовладельцем
	AcceptedProposal  ProposalStatus = "accepted"  // Принято
	RejectedProposal  ProposalStatus = "rejected"  // Отклонено
	WithdrawnProposal ProposalStatus = "withdrawn" // Отозвано подрядчиком
	ExpiredProposal   ProposalStatus = "expired"   // Истек срок действия

	PriceTooHigh           RejectionReason = "price_too_high"
	TimelineUnrealistic    RejectionReason = "timeline_unrealistic"
	InsufficientExperience RejectionReason = "insufficient_experience"
	ScopeMismatch          RejectionReason = "scope_mismatch"
	OtherReason            RejectionReason = "other"

	PrivateVisibility Visibility = "private"
	SharedVisibility  Visibility = "shared"
	PublicVisibility  Visibility = "public"
)

// IsTerminal сообщает, что из статуса нет переходов.
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case AcceptedProposal, RejectedProposal, WithdrawnProposal, ExpiredProposal:
		return true
	}
	return false
}

// IsEditable сообщает, что содержимое предложения можно менять.
func (s ProposalStatus) IsEditable() bool {
	return s == DraftProposal || s == SubmittedProposal
}

// IsPending сообщает, что предложение ждет решения домовладельца.
func (s ProposalStatus) IsPending() bool {
	return s == SubmittedProposal || s == ViewedProposal
}

// Valid проверяет, что статус входит в известный набор.
func (s ProposalStatus) Valid() bool {
	switch s {
	case DraftProposal, SubmittedProposal, ViewedProposal, AcceptedProposal, RejectedProposal, WithdrawnProposal, ExpiredProposal:
		return true
	}
	return false
}

// Valid проверяет причину отклонения. Пустая причина допустима.
func (r RejectionReason) Valid() bool {
	switch r {
	case "", PriceTooHigh, TimelineUnrealistic, InsufficientExperience, ScopeMismatch, OtherReason:
		return true
	}
	return false
}

// Valid проверяет настройку видимости.
func (v Visibility) Valid() bool {
	return v == PrivateVisibility || v == SharedVisibility || v == PublicVisibility
}

// FileReference - ссылка на вложение, сохраненное во внешнем хранилище.
type FileReference struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Proposal представляет предложение подрядчика по проекту.
type Proposal struct {
	ID           string `json:"id"`
	ProjectID    string `json:"projectId"`
	ContractorID string `json:"contractorId"`
	HomeownerID  string `json:"homeownerId"`

	Title             string `json:"title"`
	DescriptionOfWork string `json:"descriptionOfWork"`
	Notes             string `json:"notes,omitempty"`
	ClausePreviewHTML string `json:"clausePreviewHtml,omitempty"`

	SubtotalAmount decimal.Decimal `json:"subtotalAmount"`
	TaxIncluded    bool            `json:"taxIncluded"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DepositAmount  decimal.Decimal `json:"depositAmount"`
	DepositDueOn   Date            `json:"depositDueOn"`

	ProposedStartDate Date `json:"proposedStartDate"`
	ProposedEndDate   Date `json:"proposedEndDate"`
	ExpiryDate        Date `json:"expiryDate"`

	Status        ProposalStatus `json:"status"`
	IsSelected    bool           `json:"isSelected"`
	SubmittedDate *time.Time     `json:"submittedDate,omitempty"`
	ViewedDate    *time.Time     `json:"viewedDate,omitempty"`
	AcceptedDate  *time.Time     `json:"acceptedDate,omitempty"`
	RejectedDate  *time.Time     `json:"rejectedDate,omitempty"`
	WithdrawnDate *time.Time     `json:"withdrawnDate,omitempty"`
	ExpiredDate   *time.Time     `json:"expiredDate,omitempty"`
	LastUpdated   time.Time      `json:"lastUpdated"`

	RejectedBy           string          `json:"rejectedBy,omitempty"`
	RejectionReason      RejectionReason `json:"rejectionReason,omitempty"`
	RejectionReasonNotes string          `json:"rejectionReasonNotes,omitempty"`

	Attachments         []FileReference `json:"attachments"`
	Visibility          Visibility      `json:"visibilitySettings"`
	IsDeleted           bool            `json:"-"`
	Version             int             `json:"version"`
	DecisionOperationID string          `json:"decisionOperationId,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// Clone возвращает копию предложения, не разделяющую срез вложений.
func (p Proposal) Clone() Proposal {
	c := p
	if p.Attachments != nil {
		c.Attachments = append([]FileReference(nil), p.Attachments...)
	}
	return c
}

// ProposalRequest представляет структуру запроса для создания предложения.
// TotalAmount всегда пересчитывается сервисом.
type ProposalRequest struct {
	ProjectID         string           `json:"projectId"`
	Title             string           `json:"title"`
	DescriptionOfWork string           `json:"descriptionOfWork"`
	Notes             string           `json:"notes"`
	ClausePreviewHTML string           `json:"clausePreviewHtml"`
	SubtotalAmount    decimal.Decimal  `json:"subtotalAmount"`
	TaxIncluded       bool             `json:"taxIncluded"`
	TotalAmount       *decimal.Decimal `json:"totalAmount,omitempty"`
	DepositAmount     decimal.Decimal  `json:"depositAmount"`
	DepositDueOn      Date             `json:"depositDueOn"`
	ProposedStartDate Date             `json:"proposedStartDate"`
	ProposedEndDate   Date             `json:"proposedEndDate"`
	ExpiryDate        Date             `json:"expiryDate"`
	Visibility        Visibility       `json:"visibilitySettings"`
	Submit            bool             `json:"submit"`
}

// ProposalPatch - изменяемые поля предложения, nil означает "не менять".
type ProposalPatch struct {
	Title             *string          `json:"title,omitempty"`
	DescriptionOfWork *string          `json:"descriptionOfWork,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
	ClausePreviewHTML *string          `json:"clausePreviewHtml,omitempty"`
	SubtotalAmount    *decimal.Decimal `json:"subtotalAmount,omitempty"`
	TaxIncluded       *bool            `json:"taxIncluded,omitempty"`
	TotalAmount       *decimal.Decimal `json:"totalAmount,omitempty"`
	DepositAmount     *decimal.Decimal `json:"depositAmount,omitempty"`
	DepositDueOn      *Date            `json:"depositDueOn,omitempty"`
	ProposedStartDate *Date            `json:"proposedStartDate,omitempty"`
	ProposedEndDate   *Date            `json:"proposedEndDate,omitempty"`
	ExpiryDate        *Date            `json:"expiryDate,omitempty"`
	Visibility        *Visibility      `json:"visibilitySettings,omitempty"`
}

// IsEmpty сообщает, что патч ничего не меняет.
func (p ProposalPatch) IsEmpty() bool {
	return p.Title == nil && p.DescriptionOfWork == nil && p.Notes == nil && p.ClausePreviewHTML == nil &&
		p.SubtotalAmount == nil && p.TaxIncluded == nil && p.TotalAmount == nil && p.DepositAmount == nil &&
		p.DepositDueOn == nil && p.ProposedStartDate == nil && p.ProposedEndDate == nil && p.ExpiryDate == nil &&
		p.Visibility == nil
}

// ProposalContent - снимок содержимого предложения для истории версий.
type ProposalContent struct {
	Title             string          `json:"title"`
	DescriptionOfWork string          `json:"descriptionOfWork"`
	Notes             string          `json:"notes"`
	ClausePreviewHTML string          `json:"clausePreviewHtml"`
	SubtotalAmount    decimal.Decimal `json:"subtotalAmount"`
	TaxIncluded       bool            `json:"taxIncluded"`
	DepositAmount     decimal.Decimal `json:"depositAmount"`
	DepositDueOn      Date            `json:"depositDueOn"`
	ProposedStartDate Date            `json:"proposedStartDate"`
	ProposedEndDate   Date            `json:"proposedEndDate"`
	ExpiryDate        Date            `json:"expiryDate"`
	Attachments       []FileReference `json:"attachments"`
	Visibility        Visibility      `json:"visibilitySettings"`
}

// Content возвращает снимок содержимого предложения.
func (p Proposal) Content() ProposalContent {
	return ProposalContent{
		Title:             p.Title,
		DescriptionOfWork: p.DescriptionOfWork,
		Notes:             p.Notes,
		ClausePreviewHTML: p.ClausePreviewHTML,
		SubtotalAmount:    p.SubtotalAmount,
		TaxIncluded:       p.TaxIncluded,
		DepositAmount:     p.DepositAmount,
		DepositDueOn:      p.DepositDueOn,
		ProposedStartDate: p.ProposedStartDate,
		ProposedEndDate:   p.ProposedEndDate,
		ExpiryDate:        p.ExpiryDate,
		Attachments:       append([]FileReference(nil), p.Attachments...),
		Visibility:        p.Visibility,
	}
}

// ProposalVersion представляет запись истории версий предложения.
type ProposalVersion struct {
	ProposalID string          `json:"proposalId"`
	Version    int             `json:"version"`
	Content    ProposalContent `json:"content"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// AcceptanceResult - результат принятия предложения.
type AcceptanceResult struct {
	OperationID        string   `json:"operationId"`
	AcceptedProposal   Proposal `json:"acceptedProposal"`
	RejectedSiblingIDs []string `json:"rejectedSiblingIds"`
	Project            Project  `json:"project"`
}
