package maintenance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/pagination"
)

// Service tracks repair work on warehouses.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.MaintenanceRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.MaintenanceRequest, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.MaintenanceStatus) (*models.MaintenanceRequest, error)
}

type service struct {
	repo Repository
}

// CreateInput files a maintenance request.
type CreateInput struct {
	WarehouseID   uuid.UUID                 `json:"warehouse_id" validate:"required"`
	Title         string                    `json:"title" validate:"required"`
	Description   string                    `json:"description"`
	Priority      enums.MaintenancePriority `json:"priority"`
	ScheduledDate *time.Time                `json:"scheduled_date,omitempty"`
	EstimatedCost *decimal.Decimal          `json:"estimated_cost,omitempty"`
	Notes         *string                   `json:"notes,omitempty"`
}

// UpdateInput carries the mutable fields of a request.
type UpdateInput struct {
	Title         *string                    `json:"title,omitempty"`
	Description   *string                    `json:"description,omitempty"`
	Priority      *enums.MaintenancePriority `json:"priority,omitempty"`
	AssignedTo    *uuid.UUID                 `json:"assigned_to,omitempty"`
	ScheduledDate *time.Time                 `json:"scheduled_date,omitempty"`
	EstimatedCost *decimal.Decimal           `json:"estimated_cost,omitempty"`
	ActualCost    *decimal.Decimal           `json:"actual_cost,omitempty"`
	Notes         *string                    `json:"notes,omitempty"`
}

// ListParams filters maintenance requests.
type ListParams struct {
	WarehouseID *uuid.UUID
	Status      *enums.MaintenanceStatus
	Priority    *enums.MaintenancePriority
	Limit       int
	Cursor      string
}

// ListResult wraps returned requests and the cursor for the next page.
type ListResult struct {
	Items  []models.MaintenanceRequest `json:"items"`
	Cursor string                      `json:"cursor"`
}

// NewService wires maintenance dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maintenance repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.MaintenanceRequest, error) {
	if input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	priority := input.Priority
	if priority == "" {
		priority = enums.MaintenancePriorityMedium
	}
	if !priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority")
	}

	request := &models.MaintenanceRequest{
		WarehouseID:   input.WarehouseID,
		Title:         strings.TrimSpace(input.Title),
		Description:   input.Description,
		Priority:      priority,
		Status:        enums.MaintenanceStatusPending,
		RequestedBy:   actorID,
		ScheduledDate: input.ScheduledDate,
		EstimatedCost: input.EstimatedCost,
		Notes:         input.Notes,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create maintenance request")
	}
	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load maintenance request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "maintenance request not found")
	}
	return request, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listRequestsParams{
		WarehouseID: params.WarehouseID,
		Status:      params.Status,
		Priority:    params.Priority,
		Limit:       params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list maintenance requests")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.MaintenanceRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}

	fields := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority")
		}
		fields["priority"] = *input.Priority
	}
	if input.AssignedTo != nil {
		fields["assigned_to"] = *input.AssignedTo
	}
	if input.ScheduledDate != nil {
		fields["scheduled_date"] = *input.ScheduledDate
	}
	if input.EstimatedCost != nil {
		fields["estimated_cost"] = *input.EstimatedCost
	}
	if input.ActualCost != nil {
		fields["actual_cost"] = *input.ActualCost
	}
	if input.Notes != nil {
		fields["notes"] = *input.Notes
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	affected, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update maintenance request")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "maintenance request not found")
	}
	return s.Get(ctx, id)
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.MaintenanceStatus) (*models.MaintenanceRequest, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid maintenance status")
	}
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status == status {
		return request, nil
	}
	if request.Status == enums.MaintenanceStatusCompleted || request.Status == enums.MaintenanceStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request is in a terminal state")
	}

	fields := map[string]any{"status": status}
	if status == enums.MaintenanceStatusCompleted {
		fields["completed_date"] = time.Now()
	}
	affected, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update maintenance status")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "maintenance request not found")
	}
	return s.Get(ctx, id)
}
