package invoices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
	"github.com/paperhouse/warehouse-backend/pkg/pagination"
)

// taxRate applies to the discounted subtotal plus cutting fee.
var taxRate = decimal.NewFromFloat(0.15)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Service bills completed orders. Every item mutation funnels through one
// recompute so the stored subtotal, tax and total can never drift from the
// item rows.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ReplaceItems(ctx context.Context, id uuid.UUID, items []ItemInput) (*models.Invoice, error)
	AddItem(ctx context.Context, id uuid.UUID, item ItemInput) (*models.Invoice, error)
	UpdateItem(ctx context.Context, id, itemID uuid.UUID, input UpdateItemInput) (*models.Invoice, error)
	DeleteItem(ctx context.Context, id, itemID uuid.UUID) (*models.Invoice, error)
	SetStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status enums.InvoiceStatus) (*models.Invoice, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	orders orderReader
	outbox outboxPublisher
}

// ItemInput is one billed line.
type ItemInput struct {
	MaterialName string          `json:"material_name" validate:"required"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity" validate:"gt=0"`
	UnitPrice    decimal.Decimal `json:"unit_price" validate:"required"`
	MaterialID   *uuid.UUID      `json:"material_id,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
}

// UpdateItemInput carries the mutable fields of a billed line.
type UpdateItemInput struct {
	MaterialName *string          `json:"material_name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Quantity     *int             `json:"quantity,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

// CreateInput bills a completed order.
type CreateInput struct {
	OrderID    uuid.UUID       `json:"order_id" validate:"required"`
	Items      []ItemInput     `json:"items" validate:"required,min=1,dive"`
	CuttingFee decimal.Decimal `json:"cutting_fee"`
	Discount   decimal.Decimal `json:"discount"`
	Notes      *string         `json:"notes,omitempty"`
}

// ListParams filters the billing book.
type ListParams struct {
	Status *enums.InvoiceStatus
	Search string
	Limit  int
	Cursor string
}

// ListResult wraps returned invoices and the cursor for the next page.
type ListResult struct {
	Items  []models.Invoice `json:"items"`
	Cursor string           `json:"cursor"`
}

// NewService wires invoice dependencies.
func NewService(tx txRunner, repo Repository, orders orderReader, publisher outboxPublisher) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoices repository required")
	}
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders reader required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{tx: tx, repo: repo, orders: orders, outbox: publisher}, nil
}

func nextInvoiceNumber() string {
	return fmt.Sprintf("INV-%d", time.Now().UnixNano())
}

func validateItem(item ItemInput) error {
	if strings.TrimSpace(item.MaterialName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item material name required")
	}
	if item.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
	}
	if item.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "item unit price cannot be negative")
	}
	return nil
}

func buildItem(invoiceID uuid.UUID, item ItemInput) models.InvoiceItem {
	qty := decimal.NewFromInt(int64(item.Quantity))
	return models.InvoiceItem{
		InvoiceID:    invoiceID,
		MaterialName: strings.TrimSpace(item.MaterialName),
		Description:  item.Description,
		Quantity:     item.Quantity,
		UnitPrice:    item.UnitPrice,
		TotalPrice:   item.UnitPrice.Mul(qty).Round(2),
		MaterialID:   item.MaterialID,
		Notes:        item.Notes,
	}
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Invoice, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice requires at least one item")
	}
	if input.Discount.IsNegative() || input.CuttingFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount and cutting fee cannot be negative")
	}
	for _, item := range input.Items {
		if err := validateItem(item); err != nil {
			return nil, err
		}
	}

	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not completed")
	}

	existing, err := s.repo.FindByOrderID(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing invoice")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an invoice")
	}

	invoice := &models.Invoice{
		ID:              uuid.New(),
		InvoiceNumber:   nextInvoiceNumber(),
		OrderID:         order.ID,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerAddress: order.CustomerAddress,
		CuttingFee:      input.CuttingFee,
		Discount:        input.Discount,
		Status:          enums.InvoiceStatusDraft,
		Notes:           input.Notes,
		CreatedBy:       actorID,
	}
	for _, item := range input.Items {
		invoice.Items = append(invoice.Items, buildItem(invoice.ID, item))
	}
	subtotal := decimal.Zero
	for _, item := range invoice.Items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	invoice.Subtotal = subtotal
	invoice.Tax, invoice.TotalAmount = deriveTotals(subtotal, invoice.Discount, invoice.CuttingFee)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, invoice); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has an invoice")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceCreated,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: map[string]any{
				"invoice_id":     invoice.ID,
				"invoice_number": invoice.InvoiceNumber,
				"order_id":       invoice.OrderID,
				"total_amount":   invoice.TotalAmount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listInvoicesParams{
		Status: params.Status,
		Search: params.Search,
		Limit:  params.Limit,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) ReplaceItems(ctx context.Context, id uuid.UUID, items []ItemInput) (*models.Invoice, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice requires at least one item")
	}
	for _, item := range items {
		if err := validateItem(item); err != nil {
			return nil, err
		}
	}
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteItems(ctx, invoice.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear invoice items")
		}
		for _, item := range items {
			row := buildItem(invoice.ID, item)
			if err := repo.CreateItem(ctx, &row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice item")
			}
		}
		return s.recomputeTotals(ctx, repo, invoice.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) AddItem(ctx context.Context, id uuid.UUID, item ItemInput) (*models.Invoice, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row := buildItem(invoice.ID, item)
		if err := repo.CreateItem(ctx, &row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice item")
		}
		return s.recomputeTotals(ctx, repo, invoice.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) UpdateItem(ctx context.Context, id, itemID uuid.UUID, input UpdateItemInput) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, invoice.ID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice item not found")
	}

	fields := map[string]any{}
	quantity := item.Quantity
	unitPrice := item.UnitPrice
	if input.MaterialName != nil {
		name := strings.TrimSpace(*input.MaterialName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item material name cannot be empty")
		}
		fields["material_name"] = name
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Quantity != nil {
		if *input.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		quantity = *input.Quantity
		fields["quantity"] = quantity
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit price cannot be negative")
		}
		unitPrice = *input.UnitPrice
		fields["unit_price"] = unitPrice
	}
	if input.Notes != nil {
		fields["notes"] = *input.Notes
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	fields["total_price"] = unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateItem(ctx, itemID, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice item")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice item not found")
		}
		return s.recomputeTotals(ctx, repo, invoice.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) DeleteItem(ctx context.Context, id, itemID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.DeleteItem(ctx, invoice.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete invoice item")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice item not found")
		}
		return s.recomputeTotals(ctx, repo, invoice.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetStatus is deliberately permissive: any known status can follow any
// other, matching how billing staff actually use the workflow. The
// side-effect timestamps record the first time a state is reached.
func (s *service) SetStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status enums.InvoiceStatus) (*models.Invoice, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice status")
	}
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == status {
		return invoice, nil
	}

	now := time.Now()
	fields := map[string]any{"status": status}
	switch status {
	case enums.InvoiceStatusApproved:
		if invoice.ApprovedAt == nil {
			fields["approved_by"] = actorID
			fields["approved_at"] = now
		}
	case enums.InvoiceStatusPaid:
		if invoice.PaidAt == nil {
			fields["paid_at"] = now
		}
	case enums.InvoiceStatusDelivered:
		if invoice.DeliveredAt == nil {
			fields["delivered_at"] = now
		}
	}

	affected, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return s.Get(ctx, id)
}

// Delete removes an invoice and its items. Paid invoices stay: money
// already moved against them.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "paid invoices cannot be deleted")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteItems(ctx, invoice.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete invoice items")
		}
		affected, err := repo.Delete(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete invoice")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil
	})
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invoice stats")
	}
	return stats, nil
}

// recomputeTotals is the only writer of subtotal, tax and total_amount. It
// re-reads discount and cutting fee off the invoice row so repeated calls
// always converge on the same numbers.
func (s *service) recomputeTotals(ctx context.Context, repo Repository, invoiceID uuid.UUID) error {
	invoice, err := repo.FindByID(ctx, invoiceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}

	subtotal, err := repo.SumItems(ctx, invoiceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum invoice items")
	}
	tax, total := deriveTotals(subtotal, invoice.Discount, invoice.CuttingFee)

	_, err = repo.UpdateFields(ctx, invoiceID, map[string]any{
		"subtotal":     subtotal,
		"tax":          tax,
		"total_amount": total,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write invoice totals")
	}
	return nil
}

func deriveTotals(subtotal, discount, cuttingFee decimal.Decimal) (tax, total decimal.Decimal) {
	base := subtotal.Sub(discount).Add(cuttingFee)
	tax = base.Mul(taxRate).Round(2)
	total = base.Add(tax)
	return tax, total
}
