package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/internal/ledger"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
	"github.com/paperhouse/warehouse-backend/pkg/pagination"
)

// cuttingFeePerUnit is the flat surcharge for each ordered unit when the
// delivery method includes a cutting step.
var cuttingFeePerUnit = decimal.NewFromInt(10)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, in ledger.ReserveInput) error
	Release(ctx context.Context, tx *gorm.DB, in ledger.ReleaseInput) error
	ReleaseHold(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) error
}

// Service drives the order lifecycle, reserving stock on creation and
// reversing or consuming the reservation on the way out.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	SetStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	tx                txRunner
	repo              Repository
	ledger            stockLedger
	outbox            outboxPublisher
	lowStockThreshold int
}

// ItemInput is one requested order line.
type ItemInput struct {
	MaterialID uuid.UUID `json:"material_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"gt=0"`
	Notes      *string   `json:"notes,omitempty"`
}

// CreateInput captures a new customer order.
type CreateInput struct {
	CustomerName    string               `json:"customer_name" validate:"required"`
	CustomerPhone   *string              `json:"customer_phone,omitempty"`
	CustomerAddress *string              `json:"customer_address,omitempty"`
	PlateCount      *int                 `json:"plate_count,omitempty"`
	Notes           *string              `json:"notes,omitempty"`
	DeliveryMethod  enums.DeliveryMethod `json:"delivery_method" validate:"required"`
	Items           []ItemInput          `json:"items" validate:"required,min=1,dive"`
}

// ListParams filters the order book.
type ListParams struct {
	Status *enums.OrderStatus
	Search string
	Limit  int
	Cursor string
}

// ListResult wraps returned orders and the cursor for the next page.
type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

// NewService wires order dependencies. lowStockThreshold controls when a
// reservation triggers a low stock event for the drained material.
func NewService(tx txRunner, repo Repository, led stockLedger, publisher outboxPublisher, lowStockThreshold int) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if led == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = 10
	}
	return &service{tx: tx, repo: repo, ledger: led, outbox: publisher, lowStockThreshold: lowStockThreshold}, nil
}

func nextOrderNumber() string {
	return fmt.Sprintf("ORD-%d", time.Now().UnixNano())
}

// Create reserves every requested line inside one transaction. Pricing uses
// the material's pre-reservation snapshot: unit price is the per-unit share
// of the row's cost before any quantity comes off it, so reserving the whole
// row never distorts the price.
func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*models.Order, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if !input.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.MaterialID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item material id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     nextOrderNumber(),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerPhone:   input.CustomerPhone,
		CustomerAddress: input.CustomerAddress,
		PlateCount:      input.PlateCount,
		Notes:           input.Notes,
		DeliveryMethod:  input.DeliveryMethod,
		Status:          enums.OrderStatusPending,
		CreatedBy:       actorID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		itemsTotal := decimal.Zero
		totalUnits := 0
		lowStock := make([]models.Material, 0)

		for _, item := range input.Items {
			var material models.Material
			err := tx.WithContext(ctx).First(&material, "id = ?", item.MaterialID).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
			}

			// Snapshot before the reservation mutates the row.
			qtyBefore := material.Quantity
			unitPrice := decimal.Zero
			unitWeight := decimal.Zero
			if qtyBefore > 0 {
				unitPrice = material.Cost.DivRound(decimal.NewFromInt(int64(qtyBefore)), 4)
				unitWeight = material.Weight.DivRound(decimal.NewFromInt(int64(qtyBefore)), 2)
			}

			if err := s.ledger.Reserve(ctx, tx, ledger.ReserveInput{
				MaterialID: item.MaterialID,
				Qty:        item.Quantity,
				ActorID:    actorID,
				Ref:        ledger.OrderRef(order.ID),
				Notes:      item.Notes,
			}); err != nil {
				return err
			}

			qty := decimal.NewFromInt(int64(item.Quantity))
			order.Items = append(order.Items, models.OrderItem{
				OrderID:    order.ID,
				MaterialID: item.MaterialID,
				Quantity:   item.Quantity,
				Weight:     unitWeight.Mul(qty).Round(2),
				UnitPrice:  unitPrice,
				TotalPrice: unitPrice.Mul(qty).Round(2),
				Notes:      item.Notes,
			})
			itemsTotal = itemsTotal.Add(unitPrice.Mul(qty).Round(2))
			totalUnits += item.Quantity

			if qtyBefore-item.Quantity <= s.lowStockThreshold {
				material.Quantity = qtyBefore - item.Quantity
				lowStock = append(lowStock, material)
			}
		}

		if input.DeliveryMethod.RequiresCutting() {
			order.CuttingFee = cuttingFeePerUnit.Mul(decimal.NewFromInt(int64(totalUnits)))
		} else {
			order.CuttingFee = decimal.Zero
		}
		order.TotalAmount = itemsTotal.Add(order.CuttingFee)

		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: map[string]any{
				"order_id":     order.ID,
				"order_number": order.OrderNumber,
				"customer":     order.CustomerName,
				"total_amount": order.TotalAmount,
				"item_count":   len(order.Items),
			},
		}); err != nil {
			return err
		}

		for _, material := range lowStock {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventLowStock,
				AggregateType: enums.AggregateMaterial,
				AggregateID:   material.ID,
				Actor:         &outbox.ActorRef{UserID: actorID},
				Data: map[string]any{
					"material_id": material.ID,
					"name":        material.Name,
					"quantity":    material.Quantity,
					"threshold":   s.lowStockThreshold,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listOrdersParams{
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// SetStatus moves the order through its workflow. Completing an order turns
// each reserved material back to available without restoring quantity, the
// stock was consumed by the sale. Cancelling reverses the reservation in
// full, quantity included.
func (s *service) SetStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).UpdateStatus(ctx, id, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		switch status {
		case enums.OrderStatusCompleted:
			for _, item := range order.Items {
				if err := s.ledger.ReleaseHold(ctx, tx, item.MaterialID); err != nil {
					return err
				}
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCompleted,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: actorID},
				Data: map[string]any{
					"order_id":     order.ID,
					"order_number": order.OrderNumber,
					"total_amount": order.TotalAmount,
				},
			})
		case enums.OrderStatusCancelled:
			return s.releaseItems(ctx, tx, order, actorID)
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the order after reversing any live reservation. Terminal
// orders keep their stock effects: a completed order already consumed the
// quantity and a cancelled one already returned it.
func (s *service) Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	order, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if !order.Status.IsTerminal() {
			if err := s.releaseItems(ctx, tx, order, actorID); err != nil {
				return err
			}
		}

		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: map[string]any{
				"order_id":     order.ID,
				"order_number": order.OrderNumber,
			},
		})
	})
}

func (s *service) releaseItems(ctx context.Context, tx *gorm.DB, order *models.Order, actorID uuid.UUID) error {
	for _, item := range order.Items {
		if err := s.ledger.Release(ctx, tx, ledger.ReleaseInput{
			MaterialID: item.MaterialID,
			Qty:        item.Quantity,
			ActorID:    actorID,
			Ref:        ledger.OrderRef(order.ID),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order stats")
	}
	return stats, nil
}
