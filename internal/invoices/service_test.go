package invoices

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/internal/ledger"
	"github.com/paperhouse/warehouse-backend/internal/orders"
	"github.com/paperhouse/warehouse-backend/pkg/db"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
)

type fixture struct {
	conn   *gorm.DB
	orders orders.Service
	svc    Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:invoices_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Material{},
		&models.StockMovement{},
		&models.Order{},
		&models.OrderItem{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.NewFromConn(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	orderSvc, err := orders.NewService(client, orders.NewRepository(conn), ledger.New(nil), publisher, 10)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	svc, err := NewService(client, NewRepository(conn), orderSvc, publisher)
	if err != nil {
		t.Fatalf("invoices service: %v", err)
	}
	return &fixture{conn: conn, orders: orderSvc, svc: svc}
}

// completedOrder seeds a material, orders against it and walks the order to
// completed so it can be billed.
func (f *fixture) completedOrder(t *testing.T) *models.Order {
	t.Helper()
	ctx := context.Background()
	material := &models.Material{
		Name:        "invoice stock",
		Weight:      decimal.NewFromInt(1000),
		Quantity:    100,
		WarehouseID: uuid.New(),
		Cost:        decimal.NewFromInt(10000),
		Status:      enums.MaterialStatusAvailable,
	}
	if err := f.conn.Create(material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}
	order, err := f.orders.Create(ctx, uuid.New(), orders.CreateInput{
		CustomerName:   "Billable Customer",
		DeliveryMethod: enums.DeliveryMethodDirect,
		Items:          []orders.ItemInput{{MaterialID: material.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := f.orders.SetStatus(ctx, uuid.New(), order.ID, enums.OrderStatusCompleted); err != nil {
		t.Fatalf("complete order: %v", err)
	}
	return order
}

func TestCreateComputesTotals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order := f.completedOrder(t)

	invoice, err := f.svc.Create(context.Background(), uuid.New(), CreateInput{
		OrderID: order.ID,
		Items: []ItemInput{
			{MaterialName: "kraft", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{MaterialName: "duplex", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !invoice.Subtotal.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("subtotal = %s, want 25", invoice.Subtotal)
	}
	if !invoice.Tax.Equal(decimal.NewFromFloat(3.75)) {
		t.Fatalf("tax = %s, want 3.75", invoice.Tax)
	}
	if !invoice.TotalAmount.Equal(decimal.NewFromFloat(28.75)) {
		t.Fatalf("total = %s, want 28.75", invoice.TotalAmount)
	}
	if invoice.Status != enums.InvoiceStatusDraft {
		t.Fatalf("status = %s, want draft", invoice.Status)
	}
	if invoice.CustomerName != "Billable Customer" {
		t.Fatal("customer snapshot missing")
	}

	var event models.OutboxEvent
	if err := f.conn.First(&event, "event_type = ?", enums.EventInvoiceCreated).Error; err != nil {
		t.Fatalf("load outbox event: %v", err)
	}
	if event.AggregateID != invoice.ID {
		t.Fatal("event aggregate should be the invoice")
	}
}

func TestCreateRequiresCompletedOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	material := &models.Material{
		Name:        "pending stock",
		Weight:      decimal.NewFromInt(100),
		Quantity:    50,
		WarehouseID: uuid.New(),
		Cost:        decimal.NewFromInt(500),
		Status:      enums.MaterialStatusAvailable,
	}
	if err := f.conn.Create(material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}
	order, err := f.orders.Create(ctx, uuid.New(), orders.CreateInput{
		CustomerName:   "Too Early",
		DeliveryMethod: enums.DeliveryMethodDirect,
		Items:          []orders.ItemInput{{MaterialID: material.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: order.ID,
		Items:   []ItemInput{{MaterialName: "x", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %v, want state conflict", err)
	}
}

func TestCreateRejectsDuplicateInvoice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.completedOrder(t)

	input := CreateInput{
		OrderID: order.ID,
		Items:   []ItemInput{{MaterialName: "x", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	}
	if _, err := f.svc.Create(ctx, uuid.New(), input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := f.svc.Create(ctx, uuid.New(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("code = %v, want conflict", err)
	}
}

func TestAddItemRecomputesTotals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.completedOrder(t)

	invoice, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: order.ID,
		Items: []ItemInput{
			{MaterialName: "kraft", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{MaterialName: "duplex", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := f.svc.AddItem(ctx, invoice.ID, ItemInput{
		MaterialName: "liner", Quantity: 1, UnitPrice: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if !updated.Subtotal.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("subtotal = %s, want 35", updated.Subtotal)
	}
	if !updated.Tax.Equal(decimal.NewFromFloat(5.25)) {
		t.Fatalf("tax = %s, want 5.25", updated.Tax)
	}
	if !updated.TotalAmount.Equal(decimal.NewFromFloat(40.25)) {
		t.Fatalf("total = %s, want 40.25", updated.TotalAmount)
	}
}

func TestUpdateAndDeleteItemKeepTotalsConsistent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.completedOrder(t)

	invoice, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: order.ID,
		Items: []ItemInput{
			{MaterialName: "kraft", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{MaterialName: "duplex", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	full, err := f.svc.Get(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	var kraftItem models.InvoiceItem
	for _, item := range full.Items {
		if item.MaterialName == "kraft" {
			kraftItem = item
		}
	}

	qty := 4
	updated, err := f.svc.UpdateItem(ctx, invoice.ID, kraftItem.ID, UpdateItemInput{Quantity: &qty})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	// 4x10 + 1x5 = 45; tax 6.75; total 51.75.
	if !updated.Subtotal.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("subtotal = %s, want 45", updated.Subtotal)
	}
	if !updated.TotalAmount.Equal(decimal.NewFromFloat(51.75)) {
		t.Fatalf("total = %s, want 51.75", updated.TotalAmount)
	}

	after, err := f.svc.DeleteItem(ctx, invoice.ID, kraftItem.ID)
	if err != nil {
		t.Fatalf("delete item: %v", err)
	}
	// 1x5 = 5; tax 0.75; total 5.75.
	if !after.Subtotal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("subtotal = %s, want 5", after.Subtotal)
	}
	if !after.TotalAmount.Equal(decimal.NewFromFloat(5.75)) {
		t.Fatalf("total = %s, want 5.75", after.TotalAmount)
	}

	sum := decimal.Zero
	for _, item := range after.Items {
		sum = sum.Add(item.TotalPrice)
	}
	if !sum.Equal(after.Subtotal) {
		t.Fatalf("subtotal %s drifted from item sum %s", after.Subtotal, sum)
	}
}

func TestDiscountAndCuttingFeeInTaxBase(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order := f.completedOrder(t)

	invoice, err := f.svc.Create(context.Background(), uuid.New(), CreateInput{
		OrderID:    order.ID,
		Items:      []ItemInput{{MaterialName: "kraft", Quantity: 10, UnitPrice: decimal.NewFromInt(10)}},
		Discount:   decimal.NewFromInt(20),
		CuttingFee: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// base = 100 - 20 + 40 = 120; tax 18; total 138.
	if !invoice.Tax.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("tax = %s, want 18", invoice.Tax)
	}
	if !invoice.TotalAmount.Equal(decimal.NewFromInt(138)) {
		t.Fatalf("total = %s, want 138", invoice.TotalAmount)
	}
}

func TestReplaceItemsRewritesLines(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.completedOrder(t)

	invoice, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: order.ID,
		Items:   []ItemInput{{MaterialName: "old line", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	replaced, err := f.svc.ReplaceItems(ctx, invoice.ID, []ItemInput{
		{MaterialName: "new a", Quantity: 2, UnitPrice: decimal.NewFromInt(3)},
		{MaterialName: "new b", Quantity: 1, UnitPrice: decimal.NewFromInt(4)},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(replaced.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(replaced.Items))
	}
	if !replaced.Subtotal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("subtotal = %s, want 10", replaced.Subtotal)
	}
	for _, item := range replaced.Items {
		if item.MaterialName == "old line" {
			t.Fatal("old line should be gone")
		}
	}
}

func TestSetStatusStampsTimestamps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.completedOrder(t)
	actor := uuid.New()

	invoice, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: order.ID,
		Items:   []ItemInput{{MaterialName: "x", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := f.svc.SetStatus(ctx, actor, invoice.ID, enums.InvoiceStatusApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ApprovedAt == nil || approved.ApprovedBy == nil || *approved.ApprovedBy != actor {
		t.Fatal("expected approval stamp")
	}

	// Paying without approval first is allowed.
	paid, err := f.svc.SetStatus(ctx, actor, invoice.ID, enums.InvoiceStatusPaid)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.PaidAt == nil {
		t.Fatal("expected paid stamp")
	}

	_, err = f.svc.SetStatus(ctx, actor, invoice.ID, enums.InvoiceStatus("refunded"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("code = %v, want validation for unknown status", err)
	}
}

func TestStatsAggregatesBillingBook(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first := f.completedOrder(t)
	second := f.completedOrder(t)

	one, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: first.ID,
		Items:   []ItemInput{{MaterialName: "a", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, uuid.New(), one.ID, enums.InvoiceStatusPaid); err != nil {
		t.Fatalf("pay first: %v", err)
	}
	if _, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: second.ID,
		Items:   []ItemInput{{MaterialName: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(50)}},
	}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Paid != 1 || stats.Draft != 1 {
		t.Fatalf("stats = %+v, want 2 total, 1 paid, 1 draft", stats)
	}
	if !stats.PaidRevenue.Equal(decimal.NewFromInt(115)) {
		t.Fatalf("paid revenue = %s, want 115", stats.PaidRevenue)
	}
}

func TestDeleteRemovesInvoiceAndItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.completedOrder(t)

	invoice, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: order.ID,
		Items:   []ItemInput{{MaterialName: "kraft", Quantity: 5, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := f.svc.Delete(ctx, invoice.ID); err != nil {
		t.Fatalf("delete invoice: %v", err)
	}

	if _, err := f.svc.Get(ctx, invoice.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	var itemCount int64
	if err := f.conn.Model(&models.InvoiceItem{}).Where("invoice_id = ?", invoice.ID).Count(&itemCount).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != 0 {
		t.Fatalf("items = %d, want 0", itemCount)
	}
}

func TestDeleteRefusesPaidInvoice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.completedOrder(t)

	invoice, err := f.svc.Create(ctx, uuid.New(), CreateInput{
		OrderID: order.ID,
		Items:   []ItemInput{{MaterialName: "kraft", Quantity: 5, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, uuid.New(), invoice.ID, enums.InvoiceStatusPaid); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	err = f.svc.Delete(ctx, invoice.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
