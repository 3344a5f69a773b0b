package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Material{}, &models.StockMovement{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedMaterial(t *testing.T, db *gorm.DB, warehouseID uuid.UUID, name string, qty int) *models.Material {
	t.Helper()
	material := &models.Material{
		Name:        name,
		Weight:      decimal.NewFromInt(100),
		Quantity:    qty,
		WarehouseID: warehouseID,
		Cost:        decimal.NewFromInt(500),
		Status:      enums.MaterialStatusAvailable,
	}
	if err := db.Create(material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}
	return material
}

func movementCount(t *testing.T, db *gorm.DB, materialID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.StockMovement{}).Where("material_id = ?", materialID).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	return count
}

func TestReserveDecrementsAndFlipsStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	warehouseID := uuid.New()
	actor := uuid.New()
	material := seedMaterial(t, db, warehouseID, "kraft 120", 10)
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, ReserveInput{
			MaterialID: material.ID,
			Qty:        4,
			ActorID:    actor,
			Ref:        OrderRef(uuid.New()),
		})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity != 6 {
		t.Fatalf("expected quantity 6, got %d", got.Quantity)
	}
	if got.Status != enums.MaterialStatusReserved {
		t.Fatalf("expected reserved status, got %s", got.Status)
	}

	var movement models.StockMovement
	if err := db.First(&movement, "material_id = ?", material.ID).Error; err != nil {
		t.Fatalf("load movement: %v", err)
	}
	if movement.MovementType != enums.MovementTypeOut {
		t.Fatalf("expected out movement, got %s", movement.MovementType)
	}
	if movement.Quantity != 4 {
		t.Fatalf("expected movement quantity 4, got %d", movement.Quantity)
	}
	if movement.ReferenceType != enums.MovementRefOrder {
		t.Fatalf("expected order reference, got %s", movement.ReferenceType)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "kraft 120", 3)
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, ReserveInput{
			MaterialID: material.ID,
			Qty:        5,
			ActorID:    uuid.New(),
			Ref:        OrderRef(uuid.New()),
		})
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity != 3 || got.Status != enums.MaterialStatusAvailable {
		t.Fatalf("failed reserve must not mutate the row: %+v", got)
	}
	if n := movementCount(t, db, material.ID); n != 0 {
		t.Fatalf("failed reserve must not write movements, got %d", n)
	}
}

func TestReserveRejectsUnavailableMaterial(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "kraft 120", 10)
	if err := db.Model(material).Update("status", enums.MaterialStatusDamaged).Error; err != nil {
		t.Fatalf("mark damaged: %v", err)
	}
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, ReserveInput{
			MaterialID: material.ID,
			Qty:        1,
			ActorID:    uuid.New(),
			Ref:        OrderRef(uuid.New()),
		})
	})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "contended", 10)
	led := New(nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			errs[slot] = db.Transaction(func(tx *gorm.DB) error {
				return led.Reserve(ctx, tx, ReserveInput{
					MaterialID: material.ID,
					Qty:        3,
					ActorID:    uuid.New(),
					Ref:        OrderRef(uuid.New()),
				})
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	// 10 units, 3 per reservation: at most 1 success (the first flips the row
	// to reserved, locking out the rest) and never enough to go negative.
	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity < 0 {
		t.Fatalf("quantity went negative: %d", got.Quantity)
	}
	if got.Quantity != 10-succeeded*3 {
		t.Fatalf("quantity %d does not match %d successful reserves", got.Quantity, succeeded)
	}
	if n := movementCount(t, db, material.ID); n != int64(succeeded) {
		t.Fatalf("expected %d movements, got %d", succeeded, n)
	}
}

func TestReleaseRestoresQuantityAndStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "kraft 120", 10)
	led := New(nil)
	orderID := uuid.New()
	actor := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, ReserveInput{MaterialID: material.ID, Qty: 7, ActorID: actor, Ref: OrderRef(orderID)})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return led.Release(ctx, tx, ReleaseInput{MaterialID: material.ID, Qty: 7, ActorID: actor, Ref: OrderRef(orderID)})
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity != 10 {
		t.Fatalf("expected quantity restored to 10, got %d", got.Quantity)
	}
	if got.Status != enums.MaterialStatusAvailable {
		t.Fatalf("expected available status, got %s", got.Status)
	}
	if n := movementCount(t, db, material.ID); n != 2 {
		t.Fatalf("expected 2 movements (out + in), got %d", n)
	}
}

func TestReleaseHoldKeepsQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "kraft 120", 10)
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, ReserveInput{MaterialID: material.ID, Qty: 10, ActorID: uuid.New(), Ref: OrderRef(uuid.New())})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return led.ReleaseHold(ctx, tx, material.ID)
	})
	if err != nil {
		t.Fatalf("release hold: %v", err)
	}

	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity != 0 {
		t.Fatalf("hold release must not restore quantity, got %d", got.Quantity)
	}
	if got.Status != enums.MaterialStatusAvailable {
		t.Fatalf("expected available status, got %s", got.Status)
	}
	// only the reserve movement exists; completion is not a quantity change
	if n := movementCount(t, db, material.ID); n != 1 {
		t.Fatalf("expected 1 movement, got %d", n)
	}
}

func TestAdjustWritesVarianceMovement(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "kraft 120", 10)
	led := New(nil)
	countID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Adjust(ctx, tx, AdjustInput{
			MaterialID: material.ID,
			CountedQty: 7,
			ActorID:    uuid.New(),
			Ref:        CountRef(countID),
		})
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity != 7 {
		t.Fatalf("expected counted quantity applied, got %d", got.Quantity)
	}

	var movement models.StockMovement
	if err := db.First(&movement, "material_id = ?", material.ID).Error; err != nil {
		t.Fatalf("load movement: %v", err)
	}
	if movement.MovementType != enums.MovementTypeAdjustment {
		t.Fatalf("expected adjustment movement, got %s", movement.MovementType)
	}
	if movement.Quantity != 3 {
		t.Fatalf("expected movement to carry |variance| 3, got %d", movement.Quantity)
	}
	if movement.ReferenceID == nil || *movement.ReferenceID != countID {
		t.Fatal("expected count reference on movement")
	}
}

func TestAdjustNoVarianceIsNoop(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "kraft 120", 10)
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Adjust(ctx, tx, AdjustInput{
			MaterialID: material.ID,
			CountedQty: 10,
			ActorID:    uuid.New(),
			Ref:        CountRef(uuid.New()),
		})
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if n := movementCount(t, db, material.ID); n != 0 {
		t.Fatalf("zero variance must not write movements, got %d", n)
	}
}

func TestTransferMovesStockBetweenWarehouses(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	fromWH := uuid.New()
	toWH := uuid.New()
	material := seedMaterial(t, db, fromWH, "kraft 120", 10)
	led := New(nil)

	var result *TransferResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var terr error
		result, terr = led.Transfer(ctx, tx, TransferInput{
			MaterialID:      material.ID,
			FromWarehouseID: fromWH,
			ToWarehouseID:   toWH,
			Qty:             4,
			ActorID:         uuid.New(),
		})
		return terr
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if result.Source.Quantity != 6 {
		t.Fatalf("expected source quantity 6, got %d", result.Source.Quantity)
	}
	if result.Destination.WarehouseID != toWH {
		t.Fatalf("destination created in wrong warehouse")
	}
	if result.Destination.Quantity != 4 {
		t.Fatalf("expected destination quantity 4, got %d", result.Destination.Quantity)
	}
	if result.Destination.Name != material.Name {
		t.Fatalf("destination must keep the material name")
	}

	var movements []models.StockMovement
	if err := db.Where("reference_id = ?", result.TransferID).Order("movement_type").Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected paired movements, got %d", len(movements))
	}
	types := map[enums.MovementType]bool{}
	for _, m := range movements {
		types[m.MovementType] = true
		if m.Quantity != 4 {
			t.Fatalf("expected movement quantity 4, got %d", m.Quantity)
		}
	}
	if !types[enums.MovementTypeTransferOut] || !types[enums.MovementTypeTransferIn] {
		t.Fatalf("expected transfer_out and transfer_in, got %v", types)
	}
}

func TestTransferIntoExistingRowIncrements(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	fromWH := uuid.New()
	toWH := uuid.New()
	source := seedMaterial(t, db, fromWH, "kraft 120", 10)
	existing := seedMaterial(t, db, toWH, "kraft 120", 2)
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := led.Transfer(ctx, tx, TransferInput{
			MaterialID:      source.ID,
			FromWarehouseID: fromWH,
			ToWarehouseID:   toWH,
			Qty:             5,
			ActorID:         uuid.New(),
		})
		return terr
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	var got models.Material
	if err := db.First(&got, "id = ?", existing.ID).Error; err != nil {
		t.Fatalf("reload destination: %v", err)
	}
	if got.Quantity != 7 {
		t.Fatalf("expected destination incremented to 7, got %d", got.Quantity)
	}

	var count int64
	if err := db.Model(&models.Material{}).Where("name = ? AND warehouse_id = ?", "kraft 120", toWH).Count(&count).Error; err != nil {
		t.Fatalf("count destination rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("transfer must not duplicate destination rows, got %d", count)
	}
}

func TestTransferSourceMissing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := led.Transfer(ctx, tx, TransferInput{
			MaterialID:      uuid.New(),
			FromWarehouseID: uuid.New(),
			ToWarehouseID:   uuid.New(),
			Qty:             1,
			ActorID:         uuid.New(),
		})
		return terr
	})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransferInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	fromWH := uuid.New()
	material := seedMaterial(t, db, fromWH, "kraft 120", 3)
	led := New(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := led.Transfer(ctx, tx, TransferInput{
			MaterialID:      material.ID,
			FromWarehouseID: fromWH,
			ToWarehouseID:   uuid.New(),
			Qty:             5,
			ActorID:         uuid.New(),
		})
		return terr
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity != 3 {
		t.Fatalf("failed transfer must roll back, got quantity %d", got.Quantity)
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	material := seedMaterial(t, db, uuid.New(), "kraft 120", 20)
	led := New(nil)
	actor := uuid.New()
	orderID := uuid.New()

	steps := []func(tx *gorm.DB) error{
		func(tx *gorm.DB) error {
			return led.Reserve(ctx, tx, ReserveInput{MaterialID: material.ID, Qty: 5, ActorID: actor, Ref: OrderRef(orderID)})
		},
		func(tx *gorm.DB) error {
			return led.Release(ctx, tx, ReleaseInput{MaterialID: material.ID, Qty: 5, ActorID: actor, Ref: OrderRef(orderID)})
		},
		func(tx *gorm.DB) error {
			return led.Reserve(ctx, tx, ReserveInput{MaterialID: material.ID, Qty: 8, ActorID: actor, Ref: OrderRef(orderID)})
		},
		func(tx *gorm.DB) error {
			return led.Adjust(ctx, tx, AdjustInput{MaterialID: material.ID, CountedQty: 15, ActorID: actor, Ref: CountRef(uuid.New())})
		},
	}
	for i, step := range steps {
		if err := db.Transaction(step); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// 20 - 5 + 5 - 8 = 12, then count fixes to 15.
	var got models.Material
	if err := db.First(&got, "id = ?", material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if got.Quantity != 15 {
		t.Fatalf("expected final quantity 15, got %d", got.Quantity)
	}
	if n := movementCount(t, db, material.ID); n != 4 {
		t.Fatalf("expected one movement per quantity-changing call, got %d", n)
	}
}
