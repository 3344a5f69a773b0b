package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.OutboxEvent{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func TestEmitStoresEnvelope(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	orderID := uuid.New()
	actorID := uuid.New()

	tx := conn.Begin()
	err := svc.Emit(context.Background(), tx, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &ActorRef{UserID: actorID, Role: "manager"},
		Data:          map[string]any{"order_number": "ORD-1"},
	})
	if err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("FetchUnpublished failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rows))
	}

	row := rows[0]
	if row.EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected event type %s", row.EventType)
	}
	if row.AggregateID != orderID {
		t.Fatalf("unexpected aggregate id %s", row.AggregateID)
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("payload is not an envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("expected default version 1, got %d", envelope.Version)
	}
	if envelope.EventID == "" {
		t.Fatal("expected generated event id")
	}
	if envelope.Actor == nil || envelope.Actor.UserID != actorID {
		t.Fatal("actor not preserved")
	}

	var data map[string]any
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("cannot decode event data: %v", err)
	}
	if data["order_number"] != "ORD-1" {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	if err := svc.Emit(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatal("expected error when tx is nil")
	}
}

func TestMarkPublishedAndFailed(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	tx := conn.Begin()
	if err := svc.Emit(context.Background(), tx, DomainEvent{
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Data:          map[string]any{},
	}); err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected 1 unpublished event, got %d (err %v)", len(rows), err)
	}
	id := rows[0].ID

	if err := repo.MarkFailed(id, errors.New("consumer down")); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	var row models.OutboxEvent
	if err := conn.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if row.AttemptCount != 1 || row.LastError == nil {
		t.Fatalf("expected failure bookkeeping, got attempts=%d lastErr=%v", row.AttemptCount, row.LastError)
	}

	if err := repo.MarkPublished(id); err != nil {
		t.Fatalf("MarkPublished returned error: %v", err)
	}
	rows, err = repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("FetchUnpublished failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("published event should not be fetched again, got %d", len(rows))
	}
}
