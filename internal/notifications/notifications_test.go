package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Notification{}, &models.User{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedNotification(t *testing.T, conn *gorm.DB, userID uuid.UUID, title string) *models.Notification {
	t.Helper()
	row := &models.Notification{
		UserID:   userID,
		Title:    title,
		Message:  "test message",
		Type:     enums.NotificationTypeNewOrder,
		Priority: enums.NotificationPriorityMedium,
	}
	if err := conn.Create(row).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return row
}

func seedUser(t *testing.T, conn *gorm.DB, role enums.UserRole, active bool) *models.User {
	t.Helper()
	user := &models.User{
		Username:     "user_" + uuid.NewString()[:8],
		PasswordHash: "x",
		Name:         "Test User",
		Role:         role,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	// gorm's Create skips zero values for defaulted columns, so flip the
	// flag in a second statement like the deactivate path does.
	if !active {
		if err := conn.Model(user).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate seeded user: %v", err)
		}
		user.IsActive = false
	}
	return user
}

func TestInboxListAndRead(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	userID := uuid.New()
	otherID := uuid.New()

	first := seedNotification(t, conn, userID, "first")
	seedNotification(t, conn, userID, "second")
	seedNotification(t, conn, otherID, "not yours")

	result, err := svc.List(ctx, userID, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.Items))
	}

	count, err := svc.UnreadCount(ctx, userID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Fatalf("unread = %d, want 2", count)
	}

	if err := svc.MarkRead(ctx, userID, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err = svc.UnreadCount(ctx, userID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Fatalf("unread = %d, want 1 after read", count)
	}

	unread, err := svc.List(ctx, userID, ListParams{UnreadOnly: true})
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread.Items) != 1 || unread.Items[0].Title != "second" {
		t.Fatalf("unread items = %+v, want only second", unread.Items)
	}

	// Reading twice or reading someone else's row fails the same way.
	err = svc.MarkRead(ctx, userID, first.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("code = %v, want not found", err)
	}
	err = svc.MarkRead(ctx, otherID, first.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("code = %v, want not found for foreign row", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	userID := uuid.New()
	seedNotification(t, conn, userID, "a")
	seedNotification(t, conn, userID, "b")

	affected, err := svc.MarkAllRead(ctx, userID)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if affected != 2 {
		t.Fatalf("affected = %d, want 2", affected)
	}
	count, err := svc.UnreadCount(ctx, userID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Fatalf("unread = %d, want 0", count)
	}
}

func emitEvent(t *testing.T, conn *gorm.DB, event outbox.DomainEvent) {
	t.Helper()
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	})
	if err != nil {
		t.Fatalf("emit event: %v", err)
	}
}

func TestConsumerFansOutByCapability(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	admin := seedUser(t, conn, enums.UserRoleAdmin, true)
	keeper := seedUser(t, conn, enums.UserRoleWarehouseKeeper, true)
	seedUser(t, conn, enums.UserRoleAccountant, true)
	seedUser(t, conn, enums.UserRoleManager, false)

	consumer, err := NewConsumer(NewRepository(conn), &dbUserLister{conn: conn}, nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	materialID := uuid.New()
	emitEvent(t, conn, outbox.DomainEvent{
		EventType:     enums.EventLowStock,
		AggregateType: enums.AggregateMaterial,
		AggregateID:   materialID,
		Actor:         &outbox.ActorRef{UserID: keeper.ID},
		Data:          map[string]any{"material_id": materialID},
	})

	var event models.OutboxEvent
	if err := conn.First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// Low stock reaches roles that manage materials: admin, manager and
	// keeper. The inactive manager is skipped and so is the acting keeper.
	var rows []models.Notification
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("notifications = %d, want only the admin's", len(rows))
	}
	if rows[0].UserID != admin.ID {
		t.Fatal("notification should go to the admin")
	}
	if rows[0].Type != enums.NotificationTypeLowStock {
		t.Fatalf("type = %s, want low_stock", rows[0].Type)
	}
	if rows[0].RelatedID == nil || *rows[0].RelatedID != materialID {
		t.Fatal("notification should reference the material")
	}
}

func TestConsumerIgnoresUnmappedEvents(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	seedUser(t, conn, enums.UserRoleAdmin, true)
	consumer, err := NewConsumer(NewRepository(conn), &dbUserLister{conn: conn}, nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	emitEvent(t, conn, outbox.DomainEvent{
		EventType:     enums.EventOrderDeleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          map[string]any{},
	})
	var event models.OutboxEvent
	if err := conn.First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var count int64
	if err := conn.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 0 {
		t.Fatalf("notifications = %d, want 0", count)
	}
}

func TestDrainDeliversAndMarksPublished(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	admin := seedUser(t, conn, enums.UserRoleAdmin, true)
	consumer, err := NewConsumer(NewRepository(conn), &dbUserLister{conn: conn}, nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	repo := outbox.NewRepository(conn)
	drainer, err := outbox.NewDrainer(repo, nil, nil, outbox.DrainerOptions{
		BatchSize: 10,
		Interval:  time.Millisecond,
	}, consumer)
	if err != nil {
		t.Fatalf("new drainer: %v", err)
	}

	emitEvent(t, conn, outbox.DomainEvent{
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Data:          map[string]any{"total": "115"},
	})

	published, err := drainer.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}

	var event models.OutboxEvent
	if err := conn.First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.PublishedAt == nil {
		t.Fatal("event should be marked published")
	}

	var rows []models.Notification
	if err := conn.Where("user_id = ?", admin.ID).Find(&rows).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("notifications = %d, want 1", len(rows))
	}

	// A second pass finds nothing to deliver.
	published, err = drainer.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if published != 0 {
		t.Fatalf("published = %d, want 0 on second pass", published)
	}
}

type dbUserLister struct {
	conn *gorm.DB
}

func (l *dbUserLister) ListActiveByRoles(ctx context.Context, roles []enums.UserRole) ([]models.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	var rows []models.User
	err := l.conn.WithContext(ctx).
		Where("role IN ? AND is_active = ?", roles, true).
		Find(&rows).Error
	return rows, err
}
