package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paperhouse/warehouse-backend/internal/auth"
	"github.com/paperhouse/warehouse-backend/internal/counts"
	"github.com/paperhouse/warehouse-backend/internal/invoices"
	"github.com/paperhouse/warehouse-backend/internal/ledger"
	"github.com/paperhouse/warehouse-backend/internal/maintenance"
	"github.com/paperhouse/warehouse-backend/internal/materials"
	"github.com/paperhouse/warehouse-backend/internal/notifications"
	"github.com/paperhouse/warehouse-backend/internal/orders"
	"github.com/paperhouse/warehouse-backend/internal/users"
	"github.com/paperhouse/warehouse-backend/internal/warehouses"
	pkgauth "github.com/paperhouse/warehouse-backend/pkg/auth"
	"github.com/paperhouse/warehouse-backend/pkg/config"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, username, password string) (*auth.LoginResult, error) {
	return nil, nil
}

type stubUsersService struct{}

func (stubUsersService) Create(ctx context.Context, input users.CreateInput) (*models.User, error) {
	panic("unimplemented")
}

func (stubUsersService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	panic("unimplemented")
}

func (stubUsersService) List(ctx context.Context, activeOnly bool) ([]models.User, error) {
	return []models.User{}, nil
}

func (stubUsersService) Update(ctx context.Context, id uuid.UUID, input users.UpdateInput) (*models.User, error) {
	panic("unimplemented")
}

func (stubUsersService) Deactivate(ctx context.Context, id uuid.UUID) error {
	panic("unimplemented")
}

func (stubUsersService) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	panic("unimplemented")
}

func (stubUsersService) ResetPassword(ctx context.Context, id uuid.UUID) (string, error) {
	panic("unimplemented")
}

type stubWarehousesService struct{}

func (stubWarehousesService) Create(ctx context.Context, input warehouses.CreateInput) (*models.Warehouse, error) {
	panic("unimplemented")
}

func (stubWarehousesService) Get(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	panic("unimplemented")
}

func (stubWarehousesService) List(ctx context.Context, activeOnly bool) ([]models.Warehouse, error) {
	return []models.Warehouse{}, nil
}

func (stubWarehousesService) Update(ctx context.Context, id uuid.UUID, input warehouses.UpdateInput) (*models.Warehouse, error) {
	panic("unimplemented")
}

func (stubWarehousesService) Deactivate(ctx context.Context, id uuid.UUID) error {
	panic("unimplemented")
}

func (stubWarehousesService) Utilization(ctx context.Context, id uuid.UUID) (*warehouses.Utilization, error) {
	panic("unimplemented")
}

func (stubWarehousesService) Transfer(ctx context.Context, actorID uuid.UUID, input warehouses.TransferInput) (*ledger.TransferResult, error) {
	panic("unimplemented")
}

type stubMaterialsService struct{}

func (stubMaterialsService) Create(ctx context.Context, actorID uuid.UUID, input materials.CreateInput) (*models.Material, error) {
	return &models.Material{}, nil
}

func (stubMaterialsService) Get(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	panic("unimplemented")
}

func (stubMaterialsService) List(ctx context.Context, params materials.ListParams) (*materials.ListResult, error) {
	return &materials.ListResult{}, nil
}

func (stubMaterialsService) Update(ctx context.Context, id uuid.UUID, input materials.UpdateInput) (*models.Material, error) {
	panic("unimplemented")
}

func (stubMaterialsService) SetStatus(ctx context.Context, id uuid.UUID, status enums.MaterialStatus) (*models.Material, error) {
	panic("unimplemented")
}

func (stubMaterialsService) Delete(ctx context.Context, id uuid.UUID) error {
	panic("unimplemented")
}

func (stubMaterialsService) Reserve(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input materials.HoldInput) (*models.Material, error) {
	panic("unimplemented")
}

func (stubMaterialsService) Release(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input materials.HoldInput) (*models.Material, error) {
	panic("unimplemented")
}

func (stubMaterialsService) Movements(ctx context.Context, params materials.MovementParams) (*materials.MovementResult, error) {
	panic("unimplemented")
}

func (stubMaterialsService) LowStock(ctx context.Context, threshold int) ([]models.Material, error) {
	panic("unimplemented")
}

func (stubMaterialsService) Stats(ctx context.Context) (*materials.Stats, error) {
	panic("unimplemented")
}

type stubCountsService struct{}

func (stubCountsService) Record(ctx context.Context, actorID uuid.UUID, input counts.RecordInput) (*models.InventoryCount, error) {
	panic("unimplemented")
}

func (stubCountsService) Get(ctx context.Context, id uuid.UUID) (*models.InventoryCount, error) {
	panic("unimplemented")
}

func (stubCountsService) List(ctx context.Context, params counts.ListParams) (*counts.ListResult, error) {
	return &counts.ListResult{}, nil
}

func (stubCountsService) Approve(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.InventoryCount, error) {
	return &models.InventoryCount{}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, actorID uuid.UUID, input orders.CreateInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) List(ctx context.Context, params orders.ListParams) (*orders.ListResult, error) {
	return &orders.ListResult{}, nil
}

func (stubOrdersService) SetStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	panic("unimplemented")
}

func (stubOrdersService) Stats(ctx context.Context) (*orders.Stats, error) {
	panic("unimplemented")
}

type stubInvoicesService struct{}

func (stubInvoicesService) Create(ctx context.Context, actorID uuid.UUID, input invoices.CreateInput) (*models.Invoice, error) {
	panic("unimplemented")
}

func (stubInvoicesService) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	panic("unimplemented")
}

func (stubInvoicesService) List(ctx context.Context, params invoices.ListParams) (*invoices.ListResult, error) {
	return &invoices.ListResult{}, nil
}

func (stubInvoicesService) ReplaceItems(ctx context.Context, id uuid.UUID, items []invoices.ItemInput) (*models.Invoice, error) {
	panic("unimplemented")
}

func (stubInvoicesService) AddItem(ctx context.Context, id uuid.UUID, item invoices.ItemInput) (*models.Invoice, error) {
	panic("unimplemented")
}

func (stubInvoicesService) UpdateItem(ctx context.Context, id, itemID uuid.UUID, input invoices.UpdateItemInput) (*models.Invoice, error) {
	panic("unimplemented")
}

func (stubInvoicesService) DeleteItem(ctx context.Context, id, itemID uuid.UUID) (*models.Invoice, error) {
	panic("unimplemented")
}

func (stubInvoicesService) SetStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status enums.InvoiceStatus) (*models.Invoice, error) {
	return &models.Invoice{}, nil
}

func (stubInvoicesService) Delete(ctx context.Context, id uuid.UUID) error {
	panic("unimplemented")
}

func (stubInvoicesService) Stats(ctx context.Context) (*invoices.Stats, error) {
	panic("unimplemented")
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, userID uuid.UUID, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubMaintenanceService struct{}

func (stubMaintenanceService) Create(ctx context.Context, actorID uuid.UUID, input maintenance.CreateInput) (*models.MaintenanceRequest, error) {
	panic("unimplemented")
}

func (stubMaintenanceService) Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	panic("unimplemented")
}

func (stubMaintenanceService) List(ctx context.Context, params maintenance.ListParams) (*maintenance.ListResult, error) {
	return &maintenance.ListResult{}, nil
}

func (stubMaintenanceService) Update(ctx context.Context, id uuid.UUID, input maintenance.UpdateInput) (*models.MaintenanceRequest, error) {
	panic("unimplemented")
}

func (stubMaintenanceService) SetStatus(ctx context.Context, id uuid.UUID, status enums.MaintenanceStatus) (*models.MaintenanceRequest, error) {
	panic("unimplemented")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		DBPinger:      stubPinger{},
		Auth:          stubAuthService{},
		Users:         stubUsersService{},
		Warehouses:    stubWarehousesService{},
		Materials:     stubMaterialsService{},
		Counts:        stubCountsService{},
		Orders:        stubOrdersService{},
		Invoices:      stubInvoicesService{},
		Notifications: stubNotificationsService{},
		Maintenance:   stubMaintenanceService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "tester",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/materials", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsGarbageToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/materials", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token got %d", resp.Code)
	}
}

func TestMaterialsListAllowsViewerRoles(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/materials", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSales))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for sales list got %d", resp.Code)
	}
}

func TestMaterialsCreateRequiresManageCapability(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	body := `{"name":"kraft 80g","weight":"120.5","quantity":10,"warehouse_id":"` + uuid.NewString() + `","cost":"500"}`

	denied := httptest.NewRequest(http.MethodPost, "/api/v1/materials", strings.NewReader(body))
	denied.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSales))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, denied)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for sales create got %d", resp.Code)
	}

	allowed := httptest.NewRequest(http.MethodPost, "/api/v1/materials", strings.NewReader(body))
	allowed.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleWarehouseKeeper))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, allowed)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for keeper create got %d", resp.Code)
	}
}

func TestCountApproveRequiresApproveCapability(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	path := "/api/v1/inventory/counts/" + uuid.NewString() + "/approve"

	keeper := httptest.NewRequest(http.MethodPut, path, nil)
	keeper.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleWarehouseKeeper))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, keeper)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for keeper approve got %d", resp.Code)
	}

	manager := httptest.NewRequest(http.MethodPut, path, nil)
	manager.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleManager))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, manager)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager approve got %d", resp.Code)
	}
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	manager := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	manager.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleManager))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, manager)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager listing users got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin listing users got %d", resp.Code)
	}
}

func TestInvoiceApproveRequiresApproveCapability(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	path := "/api/v1/invoices/" + uuid.NewString() + "/approve"

	sales := httptest.NewRequest(http.MethodPut, path, nil)
	sales.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSales))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, sales)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for sales approve got %d", resp.Code)
	}

	accountant := httptest.NewRequest(http.MethodPut, path, nil)
	accountant.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAccountant))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, accountant)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for accountant approve got %d", resp.Code)
	}
}

func TestLoginRejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{not json"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed login body got %d", resp.Code)
	}
}
