package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paperhouse/warehouse-backend/api/controllers"
	"github.com/paperhouse/warehouse-backend/api/middleware"
	"github.com/paperhouse/warehouse-backend/internal/auth"
	"github.com/paperhouse/warehouse-backend/internal/counts"
	"github.com/paperhouse/warehouse-backend/internal/invoices"
	"github.com/paperhouse/warehouse-backend/internal/maintenance"
	"github.com/paperhouse/warehouse-backend/internal/materials"
	"github.com/paperhouse/warehouse-backend/internal/notifications"
	"github.com/paperhouse/warehouse-backend/internal/orders"
	"github.com/paperhouse/warehouse-backend/internal/users"
	"github.com/paperhouse/warehouse-backend/internal/warehouses"
	"github.com/paperhouse/warehouse-backend/pkg/authz"
	"github.com/paperhouse/warehouse-backend/pkg/config"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
	pkgredis "github.com/paperhouse/warehouse-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    controllers.Pinger
	RedisClient *pkgredis.Client

	Auth          auth.Service
	Users         users.Service
	Warehouses    warehouses.Service
	Materials     materials.Service
	Counts        counts.Service
	Orders        orders.Service
	Invoices      invoices.Service
	Notifications notifications.Service
	Maintenance   maintenance.Service
}

// NewRouter assembles the HTTP surface: public health and login, then the
// JWT-gated v1 API with capability checks per route.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DBPinger,
			"redis":    redisPinger(deps.RedisClient),
		}))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", controllers.AuthLogin(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			if deps.RedisClient != nil {
				r.Use(middleware.Idempotency(deps.RedisClient, cfg.Eventing.IdempotencyTTL, logg))
			}

			r.Route("/users", func(r chi.Router) {
				r.With(manage(authz.CapUsersManage, logg)).Get("/", controllers.UserList(deps.Users, logg))
				r.With(manage(authz.CapUsersManage, logg)).Post("/", controllers.UserCreate(deps.Users, logg))
				r.With(manage(authz.CapUsersManage, logg)).Get("/{userId}", controllers.UserDetail(deps.Users, logg))
				r.With(manage(authz.CapUsersManage, logg)).Put("/{userId}", controllers.UserUpdate(deps.Users, logg))
				r.With(manage(authz.CapUsersManage, logg)).Delete("/{userId}", controllers.UserDeactivate(deps.Users, logg))
				r.With(manage(authz.CapUsersManage, logg)).Post("/{userId}/reset-password", controllers.UserResetPassword(deps.Users, logg))
				r.Put("/{userId}/password", controllers.UserChangePassword(deps.Users, logg))
			})

			r.Route("/warehouses", func(r chi.Router) {
				r.Get("/", controllers.WarehouseList(deps.Warehouses, logg))
				r.With(manage(authz.CapWarehousesManage, logg)).Post("/", controllers.WarehouseCreate(deps.Warehouses, logg))
				r.With(manage(authz.CapStockMove, logg)).Post("/transfer", controllers.WarehouseTransfer(deps.Warehouses, logg))
				r.Get("/{warehouseId}", controllers.WarehouseDetail(deps.Warehouses, logg))
				r.With(manage(authz.CapWarehousesManage, logg)).Put("/{warehouseId}", controllers.WarehouseUpdate(deps.Warehouses, logg))
				r.With(manage(authz.CapWarehousesManage, logg)).Delete("/{warehouseId}", controllers.WarehouseDeactivate(deps.Warehouses, logg))
				r.Get("/{warehouseId}/utilization", controllers.WarehouseUtilization(deps.Warehouses, logg))
			})

			r.Route("/materials", func(r chi.Router) {
				r.With(manage(authz.CapMaterialsView, logg)).Get("/", controllers.MaterialList(deps.Materials, logg))
				r.With(manage(authz.CapMaterialsManage, logg)).Post("/", controllers.MaterialCreate(deps.Materials, logg))
				r.With(manage(authz.CapMaterialsView, logg)).Get("/alerts/low-stock", controllers.MaterialLowStock(deps.Materials, logg))
				r.With(manage(authz.CapStatsView, logg)).Get("/stats/summary", controllers.MaterialStats(deps.Materials, logg))
				r.With(manage(authz.CapMaterialsView, logg)).Get("/{materialId}", controllers.MaterialDetail(deps.Materials, logg))
				r.With(manage(authz.CapMaterialsManage, logg)).Put("/{materialId}", controllers.MaterialUpdate(deps.Materials, logg))
				r.With(manage(authz.CapMaterialsManage, logg)).Patch("/{materialId}/status", controllers.MaterialSetStatus(deps.Materials, logg))
				r.With(manage(authz.CapMaterialsManage, logg)).Delete("/{materialId}", controllers.MaterialDelete(deps.Materials, logg))
				r.With(manage(authz.CapStockMove, logg)).Post("/{materialId}/reserve", controllers.MaterialReserve(deps.Materials, logg))
				r.With(manage(authz.CapStockMove, logg)).Post("/{materialId}/release", controllers.MaterialRelease(deps.Materials, logg))
				r.With(manage(authz.CapMaterialsView, logg)).Get("/{materialId}/movements", controllers.MaterialMovements(deps.Materials, logg))
			})

			r.Route("/inventory", func(r chi.Router) {
				r.With(manage(authz.CapCountsRecord, logg)).Post("/count", controllers.CountRecord(deps.Counts, logg))
				r.Get("/counts", controllers.CountList(deps.Counts, logg))
				r.With(manage(authz.CapCountsApprove, logg)).Put("/counts/{countId}/approve", controllers.CountApprove(deps.Counts, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(manage(authz.CapOrdersView, logg)).Get("/", controllers.OrderList(deps.Orders, logg))
				r.With(manage(authz.CapOrdersManage, logg)).Post("/", controllers.OrderCreate(deps.Orders, logg))
				r.With(manage(authz.CapStatsView, logg)).Get("/stats/summary", controllers.OrderStats(deps.Orders, logg))
				r.With(manage(authz.CapOrdersView, logg)).Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
				r.With(manage(authz.CapOrdersManage, logg)).Patch("/{orderId}/status", controllers.OrderSetStatus(deps.Orders, logg))
				r.With(manage(authz.CapOrdersManage, logg)).Delete("/{orderId}", controllers.OrderDelete(deps.Orders, logg))
			})

			r.Route("/invoices", func(r chi.Router) {
				r.With(manage(authz.CapInvoicesView, logg)).Get("/", controllers.InvoiceList(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesManage, logg)).Post("/", controllers.InvoiceCreate(deps.Invoices, logg))
				r.With(manage(authz.CapStatsView, logg)).Get("/stats/summary", controllers.InvoiceStats(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesView, logg)).Get("/{invoiceId}", controllers.InvoiceDetail(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesManage, logg)).Put("/{invoiceId}", controllers.InvoiceReplaceItems(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesManage, logg)).Patch("/{invoiceId}/status", controllers.InvoiceSetStatus(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesApprove, logg)).Put("/{invoiceId}/approve", controllers.InvoiceApprove(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesApprove, logg)).Put("/{invoiceId}/pay", controllers.InvoicePay(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesManage, logg)).Delete("/{invoiceId}", controllers.InvoiceDelete(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesManage, logg)).Post("/{invoiceId}/items", controllers.InvoiceAddItem(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesManage, logg)).Put("/{invoiceId}/items/{itemId}", controllers.InvoiceUpdateItem(deps.Invoices, logg))
				r.With(manage(authz.CapInvoicesManage, logg)).Delete("/{invoiceId}/items/{itemId}", controllers.InvoiceDeleteItem(deps.Invoices, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Get("/unread-count", controllers.NotificationUnreadCount(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			})

			r.Route("/maintenance", func(r chi.Router) {
				r.Get("/", controllers.MaintenanceList(deps.Maintenance, logg))
				r.With(manage(authz.CapMaintenanceRequest, logg)).Post("/", controllers.MaintenanceCreate(deps.Maintenance, logg))
				r.Get("/{requestId}", controllers.MaintenanceDetail(deps.Maintenance, logg))
				r.With(manage(authz.CapMaintenanceManage, logg)).Put("/{requestId}", controllers.MaintenanceUpdate(deps.Maintenance, logg))
				r.With(manage(authz.CapMaintenanceManage, logg)).Put("/{requestId}/status", controllers.MaintenanceSetStatus(deps.Maintenance, logg))
				r.With(manage(authz.CapMaintenanceManage, logg)).Put("/{requestId}/assign", controllers.MaintenanceAssign(deps.Maintenance, logg))
			})
		})
	})

	return r
}

func manage(cap authz.Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return middleware.RequireCapability(cap, logg)
}

func redisPinger(client *pkgredis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}
