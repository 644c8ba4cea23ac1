package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oakline/cabinetry-backend/api/controllers"
	"github.com/oakline/cabinetry-backend/api/middleware"
	"github.com/oakline/cabinetry-backend/internal/audit"
	authsvc "github.com/oakline/cabinetry-backend/internal/auth"
	"github.com/oakline/cabinetry-backend/internal/inventory"
	"github.com/oakline/cabinetry-backend/internal/lots"
	"github.com/oakline/cabinetry-backend/internal/mto"
	"github.com/oakline/cabinetry-backend/internal/notifications"
	"github.com/oakline/cabinetry-backend/internal/purchaseorders"
	"github.com/oakline/cabinetry-backend/internal/reservations"
	"github.com/oakline/cabinetry-backend/internal/suppliers"
	"github.com/oakline/cabinetry-backend/pkg/auth/session"
	"github.com/oakline/cabinetry-backend/pkg/config"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	"github.com/oakline/cabinetry-backend/pkg/logger"
	"github.com/oakline/cabinetry-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles everything the router needs.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             pinger
	Redis          *redis.Client
	SessionManager *session.Manager

	AuthService          authsvc.Service
	InventoryService     inventory.Service
	SuppliersService     suppliers.Service
	LotsService          lots.Service
	MTOService           mto.Service
	ReservationsService  reservations.Service
	PurchaseOrderService purchaseorders.Service
	NotificationsService notifications.Service
	Auditor              *audit.Recorder
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.Login(deps.AuthService, logg))
		r.Post("/refresh", controllers.Refresh(deps.AuthService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
			r.Post("/logout", controllers.Logout(deps.AuthService, logg))
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
			r.Use(middleware.RequireRole(logg, string(enums.MemberRoleAdmin)))
			r.Use(middleware.Idempotency(deps.Redis, logg))
			r.Post("/register", controllers.Register(deps.AuthService, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		supervisors := middleware.RequireRole(logg,
			string(enums.MemberRoleAdmin),
			string(enums.MemberRoleManager),
		)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ListItems(deps.InventoryService, logg))
			r.Get("/{id}", controllers.GetItem(deps.InventoryService, logg))
			r.Get("/{id}/transactions", controllers.ListTransactions(deps.InventoryService, logg))
			r.Post("/{id}/adjust-stock", controllers.AdjustStock(deps.InventoryService, deps.Auditor, logg))

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Post("/", controllers.CreateItem(deps.InventoryService, logg))
				r.Put("/{id}", controllers.UpdateItem(deps.InventoryService, logg))
				r.Delete("/{id}", controllers.DeleteItem(deps.InventoryService, logg))
			})
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.ListSuppliers(deps.SuppliersService, logg))
			r.Get("/{id}", controllers.GetSupplier(deps.SuppliersService, logg))

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Post("/", controllers.CreateSupplier(deps.SuppliersService, logg))
				r.Put("/{id}", controllers.UpdateSupplier(deps.SuppliersService, logg))
				r.Delete("/{id}", controllers.DeleteSupplier(deps.SuppliersService, logg))
			})
		})

		r.Route("/lots", func(r chi.Router) {
			r.Get("/", controllers.ListLots(deps.LotsService, logg))
			r.Get("/{id}", controllers.GetLot(deps.LotsService, logg))

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Post("/", controllers.CreateLot(deps.LotsService, logg))
				r.Put("/{id}", controllers.UpdateLot(deps.LotsService, logg))
				r.Delete("/{id}", controllers.DeleteLot(deps.LotsService, logg))
			})
		})

		r.Route("/materials-to-order", func(r chi.Router) {
			r.Get("/", controllers.ListMaterialsToOrder(deps.MTOService, logg))
			r.Get("/{id}", controllers.GetMaterialsToOrder(deps.MTOService, logg))
			r.Get("/{id}/reservations", controllers.ListReservationsForMTO(deps.ReservationsService, logg))
			r.Post("/", controllers.CreateMaterialsToOrder(deps.MTOService, logg))
			r.Post("/{id}/use", controllers.UseMaterials(deps.MTOService, deps.Auditor, logg))
			r.Post("/{id}/complete-used-material", controllers.CompleteUsedMaterial(deps.MTOService, deps.Auditor, logg))

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Post("/{id}/close", controllers.CloseMaterialsToOrder(deps.MTOService, deps.Auditor, logg))
				r.Delete("/{id}", controllers.DeleteMaterialsToOrder(deps.MTOService, logg))
			})
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", controllers.CreateReservation(deps.ReservationsService, logg))
			r.Patch("/{id}", controllers.UpdateReservation(deps.ReservationsService, logg))
			r.Delete("/{id}", controllers.DeleteReservation(deps.ReservationsService, logg))
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", controllers.ListPurchaseOrders(deps.PurchaseOrderService, logg))
			r.Get("/{id}", controllers.GetPurchaseOrder(deps.PurchaseOrderService, logg))
			r.Post("/{id}/receive", controllers.ReceivePurchaseOrder(deps.PurchaseOrderService, deps.Auditor, logg))

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Post("/", controllers.CreatePurchaseOrder(deps.PurchaseOrderService, logg))
				r.Post("/{id}/cancel", controllers.CancelPurchaseOrder(deps.PurchaseOrderService, deps.Auditor, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.NotificationsService, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(deps.NotificationsService, logg))
			r.Get("/stream", controllers.StreamNotifications(deps.NotificationsService, logg))
			r.Post("/{id}/read", controllers.MarkNotificationRead(deps.NotificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.NotificationsService, logg))
		})
	})

	return r
}
