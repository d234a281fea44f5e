package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"kitchen-order-service/internal/config"
	"kitchen-order-service/internal/http/handlers"
	"kitchen-order-service/internal/middleware"
	"kitchen-order-service/internal/queue"
	"kitchen-order-service/internal/storage"
	"kitchen-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, store *storage.ObjectStore, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(requestLogger(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{DB: db, Logger: logger, Config: cfg, Queue: queueClient, Store: store}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/api/auth/login", h.AuthLogin)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.StaffAuth(db, cfg.JWTSecret))

		r.Get("/auth/me", h.AuthMe)
		r.Get("/menu", h.Menu)
		r.Get("/customers/search", h.CustomerSearch)

		r.Get("/orders", h.OrdersList)
		r.Post("/orders", h.OrderCreate)
		r.Get("/orders/summary", h.OrdersSummary)
		r.Get("/orders/{id}", h.OrderGet)
		r.Put("/orders/{id}", h.OrderUpdate)
		r.Patch("/orders/{id}/status", h.OrderUpdateStatus)
		r.Delete("/orders/{id}", h.OrderDelete)
		r.Get("/orders/{id}/ticket", h.OrderTicketPDF)
		r.Get("/orders/{id}/ticket-html", h.OrderTicketHTML)
		r.Post("/tickets/preview", h.TicketPreviewPDF)
		r.Post("/tickets/preview-html", h.TicketPreviewHTML)

		r.Get("/print-jobs", h.PrintJobsList)
		r.Patch("/print-jobs/{id}", h.PrintJobUpdate)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminOnly())

			r.Get("/categories", h.AdminCategoriesList)
			r.Post("/categories", h.AdminCategoriesCreate)
			r.Put("/categories/{id}", h.AdminCategoriesUpdate)
			r.Delete("/categories/{id}", h.AdminCategoriesDelete)
			r.Put("/categories/reorder", h.AdminCategoriesReorder)

			r.Get("/food-items", h.AdminFoodItemsList)
			r.Post("/food-items", h.AdminFoodItemsCreate)
			r.Put("/food-items/{id}", h.AdminFoodItemsUpdate)
			r.Delete("/food-items/{id}", h.AdminFoodItemsDelete)
			r.Patch("/food-items/{id}/active", h.AdminFoodItemsToggleActive)
			r.Post("/food-items/{id}/image", h.AdminFoodItemUploadImage)
			r.Delete("/food-items/{id}/image", h.AdminFoodItemDeleteImage)

			r.Get("/liter-sizes", h.AdminLiterSizesList)
			r.Post("/liter-sizes", h.AdminLiterSizesCreate)
			r.Put("/liter-sizes/{id}", h.AdminLiterSizesUpdate)
			r.Delete("/liter-sizes/{id}", h.AdminLiterSizesDelete)

			r.Get("/staff", h.AdminStaffList)
			r.Post("/staff", h.AdminStaffCreate)
			r.Put("/staff/{id}", h.AdminStaffUpdate)
			r.Delete("/staff/{id}", h.AdminStaffDelete)

			r.Post("/migrate/category", h.AdminMigrateCategory)
		})
	})

	if wsServer != nil {
		r.Get("/ws/kitchen/orders", wsServer.KitchenOrdersWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestId", middleware.GetRequestID(r.Context())),
			)
		})
	}
}
