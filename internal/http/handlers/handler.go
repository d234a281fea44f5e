package handlers

import (
	"kitchen-order-service/internal/config"
	"kitchen-order-service/internal/queue"
	"kitchen-order-service/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client
	Store  *storage.ObjectStore
}
