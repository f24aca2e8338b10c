package di

import (
	"graphitti-backend/application/ports"
	"graphitti-backend/application/services"
	"graphitti-backend/infrastructure/config"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	ChangeRepo    ports.ChangeRecordRepository
	SnapshotRepo  ports.SnapshotRepository
	IterationRepo ports.IterationRepository
	BatchRepo     ports.BatchRepository
	MetricsRepo   ports.EvolutionMetricsRepository
	GraphRepo     ports.GraphRepository
	SnapshotStore ports.SnapshotStore
	Lock          ports.AdvisoryLock
	Publisher     ports.EventPublisher
	Emitter       ports.MetricsEmitter

	Tracker     *services.ChangeTracker
	Snapshots   *services.SnapshotService
	Restore     *services.RestoreService
	Iterations  *services.IterationService
	Analytics   *services.AnalyticsService
	Maintenance *services.MaintenanceService
}
