//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"graphitti-backend/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideChangeRecordRepository,
	ProvideSnapshotRepository,
	ProvideIterationRepository,
	ProvideBatchRepository,
	ProvideMetricsRepository,
	ProvideGraphRepository,
	ProvideAdvisoryLock,
	ProvideSnapshotStore,
	ProvideEventPublisher,
	ProvideMetricsEmitter,
	ProvideStabilityStrategy,
	ProvideQualityStrategy,
	ProvideEvolutionStrategy,
	ProvideHealthStrategy,
	ProvideChangeTracker,
	ProvideSnapshotService,
	ProvideRestoreService,
	ProvideIterationService,
	ProvideAnalyticsService,
	ProvideMaintenanceService,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
