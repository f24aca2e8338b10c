package di

import (
	"context"

	"graphitti-backend/application/ports"
	"graphitti-backend/application/services"
	"graphitti-backend/domain/scoring"
	"graphitti-backend/infrastructure/blobstore"
	"graphitti-backend/infrastructure/config"
	"graphitti-backend/infrastructure/messaging/eventbridge"
	dynamorepo "graphitti-backend/infrastructure/persistence/dynamodb"
	"graphitti-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideChangeRecordRepository creates the change log repository
func ProvideChangeRecordRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ChangeRecordRepository {
	return dynamorepo.NewChangeRecordRepository(client, cfg.DynamoDBTable, cfg.TimestampIndex, cfg.BatchIndex, logger)
}

// ProvideSnapshotRepository creates the snapshot row repository
func ProvideSnapshotRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.SnapshotRepository {
	return dynamorepo.NewSnapshotRepository(client, cfg.DynamoDBTable, cfg.TimestampIndex, logger)
}

// ProvideIterationRepository creates the iteration repository
func ProvideIterationRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.IterationRepository {
	return dynamorepo.NewIterationRepository(client, cfg.DynamoDBTable, cfg.TimestampIndex, logger)
}

// ProvideBatchRepository creates the batch repository
func ProvideBatchRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.BatchRepository {
	return dynamorepo.NewBatchRepository(client, cfg.DynamoDBTable, cfg.TimestampIndex, logger)
}

// ProvideMetricsRepository creates the evolution metrics repository
func ProvideMetricsRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.EvolutionMetricsRepository {
	return dynamorepo.NewEvolutionMetricsRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideGraphRepository creates the graph repository
func ProvideGraphRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.GraphRepository {
	return dynamorepo.NewGraphRepository(client, cfg.DynamoDBTable, cfg.TimestampIndex, logger)
}

// ProvideAdvisoryLock creates the restore serialization lock
func ProvideAdvisoryLock(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.AdvisoryLock {
	return dynamorepo.NewAdvisoryLock(client, cfg.DynamoDBTable, logger)
}

// ProvideSnapshotStore opens the snapshot blob bucket
func ProvideSnapshotStore(ctx context.Context, cfg *config.Config) (ports.SnapshotStore, error) {
	return blobstore.Open(ctx, cfg.SnapshotBucketURL)
}

// ProvideEventPublisher creates the lifecycle event publisher. With events
// disabled a no-op publisher is wired instead.
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return eventbridge.NopPublisher{}
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideMetricsEmitter creates the health gauge emitter. With metrics
// disabled the emitter holds no client and drops every datum.
func ProvideMetricsEmitter(client *awscloudwatch.Client, cfg *config.Config) ports.MetricsEmitter {
	if !cfg.EnableMetrics {
		return observability.NewMetrics(cfg.MetricsNamespace, nil)
	}
	return observability.NewMetrics(cfg.MetricsNamespace, client)
}

// ProvideStabilityStrategy creates the default stability scorer
func ProvideStabilityStrategy() scoring.StabilityStrategy {
	return scoring.NewDefaultStability()
}

// ProvideQualityStrategy creates the default quality scorer
func ProvideQualityStrategy() scoring.QualityStrategy {
	return scoring.NewDefaultQuality()
}

// ProvideEvolutionStrategy creates the default evolution scorer
func ProvideEvolutionStrategy() scoring.EvolutionStrategy {
	return scoring.NewDefaultEvolution()
}

// ProvideHealthStrategy creates the default health scorer
func ProvideHealthStrategy() scoring.HealthStrategy {
	return scoring.NewDefaultHealth()
}

// ProvideChangeTracker creates the change tracker service
func ProvideChangeTracker(
	changeRepo ports.ChangeRecordRepository,
	batchRepo ports.BatchRepository,
	logger *zap.Logger,
) *services.ChangeTracker {
	return services.NewChangeTracker(changeRepo, batchRepo, logger)
}

// ProvideSnapshotService creates the snapshot service
func ProvideSnapshotService(
	snapshotRepo ports.SnapshotRepository,
	graphRepo ports.GraphRepository,
	store ports.SnapshotStore,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.SnapshotService {
	return services.NewSnapshotService(snapshotRepo, graphRepo, store, publisher, logger)
}

// ProvideRestoreService creates the restore service
func ProvideRestoreService(
	snapshots *services.SnapshotService,
	tracker *services.ChangeTracker,
	graphRepo ports.GraphRepository,
	lock ports.AdvisoryLock,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.RestoreService {
	return services.NewRestoreService(snapshots, tracker, graphRepo, lock, publisher, logger)
}

// ProvideIterationService creates the iteration service
func ProvideIterationService(
	iterationRepo ports.IterationRepository,
	metricsRepo ports.EvolutionMetricsRepository,
	changeRepo ports.ChangeRecordRepository,
	graphRepo ports.GraphRepository,
	snapshots *services.SnapshotService,
	stability scoring.StabilityStrategy,
	quality scoring.QualityStrategy,
	evolution scoring.EvolutionStrategy,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.IterationService {
	return services.NewIterationService(
		iterationRepo, metricsRepo, changeRepo, graphRepo, snapshots,
		stability, quality, evolution, publisher, logger,
	)
}

// ProvideAnalyticsService creates the analytics service
func ProvideAnalyticsService(
	changeRepo ports.ChangeRecordRepository,
	snapshotRepo ports.SnapshotRepository,
	iterationRepo ports.IterationRepository,
	batchRepo ports.BatchRepository,
	graphRepo ports.GraphRepository,
	quality scoring.QualityStrategy,
	health scoring.HealthStrategy,
	emitter ports.MetricsEmitter,
	logger *zap.Logger,
) *services.AnalyticsService {
	return services.NewAnalyticsService(
		changeRepo, snapshotRepo, iterationRepo, batchRepo, graphRepo,
		quality, health, emitter, logger,
	)
}

// ProvideMaintenanceService creates the maintenance service
func ProvideMaintenanceService(
	snapshots *services.SnapshotService,
	iterations *services.IterationService,
	analytics *services.AnalyticsService,
	changeRepo ports.ChangeRecordRepository,
	iterRepo ports.IterationRepository,
	publisher ports.EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *services.MaintenanceService {
	return services.NewMaintenanceService(
		snapshots, iterations, analytics, changeRepo, iterRepo, publisher,
		cfg.SnapshotRetention, services.DefaultIterationPolicy(), logger,
	)
}
