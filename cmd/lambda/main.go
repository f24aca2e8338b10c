package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/infrastructure/config"
	"graphitti-backend/infrastructure/di"
	"graphitti-backend/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
)

// init runs during cold start
func init() {
	start := time.Now()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := rest.NewRouter(
		cfg,
		container.Tracker,
		container.Snapshots,
		container.Restore,
		container.Iterations,
		container.Analytics,
		container.Logger,
	)
	handler := router.Setup()

	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(start)),
	)
}

// scheduledDetail is the payload of scheduler-originated EventBridge events
type scheduledDetail struct {
	Task         string `json:"task"`
	SnapshotKind string `json:"snapshot_kind,omitempty"`
}

// rawEvent lets one handler serve both API Gateway and EventBridge triggers
type rawEvent struct {
	// EventBridge scheduled events
	Source     string          `json:"source,omitempty"`
	DetailType string          `json:"detail-type,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`

	// API Gateway v2 requests
	RequestContext json.RawMessage `json:"requestContext,omitempty"`
}

// Handler dispatches API Gateway requests to the router and scheduled events
// to the maintenance service
func Handler(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var probe rawEvent
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode lambda event: %w", err)
	}

	if probe.Source == "aws.events" || probe.DetailType == "Scheduled Event" || probe.Source == "graphitti.scheduler" {
		return handleScheduled(ctx, probe.Detail)
	}

	var req events.APIGatewayV2HTTPRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to decode http event: %w", err)
	}
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func handleScheduled(ctx context.Context, detail json.RawMessage) (interface{}, error) {
	var task scheduledDetail
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &task); err != nil {
			return nil, fmt.Errorf("failed to decode scheduled detail: %w", err)
		}
	}
	if task.Task == "" {
		task.Task = "daily_maintenance"
	}

	logger := container.Logger
	logger.Info("Running scheduled task", zap.String("task", task.Task))

	switch task.Task {
	case "daily_maintenance":
		kind := versioning.SnapshotTypeDailyBackup
		if task.SnapshotKind != "" {
			parsed, err := versioning.ParseSnapshotType(task.SnapshotKind)
			if err != nil {
				return nil, err
			}
			kind = parsed
		}
		snapshot, err := container.Maintenance.RunScheduledSnapshot(ctx, kind)
		if err != nil {
			return nil, err
		}
		if _, err := container.Maintenance.MaybeCreateIteration(ctx); err != nil {
			logger.Warn("Automatic iteration failed", zap.Error(err))
		}
		if _, err := container.Maintenance.CheckHealth(ctx, container.Config.HealthAlertThreshold); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
		}
		return map[string]string{"snapshot_id": snapshot.ID, "version": snapshot.Version}, nil

	case "weekly_backup":
		snapshot, err := container.Maintenance.RunScheduledSnapshot(ctx, versioning.SnapshotTypeWeeklyBackup)
		if err != nil {
			return nil, err
		}
		return map[string]string{"snapshot_id": snapshot.ID, "version": snapshot.Version}, nil

	case "health_check":
		health, err := container.Maintenance.CheckHealth(ctx, container.Config.HealthAlertThreshold)
		if err != nil {
			return nil, err
		}
		return health, nil

	default:
		return nil, fmt.Errorf("unknown scheduled task: %s", task.Task)
	}
}

func main() {
	lambda.Start(Handler)
}
