package dynamodb

import (
	"context"
	"fmt"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// EvolutionMetricsRepository persists derived evolution metric rows keyed by
// the iteration they describe
type EvolutionMetricsRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewEvolutionMetricsRepository creates a new metrics repository
func NewEvolutionMetricsRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *EvolutionMetricsRepository {
	return &EvolutionMetricsRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type metricsItem struct {
	PK                    string  `dynamodbav:"PK"` // EVOMETRICS#<iterationID>
	SK                    string  `dynamodbav:"SK"` // METADATA
	EntityKind            string  `dynamodbav:"EntityKind"`
	MetricsID             string  `dynamodbav:"MetricsID"`
	IterationID           string  `dynamodbav:"IterationID"`
	SnapshotID            string  `dynamodbav:"SnapshotID,omitempty"`
	ComputedAt            string  `dynamodbav:"ComputedAt"`
	ConceptsAdded         int     `dynamodbav:"ConceptsAdded"`
	ConceptsModified      int     `dynamodbav:"ConceptsModified"`
	ConceptsRemoved       int     `dynamodbav:"ConceptsRemoved"`
	RelationshipsAdded    int     `dynamodbav:"RelationshipsAdded"`
	RelationshipsModified int     `dynamodbav:"RelationshipsModified"`
	RelationshipsRemoved  int     `dynamodbav:"RelationshipsRemoved"`
	AvgConnectivity       float64 `dynamodbav:"AvgConnectivity"`
	GraphDensity          float64 `dynamodbav:"GraphDensity"`
	ClusteringCoefficient float64 `dynamodbav:"ClusteringCoefficient"`
	DiversityIndex        float64 `dynamodbav:"DiversityIndex"`
	InnovationRate        float64 `dynamodbav:"InnovationRate"`
	StabilityScore        float64 `dynamodbav:"StabilityScore"`
}

// Save persists a metrics row, replacing any prior row for the iteration
func (r *EvolutionMetricsRepository) Save(ctx context.Context, metrics *versioning.EvolutionMetrics) error {
	item := metricsItem{
		PK:                    fmt.Sprintf("EVOMETRICS#%s", metrics.IterationID),
		SK:                    "METADATA",
		EntityKind:            "EVOMETRICS",
		MetricsID:             metrics.ID,
		IterationID:           metrics.IterationID,
		SnapshotID:            metrics.SnapshotID,
		ComputedAt:            metrics.ComputedAt.UTC().Format(timeLayout),
		ConceptsAdded:         metrics.ConceptsAdded,
		ConceptsModified:      metrics.ConceptsModified,
		ConceptsRemoved:       metrics.ConceptsRemoved,
		RelationshipsAdded:    metrics.RelationshipsAdded,
		RelationshipsModified: metrics.RelationshipsModified,
		RelationshipsRemoved:  metrics.RelationshipsRemoved,
		AvgConnectivity:       metrics.AvgConnectivity,
		GraphDensity:          metrics.GraphDensity,
		ClusteringCoefficient: metrics.ClusteringCoefficient,
		DiversityIndex:        metrics.DiversityIndex,
		InnovationRate:        metrics.InnovationRate,
		StabilityScore:        metrics.StabilityScore,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("marshal evolution metrics", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return errors.NewStorageError("save evolution metrics", err)
	}
	return nil
}

// GetByIterationID fetches the metrics row for an iteration
func (r *EvolutionMetricsRepository) GetByIterationID(ctx context.Context, iterationID string) (*versioning.EvolutionMetrics, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("EVOMETRICS#%s", iterationID)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, errors.NewStorageError("get evolution metrics", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError("evolution metrics", iterationID)
	}

	var item metricsItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, errors.NewStorageError("unmarshal evolution metrics", err)
	}

	computedAt, err := time.Parse(timeLayout, item.ComputedAt)
	if err != nil {
		return nil, errors.NewStorageError("parse metrics timestamp", err)
	}
	return &versioning.EvolutionMetrics{
		ID:                    item.MetricsID,
		IterationID:           item.IterationID,
		SnapshotID:            item.SnapshotID,
		ComputedAt:            computedAt,
		ConceptsAdded:         item.ConceptsAdded,
		ConceptsModified:      item.ConceptsModified,
		ConceptsRemoved:       item.ConceptsRemoved,
		RelationshipsAdded:    item.RelationshipsAdded,
		RelationshipsModified: item.RelationshipsModified,
		RelationshipsRemoved:  item.RelationshipsRemoved,
		AvgConnectivity:       item.AvgConnectivity,
		GraphDensity:          item.GraphDensity,
		ClusteringCoefficient: item.ClusteringCoefficient,
		DiversityIndex:        item.DiversityIndex,
		InnovationRate:        item.InnovationRate,
		StabilityScore:        item.StabilityScore,
	}, nil
}
