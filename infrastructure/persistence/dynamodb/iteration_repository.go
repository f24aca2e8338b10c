package dynamodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// IterationRepository implements iteration persistence on DynamoDB. The
// iteration version doubles as the partition key so uniqueness is enforced
// by a conditional put.
type IterationRepository struct {
	client         *dynamodb.Client
	tableName      string
	timestampIndex string
	logger         *zap.Logger
}

// NewIterationRepository creates a new iteration repository
func NewIterationRepository(client *dynamodb.Client, tableName, timestampIndex string, logger *zap.Logger) *IterationRepository {
	return &IterationRepository{
		client:         client,
		tableName:      tableName,
		timestampIndex: timestampIndex,
		logger:         logger,
	}
}

type iterationItem struct {
	PK                 string                 `dynamodbav:"PK"` // ITERATION#<version>
	SK                 string                 `dynamodbav:"SK"` // METADATA
	GSI1PK             string                 `dynamodbav:"GSI1PK"` // ITERATION
	GSI1SK             string                 `dynamodbav:"GSI1SK"` // TS#<timestamp>#<version>
	EntityKind         string                 `dynamodbav:"EntityKind"`
	IterationID        string                 `dynamodbav:"IterationID"`
	Version            string                 `dynamodbav:"Version"`
	CreatedAt          string                 `dynamodbav:"CreatedAt"`
	Name               string                 `dynamodbav:"Name,omitempty"`
	Description        string                 `dynamodbav:"Description,omitempty"`
	SnapshotID         string                 `dynamodbav:"SnapshotID,omitempty"`
	ParentIterationID  string                 `dynamodbav:"ParentIterationID,omitempty"`
	ChangesSinceParent int                    `dynamodbav:"ChangesSinceParent"`
	Features           []string               `dynamodbav:"Features,omitempty"`
	PerformanceMetrics map[string]interface{} `dynamodbav:"PerformanceMetrics,omitempty"`
	QualityScores      map[string]interface{} `dynamodbav:"QualityScores,omitempty"`
	StabilityRating    float64                `dynamodbav:"StabilityRating"`
	Tags               []string               `dynamodbav:"Tags,omitempty"`
}

// Save persists an iteration, rejecting duplicate versions
func (r *IterationRepository) Save(ctx context.Context, iteration *versioning.Iteration) error {
	ts := iteration.CreatedAt.UTC().Format(timeLayout)
	item := iterationItem{
		PK:                 fmt.Sprintf("ITERATION#%s", iteration.Version),
		SK:                 "METADATA",
		GSI1PK:             "ITERATION",
		GSI1SK:             fmt.Sprintf("TS#%s#%s", ts, iteration.Version),
		EntityKind:         "ITERATION",
		IterationID:        iteration.ID,
		Version:            iteration.Version,
		CreatedAt:          ts,
		Name:               iteration.Name,
		Description:        iteration.Description,
		SnapshotID:         iteration.SnapshotID,
		ParentIterationID:  iteration.ParentIterationID,
		ChangesSinceParent: iteration.ChangesSinceParent,
		Features:           iteration.Features,
		PerformanceMetrics: iteration.PerformanceMetrics,
		QualityScores:      iteration.QualityScores,
		StabilityRating:    iteration.StabilityRating,
		Tags:               iteration.Tags,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("marshal iteration", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if stderrors.As(err, &conditionFailed) {
			return errors.NewInvalidArgumentError(
				fmt.Sprintf("iteration version already exists: %s", iteration.Version))
		}
		return errors.NewStorageError("save iteration", err)
	}
	return nil
}

// GetByVersion fetches an iteration by its version string
func (r *IterationRepository) GetByVersion(ctx context.Context, version string) (*versioning.Iteration, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ITERATION#%s", version)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, errors.NewStorageError("get iteration", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError("iteration", version)
	}

	var item iterationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, errors.NewStorageError("unmarshal iteration", err)
	}
	return item.toIteration()
}

// VersionExists reports whether an iteration with the version is stored
func (r *IterationRepository) VersionExists(ctx context.Context, version string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ITERATION#%s", version)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return false, errors.NewStorageError("check iteration version", err)
	}
	return out.Item != nil, nil
}

// GetLatest returns the newest iteration, or nil when none exist
func (r *IterationRepository) GetLatest(ctx context.Context) (*versioning.Iteration, error) {
	iterations, err := r.query(ctx, 1, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(iterations) == 0 {
		return nil, nil
	}
	return iterations[0], nil
}

// List returns recent iterations, newest first
func (r *IterationRepository) List(ctx context.Context, limit int) ([]*versioning.Iteration, error) {
	return r.query(ctx, limit, nil, nil)
}

// ListBetween returns iterations created inside the window, newest first
func (r *IterationRepository) ListBetween(ctx context.Context, since, until time.Time) ([]*versioning.Iteration, error) {
	return r.query(ctx, 0, &since, &until)
}

func (r *IterationRepository) query(ctx context.Context, limit int, since, until *time.Time) ([]*versioning.Iteration, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("ITERATION"))
	if since != nil && until != nil {
		// The sort key suffixes the timestamp with the version, so the upper
		// bound needs a terminator that sorts after any version string.
		keyCond = keyCond.And(expression.Key("GSI1SK").Between(
			expression.Value(fmt.Sprintf("TS#%s", since.UTC().Format(timeLayout))),
			expression.Value(fmt.Sprintf("TS#%s#~", until.UTC().Format(timeLayout))),
		))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, errors.NewStorageError("build iteration query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.timestampIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var iterations []*versioning.Iteration
	var lastKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = lastKey
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, errors.NewStorageError("query iterations", err)
		}

		var items []iterationItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.NewStorageError("unmarshal iterations", err)
		}
		for _, item := range items {
			iteration, err := item.toIteration()
			if err != nil {
				return nil, err
			}
			iterations = append(iterations, iteration)
			if limit > 0 && len(iterations) >= limit {
				return iterations, nil
			}
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return iterations, nil
}

// Count returns the number of stored iterations
func (r *IterationRepository) Count(ctx context.Context) (int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("ITERATION"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, errors.NewStorageError("build iteration count query", err)
	}

	count := 0
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.timestampIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			Select:                    types.SelectCount,
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return 0, errors.NewStorageError("count iterations", err)
		}
		count += int(out.Count)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return count, nil
}

func (item iterationItem) toIteration() (*versioning.Iteration, error) {
	createdAt, err := time.Parse(timeLayout, item.CreatedAt)
	if err != nil {
		return nil, errors.NewStorageError("parse iteration timestamp", err)
	}
	return &versioning.Iteration{
		ID:                 item.IterationID,
		Version:            item.Version,
		CreatedAt:          createdAt,
		Name:               item.Name,
		Description:        item.Description,
		SnapshotID:         item.SnapshotID,
		ParentIterationID:  item.ParentIterationID,
		ChangesSinceParent: item.ChangesSinceParent,
		Features:           item.Features,
		PerformanceMetrics: item.PerformanceMetrics,
		QualityScores:      item.QualityScores,
		StabilityRating:    item.StabilityRating,
		Tags:               item.Tags,
	}, nil
}
