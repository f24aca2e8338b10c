package dynamodb

import (
	"context"
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

// BatchRepository implements batch bookkeeping on DynamoDB
type BatchRepository struct {
	client         *dynamodb.Client
	tableName      string
	timestampIndex string
	logger         *zap.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(client *dynamodb.Client, tableName, timestampIndex string, logger *zap.Logger) *BatchRepository {
	return &BatchRepository{
		client:         client,
		tableName:      tableName,
		timestampIndex: timestampIndex,
		logger:         logger,
	}
}

type batchItem struct {
	PK          string                 `dynamodbav:"PK"` // BATCH#<id>
	SK          string                 `dynamodbav:"SK"` // METADATA
	GSI1PK      string                 `dynamodbav:"GSI1PK"` // BATCH
	GSI1SK      string                 `dynamodbav:"GSI1SK"` // TS#<startedAt>#<id>
	EntityKind  string                 `dynamodbav:"EntityKind"`
	BatchID     string                 `dynamodbav:"BatchID"`
	Name        string                 `dynamodbav:"Name,omitempty"`
	Description string                 `dynamodbav:"Description,omitempty"`
	Source      string                 `dynamodbav:"Source,omitempty"`
	UserID      string                 `dynamodbav:"UserID,omitempty"`
	SessionID   string                 `dynamodbav:"SessionID,omitempty"`
	Status      string                 `dynamodbav:"Status"`
	StartedAt   string                 `dynamodbav:"StartedAt"`
	CompletedAt string                 `dynamodbav:"CompletedAt,omitempty"`
	ChangeCount int                    `dynamodbav:"ChangeCount"`
	Metadata    map[string]interface{} `dynamodbav:"Metadata,omitempty"`
}

// Save persists a batch row
func (r *BatchRepository) Save(ctx context.Context, batch *versioning.Batch) error {
	started := batch.StartedAt.UTC().Format(timeLayout)
	item := batchItem{
		PK:          fmt.Sprintf("BATCH#%s", batch.ID),
		SK:          "METADATA",
		GSI1PK:      "BATCH",
		GSI1SK:      fmt.Sprintf("TS#%s#%s", started, batch.ID),
		EntityKind:  "BATCH",
		BatchID:     batch.ID,
		Name:        batch.Name,
		Description: batch.Description,
		Source:      batch.Source,
		UserID:      batch.UserID,
		SessionID:   batch.SessionID,
		Status:      string(batch.Status),
		StartedAt:   started,
		ChangeCount: batch.ChangeCount,
		Metadata:    batch.Metadata,
	}
	if batch.CompletedAt != nil {
		item.CompletedAt = batch.CompletedAt.UTC().Format(timeLayout)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("marshal batch", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return errors.NewStorageError("save batch", err)
	}
	return nil
}

// GetByID fetches a batch row by id
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*versioning.Batch, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("BATCH#%s", id)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, errors.NewStorageError("get batch", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError("batch", id)
	}

	var item batchItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, errors.NewStorageError("unmarshal batch", err)
	}
	return item.toBatch()
}

// IncrementChangeCount bumps the batch change counter atomically
func (r *BatchRepository) IncrementChangeCount(ctx context.Context, id string) error {
	update := expression.Add(expression.Name("ChangeCount"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return errors.NewStorageError("build batch counter update", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("BATCH#%s", id)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return errors.NewStorageError("increment batch change count", err)
	}
	return nil
}

// SetStatus transitions the batch status and stamps the completion time
func (r *BatchRepository) SetStatus(ctx context.Context, id string, status versioning.BatchStatus, completedAt time.Time) error {
	update := expression.Set(expression.Name("Status"), expression.Value(string(status))).
		Set(expression.Name("CompletedAt"), expression.Value(completedAt.UTC().Format(timeLayout)))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return errors.NewStorageError("build batch status update", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("BATCH#%s", id)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return errors.NewStorageError("set batch status", err)
	}
	return nil
}

// List returns recent batches, newest first
func (r *BatchRepository) List(ctx context.Context, limit int) ([]*versioning.Batch, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("BATCH"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, errors.NewStorageError("build batch query", err)
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

	var batches []*versioning.Batch
	var lastKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = lastKey
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, errors.NewStorageError("query batches", err)
		}

		var items []batchItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.NewStorageError("unmarshal batches", err)
		}
		for _, item := range items {
			batch, err := item.toBatch()
			if err != nil {
				return nil, err
			}
			batches = append(batches, batch)
			if limit > 0 && len(batches) >= limit {
				return batches, nil
			}
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return batches, nil
}

// CountFailedSince counts batches that failed after the given time
func (r *BatchRepository) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("BATCH")).
		And(expression.Key("GSI1SK").GreaterThanEqual(
			expression.Value(fmt.Sprintf("TS#%s", since.UTC().Format(timeLayout)))))
	filter := expression.Name("Status").Equal(expression.Value(string(versioning.BatchStatusFailed)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return 0, errors.NewStorageError("build failed batch count query", err)
	}

	count := 0
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.timestampIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			Select:                    types.SelectCount,
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return 0, errors.NewStorageError("count failed batches", err)
		}
		count += int(out.Count)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return count, nil
}

func (item batchItem) toBatch() (*versioning.Batch, error) {
	started, err := time.Parse(timeLayout, item.StartedAt)
	if err != nil {
		return nil, errors.NewStorageError("parse batch start time", err)
	}
	batch := &versioning.Batch{
		ID:          item.BatchID,
		Name:        item.Name,
		Description: item.Description,
		Source:      item.Source,
		UserID:      item.UserID,
		SessionID:   item.SessionID,
		Status:      versioning.BatchStatus(item.Status),
		StartedAt:   started,
		ChangeCount: item.ChangeCount,
		Metadata:    item.Metadata,
	}
	if item.CompletedAt != "" {
		completed, err := time.Parse(timeLayout, item.CompletedAt)
		if err != nil {
			return nil, errors.NewStorageError("parse batch completion time", err)
		}
		batch.CompletedAt = &completed
	}
	return batch, nil
}
