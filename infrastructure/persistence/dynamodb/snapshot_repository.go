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

// SnapshotRepository implements snapshot row persistence on DynamoDB
type SnapshotRepository struct {
	client         *dynamodb.Client
	tableName      string
	timestampIndex string
	logger         *zap.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(client *dynamodb.Client, tableName, timestampIndex string, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		client:         client,
		tableName:      tableName,
		timestampIndex: timestampIndex,
		logger:         logger,
	}
}

// snapshotItem is the DynamoDB item layout for a snapshot row
type snapshotItem struct {
	PK                string                 `dynamodbav:"PK"` // SNAPSHOT#<id>
	SK                string                 `dynamodbav:"SK"` // METADATA
	GSI1PK            string                 `dynamodbav:"GSI1PK"` // SNAPSHOT
	GSI1SK            string                 `dynamodbav:"GSI1SK"` // TS#<timestamp>#<id>
	EntityKind        string                 `dynamodbav:"EntityKind"`
	SnapshotID        string                 `dynamodbav:"SnapshotID"`
	SnapshotType      string                 `dynamodbav:"SnapshotType"`
	Timestamp         string                 `dynamodbav:"Timestamp"`
	Version           string                 `dynamodbav:"Version"`
	Name              string                 `dynamodbav:"Name,omitempty"`
	Description       string                 `dynamodbav:"Description,omitempty"`
	ConceptCount      int                    `dynamodbav:"ConceptCount"`
	RelationshipCount int                    `dynamodbav:"RelationshipCount"`
	Checksum          string                 `dynamodbav:"Checksum"`
	SizeBytes         int64                  `dynamodbav:"SizeBytes"`
	Metadata          map[string]interface{} `dynamodbav:"Metadata,omitempty"`
	StorageLocator    string                 `dynamodbav:"StorageLocator"`
	ParentSnapshotID  string                 `dynamodbav:"ParentSnapshotID,omitempty"`
	Tags              []string               `dynamodbav:"Tags,omitempty"`
}

// Save persists a snapshot row
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *versioning.Snapshot) error {
	ts := snapshot.Timestamp.UTC().Format(timeLayout)
	item := snapshotItem{
		PK:                fmt.Sprintf("SNAPSHOT#%s", snapshot.ID),
		SK:                "METADATA",
		GSI1PK:            "SNAPSHOT",
		GSI1SK:            fmt.Sprintf("TS#%s#%s", ts, snapshot.ID),
		EntityKind:        "SNAPSHOT",
		SnapshotID:        snapshot.ID,
		SnapshotType:      string(snapshot.Type),
		Timestamp:         ts,
		Version:           snapshot.Version,
		Name:              snapshot.Name,
		Description:       snapshot.Description,
		ConceptCount:      snapshot.ConceptCount,
		RelationshipCount: snapshot.RelationshipCount,
		Checksum:          snapshot.Checksum,
		SizeBytes:         snapshot.SizeBytes,
		Metadata:          snapshot.Metadata,
		StorageLocator:    snapshot.StorageLocator,
		ParentSnapshotID:  snapshot.ParentSnapshotID,
		Tags:              snapshot.Tags,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("marshal snapshot", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return errors.NewStorageError("save snapshot", err)
	}
	return nil
}

// GetByID fetches a snapshot row by id
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*versioning.Snapshot, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SNAPSHOT#%s", id)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, errors.NewStorageError("get snapshot", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError("snapshot", id)
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, errors.NewStorageError("unmarshal snapshot", err)
	}
	return item.toSnapshot()
}

// GetLatest returns the most recently created snapshot of any kind, or nil
func (r *SnapshotRepository) GetLatest(ctx context.Context) (*versioning.Snapshot, error) {
	snapshots, err := r.query(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return snapshots[0], nil
}

// List returns recent snapshots, newest first
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*versioning.Snapshot, error) {
	return r.query(ctx, limit)
}

func (r *SnapshotRepository) query(ctx context.Context, limit int) ([]*versioning.Snapshot, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("SNAPSHOT"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, errors.NewStorageError("build snapshot query", err)
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

	var snapshots []*versioning.Snapshot
	var lastKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = lastKey
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, errors.NewStorageError("query snapshots", err)
		}

		var items []snapshotItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.NewStorageError("unmarshal snapshots", err)
		}
		for _, item := range items {
			snapshot, err := item.toSnapshot()
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, snapshot)
			if limit > 0 && len(snapshots) >= limit {
				return snapshots, nil
			}
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return snapshots, nil
}

// DeleteOlderThan removes snapshots created before the cutoff, keeping the
// listed kinds regardless of age. Returns the deleted rows' storage locators.
func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, keep []versioning.SnapshotType) ([]string, error) {
	snapshots, err := r.query(ctx, 0)
	if err != nil {
		return nil, err
	}

	keepKinds := map[versioning.SnapshotType]bool{}
	for _, k := range keep {
		keepKinds[k] = true
	}

	var locators []string
	for _, snapshot := range snapshots {
		if !snapshot.Timestamp.Before(cutoff) || keepKinds[snapshot.Type] {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SNAPSHOT#%s", snapshot.ID)},
				"SK": &types.AttributeValueMemberS{Value: "METADATA"},
			},
		})
		if err != nil {
			return locators, errors.NewStorageError("delete snapshot", err)
		}
		locators = append(locators, snapshot.StorageLocator)
		r.logger.Debug("Deleted expired snapshot",
			zap.String("snapshotID", snapshot.ID),
			zap.String("version", snapshot.Version),
		)
	}
	return locators, nil
}

// Count returns the number of snapshot rows
func (r *SnapshotRepository) Count(ctx context.Context) (int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("SNAPSHOT"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, errors.NewStorageError("build snapshot count query", err)
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
			return 0, errors.NewStorageError("count snapshots", err)
		}
		count += int(out.Count)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return count, nil
}

func (item snapshotItem) toSnapshot() (*versioning.Snapshot, error) {
	ts, err := time.Parse(timeLayout, item.Timestamp)
	if err != nil {
		return nil, errors.NewStorageError("parse snapshot timestamp", err)
	}
	return &versioning.Snapshot{
		ID:                item.SnapshotID,
		Type:              versioning.SnapshotType(item.SnapshotType),
		Timestamp:         ts,
		Version:           item.Version,
		Name:              item.Name,
		Description:       item.Description,
		ConceptCount:      item.ConceptCount,
		RelationshipCount: item.RelationshipCount,
		Checksum:          item.Checksum,
		SizeBytes:         item.SizeBytes,
		Metadata:          item.Metadata,
		StorageLocator:    item.StorageLocator,
		ParentSnapshotID:  item.ParentSnapshotID,
		Tags:              item.Tags,
	}, nil
}
