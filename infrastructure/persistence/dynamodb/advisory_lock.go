package dynamodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"graphitti-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// AdvisoryLock serializes cross-instance operations using DynamoDB
// conditional writes. Lock rows carry a TTL attribute so abandoned locks
// expire on their own.
type AdvisoryLock struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewAdvisoryLock creates a new DynamoDB-backed advisory lock
func NewAdvisoryLock(client *dynamodb.Client, tableName string, logger *zap.Logger) *AdvisoryLock {
	return &AdvisoryLock{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Acquire takes the named lock, returning a release function. Expired lock
// rows are treated as free.
func (l *AdvisoryLock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	lockID := fmt.Sprintf("%s_%d", owner, time.Now().UnixNano())
	now := time.Now()
	expiresAt := now.Add(ttl)

	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: fmt.Sprintf("LOCK#%s", resource)},
		"SK":         &types.AttributeValueMemberS{Value: "LOCK"},
		"LockID":     &types.AttributeValueMemberS{Value: lockID},
		"Owner":      &types.AttributeValueMemberS{Value: owner},
		"AcquiredAt": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		"ExpiresAt":  &types.AttributeValueMemberS{Value: expiresAt.UTC().Format(time.RFC3339)},
		"TTL":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
	}

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if stderrors.As(err, &conditionFailed) {
			l.logger.Debug("Lock contention",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return nil, errors.NewConsistencyError(
				fmt.Sprintf("resource %s is locked by another operation", resource), nil)
		}
		return nil, errors.NewStorageError("acquire lock", err)
	}

	l.logger.Debug("Lock acquired",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
		zap.Duration("ttl", ttl),
	)

	release := func(ctx context.Context) error {
		return l.release(ctx, resource, lockID, owner)
	}
	return release, nil
}

// release deletes the lock row if this owner still holds it. A lock that was
// already released or taken over counts as released.
func (l *AdvisoryLock) release(ctx context.Context, resource, lockID, owner string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("LOCK#%s", resource)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
			":owner":  &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if stderrors.As(err, &conditionFailed) {
			l.logger.Warn("Lock already released or taken over",
				zap.String("resource", resource),
				zap.String("lockID", lockID),
			)
			return nil
		}
		return errors.NewStorageError("release lock", err)
	}

	l.logger.Debug("Lock released",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
	)
	return nil
}
