package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// timeLayout is a fixed-width RFC3339 variant so sort keys order
// lexicographically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ChangeRecordRepository implements the change log on DynamoDB. Records are
// written once and never updated.
type ChangeRecordRepository struct {
	client         *dynamodb.Client
	tableName      string
	timestampIndex string
	batchIndex     string
	logger         *zap.Logger
}

// NewChangeRecordRepository creates a new change record repository
func NewChangeRecordRepository(client *dynamodb.Client, tableName, timestampIndex, batchIndex string, logger *zap.Logger) *ChangeRecordRepository {
	return &ChangeRecordRepository{
		client:         client,
		tableName:      tableName,
		timestampIndex: timestampIndex,
		batchIndex:     batchIndex,
		logger:         logger,
	}
}

// changeItem is the DynamoDB item layout for a change record
type changeItem struct {
	PK         string                 `dynamodbav:"PK"` // CHANGE#<id>
	SK         string                 `dynamodbav:"SK"` // METADATA
	GSI1PK     string                 `dynamodbav:"GSI1PK"` // CHANGELOG
	GSI1SK     string                 `dynamodbav:"GSI1SK"` // TS#<timestamp>#<id>
	GSI2PK     string                 `dynamodbav:"GSI2PK,omitempty"` // BATCH#<batch_id>
	GSI2SK     string                 `dynamodbav:"GSI2SK,omitempty"` // TS#<timestamp>
	EntityKind string                 `dynamodbav:"EntityKind"`
	ChangeID   string                 `dynamodbav:"ChangeID"`
	ChangeType string                 `dynamodbav:"ChangeType"`
	Timestamp  string                 `dynamodbav:"Timestamp"`
	EntityID   string                 `dynamodbav:"EntityID"`
	EntityType string                 `dynamodbav:"EntityType"`
	OldValue   map[string]interface{} `dynamodbav:"OldValue,omitempty"`
	NewValue   map[string]interface{} `dynamodbav:"NewValue,omitempty"`
	Metadata   map[string]interface{} `dynamodbav:"Metadata,omitempty"`
	Source     string                 `dynamodbav:"Source"`
	UserID     string                 `dynamodbav:"UserID,omitempty"`
	SessionID  string                 `dynamodbav:"SessionID"`
	BatchID    string                 `dynamodbav:"BatchID,omitempty"`
	Checksum   string                 `dynamodbav:"Checksum"`
}

// Save appends a change record
func (r *ChangeRecordRepository) Save(ctx context.Context, record *versioning.ChangeRecord) error {
	ts := record.Timestamp.UTC().Format(timeLayout)
	item := changeItem{
		PK:         fmt.Sprintf("CHANGE#%s", record.ID),
		SK:         "METADATA",
		GSI1PK:     "CHANGELOG",
		GSI1SK:     fmt.Sprintf("TS#%s#%s", ts, record.ID),
		EntityKind: "CHANGE",
		ChangeID:   record.ID,
		ChangeType: string(record.Type),
		Timestamp:  ts,
		EntityID:   record.EntityID,
		EntityType: string(record.EntityType),
		OldValue:   record.OldValue,
		NewValue:   record.NewValue,
		Metadata:   record.Metadata,
		Source:     record.Source,
		UserID:     record.UserID,
		SessionID:  record.SessionID,
		BatchID:    record.BatchID,
		Checksum:   record.Checksum,
	}
	if record.BatchID != "" {
		item.GSI2PK = fmt.Sprintf("BATCH#%s", record.BatchID)
		item.GSI2SK = fmt.Sprintf("TS#%s", ts)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("marshal change record", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return errors.NewStorageError("save change record", err)
	}
	return nil
}

// List returns change records matching the filter, newest first. Filters are
// applied through the expression builder over a fixed set of columns; no
// caller-supplied strings reach the query.
func (r *ChangeRecordRepository) List(ctx context.Context, filter ports.ChangeFilter) ([]*versioning.ChangeRecord, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("CHANGELOG"))
	index := r.timestampIndex
	if filter.BatchID != "" {
		keyCond = expression.Key("GSI2PK").Equal(expression.Value(fmt.Sprintf("BATCH#%s", filter.BatchID)))
		index = r.batchIndex
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if cond, ok := filterCondition(filter); ok {
		builder = builder.WithFilter(cond)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, errors.NewStorageError("build change query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}

	var records []*versioning.ChangeRecord
	var lastKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = lastKey
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, errors.NewStorageError("query change records", err)
		}

		var items []changeItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, errors.NewStorageError("unmarshal change records", err)
		}
		for _, item := range items {
			record, err := item.toRecord()
			if err != nil {
				return nil, err
			}
			records = append(records, record)
			if filter.Limit > 0 && len(records) >= filter.Limit {
				return records, nil
			}
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return records, nil
}

// filterCondition builds the filter expression from the whitelisted columns
func filterCondition(filter ports.ChangeFilter) (expression.ConditionBuilder, bool) {
	var conds []expression.ConditionBuilder
	if filter.EntityID != "" {
		conds = append(conds, expression.Name("EntityID").Equal(expression.Value(filter.EntityID)))
	}
	if filter.EntityType != "" {
		conds = append(conds, expression.Name("EntityType").Equal(expression.Value(string(filter.EntityType))))
	}
	if filter.ChangeType != "" {
		conds = append(conds, expression.Name("ChangeType").Equal(expression.Value(string(filter.ChangeType))))
	}
	if filter.SessionID != "" {
		conds = append(conds, expression.Name("SessionID").Equal(expression.Value(filter.SessionID)))
	}
	if filter.Since != nil {
		conds = append(conds, expression.Name("Timestamp").GreaterThanEqual(
			expression.Value(filter.Since.UTC().Format(timeLayout))))
	}
	if filter.Until != nil {
		conds = append(conds, expression.Name("Timestamp").LessThanEqual(
			expression.Value(filter.Until.UTC().Format(timeLayout))))
	}

	if len(conds) == 0 {
		return expression.ConditionBuilder{}, false
	}
	cond := conds[0]
	for _, c := range conds[1:] {
		cond = cond.And(c)
	}
	return cond, true
}

func (item changeItem) toRecord() (*versioning.ChangeRecord, error) {
	ts, err := time.Parse(timeLayout, item.Timestamp)
	if err != nil {
		return nil, errors.NewStorageError("parse change timestamp", err)
	}
	return &versioning.ChangeRecord{
		ID:         item.ChangeID,
		Type:       versioning.ChangeType(item.ChangeType),
		Timestamp:  ts,
		EntityID:   item.EntityID,
		EntityType: versioning.EntityType(item.EntityType),
		OldValue:   item.OldValue,
		NewValue:   item.NewValue,
		Metadata:   item.Metadata,
		Source:     item.Source,
		UserID:     item.UserID,
		SessionID:  item.SessionID,
		BatchID:    item.BatchID,
		Checksum:   item.Checksum,
	}, nil
}

// CountSince returns the number of change records after the given time
func (r *ChangeRecordRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("CHANGELOG")).
		And(expression.Key("GSI1SK").GreaterThan(
			expression.Value(fmt.Sprintf("TS#%s", since.UTC().Format(timeLayout)))))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, errors.NewStorageError("build count query", err)
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
			return 0, errors.NewStorageError("count change records", err)
		}
		count += int(out.Count)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return count, nil
}

// CountDistinctSessionsSince returns how many distinct sessions produced
// changes after the given time
func (r *ChangeRecordRepository) CountDistinctSessionsSince(ctx context.Context, since time.Time) (int, error) {
	records, err := r.List(ctx, ports.ChangeFilter{Since: &since})
	if err != nil {
		return 0, err
	}
	sessions := map[string]bool{}
	for _, record := range records {
		sessions[record.SessionID] = true
	}
	return len(sessions), nil
}

// rollupItem is the DynamoDB item layout for one day of the rollup
type rollupItem struct {
	PK            string         `dynamodbav:"PK"` // ROLLUP#<day>
	SK            string         `dynamodbav:"SK"` // METADATA
	EntityKind    string         `dynamodbav:"EntityKind"`
	Day           string         `dynamodbav:"Day"`
	TotalChanges  int            `dynamodbav:"TotalChanges"`
	ChangesByType map[string]int `dynamodbav:"ChangesByType"`
	RefreshedAt   string         `dynamodbav:"RefreshedAt"`
}

// DailyRollup recomputes per-day change counts for the range from the change
// log and persists the refreshed rollup rows before returning them
func (r *ChangeRecordRepository) DailyRollup(ctx context.Context, start, end time.Time) ([]versioning.DailyChangeCount, error) {
	records, err := r.List(ctx, ports.ChangeFilter{Since: &start, Until: &end})
	if err != nil {
		return nil, err
	}

	byDay := map[string]*versioning.DailyChangeCount{}
	var days []string
	for _, record := range records {
		day := record.Timestamp.UTC().Format("2006-01-02")
		entry, ok := byDay[day]
		if !ok {
			entry = &versioning.DailyChangeCount{
				Day:           day,
				ChangesByType: map[versioning.ChangeType]int{},
			}
			byDay[day] = entry
			days = append(days, day)
		}
		entry.TotalChanges++
		entry.ChangesByType[record.Type]++
	}

	refreshedAt := time.Now().UTC().Format(timeLayout)
	out := make([]versioning.DailyChangeCount, 0, len(days))
	for _, day := range days {
		entry := byDay[day]
		out = append(out, *entry)

		byType := make(map[string]int, len(entry.ChangesByType))
		for t, c := range entry.ChangesByType {
			byType[string(t)] = c
		}
		av, err := attributevalue.MarshalMap(rollupItem{
			PK:            fmt.Sprintf("ROLLUP#%s", day),
			SK:            "METADATA",
			EntityKind:    "ROLLUP",
			Day:           day,
			TotalChanges:  entry.TotalChanges,
			ChangesByType: byType,
			RefreshedAt:   refreshedAt,
		})
		if err != nil {
			return nil, errors.NewStorageError("marshal rollup row", err)
		}
		if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      av,
		}); err != nil {
			// The rollup is a derived cache; a failed refresh does not
			// invalidate the computed counts.
			r.logger.Warn("Failed to persist rollup row",
				zap.Error(err),
				zap.String("day", day),
			)
		}
	}

	// Oldest first for timeline consumers
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}
