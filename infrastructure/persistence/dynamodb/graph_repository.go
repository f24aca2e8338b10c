package dynamodb

import (
	"context"
	"fmt"
	"reflect"

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

// GraphRepository reads and mutates the graph itself: concepts and the
// relationships between them, stored as single-table items
type GraphRepository struct {
	client         *dynamodb.Client
	tableName      string
	timestampIndex string
	logger         *zap.Logger
}

// NewGraphRepository creates a new graph repository
func NewGraphRepository(client *dynamodb.Client, tableName, timestampIndex string, logger *zap.Logger) *GraphRepository {
	return &GraphRepository{
		client:         client,
		tableName:      tableName,
		timestampIndex: timestampIndex,
		logger:         logger,
	}
}

type conceptItem struct {
	PK         string                 `dynamodbav:"PK"` // CONCEPT#<id>
	SK         string                 `dynamodbav:"SK"` // METADATA
	GSI1PK     string                 `dynamodbav:"GSI1PK"` // CONCEPT
	GSI1SK     string                 `dynamodbav:"GSI1SK"` // ID#<id>
	EntityKind string                 `dynamodbav:"EntityKind"`
	ConceptID  string                 `dynamodbav:"ConceptID"`
	Name       string                 `dynamodbav:"Name"`
	Attributes map[string]interface{} `dynamodbav:"Attributes,omitempty"`
}

type relationshipItem struct {
	PK             string                 `dynamodbav:"PK"` // RELATIONSHIP#<id>
	SK             string                 `dynamodbav:"SK"` // METADATA
	GSI1PK         string                 `dynamodbav:"GSI1PK"` // RELATIONSHIP
	GSI1SK         string                 `dynamodbav:"GSI1SK"` // ID#<id>
	EntityKind     string                 `dynamodbav:"EntityKind"`
	RelationshipID string                 `dynamodbav:"RelationshipID"`
	SourceID       string                 `dynamodbav:"SourceID"`
	TargetID       string                 `dynamodbav:"TargetID"`
	RelType        string                 `dynamodbav:"RelType"`
	Attributes     map[string]interface{} `dynamodbav:"Attributes,omitempty"`
}

// ExtractState reads the current graph state per the options
func (r *GraphRepository) ExtractState(ctx context.Context, opts ports.ExtractOptions) (*versioning.GraphState, error) {
	state := &versioning.GraphState{}

	if opts.IncludeConcepts {
		items, err := r.queryPartition(ctx, "CONCEPT")
		if err != nil {
			return nil, err
		}
		var concepts []conceptItem
		if err := attributevalue.UnmarshalListOfMaps(items, &concepts); err != nil {
			return nil, errors.NewStorageError("unmarshal concepts", err)
		}
		for _, item := range concepts {
			concept := versioning.Concept{
				ID:         item.ConceptID,
				Name:       item.Name,
				Attributes: item.Attributes,
			}
			if !conceptMatchesFilter(concept, opts.ConceptFilter) {
				continue
			}
			state.Concepts = append(state.Concepts, concept)
		}
	}

	if opts.IncludeRelationships {
		items, err := r.queryPartition(ctx, "RELATIONSHIP")
		if err != nil {
			return nil, err
		}
		var relationships []relationshipItem
		if err := attributevalue.UnmarshalListOfMaps(items, &relationships); err != nil {
			return nil, errors.NewStorageError("unmarshal relationships", err)
		}
		for _, item := range relationships {
			state.Relationships = append(state.Relationships, versioning.Relationship{
				ID:         item.RelationshipID,
				SourceID:   item.SourceID,
				TargetID:   item.TargetID,
				Type:       item.RelType,
				Attributes: item.Attributes,
			})
		}
	}

	state.Canonicalize()
	return state, nil
}

func conceptMatchesFilter(c versioning.Concept, filter map[string]interface{}) bool {
	for key, want := range filter {
		got, ok := c.Attributes[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func (r *GraphRepository) queryPartition(ctx context.Context, partition string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(partition))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, errors.NewStorageError("build graph query", err)
	}

	var items []map[string]types.AttributeValue
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.timestampIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, errors.NewStorageError("query graph entities", err)
		}
		items = append(items, out.Items...)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return items, nil
}

// Counts returns the current concept and relationship totals
func (r *GraphRepository) Counts(ctx context.Context) (int, int, error) {
	concepts, err := r.countPartition(ctx, "CONCEPT")
	if err != nil {
		return 0, 0, err
	}
	relationships, err := r.countPartition(ctx, "RELATIONSHIP")
	if err != nil {
		return 0, 0, err
	}
	return concepts, relationships, nil
}

func (r *GraphRepository) countPartition(ctx context.Context, partition string) (int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(partition))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, errors.NewStorageError("build graph count query", err)
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
			return 0, errors.NewStorageError("count graph entities", err)
		}
		count += int(out.Count)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return count, nil
}

// UpsertConcept creates or replaces a concept
func (r *GraphRepository) UpsertConcept(ctx context.Context, concept versioning.Concept) error {
	item := conceptItem{
		PK:         fmt.Sprintf("CONCEPT#%s", concept.ID),
		SK:         "METADATA",
		GSI1PK:     "CONCEPT",
		GSI1SK:     fmt.Sprintf("ID#%s", concept.ID),
		EntityKind: "CONCEPT",
		ConceptID:  concept.ID,
		Name:       concept.Name,
		Attributes: concept.Attributes,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("marshal concept", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return errors.NewStorageError("upsert concept", err)
	}
	return nil
}

// DeleteConcept removes a concept by id
func (r *GraphRepository) DeleteConcept(ctx context.Context, id string) error {
	return r.deleteEntity(ctx, fmt.Sprintf("CONCEPT#%s", id), "concept", id)
}

// UpsertRelationship creates or replaces a relationship
func (r *GraphRepository) UpsertRelationship(ctx context.Context, relationship versioning.Relationship) error {
	item := relationshipItem{
		PK:             fmt.Sprintf("RELATIONSHIP#%s", relationship.ID),
		SK:             "METADATA",
		GSI1PK:         "RELATIONSHIP",
		GSI1SK:         fmt.Sprintf("ID#%s", relationship.ID),
		EntityKind:     "RELATIONSHIP",
		RelationshipID: relationship.ID,
		SourceID:       relationship.SourceID,
		TargetID:       relationship.TargetID,
		RelType:        relationship.Type,
		Attributes:     relationship.Attributes,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("marshal relationship", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return errors.NewStorageError("upsert relationship", err)
	}
	return nil
}

// DeleteRelationship removes a relationship by id
func (r *GraphRepository) DeleteRelationship(ctx context.Context, id string) error {
	return r.deleteEntity(ctx, fmt.Sprintf("RELATIONSHIP#%s", id), "relationship", id)
}

func (r *GraphRepository) deleteEntity(ctx context.Context, pk, kind, id string) error {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return errors.NewStorageError("delete "+kind, err)
	}
	if out.Attributes == nil {
		return errors.NewNotFoundError(kind, id)
	}
	return nil
}
