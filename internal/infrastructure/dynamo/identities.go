package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/school-notify-api/internal/domain"
)

// IdentityRepo provides typed DynamoDB operations for the identities table.
type IdentityRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewIdentityRepo(client *dynamodb.Client, tableName string) *IdentityRepo {
	return &IdentityRepo{client: client, tableName: tableName}
}

// Create stores a new identity. An existing identity with the same ID is
// never overwritten; the write fails with domain.ErrConflict instead.
func (r *IdentityRepo) Create(ctx context.Context, i *domain.Identity) error {
	item, err := attributevalue.MarshalMap(i)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrIdentityID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("identity %s already registered: %w", i.ID, domain.ErrConflict)
	}
	return err
}

func (r *IdentityRepo) Get(ctx context.Context, identityID string) (*domain.Identity, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrIdentityID, identityID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	var i domain.Identity
	if err := attributevalue.UnmarshalMap(out.Item, &i); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *IdentityRepo) UpdateCredential(ctx context.Context, identityID, hash string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		attrCredentialHash: hash,
		attrUpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.Names["#id"] = attrIdentityID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrIdentityID, identityID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	return err
}

// ListIDsByKind returns every identity ID of the given kind via the kind-index GSI.
func (r *IdentityRepo) ListIDsByKind(ctx context.Context, kind domain.IdentityKind) ([]string, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(indexKind),
		KeyConditionExpression:   aws.String("#k = :k"),
		ProjectionExpression:     aws.String("#id"),
		ExpressionAttributeNames: map[string]string{"#k": attrKind, "#id": attrIdentityID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: string(kind)},
		},
	})

	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", indexKind, err)
		}
		for _, item := range page.Items {
			if v, ok := item[attrIdentityID].(*types.AttributeValueMemberS); ok {
				ids = append(ids, v.Value)
			}
		}
	}
	return ids, nil
}
