package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/school-notify-api/internal/domain"
)

// BatchWriteItem accepts at most 25 put requests per call.
const batchWriteLimit = 25

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

// PutBatch appends ledger records, retrying items DynamoDB leaves unprocessed.
func (r *NotificationRepo) PutBatch(ctx context.Context, notifications []domain.Notification) error {
	for _, part := range chunk(notifications, batchWriteLimit) {
		writes := make([]types.WriteRequest, 0, len(part))
		for i := range part {
			item, err := attributevalue.MarshalMap(&part[i])
			if err != nil {
				return fmt.Errorf("marshal notification: %w", err)
			}
			writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		request := map[string][]types.WriteRequest{r.tableName: writes}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > 0 {
				if err := backoff(ctx, attempt); err != nil {
					return fmt.Errorf("write notifications: %w", err)
				}
			}
			out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: request})
			if err != nil {
				return fmt.Errorf("write notifications: %w", err)
			}
			request = out.UnprocessedItems
		}
	}
	return nil
}

// ListByRecipient returns up to limit sent notifications for a recipient,
// newest first. The GSI sort key is the ULID notification ID, which orders by
// creation time.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(indexRecipientByNotification),
		KeyConditionExpression:   aws.String("#r = :rid"),
		FilterExpression:         aws.String("#s = :t"),
		ExpressionAttributeNames: map[string]string{"#r": attrRecipientID, "#s": attrSent},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: recipientID},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})

	var out []domain.Notification
	for p.HasMorePages() && len(out) < limit {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", indexRecipientByNotification, err)
		}
		var batch []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
