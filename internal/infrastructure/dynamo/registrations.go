package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/school-notify-api/internal/domain"
)

// BatchGetItem accepts at most 100 keys per call.
const batchGetLimit = 100

// RegistrationRepo provides typed DynamoDB operations for the registrations
// table and the address_bindings table that keeps push tokens unique.
type RegistrationRepo struct {
	client        *dynamodb.Client
	tableName     string
	bindingsTable string
}

func NewRegistrationRepo(client *dynamodb.Client, tableName, bindingsTable string) *RegistrationRepo {
	return &RegistrationRepo{client: client, tableName: tableName, bindingsTable: bindingsTable}
}

func (r *RegistrationRepo) Get(ctx context.Context, recipientID string) (*domain.Registration, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrRecipientID, recipientID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	var reg domain.Registration
	if err := attributevalue.UnmarshalMap(out.Item, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// BatchGet returns the registrations that exist for ids, keyed by recipient ID.
// Missing ids are simply absent from the map.
func (r *RegistrationRepo) BatchGet(ctx context.Context, ids []string) (map[string]domain.Registration, error) {
	found := make(map[string]domain.Registration, len(ids))
	for _, part := range chunk(ids, batchGetLimit) {
		keys := make([]map[string]types.AttributeValue, 0, len(part))
		for _, id := range part {
			keys = append(keys, strKey(attrRecipientID, id))
		}
		request := map[string]types.KeysAndAttributes{
			r.tableName: {Keys: keys, ConsistentRead: aws.Bool(true)},
		}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > 0 {
				if err := backoff(ctx, attempt); err != nil {
					return nil, fmt.Errorf("batch get registrations: %w", err)
				}
			}
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, fmt.Errorf("batch get registrations: %w", err)
			}
			var regs []domain.Registration
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[r.tableName], &regs); err != nil {
				return nil, err
			}
			for _, reg := range regs {
				found[reg.RecipientID] = reg
			}
			request = out.UnprocessedKeys
		}
	}
	return found, nil
}

// BindAddress sets the delivery address of a recipient, creating the
// registration if needed. The address guard item and the registration change
// commit in one transaction, so an address bound to another recipient fails
// with domain.ErrConflict and leaves both records untouched. Binding the
// address the recipient already holds is an in-place update.
//
// The registration update is conditioned on the address read beforehand, so a
// concurrent rotation for the same recipient cannot release the same old guard
// twice. A lost race re-reads and tries again.
func (r *RegistrationRepo) BindAddress(ctx context.Context, recipientID, address string) error {
	for attempt := 0; ; attempt++ {
		err := r.bindAddress(ctx, recipientID, address)
		if !errors.Is(err, errAddressChanged) {
			return err
		}
		if attempt+1 >= maxBindAttempts {
			return fmt.Errorf("bind address: %w", err)
		}
	}
}

const maxBindAttempts = 3

var errAddressChanged = errors.New("delivery address changed concurrently")

func (r *RegistrationRepo) bindAddress(ctx context.Context, recipientID, address string) error {
	previous := ""
	cur, err := r.Get(ctx, recipientID)
	switch {
	case err == nil:
		previous = cur.DeliveryAddress
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return err
	}
	rid := &types.AttributeValueMemberS{Value: recipientID}
	guardCond := aws.String("attribute_not_exists(#a) OR #r = :rid")

	update := &types.Update{
		TableName:        aws.String(r.tableName),
		Key:              strKey(attrRecipientID, recipientID),
		UpdateExpression: aws.String("SET #d = :d, #u = :now, #c = if_not_exists(#c, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#d": attrDeliveryAddress, "#u": attrUpdatedAt, "#c": attrCreatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":   &types.AttributeValueMemberS{Value: address},
			":now": now,
		},
	}
	if previous == "" {
		update.ConditionExpression = aws.String("attribute_not_exists(#d)")
	} else {
		update.ConditionExpression = aws.String("#d = :prev")
		update.ExpressionAttributeValues[":prev"] = &types.AttributeValueMemberS{Value: previous}
	}

	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName: aws.String(r.bindingsTable),
			Item: map[string]types.AttributeValue{
				attrAddress:     &types.AttributeValueMemberS{Value: address},
				attrRecipientID: rid,
				attrBoundAt:     now,
			},
			ConditionExpression:       guardCond,
			ExpressionAttributeNames:  map[string]string{"#a": attrAddress, "#r": attrRecipientID},
			ExpressionAttributeValues: map[string]types.AttributeValue{":rid": rid},
		}},
		{Update: update},
	}
	if previous != "" && previous != address {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(r.bindingsTable),
			Key:                       strKey(attrAddress, previous),
			ConditionExpression:       guardCond,
			ExpressionAttributeNames:  map[string]string{"#a": attrAddress, "#r": attrRecipientID},
			ExpressionAttributeValues: map[string]types.AttributeValue{":rid": rid},
		}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		switch {
		case conditionFailed(tce, 0):
			return fmt.Errorf("push token is already assigned to another user: %w", domain.ErrConflict)
		case conditionFailed(tce, 1), conditionFailed(tce, 2):
			return errAddressChanged
		}
	}
	if err != nil {
		return fmt.Errorf("bind address: %w", err)
	}
	return nil
}

// conditionFailed reports whether transaction item i failed its condition.
func conditionFailed(tce *types.TransactionCanceledException, i int) bool {
	return len(tce.CancellationReasons) > i &&
		aws.ToString(tce.CancellationReasons[i].Code) == "ConditionalCheckFailed"
}

// SetChildren replaces the student associations of a recipient, creating the
// registration if needed. child_ids mirrors the list as a string set so
// ListByChild can filter on it.
func (r *RegistrationRepo) SetChildren(ctx context.Context, recipientID string, children []domain.Child) error {
	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return err
	}
	list, err := attributevalue.Marshal(children)
	if err != nil {
		return fmt.Errorf("marshal children: %w", err)
	}
	if children == nil {
		list = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
	}

	names := map[string]string{
		"#ch": attrChildren, "#ids": attrChildIDs, "#u": attrUpdatedAt, "#c": attrCreatedAt,
	}
	values := map[string]types.AttributeValue{":ch": list, ":now": now}
	expr := "SET #ch = :ch, #u = :now, #c = if_not_exists(#c, :now)"

	ids := make([]string, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ChildID)
	}
	if len(ids) > 0 {
		// String sets cannot be empty, so the attribute is removed instead.
		values[":ids"] = &types.AttributeValueMemberSS{Value: ids}
		expr += ", #ids = :ids"
	} else {
		expr += " REMOVE #ids"
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrRecipientID, recipientID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

// ListByChild returns every registration associated with the student.
func (r *RegistrationRepo) ListByChild(ctx context.Context, childID string) ([]domain.Registration, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("contains(#ids, :sid)"),
		ExpressionAttributeNames: map[string]string{"#ids": attrChildIDs},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: childID},
		},
	})

	var regs []domain.Registration
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan registrations: %w", err)
		}
		var batch []domain.Registration
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		regs = append(regs, batch...)
	}
	return regs, nil
}

// backoff waits before retrying unprocessed batch items.
func backoff(ctx context.Context, attempt int) error {
	if attempt > maxBatchRetries {
		return errors.New("unprocessed items remain after retries")
	}
	delay := time.Duration(1<<uint(attempt-1)) * 50 * time.Millisecond
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const maxBatchRetries = 5
