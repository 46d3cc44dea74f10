package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"slack-roaster/internal/ratelimit"
)

const (
	attrDate     = "date"
	attrPicCount = "pic_count"

	incrementExpression = "SET pic_count = if_not_exists(pic_count, :start) + :inc"
	belowQuotaCondition = "attribute_not_exists(pic_count) OR pic_count < :limit"
)

// ErrQuotaExceeded is returned when the conditional increment was rejected.
var ErrQuotaExceeded = ratelimit.ErrQuotaExceeded

// CounterStore keeps the per-(user, day) picture counter.
type CounterStore struct {
	api       dynamodbAPI
	tableName string
}

// NewCounterStore creates a CounterStore over the given table.
func NewCounterStore(api dynamodbAPI, tableName string) (*CounterStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &CounterStore{api: api, tableName: tableName}, nil
}

// IncrementIfBelow adds one to the counter in a single UpdateItem whose
// condition admits only an absent counter or one below quota.
func (s *CounterStore) IncrementIfBelow(ctx context.Context, userID, day string, quota int) (int, error) {
	if userID == "" || day == "" {
		return 0, errors.New("repository: IncrementIfBelow: user id and day are required")
	}
	if quota <= 0 {
		return 0, fmt.Errorf("repository: IncrementIfBelow: invalid quota %d", quota)
	}

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrUserID: &types.AttributeValueMemberS{Value: userID},
			attrDate:   &types.AttributeValueMemberS{Value: day},
		},
		UpdateExpression:    aws.String(incrementExpression),
		ConditionExpression: aws.String(belowQuotaCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":start": &types.AttributeValueMemberN{Value: "0"},
			":inc":   &types.AttributeValueMemberN{Value: "1"},
			":limit": &types.AttributeValueMemberN{Value: strconv.Itoa(quota)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, fmt.Errorf("repository: IncrementIfBelow: %w", ErrQuotaExceeded)
		}
		return 0, fmt.Errorf("repository: IncrementIfBelow update item: %w", err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return 0, errors.New("repository: IncrementIfBelow: missing updated attributes")
	}

	count, err := numberAttr(out.Attributes, attrPicCount)
	if err != nil {
		return 0, fmt.Errorf("repository: IncrementIfBelow decode count: %w", err)
	}
	return count, nil
}

func numberAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
