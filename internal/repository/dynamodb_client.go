package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"slack-roaster/internal/domain"
)

const (
	attrUserID = "user_id"
	attrSK     = "sk"

	defaultTicketLimit = 10
	maxTicketLimit     = 1000
)

// dynamodbAPI is the minimal DynamoDB interface required by Client and CounterStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Client wraps the conversation context table holding profile snapshots and tickets.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// GetProfile reads the stored profile snapshot. The bool is false when no
// snapshot exists yet.
func (c *Client) GetProfile(ctx context.Context, userID, scope string) (domain.UserProfile, bool, error) {
	if userID == "" || scope == "" {
		return domain.UserProfile{}, false, errors.New("repository: GetProfile: user id and scope are required")
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       contextKey(userID, scope),
	})
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("repository: GetProfile get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.UserProfile{}, false, nil
	}

	var profile domain.UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &profile); err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("repository: GetProfile decode: %w", err)
	}
	return profile, true, nil
}

// PutProfile replaces the snapshot wholesale; concurrent writers race and the
// last one wins.
func (c *Client) PutProfile(ctx context.Context, profile domain.UserProfile) error {
	if profile.UserID == "" || profile.Scope == "" {
		return errors.New("repository: PutProfile: user id and scope are required")
	}
	if profile.UpdatedAt == "" {
		profile.UpdatedAt = c.now().UTC().Format(time.RFC3339)
	}
	if profile.Attributes == nil {
		profile.Attributes = map[string]string{}
	}

	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("repository: PutProfile encode: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: PutProfile: %w", err)
	}
	return nil
}

// ListTickets returns at most limit ticket records for the user in storage
// order, following pagination until the bound or the end of the partition.
func (c *Client) ListTickets(ctx context.Context, userID string, limit int) ([]domain.Ticket, error) {
	if userID == "" {
		return nil, errors.New("repository: ListTickets: user id is required")
	}
	if limit <= 0 {
		limit = defaultTicketLimit
	}
	limit = min(limit, maxTicketLimit)

	var (
		tickets   []domain.Ticket
		startKey  map[string]types.AttributeValue
		pageCount int
	)
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("user_id = :uid AND begins_with(sk, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid":    &types.AttributeValueMemberS{Value: userID},
				":prefix": &types.AttributeValueMemberS{Value: domain.TicketPrefix},
			},
			Limit:             aws.Int32(int32(limit)),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ListTickets query page %d: %w", pageCount, err)
		}
		pageCount++
		if out == nil {
			break
		}

		var page []domain.Ticket
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("repository: ListTickets decode: %w", err)
		}
		tickets = append(tickets, page...)

		if len(tickets) >= limit || len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

func contextKey(userID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberS{Value: userID},
		attrSK:     &types.AttributeValueMemberS{Value: sk},
	}
}
