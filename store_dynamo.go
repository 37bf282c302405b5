package memocache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goforj/memocache/cachecore"
)

// DynamoAPI captures the subset of DynamoDB client methods used by the store.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// dynamoStore keeps one item per key: k (string hash key), v (binary value)
// and ea (unix millisecond expiry, 0 for forever).
type dynamoStore struct {
	client DynamoAPI
	table  string
	prefix string
	now    Clock
}

const (
	// dynamoMaxKeyLen is the DynamoDB limit for a string partition key.
	dynamoMaxKeyLen              = 2048
	dynamoEnsureTableMaxAttempts = 20
	dynamoEnsureTableRetryDelay  = 150 * time.Millisecond
)

func newDynamoStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	if cfg.DynamoClient == nil {
		client, err := newDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		cfg.DynamoClient = client
	}
	if err := ensureDynamoTable(ctx, cfg.DynamoClient, cfg.DynamoTable); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = cachecore.SystemClock
	}
	return &dynamoStore{
		client: cfg.DynamoClient,
		table:  cfg.DynamoTable,
		prefix: cfg.Prefix,
		now:    clock,
	}, nil
}

func newDynamoClient(ctx context.Context, cfg StoreConfig) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.DynamoRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	}), nil
}

func (s *dynamoStore) Driver() Driver { return DriverDynamo }

func (s *dynamoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := s.Delete(ctx, key)
		return err
	}
	return s.put(ctx, "set", key, cachecore.NewPayload(value, ttl, s.now()))
}

func (s *dynamoStore) Forever(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, "forever", key, cachecore.ForeverPayload(value))
}

func (s *dynamoStore) put(ctx context.Context, op, key string, payload cachecore.Payload) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"k":  &types.AttributeValueMemberS{Value: s.cacheKey(key)},
			"v":  &types.AttributeValueMemberB{Value: cloneBytes(payload.Data)},
			"ea": &types.AttributeValueMemberN{Value: strconv.FormatInt(payload.ExpiresAtMillis(), 10)},
		},
	})
	return s.wrap(op, key, err)
}

func (s *dynamoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.read(ctx, "get", key)
}

func (s *dynamoStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.read(ctx, "has", key)
	return ok, err
}

func (s *dynamoStore) read(ctx context.Context, op, key string) ([]byte, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, s.wrap(op, key, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}
	if cachecore.ExpiredAtMillis(dynamoExpiry(out.Item), s.now()) {
		_, _ = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key:       s.itemKey(key),
		})
		return nil, false, nil
	}
	v, ok := out.Item["v"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false, s.wrap(op, key, errors.New("dynamodb item missing binary value"))
	}
	return cloneBytes(v.Value), true, nil
}

func (s *dynamoStore) Delete(ctx context.Context, key string) (bool, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          s.itemKey(key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, s.wrap("delete", key, err)
	}
	if len(out.Attributes) == 0 {
		return false, nil
	}
	return !cachecore.ExpiredAtMillis(dynamoExpiry(out.Attributes), s.now()), nil
}

func (s *dynamoStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"k": &types.AttributeValueMemberS{Value: s.cacheKey(key)}}
}

func (s *dynamoStore) cacheKey(key string) string {
	return boundedKey(s.prefix, key, dynamoMaxKeyLen)
}

func (s *dynamoStore) wrap(op, key string, err error) error {
	return cachecore.WrapStoreError(DriverDynamo, op, key, err)
}

// dynamoExpiry reads the ea attribute; items without one never expire.
func dynamoExpiry(item map[string]types.AttributeValue) int64 {
	av, ok := item["ea"].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	exp, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return 0
	}
	return exp
}

func ensureDynamoTable(ctx context.Context, client DynamoAPI, table string) error {
	var lastErr error
	for attempt := 1; attempt <= dynamoEnsureTableMaxAttempts; attempt++ {
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err == nil {
			return nil
		}

		var rnfe *types.ResourceNotFoundException
		if errors.As(err, &rnfe) {
			_, createErr := client.CreateTable(ctx, &dynamodb.CreateTableInput{
				TableName: aws.String(table),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("k"), KeyType: types.KeyTypeHash},
				},
				AttributeDefinitions: []types.AttributeDefinition{
					{AttributeName: aws.String("k"), AttributeType: types.ScalarAttributeTypeS},
				},
				BillingMode: types.BillingModePayPerRequest,
			})
			if createErr == nil {
				return nil
			}
			var inUse *types.ResourceInUseException
			if errors.As(createErr, &inUse) {
				return nil
			}
			if !isDynamoStartupRetryable(createErr) {
				return fmt.Errorf("create dynamo table %q: %w", table, createErr)
			}
			lastErr = createErr
		} else {
			if !isDynamoStartupRetryable(err) {
				return fmt.Errorf("describe dynamo table %q: %w", table, err)
			}
			lastErr = err
		}

		if attempt == dynamoEnsureTableMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dynamoEnsureTableRetryDelay):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("dynamo table ensure failed")
	}
	return fmt.Errorf("ensure dynamo table %q: %w", table, lastErr)
}

// isDynamoStartupRetryable matches the transient errors a freshly started
// local endpoint returns.
func isDynamoStartupRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "request send failed") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "eof")
}
