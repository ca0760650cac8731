package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

// DynamoAPI is the part of *dynamodb.Client the repository uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// snapshotItem is the DynamoDB item layout. The table's partition key is
// the string attribute "store".
type snapshotItem struct {
	Store     string `dynamodbav:"store"`
	State     string `dynamodbav:"state"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// DynamoRepository stores one item per store.
type DynamoRepository struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

func NewDynamoRepository(client DynamoAPI, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table, now: time.Now}
}

// NewDynamoClient builds a client from the default AWS credential chain.
// A non-empty endpoint overrides the service endpoint (DynamoDB Local).
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, reductoerrors.NewConfigError("failed to load AWS configuration", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (r *DynamoRepository) Save(ctx context.Context, store string, snapshot []byte) error {
	item, err := attributevalue.MarshalMap(snapshotItem{
		Store:     store,
		State:     string(snapshot),
		UpdatedAt: r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return reductoerrors.NewPersistenceError("save", store, fmt.Errorf("failed to marshal item: %w", err))
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		return reductoerrors.NewPersistenceError("save", store, err)
	}
	return nil
}

func (r *DynamoRepository) Load(ctx context.Context, store string) ([]byte, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"store": store})
	if err != nil {
		return nil, reductoerrors.NewPersistenceError("load", store, err)
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, reductoerrors.NewPersistenceError("load", store, err)
	}
	if len(out.Item) == 0 {
		return nil, reductoerrors.NewPersistenceError("load", store, ErrNoSnapshot)
	}
	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, reductoerrors.NewPersistenceError("load", store, fmt.Errorf("failed to unmarshal item: %w", err))
	}
	return []byte(item.State), nil
}

var _ Repository = (*DynamoRepository)(nil)
