package recordstore

import (
	"context"
	"time"

	"github.com/tokenized/gacha/internal/pull"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.opencensus.io/trace"
)

const (
	dynamoUserIndex = "user-index"
)

// DynamoConfig locates the DynamoDB table.
type DynamoConfig struct {
	Region     string
	AccessKey  string
	Secret     string
	Endpoint   string // DynamoDB Local
	Table      string
	MaxRetries int
}

// DynamoStore keeps cards in a DynamoDB table keyed by transaction id, with a global secondary
// index on user and pull time.
type DynamoStore struct {
	client    *dynamodb.DynamoDB
	tableName string
}

type dynamoCard struct {
	TxID          string `dynamodbav:"tx_id"`
	User          string `dynamodbav:"user"`
	TokenID       uint64 `dynamodbav:"token_id"`
	Rarity        string `dynamodbav:"rarity"`
	CategoryIndex uint64 `dynamodbav:"category_index"`
	BlockNumber   uint64 `dynamodbav:"block_number"`
	PulledAt      int64  `dynamodbav:"pulled_at"` // unix nanoseconds
}

// NewDynamoStore creates the client and the table if it doesn't exist.
func NewDynamoStore(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.Secret, "")
	}
	if cfg.MaxRetries > 0 {
		awsConfig.MaxRetries = aws.Int(cfg.MaxRetries)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "aws session")
	}

	store := &DynamoStore{
		client:    dynamodb.New(sess),
		tableName: cfg.Table,
	}

	if err := store.ensureTable(ctx); err != nil {
		return nil, errors.Wrap(err, "ensure table")
	}

	return store, nil
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoStore) ensureTable(ctx context.Context) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		return nil
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("tx_id"),
				KeyType:       aws.String(dynamodb.KeyTypeHash),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("tx_id"),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
			},
			{
				AttributeName: aws.String("user"),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
			},
			{
				AttributeName: aws.String("pulled_at"),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeN),
			},
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName: aws.String(dynamoUserIndex),
				KeySchema: []*dynamodb.KeySchemaElement{
					{
						AttributeName: aws.String("user"),
						KeyType:       aws.String(dynamodb.KeyTypeHash),
					},
					{
						AttributeName: aws.String("pulled_at"),
						KeyType:       aws.String(dynamodb.KeyTypeRange),
					},
				},
				Projection: &dynamodb.Projection{
					ProjectionType: aws.String(dynamodb.ProjectionTypeAll),
				},
			},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	}

	if _, err := d.client.CreateTableWithContext(ctx, input); err != nil {
		return errors.Wrap(err, "create table")
	}

	return d.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
}

func (d *DynamoStore) InsertIfAbsent(ctx context.Context, key string,
	record *pull.CardRecord) (bool, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.Dynamo.InsertIfAbsent")
	defer span.End()

	item, err := dynamodbattribute.MarshalMap(dynamoCard{
		TxID:          key,
		User:          record.User,
		TokenID:       record.TokenID,
		Rarity:        record.Rarity,
		CategoryIndex: record.CategoryIndex,
		BlockNumber:   record.BlockNumber,
		PulledAt:      record.PulledAt.UnixNano(),
	})
	if err != nil {
		return false, errors.Wrap(err, "marshal card")
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(tx_id)"),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok &&
			aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return false, nil
		}
		return false, errors.Wrap(err, "put card")
	}

	logger.Verbose(logger.ContextWithLogSubSystem(ctx, SubSystem), "Stored card %s", key)
	return true, nil
}

func (d *DynamoStore) QueryByRequester(ctx context.Context,
	identity string) ([]pull.CardRecord, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.Dynamo.QueryByRequester")
	defer span.End()

	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(dynamoUserIndex),
		KeyConditionExpression: aws.String("#u = :u"),
		ExpressionAttributeNames: map[string]*string{
			"#u": aws.String("user"), // reserved word
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":u": {S: aws.String(identity)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var cards []dynamoCard
	var unmarshalErr error
	err := d.client.QueryPagesWithContext(ctx, input,
		func(out *dynamodb.QueryOutput, last bool) bool {
			var page []dynamoCard
			if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &page); err != nil {
				unmarshalErr = err
				return false
			}
			cards = append(cards, page...)
			return true
		})
	if err != nil {
		return nil, errors.Wrap(err, "query cards")
	}
	if unmarshalErr != nil {
		return nil, errors.Wrap(unmarshalErr, "unmarshal cards")
	}

	result := make([]pull.CardRecord, 0, len(cards))
	for _, card := range cards {
		result = append(result, pull.CardRecord{
			TxID:          card.TxID,
			User:          card.User,
			TokenID:       card.TokenID,
			Rarity:        card.Rarity,
			CategoryIndex: card.CategoryIndex,
			BlockNumber:   card.BlockNumber,
			PulledAt:      time.Unix(0, card.PulledAt).UTC(),
		})
	}

	return result, nil
}

func (d *DynamoStore) Close(ctx context.Context) error {
	return nil
}
