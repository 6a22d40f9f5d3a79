package stash

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dogmatiq/ferrite"
	"github.com/stashkit/stash/persistence/driver/aws/dynamodb"
	"github.com/stashkit/stash/persistence/driver/leveldb"
	"github.com/stashkit/stash/persistence/driver/memory"
	"github.com/stashkit/stash/persistence/kv"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
)

// FerriteRegistry is a registry of the environment variables used by
// stash.
var FerriteRegistry = ferrite.NewRegistry(
	"stashkit.stash",
	"Stash",
)

var (
	backend = ferrite.
		Enum("STASH_BACKEND", "the driver used to persist values").
		WithMembers("memory", "leveldb", "dynamodb").
		WithDefault("memory").
		Required(ferrite.WithRegistry(FerriteRegistry))

	pageBudget = ferrite.
		Signed[int]("STASH_PAGE_BUDGET", "the transport message budget, in bytes, used to size pages").
		WithDefault(DefaultPageBudget).
		WithMinimum(MinPageBudget).
		Required(ferrite.WithRegistry(FerriteRegistry))

	secureMode = ferrite.
		Bool("STASH_SECURE_MODE", "disable storage and retrieval of bytes values").
		WithDefault(false).
		Required(ferrite.WithRegistry(FerriteRegistry))

	leveldbPath = ferrite.
		String("STASH_LEVELDB_PATH", "the directory containing the LevelDB database").
		Optional(ferrite.WithRegistry(FerriteRegistry))

	dynamodbTable = ferrite.
		String("STASH_DYNAMODB_TABLE", "the DynamoDB table used to persist values").
		Optional(ferrite.WithRegistry(FerriteRegistry))

	dynamodbEndpoint = ferrite.
		String("STASH_DYNAMODB_ENDPOINT", "a non-default DynamoDB endpoint, typically a local development instance").
		Optional(ferrite.WithRegistry(FerriteRegistry))
)

// NewFromEnv returns a store configured from the environment.
//
// Options given here take precedence over the environment.
func NewFromEnv(ctx context.Context, options ...Option) (*Store, error) {
	driver, err := driverFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithPageBudget(pageBudget.Value()),
	}

	if secureMode.Value() {
		opts = append(opts, WithSecureMode())
	}

	opts = append(opts, options...)

	return New(driver, opts...), nil
}

func driverFromEnv(ctx context.Context) (kv.Store, error) {
	switch b := backend.Value(); b {
	case "memory":
		return &memory.KeyValueStore{}, nil

	case "leveldb":
		path, ok := leveldbPath.Value()
		if !ok {
			return nil, errors.New("STASH_LEVELDB_PATH must be set when STASH_BACKEND is leveldb")
		}

		db, err := goleveldb.OpenFile(path, nil)
		if err != nil {
			return nil, fmt.Errorf("could not open LevelDB database: %w", err)
		}

		return &leveldb.KeyValueStore{DB: db}, nil

	case "dynamodb":
		table, ok := dynamodbTable.Value()
		if !ok {
			return nil, errors.New("STASH_DYNAMODB_TABLE must be set when STASH_BACKEND is dynamodb")
		}

		client, err := newDynamoDBClient(ctx)
		if err != nil {
			return nil, err
		}

		return &dynamodb.KeyValueStore{
			Client: client,
			Table:  table,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported backend %q", b)
	}
}

func newDynamoDBClient(ctx context.Context) (*awsdynamodb.Client, error) {
	var options []func(*awsconfig.LoadOptions) error

	// A non-default endpoint implies a local development instance that
	// accepts any credentials.
	if endpoint, ok := dynamodbEndpoint.Value(); ok {
		options = append(
			options,
			awsconfig.WithRegion("us-east-1"),
			awsconfig.WithEndpointResolverWithOptions(
				aws.EndpointResolverWithOptionsFunc(
					func(service, region string, options ...any) (aws.Endpoint, error) {
						return aws.Endpoint{URL: endpoint}, nil
					},
				),
			),
			awsconfig.WithCredentialsProvider(
				credentials.StaticCredentialsProvider{
					Value: aws.Credentials{
						AccessKeyID:     "id",
						SecretAccessKey: "secret",
					},
				},
			),
		)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("could not load AWS configuration: %w", err)
	}

	return awsdynamodb.NewFromConfig(cfg), nil
}
