package seed

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// Region is accepted by LocalStack regardless of its value.
	Region = "local-env"

	AccessKeyID     = "access-key"
	SecretAccessKey = "secret-key"
)

// DynamoDBAPI is the part of the DynamoDB client used for seeding.
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// KinesisAPI is the part of the Kinesis client used for seeding.
type KinesisAPI interface {
	CreateStream(ctx context.Context, params *kinesis.CreateStreamInput, optFns ...func(*kinesis.Options)) (*kinesis.CreateStreamOutput, error)
}

// S3API creates buckets and is usable by the upload manager.
type S3API interface {
	manager.UploadAPIClient
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// ClientFactory builds service clients bound to an emulated endpoint such as
// "http://localhost:4569".
type ClientFactory interface {
	DynamoDB(ctx context.Context, endpoint string) (DynamoDBAPI, error)
	Kinesis(ctx context.Context, endpoint string) (KinesisAPI, error)
	S3(ctx context.Context, endpoint string) (S3API, error)
}

// AWSClients builds real AWS SDK clients with static test credentials.
type AWSClients struct{}

// Config returns the SDK configuration shared by every emulated service.
func (AWSClients) Config(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(AccessKeyID, SecretAccessKey, "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func (c AWSClients) DynamoDB(ctx context.Context, endpoint string) (DynamoDBAPI, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}

func (c AWSClients) Kinesis(ctx context.Context, endpoint string) (KinesisAPI, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	return kinesis.NewFromConfig(cfg, func(o *kinesis.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}

func (c AWSClients) S3(ctx context.Context, endpoint string) (S3API, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), nil
}
