package config

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
)

const (
	// DefaultFileName is looked up in the working directory when no --config is given.
	DefaultFileName = "localstack.yaml"

	DefaultImage        = "localstack/localstack:latest"
	DefaultReadyTimeout = 60 * time.Second
)

// Config represents the root of localstack.yaml
type Config struct {
	Image        string        `mapstructure:"image"`        // e.g., "localstack/localstack:0.11.2"
	ReadyTimeout time.Duration `mapstructure:"readyTimeout"` // e.g., 60000 (ms) or "90s"
	ShowLog      bool          `mapstructure:"showLog"`

	// Services is either a comma separated string ("dynamodb,kinesis:4568")
	// or a list of the same tokens. Nil means every default service.
	Services any `mapstructure:"services"`

	DynamoTables   []Table  `mapstructure:"dynamoTables"`
	KinesisStreams []Stream `mapstructure:"kinesisStreams"`
	S3Buckets      []Bucket `mapstructure:"s3Buckets"`
}

// Defaults returns the values every resolved configuration starts from.
func Defaults() Config {
	return Config{
		Image:        DefaultImage,
		ReadyTimeout: DefaultReadyTimeout,
		ShowLog:      false,
	}
}

// Table is a DynamoDB CreateTable request. Table definitions can be copied
// from AWS documentation into the config file as is; every key of the request
// is kept.
type Table = dynamodb.CreateTableInput

// Stream is a Kinesis CreateStream request.
type Stream = kinesis.CreateStreamInput

// Bucket is an S3 bucket created after startup, optionally filled with objects.
type Bucket struct {
	Name    string   `mapstructure:"name"`
	Objects []Object `mapstructure:"objects"`
}

// Object is uploaded from a local file into its bucket.
type Object struct {
	Key  string `mapstructure:"key"`
	File string `mapstructure:"file"` // relative to the working directory
}
