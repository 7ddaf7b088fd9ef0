package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	kinesistypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file with the given content for testing
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolve_DefaultsOnly(t *testing.T) {
	cfg, err := Resolve(context.Background(), Static(Config{}))
	require.NoError(t, err)

	assert.Equal(t, DefaultImage, cfg.Image)
	assert.Equal(t, DefaultReadyTimeout, cfg.ReadyTimeout)
	assert.False(t, cfg.ShowLog)
	assert.Nil(t, cfg.Services)
	assert.Empty(t, cfg.DynamoTables)
	assert.Empty(t, cfg.KinesisStreams)
}

func TestResolve_YAMLFileOverrides(t *testing.T) {
	path := writeFile(t, "localstack.yaml", `
image: localstack/localstack:0.11.2
readyTimeout: 1500
showLog: true
services:
  - dynamodb
  - kinesis
dynamoTables:
  - TableName: files
    KeySchema:
      - AttributeName: id
        KeyType: HASH
    AttributeDefinitions:
      - AttributeName: id
        AttributeType: S
    ProvisionedThroughput:
      ReadCapacityUnits: 1
      WriteCapacityUnits: 1
kinesisStreams:
  - StreamName: events
    ShardCount: 2
s3Buckets:
  - name: uploads
    objects:
      - key: seed/a.json
        file: testdata/a.json
`)

	cfg, err := Resolve(context.Background(), FileSource(path))
	require.NoError(t, err)

	assert.Equal(t, "localstack/localstack:0.11.2", cfg.Image)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReadyTimeout)
	assert.True(t, cfg.ShowLog)
	assert.Equal(t, []any{"dynamodb", "kinesis"}, cfg.Services)

	require.Len(t, cfg.DynamoTables, 1)
	table := cfg.DynamoTables[0]
	assert.Equal(t, "files", aws.ToString(table.TableName))
	assert.Equal(t, []dynamotypes.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: dynamotypes.KeyTypeHash}}, table.KeySchema)
	assert.Equal(t, []dynamotypes.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: dynamotypes.ScalarAttributeTypeS}}, table.AttributeDefinitions)
	require.NotNil(t, table.ProvisionedThroughput)
	assert.Equal(t, int64(1), aws.ToInt64(table.ProvisionedThroughput.ReadCapacityUnits))

	require.Len(t, cfg.KinesisStreams, 1)
	assert.Equal(t, "events", aws.ToString(cfg.KinesisStreams[0].StreamName))
	assert.Equal(t, int32(2), aws.ToInt32(cfg.KinesisStreams[0].ShardCount))

	require.Len(t, cfg.S3Buckets, 1)
	assert.Equal(t, "uploads", cfg.S3Buckets[0].Name)
	assert.Equal(t, []Object{{Key: "seed/a.json", File: "testdata/a.json"}}, cfg.S3Buckets[0].Objects)
}

func TestResolve_KeepsEveryRequestKey(t *testing.T) {
	path := writeFile(t, "localstack.yaml", `
dynamoTables:
  - TableName: orders
    BillingMode: PAY_PER_REQUEST
    KeySchema:
      - AttributeName: customer
        KeyType: HASH
      - AttributeName: created
        KeyType: RANGE
    AttributeDefinitions:
      - AttributeName: customer
        AttributeType: S
      - AttributeName: created
        AttributeType: N
      - AttributeName: status
        AttributeType: S
    LocalSecondaryIndexes:
      - IndexName: by-status
        KeySchema:
          - AttributeName: customer
            KeyType: HASH
          - AttributeName: status
            KeyType: RANGE
        Projection:
          ProjectionType: KEYS_ONLY
    Tags:
      - Key: team
        Value: billing
    SSESpecification:
      Enabled: true
    OnDemandThroughput:
      MaxReadRequestUnits: 10
kinesisStreams:
  - StreamName: clicks
    StreamModeDetails:
      StreamMode: ON_DEMAND
`)

	cfg, err := Resolve(context.Background(), FileSource(path))
	require.NoError(t, err)

	require.Len(t, cfg.DynamoTables, 1)
	table := cfg.DynamoTables[0]
	assert.Equal(t, dynamotypes.BillingModePayPerRequest, table.BillingMode)
	assert.Len(t, table.AttributeDefinitions, 3)
	require.Len(t, table.LocalSecondaryIndexes, 1)
	lsi := table.LocalSecondaryIndexes[0]
	assert.Equal(t, "by-status", aws.ToString(lsi.IndexName))
	assert.Equal(t, dynamotypes.ProjectionTypeKeysOnly, lsi.Projection.ProjectionType)
	assert.Equal(t, []dynamotypes.Tag{{Key: aws.String("team"), Value: aws.String("billing")}}, table.Tags)
	require.NotNil(t, table.SSESpecification)
	assert.True(t, aws.ToBool(table.SSESpecification.Enabled))
	require.NotNil(t, table.OnDemandThroughput)
	assert.Equal(t, int64(10), aws.ToInt64(table.OnDemandThroughput.MaxReadRequestUnits))

	require.Len(t, cfg.KinesisStreams, 1)
	stream := cfg.KinesisStreams[0]
	require.NotNil(t, stream.StreamModeDetails)
	assert.Equal(t, kinesistypes.StreamModeOnDemand, stream.StreamModeDetails.StreamMode)
	assert.Nil(t, stream.ShardCount)
}

func TestResolve_PartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "localstack.yaml", "services: dynamodb\n")

	cfg, err := Resolve(context.Background(), FileSource(path))
	require.NoError(t, err)

	assert.Equal(t, "dynamodb", cfg.Services)
	assert.Equal(t, DefaultImage, cfg.Image)
	assert.Equal(t, DefaultReadyTimeout, cfg.ReadyTimeout)
}

func TestResolve_JSONFileWithDurationString(t *testing.T) {
	path := writeFile(t, "localstack.json", `{"readyTimeout": "90s", "services": "dynamodb,kinesis"}`)

	cfg, err := Resolve(context.Background(), FileSource(path))
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, "dynamodb,kinesis", cfg.Services)
}

func TestResolve_JSONNumberIsMilliseconds(t *testing.T) {
	path := writeFile(t, "localstack.json", `{"readyTimeout": 2500}`)

	cfg, err := Resolve(context.Background(), FileSource(path))
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, cfg.ReadyTimeout)
}

func TestResolve_MissingFile(t *testing.T) {
	_, err := Resolve(context.Background(), FileSource(filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolve_MalformedFile(t *testing.T) {
	path := writeFile(t, "localstack.yaml", "image: [unterminated\n")

	_, err := Resolve(context.Background(), FileSource(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestResolve_BadDuration(t *testing.T) {
	path := writeFile(t, "localstack.yaml", "readyTimeout: soon\n")

	_, err := Resolve(context.Background(), FileSource(path))
	require.Error(t, err)
}

func TestResolve_FuncSource(t *testing.T) {
	calls := 0
	src := FuncSource(func(ctx context.Context) (*Config, error) {
		calls++
		return &Config{Services: []string{"kinesis"}, ReadyTimeout: 5 * time.Second}, nil
	})

	cfg, err := Resolve(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"kinesis"}, cfg.Services)
	assert.Equal(t, 5*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, DefaultImage, cfg.Image)
}

func TestResolve_FuncSourceError(t *testing.T) {
	boom := errors.New("boom")
	src := FuncSource(func(context.Context) (*Config, error) { return nil, boom })

	_, err := Resolve(context.Background(), src)
	require.ErrorIs(t, err, boom)
}

func TestResolve_FuncSourceNilConfig(t *testing.T) {
	src := FuncSource(func(context.Context) (*Config, error) { return nil, nil })

	cfg, err := Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, DefaultImage, cfg.Image)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok", Defaults(), ""},
		{"negative timeout", Config{Image: "x", ReadyTimeout: -time.Second}, "readyTimeout"},
		{"blank image", Config{Image: "  ", ReadyTimeout: time.Second}, "image"},
		{
			"table without name",
			Config{Image: "x", ReadyTimeout: time.Second, DynamoTables: []Table{{}}},
			"dynamoTables[0]",
		},
		{
			"stream without name",
			Config{Image: "x", ReadyTimeout: time.Second, KinesisStreams: []Stream{{ShardCount: aws.Int32(1)}}},
			"kinesisStreams[0]",
		},
		{
			"bucket without name",
			Config{Image: "x", ReadyTimeout: time.Second, S3Buckets: []Bucket{{}}},
			"s3Buckets[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
