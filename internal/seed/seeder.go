// Package seed creates the tables, streams and buckets declared in the
// configuration once the emulated services accept requests.
package seed

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	kinesistypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/goldsam/jest-localstack/internal/config"
	"github.com/goldsam/jest-localstack/internal/services"
)

// Seeder issues the create calls. The zero value uses real AWS clients
// against localhost.
type Seeder struct {
	Clients ClientFactory
	Host    string
}

func (s *Seeder) clients() ClientFactory {
	if s.Clients == nil {
		return AWSClients{}
	}
	return s.Clients
}

// Endpoint returns the URL of a service published on port.
func (s *Seeder) Endpoint(port int) string {
	host := s.Host
	if host == "" {
		host = "localhost"
	}
	return Endpoint(host, port)
}

// Endpoint returns the URL of a service published on host:port.
func Endpoint(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

// Seed creates every declared resource whose service is active. All calls run
// concurrently and Seed returns once each of them has finished; the first
// error is returned and nothing already created is rolled back.
func (s *Seeder) Seed(ctx context.Context, cfg *config.Config, active services.Map) error {
	log := logrus.WithField("component", "seed")

	var g errgroup.Group

	if len(cfg.DynamoTables) > 0 {
		if port, ok := active.Port("dynamodb"); ok {
			g.Go(func() error { return s.createTables(ctx, s.Endpoint(port), cfg.DynamoTables) })
		} else {
			log.Warn("dynamoTables configured but dynamodb is not an active service, skipping")
		}
	}

	if len(cfg.KinesisStreams) > 0 {
		if port, ok := active.Port("kinesis"); ok {
			g.Go(func() error { return s.createStreams(ctx, s.Endpoint(port), cfg.KinesisStreams) })
		} else {
			log.Warn("kinesisStreams configured but kinesis is not an active service, skipping")
		}
	}

	if len(cfg.S3Buckets) > 0 {
		if port, ok := active.Port("s3"); ok {
			g.Go(func() error { return s.createBuckets(ctx, s.Endpoint(port), cfg.S3Buckets) })
		} else {
			log.Warn("s3Buckets configured but s3 is not an active service, skipping")
		}
	}

	return g.Wait()
}

func (s *Seeder) createTables(ctx context.Context, endpoint string, tables []config.Table) error {
	client, err := s.clients().DynamoDB(ctx, endpoint)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, table := range tables {
		g.Go(func() error {
			if _, err := client.CreateTable(ctx, TableInput(table)); err != nil {
				return fmt.Errorf("create table %s: %w", aws.ToString(table.TableName), err)
			}
			logrus.WithField("table", aws.ToString(table.TableName)).Debug("Created DynamoDB table")
			return nil
		})
	}
	return g.Wait()
}

func (s *Seeder) createStreams(ctx context.Context, endpoint string, streams []config.Stream) error {
	client, err := s.clients().Kinesis(ctx, endpoint)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, stream := range streams {
		g.Go(func() error {
			if _, err := client.CreateStream(ctx, StreamInput(stream)); err != nil {
				return fmt.Errorf("create stream %s: %w", aws.ToString(stream.StreamName), err)
			}
			logrus.WithField("stream", aws.ToString(stream.StreamName)).Debug("Created Kinesis stream")
			return nil
		})
	}
	return g.Wait()
}

func (s *Seeder) createBuckets(ctx context.Context, endpoint string, buckets []config.Bucket) error {
	client, err := s.clients().S3(ctx, endpoint)
	if err != nil {
		return err
	}
	uploader := manager.NewUploader(client)

	var g errgroup.Group
	for _, bucket := range buckets {
		g.Go(func() error {
			if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket.Name)}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket.Name, err)
			}
			for _, obj := range bucket.Objects {
				if err := upload(ctx, uploader, bucket.Name, obj); err != nil {
					return err
				}
			}
			logrus.WithField("bucket", bucket.Name).Debug("Created S3 bucket")
			return nil
		})
	}
	return g.Wait()
}

func upload(ctx context.Context, uploader *manager.Uploader, bucket string, obj config.Object) error {
	f, err := os.Open(obj.File)
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, obj.Key, err)
	}
	defer f.Close()

	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(obj.Key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, obj.Key, err)
	}
	return nil
}

// TableInput returns the CreateTable request for t as written. A provisioned
// table or global index without throughput gets one unit each.
func TableInput(t config.Table) *dynamodb.CreateTableInput {
	in := t

	if in.BillingMode != "" && in.BillingMode != dynamotypes.BillingModeProvisioned {
		return &in
	}

	if in.ProvisionedThroughput == nil {
		in.ProvisionedThroughput = defaultThroughput()
	}
	if len(in.GlobalSecondaryIndexes) > 0 {
		in.GlobalSecondaryIndexes = slices.Clone(in.GlobalSecondaryIndexes)
		for i := range in.GlobalSecondaryIndexes {
			if in.GlobalSecondaryIndexes[i].ProvisionedThroughput == nil {
				in.GlobalSecondaryIndexes[i].ProvisionedThroughput = defaultThroughput()
			}
		}
	}
	return &in
}

// StreamInput returns the CreateStream request for s. A provisioned stream
// without a shard count gets one shard.
func StreamInput(s config.Stream) *kinesis.CreateStreamInput {
	in := s

	onDemand := in.StreamModeDetails != nil && in.StreamModeDetails.StreamMode == kinesistypes.StreamModeOnDemand
	if in.ShardCount == nil && !onDemand {
		in.ShardCount = aws.Int32(1)
	}
	return &in
}

func defaultThroughput() *dynamotypes.ProvisionedThroughput {
	return &dynamotypes.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(1),
		WriteCapacityUnits: aws.Int64(1),
	}
}
