// Package replay enqueues synthetic creation notifications for historical
// objects, so the processors can re-ingest data that predates the queue
// subscription or was lost to a failed deployment.
package replay

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/classtrack/classtrack/internal/notification"
)

// S3API is the subset of the S3 client the replayer uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
}

// PublisherAPI is the subset of the SQS client the replayer uses.
type PublisherAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Replayer walks an object prefix and publishes one synthetic notification
// per .json object version found.
type Replayer struct {
	s3        S3API
	publisher PublisherAPI

	// LatestOnly restricts replay to the current version of each object.
	LatestOnly bool
}

func New(s3Client S3API, publisher PublisherAPI) *Replayer {
	return &Replayer{s3: s3Client, publisher: publisher}
}

// Run enqueues notifications for every matching object version under the
// prefix and returns the number of messages sent.
func (r *Replayer) Run(ctx context.Context, bucket, prefix, queueName string) (int, error) {
	urlOut, err := r.publisher.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve queue url for %q: %w", queueName, err)
	}
	queueURL := aws.ToString(urlOut.QueueUrl)

	sent := 0
	paginator := s3.NewListObjectsV2Paginator(r.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return sent, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			n, err := r.replayObject(ctx, bucket, key, queueURL)
			if err != nil {
				return sent, err
			}
			sent += n
		}
	}
	log.Printf("replay: sent %d notifications for s3://%s/%s", sent, bucket, prefix)
	return sent, nil
}

func (r *Replayer) replayObject(ctx context.Context, bucket, key, queueURL string) (int, error) {
	versions, err := r.s3.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list versions of s3://%s/%s: %w", bucket, key, err)
	}

	sent := 0
	for _, version := range versions.Versions {
		if r.LatestOnly && !aws.ToBool(version.IsLatest) {
			continue
		}
		// The version listing is prefix-based and can bleed into sibling
		// keys that share the name as a prefix.
		if aws.ToString(version.Key) != key {
			continue
		}

		body, err := notification.Synthetic(bucket, key, aws.ToString(version.VersionId))
		if err != nil {
			return sent, err
		}
		_, err = r.publisher.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueURL),
			MessageBody: aws.String(body),
		})
		if err != nil {
			return sent, fmt.Errorf("failed to enqueue notification for s3://%s/%s: %w", bucket, key, err)
		}
		sent++
	}
	return sent, nil
}
