package queue

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack/internal/errors"
)

// fakeSQS serves pre-loaded batches in order, then empty batches.
type fakeSQS struct {
	batches    [][]types.Message
	receives   int
	deleted    []string
	receiveErr error
	deleteErr  error
}

func (f *fakeSQS) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	return &sqs.GetQueueUrlOutput{
		QueueUrl: aws.String("https://sqs.test/" + aws.ToString(params.QueueName)),
	}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	var batch []types.Message
	if f.receives < len(f.batches) {
		batch = f.batches[f.receives]
	}
	f.receives++
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func message(body, handle string) types.Message {
	return types.Message{Body: aws.String(body), ReceiptHandle: aws.String(handle)}
}

func TestConsumerResolvesQueueURL(t *testing.T) {
	c, err := NewConsumer(context.Background(), &fakeSQS{}, "events-queue")
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.test/events-queue", c.queueURL)
}

func TestRunnerSingleBatchDeletesProcessed(t *testing.T) {
	fake := &fakeSQS{batches: [][]types.Message{
		{message("a", "rh-a"), message("b", "rh-b")},
	}}
	c, err := NewConsumer(context.Background(), fake, "q")
	require.NoError(t, err)

	var seen []string
	r := NewRunner(c, func(ctx context.Context, body string) error {
		seen = append(seen, body)
		return nil
	}, time.Minute, false)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []string{"rh-a", "rh-b"}, fake.deleted)
	assert.Equal(t, 1, fake.receives, "single-pass mode polls exactly once")
	assert.Equal(t, StateStopped, r.State())
}

func TestRunnerLeavesFailedMessages(t *testing.T) {
	fake := &fakeSQS{batches: [][]types.Message{
		{message("good", "rh-good"), message("bad", "rh-bad"), message("also-good", "rh-also")},
	}}
	c, err := NewConsumer(context.Background(), fake, "q")
	require.NoError(t, err)

	r := NewRunner(c, func(ctx context.Context, body string) error {
		if body == "bad" {
			return errors.NewDecodeError(errors.CodeBadContainer, "corrupt container", nil)
		}
		return nil
	}, time.Minute, false)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"rh-good", "rh-also"}, fake.deleted,
		"failed message must stay on the queue, the rest of the batch still runs")
}

func TestRunnerFatalOnUnclassifiedError(t *testing.T) {
	fake := &fakeSQS{batches: [][]types.Message{
		{message("a", "rh-a"), message("b", "rh-b")},
	}}
	c, err := NewConsumer(context.Background(), fake, "q")
	require.NoError(t, err)

	boom := errors.NewStoreError(errors.CodeWriteFailed, "insert failed", nil)
	r := NewRunner(c, func(ctx context.Context, body string) error {
		if body == "a" {
			return boom
		}
		return nil
	}, time.Minute, true)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, boom))
	assert.Empty(t, fake.deleted, "nothing acknowledged after a fatal error")
	assert.Equal(t, StateStopped, r.State())
}

func TestRunnerFatalOnDeleteError(t *testing.T) {
	fake := &fakeSQS{
		batches:   [][]types.Message{{message("a", "rh-a")}},
		deleteErr: stderrors.New("access denied"),
	}
	c, err := NewConsumer(context.Background(), fake, "q")
	require.NoError(t, err)

	r := NewRunner(c, func(ctx context.Context, body string) error { return nil }, time.Minute, true)
	require.Error(t, r.Run(context.Background()))
}

func TestRunnerDaemonDrainsThenSleeps(t *testing.T) {
	fake := &fakeSQS{batches: [][]types.Message{
		{message("a", "rh-a")},
		{message("b", "rh-b")},
	}}
	c, err := NewConsumer(context.Background(), fake, "q")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(c, func(ctx context.Context, body string) error {
		if body == "b" {
			// Cancel mid-drain; the runner should finish the batch,
			// acknowledge it, then stop before sleeping out the interval.
			cancel()
		}
		return nil
	}, time.Hour, true)

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []string{"rh-a", "rh-b"}, fake.deleted)
	assert.GreaterOrEqual(t, fake.receives, 2, "non-empty batches trigger an immediate re-poll")
	assert.Equal(t, StateStopped, r.State())
}

func TestRunnerStopsDuringSleep(t *testing.T) {
	fake := &fakeSQS{} // empty queue
	c, err := NewConsumer(context.Background(), fake, "q")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(c, func(ctx context.Context, body string) error { return nil }, time.Hour, true)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for r.State() != StateSleeping {
		select {
		case <-deadline:
			t.Fatal("runner never reached the sleeping state")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
	assert.Equal(t, StateStopped, r.State())
}
