package repository

import (
	"context"
	"sync"

	"boxrunner/internal/common/mq"
	"boxrunner/internal/runner/model"
	appErr "boxrunner/pkg/errors"
)

// ResultPublisher emits finished job results to the outbound stream.
type ResultPublisher interface {
	Publish(ctx context.Context, result model.JobResult) error
}

// MQResultPublisher publishes job results over one shared producer
// connection. Concurrently completing jobs contend only on the send
// itself: the mutex serializes confirmed sends, never execution.
type MQResultPublisher struct {
	queue mq.Producer
	topic string
	mu    sync.Mutex
}

// NewMQResultPublisher creates a new MQ result publisher.
func NewMQResultPublisher(queue mq.Producer, topic string) *MQResultPublisher {
	return &MQResultPublisher{queue: queue, topic: topic}
}

// Publish serializes the result and performs a confirmed send. It returns
// only after the broker acknowledges durable receipt.
func (p *MQResultPublisher) Publish(ctx context.Context, result model.JobResult) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("result publisher is not configured")
	}
	if p.topic == "" {
		return appErr.ValidationError("topic", "required")
	}
	if result.SubmitID == "" {
		return appErr.ValidationError("submit_id", "required")
	}
	payload, err := result.Encode()
	if err != nil {
		return err
	}
	message := mq.NewMessage(payload)
	message.ID = result.SubmitID

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.PublishFailed, "publish job result failed")
	}
	return nil
}
