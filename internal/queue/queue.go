// internal/queue/queue.go
package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Queue topology. Four durable queues hang off a direct dead-letter
// exchange. The retry queue is a delay holding queue: nothing consumes it;
// per-message TTL expiry dead-letters the message onto the default exchange
// routed back to the immediate queue, so delayed redelivery flows through
// the normal processing path.
const (
	ImmediateQueue  = "email.immediate"
	ScheduledQueue  = "email.scheduled"
	RetryQueue      = "email.retry"
	DeadLetterQueue = "email.dead_letter"

	deadLetterExchange = "email.dlx"
	deadLetterKey      = "dead"
)

// Broker is the publishing surface used by the campaign service, scheduler
// and delivery processor.
type Broker interface {
	// PublishEmailTask publishes to the immediate queue when immediate is
	// true (priority-ordered), otherwise to the scheduled queue.
	PublishEmailTask(msg EmailMessage, immediate bool, priority uint8) error
	// PublishRetry parks the message on the retry queue with the given
	// delay as its per-message TTL.
	PublishRetry(msg EmailMessage, delay time.Duration) error
}

// AMQPBroker implements Broker over a RabbitMQ connection. Publishes are
// serialized with a mutex because an amqp.Channel is not safe for
// concurrent use.
type AMQPBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
}

var _ Broker = (*AMQPBroker)(nil)

// Dial connects to the broker and declares the full queue topology.
func Dial(url string) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	b := &AMQPBroker{conn: conn, ch: ch}
	if err := b.declareTopology(); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}

func (b *AMQPBroker) declareTopology() error {
	if err := b.ch.ExchangeDeclare(
		deadLetterExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}

	if _, err := b.ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare %s: %w", DeadLetterQueue, err)
	}
	if err := b.ch.QueueBind(DeadLetterQueue, deadLetterKey, deadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", DeadLetterQueue, err)
	}

	// Rejected or expired messages on the consumer-facing queues go to the
	// dead-letter queue.
	dlxArgs := amqp.Table{
		"x-dead-letter-exchange":    deadLetterExchange,
		"x-dead-letter-routing-key": deadLetterKey,
	}

	immediateArgs := amqp.Table{"x-max-priority": int32(10)}
	for k, v := range dlxArgs {
		immediateArgs[k] = v
	}
	if _, err := b.ch.QueueDeclare(ImmediateQueue, true, false, false, false, immediateArgs); err != nil {
		return fmt.Errorf("failed to declare %s: %w", ImmediateQueue, err)
	}

	if _, err := b.ch.QueueDeclare(ScheduledQueue, true, false, false, false, dlxArgs); err != nil {
		return fmt.Errorf("failed to declare %s: %w", ScheduledQueue, err)
	}

	// The retry queue has no consumer. TTL expiry dead-letters onto the
	// default exchange routed by queue name, promoting the message back to
	// the immediate queue.
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": ImmediateQueue,
	}
	if _, err := b.ch.QueueDeclare(RetryQueue, true, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("failed to declare %s: %w", RetryQueue, err)
	}

	return nil
}

func (b *AMQPBroker) PublishEmailTask(msg EmailMessage, immediate bool, priority uint8) error {
	queueName := ScheduledQueue
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
	}
	if immediate {
		queueName = ImmediateQueue
		pub.Priority = priority
	}
	return b.publish(queueName, msg, pub)
}

func (b *AMQPBroker) PublishRetry(msg EmailMessage, delay time.Duration) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
	}
	return b.publish(RetryQueue, msg, pub)
}

func (b *AMQPBroker) publish(queueName string, msg EmailMessage, pub amqp.Publishing) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message for task %s: %w", msg.TaskID, err)
	}
	pub.Body = body

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ch.Publish("", queueName, false, false, pub); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}

// Consume registers a competing consumer on the given queue with a bounded
// in-flight message count. Deliveries must be acked or rejected explicitly.
func (b *AMQPBroker) Consume(queueName, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := b.ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	deliveries, err := b.ch.Consume(
		queueName,
		consumerTag,
		false, // autoAck off, reliability over throughput
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", queueName, err)
	}
	return deliveries, nil
}

// Cancel stops a consumer. In-flight deliveries already handed to the
// application remain valid until acked.
func (b *AMQPBroker) Cancel(consumerTag string) error {
	return b.ch.Cancel(consumerTag, false)
}

func (b *AMQPBroker) Close() error {
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
