package queue

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

type dispatchMessage struct {
	JobID string `json:"job_id"`
}

// AMQPQueue carries job ids over RabbitMQ so dispatch can run in a separate
// worker process. Queues are declared durable; consumers ack manually.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ Queue = (*AMQPQueue)(nil)

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

func (q *AMQPQueue) Publish(topic string, jobID string) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}
	body, _ := json.Marshal(dispatchMessage{JobID: jobID})
	return q.ch.Publish(
		"",
		declared.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Subscribe consumes jobs until the channel closes. Handler errors republish
// the message with an incremented x-retry-count header up to three times;
// after that the message is dropped with an error log. A plain requeue would
// keep the original headers and never hit the bound.
func (q *AMQPQueue) Subscribe(topic string, handler func(jobID string) error) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}
	msgs, err := q.ch.Consume(
		declared.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var msg dispatchMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Warn().Err(err).Msg("invalid dispatch message")
				d.Ack(false)
				continue
			}

			if err := handler(msg.JobID); err != nil {
				retries := int32(0)
				if v, ok := d.Headers["x-retry-count"].(int32); ok {
					retries = v
				}
				if retries < maxRetries {
					log.Warn().Err(err).Str("job_id", msg.JobID).Int32("retries", retries).Msg("dispatch failed, requeueing")
					q.republish(declared.Name, d.Body, retries+1)
					d.Ack(false)
					continue
				}
				log.Error().Err(err).Str("job_id", msg.JobID).Msg("dispatch permanently failed")
			}
			d.Ack(false)
		}
	}()
	return nil
}

func (q *AMQPQueue) republish(queueName string, body []byte, retries int32) {
	err := q.ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{"x-retry-count": retries},
			Body:         body,
		},
	)
	if err != nil {
		log.Error().Err(err).Str("queue", queueName).Msg("requeue publish failed")
	}
}
