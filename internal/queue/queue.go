package queue

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DispatchQueue is the topic carrying job ids from the create/dispatch
// endpoint to the dispatch worker.
const DispatchQueue = "mass_action_dispatch"

// Queue decouples job creation from job dispatch. Payloads are job ids.
type Queue interface {
	Publish(topic string, jobID string) error
	Subscribe(topic string, handler func(jobID string) error) error
}

// InMemoryQueue runs handlers in-process. Used when no broker is configured
// (single-process demo mode) and in tests.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(jobID string) error
}

var _ Queue = (*InMemoryQueue)(nil)

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(jobID string) error),
	}
}

const maxRetries = 3

func (q *InMemoryQueue) Publish(topic string, jobID string) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		log.Warn().Str("topic", topic).Msg("no subscribers for topic")
		return nil
	}

	for _, handler := range handlers {
		go q.process(handler, jobID)
	}
	return nil
}

func (q *InMemoryQueue) process(handler func(jobID string) error, jobID string) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := handler(jobID)
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("queue handler failed")
		if attempt == maxRetries {
			log.Error().Str("job_id", jobID).Msg("job permanently failed in queue")
			return
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(jobID string) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}
