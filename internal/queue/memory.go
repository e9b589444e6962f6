package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Channel. Every undeleted message is visible on
// every Receive, so a message that is not deleted is redelivered on the next
// poll.
type Memory struct {
	mu      sync.Mutex
	next    int
	pending []Message
	deletes map[string]int
	notify  chan struct{}
}

// NewMemory creates an empty channel.
func NewMemory() *Memory {
	return &Memory{
		deletes: make(map[string]int),
		notify:  make(chan struct{}, 1),
	}
}

// Send enqueues body and returns the message ID.
func (m *Memory) Send(body string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	id := "msg-" + strconv.Itoa(m.next)
	m.pending = append(m.pending, Message{ID: id, Body: body, Receipt: id})

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return id
}

// Receive returns up to limit pending messages, waiting up to wait for one.
func (m *Memory) Receive(ctx context.Context, limit int, wait time.Duration) ([]Message, error) {
	if msgs := m.take(limit); len(msgs) > 0 || wait <= 0 {
		return msgs, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, nil
	case <-timer.C:
	case <-m.notify:
	}
	return m.take(limit), nil
}

func (m *Memory) take(limit int) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(max(limit, 1), len(m.pending))
	return append([]Message(nil), m.pending[:n]...)
}

// Delete removes a pending message. Deleting an unknown receipt is an error.
func (m *Memory) Delete(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.pending {
		if p.Receipt == msg.Receipt {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			m.deletes[msg.ID]++
			return nil
		}
	}
	return fmt.Errorf("unknown receipt %q", msg.Receipt)
}

// Deletes returns how many times the message with id was deleted.
func (m *Memory) Deletes(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes[id]
}

// Pending returns the number of undeleted messages.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
