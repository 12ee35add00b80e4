package sse

import (
	"context"
	"sync"
	"time"
)

// IssuanceUpdate is one broadcast frame: a batch of tickets was issued
// (or activated) for the event.
type IssuanceUpdate struct {
	EventID  string    `json:"event_id"`
	TierID   string    `json:"tier_id"`
	Count    int       `json:"count"`
	Status   string    `json:"status"`
	IssuedAt time.Time `json:"issued_at"`
}

// IssuanceEmitter fans issuance updates out to SSE subscribers, keyed by
// event. Organizers watch their event fill up in real time.
type IssuanceEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan IssuanceUpdate
}

func NewIssuanceEmitter() *IssuanceEmitter {
	return &IssuanceEmitter{
		clients: make(map[string][]chan IssuanceUpdate),
	}
}

// Subscribe registers a client for the event's updates. The channel is
// closed and removed when the context ends.
func (e *IssuanceEmitter) Subscribe(ctx context.Context, eventID string) chan IssuanceUpdate {
	clientChan := make(chan IssuanceUpdate, 10)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an update to every subscriber of the event. Slow
// clients with a full buffer are skipped, never waited on.
func (e *IssuanceEmitter) Emit(update IssuanceUpdate) {
	e.mu.RLock()
	clients := e.clients[update.EventID]
	e.mu.RUnlock()

	for _, clientChan := range clients {
		select {
		case clientChan <- update:
		default:
		}
	}
}

// SubscriberCount reports how many clients watch the event.
func (e *IssuanceEmitter) SubscriberCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}

func (e *IssuanceEmitter) remove(eventID string, clientChan chan IssuanceUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}
