package sse

import (
	"context"
	"sync"

	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/models"
)

const clientBuffer = 16

// SalesHub fans order events out to the dashboards watching an event.
type SalesHub struct {
	mu      sync.RWMutex
	clients map[string][]chan models.OrderEventMessage
	clock   clock.Clock
}

func NewSalesHub(clk clock.Clock) *SalesHub {
	return &SalesHub{
		clients: make(map[string][]chan models.OrderEventMessage),
		clock:   clk,
	}
}

// Subscribe registers a client for eventID. The channel is closed once ctx
// is done.
func (h *SalesHub) Subscribe(ctx context.Context, eventID string) <-chan models.OrderEventMessage {
	ch := make(chan models.OrderEventMessage, clientBuffer)

	h.mu.Lock()
	h.clients[eventID] = append(h.clients[eventID], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(eventID, ch)
	}()
	return ch
}

// OrderCompleted announces a sale made by this instance.
func (h *SalesHub) OrderCompleted(order models.Order) {
	h.Emit(models.NewOrderEventMessage("order.completed", order, h.clock.Now()))
}

// Emit delivers msg to every subscriber of its event. Slow clients whose
// buffer is full miss the message rather than stall the sender.
func (h *SalesHub) Emit(msg models.OrderEventMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients[msg.EventID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *SalesHub) remove(eventID string, ch chan models.OrderEventMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[eventID]
	for i, c := range clients {
		if c == ch {
			h.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(h.clients[eventID]) == 0 {
		delete(h.clients, eventID)
	}
}

// ClientCount returns how many clients watch eventID.
func (h *SalesHub) ClientCount(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[eventID])
}
