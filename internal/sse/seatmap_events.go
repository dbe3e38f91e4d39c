package sse

import (
	"context"
	"sync"

	"bus-ticketing/internal/models"
)

// SeatMapHub fans seat lock/unlock/booked events out to everyone
// streaming a trip's seat map.
type SeatMapHub struct {
	tripClients map[string][]chan models.SeatLockEvent
	clientMutex sync.RWMutex
}

func NewSeatMapHub() *SeatMapHub {
	return &SeatMapHub{
		tripClients: make(map[string][]chan models.SeatLockEvent),
	}
}

// Subscribe adds a viewer to the trip's channel. The subscription is
// torn down when the context ends.
func (h *SeatMapHub) Subscribe(ctx context.Context, tripID string) chan models.SeatLockEvent {
	clientChan := make(chan models.SeatLockEvent, 10)

	h.clientMutex.Lock()
	h.tripClients[tripID] = append(h.tripClients[tripID], clientChan)
	h.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		h.removeClient(tripID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an event to all subscribers of the event's trip.
// Sends are non-blocking: a slow viewer drops events rather than
// stalling the emitter.
func (h *SeatMapHub) Emit(event models.SeatLockEvent) {
	h.clientMutex.RLock()
	clients := h.tripClients[event.TripID]
	h.clientMutex.RUnlock()

	for _, clientChan := range clients {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (h *SeatMapHub) removeClient(tripID string, clientChan chan models.SeatLockEvent) {
	h.clientMutex.Lock()
	defer h.clientMutex.Unlock()

	clients := h.tripClients[tripID]
	for i, ch := range clients {
		if ch == clientChan {
			h.tripClients[tripID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(h.tripClients[tripID]) == 0 {
		delete(h.tripClients, tripID)
	}
}
