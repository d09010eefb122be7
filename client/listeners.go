package client

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Handler consumes one raw server message of a registered type.
type Handler func(payload json.RawMessage)

// listenerRegistry maps message types to ordered handler lists. Handlers
// run synchronously in registration order; a panicking handler is
// isolated so the rest still run.
type listenerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

func newListenerRegistry(logger zerolog.Logger) *listenerRegistry {
	return &listenerRegistry{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

func (r *listenerRegistry) on(messageType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[messageType] = append(r.handlers[messageType], h)
}

func (r *listenerRegistry) dispatch(messageType string, payload json.RawMessage) {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[messageType]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		r.invoke(messageType, h, payload)
	}
}

func (r *listenerRegistry) invoke(messageType string, h Handler, payload json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("type", messageType).Interface("panic", rec).Msg("listener panicked")
		}
	}()

	h(payload)
}
