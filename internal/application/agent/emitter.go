package agent

import (
	"context"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

// emitter delivers updates in call order. A failed send is logged and the
// pipeline carries on; the client may have gone away mid-instruction.
type emitter struct {
	ctx     context.Context
	sink    ports.EventSink
	logger  ports.Logger
	session string
}

func (e *emitter) send(update domain.AgentUpdate) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Send(e.ctx, domain.NewUpdate(update)); err != nil {
		e.logger.Warn("event delivery failed", map[string]interface{}{
			"session": e.session,
			"type":    string(update.Type),
			"error":   err.Error(),
		})
	}
}

func (e *emitter) fail(message string) {
	e.send(domain.AgentUpdate{Type: domain.UpdateError, Message: message})
}
