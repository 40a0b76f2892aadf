package events

import (
	"context"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

// Applier - применяет событие к кэшам (usecase.GoodsFeed).
type Applier interface {
	Apply(ctx context.Context, ev domain.Event) error
}

// Handler - сырое сообщение -> событие -> Applier.
type Handler struct {
	applier Applier
	log     ports.Logger
}

func NewHandler(applier Applier, log ports.Logger) *Handler {
	return &Handler{applier: applier, log: log}
}

// HandleMessage - ErrInvalidEvent для сообщений, которые не разобрать;
// прочие ошибки временные (кэш/хранилище недоступны), сообщение стоит повторить.
func (h *Handler) HandleMessage(ctx context.Context, raw []byte) error {
	ev, err := Decode(raw)
	if err != nil {
		return err
	}
	if err := h.applier.Apply(ctx, ev); err != nil {
		h.log.Warnf(ctx, "apply event type=%s failed: %v", ev.Type, err)
		return err
	}
	return nil
}
