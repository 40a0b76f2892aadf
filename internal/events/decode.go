package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// Decode - строгий разбор события из JSON с валидацией.
func Decode(raw []byte) (domain.Event, error) {
	var ev domain.Event
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		return domain.Event{}, fmt.Errorf("%w: invalid json: %w", ErrInvalidEvent, err)
	}
	// после объекта ничего быть не должно
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return domain.Event{}, fmt.Errorf("%w: invalid json: trailing data", ErrInvalidEvent)
	}
	if err := Validate(&ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}
