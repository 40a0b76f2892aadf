package kafka

import (
	"time"

	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
)

// backoff - экспоненциальная пауза с equal-jitter, ограниченная max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	src     *jitter.Source
}

func newBackoff(initial, maxDelay time.Duration, src *jitter.Source) *backoff {
	return &backoff{initial: initial, max: maxDelay, current: initial, src: src}
}

// next - пауза перед очередной попыткой; следующая будет вдвое длиннее.
func (b *backoff) next() time.Duration {
	d := b.src.Equal(b.current)
	b.current = min(b.current*2, b.max)
	return d
}

func (b *backoff) reset() { b.current = b.initial }
