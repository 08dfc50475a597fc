package mq

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Стратегии задержки между попытками.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// DefaultRetryDelay — задержка между попытками подключения по умолчанию.
const DefaultRetryDelay = 2 * time.Second

// BackoffPolicy описывает задержку между повторными попытками.
//
//   - "constant": всегда Delay
//   - "exponential": Delay, 2*Delay, ... не больше MaxDelay (с jitter)
//
// Политика не ограничивает число попыток: остановить цикл
// может только context или Close.
type BackoffPolicy struct {
	Kind     string
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultBackoff — фиксированная задержка 2 секунды.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Kind: BackoffConstant, Delay: DefaultRetryDelay}
}

// Validate проверяет политику.
func (p BackoffPolicy) Validate() error {
	switch p.Kind {
	case BackoffConstant, BackoffExponential, "":
	default:
		return fmt.Errorf("unknown backoff kind %q", p.Kind)
	}
	if p.Delay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("backoff delays must not be negative")
	}
	return nil
}

// New создаёт новый экземпляр backoff.BackOff.
func (p BackoffPolicy) New() backoff.BackOff {
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}

	if p.Kind != BackoffExponential {
		return backoff.NewConstantBackOff(delay)
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if delay == 0 {
		delay = time.Second
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// nextDelay возвращает следующую задержку. backoff.Stop не допускается.
func nextDelay(b backoff.BackOff) time.Duration {
	d := b.NextBackOff()
	if d == backoff.Stop {
		b.Reset()
		d = b.NextBackOff()
	}
	if d < 0 {
		d = 0
	}
	return d
}
