package health

import (
	"context"
	"fmt"
	"time"
)

type SenderHealthChecker struct {
	healthFunc func(ctx context.Context) error
}

func NewSenderHealthChecker(healthFunc func(ctx context.Context) error) *SenderHealthChecker {
	return &SenderHealthChecker{healthFunc: healthFunc}
}

func (c *SenderHealthChecker) Name() string {
	return "sender"
}

func (c *SenderHealthChecker) Check(ctx context.Context) (Status, string) {
	if err := c.healthFunc(ctx); err != nil {
		return StatusDegraded, err.Error()
	}
	return StatusHealthy, ""
}

type BufferHealthChecker struct {
	countFunc func(ctx context.Context) (int64, error)
	threshold int64
}

// NewBufferHealthChecker reports degraded once more than threshold readings
// are waiting, which means the sink has been down for a while.
func NewBufferHealthChecker(countFunc func(ctx context.Context) (int64, error), threshold int64) *BufferHealthChecker {
	return &BufferHealthChecker{countFunc: countFunc, threshold: threshold}
}

func (c *BufferHealthChecker) Name() string {
	return "buffer"
}

func (c *BufferHealthChecker) Check(ctx context.Context) (Status, string) {
	count, err := c.countFunc(ctx)
	if err != nil {
		return StatusUnhealthy, err.Error()
	}

	if c.threshold > 0 && count > c.threshold {
		return StatusDegraded, fmt.Sprintf("%d readings buffered", count)
	}

	return StatusHealthy, ""
}

// SensorHealthChecker reports degraded when no valid reading arrived within
// maxAge. A DHT11 that keeps answering "not yet valid" shows up here.
type SensorHealthChecker struct {
	lastFunc func() time.Time
	maxAge   time.Duration
	now      func() time.Time
}

func NewSensorHealthChecker(lastFunc func() time.Time, maxAge time.Duration) *SensorHealthChecker {
	return &SensorHealthChecker{lastFunc: lastFunc, maxAge: maxAge, now: time.Now}
}

func (c *SensorHealthChecker) Name() string {
	return "sensor"
}

func (c *SensorHealthChecker) Check(ctx context.Context) (Status, string) {
	last := c.lastFunc()
	if last.IsZero() {
		return StatusDegraded, "no valid reading yet"
	}

	if age := c.now().Sub(last); age > c.maxAge {
		return StatusDegraded, fmt.Sprintf("last valid reading %s ago", age.Round(time.Second))
	}

	return StatusHealthy, ""
}
