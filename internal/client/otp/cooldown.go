package otp

import "time"

// Cooldown gates resends until a period has elapsed since Start.
type Cooldown struct {
	period time.Duration
	now    func() time.Time
	until  time.Time
}

func NewCooldown(period time.Duration, now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{period: period, now: now}
}

func (c *Cooldown) Start() {
	c.StartAt(c.now())
}

// StartAt starts the cooldown as if issued at t, e.g. when resuming a flow.
func (c *Cooldown) StartAt(t time.Time) {
	c.until = t.Add(c.period)
}

func (c *Cooldown) Remaining() time.Duration {
	return max(c.until.Sub(c.now()), 0)
}

func (c *Cooldown) Ready() bool {
	return c.Remaining() == 0
}

// Seconds is Remaining rounded up, for display.
func (c *Cooldown) Seconds() int {
	r := c.Remaining()
	return int((r + time.Second - 1) / time.Second)
}
