package session

import "fmt"

// Counter tracks how many diagnoses a session has used. The count never
// goes past the limit.
type Counter struct {
	count int
	limit int
}

func NewCounter(limit int) Counter {
	return Counter{limit: limit}
}

func (c *Counter) CanDiagnose() bool {
	return c.count < c.limit
}

func (c *Counter) RecordDiagnosis() {
	if c.count < c.limit {
		c.count++
	}
}

func (c *Counter) Count() int {
	return c.count
}

func (c *Counter) Limit() int {
	return c.limit
}

func (c *Counter) Remaining() int {
	return max(c.limit-c.count, 0)
}

// String renders the counter as "count/limit".
func (c *Counter) String() string {
	return fmt.Sprintf("%d/%d", c.count, c.limit)
}
