package session

import (
	"sync"
	"time"

	"biasmeter/app/service/diagnosis"
)

var _ diagnosis.Session = (*Session)(nil)

// Session is the state of one user. Callers take the lock around every use
// of the embedded Counter; Snapshot takes it by itself.
type Session struct {
	sync.Mutex
	Counter

	id      string
	history History
	now     func() time.Time
}

type Snapshot struct {
	ID        string  `json:"-"`
	Count     int     `json:"count"`
	Limit     int     `json:"limit"`
	Remaining int     `json:"remaining"`
	History   []Entry `json:"history"`
}

func New(id string, limit int) *Session {
	return newSession(id, limit, time.Now)
}

func newSession(id string, limit int, now func() time.Time) *Session {
	return &Session{
		Counter: NewCounter(limit),
		id:      id,
		history: History{size: limit},
		now:     now,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) AddResult(result diagnosis.Result) {
	s.history.add(result, s.now())
}

func (s *Session) Snapshot() Snapshot {
	s.Lock()
	defer s.Unlock()

	return Snapshot{
		ID:        s.id,
		Count:     s.Count(),
		Limit:     s.Limit(),
		Remaining: s.Remaining(),
		History:   s.history.list(),
	}
}
