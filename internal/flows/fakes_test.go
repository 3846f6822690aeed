package flows

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/internal/autherr"
	"github.com/MrEthical07/authcore/internal/stores"
)

type memStore struct {
	mu        sync.Mutex
	nextID    int64
	byID      map[int64]Principal
	deleteErr error
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{byID: map[int64]Principal{}}
}

func (s *memStore) Save(_ context.Context, p Principal) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return Principal{}, s.saveErr
	}
	for _, existing := range s.byID {
		if existing.Email == p.Email {
			return Principal{}, &autherr.DuplicateKeyError{Field: "email"}
		}
		if existing.ExternalUUID == p.ExternalUUID {
			return Principal{}, &autherr.DuplicateKeyError{Field: "external_uuid"}
		}
	}
	s.nextID++
	p.ID = s.nextID
	s.byID[p.ID] = p
	return p, nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (Principal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.Email == email {
			return p, true, nil
		}
	}
	return Principal{}, false, nil
}

func (s *memStore) FindByUUID(_ context.Context, uuid string) (Principal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.ExternalUUID == uuid {
			return p, true, nil
		}
	}
	return Principal{}, false, nil
}

func (s *memStore) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.byID, id)
	return nil
}

func (s *memStore) Lock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return errors.New("no such principal")
	}
	p.Locked = true
	s.byID[id] = p
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// memAttempts is an in-memory AttemptBlocker without windows.
type memAttempts struct {
	limit    int
	block    time.Duration
	failures map[string]int64
	blocked  map[string]bool
}

func newMemAttempts(limit int, block time.Duration) *memAttempts {
	return &memAttempts{limit: limit, block: block, failures: map[string]int64{}, blocked: map[string]bool{}}
}

func (a *memAttempts) RecordFailure(_ context.Context, subject string) (int64, error) {
	a.failures[subject]++
	return a.failures[subject], nil
}

func (a *memAttempts) Reset(_ context.Context, subject string) error {
	delete(a.failures, subject)
	return nil
}

func (a *memAttempts) Limit() int { return a.limit }

func (a *memAttempts) IsBlocked(_ context.Context, subject string) (bool, time.Duration, error) {
	if a.blocked[subject] {
		return true, a.block, nil
	}
	return false, 0, nil
}

func (a *memAttempts) Block(_ context.Context, subject string, _ time.Duration) error {
	a.blocked[subject] = true
	return nil
}

func (a *memAttempts) BlockDuration() time.Duration { return a.block }

type codeEntry struct {
	code     string
	verified bool
}

// memCodes mirrors stores.CodeStore semantics without TTLs.
type memCodes struct {
	entries map[string]*codeEntry
}

func newMemCodes() *memCodes {
	return &memCodes{entries: map[string]*codeEntry{}}
}

func (c *memCodes) Issue(_ context.Context, role, email, code string, ttl time.Duration) (time.Duration, error) {
	key := role + ":" + email
	if _, ok := c.entries[key]; ok {
		return ttl, stores.ErrCodeAlreadyIssued
	}
	c.entries[key] = &codeEntry{code: code}
	return 0, nil
}

func (c *memCodes) Verify(_ context.Context, role, email, code string) error {
	e, ok := c.entries[role+":"+email]
	if !ok || e.verified {
		return stores.ErrCodeNotFound
	}
	if e.code != code {
		return stores.ErrCodeMismatch
	}
	e.verified = true
	return nil
}

func (c *memCodes) Redeem(_ context.Context, role, email, code string) error {
	e, ok := c.entries[role+":"+email]
	if !ok {
		return stores.ErrCodeNotFound
	}
	if e.code != code {
		return stores.ErrCodeMismatch
	}
	return nil
}

func (c *memCodes) Delete(_ context.Context, role, email string) error {
	delete(c.entries, role+":"+email)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observer() Observer {
	return Observer{Emit: func(_ context.Context, ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	}}
}

func (r *recorder) has(typ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func fakeSession(saved map[string]string) SessionDeps {
	n := 0
	return SessionDeps{
		IssueAccess: func(subject, role string) (string, error) {
			n++
			return "access-" + subject, nil
		},
		IssueRefresh: func(subject, role string) (string, error) {
			n++
			return "refresh-" + subject + "-" + string(rune('a'+n)), nil
		},
		SaveRefresh: func(_ context.Context, uuid, token string) error {
			saved[uuid] = token
			return nil
		},
	}
}
