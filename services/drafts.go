package services

import (
	"sync"
	"time"
)

// Stage is the intake step a session is waiting on.
type Stage int

const (
	StageCategory Stage = iota + 1
	StageDescription
	StagePriority
	StageConfirm
)

func (s Stage) String() string {
	switch s {
	case StageCategory:
		return "category"
	case StageDescription:
		return "description"
	case StagePriority:
		return "priority"
	case StageConfirm:
		return "confirm"
	default:
		return "none"
	}
}

// Draft is the partially filled ticket of one chat session.
type Draft struct {
	ChatID      int64
	Stage       Stage
	Username    string
	Category    string
	Description string
	Priority    string
	Timestamp   string
	UpdatedAt   time.Time
}

// DraftStore holds one draft per chat session. Drafts never leave memory.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[int64]Draft
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[int64]Draft)}
}

// Begin replaces any previous draft of the session with an empty one.
func (s *DraftStore) Begin(chatID int64, now time.Time) Draft {
	d := Draft{ChatID: chatID, Stage: StageCategory, UpdatedAt: now}
	s.mu.Lock()
	s.drafts[chatID] = d
	s.mu.Unlock()
	return d
}

func (s *DraftStore) Get(chatID int64) (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[chatID]
	return d, ok
}

func (s *DraftStore) Put(d Draft) {
	s.mu.Lock()
	s.drafts[d.ChatID] = d
	s.mu.Unlock()
}

func (s *DraftStore) Delete(chatID int64) {
	s.mu.Lock()
	delete(s.drafts, chatID)
	s.mu.Unlock()
}

func (s *DraftStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// Expire drops drafts untouched since before cutoff and returns how many.
func (s *DraftStore) Expire(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, d := range s.drafts {
		if d.UpdatedAt.Before(cutoff) {
			delete(s.drafts, id)
			n++
		}
	}
	return n
}
