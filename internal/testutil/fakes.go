// Package testutil holds in-memory fakes of the bot's collaborators for tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	"github.com/open-builders/exmatrikulator-bot/internal/domain/member"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// Deletion is a recorded DeleteMessage call.
type Deletion struct {
	Ref chat.MessageRef
	At  time.Time
}

// Answer is a recorded AnswerCallback call.
type Answer struct {
	CallbackID string
	Text       string
}

// Messenger is an in-memory chat.Messenger.
type Messenger struct {
	mu        sync.Mutex
	nextID    int64
	Sent      []chat.OutgoingMessage
	SentRefs  []chat.MessageRef
	Deleted   []Deletion
	Answers   []Answer
	Admins    map[int64][]int64
	SendErr   error
	DeleteErr error
	AnswerErr error
	AdminErr  error
}

func NewMessenger() *Messenger {
	return &Messenger{nextID: 1000, Admins: map[int64][]int64{}}
}

func (m *Messenger) SendMessage(_ context.Context, msg chat.OutgoingMessage) (chat.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return chat.MessageRef{}, m.SendErr
	}
	m.nextID++
	ref := chat.MessageRef{ChatID: msg.ChatID, MessageID: m.nextID}
	m.Sent = append(m.Sent, msg)
	m.SentRefs = append(m.SentRefs, ref)
	return ref, nil
}

func (m *Messenger) DeleteMessage(_ context.Context, ref chat.MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, Deletion{Ref: ref, At: time.Now()})
	return nil
}

func (m *Messenger) AnswerCallback(_ context.Context, callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AnswerErr != nil {
		return m.AnswerErr
	}
	m.Answers = append(m.Answers, Answer{CallbackID: callbackID, Text: text})
	return nil
}

func (m *Messenger) ChatAdministrators(_ context.Context, chatID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AdminErr != nil {
		return nil, m.AdminErr
	}
	return m.Admins[chatID], nil
}

// SentMessages returns a copy of the sent messages.
func (m *Messenger) SentMessages() []chat.OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.OutgoingMessage(nil), m.Sent...)
}

// SentRef returns the reference assigned to the i-th sent message.
func (m *Messenger) SentRef(i int) chat.MessageRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SentRefs[i]
}

// Deletions returns a copy of the recorded deletions.
func (m *Messenger) Deletions() []Deletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Deletion(nil), m.Deleted...)
}

// WasDeleted reports whether ref was deleted.
func (m *Messenger) WasDeleted(ref chat.MessageRef) bool {
	for _, d := range m.Deletions() {
		if d.Ref == ref {
			return true
		}
	}
	return false
}

// CallbackAnswers returns a copy of the recorded callback answers.
func (m *Messenger) CallbackAnswers() []Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Answer(nil), m.Answers...)
}

// Members is an in-memory member.Repository.
type Members struct {
	mu        sync.Mutex
	rows      map[int64]*member.Member
	MarkCalls []int64
	GetErr    error
	MarkErr   error
}

func NewMembers(rows ...member.Member) *Members {
	s := &Members{rows: map[int64]*member.Member{}}
	for i := range rows {
		r := rows[i]
		s.rows[r.ID] = &r
	}
	return s
}

func (s *Members) GetByID(_ context.Context, id int64) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	m, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *Members) MarkVerified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MarkCalls = append(s.MarkCalls, id)
	if s.MarkErr != nil {
		return s.MarkErr
	}
	m, ok := s.rows[id]
	if !ok {
		m = &member.Member{ID: id, CreatedAt: time.Now()}
		s.rows[id] = m
	}
	if !m.Verified {
		now := time.Now()
		m.Verified = true
		m.VerifiedAt = &now
	}
	return nil
}

// Put stores or replaces a record.
func (s *Members) Put(m member.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.ID] = &m
}

// Marked returns a copy of the ids passed to MarkVerified.
func (s *Members) Marked() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.MarkCalls...)
}

// Tracker is an in-memory challenge tracker.
type Tracker struct {
	mu         sync.Mutex
	challenges map[[2]int64]chat.Challenge
	TrackErr   error
}

func NewTracker() *Tracker {
	return &Tracker{challenges: map[[2]int64]chat.Challenge{}}
}

func (t *Tracker) Track(_ context.Context, c chat.Challenge) (*chat.Challenge, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.TrackErr != nil {
		return nil, t.TrackErr
	}
	key := [2]int64{c.ChatID, c.UserID}
	var previous *chat.Challenge
	if prev, ok := t.challenges[key]; ok {
		previous = &prev
	}
	t.challenges[key] = c
	return previous, nil
}

// Forget drops c unless a different challenge replaced it.
func (t *Tracker) Forget(_ context.Context, c chat.Challenge) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := [2]int64{c.ChatID, c.UserID}
	if cur, ok := t.challenges[key]; ok && cur.MessageID != c.MessageID {
		return nil
	}
	delete(t.challenges, key)
	return nil
}

// Get returns the tracked challenge of userID in chatID.
func (t *Tracker) Get(chatID, userID int64) (chat.Challenge, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.challenges[[2]int64{chatID, userID}]
	return c, ok
}

func (t *Tracker) Pending(_ context.Context, chatID int64) ([]chat.Challenge, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []chat.Challenge
	for k, c := range t.challenges {
		if k[0] == chatID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Len returns the number of tracked challenges.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.challenges)
}
