package subs

import (
	"sort"
	"strings"
	"sync"
)

type UserSubs struct {
	// Principal is the wallet whose tracked transactions this chat follows.
	Principal *string
	// TxIDs are transactions this chat asked to be told about.
	TxIDs map[string]struct{}
}

type Store struct {
	mu   sync.RWMutex
	data map[int64]*UserSubs
}

func NewStore() *Store {
	return &Store{data: make(map[int64]*UserSubs)}
}

func (s *Store) SetPrincipal(chatID int64, principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := strings.TrimSpace(principal)
	u := s.getOrCreate(chatID)
	u.Principal = &p
}

func (s *Store) ClearPrincipal(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.data[chatID]
	if u == nil {
		return
	}
	u.Principal = nil
	s.cleanupIfEmpty(chatID, u)
}

func (s *Store) WatchTx(chatID int64, txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreate(chatID)
	if u.TxIDs == nil {
		u.TxIDs = make(map[string]struct{})
	}
	u.TxIDs[NormalizeTxID(txID)] = struct{}{}
}

// ForgetTx drops txID from every chat once its outcome has been delivered.
func (s *Store) ForgetTx(txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := NormalizeTxID(txID)
	for chatID, u := range s.data {
		delete(u.TxIDs, id)
		s.cleanupIfEmpty(chatID, u)
	}
}

func (s *Store) ClearAll(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, chatID)
}

// GetCopy returns a detached copy so callers cannot race with the store.
func (s *Store) GetCopy(chatID int64) (UserSubs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.data[chatID]
	if u == nil {
		return UserSubs{}, false
	}

	var out UserSubs
	if u.Principal != nil {
		p := *u.Principal
		out.Principal = &p
	}
	if len(u.TxIDs) > 0 {
		out.TxIDs = make(map[string]struct{}, len(u.TxIDs))
		for id := range u.TxIDs {
			out.TxIDs[id] = struct{}{}
		}
	}
	return out, true
}

// MatchTx returns the chats that watch txID directly or watch its sender, in
// ascending chat id order.
func (s *Store) MatchTx(txID, sender string) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := NormalizeTxID(txID)
	var out []int64
	for chatID, u := range s.data {
		if u == nil {
			continue
		}

		if _, ok := u.TxIDs[id]; ok {
			out = append(out, chatID)
			continue
		}

		if u.Principal != nil && sender != "" && strings.EqualFold(*u.Principal, sender) {
			out = append(out, chatID)
			continue
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NormalizeTxID lowercases the id and ensures the 0x prefix.
func NormalizeTxID(txID string) string {
	id := strings.ToLower(strings.TrimSpace(txID))
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}

func (s *Store) getOrCreate(chatID int64) *UserSubs {
	u := s.data[chatID]
	if u == nil {
		u = &UserSubs{}
		s.data[chatID] = u
	}
	return u
}

func (s *Store) cleanupIfEmpty(chatID int64, u *UserSubs) {
	if u == nil {
		return
	}
	if u.Principal == nil && len(u.TxIDs) == 0 {
		delete(s.data, chatID)
	}
}
