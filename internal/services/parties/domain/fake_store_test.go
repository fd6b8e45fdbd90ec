package domain

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"
)

// fakeStore serializes WithPartyLock callers per party and stages writes so a
// failing callback leaves committed state untouched.
type fakeStore struct {
	mu             sync.Mutex
	partyLocks     map[string]*sync.Mutex
	parties        map[string]Party
	participations map[string]Participation
	// history records every committed status per participation id.
	history map[string][]Status
	// countYield widens the check-then-write window inside the lock.
	countYield bool
	listErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		partyLocks:     make(map[string]*sync.Mutex),
		parties:        make(map[string]Party),
		participations: make(map[string]Participation),
		history:        make(map[string][]Status),
	}
}

func (s *fakeStore) CreateParty(_ context.Context, party Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parties[party.ID]; ok {
		return ErrConflict
	}
	s.parties[party.ID] = party
	return nil
}

func (s *fakeStore) GetParty(_ context.Context, partyID string) (Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	party, ok := s.parties[partyID]
	if !ok {
		return Party{}, ErrPartyNotFound
	}
	return party, nil
}

func (s *fakeStore) GetParticipation(_ context.Context, participationID string) (Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.participations[participationID]
	if !ok {
		return Participation{}, ErrParticipationNotFound
	}
	return record, nil
}

func (s *fakeStore) ListParticipations(_ context.Context, partyID string, status Status) ([]Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Participation
	for _, record := range s.participations {
		if record.PartyID == partyID && record.Status == status {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) FindParticipation(_ context.Context, partyID string, userID string) (Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(partyID, userID, nil)
}

func (s *fakeStore) CountApproved(_ context.Context, partyID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countApprovedLocked(partyID, nil), nil
}

func (s *fakeStore) ListOrganizedParties(_ context.Context, userID string, limit int, offset int) ([]Party, int, error) {
	return s.pageParties(func(p Party) bool { return p.OrganizerUserID == userID }, limit, offset)
}

func (s *fakeStore) ListParticipatedParties(_ context.Context, userID string, limit int, offset int) ([]Party, int, error) {
	s.mu.Lock()
	joined := map[string]bool{}
	for _, record := range s.participations {
		if record.ParticipantUserID == userID && record.Status == StatusApproved {
			joined[record.PartyID] = true
		}
	}
	s.mu.Unlock()
	return s.pageParties(func(p Party) bool { return joined[p.ID] }, limit, offset)
}

func (s *fakeStore) pageParties(match func(Party) bool, limit, offset int) ([]Party, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Party
	for _, party := range s.parties {
		if match(party) {
			matched = append(matched, party)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].GatherAt.Equal(matched[j].GatherAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].GatherAt.After(matched[j].GatherAt)
	})
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return slices.Clone(matched[offset:end]), total, nil
}

func (s *fakeStore) WithPartyLock(ctx context.Context, partyID string, fn func(tx PartyTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	lock, ok := s.partyLocks[partyID]
	if !ok {
		lock = &sync.Mutex{}
		s.partyLocks[partyID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	party, ok := s.parties[partyID]
	s.mu.Unlock()
	if !ok {
		return ErrPartyNotFound
	}

	tx := &fakeTx{store: s, party: party, staged: map[string]Participation{}}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.partyChanged {
		s.parties[partyID] = tx.party
	}
	for id, record := range tx.staged {
		s.participations[id] = record
		s.history[id] = append(s.history[id], record.Status)
	}
	return nil
}

func (s *fakeStore) findLocked(partyID, userID string, staged map[string]Participation) (Participation, error) {
	for _, record := range staged {
		if record.PartyID == partyID && record.ParticipantUserID == userID {
			return record, nil
		}
	}
	for _, record := range s.participations {
		if record.PartyID == partyID && record.ParticipantUserID == userID {
			return record, nil
		}
	}
	return Participation{}, ErrParticipationNotFound
}

func (s *fakeStore) countApprovedLocked(partyID string, staged map[string]Participation) int {
	merged := maps.Clone(s.participations)
	maps.Copy(merged, staged)
	count := 0
	for _, record := range merged {
		if record.PartyID == partyID && record.Status == StatusApproved {
			count++
		}
	}
	return count
}

func (s *fakeStore) participation(id string) Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participations[id]
}

func (s *fakeStore) statusHistory(id string) []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history[id])
}

type fakeTx struct {
	store        *fakeStore
	party        Party
	partyChanged bool
	staged       map[string]Participation
}

func (tx *fakeTx) Party() Party { return tx.party }

func (tx *fakeTx) GetParticipation(_ context.Context, participationID string) (Participation, error) {
	if record, ok := tx.staged[participationID]; ok {
		return record, nil
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	record, ok := tx.store.participations[participationID]
	if !ok || record.PartyID != tx.party.ID {
		return Participation{}, ErrParticipationNotFound
	}
	return record, nil
}

func (tx *fakeTx) FindParticipation(_ context.Context, userID string) (Participation, error) {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	return tx.store.findLocked(tx.party.ID, userID, tx.staged)
}

func (tx *fakeTx) CountApproved(_ context.Context) (int, error) {
	tx.store.mu.Lock()
	count := tx.store.countApprovedLocked(tx.party.ID, tx.staged)
	yield := tx.store.countYield
	tx.store.mu.Unlock()
	if yield {
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	return count, nil
}

func (tx *fakeTx) PutParticipation(_ context.Context, record Participation) error {
	if record.PartyID != tx.party.ID {
		return fmt.Errorf("participation %s belongs to party %s, not %s", record.ID, record.PartyID, tx.party.ID)
	}
	tx.store.mu.Lock()
	existing, err := tx.store.findLocked(record.PartyID, record.ParticipantUserID, tx.staged)
	tx.store.mu.Unlock()
	if err == nil && existing.ID != record.ID {
		return ErrConflict
	}
	if err != nil && !errors.Is(err, ErrParticipationNotFound) {
		return err
	}
	tx.staged[record.ID] = record
	return nil
}

func (tx *fakeTx) UpdateParty(_ context.Context, party Party) error {
	tx.party = party
	tx.partyChanged = true
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) snapshot() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.events)
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func sequentialIDGenerator(prefix string) func() (string, error) {
	var (
		mu   sync.Mutex
		next int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%s-%d", prefix, next), nil
	}
}
