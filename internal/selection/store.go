package selection

import (
	"log/slog"
	"sync"

	"sample-annotator/internal/prefs"
)

// keyPrefix namespaces persisted selection records in the preferences file.
const keyPrefix = "selection/"

// Store keeps the in-memory selection state per image id and mirrors it
// to durable storage. The in-memory state stays authoritative for the
// session: a persistence failure is logged and swallowed, so an outage
// only costs durability across restarts.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
	prefs  *prefs.Prefs
	logger *slog.Logger
}

// NewStore creates a selection store backed by the given preferences.
func NewStore(p *prefs.Prefs, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		states: make(map[string]State),
		prefs:  p,
		logger: logger,
	}
}

// Get returns the selection state for an image, loading the persisted
// record on first access. The second return is false when no selection
// exists for the image.
func (s *Store) Get(imageID string) (State, bool) {
	s.mu.RLock()
	st, ok := s.states[imageID]
	s.mu.RUnlock()
	if ok {
		return st, true
	}

	var rec State
	if !s.prefs.GetRecord(keyPrefix+imageID, &rec) {
		return DefaultState(), false
	}
	if rec.Scale <= 0 {
		rec.Scale = 1
	}
	rec.Scale = ClampScale(rec.Scale)
	rec.Rotation = rec.Rotation.Normalize()

	s.mu.Lock()
	s.states[imageID] = rec
	s.mu.Unlock()
	return rec, true
}

// Set stores the state in memory and persists it.
func (s *Store) Set(imageID string, st State) {
	st.Scale = ClampScale(st.Scale)
	st.Rotation = st.Rotation.Normalize()

	s.mu.Lock()
	s.states[imageID] = st
	s.mu.Unlock()

	s.prefs.SetRecord(keyPrefix+imageID, st)
	if err := s.prefs.Save(); err != nil {
		s.logger.Warn("selection persistence failed", "image", imageID, "err", err)
	}
}

// SetTransient stores the state in memory only. Used while a gesture is
// in flight; the final state is persisted once when the gesture ends.
func (s *Store) SetTransient(imageID string, st State) {
	st.Scale = ClampScale(st.Scale)
	st.Rotation = st.Rotation.Normalize()

	s.mu.Lock()
	s.states[imageID] = st
	s.mu.Unlock()
}

// SetDimensions updates the externally supplied measurements. Passing nil
// removes the selection and deletes its persisted record.
func (s *Store) SetDimensions(imageID string, d *Dimensions) {
	if d == nil {
		s.Remove(imageID)
		return
	}
	st, ok := s.Get(imageID)
	if !ok {
		st = DefaultState()
	}
	dims := *d
	st.Dimensions = &dims
	s.Set(imageID, st)
}

// Remove drops the selection for an image from memory and durable storage.
func (s *Store) Remove(imageID string) {
	s.mu.Lock()
	delete(s.states, imageID)
	s.mu.Unlock()

	s.prefs.Delete(keyPrefix + imageID)
	if err := s.prefs.Save(); err != nil {
		s.logger.Warn("selection record delete failed", "image", imageID, "err", err)
	}
}
