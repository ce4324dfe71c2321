package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/echosage/microlog/internal/models"
)

const appVersion = "1.3.0"

// Persister is the storage port behind the store. Load returns (nil, nil)
// when no prior state exists; Save writes the full document or nothing.
type Persister interface {
	Load() (*models.Document, error)
	Save(doc *models.Document) error
}

// Store exclusively owns the record collections. Every mutation stamps
// meta.updatedAt and persists the whole document through the port before it
// becomes visible to readers.
type Store struct {
	mu      sync.RWMutex
	doc     *models.Document
	persist Persister
	now     func() time.Time
}

// Open loads existing state from the persister, or creates and persists a
// fresh document on first launch.
func Open(p Persister) (*Store, error) {
	doc, err := p.Load()
	if err != nil {
		return nil, err
	}
	s := &Store{persist: p, now: func() time.Time { return time.Now().UTC() }}
	if doc == nil {
		doc = initialDocument(s.now())
		if err := p.Save(doc); err != nil {
			return nil, err
		}
	}
	normalizeDocument(doc)
	s.doc = doc
	return s, nil
}

func initialDocument(now time.Time) *models.Document {
	iso := now.Format(time.RFC3339)
	return &models.Document{
		Meta: models.Meta{AppVersion: appVersion, CreatedAt: iso, UpdatedAt: iso},
		Participant: models.Participant{
			HandDominance: "right",
			Goals:         []string{},
			Protocol:      models.Protocol{Type: "fadiman", Pattern: []int{1, 0, 0, 1, 0, 0, 1}},
		},
		Doses:  []models.DoseRecord{},
		Daily:  []models.DailyEntry{},
		Weekly: []models.WeeklyCheckin{},
		FTT:    []models.TapTestRecord{},
		PVT:    []json.RawMessage{},
	}
}

// normalizeDocument keeps collection slices non-nil so exports and JSON
// round-trips stay shape-stable.
func normalizeDocument(doc *models.Document) {
	if doc.Doses == nil {
		doc.Doses = []models.DoseRecord{}
	}
	if doc.Daily == nil {
		doc.Daily = []models.DailyEntry{}
	}
	if doc.Weekly == nil {
		doc.Weekly = []models.WeeklyCheckin{}
	}
	if doc.FTT == nil {
		doc.FTT = []models.TapTestRecord{}
	}
	if doc.PVT == nil {
		doc.PVT = []json.RawMessage{}
	}
	if doc.Participant.Goals == nil {
		doc.Participant.Goals = []string{}
	}
}

func cloneDocument(doc *models.Document) *models.Document {
	b, err := json.Marshal(doc)
	if err != nil {
		// The document is plain data; marshaling cannot fail in practice.
		panic(err)
	}
	var out models.Document
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

// update runs a mutation against a copy of the document, persists it, and
// only then swaps it in. A failed save leaves the visible state untouched.
func (s *Store) update(mutate func(doc *models.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneDocument(s.doc)
	mutate(next)
	normalizeDocument(next)
	next.Meta.UpdatedAt = s.now().Format(time.RFC3339)
	if err := s.persist.Save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *Store) AppendDose(d *models.DoseRecord) error {
	return s.update(func(doc *models.Document) {
		doc.Doses = append(doc.Doses, *d)
	})
}

// UpsertDaily replaces any entry sharing the incoming date, then inserts.
// This is a full replace on the natural key, not a merge.
func (s *Store) UpsertDaily(e *models.DailyEntry) error {
	return s.update(func(doc *models.Document) {
		kept := doc.Daily[:0]
		for _, cur := range doc.Daily {
			if cur.Date != e.Date {
				kept = append(kept, cur)
			}
		}
		doc.Daily = append(kept, *e)
	})
}

// UpsertWeekly replaces any check-in sharing the incoming week start.
func (s *Store) UpsertWeekly(w *models.WeeklyCheckin) error {
	return s.update(func(doc *models.Document) {
		kept := doc.Weekly[:0]
		for _, cur := range doc.Weekly {
			if cur.WeekStart != w.WeekStart {
				kept = append(kept, cur)
			}
		}
		doc.Weekly = append(kept, *w)
	})
}

func (s *Store) AppendTapTest(r *models.TapTestRecord) error {
	return s.update(func(doc *models.Document) {
		doc.FTT = append(doc.FTT, *r)
	})
}

func (s *Store) SetParticipant(p models.Participant) error {
	return s.update(func(doc *models.Document) {
		doc.Participant = p
	})
}

func (s *Store) SetBaseline(b *models.Baseline) error {
	return s.update(func(doc *models.Document) {
		cp := *b
		doc.Baseline = &cp
	})
}

// Replace swaps in a whole imported document. Shape validation happens in
// the codec; the store only normalizes and persists.
func (s *Store) Replace(doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneDocument(doc)
	normalizeDocument(next)
	next.Meta.UpdatedAt = s.now().Format(time.RFC3339)
	if err := s.persist.Save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// Reset wipes all data back to first-launch defaults.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := initialDocument(s.now())
	if err := s.persist.Save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *Store) Participant() models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDocument(s.doc).Participant
}

func (s *Store) Baseline() *models.Baseline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc.Baseline == nil {
		return nil
	}
	cp := *s.doc.Baseline
	cp.PHQ9.Items = append([]int(nil), cp.PHQ9.Items...)
	cp.GAD7.Items = append([]int(nil), cp.GAD7.Items...)
	cp.PSS10.Items = append([]int(nil), cp.PSS10.Items...)
	cp.WHO5.Items = append([]int(nil), cp.WHO5.Items...)
	return &cp
}

// Snapshot returns a deep copy of the full document.
func (s *Store) Snapshot() *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDocument(s.doc)
}

// Doses sort by timestamp, daily entries by date, weekly check-ins by week
// start, tap tests by date. Ascending feeds charts, descending feeds lists.

func (s *Store) ListDosesAsc() []models.DoseRecord {
	return s.sortedDoses(func(a, b models.DoseRecord) bool { return a.TS < b.TS })
}

func (s *Store) ListDosesDesc() []models.DoseRecord {
	return s.sortedDoses(func(a, b models.DoseRecord) bool { return a.TS > b.TS })
}

func (s *Store) sortedDoses(less func(a, b models.DoseRecord) bool) []models.DoseRecord {
	s.mu.RLock()
	out := append([]models.DoseRecord(nil), s.doc.Doses...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Store) ListDailyAsc() []models.DailyEntry {
	return s.sortedDaily(func(a, b models.DailyEntry) bool { return a.Date < b.Date })
}

func (s *Store) ListDailyDesc() []models.DailyEntry {
	return s.sortedDaily(func(a, b models.DailyEntry) bool { return a.Date > b.Date })
}

func (s *Store) sortedDaily(less func(a, b models.DailyEntry) bool) []models.DailyEntry {
	s.mu.RLock()
	out := append([]models.DailyEntry(nil), s.doc.Daily...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Store) ListWeeklyAsc() []models.WeeklyCheckin {
	return s.sortedWeekly(func(a, b models.WeeklyCheckin) bool { return a.WeekStart < b.WeekStart })
}

func (s *Store) ListWeeklyDesc() []models.WeeklyCheckin {
	return s.sortedWeekly(func(a, b models.WeeklyCheckin) bool { return a.WeekStart > b.WeekStart })
}

func (s *Store) sortedWeekly(less func(a, b models.WeeklyCheckin) bool) []models.WeeklyCheckin {
	s.mu.RLock()
	out := append([]models.WeeklyCheckin(nil), s.doc.Weekly...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Store) ListTapTestsAsc() []models.TapTestRecord {
	return s.sortedTapTests(func(a, b models.TapTestRecord) bool { return a.Date < b.Date })
}

func (s *Store) ListTapTestsDesc() []models.TapTestRecord {
	return s.sortedTapTests(func(a, b models.TapTestRecord) bool { return a.Date > b.Date })
}

func (s *Store) sortedTapTests(less func(a, b models.TapTestRecord) bool) []models.TapTestRecord {
	s.mu.RLock()
	out := append([]models.TapTestRecord(nil), s.doc.FTT...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
