package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/echosage/microlog/internal/models"
	"github.com/echosage/microlog/internal/services"
)

func newTestStore(t *testing.T) (*Store, *MemoryPersister) {
	t.Helper()
	p := NewMemoryPersister()
	s, err := Open(p)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s, p
}

func TestOpenCreatesInitialDocument(t *testing.T) {
	s, _ := newTestStore(t)
	doc := s.Snapshot()
	if doc.Meta.AppVersion != appVersion {
		t.Fatalf("appVersion = %q, want %q", doc.Meta.AppVersion, appVersion)
	}
	if doc.Meta.CreatedAt == "" || doc.Meta.UpdatedAt == "" {
		t.Fatalf("missing timestamps: %+v", doc.Meta)
	}
	if doc.Participant.HandDominance != "right" {
		t.Fatalf("handDominance = %q", doc.Participant.HandDominance)
	}
	if doc.Participant.Protocol.Type != "fadiman" {
		t.Fatalf("protocol = %+v", doc.Participant.Protocol)
	}
	if doc.Baseline != nil {
		t.Fatalf("expected nil baseline, got %+v", doc.Baseline)
	}
	if len(doc.Doses) != 0 || len(doc.Daily) != 0 || len(doc.Weekly) != 0 || len(doc.FTT) != 0 {
		t.Fatalf("expected empty collections")
	}
}

func TestUpsertDailyReplacesOnDate(t *testing.T) {
	s, _ := newTestStore(t)
	first := models.DailyEntry{ID: "a", Date: "2025-03-09", Mood: 3}
	second := models.DailyEntry{ID: "b", Date: "2025-03-09", Mood: 8}
	other := models.DailyEntry{ID: "c", Date: "2025-03-08", Mood: 5}
	for _, e := range []models.DailyEntry{first, other, second} {
		cp := e
		if err := s.UpsertDaily(&cp); err != nil {
			t.Fatalf("upsert %s: %v", e.ID, err)
		}
	}
	got := s.ListDailyAsc()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("got %q, %q; want c, b", got[0].ID, got[1].ID)
	}
	if got[1].Mood != 8 {
		t.Fatalf("mood = %d, want 8 (replace, not merge)", got[1].Mood)
	}
}

func TestUpsertWeeklyReplacesOnWeekStart(t *testing.T) {
	s, _ := newTestStore(t)
	w1 := models.WeeklyCheckin{ID: "w1", WeekStart: "2025-03-02", Notes: "first"}
	w2 := models.WeeklyCheckin{ID: "w2", WeekStart: "2025-03-02", Notes: "second"}
	for _, w := range []models.WeeklyCheckin{w1, w2} {
		cp := w
		if err := s.UpsertWeekly(&cp); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	got := s.ListWeeklyAsc()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != "w2" || got[0].Notes != "second" {
		t.Fatalf("got %+v, want w2", got[0])
	}
}

func TestAppendDoseKeepsDuplicateDays(t *testing.T) {
	s, _ := newTestStore(t)
	d1 := models.DoseRecord{ID: "d1", TS: "2025-03-09T08:00"}
	d2 := models.DoseRecord{ID: "d2", TS: "2025-03-09T20:00"}
	for _, d := range []models.DoseRecord{d2, d1} {
		cp := d
		if err := s.AppendDose(&cp); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	asc := s.ListDosesAsc()
	if len(asc) != 2 || asc[0].ID != "d1" || asc[1].ID != "d2" {
		t.Fatalf("asc order wrong: %+v", asc)
	}
	desc := s.ListDosesDesc()
	if desc[0].ID != "d2" {
		t.Fatalf("desc order wrong: %+v", desc)
	}
}

func TestMutationStampsUpdatedAt(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Snapshot().Meta.UpdatedAt
	s.now = func() time.Time { return time.Date(2025, 3, 11, 9, 30, 0, 0, time.UTC) }
	if err := s.AppendDose(&models.DoseRecord{ID: "d", TS: "2025-03-11T09:00"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	after := s.Snapshot().Meta.UpdatedAt
	if after == before {
		t.Fatalf("updatedAt did not change")
	}
	if after != "2025-03-11T09:30:00Z" {
		t.Fatalf("updatedAt = %q", after)
	}
}

func TestFailedSaveLeavesStateUntouched(t *testing.T) {
	s, p := newTestStore(t)
	if err := s.UpsertDaily(&models.DailyEntry{ID: "a", Date: "2025-03-09", Mood: 3}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p.FailWith(errors.New("disk full"))
	err := s.UpsertDaily(&models.DailyEntry{ID: "b", Date: "2025-03-10", Mood: 5})
	if err == nil {
		t.Fatalf("expected save error")
	}
	got := s.ListDailyAsc()
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("state changed despite failed save: %+v", got)
	}
}

func TestReplaceAndReset(t *testing.T) {
	s, _ := newTestStore(t)
	incoming := &models.Document{
		Meta:        models.Meta{AppVersion: "1.0.0", CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-06-01T00:00:00Z"},
		Participant: models.Participant{Initials: "JD", HandDominance: "left"},
		Daily:       []models.DailyEntry{{ID: "x", Date: "2024-05-01", Mood: 6}},
	}
	if err := s.Replace(incoming); err != nil {
		t.Fatalf("replace: %v", err)
	}
	doc := s.Snapshot()
	if doc.Participant.Initials != "JD" || len(doc.Daily) != 1 {
		t.Fatalf("replace did not take: %+v", doc)
	}
	if doc.Meta.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Fatalf("createdAt should survive import, got %q", doc.Meta.CreatedAt)
	}
	if doc.Meta.UpdatedAt == "2024-06-01T00:00:00Z" {
		t.Fatalf("updatedAt should be restamped on import")
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	doc = s.Snapshot()
	if doc.Participant.Initials != "" || len(doc.Daily) != 0 {
		t.Fatalf("reset did not clear: %+v", doc)
	}
	if doc.Participant.Protocol.Type != "fadiman" {
		t.Fatalf("reset should restore defaults, got %+v", doc.Participant.Protocol)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.UpsertDaily(&models.DailyEntry{ID: "a", Date: "2025-03-09", Mood: 3}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	snap := s.Snapshot()
	snap.Daily[0].Mood = 99
	snap.Participant.Goals = append(snap.Participant.Goals, "tamper")
	fresh := s.Snapshot()
	if fresh.Daily[0].Mood != 3 {
		t.Fatalf("snapshot aliases store state")
	}
	if len(fresh.Participant.Goals) != 0 {
		t.Fatalf("goals aliased: %+v", fresh.Participant.Goals)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.UpsertDaily(&models.DailyEntry{ID: "a", Date: "2025-03-09", Mood: 3}); err != nil {
		t.Fatalf("seed daily: %v", err)
	}
	if err := s.AppendDose(&models.DoseRecord{ID: "d", TS: "2025-03-09T08:00", Substance: "psilocybin", Form: "capsule"}); err != nil {
		t.Fatalf("seed dose: %v", err)
	}
	want := s.Snapshot()

	codec := services.NewExportService(s)
	data, err := codec.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := codec.Import(data); err != nil {
		t.Fatalf("import: %v", err)
	}
	// The clock is fixed, so the restamped updatedAt matches and the
	// documents compare deep-equal.
	if got := s.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microlog.json")
	p := NewFilePersister(path)
	s, err := Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	if err := s.UpsertDaily(&models.DailyEntry{ID: "a", Date: "2025-03-09", Mood: 3, SleepHours: 7.5}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.AppendTapTest(&models.TapTestRecord{ID: "t", Date: "2025-03-09", Hand: models.HandDominant, TrialSeconds: 10, Trial1: 50, Trial2: 52, Trial3: 48, Avg: 50}); err != nil {
		t.Fatalf("append tap: %v", err)
	}
	want := s.Snapshot()

	reopened, err := Open(NewFilePersister(path))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Snapshot()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
}
