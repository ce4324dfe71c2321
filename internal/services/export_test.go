package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/echosage/microlog/internal/models"
)

type stubCodecStore struct {
	doc      *models.Document
	replaced *models.Document
}

func (s *stubCodecStore) Snapshot() *models.Document { return s.doc }

func (s *stubCodecStore) Replace(doc *models.Document) error {
	s.replaced = doc
	return nil
}

func codecFixture() *stubCodecStore {
	return &stubCodecStore{doc: &models.Document{
		Meta:        models.Meta{AppVersion: "1.3.0", CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-10T00:00:00Z"},
		Participant: models.Participant{Initials: "JD", HandDominance: "right", Goals: []string{"focus"}, Protocol: models.Protocol{Type: "fadiman", Pattern: []int{1, 0, 0, 1, 0, 0, 1}}},
		Baseline: &models.Baseline{
			Date:  "2025-03-01",
			PHQ9:  models.ScoreResult{Items: []int{1, 1, 0, 0, 0, 0, 0, 0, 0}, Total: 2},
			GAD7:  models.ScoreResult{Items: []int{0, 0, 0, 0, 0, 0, 0}, Total: 0},
			PSS10: models.ScoreResult{Items: []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, Total: 10},
			WHO5:  models.ScoreResult{Items: []int{3, 3, 3, 3, 3}, Total: 15},
		},
		Doses: []models.DoseRecord{
			{ID: "d1", TS: "2025-03-09T08:00", DoseAmount: 0.1, DoseUnit: "g", Substance: "psilocybin", Form: "capsule", Strain: "blue meanie", Route: "oral"},
			{ID: "d2", TS: "2025-03-12T08:00", DoseAmount: 0.1, DoseUnit: "g", Substance: "psilocybin", Form: "capsule", Route: "oral"},
		},
		Daily: []models.DailyEntry{
			{ID: "a", Date: "2025-03-09", Mood: 6, SleepHours: 7.5, OtherNotes: `slept late, woke "rested"`},
			{ID: "b", Date: "2025-03-10", Mood: 7},
		},
		Weekly: []models.WeeklyCheckin{},
		FTT:    []models.TapTestRecord{},
	}}
}

func TestExportJSONMirrorsSnapshot(t *testing.T) {
	store := codecFixture()
	b, err := NewExportService(store).ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var got models.Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if got.Meta != store.doc.Meta {
		t.Fatalf("meta = %+v", got.Meta)
	}
	if len(got.Daily) != 2 || got.Daily[0].OtherNotes != store.doc.Daily[0].OtherNotes {
		t.Fatalf("daily = %+v", got.Daily)
	}
}

func TestExportCSVQuoting(t *testing.T) {
	b, err := NewExportService(codecFixture()).ExportCSV("daily")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	header := rows[0]
	col := -1
	for i, h := range header {
		if h == "otherNotes" {
			col = i
		}
	}
	if col < 0 {
		t.Fatalf("otherNotes missing from header %v", header)
	}
	if rows[1][col] != `slept late, woke "rested"` {
		t.Fatalf("cell = %q", rows[1][col])
	}
}

func TestExportCSVKeyUnion(t *testing.T) {
	// The first dose has a strain, the second omits it. The header carries
	// the union and the second row leaves the cell empty.
	b, err := NewExportService(codecFixture()).ExportCSV("doses")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	col := -1
	for i, h := range rows[0] {
		if h == "strain" {
			col = i
		}
	}
	if col < 0 {
		t.Fatalf("strain missing from header %v", rows[0])
	}
	if rows[1][col] != "blue meanie" || rows[2][col] != "" {
		t.Fatalf("strain cells = %q, %q", rows[1][col], rows[2][col])
	}
}

func TestExportCSVBaselineFlattens(t *testing.T) {
	b, err := NewExportService(codecFixture()).ExportCSV("baseline")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	byName := map[string]string{}
	for i, h := range rows[0] {
		byName[h] = rows[1][i]
	}
	if byName["date"] != "2025-03-01" {
		t.Fatalf("date = %q", byName["date"])
	}
	if byName["phq9_total"] != "2" {
		t.Fatalf("phq9_total = %q", byName["phq9_total"])
	}
	if byName["who5_items"] != "[3,3,3,3,3]" {
		t.Fatalf("who5_items = %q", byName["who5_items"])
	}
}

func TestExportCSVNullRendersEmpty(t *testing.T) {
	b, err := NewExportService(codecFixture()).ExportCSV("daily")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	col := -1
	for i, h := range rows[0] {
		if h == "productivity" {
			col = i
		}
	}
	if col < 0 {
		t.Fatalf("productivity missing from header %v", rows[0])
	}
	if rows[1][col] != "" {
		t.Fatalf("null cell = %q, want empty", rows[1][col])
	}
}

func TestExportCSVEmptyCollection(t *testing.T) {
	b, err := NewExportService(codecFixture()).ExportCSV("weekly")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("empty collection produced %q", b)
	}
}

func TestExportCSVUnknownCollection(t *testing.T) {
	if _, err := NewExportService(codecFixture()).ExportCSV("pvt2"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestImportValid(t *testing.T) {
	store := codecFixture()
	svc := NewExportService(store)
	data, err := svc.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	target := &stubCodecStore{}
	if err := NewExportService(target).Import(data); err != nil {
		t.Fatalf("import: %v", err)
	}
	if target.replaced == nil {
		t.Fatalf("store not replaced")
	}
	if target.replaced.Participant.Initials != "JD" || len(target.replaced.Daily) != 2 {
		t.Fatalf("replaced doc = %+v", target.replaced)
	}
}

func TestImportRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not JSON", "{nope"},
		{"missing meta", `{"participant":{},"daily":[]}`},
		{"missing daily", `{"meta":{},"participant":{}}`},
		{"null participant", `{"meta":{},"participant":null,"daily":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubCodecStore{}
			err := NewExportService(store).Import([]byte(tc.data))
			if err == nil {
				t.Fatalf("expected error")
			}
			se, ok := AsServiceError(err)
			if !ok || se.Code != ErrorInvalid {
				t.Fatalf("err = %v, want invalid", err)
			}
			if store.replaced != nil {
				t.Fatalf("store replaced despite invalid payload")
			}
		})
	}
}

func TestCollectionsOrder(t *testing.T) {
	want := "baseline,doses,daily,weekly,ftt"
	if got := strings.Join(Collections(), ","); got != want {
		t.Fatalf("collections = %q, want %q", got, want)
	}
}

