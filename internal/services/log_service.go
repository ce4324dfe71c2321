package services

import (
	"strings"
	"time"

	"github.com/echosage/microlog/internal/models"
)

type LogStore interface {
	AppendDose(d *models.DoseRecord) error
	UpsertDaily(e *models.DailyEntry) error
	UpsertWeekly(w *models.WeeklyCheckin) error
	SetParticipant(p models.Participant) error
	SetBaseline(b *models.Baseline) error
}

// LogService validates incoming records and writes them through the store.
// Optional numeric fields are deliberately lenient (zero or null), required
// ones reject the save.
type LogService struct {
	store LogStore
	now   func() time.Time
}

func NewLogService(store LogStore) *LogService {
	return &LogService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// AddDose appends one intake record. Doses have no natural key; several per
// day are expected.
func (s *LogService) AddDose(d *models.DoseRecord) (*models.DoseRecord, error) {
	if d == nil {
		return nil, NewInvalidError("dose required")
	}
	if strings.TrimSpace(d.TS) == "" {
		return nil, NewInvalidError("dose timestamp required")
	}
	if d.ID == "" {
		d.ID = shortID(8)
	}
	if d.Form == "" {
		d.Form = d.Substance
	}
	if !d.Adverse {
		d.AdverseNotes = ""
	}
	if err := s.store.AppendDose(d); err != nil {
		return nil, err
	}
	return d, nil
}

// SaveDaily upserts the check-in for its date. At least one quick-log field
// must be filled in, otherwise the save is rejected.
func (s *LogService) SaveDaily(e *models.DailyEntry) (*models.DailyEntry, error) {
	if e == nil {
		return nil, NewInvalidError("entry required")
	}
	if strings.TrimSpace(e.Date) == "" {
		return nil, NewInvalidError("entry date required")
	}
	if !e.HasQuickLog() {
		return nil, NewInvalidError("fill at least one quick-log field")
	}
	if e.ID == "" {
		e.ID = shortID(8)
	}
	if !e.Adverse {
		e.SafetyNotes = ""
	}
	if err := s.store.UpsertDaily(e); err != nil {
		return nil, err
	}
	return e, nil
}

// QuestionnaireAnswers carries one complete answer set per instrument.
type QuestionnaireAnswers struct {
	PHQ9  []int `json:"phq9"`
	GAD7  []int `json:"gad7"`
	PSS10 []int `json:"pss10"`
	WHO5  []int `json:"who5"`
}

func scoreAll(a QuestionnaireAnswers) (phq, gad, pss, who models.ScoreResult, err error) {
	if phq, err = ScoreInstrument(InstrumentPHQ9, a.PHQ9); err != nil {
		return
	}
	if gad, err = ScoreInstrument(InstrumentGAD7, a.GAD7); err != nil {
		return
	}
	if pss, err = ScoreInstrument(InstrumentPSS10, a.PSS10); err != nil {
		return
	}
	who, err = ScoreInstrument(InstrumentWHO5, a.WHO5)
	return
}

// SaveWeekly scores the four instruments and upserts the check-in for the
// given week-start date.
func (s *LogService) SaveWeekly(weekStart, notes string, answers QuestionnaireAnswers) (*models.WeeklyCheckin, error) {
	if strings.TrimSpace(weekStart) == "" {
		return nil, NewInvalidError("week start date required")
	}
	phq, gad, pss, who, err := scoreAll(answers)
	if err != nil {
		return nil, err
	}
	w := &models.WeeklyCheckin{
		ID:        shortID(8),
		WeekStart: weekStart,
		PHQ9:      phq,
		GAD7:      gad,
		PSS10:     pss,
		WHO5:      who,
		Notes:     notes,
	}
	if err := s.store.UpsertWeekly(w); err != nil {
		return nil, err
	}
	return w, nil
}

// SaveBaseline overwrites the participant profile and the baseline result in
// one workflow. The baseline is never partially updated.
func (s *LogService) SaveBaseline(profile models.Participant, answers QuestionnaireAnswers) (*models.Baseline, error) {
	normalized, err := NormalizeProtocol(profile.Protocol)
	if err != nil {
		return nil, err
	}
	profile.Protocol = normalized
	phq, gad, pss, who, err := scoreAll(answers)
	if err != nil {
		return nil, err
	}
	b := &models.Baseline{
		Date:  s.now().Format("2006-01-02"),
		PHQ9:  phq,
		GAD7:  gad,
		PSS10: pss,
		WHO5:  who,
	}
	if err := s.store.SetParticipant(profile); err != nil {
		return nil, err
	}
	if err := s.store.SetBaseline(b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateParticipant overwrites the profile, e.g. a protocol change from the
// settings screen.
func (s *LogService) UpdateParticipant(profile models.Participant) error {
	normalized, err := NormalizeProtocol(profile.Protocol)
	if err != nil {
		return err
	}
	profile.Protocol = normalized
	return s.store.SetParticipant(profile)
}

// Named dosing regimens and their Sun..Sat patterns.
var protocolPresets = map[string][]int{
	"fadiman": {1, 0, 0, 1, 0, 0, 1},
	"stamets": {1, 1, 1, 1, 0, 0, 0},
}

// NormalizeProtocol resolves preset regimens to their fixed patterns and
// checks that a custom pattern covers all seven weekdays.
func NormalizeProtocol(p models.Protocol) (models.Protocol, error) {
	if pattern, ok := protocolPresets[p.Type]; ok {
		p.Pattern = append([]int(nil), pattern...)
		return p, nil
	}
	if len(p.Pattern) != 7 {
		return p, NewInvalidError("protocol pattern must cover 7 days")
	}
	for _, d := range p.Pattern {
		if d != 0 && d != 1 {
			return p, NewInvalidError("protocol pattern entries must be 0 or 1")
		}
	}
	return p, nil
}
