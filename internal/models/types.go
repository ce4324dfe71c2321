package models

import "encoding/json"

// Document is the full persisted state. JSON field names follow the storage
// schema so that exported documents stay portable across app versions.
type Document struct {
	Meta        Meta              `json:"meta"`
	Participant Participant       `json:"participant"`
	Baseline    *Baseline         `json:"baseline"`
	Doses       []DoseRecord      `json:"doses"`
	Daily       []DailyEntry      `json:"daily"`
	Weekly      []WeeklyCheckin   `json:"weekly"`
	FTT         []TapTestRecord   `json:"ftt"`
	PVT         []json.RawMessage `json:"pvt"` // reserved collection, carried as-is
}

type Meta struct {
	AppVersion string `json:"appVersion"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// Protocol describes the dosing schedule: a named regimen plus a 7-element
// Sun..Sat bitmask of dosing days.
type Protocol struct {
	Type    string `json:"type"`
	Pattern []int  `json:"pattern"`
}

// Participant is the mutable profile singleton. The baseline workflow
// overwrites it wholesale, never field-by-field.
type Participant struct {
	Initials      string   `json:"initials"`
	Age           *int     `json:"age"`
	SexOrGender   string   `json:"sexOrGender"`
	HandDominance string   `json:"handDominance"`
	HeightCm      *float64 `json:"heightCm"`
	WeightKg      *float64 `json:"weightKg"`
	Goals         []string `json:"goals"`
	Protocol      Protocol `json:"protocol"`
}

// ScoreResult is a scored questionnaire: per-item answers plus their sum.
// Immutable once computed; re-scoring fresh answers produces a new value.
type ScoreResult struct {
	Items []int `json:"items"`
	Total int   `json:"total"`
}

// Baseline captures the one-time initial assessment, at most one per
// participant.
type Baseline struct {
	Date  string      `json:"date"`
	PHQ9  ScoreResult `json:"phq9"`
	GAD7  ScoreResult `json:"gad7"`
	PSS10 ScoreResult `json:"pss10"`
	WHO5  ScoreResult `json:"who5"`
}

// DoseRecord is one logged intake. Append-only; multiple doses per day are
// valid, so there is no natural key beyond the generated id.
type DoseRecord struct {
	ID           string  `json:"id"`
	TS           string  `json:"ts"`
	DoseAmount   float64 `json:"doseAmount"`
	DoseUnit     string  `json:"doseUnit"`
	Substance    string  `json:"substance"`
	Form         string  `json:"form"`
	Strain       string  `json:"strain,omitempty"`
	Route        string  `json:"route"`
	WithFood     bool    `json:"withFood"`
	Context      string  `json:"context"`
	AcuteNotes   string  `json:"acuteNotes"`
	Adverse      bool    `json:"adverse"`
	AdverseNotes string  `json:"adverseNotes"`
}

// DailyEntry is the quick daily check-in. Date is the natural key: saving a
// second entry for the same date replaces the first.
type DailyEntry struct {
	ID           string  `json:"id"`
	Date         string  `json:"date"`
	IsDoseDay    bool    `json:"isDoseDay"`
	SleepHours   float64 `json:"sleepHours"`
	SleepQuality int     `json:"sleepQuality"`
	Rested       int     `json:"rested"`
	Mood         int     `json:"mood"`
	Anxiety      int     `json:"anxiety"`
	Focus        int     `json:"focus"`
	Energy       int     `json:"energy"`
	Stress       int     `json:"stress"`
	Productivity *int    `json:"productivity"`
	Social       *int    `json:"social"`
	Libido       *int    `json:"libido"`
	GiNotes      string  `json:"giNotes"`
	OtherNotes   string  `json:"otherNotes"`
	Adverse      bool    `json:"adverse"`
	SafetyNotes  string  `json:"safetyNotes"`
}

// HasQuickLog reports whether at least one quick-log field was filled in.
// An entry with none of them is rejected at save time.
func (e *DailyEntry) HasQuickLog() bool {
	return e.SleepHours != 0 || e.Mood != 0 || e.Anxiety != 0 ||
		e.Focus != 0 || e.Energy != 0 || e.Stress != 0
}

// WeeklyCheckin holds the four scored instruments for one week. WeekStart is
// the natural key with the same replace-on-conflict rule as daily entries.
type WeeklyCheckin struct {
	ID        string      `json:"id"`
	WeekStart string      `json:"weekStart"`
	PHQ9      ScoreResult `json:"phq9"`
	GAD7      ScoreResult `json:"gad7"`
	PSS10     ScoreResult `json:"pss10"`
	WHO5      ScoreResult `json:"who5"`
	Notes     string      `json:"notes"`
}

const (
	HandDominant    = "dominant"
	HandNonDominant = "nondominant"
)

// TapTestRecord is one completed 3-trial finger-tap batch for a given hand.
// Produced only by the tap-test controller reaching its terminal state.
type TapTestRecord struct {
	ID           string  `json:"id"`
	Date         string  `json:"date"`
	Hand         string  `json:"hand"`
	TrialSeconds int     `json:"trialSeconds"`
	Trial1       int     `json:"trial1"`
	Trial2       int     `json:"trial2"`
	Trial3       int     `json:"trial3"`
	Avg          float64 `json:"avg"`
	Device       string  `json:"device"`
	Notes        string  `json:"notes"`
}
