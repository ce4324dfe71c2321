package services

import (
	"fmt"

	"github.com/echosage/microlog/internal/models"
)

// Instrument identifies one of the standardized questionnaires.
type Instrument string

const (
	InstrumentPHQ9  Instrument = "phq9"
	InstrumentGAD7  Instrument = "gad7"
	InstrumentPSS10 Instrument = "pss10"
	InstrumentWHO5  Instrument = "who5"
)

type AnswerOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// InstrumentDef is the fixed definition of a questionnaire: item stems and
// the enumerated answer options. The UI renders straight from these arrays.
type InstrumentDef struct {
	ID        Instrument     `json:"id"`
	Name      string         `json:"name"`
	Questions []string       `json:"questions"`
	Options   []AnswerOption `json:"options"`
}

var phq9Options = []AnswerOption{
	{0, "Not at all"},
	{1, "Several days"},
	{2, "More than half the days"},
	{3, "Nearly every day"},
}

var pss10Options = []AnswerOption{
	{0, "Never"},
	{1, "Almost never"},
	{2, "Sometimes"},
	{3, "Fairly often"},
	{4, "Very often"},
}

var who5Options = []AnswerOption{
	{0, "At no time"},
	{1, "Some of the time"},
	{2, "Less than half the time"},
	{3, "More than half the time"},
	{4, "Most of the time"},
	{5, "All of the time"},
}

var instruments = map[Instrument]InstrumentDef{
	InstrumentPHQ9: {
		ID:   InstrumentPHQ9,
		Name: "PHQ-9",
		Questions: []string{
			"Little interest or pleasure in doing things",
			"Feeling down, depressed or hopeless",
			"Trouble falling or staying asleep, or sleeping too much",
			"Feeling tired or having little energy",
			"Poor appetite or overeating",
			"Feeling bad about yourself - or that you are a failure or have let yourself or your family down",
			"Trouble concentrating on things, such as reading the newspaper or watching television",
			"Moving or speaking so slowly that other people could have noticed? Or the opposite - being so fidgety or restless that you have been moving around a lot more than usual",
			"Thoughts that you would be better off dead, or of hurting yourself in some way",
		},
		Options: phq9Options,
	},
	InstrumentGAD7: {
		ID:   InstrumentGAD7,
		Name: "GAD-7",
		Questions: []string{
			"Feeling nervous, anxious or on edge",
			"Not being able to stop or control worrying",
			"Worrying too much about different things",
			"Trouble relaxing",
			"Being so restless that it is hard to sit still",
			"Becoming easily annoyed or irritable",
			"Feeling afraid as if something awful might happen",
		},
		Options: phq9Options, // GAD-7 shares the PHQ-9 frequency options
	},
	InstrumentPSS10: {
		ID:   InstrumentPSS10,
		Name: "PSS-10",
		Questions: []string{
			"In the last month, how often have you been upset because of something that happened unexpectedly?",
			"In the last month, how often have you felt that you were unable to control the important things in your life?",
			"In the last month, how often have you felt nervous and stressed?",
			"In the last month, how often have you felt confident about your ability to handle your personal problems?",
			"In the last month, how often have you felt that things were going your way?",
			"In the last month, how often have you found that you could not cope with all the things that you had to do?",
			"In the last month, how often have you been able to control irritations in your life?",
			"In the last month, how often have you felt that you were on top of things?",
			"In the last month, how often have you been angered because of things that were outside of your control?",
			"In the last month, how often have you felt difficulties were piling up so high that you could not overcome them?",
		},
		Options: pss10Options,
	},
	InstrumentWHO5: {
		ID:   InstrumentWHO5,
		Name: "WHO-5",
		Questions: []string{
			"I have felt cheerful and in good spirits",
			"I have felt calm and relaxed",
			"I have felt active and vigorous",
			"I woke up feeling fresh and rested",
			"My daily life has been filled with things that interest me",
		},
		Options: who5Options,
	},
}

// instrumentOrder keeps listings stable for the UI and exports.
var instrumentOrder = []Instrument{InstrumentPHQ9, InstrumentGAD7, InstrumentPSS10, InstrumentWHO5}

func Instruments() []InstrumentDef {
	out := make([]InstrumentDef, 0, len(instrumentOrder))
	for _, id := range instrumentOrder {
		out = append(out, instruments[id])
	}
	return out
}

func InstrumentByID(id Instrument) (InstrumentDef, bool) {
	def, ok := instruments[id]
	return def, ok
}

// ScoreInstrument validates a complete answer set and produces the scored
// result. The answer list must match the instrument's item count exactly and
// every value must be one of the enumerated options; a missing item is never
// treated as zero.
func ScoreInstrument(id Instrument, answers []int) (models.ScoreResult, error) {
	def, ok := instruments[id]
	if !ok {
		return models.ScoreResult{}, NewNotFoundError(fmt.Sprintf("unknown instrument %q", id))
	}
	if len(answers) != len(def.Questions) {
		return models.ScoreResult{}, NewInvalidError(fmt.Sprintf(
			"%s requires %d answers, got %d", def.Name, len(def.Questions), len(answers)))
	}
	maxOpt := def.Options[len(def.Options)-1].Value
	total := 0
	for i, v := range answers {
		if v < 0 || v > maxOpt {
			return models.ScoreResult{}, NewInvalidError(fmt.Sprintf(
				"%s item %d: answer %d outside 0-%d", def.Name, i+1, v, maxOpt))
		}
		total += v
	}
	items := make([]int, len(answers))
	copy(items, answers)
	return models.ScoreResult{Items: items, Total: total}, nil
}

// Categorize maps a total score to the instrument's qualitative band.
func Categorize(id Instrument, total int) string {
	switch id {
	case InstrumentPHQ9:
		switch {
		case total <= 4:
			return "Minimal"
		case total <= 9:
			return "Mild"
		case total <= 14:
			return "Moderate"
		case total <= 19:
			return "Moderately severe"
		default:
			return "Severe"
		}
	case InstrumentGAD7:
		switch {
		case total <= 4:
			return "Minimal"
		case total <= 9:
			return "Mild"
		case total <= 14:
			return "Moderate"
		default:
			return "Severe"
		}
	case InstrumentPSS10:
		switch {
		case total <= 13:
			return "Low stress"
		case total <= 26:
			return "Moderate stress"
		default:
			return "High stress"
		}
	case InstrumentWHO5:
		if WHO5Percent(total) >= 51 {
			return "Normal well-being"
		}
		return "Poor well-being"
	}
	return ""
}

// WHO5Percent converts a raw WHO-5 total (0-25) to its 0-100 percentage.
func WHO5Percent(total int) int { return total * 4 }
