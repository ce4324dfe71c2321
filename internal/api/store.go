package api

import (
	"github.com/echosage/microlog/internal/models"
	"github.com/echosage/microlog/internal/services"
)

// Store is everything the HTTP surface needs from the record store. The
// service-level interfaces are embedded so one store value wires the whole
// router.
type Store interface {
	services.LogStore
	services.InsightStore
	services.CodecStore
	services.TapTestSink

	ListDosesAsc() []models.DoseRecord
	ListDosesDesc() []models.DoseRecord
	ListDailyDesc() []models.DailyEntry
	ListWeeklyDesc() []models.WeeklyCheckin
	ListTapTestsDesc() []models.TapTestRecord
	Participant() models.Participant
	Baseline() *models.Baseline
	Reset() error
}
