package services

import (
	"fmt"
	"math"

	"github.com/echosage/microlog/internal/models"
)

// Trailing windows used by the summary and insight text. The shorter window
// feeds averages, the longer one feeds trend slopes.
const (
	averageWindow = 7
	trendWindow   = 14
)

type InsightStore interface {
	ListDailyAsc() []models.DailyEntry
	ListWeeklyAsc() []models.WeeklyCheckin
	ListTapTestsAsc() []models.TapTestRecord
}

type InsightService struct {
	store InsightStore
}

func NewInsightService(store InsightStore) *InsightService {
	return &InsightService{store: store}
}

// SummaryStats are the dashboard KPIs over the trailing 7 entries.
type SummaryStats struct {
	TotalEntries   int     `json:"total_entries"`
	AvgMood        float64 `json:"avg_mood"`
	AvgAnxiety     float64 `json:"avg_anxiety"`
	AvgStress      float64 `json:"avg_stress"`
	AvgSleepHours  float64 `json:"avg_sleep_hours"`
	TapAvgDominant float64 `json:"tap_avg_dominant"`
	TapAvgNonDom   float64 `json:"tap_avg_nondominant"`
	DoseDays       int     `json:"dose_days"`
	OffDays        int     `json:"off_days"`
}

// lastN returns the trailing n elements, or a copy of the whole slice when it
// is shorter.
func lastN[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return append([]T(nil), s...)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// RollingAverage averages a field over the trailing n entries. Missing values
// were already coerced to zero at save time, so zeros participate in the mean.
func RollingAverage(entries []models.DailyEntry, n int, field func(models.DailyEntry) float64) float64 {
	tail := lastN(entries, n)
	vals := make([]float64, 0, len(tail))
	for _, e := range tail {
		vals = append(vals, field(e))
	}
	return mean(vals)
}

// Slope is the ordinary least-squares slope of vals against their 1-based
// index. Fewer than two points, or a singular denominator, yield 0.
func Slope(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	var sx, sy, sxx, sxy float64
	for i, y := range vals {
		x := float64(i + 1)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	denom := float64(n)*sxx - sx*sx
	if denom == 0 {
		return 0
	}
	return (float64(n)*sxy - sx*sy) / denom
}

// TrendLabel words a slope: magnitudes under 0.05 read as stable.
func TrendLabel(slope float64) string {
	if math.Abs(slope) < 0.05 {
		return "stable"
	}
	if slope > 0 {
		return "rising"
	}
	return "falling"
}

func fieldValues(entries []models.DailyEntry, field func(models.DailyEntry) float64) []float64 {
	out := make([]float64, 0, len(entries))
	for _, e := range entries {
		out = append(out, field(e))
	}
	return out
}

func moodOf(e models.DailyEntry) float64    { return float64(e.Mood) }
func anxietyOf(e models.DailyEntry) float64 { return float64(e.Anxiety) }
func stressOf(e models.DailyEntry) float64  { return float64(e.Stress) }
func sleepOf(e models.DailyEntry) float64   { return e.SleepHours }

// Summary computes the KPI block shown on the dashboard.
func (s *InsightService) Summary() *SummaryStats {
	daily := s.store.ListDailyAsc()
	last7 := lastN(daily, averageWindow)

	stats := &SummaryStats{
		TotalEntries:  len(daily),
		AvgMood:       RollingAverage(daily, averageWindow, moodOf),
		AvgAnxiety:    RollingAverage(daily, averageWindow, anxietyOf),
		AvgStress:     RollingAverage(daily, averageWindow, stressOf),
		AvgSleepHours: RollingAverage(daily, averageWindow, sleepOf),
	}
	for _, e := range last7 {
		if e.IsDoseDay {
			stats.DoseDays++
		} else {
			stats.OffDays++
		}
	}

	taps := lastN(s.store.ListTapTestsAsc(), averageWindow)
	var dom, non []float64
	for _, r := range taps {
		switch r.Hand {
		case models.HandDominant:
			dom = append(dom, r.Avg)
		case models.HandNonDominant:
			non = append(non, r.Avg)
		}
	}
	stats.TapAvgDominant = mean(dom)
	stats.TapAvgNonDom = mean(non)
	return stats
}

// Insight text fragments. The disclaimer closes every non-empty report.
const (
	insightEmpty      = "No entries yet. Add a daily check-in to start unlocking insights."
	insightDisclaimer = "Guidance only, not medical advice. If symptoms worsen or safety concerns occur, seek professional support."
	insightFavorable  = "Rising mood with falling anxiety suggests a favorable short-term response. Keep routines steady and keep logging."
	insightCoImprove  = "Lower stress with improving sleep usually move together; consider a steady wind-down routine on dose and off days."
	insightSteady     = "Signals look steady. Stability helps you notice subtler changes when they begin."
)

// Insights renders the templated trend report over the daily log, one
// statement per line. With no entries it returns only the starter prompt.
func (s *InsightService) Insights() []string {
	daily := s.store.ListDailyAsc()
	if len(daily) == 0 {
		return []string{insightEmpty}
	}

	last14 := lastN(daily, trendWindow)
	moodSlope := Slope(fieldValues(last14, moodOf))
	anxSlope := Slope(fieldValues(last14, anxietyOf))
	stressSlope := Slope(fieldValues(last14, stressOf))
	sleepSlope := Slope(fieldValues(last14, sleepOf))

	lines := []string{
		fmt.Sprintf("Mood looks %s; 7-day average is %.1f.", TrendLabel(moodSlope), RollingAverage(daily, averageWindow, moodOf)),
		fmt.Sprintf("Anxiety is %s; 7-day average is %.1f.", TrendLabel(anxSlope), RollingAverage(daily, averageWindow, anxietyOf)),
		fmt.Sprintf("Stress is %s; 7-day average is %.1f.", TrendLabel(stressSlope), RollingAverage(daily, averageWindow, stressOf)),
		fmt.Sprintf("Sleep hours trend is %s; 7-day average is %.1fh.", TrendLabel(sleepSlope), RollingAverage(daily, averageWindow, sleepOf)),
	}
	if moodSlope > 0.1 && anxSlope < -0.1 {
		lines = append(lines, insightFavorable)
	}
	if stressSlope < -0.1 && sleepSlope > 0.1 {
		lines = append(lines, insightCoImprove)
	}
	if math.Abs(moodSlope) < 0.05 && math.Abs(anxSlope) < 0.05 && math.Abs(stressSlope) < 0.05 {
		lines = append(lines, insightSteady)
	}
	if delta := s.weeklyDeltaLine(); delta != "" {
		lines = append(lines, delta)
	}
	lines = append(lines, insightDisclaimer)
	return lines
}

// weeklyDeltaLine reports week-over-week movement of the four questionnaire
// totals once at least two check-ins exist.
func (s *InsightService) weeklyDeltaLine() string {
	weekly := s.store.ListWeeklyAsc()
	if len(weekly) < 2 {
		return ""
	}
	last := weekly[len(weekly)-1]
	prev := weekly[len(weekly)-2]
	return fmt.Sprintf("Week-over-week: PHQ-9 %+d, GAD-7 %+d, PSS-10 %+d, WHO-5 %+d.",
		last.PHQ9.Total-prev.PHQ9.Total,
		last.GAD7.Total-prev.GAD7.Total,
		last.PSS10.Total-prev.PSS10.Total,
		last.WHO5.Total-prev.WHO5.Total)
}
