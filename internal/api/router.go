package api

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/echosage/microlog/internal/models"
	"github.com/echosage/microlog/internal/services"
)

// importBodyLimit caps import payloads. A single participant's document is a
// few hundred kilobytes at most.
const importBodyLimit = 8 << 20

type Router struct {
	store    Store
	logs     *services.LogService
	insights *services.InsightService
	codec    *services.ExportService
	taps     *services.TapTestController
	logger   *zap.Logger
}

func NewRouter(store Store, logger *zap.Logger) *Router {
	return &Router{
		store:    store,
		logs:     services.NewLogService(store),
		insights: services.NewInsightService(store),
		codec:    services.NewExportService(store),
		taps:     services.NewTapTestController(store, logger),
		logger:   logger,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", rt.handleHealth)              // GET
	mux.HandleFunc("/api/data", rt.handleData)              // GET
	mux.HandleFunc("/api/instruments", rt.handleInstruments) // GET
	mux.HandleFunc("/api/score", rt.handleScore)            // POST
	mux.HandleFunc("/api/baseline", rt.handleBaseline)      // GET, POST
	mux.HandleFunc("/api/participant", rt.handleParticipant) // GET, PUT
	mux.HandleFunc("/api/doses", rt.handleDoses)            // GET, POST
	mux.HandleFunc("/api/daily", rt.handleDaily)            // GET, POST
	mux.HandleFunc("/api/weekly", rt.handleWeekly)          // GET, POST
	mux.HandleFunc("/api/ftt", rt.handleTapTests)           // GET
	mux.HandleFunc("/api/ftt/start", rt.handleTapStart)     // POST
	mux.HandleFunc("/api/ftt/tap", rt.handleTap)            // POST
	mux.HandleFunc("/api/ftt/state", rt.handleTapState)     // GET
	mux.HandleFunc("/api/summary", rt.handleSummary)        // GET
	mux.HandleFunc("/api/insights", rt.handleInsights)      // GET
	mux.HandleFunc("/api/export", rt.handleExport)          // GET
	mux.HandleFunc("/api/export/csv", rt.handleExportCSV)   // GET
	mux.HandleFunc("/api/import", rt.handleImport)          // POST
	mux.HandleFunc("/api/reset", rt.handleReset)            // POST
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service error codes onto HTTP statuses. Anything without a
// code is an internal fault and stays opaque to the client.
func (rt *Router) writeError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusBadRequest
		switch se.Code {
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict:
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": se.Message, "code": string(se.Code)})
		return
	}
	rt.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": string(services.ErrorInvalid)})
		return false
	}
	return true
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /api/data — full document snapshot
func (rt *Router) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, rt.store.Snapshot())
}

// GET /api/instruments
func (rt *Router) handleInstruments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, services.Instruments())
}

// POST /api/score — score one answer set without persisting anything
func (rt *Router) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Instrument services.Instrument `json:"instrument"`
		Answers    []int               `json:"answers"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := services.InstrumentByID(req.Instrument); !ok {
		rt.writeError(w, services.NewNotFoundError("unknown instrument "+string(req.Instrument)))
		return
	}
	res, err := services.ScoreInstrument(req.Instrument, req.Answers)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	out := map[string]any{
		"instrument": req.Instrument,
		"items":      res.Items,
		"total":      res.Total,
		"category":   services.Categorize(req.Instrument, res.Total),
	}
	if req.Instrument == services.InstrumentWHO5 {
		out["percent"] = services.WHO5Percent(res.Total)
	}
	writeJSON(w, http.StatusOK, out)
}

// GET, POST /api/baseline
func (rt *Router) handleBaseline(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		b := rt.store.Baseline()
		if b == nil {
			rt.writeError(w, services.NewNotFoundError("baseline not recorded"))
			return
		}
		writeJSON(w, http.StatusOK, b)
	case http.MethodPost:
		var req struct {
			Participant models.Participant            `json:"participant"`
			Answers     services.QuestionnaireAnswers `json:"answers"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		b, err := rt.logs.SaveBaseline(req.Participant, req.Answers)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	default:
		methodNotAllowed(w)
	}
}

// GET, PUT /api/participant
func (rt *Router) handleParticipant(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rt.store.Participant())
	case http.MethodPut:
		var p models.Participant
		if !decodeBody(w, r, &p) {
			return
		}
		if err := rt.logs.UpdateParticipant(p); err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rt.store.Participant())
	default:
		methodNotAllowed(w)
	}
}

// GET, POST /api/doses — lists are newest-first unless ?order=asc
func (rt *Router) handleDoses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("order") == "asc" {
			writeJSON(w, http.StatusOK, rt.store.ListDosesAsc())
			return
		}
		writeJSON(w, http.StatusOK, rt.store.ListDosesDesc())
	case http.MethodPost:
		var d models.DoseRecord
		if !decodeBody(w, r, &d) {
			return
		}
		saved, err := rt.logs.AddDose(&d)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		methodNotAllowed(w)
	}
}

// GET, POST /api/daily
func (rt *Router) handleDaily(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("order") == "asc" {
			writeJSON(w, http.StatusOK, rt.store.ListDailyAsc())
			return
		}
		writeJSON(w, http.StatusOK, rt.store.ListDailyDesc())
	case http.MethodPost:
		var e models.DailyEntry
		if !decodeBody(w, r, &e) {
			return
		}
		saved, err := rt.logs.SaveDaily(&e)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		methodNotAllowed(w)
	}
}

// GET, POST /api/weekly
func (rt *Router) handleWeekly(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("order") == "asc" {
			writeJSON(w, http.StatusOK, rt.store.ListWeeklyAsc())
			return
		}
		writeJSON(w, http.StatusOK, rt.store.ListWeeklyDesc())
	case http.MethodPost:
		var req struct {
			WeekStart string                        `json:"weekStart"`
			Notes     string                        `json:"notes"`
			Answers   services.QuestionnaireAnswers `json:"answers"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		saved, err := rt.logs.SaveWeekly(req.WeekStart, req.Notes, req.Answers)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		methodNotAllowed(w)
	}
}

// GET /api/ftt — completed tap-test records
func (rt *Router) handleTapTests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if r.URL.Query().Get("order") == "asc" {
		writeJSON(w, http.StatusOK, rt.store.ListTapTestsAsc())
		return
	}
	writeJSON(w, http.StatusOK, rt.store.ListTapTestsDesc())
}

// POST /api/ftt/start
func (rt *Router) handleTapStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Hand   string `json:"hand"`
		Device string `json:"device"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Hand != models.HandDominant && req.Hand != models.HandNonDominant {
		rt.writeError(w, services.NewInvalidError("hand must be dominant or nondominant"))
		return
	}
	writeJSON(w, http.StatusOK, rt.taps.Start(req.Hand, req.Device))
}

// POST /api/ftt/tap
func (rt *Router) handleTap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, rt.taps.Tap())
}

// GET /api/ftt/state
func (rt *Router) handleTapState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, rt.taps.State())
}

// GET /api/summary
func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, rt.insights.Summary())
}

// GET /api/insights
func (rt *Router) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"insights": rt.insights.Insights()})
}

// GET /api/export — full document as a JSON download
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	b, err := rt.codec.ExportJSON()
	if err != nil {
		rt.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=microlog-export.json")
	_, _ = w.Write(b)
}

// GET /api/export/csv?collection=daily
func (rt *Router) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	collection := r.URL.Query().Get("collection")
	known := false
	for _, c := range services.Collections() {
		if c == collection {
			known = true
			break
		}
	}
	if !known {
		rt.writeError(w, services.NewInvalidError("unknown collection"))
		return
	}
	b, err := rt.codec.ExportCSV(collection)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+collection+".csv")
	_, _ = w.Write(b)
}

// POST /api/import — replace the whole document
func (rt *Router) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, importBodyLimit))
	if err != nil {
		rt.writeError(w, services.NewInvalidError("read body: "+err.Error()))
		return
	}
	if err := rt.codec.Import(data); err != nil {
		rt.writeError(w, err)
		return
	}
	rt.logger.Info("document imported", zap.Int("bytes", len(data)))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// POST /api/reset — wipe back to first-launch state
func (rt *Router) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := rt.store.Reset(); err != nil {
		rt.writeError(w, err)
		return
	}
	rt.logger.Info("store reset")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
