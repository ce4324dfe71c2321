package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echosage/microlog/internal/models"
)

// Finger-tap protocol constants. Three 10-second trials make one batch; both
// are fixed by the measurement protocol, not configurable.
const (
	trialSeconds = 10
	batchTrials  = 3
)

type TapTestPhase string

const (
	PhaseIdle    TapTestPhase = "idle"
	PhaseRunning TapTestPhase = "running"
	PhaseResting TapTestPhase = "resting"
)

type TapEventKind string

const (
	EventStart TapEventKind = "start"
	EventTap   TapEventKind = "tap"
	EventTick  TapEventKind = "tick"
)

// TapEvent is one input to the tap-test state machine. Hand and Device are
// only read on the Start that opens a fresh batch.
type TapEvent struct {
	Kind   TapEventKind
	Hand   string
	Device string
}

// TapTestState is the transient trial state. Trials holds the frozen counts
// of finished trials in the current batch.
type TapTestState struct {
	Phase       TapTestPhase `json:"phase"`
	Hand        string       `json:"hand"`
	Device      string       `json:"-"`
	SecondsLeft int          `json:"seconds_left"`
	Count       int          `json:"count"`
	Trials      []int        `json:"trials"`
}

// CompletedBatch is emitted by Transition when the third trial expires.
type CompletedBatch struct {
	Hand   string
	Device string
	Trials [batchTrials]int
	Avg    float64
}

// Transition is the pure state machine: (state, event) -> (state, effect).
// The effect is non-nil only when an event completes the third trial; the
// returned state is then back at idle with an empty batch.
//
//	Idle -> Running -> (Resting | done)
//
// Start while Running is a no-op so a double press cannot restart the
// countdown, and taps outside Running are ignored.
func Transition(st TapTestState, ev TapEvent) (TapTestState, *CompletedBatch) {
	switch ev.Kind {
	case EventStart:
		if st.Phase == PhaseRunning {
			return st, nil
		}
		// Hand and device are captured once per batch; a resume Start must
		// not relabel trials already recorded.
		if len(st.Trials) == 0 {
			st.Hand = ev.Hand
			st.Device = ev.Device
		}
		st.Phase = PhaseRunning
		st.Count = 0
		st.SecondsLeft = trialSeconds
		return st, nil
	case EventTap:
		if st.Phase != PhaseRunning {
			return st, nil
		}
		st.Count++
		return st, nil
	case EventTick:
		if st.Phase != PhaseRunning {
			return st, nil
		}
		st.SecondsLeft--
		if st.SecondsLeft > 0 {
			return st, nil
		}
		st.Trials = append(st.Trials, st.Count)
		if len(st.Trials) < batchTrials {
			st.Phase = PhaseResting
			st.Count = 0
			st.SecondsLeft = 0
			return st, nil
		}
		batch := &CompletedBatch{Hand: st.Hand, Device: st.Device}
		sum := 0
		for i, c := range st.Trials {
			batch.Trials[i] = c
			sum += c
		}
		batch.Avg = float64(sum) / batchTrials
		return TapTestState{Phase: PhaseIdle}, batch
	}
	return st, nil
}

type TapTestSink interface {
	AppendTapTest(rec *models.TapTestRecord) error
}

// TapTestController drives the state machine off a wall-clock ticker and
// hands completed batches to the record store. All events are serialized
// under one mutex, so a tap racing the expiring tick is counted first if it
// acquires the lock first.
type TapTestController struct {
	mu       sync.Mutex
	state    TapTestState
	stop     func()
	sink     TapTestSink
	logger   *zap.Logger
	now      func() time.Time
	schedule func(onTick func()) (stop func())
}

func NewTapTestController(sink TapTestSink, logger *zap.Logger) *TapTestController {
	return &TapTestController{
		state:    TapTestState{Phase: PhaseIdle},
		sink:     sink,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		schedule: tickEverySecond,
	}
}

func tickEverySecond(onTick func()) func() {
	t := time.NewTicker(time.Second)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				onTick()
			case <-done:
				return
			}
		}
	}()
	return func() {
		t.Stop()
		close(done)
	}
}

// Start begins the next trial for the given hand. A start while a trial is
// running is ignored.
func (c *TapTestController) Start(hand, device string) TapTestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasRunning := c.state.Phase == PhaseRunning
	c.state, _ = Transition(c.state, TapEvent{Kind: EventStart, Hand: hand, Device: device})
	if !wasRunning && c.state.Phase == PhaseRunning {
		c.stop = c.schedule(c.tick)
	}
	return c.state
}

// Tap counts one tap toward the running trial.
func (c *TapTestController) Tap() TapTestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, _ = Transition(c.state, TapEvent{Kind: EventTap})
	return c.state
}

// State returns the current trial state for display.
func (c *TapTestController) State() TapTestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Trials = append([]int(nil), st.Trials...)
	return st
}

func (c *TapTestController) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var batch *CompletedBatch
	c.state, batch = Transition(c.state, TapEvent{Kind: EventTick})
	if c.state.Phase != PhaseRunning && c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if batch == nil {
		return
	}
	rec := &models.TapTestRecord{
		ID:           shortID(8),
		Date:         c.now().Format("2006-01-02"),
		Hand:         batch.Hand,
		TrialSeconds: trialSeconds,
		Trial1:       batch.Trials[0],
		Trial2:       batch.Trials[1],
		Trial3:       batch.Trials[2],
		Avg:          batch.Avg,
		Device:       batch.Device,
	}
	if err := c.sink.AppendTapTest(rec); err != nil {
		c.logger.Error("save tap test", zap.Error(err))
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
