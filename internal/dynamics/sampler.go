package dynamics

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/yanliu110/ALmoMD/internal/criteria"
	"github.com/yanliu110/ALmoMD/internal/ensemble"
	"github.com/yanliu110/ALmoMD/internal/ledger"
	"github.com/yanliu110/ALmoMD/internal/system"
	"github.com/yanliu110/ALmoMD/internal/trajio"
	"github.com/yanliu110/ALmoMD/internal/uncertainty"
	"github.com/yanliu110/ALmoMD/pkg/config"
	"github.com/yanliu110/ALmoMD/pkg/logger"
	"github.com/yanliu110/ALmoMD/pkg/models"
	"github.com/yanliu110/ALmoMD/pkg/utils"
)

// Sampler drives the sampling loop for one run condition: a
// calibration window that feeds the uncertainty baseline, then a
// probabilistic acceptance trial at every logged interval until the
// acceptance target is met.
type Sampler struct {
	cfg  *config.Config
	mode models.ALMode
	kind models.UncertKind

	ens    *ensemble.Ensemble
	engine *uncertainty.Engine
	therm  *Thermostat
	store  ledger.Store
	rng    *utils.RandSource
	logger *slog.Logger

	traj     *trajio.TrajectoryWriter // rolling trajectory, every logged frame
	accepted *trajio.TrajectoryWriter // accepted samples only
	mdlog    *trajio.LogWriter
	table    *trajio.TableWriter
	result   *trajio.ResultWriter

	mu  sync.RWMutex
	run models.Run
}

// runState is the loop-owned progress of one sampling run.
type runState struct {
	conf       *system.Configuration
	res        *ensemble.Result
	stepIndex  int // MD steps completed
	interval   int // logged intervals completed
	counting   int // accepted samples
	base       models.Baseline
	calibrated bool
}

// NewSampler wires the loop components from configuration.
func NewSampler(cfg *config.Config, ens *ensemble.Ensemble, store ledger.Store, rng *utils.RandSource) (*Sampler, error) {
	mode, err := cfg.Sampling.ALMode()
	if err != nil {
		return nil, err
	}
	kind, err := cfg.Sampling.UncertKind()
	if err != nil {
		return nil, err
	}
	engine, err := uncertainty.NewEngine(mode)
	if err != nil {
		return nil, err
	}

	therm, err := NewThermostat(ThermostatParams{
		TimestepFs:   cfg.MD.TimestepFs,
		TemperatureK: cfg.MD.TemperatureK,
		Friction:     cfg.MD.Friction,
		FixCOM:       cfg.MD.FixCOM,
		Heating:      HeatingForMode(mode, cfg.Sampling.HeatedAtom, cfg.Sampling.TempFactorK),
	}, rng)
	if err != nil {
		return nil, err
	}

	out := cfg.Outputs
	return &Sampler{
		cfg:      cfg,
		mode:     mode,
		kind:     kind,
		ens:      ens,
		engine:   engine,
		therm:    therm,
		store:    store,
		rng:      rng,
		logger:   logger.Default,
		traj:     trajio.NewTrajectoryWriter(out.Trajectory),
		accepted: trajio.NewTrajectoryWriter(out.Accepted),
		mdlog:    trajio.NewLogWriter(out.Log, true),
		table:    trajio.NewTableWriter(out.UncertaintyTable),
		result:   trajio.NewResultWriter(out.Result),
		run: models.Run{
			ID:        utils.GenerateRunID(),
			Condition: cfg.Condition(),
			Status:    models.RunStatusPending,
		},
	}, nil
}

// SetLogger sets the sampler's logger.
func (s *Sampler) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Status returns a copy of the lifecycle record.
func (s *Sampler) Status() models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}

// Run executes the sampling loop until the acceptance target is met or
// the context is cancelled. It resumes from the existing outputs when
// the uncertainty table already holds logged intervals.
func (s *Sampler) Run(ctx context.Context, conf *system.Configuration) (err error) {
	s.start()
	defer func() {
		if err != nil {
			s.fail(err)
		} else {
			s.complete()
		}
	}()

	st, err := s.prepare(ctx, conf)
	if err != nil {
		return err
	}
	return s.loop(ctx, st)
}

// prepare decides between a fresh start and a warm restart, and
// returns the state the loop continues from.
func (s *Sampler) prepare(ctx context.Context, conf *system.Configuration) (*runState, error) {
	condition := s.run.Condition
	intervals, _, err := trajio.Progress(s.table.Path())
	if err != nil {
		return nil, err
	}

	st := &runState{conf: conf, base: models.NewBaseline()}

	if intervals == 0 {
		// Fresh run: clear stale ledger rows, restart the rolling
		// outputs and record the initial configuration. The accepted
		// trajectory accumulates across iterations and is left alone.
		if err := s.store.Reset(ctx, condition); err != nil {
			return nil, err
		}
		if err := removeIfExists(s.traj.Path()); err != nil {
			return nil, err
		}
		if err := s.mdlog.Start(); err != nil {
			return nil, err
		}
		if err := s.table.EnsureHeader(); err != nil {
			return nil, err
		}
		if err := s.result.EnsureHeader(); err != nil {
			return nil, err
		}

		res, err := s.ens.Evaluate(ctx, conf)
		if err != nil {
			return nil, err
		}
		st.res = res

		if err := s.traj.Append(conf, 0); err != nil {
			return nil, err
		}
		rec, err := s.engine.Record(res)
		if err != nil {
			return nil, err
		}
		if err := s.mdlog.Append(s.mdInfo(0, res), rec); err != nil {
			return nil, err
		}

		s.logger.Info("Starting sampling run",
			"condition", condition,
			"mode", s.mode.String(),
			"atoms", conf.Len(),
			"ntotal", s.cfg.Sampling.Ntotal,
			"steps_init", s.cfg.Sampling.StepsInit)
		return st, nil
	}

	// Warm restart: continue from the last logged frame.
	last, err := trajio.ReadLastFrame(s.traj.Path())
	if err != nil {
		return nil, err
	}
	st.conf = last
	st.stepIndex = intervals * s.cfg.MD.Loginterval
	st.interval = intervals

	if err := s.seedLedger(ctx, intervals); err != nil {
		return nil, err
	}
	counting, err := s.store.LastCounting(ctx, condition)
	if err != nil {
		return nil, err
	}
	st.counting = counting

	if intervals >= s.cfg.Sampling.StepsInit {
		base, err := criteria.Calibrate(ledger.CalibrationSource(ctx, s.store, condition), s.cfg.Sampling.StepsInit)
		if err != nil {
			return nil, err
		}
		st.base = base
		st.calibrated = true
		s.therm.SetBaseline(base)
	}

	res, err := s.ens.Evaluate(ctx, st.conf)
	if err != nil {
		return nil, err
	}
	st.res = res
	s.setProgress(st)

	s.logger.Info("Resuming sampling run",
		"condition", condition,
		"intervals", intervals,
		"accepted", counting,
		"calibrated", st.calibrated)
	return st, nil
}

// seedLedger tops the ledger up from the uncertainty table so a
// memory-backed store can resume mid-run.
func (s *Sampler) seedLedger(ctx context.Context, intervals int) error {
	count, err := s.store.Count(ctx, s.run.Condition)
	if err != nil {
		return err
	}
	if count >= intervals {
		return nil
	}

	rows, err := trajio.ReadTable(s.table.Path())
	if err != nil {
		return err
	}
	for i := count; i < len(rows); i++ {
		row := rows[i]
		entry := ledger.Entry{
			Condition:   s.run.Condition,
			Interval:    i + 1,
			TimePs:      s.timePs((i + 1) * s.cfg.MD.Loginterval),
			Temperature: row.Temperature,
			Record:      row.Record,
			Counting:    row.Counting,
			Probability: row.Probability,
			Acceptance:  row.Acceptance,
		}
		if err := s.store.Append(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sampler) loop(ctx context.Context, st *runState) error {
	loginterval := s.cfg.MD.Loginterval

	for s.shouldContinue(st) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := s.therm.Step(ctx, st.conf, st.res, s.ens)
		if err != nil {
			return err
		}
		st.res = res
		st.stepIndex++

		if st.stepIndex%loginterval != 0 {
			continue
		}
		st.interval++
		if err := s.logInterval(ctx, st); err != nil {
			return err
		}
		s.setProgress(st)

		if !st.calibrated && st.interval >= s.cfg.Sampling.StepsInit {
			if err := s.finishCalibration(ctx, st); err != nil {
				return err
			}
		}
	}

	s.logger.Info("Sampling run finished",
		"condition", s.run.Condition,
		"accepted", st.counting,
		"intervals", st.interval,
		"steps", st.stepIndex)
	return nil
}

// logInterval evaluates the acceptance trial for the interval that
// just completed and appends it to every output surface.
func (s *Sampler) logInterval(ctx context.Context, st *runState) error {
	res := st.res
	rec, err := s.engine.Record(res)
	if err != nil {
		return err
	}

	verdict := trajio.AcceptancePending
	prob := math.NaN()
	if st.calibrated {
		prob = criteria.Probability(s.mode, s.kind, rec, st.base, st.conf.Len(), s.cfg.MD.TemperatureK)
		if s.rng.Float64() < prob {
			verdict = trajio.AcceptanceAccepted
			st.counting++
			if err := s.accepted.Append(st.conf, s.timePs(st.stepIndex)); err != nil {
				return err
			}
		} else {
			verdict = trajio.AcceptanceVetoed
		}
	}

	if err := s.table.Append(trajio.TableRow{
		Temperature: res.Temperature,
		Record:      rec,
		Counting:    st.counting,
		Probability: prob,
		Acceptance:  verdict,
	}); err != nil {
		return err
	}
	if err := s.store.Append(ctx, ledger.Entry{
		Condition:   s.run.Condition,
		Interval:    st.interval,
		TimePs:      s.timePs(st.stepIndex),
		Temperature: res.Temperature,
		Record:      rec,
		Counting:    st.counting,
		Probability: prob,
		Acceptance:  verdict,
	}); err != nil {
		return err
	}
	if err := s.traj.Append(st.conf, s.timePs(st.stepIndex)); err != nil {
		return err
	}
	if err := s.mdlog.Append(s.mdInfo(st.stepIndex, res), rec); err != nil {
		return err
	}

	s.logger.Debug("Logged interval",
		"interval", st.interval,
		"accepted", st.counting,
		"probability", prob,
		"verdict", verdict)
	return nil
}

// finishCalibration computes the baseline over the completed window,
// arms the acceptance trial and records the summary row.
func (s *Sampler) finishCalibration(ctx context.Context, st *runState) error {
	base, err := criteria.Calibrate(ledger.CalibrationSource(ctx, s.store, s.run.Condition), s.cfg.Sampling.StepsInit)
	if err != nil {
		return err
	}
	st.base = base
	st.calibrated = true
	s.therm.SetBaseline(base)

	if err := s.result.Append(s.cfg.MD.TemperatureK, s.cfg.Sampling.Iteration, base); err != nil {
		return err
	}
	s.logger.Info("Calibration window complete",
		"condition", s.run.Condition,
		"window", s.cfg.Sampling.StepsInit)
	return nil
}

// shouldContinue applies the termination rule: sample until the
// acceptance target is met, and under periodic accounting also until
// the requested number of intervals has elapsed.
func (s *Sampler) shouldContinue(st *runState) bool {
	sampling := s.cfg.Sampling
	if st.counting < sampling.Ntotal {
		return true
	}
	if sampling.CalcType == "period" && st.stepIndex < sampling.Nperiod*s.cfg.MD.Loginterval {
		return true
	}
	return false
}

// timePs converts completed steps to elapsed simulation time.
func (s *Sampler) timePs(stepIndex int) float64 {
	return float64(stepIndex) * s.cfg.MD.TimestepFs / 1000
}

func (s *Sampler) mdInfo(stepIndex int, res *ensemble.Result) trajio.MDInfo {
	return trajio.MDInfo{
		TimePs:      s.timePs(stepIndex),
		Etot:        res.Etot,
		Epot:        res.Epot,
		Ekin:        res.Ekin,
		Temperature: res.Temperature,
	}
}

func (s *Sampler) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Status = models.RunStatusRunning
	s.run.StartTime = time.Now()
}

func (s *Sampler) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Status = models.RunStatusCompleted
	s.run.EndTime = time.Now()
	s.run.Duration = s.run.EndTime.Sub(s.run.StartTime)
}

func (s *Sampler) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Status = models.RunStatusFailed
	s.run.EndTime = time.Now()
	s.run.Duration = s.run.EndTime.Sub(s.run.StartTime)
	s.run.Error = err.Error()
}

func (s *Sampler) setProgress(st *runState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.StepIndex = st.interval
	s.run.Accepted = st.counting
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
