package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.Structure == "" {
		return fmt.Errorf("structure file path cannot be empty")
	}

	if err := validateMD(&cfg.MD); err != nil {
		return fmt.Errorf("md validation failed: %w", err)
	}

	if err := validateSampling(&cfg.Sampling); err != nil {
		return fmt.Errorf("sampling validation failed: %w", err)
	}

	if err := validateEnsemble(&cfg.Ensemble); err != nil {
		return fmt.Errorf("ensemble validation failed: %w", err)
	}

	if err := validateOutputs(&cfg.Outputs); err != nil {
		return fmt.Errorf("outputs validation failed: %w", err)
	}

	if cfg.Ledger != nil {
		if err := validateLedger(cfg.Ledger); err != nil {
			return fmt.Errorf("ledger validation failed: %w", err)
		}
	}

	return nil
}

// validateMD validates the molecular dynamics parameters
func validateMD(md *MD) error {
	if md.TimestepFs <= 0 {
		return fmt.Errorf("timestep_fs must be positive, got %f", md.TimestepFs)
	}
	if md.TemperatureK <= 0 {
		return fmt.Errorf("temperature_k must be positive, got %f", md.TemperatureK)
	}
	if md.PressureBar < 0 {
		return fmt.Errorf("pressure_bar cannot be negative, got %f", md.PressureBar)
	}
	if md.Friction <= 0 {
		return fmt.Errorf("friction must be positive, got %f", md.Friction)
	}
	if md.Loginterval < 1 {
		return fmt.Errorf("loginterval must be at least 1, got %d", md.Loginterval)
	}
	return nil
}

// validateSampling validates the active-learning sampling parameters
func validateSampling(s *Sampling) error {
	if _, err := s.ALMode(); err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}
	if _, err := s.UncertKind(); err != nil {
		return fmt.Errorf("invalid uncertainty: %w", err)
	}

	if s.CalcType == "" {
		s.CalcType = "active"
	}
	if s.CalcType != "active" && s.CalcType != "period" {
		return fmt.Errorf("calc_type must be 'active' or 'period', got %s", s.CalcType)
	}
	if s.CalcType == "period" && s.Nperiod < 1 {
		return fmt.Errorf("nperiod must be at least 1 for periodic sampling, got %d", s.Nperiod)
	}

	if s.Ntotal < 1 {
		return fmt.Errorf("ntotal must be at least 1, got %d", s.Ntotal)
	}
	if s.StepsInit < 1 {
		return fmt.Errorf("steps_init must be at least 1, got %d", s.StepsInit)
	}
	if s.HeatedAtom < 0 {
		return fmt.Errorf("heated_atom cannot be negative, got %d", s.HeatedAtom)
	}
	if s.TempFactorK < 0 {
		return fmt.Errorf("temp_factor_k cannot be negative, got %f", s.TempFactorK)
	}
	if s.Iteration < 0 {
		return fmt.Errorf("iteration cannot be negative, got %d", s.Iteration)
	}
	return nil
}

// validateEnsemble validates the predictor committee configuration
func validateEnsemble(e *Ensemble) error {
	if e.Nmodel < 1 {
		return fmt.Errorf("nmodel must be at least 1, got %d", e.Nmodel)
	}
	if e.Nstep < 1 {
		return fmt.Errorf("nstep must be at least 1, got %d", e.Nstep)
	}
	if e.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", e.Workers)
	}

	if e.Potential == "" {
		e.Potential = "lj"
	}
	if e.Potential != "lj" && e.Potential != "harmonic" {
		return fmt.Errorf("potential must be 'lj' or 'harmonic', got %s", e.Potential)
	}
	if e.Jitter < 0 {
		return fmt.Errorf("jitter cannot be negative, got %f", e.Jitter)
	}

	// Argon defaults for the reference potentials
	if e.Epsilon == 0 {
		e.Epsilon = 0.0104
	}
	if e.Sigma == 0 {
		e.Sigma = 3.40
	}
	if e.SpringK == 0 {
		e.SpringK = 1.0
	}
	if e.Epsilon < 0 {
		return fmt.Errorf("epsilon must be positive, got %f", e.Epsilon)
	}
	if e.Sigma < 0 {
		return fmt.Errorf("sigma must be positive, got %f", e.Sigma)
	}
	if e.SpringK < 0 {
		return fmt.Errorf("spring_k must be positive, got %f", e.SpringK)
	}

	if n := len(e.ReferenceEnergies); n != 0 && n != e.Size() {
		return fmt.Errorf("reference_energies must have %d entries (nmodel*nstep), got %d", e.Size(), n)
	}
	if n := len(e.AtomReferenceEnergies); n != 0 && n != e.Size() {
		return fmt.Errorf("atom_reference_energies must have %d entries (nmodel*nstep), got %d", e.Size(), n)
	}
	return nil
}

// validateOutputs validates the output file paths
func validateOutputs(o *Outputs) error {
	if o.Trajectory == "" {
		return fmt.Errorf("trajectory path cannot be empty")
	}
	if o.Accepted == "" {
		return fmt.Errorf("accepted path cannot be empty")
	}
	if o.Log == "" {
		return fmt.Errorf("log path cannot be empty")
	}
	if o.UncertaintyTable == "" {
		return fmt.Errorf("uncertainty_table path cannot be empty")
	}
	if o.Result == "" {
		return fmt.Errorf("result path cannot be empty")
	}
	return nil
}

// validateLedger validates the ledger backend configuration
func validateLedger(l *Ledger) error {
	if l.Backend != "memory" && l.Backend != "sqlite" {
		return fmt.Errorf("ledger backend must be 'memory' or 'sqlite', got %s", l.Backend)
	}
	if l.Backend == "sqlite" && l.Path == "" {
		return fmt.Errorf("ledger path is required for the sqlite backend")
	}
	return nil
}
