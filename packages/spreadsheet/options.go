package spreadsheet

import "log/slog"

// Option configures a Spreadsheet
type Option func(*Spreadsheet)

// WithLogger sets the logger used for recalculation and evaluation
// diagnostics. the default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Spreadsheet) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock used by NOW and TODAY
func WithClock(clock Clock) Option {
	return func(s *Spreadsheet) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRandom replaces the source used by RAND and RANDBETWEEN
func WithRandom(rng RandomGenerator) Option {
	return func(s *Spreadsheet) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *Metrics) Option {
	return func(s *Spreadsheet) {
		s.metrics = m
	}
}

// WithDateSystem selects the 1900 or 1904 date system
func WithDateSystem(ds DateSystem) Option {
	return func(s *Spreadsheet) {
		s.dateSystem = ds
	}
}

// WithFunctions replaces the function registry, for adding custom
// functions on top of NewDefaultBuiltInFunctions
func WithFunctions(functions *BuiltInFunctions) Option {
	return func(s *Spreadsheet) {
		if functions != nil {
			s.functions = functions
		}
	}
}
