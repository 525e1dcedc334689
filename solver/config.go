package solver

import (
	"errors"
	"fmt"
	"log/slog"
)

var ErrConfig = errors.New("invalid solver configuration")

const (
	DefaultVectorWidth       = 8
	DefaultTolerance         = 1.e-5
	DefaultMaxIterations     = 1000
	DefaultExpTableTolerance = 1.e-5
)

// Config holds the solver settings. Zero values select the defaults.
type Config struct {
	NumThreads              int     // Worker count, 0 uses every CPU
	VectorWidth             int     // Energy groups per vector chunk
	VectorAlignment         int     // Byte alignment of group arrays, 0 uses VectorWidth*8
	Tolerance               float64 // Source residual convergence threshold
	MaxIterations           int     // Iteration cap
	InterpolateExponentials bool    // Use the linear interpolation table in place of math.Exp
	ExpTableTolerance       float64 // Maximum interpolation error of the exponential table
	Logger                  *slog.Logger
	Metrics                 *Metrics
}

func DefaultConfig() Config {
	return Config{
		VectorWidth:       DefaultVectorWidth,
		VectorAlignment:   DefaultVectorWidth * 8,
		Tolerance:         DefaultTolerance,
		MaxIterations:     DefaultMaxIterations,
		ExpTableTolerance: DefaultExpTableTolerance,
	}
}

// withDefaults fills zero fields, leaving invalid values for Validate
func (c Config) withDefaults() Config {
	if c.VectorWidth == 0 {
		c.VectorWidth = DefaultVectorWidth
	}
	if c.VectorAlignment == 0 {
		c.VectorAlignment = c.VectorWidth * 8
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ExpTableTolerance == 0 {
		c.ExpTableTolerance = DefaultExpTableTolerance
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.NumThreads < 0:
		return fmt.Errorf("%w: %d threads", ErrConfig, c.NumThreads)
	case c.VectorWidth < 1:
		return fmt.Errorf("%w: vector width %d", ErrConfig, c.VectorWidth)
	case c.VectorAlignment < 1 || c.VectorAlignment&(c.VectorAlignment-1) != 0:
		return fmt.Errorf("%w: vector alignment %d bytes is not a power of two", ErrConfig, c.VectorAlignment)
	case !(c.Tolerance > 0):
		return fmt.Errorf("%w: tolerance %g", ErrConfig, c.Tolerance)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: %d maximum iterations", ErrConfig, c.MaxIterations)
	case !(c.ExpTableTolerance > 0) || c.ExpTableTolerance >= 1:
		return fmt.Errorf("%w: exponential table tolerance %g", ErrConfig, c.ExpTableTolerance)
	}
	return nil
}
