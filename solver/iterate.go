package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gomoc/utils"
)

// SOURCE_FLOOR is the smallest previous source magnitude that enters the
// residual
const SOURCE_FLOOR = 1.e-10

type Result struct {
	Keff       float64
	Iterations int
	Residual   float64
	Converged  bool
	State      State
}

func (r Result) String() string {
	return fmt.Sprintf("keff = %.8f, iterations = %d, residual = %.3e, state = %s",
		r.Keff, r.Iterations, r.Residual, r.State)
}

// initializeFluxes sets the flat unit flux and source guess, zero boundary
// flux and k = 1
func (s *Solver) initializeFluxes() {
	s.scalarFlux.Fill(1)
	s.oldSources.Fill(1)
	s.fissionSources.Fill(0)
	s.sources.Fill(0)
	s.ratios.Fill(0)
	s.boundaryFlux.Fill(0)
	s.nextBoundaryFlux.Fill(0)
	fill(s.trackLeaks, 0)
	s.keff, s.residual, s.iterations = 1, 0, 0
}

// fissionRate is the volume integrated nu-fission rate of the scalar flux
func (s *Solver) fissionRate() (rate float64) {
	for r, m := range s.materials {
		rate += s.volumes[r] * floats.Dot(m.NuSigmaF, s.scalarFlux.Row(r))
	}
	return
}

// normalizeFluxes scales the scalar and boundary flux to unit total fission
func (s *Solver) normalizeFluxes() (err error) {
	rate := s.fissionRate()
	if !(rate > 0) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: total fission rate is %g", ErrNoFission, rate)
	}
	scale := 1 / rate
	for _, data := range [][]float64{s.scalarFlux.Data, s.boundaryFlux.Data} {
		blas64.Scal(scale, blas64.Vector{N: len(data), Data: data, Inc: 1})
	}
	return
}

// computeSources builds the isotropic region source and the source to total
// ratio, returning the RMS relative change against the previous source
func (s *Solver) computeSources() (residual float64) {
	var (
		G    = s.NumGroups
		invK = 1 / s.keff
	)
	fill(s.residuals, 0)
	utils.ParallelFor(s.NP, s.NumRegions, func(np, rMin, rMax int) {
		sc := &s.scratch[np]
		for r := rMin; r < rMax; r++ {
			var (
				m     = s.materials[r]
				phi   = s.scalarFlux.Row(r)
				fiss  = s.fissionSources.Row(r)
				src   = s.sources.Row(r)
				old   = s.oldSources.Row(r)
				ratio = s.ratios.Row(r)
			)
			floats.MulTo(fiss, m.NuSigmaF, phi)
			fission := floats.Sum(fiss) * invK
			m.ScatterSource(sc.scat, phi)
			for g := range src {
				src[g] = (m.Chi[g]*fission + sc.scat[g]) / FOUR_PI
				if m.SigmaT[g] > 0 {
					ratio[g] = src[g] / m.SigmaT[g]
				} else {
					ratio[g] = 0
				}
				if g < G && math.Abs(old[g]) > SOURCE_FLOOR {
					rel := (src[g] - old[g]) / old[g]
					s.residuals[np] += rel * rel
				}
				old[g] = src[g]
			}
		}
	})
	residual = math.Sqrt(floats.Sum(s.residuals) / float64(s.NumRegions*G))
	return
}

// addSourceToFlux completes the scalar flux from the swept tallies and the
// flat source
func (s *Solver) addSourceToFlux() {
	utils.ParallelFor(s.NP, s.NumRegions, func(_, rMin, rMax int) {
		for r := rMin; r < rMax; r++ {
			var (
				m     = s.materials[r]
				vol   = s.volumes[r]
				phi   = s.scalarFlux.Row(r)
				ratio = s.ratios.Row(r)
			)
			for g := range phi {
				switch st := m.SigmaT[g]; {
				case st == 0:
					phi[g] = 0
				case vol == 0:
					phi[g] = FOUR_PI * ratio[g]
				default:
					phi[g] = FOUR_PI*ratio[g] + 0.5*phi[g]/(st*vol)
				}
			}
		}
	})
}

// computeKeff is the fission rate over absorption plus leakage
func (s *Solver) computeKeff() (err error) {
	var absorption float64
	for r, m := range s.materials {
		absorption += s.volumes[r] * floats.Dot(m.SigmaA, s.scalarFlux.Row(r))
	}
	var (
		fission = s.fissionRate()
		loss    = absorption + s.Leakage()
	)
	if !(loss > 0) {
		return fmt.Errorf("%w: neutron loss rate is %g", ErrNoFission, loss)
	}
	s.keff = fission / loss
	return
}

// Converge runs source iterations until the source residual falls below the
// tolerance or the iteration cap is reached. Reaching the cap returns the
// last estimate along with ErrNotConverged. ctx is checked between
// iterations.
func (s *Solver) Converge(ctx context.Context) (res *Result, err error) {
	if s.state == Unconfigured {
		return nil, ErrNotConfigured
	}
	var (
		log   = s.log
		start = time.Now()
	)
	s.initializeFluxes()
	res = &Result{}
	defer func() {
		res.Keff, res.Iterations, res.Residual, res.State = s.keff, s.iterations, s.residual, s.state
		res.Converged = s.state == Converged
		s.cfg.Metrics.observeSolve(s.state)
	}()
	for i := 0; i < s.cfg.MaxIterations; i++ {
		if err = ctx.Err(); err != nil {
			s.state = Configured
			return
		}
		s.state = Normalizing
		if err = s.normalizeFluxes(); err != nil {
			s.state = Configured
			return
		}
		s.state = ComputingSource
		s.residual = s.computeSources()

		s.state = Sweeping
		sweepStart := time.Now()
		s.transportSweep()
		s.addSourceToFlux()
		sweepTime := time.Since(sweepStart)

		s.state = ComputingEigenvalue
		if err = s.computeKeff(); err != nil {
			s.state = Configured
			return
		}
		s.iterations = i + 1
		s.cfg.Metrics.observeIteration(s.keff, s.residual, sweepTime)
		log.Debug("source iteration", "iteration", i, "keff", s.keff, "residual", s.residual, "sweep", sweepTime)

		if i > 1 && s.residual < s.cfg.Tolerance {
			s.state = Converged
			log.Info("converged", "keff", s.keff, "iterations", s.iterations, "residual", s.residual,
				"elapsed", time.Since(start))
			return
		}
	}
	s.state = MaxIterationsReached
	log.Warn("iteration limit reached", "keff", s.keff, "iterations", s.iterations, "residual", s.residual)
	err = fmt.Errorf("%w: residual %.3e after %d iterations, tolerance %.3e",
		ErrNotConverged, s.residual, s.iterations, s.cfg.Tolerance)
	return
}
