package solver

import (
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gomoc/track"
	"github.com/notargets/gomoc/types"
	"github.com/notargets/gomoc/utils"
)

// transportSweep moves every track in both directions, accumulating the
// region scalar flux and the outgoing boundary flux for the next sweep. The
// two azimuthal batches run one after the other, tracks within a batch run
// in parallel.
func (s *Solver) transportSweep() {
	s.scalarFlux.Fill(0)
	s.nextBoundaryFlux.Fill(0)
	fill(s.trackLeaks, 0)
	for _, batch := range s.batches {
		utils.ParallelFor(s.NP, len(batch), func(np, kMin, kMax int) {
			sc := &s.scratch[np]
			for k := kMin; k < kMax; k++ {
				s.sweepTrack(batch[k], sc)
			}
		})
	}
	s.boundaryFlux, s.nextBoundaryFlux = s.nextBoundaryFlux, s.boundaryFlux
}

func (s *Solver) sweepTrack(t int, sc *sweepScratch) {
	tr := s.tracks.Track(t)
	copy(sc.psi, s.boundaryFlux.Slot(t, 0))
	for i := range tr.Segments {
		s.tallySegment(&tr.Segments[i], tr.Weights, sc)
	}
	s.transferBoundaryFlux(t, tr, true, sc.psi)

	copy(sc.psi, s.boundaryFlux.Slot(t, 1))
	for i := len(tr.Segments) - 1; i >= 0; i-- {
		s.tallySegment(&tr.Segments[i], tr.Weights, sc)
	}
	s.transferBoundaryFlux(t, tr, false, sc.psi)
}

// tallySegment attenuates psi across one segment and adds the weighted
// change to the segment's region
func (s *Solver) tallySegment(seg *track.Segment, weights []float64, sc *sweepScratch) {
	var (
		Gp    = s.NumAlignedGroups
		ratio = s.ratios.Row(seg.Region)
	)
	s.exp.Compute(sc.exps, seg.Material.SigmaT, seg.Length)
	fill(sc.fsr, 0)
	for p, w := range weights {
		var (
			psi  = sc.psi[p*Gp : (p+1)*Gp]
			exps = sc.exps[p*Gp : (p+1)*Gp]
		)
		for g := 0; g < Gp; g++ {
			delta := (psi[g] - ratio[g]) * exps[g]
			sc.fsr[g] += delta * w
			psi[g] -= delta
		}
	}
	s.locks.Lock(seg.Region)
	floats.Add(s.scalarFlux.Row(seg.Region), sc.fsr)
	s.locks.Unlock(seg.Region)
}

// transferBoundaryFlux hands the transmitted part of psi to the connected
// track and tallies the rest as leakage
func (s *Solver) transferBoundaryFlux(t int, tr *track.Track, forward bool, psi []float64) {
	var (
		bc   types.BoundaryType
		next int
		refl bool
		dir  int
		Gp   = s.NumAlignedGroups
	)
	if forward {
		bc, next, refl = tr.BCOut, tr.TrackOut, tr.ReflOut
	} else {
		bc, next, refl = tr.BCIn, tr.TrackIn, tr.ReflIn
	}
	if refl {
		dir = 1
	}
	trans := bc.Transmission()
	if trans != 0 {
		floats.AddScaled(s.nextBoundaryFlux.Slot(next, dir), trans, psi)
	}
	if trans != 1 {
		for p, w := range tr.Weights {
			s.trackLeaks[t] += (1 - trans) * w * floats.Sum(psi[p*Gp:(p+1)*Gp])
		}
	}
}
