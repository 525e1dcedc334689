package track

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/gomoc/material"
	"github.com/notargets/gomoc/quadrature"
	"github.com/notargets/gomoc/types"
)

var ErrTrack = errors.New("invalid track data")

// Segment is the chord of a track through one flat source region
type Segment struct {
	Region   int
	Length   float64
	Material *material.Material
}

// Track is one characteristic line, swept forward from Start to End and in
// reverse. The flux leaving End enters track TrackOut, in its reverse
// direction when ReflOut is set. The flux leaving Start enters track TrackIn,
// in its reverse direction when ReflIn is set. Weights holds, per polar
// angle, the product of 4pi, the azimuthal weight, the track spacing, the
// polar weight and the polar sine.
type Track struct {
	UID             int
	Phi             float64 // Azimuthal angle in [0, 2pi)
	AzimIndex       int
	Start, End      r2.Vec
	Segments        []Segment
	Weights         []float64
	VolumeWeight    float64 // Azimuthal weight times track spacing
	TrackIn         int
	TrackOut        int
	ReflIn, ReflOut bool
	BCIn, BCOut     types.BoundaryType
}

func (t *Track) NumSegments() int { return len(t.Segments) }

// Length is the sum of the segment chord lengths
func (t *Track) Length() (length float64) {
	for _, s := range t.Segments {
		length += s.Length
	}
	return
}

func (t *Track) String() string {
	return fmt.Sprintf("Track uid = %d, phi = %g, start = (%g, %g), end = (%g, %g), segments = %d, "+
		"in = %d (refl %v, %s), out = %d (refl %v, %s)",
		t.UID, t.Phi, t.Start.X, t.Start.Y, t.End.X, t.End.Y, len(t.Segments),
		t.TrackIn, t.ReflIn, t.BCIn, t.TrackOut, t.ReflOut, t.BCOut)
}

// TrackSet is an ordered collection of tracks sharing one polar quadrature
type TrackSet struct {
	Tracks  []*Track
	Polar   *quadrature.Polar
	NumAzim int
}

func (ts *TrackSet) NumTracks() int       { return len(ts.Tracks) }
func (ts *TrackSet) Track(i int) *Track   { return ts.Tracks[i] }
func (ts *TrackSet) NumPolar() int        { return ts.Polar.NumPolar() }
func (ts *TrackSet) SinThetas() []float64 { return ts.Polar.SinThetas() }

// NumSegments is the total segment count over every track
func (ts *TrackSet) NumSegments() (n int) {
	for _, t := range ts.Tracks {
		n += len(t.Segments)
	}
	return
}

// Validate checks the track connections and segment regions are in range and
// every track carries one weight per polar angle
func (ts *TrackSet) Validate(numRegions int) (err error) {
	var (
		nt = len(ts.Tracks)
		np = ts.NumPolar()
	)
	for i, t := range ts.Tracks {
		switch {
		case t.TrackIn < 0 || t.TrackIn >= nt:
			return fmt.Errorf("%w: track %d connects in to track %d of %d", ErrTrack, i, t.TrackIn, nt)
		case t.TrackOut < 0 || t.TrackOut >= nt:
			return fmt.Errorf("%w: track %d connects out to track %d of %d", ErrTrack, i, t.TrackOut, nt)
		case len(t.Weights) != np:
			return fmt.Errorf("%w: track %d has %d weights for %d polar angles", ErrTrack, i, len(t.Weights), np)
		}
		for j, s := range t.Segments {
			if s.Region < 0 || s.Region >= numRegions {
				return fmt.Errorf("%w: track %d segment %d is in region %d of %d",
					ErrTrack, i, j, s.Region, numRegions)
			}
			if s.Material == nil || !(s.Length >= 0) {
				return fmt.Errorf("%w: track %d segment %d has length %g, material %v",
					ErrTrack, i, j, s.Length, s.Material)
			}
		}
	}
	return
}
