package track

import (
	"fmt"
)

// EstimateVolumes sums, per region, the segment lengths times the volume
// weight of their track
func EstimateVolumes(ts *TrackSet, numRegions int) (volumes []float64, err error) {
	volumes = make([]float64, numRegions)
	for i, t := range ts.Tracks {
		for j, s := range t.Segments {
			if s.Region < 0 || s.Region >= numRegions {
				err = fmt.Errorf("%w: track %d segment %d is in region %d of %d", ErrTrack, i, j, s.Region, numRegions)
				return nil, err
			}
			volumes[s.Region] += s.Length * t.VolumeWeight
		}
	}
	return
}
