package solver

import (
	"github.com/notargets/gomoc/utils"
)

// RegionGroupArray is a region major [region][group] array, each region row
// holding NumGroups contiguous values
type RegionGroupArray struct {
	Data                  []float64
	NumRegions, NumGroups int
}

func NewRegionGroupArray(name string, numRegions, numGroups, alignment int) (a RegionGroupArray, err error) {
	if a.Data, err = utils.AlignedFloat64s(name, numRegions*numGroups, alignment); err != nil {
		return
	}
	a.NumRegions, a.NumGroups = numRegions, numGroups
	return
}

func (a RegionGroupArray) Index(r, g int) int      { return r*a.NumGroups + g }
func (a RegionGroupArray) At(r, g int) float64     { return a.Data[r*a.NumGroups+g] }
func (a RegionGroupArray) Set(r, g int, v float64) { a.Data[r*a.NumGroups+g] = v }
func (a RegionGroupArray) Row(r int) []float64     { return a.Data[r*a.NumGroups : (r+1)*a.NumGroups] }
func (a RegionGroupArray) Fill(v float64)          { fill(a.Data, v) }
func (a *RegionGroupArray) Release()               { *a = RegionGroupArray{} }

// TrackArray is the [track][direction][polar][group] boundary flux layout.
// Direction 0 is forward, 1 is reverse.
type TrackArray struct {
	Data                           []float64
	NumTracks, NumPolar, NumGroups int
}

func NewTrackArray(name string, numTracks, numPolar, numGroups, alignment int) (a TrackArray, err error) {
	if a.Data, err = utils.AlignedFloat64s(name, numTracks*2*numPolar*numGroups, alignment); err != nil {
		return
	}
	a.NumTracks, a.NumPolar, a.NumGroups = numTracks, numPolar, numGroups
	return
}

func (a TrackArray) Index(t, d, p, g int) int {
	return ((t*2+d)*a.NumPolar+p)*a.NumGroups + g
}

// Slot is the NumPolar x NumGroups block of track t in direction d
func (a TrackArray) Slot(t, d int) []float64 {
	var (
		n     = a.NumPolar * a.NumGroups
		start = (t*2 + d) * n
	)
	return a.Data[start : start+n]
}

func (a TrackArray) Fill(v float64) { fill(a.Data, v) }
func (a *TrackArray) Release()      { *a = TrackArray{} }

func fill(data []float64, v float64) {
	for i := range data {
		data[i] = v
	}
}
