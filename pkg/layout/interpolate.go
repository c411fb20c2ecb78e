package layout

import (
	"sort"

	"github.com/matzehuels/lineage/pkg/lineage"
)

// Interpolator maps a year onto the backbone's vertical axis.
type Interpolator struct {
	years []float64
	ys    []float64
}

// NewInterpolator collects the dated backbone nodes of g.
func NewInterpolator(g *lineage.Graph) *Interpolator {
	in := &Interpolator{}
	for _, n := range g.Backbone() {
		if n.Year == nil {
			continue
		}
		in.years = append(in.years, float64(*n.Year))
		in.ys = append(in.ys, float64(n.Seq)*Spacing)
	}
	sort.Stable(in)
	return in
}

func (in *Interpolator) Len() int           { return len(in.years) }
func (in *Interpolator) Less(i, j int) bool { return in.years[i] < in.years[j] }
func (in *Interpolator) Swap(i, j int) {
	in.years[i], in.years[j] = in.years[j], in.years[i]
	in.ys[i], in.ys[j] = in.ys[j], in.ys[i]
}

// Y returns the vertical position for year, interpolated linearly between
// the two nearest backbone nodes and clamped to the first and last. It
// returns DefaultY when year is nil or no backbone node is dated.
func (in *Interpolator) Y(year *int) float64 {
	if year == nil || in == nil || len(in.years) == 0 {
		return DefaultY
	}
	y := float64(*year)
	last := len(in.years) - 1
	if y <= in.years[0] {
		return in.ys[0]
	}
	if y >= in.years[last] {
		return in.ys[last]
	}
	i := sort.SearchFloat64s(in.years, y)
	// years[i-1] < y <= years[i]
	lo, hi := i-1, i
	span := in.years[hi] - in.years[lo]
	if span == 0 {
		return in.ys[hi]
	}
	t := (y - in.years[lo]) / span
	return in.ys[lo] + t*(in.ys[hi]-in.ys[lo])
}
