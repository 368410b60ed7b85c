package contrast

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// indexed is a quadtree entry pointing back at a slice position.
type indexed struct {
	at  orb.Point
	pos int
}

func (i indexed) Point() orb.Point { return i.at }

// streetIndex finds street segments whose geometry may touch a query bound.
// Streets are keyed by the centre of their bound, so queries are padded by
// the largest half-extent of any street.
type streetIndex struct {
	streets []model.StreetSegment
	ids     map[int64]int
	tree    *quadtree.Quadtree
	pad     float64
}

// newStreetIndex indexes every street that has at least one vertex.
func newStreetIndex(streets []model.StreetSegment) *streetIndex {
	idx := &streetIndex{ids: make(map[int64]int, len(streets))}
	for _, s := range streets {
		if _, ok := s.FirstPoint(); !ok {
			continue
		}
		if _, dup := idx.ids[s.ID]; dup {
			continue
		}
		idx.ids[s.ID] = len(idx.streets)
		idx.streets = append(idx.streets, s)
	}
	if len(idx.streets) == 0 {
		return idx
	}

	all := idx.streets[0].Bound()
	for _, s := range idx.streets[1:] {
		all = all.Union(s.Bound())
	}
	idx.tree = quadtree.New(all)

	for i, s := range idx.streets {
		b := s.Bound()
		idx.pad = math.Max(idx.pad, math.Max(b.Right()-b.Left(), b.Top()-b.Bottom())/2)
		// The bound centre always lies inside the union bound.
		_ = idx.tree.Add(indexed{at: b.Center(), pos: i})
	}
	return idx
}

// candidates returns the streets whose bound may intersect b, ordered by id.
func (idx *streetIndex) candidates(b orb.Bound) []model.StreetSegment {
	if idx.tree == nil {
		return nil
	}
	hits := idx.tree.InBound(nil, b.Pad(idx.pad))
	out := make([]model.StreetSegment, 0, len(hits))
	for _, h := range hits {
		s := idx.streets[h.(indexed).pos]
		if s.Bound().Intersects(b) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// crossing returns the streets that share at least one point with segment a-b,
// ordered by id.
func (idx *streetIndex) crossing(a, b orb.Point) []model.StreetSegment {
	var out []model.StreetSegment
	for _, s := range idx.candidates(orb.MultiPoint{a, b}.Bound()) {
		if len(geometry.SegmentLineIntersections(a, b, s.Lines)) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// byID returns the street with the given id.
func (idx *streetIndex) byID(id int64) (model.StreetSegment, bool) {
	i, ok := idx.ids[id]
	if !ok {
		return model.StreetSegment{}, false
	}
	return idx.streets[i], true
}

// lightIndex answers radius queries over streetlights.
type lightIndex struct {
	lights []model.Streetlight
	tree   *quadtree.Quadtree
}

func newLightIndex(lights []model.Streetlight) *lightIndex {
	idx := &lightIndex{lights: lights}
	if len(lights) == 0 {
		return idx
	}

	all := orb.Bound{Min: lights[0].Point, Max: lights[0].Point}
	for _, l := range lights[1:] {
		all = all.Extend(l.Point)
	}
	idx.tree = quadtree.New(all)
	for i, l := range lights {
		_ = idx.tree.Add(indexed{at: l.Point, pos: i})
	}
	return idx
}

// within returns every light no farther than radius meters from p, ordered
// by streetlight id.
func (idx *lightIndex) within(p orb.Point, radius float64) []model.LightDistance {
	if idx.tree == nil {
		return []model.LightDistance{}
	}
	hits := idx.tree.InBound(nil, geometry.BoundAround(p, radius))
	out := make([]model.LightDistance, 0, len(hits))
	for _, h := range hits {
		l := idx.lights[h.(indexed).pos]
		if d := geometry.Distance(p, l.Point); d <= radius {
			out = append(out, model.LightDistance{StreetlightID: l.ID, DistanceM: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StreetlightID != out[j].StreetlightID {
			return out[i].StreetlightID < out[j].StreetlightID
		}
		return out[i].DistanceM < out[j].DistanceM
	})
	return out
}
