package hex

// Paths maps every reachable hex to the shortest ordered path leading to it.
// The start hex maps to an empty path; other paths exclude the start and end
// with the destination.
type Paths map[Coord][]Coord

// Reachable runs a breadth-first search from start over the six neighbours,
// at most steps moves deep. passable decides whether a hex may be entered; the
// start hex itself is never tested.
func Reachable(start Coord, steps int, passable func(Coord) bool) Paths {
	paths := Paths{start: {}}
	if steps <= 0 {
		return paths
	}

	frontier := []Coord{start}
	for depth := 0; depth < steps && len(frontier) > 0; depth++ {
		var next []Coord
		for _, cur := range frontier {
			for _, n := range cur.Neighbors() {
				if _, seen := paths[n]; seen {
					continue
				}
				if passable != nil && !passable(n) {
					continue
				}
				p := make([]Coord, len(paths[cur]), len(paths[cur])+1)
				copy(p, paths[cur])
				paths[n] = append(p, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return paths
}

// Shortest returns the candidate present in paths with the fewest steps. Ties
// are broken by Coord.Less so the choice never depends on map order.
func (p Paths) Shortest(candidates []Coord) (Coord, []Coord, bool) {
	var (
		best     Coord
		bestPath []Coord
		found    bool
	)
	for _, c := range candidates {
		path, ok := p[c]
		if !ok {
			continue
		}
		if !found || len(path) < len(bestPath) || (len(path) == len(bestPath) && c.Less(best)) {
			best, bestPath, found = c, path, true
		}
	}
	return best, bestPath, found
}

// Keys lists the reachable hexes.
func (p Paths) Keys() []Coord {
	out := make([]Coord, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	return out
}

// LineOfSight holds when every hex strictly between a and b on Line(a, b) is
// walkable. Endpoints are occupied by the observer and the observed.
func LineOfSight(a, b Coord, walkable Set) bool {
	line := Line(a, b)
	for i := 1; i < len(line)-1; i++ {
		if !walkable.Has(line[i]) {
			return false
		}
	}
	return true
}
