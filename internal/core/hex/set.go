package hex

import (
	"encoding/json"
	"sort"

	"gopkg.in/yaml.v3"
)

// Set is an unordered collection of coordinates. It serializes as a sorted
// list so persisted snapshots are stable.
type Set map[Coord]struct{}

func NewSet(coords ...Coord) Set {
	s := make(Set, len(coords))
	for _, c := range coords {
		s[c] = struct{}{}
	}
	return s
}

func (s Set) Add(c Coord) {
	s[c] = struct{}{}
}

func (s Set) Has(c Coord) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members ordered by Coord.Less.
func (s Set) Sorted() []Coord {
	out := make([]Coord, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Disk returns every hex within radius of center.
func Disk(center Coord, radius int) Set {
	out := NewSet()
	for q := -radius; q <= radius; q++ {
		for r := max(-radius, -q-radius); r <= min(radius, -q+radius); r++ {
			out.Add(center.Add(New(q, r)))
		}
	}
	return out
}

func (s Set) Clone() Set {
	out := make(Set, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var coords []Coord
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	*s = NewSet(coords...)
	return nil
}

func (s Set) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

func (s *Set) UnmarshalYAML(node *yaml.Node) error {
	var coords []Coord
	if err := node.Decode(&coords); err != nil {
		return err
	}
	for i := range coords {
		// fixtures usually omit s
		coords[i] = New(coords[i].Q, coords[i].R)
	}
	*s = NewSet(coords...)
	return nil
}
