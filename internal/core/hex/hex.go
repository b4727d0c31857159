// Package hex implements the cube-coordinate hex grid used by every spatial
// rule: distance, line interpolation, neighbours, reachability and line of
// sight.
package hex

import (
	"fmt"
	"math"
)

// Coord is a cube coordinate. Every Coord produced by this package satisfies
// Q + R + S == 0.
type Coord struct {
	Q int `json:"q" yaml:"q"`
	R int `json:"r" yaml:"r"`
	S int `json:"s" yaml:"s"`
}

// New builds a coordinate from its axial part.
func New(q, r int) Coord {
	return Coord{Q: q, R: r, S: -q - r}
}

// Valid reports whether the cube invariant holds.
func (c Coord) Valid() bool {
	return c.Q+c.R+c.S == 0
}

func (c Coord) Add(o Coord) Coord {
	return Coord{Q: c.Q + o.Q, R: c.R + o.R, S: c.S + o.S}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.Q, c.R, c.S)
}

// Less orders coordinates by Q then R. Used wherever a fixed tie-break over
// hexes is needed.
func (c Coord) Less(o Coord) bool {
	if c.Q != o.Q {
		return c.Q < o.Q
	}
	return c.R < o.R
}

// Directions are the six cube neighbour offsets.
var Directions = [6]Coord{
	{Q: 1, R: 0, S: -1},
	{Q: 1, R: -1, S: 0},
	{Q: 0, R: -1, S: 1},
	{Q: -1, R: 0, S: 1},
	{Q: -1, R: 1, S: 0},
	{Q: 0, R: 1, S: -1},
}

// Neighbors returns the six adjacent coordinates.
func (c Coord) Neighbors() [6]Coord {
	var out [6]Coord
	for i, d := range Directions {
		out[i] = c.Add(d)
	}
	return out
}

// Distance is the Chebyshev distance over the three cube axes.
func Distance(a, b Coord) int {
	return max(abs(a.Q-b.Q), abs(a.R-b.R), abs(a.S-b.S))
}

// Line returns the hexes from a to b inclusive. The endpoints are nudged by a
// tiny fixed offset so that a line running exactly along a hex edge always
// resolves to the same side.
func Line(a, b Coord) []Coord {
	n := Distance(a, b)
	if n == 0 {
		return []Coord{a}
	}

	aq, ar, as := float64(a.Q)+1e-6, float64(a.R)+2e-6, float64(a.S)-3e-6
	bq, br, bs := float64(b.Q)+1e-6, float64(b.R)+2e-6, float64(b.S)-3e-6

	out := make([]Coord, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		out = append(out, round(lerp(aq, bq, t), lerp(ar, br, t), lerp(as, bs, t)))
	}
	return out
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// round converts fractional cube coordinates to the nearest hex, fixing the
// component with the largest rounding error so the invariant holds.
func round(fq, fr, fs float64) Coord {
	q, r, s := math.Round(fq), math.Round(fr), math.Round(fs)
	dq, dr, ds := math.Abs(q-fq), math.Abs(r-fr), math.Abs(s-fs)

	switch {
	case dq > dr && dq > ds:
		q = -r - s
	case dr > ds:
		r = -q - s
	default:
		s = -q - r
	}
	return Coord{Q: int(q), R: int(r), S: int(s)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
