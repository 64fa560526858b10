// Package stroke models the drawings relayed between players and their
// transport form: a JSON document of stroke records, one {points, color}
// object per stroke.
package stroke

// Color is one of the fixed palette entries a stroke can be drawn in.
type Color string

const (
	Green  Color = "green"
	Orange Color = "orange"
	Blue   Color = "blue"
	Red    Color = "red"
	Pink   Color = "pink"
	Purple Color = "purple"
)

// Palette lists the colors in picker order.
var Palette = []Color{Green, Orange, Blue, Red, Pink, Purple}

// ParseColor maps a color name to a palette entry, falling back to green
// for anything unrecognized.
func ParseColor(name string) Color {
	for _, c := range Palette {
		if string(c) == name {
			return c
		}
	}
	return Green
}

// Point is a single 2-D canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous pointer path in one color. Point order is the
// path; it must survive transport unchanged.
type Stroke struct {
	Points []Point `json:"points"`
	Color  Color   `json:"color"`
}

// Drawing is everything currently on a player's canvas, in draw order.
type Drawing []Stroke

// Append extends the drawing with a new single-point stroke, the way a
// fresh pointer-down gesture starts one.
func (d Drawing) Append(p Point, c Color) Drawing {
	return append(d, Stroke{Points: []Point{p}, Color: c})
}

// Extend adds a point to the most recent stroke. A point with no stroke to
// join is dropped, matching a drag event arriving before its pointer-down.
func (d Drawing) Extend(p Point) Drawing {
	if len(d) == 0 {
		return d
	}
	last := len(d) - 1
	d[last].Points = append(d[last].Points, p)
	return d
}

// Clone returns a deep copy.
func (d Drawing) Clone() Drawing {
	if d == nil {
		return nil
	}
	out := make(Drawing, len(d))
	for i, s := range d {
		out[i] = Stroke{
			Points: append([]Point(nil), s.Points...),
			Color:  s.Color,
		}
	}
	return out
}
