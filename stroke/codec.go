package stroke

import "encoding/json"

// Wire records use pointer fields so a missing coordinate or color is
// distinguishable from a zero one. Decode drops malformed records instead
// of failing the whole document: a half-written stroke from the peer should
// never blank the guesser's canvas.

type wirePoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type wireStroke struct {
	Points []wirePoint `json:"points"`
	Color  *string     `json:"color"`
}

// Encode converts a drawing to its transport document.
func Encode(d Drawing) ([]byte, error) {
	records := make([]wireStroke, len(d))
	for i, s := range d {
		points := make([]wirePoint, len(s.Points))
		for j := range s.Points {
			points[j] = wirePoint{X: &s.Points[j].X, Y: &s.Points[j].Y}
		}
		color := string(s.Color)
		records[i] = wireStroke{Points: points, Color: &color}
	}
	return json.Marshal(records)
}

// Decode converts a transport document back to a drawing. Stroke records
// missing points or color are dropped, as are points missing a coordinate;
// an empty or unparseable document decodes to an empty drawing.
func Decode(data []byte) Drawing {
	if len(data) == 0 {
		return Drawing{}
	}

	var records []wireStroke
	if err := json.Unmarshal(data, &records); err != nil {
		return Drawing{}
	}

	d := make(Drawing, 0, len(records))
	for _, r := range records {
		if r.Points == nil || r.Color == nil {
			continue
		}
		points := make([]Point, 0, len(r.Points))
		for _, p := range r.Points {
			if p.X == nil || p.Y == nil {
				continue
			}
			points = append(points, Point{X: *p.X, Y: *p.Y})
		}
		d = append(d, Stroke{Points: points, Color: ParseColor(*r.Color)})
	}
	return d
}
