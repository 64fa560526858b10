package stroke

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestRoundTrip(t *testing.T) {
	d := Drawing{
		{Points: []Point{{X: 1, Y: 2}, {X: 3.5, Y: 4.25}, {X: 0, Y: -7}}, Color: Red},
		{Points: []Point{{X: 100, Y: 200}}, Color: Purple},
		{Points: []Point{}, Color: Green},
	}

	data, err := Encode(d)
	if err != nil {
		t.Fatalf("encode failed: %s", err)
	}

	got := Decode(data)
	if diff := cmp.Diff(d, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("drawing changed across transport (-want +got):\n%s", diff)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	data, err := Encode(Drawing{})
	if err != nil {
		t.Fatalf("encode failed: %s", err)
	}
	if got := Decode(data); len(got) != 0 {
		t.Errorf("empty drawing round-tripped to %d strokes", len(got))
	}
}

func TestDecodeDropsMalformedStrokes(t *testing.T) {
	doc := []byte(`[
		{"points": [{"x": 1, "y": 2}], "color": "blue"},
		{"points": [{"x": 1, "y": 2}]},
		{"color": "red"},
		{"points": [{"x": 1, "y": 2}, {"x": 3}, {"y": 4}], "color": "pink"}
	]`)

	got := Decode(doc)
	want := Drawing{
		{Points: []Point{{X: 1, Y: 2}}, Color: Blue},
		{Points: []Point{{X: 1, Y: 2}}, Color: Pink},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("partial decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeGarbage(t *testing.T) {
	for _, doc := range [][]byte{nil, []byte(""), []byte("{"), []byte(`"hi"`), []byte(`{"a":1}`)} {
		if got := Decode(doc); len(got) != 0 {
			t.Errorf("garbage %q decoded to %d strokes", doc, len(got))
		}
	}
}

func TestParseColorFallback(t *testing.T) {
	if got := ParseColor("chartreuse"); got != Green {
		t.Errorf("unknown color should fall back to green, got %s", got)
	}
	for _, c := range Palette {
		if got := ParseColor(string(c)); got != c {
			t.Errorf("palette color %s parsed as %s", c, got)
		}
	}
}

func TestAppendExtend(t *testing.T) {
	var d Drawing
	d = d.Append(Point{X: 1, Y: 1}, Orange)
	d = d.Extend(Point{X: 2, Y: 2})
	d = d.Extend(Point{X: 3, Y: 3})
	d = d.Append(Point{X: 9, Y: 9}, Blue)

	if len(d) != 2 {
		t.Fatalf("want 2 strokes, got %d", len(d))
	}
	if len(d[0].Points) != 3 {
		t.Errorf("first stroke should have 3 points, got %d", len(d[0].Points))
	}
	if d[1].Color != Blue {
		t.Errorf("second stroke should be blue")
	}

	// A drag with no stroke started yet is dropped.
	var empty Drawing
	if got := empty.Extend(Point{X: 1, Y: 1}); len(got) != 0 {
		t.Errorf("extending an empty drawing should be a no-op")
	}
}
