package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEntitySetEncodeWireFields(t *testing.T) {
	e := NewEntity("7", KindEmployee, 1451628000000, Point{X: 1.5, Y: 2, Z: 0}, []Attr{
		Int64Attr(AttrHeading, 270),
		Int64Attr(AttrConfidence, 97536),
		StringAttr(AttrEquipment, "scanner"),
		DoubleAttr("battery", 0.5),
	})

	b, err := EntitySet{Entities: []Entity{e}}.Encode(false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := string(b)
	for _, want := range []string{
		`"entities":[`,
		`"identity":"7"`,
		`"kind":"employee"`,
		`"timestamp-ms":1451628000000`,
		`"path":[{"x":1.5,"y":2,"z":0}]`,
		`{"key":"heading","type":"INT64","int64-value":270}`,
		`{"key":"equip","type":"STRING","str-value":"scanner"}`,
		`{"key":"battery","type":"DOUBLE","double-value":0.5}`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("encoded payload missing %s:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\n") {
		t.Fatalf("compact encoding should not contain newlines")
	}
}

func TestEntitySetEncodeEmpty(t *testing.T) {
	b, err := EntitySet{}.Encode(false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(b) != `{"entities":[]}` {
		t.Fatalf("empty set = %s, want {\"entities\":[]}", b)
	}
}

func TestAttrUnmarshalRejectsUnknownType(t *testing.T) {
	var a Attr
	err := json.Unmarshal([]byte(`{"key":"k","type":"BLOB"}`), &a)
	if err == nil {
		t.Fatalf("expected error for unknown attr type")
	}
}

func TestEntityCloneIsDeep(t *testing.T) {
	e := NewEntity("1", KindEmployee, 0, Point{}, []Attr{Int64Attr(AttrHeading, 0)})
	c := e.Clone()
	c.Position().X = 42
	c.Attr(AttrHeading).Int64 = 90

	if e.Position().X != 0 {
		t.Fatalf("clone shares path with original")
	}
	if e.Attr(AttrHeading).Int64 != 0 {
		t.Fatalf("clone shares attrs with original")
	}
}

func TestImpactEntity(t *testing.T) {
	imp := Impact{ID: 3, TimestampMs: 1000, Level: 2, Intensity: "6.4 G / 4.1 G", Position: Point{X: 5, Y: 6}}
	e := imp.Entity()
	if e.Identity != "3" || e.Kind != KindImpact || e.TimestampMs != 1000 {
		t.Fatalf("unexpected impact entity header: %+v", e)
	}
	if e.Attr(AttrLevel).Int64 != 2 || e.Attr(AttrIntensity).Str != "6.4 G / 4.1 G" {
		t.Fatalf("unexpected impact attrs: %+v", e.Attrs)
	}
	if *e.Position() != (Point{X: 5, Y: 6}) {
		t.Fatalf("impact position = %+v", *e.Position())
	}
}

func TestVenueValidate(t *testing.T) {
	tests := []struct {
		name    string
		venue   Venue
		wantErr bool
	}{
		{name: "metric default", venue: DefaultMetricVenue()},
		{name: "geodetic default", venue: DefaultGeodeticVenue()},
		{name: "flat x", venue: Venue{TopRight: Corner{X: 0, Y: 10}}, wantErr: true},
		{name: "inverted y", venue: Venue{BottomLeft: Corner{Y: 5}, TopRight: Corner{X: 10, Y: 1}}, wantErr: true},
		{name: "latitude out of range", venue: Venue{System: CoordsLatLong, BottomLeft: Corner{X: 0, Y: 89}, TopRight: Corner{X: 1, Y: 91}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.venue.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}

	err := Venue{}.Validate()
	if !errors.Is(err, ErrDegenerateVenue) {
		t.Fatalf("zero venue err=%v, want ErrDegenerateVenue", err)
	}
}
