package model

import (
	"encoding/json"
	"fmt"
)

// AttrType tags which typed value field an attribute carries on the wire.
type AttrType string

const (
	AttrTypeString AttrType = "STRING"
	AttrTypeInt64  AttrType = "INT64"
	AttrTypeDouble AttrType = "DOUBLE"
)

// Attr is a typed key/value attribute. Exactly one of the value fields is
// meaningful, selected by Type.
type Attr struct {
	Key    string
	Type   AttrType
	Str    string
	Int64  int64
	Double float64
}

// StringAttr builds a STRING attribute.
func StringAttr(key, v string) Attr { return Attr{Key: key, Type: AttrTypeString, Str: v} }

// Int64Attr builds an INT64 attribute.
func Int64Attr(key string, v int64) Attr { return Attr{Key: key, Type: AttrTypeInt64, Int64: v} }

// DoubleAttr builds a DOUBLE attribute.
func DoubleAttr(key string, v float64) Attr { return Attr{Key: key, Type: AttrTypeDouble, Double: v} }

// Clone returns a copy of the attribute.
func (a Attr) Clone() Attr { return a }

// Float64 returns the numeric value of the attribute regardless of its
// numeric type. STRING attributes return 0.
func (a Attr) Float64() float64 {
	switch a.Type {
	case AttrTypeInt64:
		return float64(a.Int64)
	case AttrTypeDouble:
		return a.Double
	default:
		return 0
	}
}

// String renders the value for delimited text output.
func (a Attr) String() string {
	switch a.Type {
	case AttrTypeInt64:
		return fmt.Sprintf("%d", a.Int64)
	case AttrTypeDouble:
		return fmt.Sprintf("%g", a.Double)
	default:
		return a.Str
	}
}

type wireAttr struct {
	Key    string   `json:"key"`
	Type   AttrType `json:"type"`
	Str    *string  `json:"str-value,omitempty"`
	Int64  *int64   `json:"int64-value,omitempty"`
	Double *float64 `json:"double-value,omitempty"`
}

// MarshalJSON emits the typed value field matching Type.
func (a Attr) MarshalJSON() ([]byte, error) {
	w := wireAttr{Key: a.Key, Type: a.Type}
	switch a.Type {
	case AttrTypeString:
		v := a.Str
		w.Str = &v
	case AttrTypeInt64:
		v := a.Int64
		w.Int64 = &v
	case AttrTypeDouble:
		v := a.Double
		w.Double = &v
	default:
		return nil, fmt.Errorf("attr %q: unsupported type %q", a.Key, a.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the typed value field matching the declared type.
func (a *Attr) UnmarshalJSON(b []byte) error {
	var w wireAttr
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = Attr{Key: w.Key, Type: w.Type}
	switch w.Type {
	case AttrTypeString:
		if w.Str != nil {
			a.Str = *w.Str
		}
	case AttrTypeInt64:
		if w.Int64 != nil {
			a.Int64 = *w.Int64
		}
	case AttrTypeDouble:
		if w.Double != nil {
			a.Double = *w.Double
		}
	default:
		return fmt.Errorf("attr %q: unsupported type %q", w.Key, w.Type)
	}
	return nil
}
