package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	geojson "github.com/paulmach/go.geojson"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// Format selects how FileSink renders batches.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat accepts json, csv or geojson in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatGeoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// FileSink writes batches to a local stream instead of uploading them.
//
// json writes each batch as an indented entity set. csv writes one line per
// record: seconds, identity, kind, x, y, confidence. geojson writes each
// batch as a single-line FeatureCollection of points.
type FileSink struct {
	format Format
	w      *bufio.Writer
	closer io.Closer
}

// NewFileSink writes to w. w is not closed by Close.
func NewFileSink(w io.Writer, format Format) *FileSink {
	return &FileSink{format: format, w: bufio.NewWriter(w)}
}

// OpenFileSink creates (or truncates) path. An empty path or "-" writes to
// stdout.
func OpenFileSink(path string, format Format) (*FileSink, error) {
	if path == "" || path == "-" {
		return NewFileSink(os.Stdout, format), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	s := NewFileSink(f, format)
	s.closer = f
	return s, nil
}

func (s *FileSink) Name() string { return string(s.format) }

func (s *FileSink) Send(_ context.Context, dataset string, set model.EntitySet) error {
	var err error
	switch s.format {
	case FormatCSV:
		err = writeCSV(s.w, set)
	case FormatGeoJSON:
		err = writeGeoJSON(s.w, dataset, set)
	default:
		err = writeJSON(s.w, set)
	}
	if err != nil {
		return fmt.Errorf("write %s batch: %w", s.format, err)
	}
	// Flush per batch so a tail -f sees whole batches.
	return s.w.Flush()
}

func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func writeJSON(w io.Writer, set model.EntitySet) error {
	b, err := set.Encode(true)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func writeCSV(w io.Writer, set model.EntitySet) error {
	for i := range set.Entities {
		e := &set.Entities[i]
		pos := e.Position()
		conf := 0.0
		if a := e.Attr(model.AttrConfidence); a != nil {
			conf = a.Float64()
		}
		if _, err := fmt.Fprintf(w, "%d, %s, %s, %.9f, %.9f, %.1f\n",
			e.TimestampMs/1000, e.Identity, e.Kind, pos.X, pos.Y, conf); err != nil {
			return err
		}
	}
	return nil
}

func writeGeoJSON(w io.Writer, dataset string, set model.EntitySet) error {
	fc := geojson.NewFeatureCollection()
	for i := range set.Entities {
		e := &set.Entities[i]
		pos := e.Position()
		f := geojson.NewPointFeature([]float64{pos.X, pos.Y})
		f.ID = e.Identity
		f.SetProperty("dataset", dataset)
		f.SetProperty("kind", e.Kind)
		f.SetProperty("timestamp-ms", e.TimestampMs)
		for _, a := range e.Attrs {
			switch a.Type {
			case model.AttrTypeString:
				f.SetProperty(a.Key, a.Str)
			case model.AttrTypeInt64:
				f.SetProperty(a.Key, a.Int64)
			default:
				f.SetProperty(a.Key, a.Double)
			}
		}
		fc.AddFeature(f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
