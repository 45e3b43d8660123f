package bench

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnrecognizedShape marks a response matching none of the known feed
	// shapes. The poller skips the target for the cycle.
	ErrUnrecognizedShape = errors.New("bench: unrecognized response shape")

	// ErrSeriesNotFound marks a well-formed response that carries no data for
	// the requested series name.
	ErrSeriesNotFound = errors.New("bench: series not found in response")
)

// Sample is one normalized benchmark observation.
type Sample struct {
	Name      string
	Timestamp int64
	Value     float64
}

// The feed answers in one of three shapes. Each is decoded into its own
// variant of payload and normalized by its own function; there is no
// fall-through guessing between variants once the shape is identified.
type payload struct {
	records []string                 // "name,timestamp,value" text records
	series  []namedSeries            // objects with a name and [timestamp, value] pairs
	table   map[string][]json.Number // name -> flattened [timestamp, value] pairs
}

type namedSeries struct {
	Name string          `json:"name"`
	Data [][]json.Number `json:"data"`
}

// Normalize decodes raw and extracts the sample for the named series.
// Text records use the first match; the pair-list shapes use the last
// (most recent) pair.
func Normalize(name string, raw []byte) (Sample, error) {
	p, err := decode(raw)
	if err != nil {
		return Sample{}, err
	}
	switch {
	case p.records != nil:
		return fromRecords(name, p.records)
	case p.series != nil:
		return fromSeries(name, p.series)
	case p.table != nil:
		return fromTable(name, p.table)
	}
	return Sample{}, ErrUnrecognizedShape
}

// decode identifies the shape from the leading byte and parses raw into the
// matching payload variant.
func decode(raw []byte) (payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return payload{}, ErrUnrecognizedShape
	}

	switch trimmed[0] {
	case '{':
		var table map[string][][]json.Number
		if err := json.Unmarshal(trimmed, &table); err != nil {
			return payload{}, fmt.Errorf("%w: %s", ErrUnrecognizedShape, "object is not a series table")
		}
		flat := make(map[string][]json.Number, len(table))
		for k, pairs := range table {
			for _, pr := range pairs {
				if len(pr) != 2 {
					return payload{}, fmt.Errorf("%w: %s", ErrUnrecognizedShape, "table pair is not [timestamp, value]")
				}
				flat[k] = append(flat[k], pr[0], pr[1])
			}
		}
		return payload{table: flat}, nil

	case '[':
		// A JSON array is either a list of text records or a list of named
		// series objects; the first element decides.
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil || len(elems) == 0 {
			return payload{}, ErrUnrecognizedShape
		}
		if bytes.TrimSpace(elems[0])[0] == '"' {
			var records []string
			if err := json.Unmarshal(trimmed, &records); err != nil {
				return payload{}, ErrUnrecognizedShape
			}
			return payload{records: records}, nil
		}
		var series []namedSeries
		if err := json.Unmarshal(trimmed, &series); err != nil {
			return payload{}, fmt.Errorf("%w: %s", ErrUnrecognizedShape, "array is neither records nor series")
		}
		return payload{series: series}, nil

	default:
		// Bare delimited text, one record per line. Anything without at
		// least one three-field line is not this shape.
		lines := strings.Split(string(trimmed), "\n")
		records := make([]string, 0, len(lines))
		for _, l := range lines {
			if l = strings.TrimSpace(l); l != "" && strings.Count(l, ",") >= 2 {
				records = append(records, l)
			}
		}
		if len(records) == 0 {
			return payload{}, ErrUnrecognizedShape
		}
		return payload{records: records}, nil
	}
}

// fromRecords scans "name,timestamp,value" records positionally and returns
// the first one whose name matches.
func fromRecords(name string, records []string) (Sample, error) {
	for _, rec := range records {
		fields := strings.Split(rec, ",")
		if len(fields) < 3 || strings.TrimSpace(fields[0]) != name {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: bad timestamp in matched record", ErrUnrecognizedShape)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: bad value in matched record", ErrUnrecognizedShape)
		}
		return Sample{Name: name, Timestamp: ts, Value: val}, nil
	}
	return Sample{}, ErrSeriesNotFound
}

// fromSeries returns the last [timestamp, value] pair of the matching series.
func fromSeries(name string, series []namedSeries) (Sample, error) {
	for _, s := range series {
		if s.Name != name {
			continue
		}
		if len(s.Data) == 0 {
			return Sample{}, ErrSeriesNotFound
		}
		last := s.Data[len(s.Data)-1]
		if len(last) != 2 {
			return Sample{}, fmt.Errorf("%w: series pair is not [timestamp, value]", ErrUnrecognizedShape)
		}
		return pairSample(name, last[0], last[1])
	}
	return Sample{}, ErrSeriesNotFound
}

// fromTable returns the last pair of the named entry in a series table.
func fromTable(name string, table map[string][]json.Number) (Sample, error) {
	flat, ok := table[name]
	if !ok || len(flat) < 2 {
		return Sample{}, ErrSeriesNotFound
	}
	return pairSample(name, flat[len(flat)-2], flat[len(flat)-1])
}

func pairSample(name string, ts, val json.Number) (Sample, error) {
	t, err := ts.Int64()
	if err != nil {
		// Some feeds emit fractional epoch timestamps.
		f, ferr := ts.Float64()
		if ferr != nil {
			return Sample{}, fmt.Errorf("%w: bad pair timestamp", ErrUnrecognizedShape)
		}
		t = int64(f)
	}
	v, err := val.Float64()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: bad pair value", ErrUnrecognizedShape)
	}
	return Sample{Name: name, Timestamp: t, Value: v}, nil
}
