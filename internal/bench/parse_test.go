package bench

import (
	"errors"
	"testing"
)

func TestNormalize_TextRecord(t *testing.T) {
	got, err := Normalize("alpha", []byte("alpha,1000,0.42"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := Sample{Name: "alpha", Timestamp: 1000, Value: 0.42}
	if got != want {
		t.Errorf("Normalize = %+v, want %+v", got, want)
	}
}

func TestNormalize_TextRecordsFirstMatchWins(t *testing.T) {
	raw := []byte("beta,900,0.10\nalpha,1000,0.42\nalpha,1100,0.99")
	got, err := Normalize("alpha", raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Timestamp != 1000 || got.Value != 0.42 {
		t.Errorf("Normalize = %+v, want the first alpha record (1000, 0.42)", got)
	}
}

func TestNormalize_JSONRecordList(t *testing.T) {
	raw := []byte(`["beta,900,0.10", "alpha,1000,0.42"]`)
	got, err := Normalize("alpha", raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Timestamp != 1000 || got.Value != 0.42 {
		t.Errorf("Normalize = %+v, want (1000, 0.42)", got)
	}
}

func TestNormalize_SeriesObjectsLastPairWins(t *testing.T) {
	raw := []byte(`[
		{"name": "beta",  "data": [[800, 0.1]]},
		{"name": "alpha", "data": [[900, 0.3], [1000, 0.5]]}
	]`)
	got, err := Normalize("alpha", raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := Sample{Name: "alpha", Timestamp: 1000, Value: 0.5}
	if got != want {
		t.Errorf("Normalize = %+v, want %+v (latest pair)", got, want)
	}
}

func TestNormalize_SeriesTableLastPairWins(t *testing.T) {
	raw := []byte(`{"alpha": [[900, 0.3], [1000, 0.5]], "beta": [[1000, 0.9]]}`)
	got, err := Normalize("alpha", raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := Sample{Name: "alpha", Timestamp: 1000, Value: 0.5}
	if got != want {
		t.Errorf("Normalize = %+v, want %+v (latest pair)", got, want)
	}
}

func TestNormalize_FractionalTimestamp(t *testing.T) {
	raw := []byte(`{"alpha": [[1000.5, 0.5]]}`)
	got, err := Normalize("alpha", raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Timestamp != 1000 {
		t.Errorf("Timestamp = %d, want 1000 (truncated)", got.Timestamp)
	}
}

func TestNormalize_UnrecognizedShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"bare number", "42"},
		{"object of scalars", `{"alpha": 0.5}`},
		{"array of numbers", `[1, 2, 3]`},
		{"table pair too long", `{"alpha": [[1, 2, 3]]}`},
		{"malformed json", `{"alpha": [[900, 0.3]`},
		{"record with bad value", "alpha,1000,not-a-number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Normalize("alpha", []byte(tc.raw)); !errors.Is(err, ErrUnrecognizedShape) {
				t.Errorf("Normalize(%q) err = %v, want ErrUnrecognizedShape", tc.raw, err)
			}
		})
	}
}

func TestNormalize_SeriesNotFound(t *testing.T) {
	cases := []string{
		"beta,1000,0.42",
		`[{"name": "beta", "data": [[1000, 0.5]]}]`,
		`{"beta": [[1000, 0.5]]}`,
		`[{"name": "alpha", "data": []}]`,
	}
	for _, raw := range cases {
		if _, err := Normalize("alpha", []byte(raw)); !errors.Is(err, ErrSeriesNotFound) {
			t.Errorf("Normalize(%q) err = %v, want ErrSeriesNotFound", raw, err)
		}
	}
}
