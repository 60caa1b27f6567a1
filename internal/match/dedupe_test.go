package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name  string
		input []Record
		want  []string
	}{
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
		{
			name: "branch listings collapse onto the main site",
			input: []Record{
				rec("A1", "Gemeinschaftsschule Kiel", "Hauptstrasse 1", "24103"),
				rec("A2", "Gemeinschaftsschule Kiel", "Nebenweg 4", "24103"),
				rec("B1", "Gymnasium Kiel", "Schulweg 3", "24103"),
			},
			want: []string{"A1", "B1"},
		},
		{
			name: "same name in another postal code is kept",
			input: []Record{
				rec("A1", "Grundschule", "Hauptstrasse 1", "24103"),
				rec("A2", "Grundschule", "Hauptstrasse 1", "24105"),
			},
			want: []string{"A1", "A2"},
		},
		{
			name: "duplicate id is dropped after the site pass",
			input: []Record{
				rec("X", "Grundschule Nord", "Hauptstrasse 1", "24103"),
				rec("Y", "Grundschule Sued", "Hauptstrasse 9", "24103"),
				rec("X", "Realschule", "Am Markt 2", "24105"),
			},
			want: []string{"X", "Y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedupe(tt.input)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestDedupeKeepsFirstRecordContent(t *testing.T) {
	input := []Record{
		rec("X", "Grundschule Nord", "Hauptstrasse 1", "24103"),
		rec("X", "Grundschule Sued", "Hauptstrasse 9", "24103"),
	}

	got := Dedupe(input)

	assert.Len(t, got, 1)
	assert.Equal(t, "Grundschule Nord", got[0].Name)
}
