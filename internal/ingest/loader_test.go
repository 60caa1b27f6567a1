package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl-matching/internal/match"
	"github.com/shl-matching/internal/normalize"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPrimary(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "primary.json", `[
		{"id": "S1", "name": "Grundschule Nord", "anschrift": "Hauptstr. 5", "plz": 4109, "ort": "Leipzig"},
		{"id": 17, "name": "Gymnasium; Kiel", "anschrift": null, "plz": "24103", "ort": "Kiel"}
	]`)

	records, err := NewLoader(nil, false).LoadPrimary(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, match.Record{
		ID:            "S1",
		Name:          "Grundschule Nord",
		StreetAddress: "Hauptstraße 5",
		PostalCode:    "04109",
		City:          "Leipzig",
	}, records[0])

	assert.Equal(t, "17", records[1].ID)
	assert.Equal(t, "Gymnasium  Kiel", records[1].Name)
	assert.Equal(t, normalize.Empty, records[1].StreetAddress)
}

func TestLoadPrimaryErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing id",
			content: `[{"name": "Schule", "anschrift": "Weg 1", "plz": "24103", "ort": "Kiel"}]`,
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "postal code too long",
			content: `[{"id": "S1", "name": "Schule", "anschrift": "Weg 1", "plz": "241030", "ort": "Kiel"}]`,
			wantErr: ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "primary.json", tt.content)
			_, err := NewLoader(nil, false).LoadPrimary(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewLoader(nil, false).LoadPrimary(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeFile(t, dir, "broken.json", `{"id": `)
	_, err = NewLoader(nil, false).LoadPrimary(path)
	assert.Error(t, err)
}

func TestLoadPrimaryMissingPostalCode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "primary.json", `[{"id": "S1", "name": "Schule", "anschrift": "Weg 1", "ort": "Kiel"}]`)

	records, err := NewLoader(nil, false).LoadPrimary(path)
	require.NoError(t, err)
	assert.Equal(t, normalize.Empty, records[0].PostalCode)
}

func TestLoadCandidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `[
		{"info": {"id": "SH-2", "name": "Realschule", "address": "Am Markt 2", "zip": "24103", "city": "Kiel"}}
	]`)
	writeFile(t, dir, "a.json", `[
		{"info": {"id": "SH-1", "name": "Grundschule Nord", "address": "Hauptstr. 5", "zip": "24103", "city": "Kiel",
		          "website": "www.gs-nord.de", "phone": "", "director": "Frau Meier"}},
		{"info": {"id": "SH-bad", "name": "Schule", "address": "Weg 1", "zip": "1234567", "city": "Kiel"}}
	]`)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	records, err := NewLoader(nil, false).LoadCandidates(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "SH-1", records[0].ID)
	assert.Equal(t, "SH-2", records[1].ID)
	assert.Equal(t, "Hauptstraße 5", records[0].StreetAddress)

	attrs := records[0].Attributes
	assert.Equal(t, match.Optional{Value: "www.gs-nord.de", Valid: true}, attrs.Website)
	assert.Equal(t, match.Optional{Value: normalize.Empty}, attrs.Phone)
	assert.Equal(t, match.Optional{Value: normalize.Empty}, attrs.Fax)
	assert.Equal(t, "Frau Meier", attrs.Director.String())
}

func TestLoadCandidatesNoInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "nothing here")

	_, err := NewLoader(nil, false).LoadCandidates(dir)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = NewLoader(nil, false).LoadCandidates(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTextUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{`"24103"`, "24103", false},
		{`4109`, "4109", false},
		{`1067.0`, "1067", false},
		{`12.5`, "12.5", false},
		{`true`, "", true},
		{`{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var v text
			err := v.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(v))
		})
	}
}
