package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCol(t *testing.T) {
	assert.Equal(t, "company_name", normalizeCol(" Company Name "))
	assert.Equal(t, "linkedin_url", normalizeCol("LinkedIn-URL"))
	assert.Equal(t, "first_name", normalizeCol(`"First.Name"`))
}

func TestMapColumns_FirstDuplicateWins(t *testing.T) {
	cols := mapColumns([]string{"Email", "Name", "email"})
	assert.Equal(t, 0, cols["email"])
	assert.Equal(t, 1, cols["name"])
}

func TestRowGet_AliasPriority(t *testing.T) {
	r := row{
		cols: mapColumns([]string{"Company", "Name", "Short"}),
		rec:  []string{"Acme Holdings", "", "x"},
	}
	// "name" is empty, so the next alias with a value is used.
	assert.Equal(t, "Acme Holdings", r.get(companyColumns, "name"))
	assert.Empty(t, r.get(companyColumns, "website"))
}

func TestRowGet_ShortRecord(t *testing.T) {
	r := row{cols: mapColumns([]string{"name", "website"}), rec: []string{"Acme"}}
	assert.Empty(t, r.get(companyColumns, "website"))
}

func TestParseIntPtr(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"120", intp(120)},
		{"1,200", intp(1200)},
		{" 51.0 ", intp(51)},
		{"", nil},
		{"51-200", nil},
	}
	for _, tt := range tests {
		got := parseIntPtr(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, tt.in)
			continue
		}
		require.NotNil(t, got, tt.in)
		assert.Equal(t, *tt.want, *got, tt.in)
	}
}

func intp(v int) *int { return &v }
