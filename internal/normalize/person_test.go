package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersonName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                string
		full, first, last   string
		wantFirst, wantLast string
	}{
		{"split full", "john smith", "", "", "John", "Smith"},
		{"honorific and suffix", "Mr. John A. Smith III", "", "", "John A.", "Smith"},
		{"prof", "Prof Ada Lovelace", "", "", "Ada", "Lovelace"},
		{"single token", "Cher", "", "", "Cher", ""},
		{"empty", "", "", "", "", ""},
		{"already split", "ignored value", "mrs. MARY", "jones sr.", "Mary", "Jones"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			first, last := PersonName(tt.full, tt.first, tt.last)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Vice President", "VP"},
		{"vice-president, marketing", "VP, Marketing"},
		{"V.P. Engineering", "VP Engineering"},
		{"VP of Operations", "VP Operations"},
		{"chief executive officer", "CEO"},
		{"C.E.O.", "CEO"},
		{"Chief Financial Officer", "CFO"},
		{"dir. of people", "Director Of People"},
		{"hr manager", "HR Manager"},
		{"Director", "Director"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Title(tt.in))
		})
	}
}
