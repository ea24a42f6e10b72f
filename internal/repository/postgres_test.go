package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ventilator", want: "ventilator"},
		{in: "_", want: `\_`},
		{in: "100%", want: `100\%`},
		{in: `a\b`, want: `a\\b`},
		{in: `%_\`, want: `\%\_\\`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeLike(tt.in))
		})
	}
}
