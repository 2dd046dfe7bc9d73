package tvstream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateIntervalTable(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"1", true},
		{"5", true},
		{"1440", true},
		{"1441", false},
		{"0", false},
		{"15S", true},
		{"1S", true},
		{"60S", true},  // boundary max per §3.1's stated [1,60] range
		{"61S", false}, // one past max
		{"1H", true},
		{"168H", true}, // boundary max per §3.1's stated [1,168] range
		{"169H", false},
		{"25H", true}, // well within [1,168]; see DESIGN.md's interval-grammar note
		{"D", true},
		{"1D", true},
		{"365D", true},
		{"0D", false},
		{"400D", false},
		{"W", true},
		{"52W", true},
		{"53W", false},
		{"M", true},
		{"1M", true},
		{"12M", true},
		{"13M", false},
		{"", false},
		{"1.5", false},
		{"-1", false},
		{"01", false},
	}

	for _, c := range cases {
		_, err := ValidateInterval(c.raw)
		if c.ok {
			require.NoErrorf(t, err, "expected %q to be valid", c.raw)
		} else {
			require.Errorf(t, err, "expected %q to be invalid", c.raw)
			require.True(t, errors.Is(err, ErrInvalidInterval))
		}
	}
}
