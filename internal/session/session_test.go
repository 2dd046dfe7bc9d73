package session

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^cs_[a-z]{12}$`)

func TestNewFormat(t *testing.T) {
	id := New("cs_")
	require.Regexp(t, idPattern, id)
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := New("qs_")
		require.False(t, seen[id], "collision generating session id %s", id)
		seen[id] = true
	}
}
