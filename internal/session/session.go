// Package session generates the client-chosen session identifiers used for
// the quote and chart sessions of a Transport.
package session

import (
	"github.com/google/uuid"
)

const idLength = 12

// New returns a new session id of the form <prefix><12 lowercase letters>,
// drawn from a cryptographically strong source. uuid.New reads its entropy
// from crypto/rand; the first 12 of its 16 bytes are each reduced mod 26
// into the a-z alphabet rather than used as hex, since the wire protocol
// expects plain letters.
func New(prefix string) string {
	id := uuid.New()
	b := id[:]

	letters := make([]byte, idLength)
	for i := 0; i < idLength; i++ {
		letters[i] = 'a' + b[i]%26
	}
	return prefix + string(letters)
}
