package hospital

import (
	"fmt"
	"strings"
)

// Record is one hospital row from the network dataset. Records are built once
// at startup and never mutated afterwards.
type Record struct {
	ID        int               `json:"id"`
	Name      string            `json:"name"`
	City      string            `json:"city"`
	Address   string            `json:"address"`
	InNetwork bool              `json:"in_network"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Document composes the natural-language text that gets embedded for this
// record. Field order matches the original dataset documents.
func (r Record) Document() string {
	status := "out of network"
	if r.InNetwork {
		status = "in network"
	}
	return fmt.Sprintf("%s, %s, %s. This hospital is %s.", r.Name, r.Address, r.City, status)
}

// NetworkStatus returns a display string for the network flag.
func (r Record) NetworkStatus() string {
	if r.InNetwork {
		return "In network"
	}
	return "Out of network"
}

// Normalize folds a hospital name or query for comparison: lower-case,
// punctuation stripped, whitespace collapsed.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
