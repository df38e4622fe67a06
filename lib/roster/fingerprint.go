package roster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fingerprint summarizes the parts of a roster a pilot cares about
// changing: which duties exist, their type, times and leg count.
// Enrichment-only changes (crew phone numbers, hotel addresses) do not
// change the fingerprint.
func Fingerprint(duties []Duty) string {
	lines := make([]string, 0, len(duties))
	for _, d := range duties {
		lines = append(lines, fmt.Sprintf("%s|%s|%s|%s|%s|%d", d.Id, d.Type, d.Date, d.Start, d.End, len(d.Legs)))
	}
	sort.Strings(lines)

	hash := sha256.New()
	for _, line := range lines {
		hash.Write([]byte(line))
		hash.Write([]byte{'\n'})
	}
	return hex.EncodeToString(hash.Sum(nil))
}
