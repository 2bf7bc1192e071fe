package params

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// Canonical returns the stable serialization of p used for deduplication:
// non-empty fields as key=value lines sorted by key. Set-like list fields are
// sorted so their entry order does not affect identity.
func Canonical(p core.JobParams) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		var value string
		switch {
		case f.kind == kindInt:
			n := *f.number(&p)
			if n == 0 {
				continue
			}
			value = strconv.Itoa(n)
		case f.kind == kindSet:
			items := strings.Split(*f.text(&p), ",")
			sort.Strings(items)
			value = strings.Join(items, ",")
		default:
			value = *f.text(&p)
		}
		if value == "" {
			continue
		}
		lines = append(lines, f.key+"="+value)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// Signature returns the exact-match deduplication key for p.
func Signature(p core.JobParams) string {
	sum := sha256.Sum256([]byte(Canonical(p)))
	return hex.EncodeToString(sum[:])
}
