package compute

import (
	"strings"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// DefaultRevision names the revision segment of entries without a revision.
const DefaultRevision = "default"

// OutputLocation derives where an execution writes its results:
// <prefix>/<country>/<revision|default>/<timestamp>/.
func OutputLocation(prefix string, p core.JobParams, timestamp string) string {
	revision := p.Revision
	if revision == "" {
		revision = DefaultRevision
	}
	segments := []string{
		strings.TrimRight(prefix, "/"),
		pathSegment(p.Country),
		pathSegment(revision),
		pathSegment(timestamp),
	}
	return strings.Join(segments, "/") + "/"
}

// pathSegment keeps a value from introducing extra path levels.
func pathSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
