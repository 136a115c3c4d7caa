// Package oracle decides whether an iteration satisfies ralf's completion
// predicate: every required verifier passed, and the model's stdout
// contains the literal configured promise tag.
package oracle

import (
	"fmt"
	"strings"

	"github.com/danshapiro/ralf/internal/verifier"
)

// PromiseTag returns the literal substring an iteration's stdout must
// contain to satisfy the promise-tag half of completion.
func PromiseTag(promise string) string {
	return fmt.Sprintf("<promise>%s</promise>", promise)
}

// HasPromiseTag reports whether stdout contains a literal, case-sensitive
// occurrence of PromiseTag(promise).
func HasPromiseTag(stdout string, promise string) bool {
	return strings.Contains(stdout, PromiseTag(promise))
}

// IsComplete reports whether an iteration is complete: every name in
// required has status pass in results, AND stdout contains the literal
// promise tag. Neither condition alone is sufficient; verifier results
// from a previous iteration must never be passed in here.
func IsComplete(stdout string, promise string, required []string, results map[string]verifier.Result) bool {
	return verifier.RequiredPassed(required, results) && HasPromiseTag(stdout, promise)
}
