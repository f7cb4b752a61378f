// Package cli parses the surveyctl command line into an Invocation and
// reports usage errors with their exit code.
package cli
