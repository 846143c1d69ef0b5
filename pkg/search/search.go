// Package search finds the lines of a text that contain a query, optionally
// ignoring case, and fans multi-file searches out over a worker pool.
package search

import (
	"errors"
	"strings"
)

// EnvCaseInsensitive switches searches to case-insensitive when set, to any
// value.
const EnvCaseInsensitive = "CASE_INSENSITIVE"

// ErrNotEnoughArguments is returned by ParseArgs for fewer than two operands.
var ErrNotEnoughArguments = errors.New("not enough arguments")

// Config is a parsed search invocation.
type Config struct {
	Query         string
	Filenames     []string
	CaseSensitive bool
}

// ParseArgs reads a program-style argument list: args[0] is the program
// name, args[1] the query and args[2:] the files to search.
// lookupEnv is usually os.LookupEnv.
func ParseArgs(args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	if len(args) < 3 {
		return Config{}, ErrNotEnoughArguments
	}

	_, insensitive := lookupEnv(EnvCaseInsensitive)
	return Config{
		Query:         args[1],
		Filenames:     append([]string(nil), args[2:]...),
		CaseSensitive: !insensitive,
	}, nil
}

// Search returns the lines of contents containing query, in order.
func Search(query, contents string) []string {
	var results []string
	for _, line := range lines(contents) {
		if strings.Contains(line, query) {
			results = append(results, line)
		}
	}
	return results
}

// SearchCaseInsensitive is Search with both sides lower-cased. The returned
// lines keep their original case.
func SearchCaseInsensitive(query, contents string) []string {
	query = strings.ToLower(query)

	var results []string
	for _, line := range lines(contents) {
		if strings.Contains(strings.ToLower(line), query) {
			results = append(results, line)
		}
	}
	return results
}

// lines splits on "\n", drops a trailing "\r" from each line and ignores a
// final empty line.
func lines(contents string) []string {
	if contents == "" {
		return nil
	}
	out := strings.Split(contents, "\n")
	if out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for i, l := range out {
		out[i] = strings.TrimSuffix(l, "\r")
	}
	return out
}

// Match dispatches to Search or SearchCaseInsensitive.
func (c Config) Match(contents string) []string {
	if c.CaseSensitive {
		return Search(c.Query, contents)
	}
	return SearchCaseInsensitive(c.Query, contents)
}
