// Package security implements the pre-execution static scan of submitted
// source code.
//
// The scan is deliberately crude: a case-insensitive substring match over
// the whole submission, comments and string literals included. False
// positives are accepted; the point is to reject the bulk of obviously
// unsafe submissions before paying any isolation cost. The real trust
// boundary is the execution backend — passing this filter does not make
// code safe to run unsandboxed.
package security

import "strings"

// Match describes why a submission was rejected.
type Match struct {
	// Category is the pattern group that fired, e.g. "dynamic execution".
	Category string
	// Pattern is the blocked substring that was found.
	Pattern string
}

// category pairs a name with its blocklist. Patterns are matched against
// the lowercased source, so they must be lowercase themselves.
type category struct {
	name     string
	patterns []string
}

var categories = []category{
	{
		name: "dynamic execution",
		patterns: []string{
			"eval(",
			"exec(",
			"compile(",
			"__import__",
			"getattr(",
			"function(",
		},
	},
	{
		name: "process escape",
		patterns: []string{
			"import os",
			"import subprocess",
			"import sys",
			"from os",
			"from subprocess",
			"os.system",
			"child_process",
			"require('os')",
			"require(\"os\")",
			"proc_open",
		},
	},
	{
		name: "filesystem access",
		patterns: []string{
			"open(",
			"file(",
			"fopen(",
			"readfile",
			"writefile",
			"fs.read",
			"fs.write",
		},
	},
	{
		name: "interactive input",
		patterns: []string{
			"input(",
			"raw_input(",
		},
	},
	{
		name: "destructive shell",
		patterns: []string{
			"rm -rf",
			"sudo ",
			"mkfs",
			"dd if=",
			"wget ",
			"curl ",
			":(){",
			"> /dev/",
		},
	},
}

// Scan checks the submission against every category blocklist and returns
// the first match, or nil when the code is allowed. A match anywhere in the
// source counts; there is no whitelisting and no attempt to parse the code.
func Scan(code string) *Match {
	lower := strings.ToLower(code)
	for _, cat := range categories {
		for _, pattern := range cat.patterns {
			if strings.Contains(lower, pattern) {
				return &Match{Category: cat.name, Pattern: pattern}
			}
		}
	}
	return nil
}

// Categories lists the pattern group names, for introspection.
func Categories() []string {
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		names = append(names, cat.name)
	}
	return names
}
