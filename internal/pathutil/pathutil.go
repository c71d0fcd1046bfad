// Package pathutil implements lexical path normalization for
// user-supplied data-dir arguments. It performs no filesystem syscalls
// and never resolves symlinks; it is adequate only for cleaning up a
// path string, not for answering questions about what that path points
// at on disk.
package pathutil

import "strings"

// Normalize walks path's components and, on encountering "..", pops the
// last pushed component from the stack; if the stack is empty or its top
// is itself a literal "..", the ".." is pushed literally instead (so
// "../../a" stays "../../a"). A trailing separator in the input is
// preserved in the output, matching what a user-supplied data-dir
// argument's own trailing-slash intent would be.
func Normalize(path string) string {
	trailingSlash := strings.HasSuffix(path, "/")
	leadingSlash := strings.HasPrefix(path, "/")

	var stack []string
	for _, component := range strings.Split(path, "/") {
		switch component {
		case "", ".":
			continue
		case "..":
			if n := len(stack); n > 0 && stack[n-1] != ".." {
				stack = stack[:n-1]
			} else {
				stack = append(stack, "..")
			}
		default:
			stack = append(stack, component)
		}
	}

	result := strings.Join(stack, "/")
	if leadingSlash {
		result = "/" + result
	}
	if trailingSlash {
		result += "/"
	}
	if result == "" {
		result = "."
	}
	return result
}
