// Package pathutil handles the slash-separated entry names of dataset
// archives.
package pathutil

import "strings"

// DirPrefix returns the prefix shared by every entry below the directory
// name. For "." or "", it returns "" so the prefix matches all names.
func DirPrefix(name string) string {
	name = strings.TrimSuffix(name, "/")
	if name == "" || name == "." {
		return ""
	}
	return name + "/"
}

// DirEntry returns the tar entry name for the directory name, which carries
// a trailing slash.
func DirEntry(name string) string {
	return DirPrefix(name)
}

// Rel returns name relative to prefix, as produced by DirPrefix. It reports
// false when name lies outside prefix or names the directory itself.
func Rel(name, prefix string) (string, bool) {
	rel, ok := strings.CutPrefix(name, prefix)
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

// TopLevel splits an entry name into its first element and the remainder.
// It reports false when name has no slash or an empty first element.
func TopLevel(name string) (top, rest string, ok bool) {
	top, rest, ok = strings.Cut(name, "/")
	if !ok || top == "" || top == "." || top == ".." {
		return "", "", false
	}
	return top, rest, true
}
