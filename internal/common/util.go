package common

import "strings"

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used for password buffers once they have been handed to the identity provider.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

// NormalizeHandle lowercases a user handle and strips a leading '@'.
func NormalizeHandle(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(h)
}

// NormalizeEmail trims and lowercases an e-mail address.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
