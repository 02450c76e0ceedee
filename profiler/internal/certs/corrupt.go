package certs

import (
	"fmt"
	"os"
)

// Corrupt applies the word-boundary case mutation to PEM data: every byte
// that starts a run of word characters ([A-Za-z0-9_]) is upper-cased. This is
// the Go equivalent of `sed -e "s/\b\(.\)/\u\1/g"` and mutates both the
// base64 payload and any lower-case text in the BEGIN/END markers, so the
// result fails any real PEM parser regardless of the original line wrapping.
func Corrupt(data []byte) []byte {
	out := make([]byte, len(data))
	inWord := false
	for i, b := range data {
		if isWordByte(b) {
			if !inWord {
				b = upper(b)
			}
			inWord = true
		} else {
			inWord = false
		}
		out[i] = b
	}
	return out
}

// CorruptFile reads src, applies Corrupt, and writes the result to dst with
// the given mode. src is left untouched.
func CorruptFile(src, dst string, mode os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("certs: read %q: %w", src, err)
	}
	if err := os.WriteFile(dst, Corrupt(data), mode); err != nil {
		return fmt.Errorf("certs: write %q: %w", dst, err)
	}
	return nil
}

func isWordByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '_':
		return true
	}
	return false
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
