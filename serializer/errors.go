package serializer

import "fmt"

// FormatError is raised for anything that makes a byte stream unusable
// as a compiled artifact: a bad marker, truncated section, commit-hash
// width mismatch, or an oversize constants/code section at dump time.
type FormatError struct {
	File    string
	Message string
}

func newFormatError(file, message string) FormatError {
	return FormatError{File: file, Message: message}
}

func (e FormatError) Error() string {
	return fmt.Sprintf("💥 A fatal error occurred while serializing '%s' -> %s", e.File, e.Message)
}
