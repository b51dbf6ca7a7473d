package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "valid filename",
			input:    "test_file.txt",
			expected: "test_file.txt",
		},
		{
			name:     "invalid characters",
			input:    "test<file>.txt",
			expected: "test_file_.txt",
		},
		{
			name:     "Windows reserved name",
			input:    "CON",
			expected: "_CON",
		},
		{
			name:     "trailing dots",
			input:    "test...",
			expected: "test",
		},
		{
			name:     "only dots",
			input:    "...",
			expected: "_",
		},
		{
			name:     "control characters",
			input:    "test\x00file",
			expected: "test_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := SanitizeFilename(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSetFileExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		filename  string
		extension string
		replace   bool
		expected  string
	}{
		{
			name:      "add extension to file without extension",
			filename:  "testfile",
			extension: ".txt",
			replace:   false,
			expected:  "testfile.txt",
		},
		{
			name:      "add extension without dot",
			filename:  "testfile",
			extension: "txt",
			replace:   false,
			expected:  "testfile.txt",
		},
		{
			name:      "replace existing extension",
			filename:  "testfile.txt",
			extension: ".mp3",
			replace:   true,
			expected:  "testfile.mp3",
		},
		{
			name:      "keep existing extension when not replacing",
			filename:  "testfile.txt",
			extension: ".mp3",
			replace:   false,
			expected:  "testfile.txt.mp3",
		},
		{
			name:      "same extension",
			filename:  "testfile.txt",
			extension: ".txt",
			replace:   true,
			expected:  "testfile.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := SetFileExtension(tt.filename, tt.extension, tt.replace)
			assert.Equal(t, tt.expected, result)
		})
	}
}
