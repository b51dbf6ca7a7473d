// Package utils provides small filesystem-path helper functions shared
// across the CLI, such as sanitizing filenames and normalizing extensions.
package utils
