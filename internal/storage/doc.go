// Package storage persists received uploads into a destination directory
// and opens local files for sending.
package storage
