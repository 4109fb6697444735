// Package archive keeps fetched tables: the latest per source in memory and
// a bounded history per source as JSON files on disk.
package archive
