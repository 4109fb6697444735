// Package heavens holds the helpers shared by the heavens-above table
// sources: clock parsing, content hashing, GET option assembly and the
// single-request table fetch.
package heavens
