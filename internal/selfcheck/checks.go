package selfcheck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/star/skywatch/internal/heavens"
)

// ManifestFile is the project manifest the manifest check reads.
const ManifestFile = "skywatch.yaml"

// RequiredFiles are the files the file structure check expects.
var RequiredFiles = []string{
	ManifestFile,
	"cmd/skywatch/main.go",
	"internal/heavens/options.go",
	"internal/satellite/satellite.go",
	"internal/iridium/iridium.go",
}

// FileStructure checks that every file exists in fsys.
func FileStructure(fsys fs.FS, files ...string) Check {
	return Check{
		Name: "file structure",
		Run: func() error {
			for _, f := range files {
				_, err := fs.Stat(fsys, f)
				if err := assertf(err == nil, "required file %s should exist", f); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Manifest checks that the project manifest declares a name, version, main
// package and start, test and lint scripts, all as strings.
func Manifest(fsys fs.FS, name string) Check {
	return Check{
		Name: "manifest",
		Run: func() error {
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}

			var m map[string]any
			if err := yaml.Unmarshal(data, &m); err != nil {
				return fmt.Errorf("parsing %s: %w", name, err)
			}

			for _, key := range []string{"name", "version", "main"} {
				_, ok := m[key].(string)
				if err := assertf(ok, "%s should have a %s string", name, key); err != nil {
					return err
				}
			}

			scripts, ok := m["scripts"].(map[string]any)
			if err := assertf(ok, "%s should have scripts", name); err != nil {
				return err
			}
			for _, key := range []string{"start", "test", "lint"} {
				_, ok := scripts[key].(string)
				if err := assertf(ok, "%s should have a %s script", name, key); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Utils bundles the helper functions under check.
type Utils struct {
	ParseTimestamp  func(string) (int, error)
	Hash            func(string) string
	BuildGetOptions func(string) heavens.RequestOptions
}

// DefaultUtils returns the heavens package helpers.
func DefaultUtils() Utils {
	return Utils{
		ParseTimestamp:  heavens.ParseTimestamp,
		Hash:            heavens.Hash,
		BuildGetOptions: heavens.BuildGetOptions,
	}
}

// UtilsCheck exercises the clock parser, hash and option builder.
func UtilsCheck(u Utils) Check {
	return Check{
		Name: "utils",
		Run: func() error {
			sec, err := u.ParseTimestamp("12:30:45")
			if err != nil {
				return fmt.Errorf("ParseTimestamp: %w", err)
			}
			if err := assertf(sec == 12*3600+30*60+45, "ParseTimestamp should calculate seconds correctly, got %d", sec); err != nil {
				return err
			}
			_, err = u.ParseTimestamp("12:30")
			if err := assertf(errors.Is(err, heavens.ErrInvalidFormat), "ParseTimestamp should reject malformed input"); err != nil {
				return err
			}

			h := u.Hash("test")
			if err := assertf(len(h) == 32, "Hash should be 32 characters long, got %d", len(h)); err != nil {
				return err
			}
			if err := assertf(strings.Trim(h, "0123456789abcdef") == "", "Hash should be lowercase hex, got %q", h); err != nil {
				return err
			}
			if err := assertf(u.Hash("test") == h, "Hash should be deterministic"); err != nil {
				return err
			}

			opts := u.BuildGetOptions("test")
			return assertf(opts.Method == http.MethodGet, "BuildGetOptions should use GET method, got %q", opts.Method)
		},
	}
}

// Source checks that a table source is wired and reports the expected name.
func Source(name string, g heavens.TableGetter) Check {
	return Check{
		Name: name,
		Run: func() error {
			return checkSource(name, g)
		},
	}
}

// LiveSource is Source plus one real GetTable call, which must return a
// non-empty table or an error.
func LiveSource(ctx context.Context, name string, g heavens.TableGetter) Check {
	return Check{
		Name: name,
		Run: func() error {
			if err := checkSource(name, g); err != nil {
				return err
			}
			t, err := g.GetTable(ctx)
			if err != nil {
				return err
			}
			if err := assertf(t != nil, "%s GetTable returned no table and no error", name); err != nil {
				return err
			}
			return assertf(len(t.Rows) > 0, "%s GetTable returned an empty table", name)
		},
	}
}

func checkSource(name string, g heavens.TableGetter) error {
	if err := assertf(g != nil, "%s source should be provided", name); err != nil {
		return err
	}
	return assertf(g.Name() == name, "%s source reports name %q", name, g.Name())
}
