package store

import (
	"fmt"
	"path/filepath"
)

// Storage drivers accepted by Open.
const (
	DriverJSON     = "json"
	DriverMarkdown = "markdown"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Options selects and locates a storage driver.
type Options struct {
	Driver  string
	DataDir string
	// ContentDir holds the Markdown collection. Defaults to
	// <DataDir>/content/blog.
	ContentDir string
}

// Backend bundles the repositories of one storage driver.
type Backend struct {
	Posts    PostRepository
	Identity IdentityRepository
	closer   func() error
}

// Close releases the resources held by the driver.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Open builds the repositories for opts.Driver.
func Open(opts Options) (*Backend, error) {
	switch opts.Driver {
	case DriverJSON, "":
		fs, err := NewJSONFile(opts.DataDir)
		if err != nil {
			return nil, err
		}
		return &Backend{Posts: fs, Identity: fs}, nil

	case DriverMarkdown:
		fs, err := NewJSONFile(opts.DataDir)
		if err != nil {
			return nil, err
		}
		dir := opts.ContentDir
		if dir == "" {
			dir = filepath.Join(opts.DataDir, "content", "blog")
		}
		return &Backend{Posts: NewMarkdown(dir), Identity: fs}, nil

	case DriverSQLite:
		db, err := NewSQLite(opts.DataDir)
		if err != nil {
			return nil, err
		}
		return &Backend{Posts: db, Identity: db, closer: db.Close}, nil

	case DriverMemory:
		m := NewMemory()
		return &Backend{Posts: m, Identity: m}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (want json, markdown, sqlite or memory)", opts.Driver)
	}
}
