package types

import (
	"io/fs"
	"time"
)

// Entry represents one child of a directory being listed
type Entry struct {
	Path    string
	RelPath string
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
}

// PlaceMethod records how a file reached the output tree
type PlaceMethod string

const (
	MethodLink PlaceMethod = "link"
	MethodCopy PlaceMethod = "copy"
)

// RecordKind distinguishes manifest rows for files and directories
type RecordKind string

const (
	KindFile RecordKind = "file"
	KindDir  RecordKind = "dir"
)

// Record is a manifest row for one emitted file or directory
type Record struct {
	Path    string      `json:"path"`
	Kind    RecordKind  `json:"kind"`
	Size    int64       `json:"size,omitempty"`
	Method  PlaceMethod `json:"method,omitempty"`
	Entries int         `json:"entries,omitempty"`
	Mode    fs.FileMode `json:"mode,omitempty"`
}

// BuildInfo describes a single run of the builder
type BuildInfo struct {
	ID         string    `json:"id"`
	InputDir   string    `json:"input_dir"`
	OutputDir  string    `json:"output_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Stats aggregates the manifest of a build
type Stats struct {
	Directories int   `json:"directories"`
	Files       int   `json:"files"`
	Linked      int   `json:"linked"`
	Copied      int   `json:"copied"`
	Bytes       int64 `json:"bytes"`
}
