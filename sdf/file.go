package sdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PlasmaFAIR/sdf-xarray/internal/binary"
)

// File represents an open SDF file. Block metadata is parsed eagerly on Open;
// mesh and variable payloads are read on demand.
//
// A File is safe for concurrent payload reads: every read takes the file's
// lock. Close is idempotent.
type File struct {
	path   string
	file   *os.File
	reader *binary.Reader
	header *Header

	runInfo   map[string]any
	grids     map[string]*Mesh
	gridsByID map[string]*Mesh
	variables map[string]*Variable
	constants map[string]*Constant

	// pendingMesh holds raw mesh-id references until all blocks are parsed.
	pendingMesh map[*Variable]string

	mu     sync.Mutex
	closed bool
}

// Open opens an SDF file for reading and parses its block metadata.
func Open(path string) (*File, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	reader := binary.NewReader(osFile)
	header, err := readHeader(reader)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	f := &File{
		path:        path,
		file:        osFile,
		reader:      reader,
		header:      header,
		grids:       map[string]*Mesh{},
		gridsByID:   map[string]*Mesh{},
		variables:   map[string]*Variable{},
		constants:   map[string]*Constant{},
		pendingMesh: map[*Variable]string{},
	}

	if err := f.parseBlocks(); err != nil {
		osFile.Close()
		return nil, err
	}

	return f, nil
}

// parseBlocks walks the block list from the header's first block location.
func (f *File) parseBlocks() error {
	location := f.header.FirstBlockLocation
	for i := int32(0); i < f.header.NBlocks; i++ {
		r := f.reader.At(location)
		b, err := readBlockHeader(r, int(f.header.StringLength))
		if err != nil {
			return fmt.Errorf("reading block %d header: %w", i, err)
		}
		if err := f.parseBlock(b, r); err != nil {
			return fmt.Errorf("parsing block %q: %w", b.name, err)
		}
		if b.nextBlock <= location {
			return fmt.Errorf("corrupt block list: block %q points backwards", b.name)
		}
		location = b.nextBlock
	}

	// Resolve mesh ids to block names, including the midpoint variant.
	for v, meshID := range f.pendingMesh {
		if m, ok := f.gridsByID[meshID]; ok {
			v.Grid = m.Name
		}
		if m, ok := f.gridsByID[meshID+"_mid"]; ok {
			v.GridMid = m.Name
		}
	}
	f.pendingMesh = nil

	return nil
}

// Close closes the file. It is safe to call multiple times.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.file.Close()
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Header returns the parsed file header.
func (f *File) Header() *Header {
	return f.header
}

// HeaderAttrs returns the header as a flat attribute map, the way consumers
// attach it to an assembled dataset.
func (f *File) HeaderAttrs() map[string]any {
	return map[string]any{
		"filename":     filepath.Base(f.path),
		"code_name":    f.header.CodeName,
		"sdf_version":  f.header.SDFVersion,
		"sdf_revision": f.header.SDFRevision,
		"step":         f.header.Step,
		"time":         f.header.Time,
		"jobid1":       f.header.JobID1,
		"jobid2":       f.header.JobID2,
		"restart":      f.header.Restart,
	}
}

// RunInfo returns the run-info block contents, or an empty map if the file
// has none.
func (f *File) RunInfo() map[string]any {
	if f.runInfo == nil {
		return map[string]any{}
	}
	return f.runInfo
}

// Grids returns the mesh blocks, keyed by block name.
func (f *File) Grids() map[string]*Mesh {
	return f.grids
}

// Grid returns a mesh block by name.
func (f *File) Grid(name string) (*Mesh, bool) {
	m, ok := f.grids[name]
	return m, ok
}

// Variables returns the variable blocks, keyed by block name.
func (f *File) Variables() map[string]*Variable {
	return f.variables
}

// Constants returns the constant blocks, keyed by block name.
func (f *File) Constants() map[string]*Constant {
	return f.constants
}

// CanOpen reports whether the file at path looks like an SDF file: the magic
// marker decides when readable, otherwise a case-insensitive .sdf extension
// is accepted.
func CanOpen(path string) bool {
	osFile, err := os.Open(path)
	if err == nil {
		defer osFile.Close()
		magic := make([]byte, 4)
		if _, err := osFile.ReadAt(magic, 0); err == nil {
			return string(magic) == Magic
		}
	}
	return strings.EqualFold(filepath.Ext(path), ".sdf")
}
