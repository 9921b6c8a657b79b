// Package manifest reads and updates the package.json the released
// package ships with.
package manifest

import (
	"encoding/json"
	"path/filepath"
	"regexp"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/fileutil"
)

// File is the package manifest file name.
const File = "package.json"

// maxManifestSize bounds manifest reads (1MB).
const maxManifestSize = 1 << 20

// Manifest is the subset of package.json the pipeline cares about.
type Manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Private bool   `json:"private"`
}

// versionLinePattern matches the version field of a manifest in place, so
// a version rewrite does not reformat the rest of the file.
var versionLinePattern = regexp.MustCompile(`("version"\s*:\s*")[^"]*(")`)

// Read parses the package manifest in dir.
func Read(dir string) (*Manifest, error) {
	const op = "manifest.Read"

	data, err := fileutil.ReadFileLimited(filepath.Join(dir, File), maxManifestSize)
	if err != nil {
		return nil, sherrors.IOWrap(err, op, "failed to read package.json")
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, sherrors.Wrap(err, sherrors.KindValidation, op, "failed to parse package.json")
	}
	if m.Name == "" {
		return nil, sherrors.Validation(op, "package.json has no name")
	}
	return &m, nil
}

// WriteVersion rewrites the version field of the manifest in dir,
// preserving the file's formatting otherwise.
func WriteVersion(dir, version string) error {
	const op = "manifest.WriteVersion"

	path := filepath.Join(dir, File)
	data, err := fileutil.ReadFileLimited(path, maxManifestSize)
	if err != nil {
		return sherrors.IOWrap(err, op, "failed to read package.json")
	}

	if !versionLinePattern.Match(data) {
		return sherrors.Validation(op, "package.json has no version field")
	}
	updated := versionLinePattern.ReplaceAll(data, []byte("${1}"+version+"${2}"))

	if err := fileutil.AtomicWriteFile(path, updated, 0644); err != nil {
		return sherrors.IOWrap(err, op, "failed to write package.json")
	}
	return nil
}
