package pypx

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// LocateInstance finds the binary file of a SOP instance of a series and
// returns its path as seen by this process.
//
// The series' instance JSON directory is scanned for a file named
// {NNNN}-{sop}.dcm.json; the first match wins. The match's FSlocation is then
// re-rooted from the writer's mountpoint onto the data directory.
//
// Errors:
//   - ErrInvalidArgument if series or sop contains a path separator or ".."
//   - ErrParentDirNotReadable if the instance directory cannot be listed
//   - ErrNotFound if no instance JSON matches, naming the wildcard path
//   - ErrMalformed if the record has no FSlocation or it lies outside the
//     writer's mountpoint
func (r *Reader) LocateInstance(ctx context.Context, series, sop string) (string, error) {
	if err := CheckUIDs(series, sop); err != nil {
		return "", err
	}

	path, err := r.findInstanceFile(ctx, series, sop)
	if err != nil {
		return "", err
	}

	start := time.Now()
	rec, err := LoadSingle[InstanceRecord](r.fs, path, r.schemas.Instance)
	r.metrics.RecordLoad("instance", time.Since(start), outcome(err))
	if err != nil {
		return "", err
	}

	location, err := rec.Location(path)
	if err != nil {
		return "", err
	}
	return r.ToReaderPath(path, location)
}

func (r *Reader) findInstanceFile(ctx context.Context, series, sop string) (string, error) {
	dir := r.layout.InstancesDir(series)

	f, err := r.fs.Open(dir)
	if err != nil {
		return "", ParentDirNotReadable(dir, err)
	}
	defer func() { _ = f.Close() }()

	const batch = 256
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		names, err := f.Readdirnames(batch)
		for _, name := range names {
			if uid, ok := SOPInstanceUIDFromName(name); ok && uid == sop {
				candidate := filepath.Join(dir, name)
				if isDir, _ := afero.IsDir(r.fs, candidate); isDir {
					continue
				}
				return candidate, nil
			}
		}
		if err != nil || len(names) < batch {
			if err != nil && !errors.Is(err, io.EOF) {
				return "", ParentDirNotReadable(dir, err)
			}
			break
		}
	}

	return "", NotFound(r.layout.InstanceGlob(series, sop))
}
