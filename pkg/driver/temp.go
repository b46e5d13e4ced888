package driver

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// tempScope owns the files a run creates. Close removes every file still
// tracked, so temporaries and half-written outputs never outlive a run,
// whichever way it ends.
type tempScope struct {
	id    uuid.UUID
	dir   string // configured temp dir; empty searches the environment
	log   *logrus.Entry
	paths []string
}

func newTempScope(id uuid.UUID, dir string, log *logrus.Entry) *tempScope {
	return &tempScope{id: id, dir: dir, log: log}
}

// tempDir returns the first usable directory of TMPDIR, TMP, TEMP,
// /var/tmp, /usr/tmp and /tmp, or "." when none is.
func (s *tempScope) tempDir() string {
	if s.dir != "" {
		return s.dir
	}
	candidates := []string{os.Getenv("TMPDIR"), os.Getenv("TMP"), os.Getenv("TEMP"), "/var/tmp", "/usr/tmp", "/tmp"}
	for _, dir := range candidates {
		if dir != "" && usableDir(dir) {
			s.dir = dir
			return dir
		}
	}
	s.dir = "."
	return s.dir
}

// create makes a new temporary file named after the session.
func (s *tempScope) create(prefix, suffix string) (*os.File, error) {
	name := filepath.Join(s.tempDir(), prefix+s.id.String()+"-"+uuid.NewString()[:8]+suffix)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create temporary file")
	}
	s.track(name)
	return f, nil
}

// track marks path for removal by Close.
func (s *tempScope) track(path string) {
	s.paths = append(s.paths, path)
}

// keep stops tracking path; it survives Close.
func (s *tempScope) keep(path string) {
	for i, p := range s.paths {
		if p == path {
			s.paths = append(s.paths[:i], s.paths[i+1:]...)
			return
		}
	}
}

// Close removes the tracked files.
func (s *tempScope) Close() error {
	var first error
	for _, p := range s.paths {
		err := os.Remove(p)
		if err == nil || os.IsNotExist(err) {
			continue
		}
		s.log.WithError(err).Warn("removing temporary file")
		if first == nil {
			first = err
		}
	}
	s.paths = nil
	return first
}
