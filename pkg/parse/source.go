package parse

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// fingerprintPrefix marks revisions computed from file contents rather than
// read from a git-sync directory name.
const fingerprintPrefix = "xxh-"

// commitDir matches directory names created by git-sync, with or without the
// "rev-" prefix, capturing the commit hash.
var commitDir = regexp.MustCompile(`^(rev-)?([0-9a-f]{40})$`)

// Source is a read-only view of an application's manifests in a checked out
// repository.
type Source struct {
	// Dir is the path to the repository. It is usually the symbolic link
	// git-sync updates, so it is resolved again every time it is read.
	Dir string
	// Path is the slash path within the repository of the application's
	// manifests.
	Path string
}

// snapshot is the source resolved at one point in time.
type snapshot struct {
	// root is the resolved repository directory.
	root string
	// dir is the resolved directory of the application's manifests.
	dir string
	// commit is the commit hash of a git-sync checkout, if root is one.
	commit string
}

func (s *Source) resolve() (*snapshot, error) {
	root, err := filepath.EvalSymlinks(s.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluating symbolic link to source dir %q", s.Dir)
	}
	dir := filepath.Join(root, filepath.FromSlash(s.Path))
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest dir %q", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("manifest path %q is not a directory", dir)
	}
	snap := &snapshot{root: root, dir: dir}
	if m := commitDir.FindStringSubmatch(filepath.Base(root)); m != nil {
		snap.commit = m[2]
	}
	return snap, nil
}

// Revision returns the revision the source is currently at: the commit hash
// for git-sync checkouts, otherwise a fingerprint of the manifest files.
func (s *Source) Revision() (string, error) {
	snap, err := s.resolve()
	if err != nil {
		return "", err
	}
	if snap.commit != "" {
		return snap.commit, nil
	}
	files, err := listFiles(snap.dir)
	if err != nil {
		return "", err
	}
	contents := make(map[string][]byte, len(files))
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(snap.dir, filepath.FromSlash(f)))
		if err != nil {
			return "", errors.Wrapf(err, "reading %q", f)
		}
		contents[f] = b
	}
	return fingerprint(contents), nil
}

// fingerprint hashes the passed file contents, keyed by path, into a
// revision.
func fingerprint(contents map[string][]byte) string {
	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	d := xxhash.New()
	for _, p := range paths {
		// Lengths keep file boundaries unambiguous.
		_, _ = d.WriteString(p)
		_, _ = d.WriteString(strconv.Itoa(len(contents[p])))
		_, _ = d.Write(contents[p])
	}
	return fingerprintPrefix + strconv.FormatUint(d.Sum64(), 16)
}
