// Package media persists uploaded alert attachments and hands back the
// relative reference clients use to fetch them.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// URLPrefix is the fixed path under which stored media is served.
const URLPrefix = "/uploads/"

var (
	ErrNotFound   = errors.New("media not found")
	ErrInvalidRef = errors.New("invalid media reference")
)

// Store accepts a byte stream and returns a stable relative reference.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context) ([]Object, error)
	// Check reports whether the backend is reachable without enumerating it.
	Check(ctx context.Context) error
}

// Object describes one stored media file.
type Object struct {
	Ref     string
	Size    int64
	ModTime time.Time
}

// Ref builds the client-facing reference for a stored name.
func Ref(name string) string {
	return URLPrefix + name
}

// NameFromRef extracts the stored name from a reference, rejecting anything
// that would escape the upload namespace.
func NameFromRef(ref string) (string, error) {
	name := strings.TrimPrefix(ref, URLPrefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidRef
	}
	return name, nil
}

// extension returns the lower-cased extension of the original filename, or
// "" if it contains anything other than letters and digits.
func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// keyer hands out upload timestamps in Unix milliseconds that never repeat
// within the process.
type keyer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newKeyer() *keyer {
	return &keyer{now: time.Now}
}

func (k *keyer) next() int64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	ts := k.now().UnixMilli()
	if ts <= k.last {
		ts = k.last + 1
	}
	k.last = ts
	return ts
}

func (k *keyer) name(filename string) string {
	return strconv.FormatInt(k.next(), 10) + extension(filename)
}

func wrapRefError(op, ref string, err error) error {
	return fmt.Errorf("%s %s: %w", op, ref, err)
}
