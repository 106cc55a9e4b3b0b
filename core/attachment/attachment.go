// Package attachment couples a row write to the storage of the single file the row owns.
//
// Every operation follows the same ordering: a new file is staged before the transaction opens,
// the transaction is the only place rows change, and a superseded or removed file is deleted
// strictly after a successful commit. Staged files of failed operations are always removed
// before the error is returned.
package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var nowFunc = time.Now // mockable

type (
	// Store persists files under a generated name and addresses them by public URL.
	Store interface {
		Save(ctx context.Context, name, contentType string, r io.Reader) (url string, err error)
		Remove(ctx context.Context, url string) error
	}

	// Observer is notified of file lifecycle events.
	Observer interface {
		Staged(field string)
		Discarded(field string)
		CleanupFailed(field string)
	}

	// Upload is an incoming file, not yet written anywhere.
	Upload struct {
		Field       string
		Filename    string
		ContentType string
		Size        int64
		Open        func() (io.ReadCloser, error)
	}

	// Rule is the allow-list of one upload field.
	Rule struct {
		Field   string
		Allowed []string // exact MIME types or "type/*"
		// TypeTag derives the stored type tag from the detected content type. Optional.
		TypeTag func(contentType string) string
	}

	// File references a stored file.
	File struct {
		URL  string
		Type string
	}

	// Manager runs create, update and delete operations whose row owns a stored file.
	Manager struct {
		store    Store
		db       core.Transactor
		logger   core.Logger
		obs      Observer
		maxBytes int64
	}
)

type noopObserver struct{}

func (noopObserver) Staged(string)        {}
func (noopObserver) Discarded(string)     {}
func (noopObserver) CleanupFailed(string) {}

func NewManager(store Store, db core.Transactor, logger core.Logger, maxBytes int64, obs ...Observer) *Manager {
	var o Observer = noopObserver{}
	if len(obs) > 0 && obs[0] != nil {
		o = obs[0]
	}
	return &Manager{
		store:    store,
		db:       db,
		logger:   logger,
		obs:      o,
		maxBytes: maxBytes,
	}
}

// Create stages up (if any), runs validate, then inserts the row inside a transaction.
// insert receives the staged file, or nil when no file was uploaded.
func (m *Manager) Create(
	ctx context.Context,
	up *Upload,
	rule Rule,
	validate func() error,
	insert func(tx core.Tx, file *File) error,
) (*File, error) {
	staged, err := m.Stage(ctx, up, rule)
	if err != nil {
		return nil, err
	}

	if validate != nil {
		if err = validate(); err != nil {
			m.Discard(ctx, rule.Field, staged)
			return nil, err
		}
	}

	err = core.RunInTx(ctx, m.db, func(tx core.Tx) error {
		return insert(tx, staged)
	})
	if err != nil {
		m.Discard(ctx, rule.Field, staged)
		return nil, asPersistenceError("creating row", err)
	}
	return staged, nil
}

// Update stages up (if any) and runs apply inside a transaction.
// apply loads the row, merges the changes and the staged file, writes it, and returns the file
// the row no longer references (nil when the file is kept). That file is removed once the
// transaction is committed.
func (m *Manager) Update(
	ctx context.Context,
	up *Upload,
	rule Rule,
	apply func(tx core.Tx, file *File) (old *File, err error),
) (*File, error) {
	staged, err := m.Stage(ctx, up, rule)
	if err != nil {
		return nil, err
	}

	var old *File
	err = core.RunInTx(ctx, m.db, func(tx core.Tx) error {
		var aErr error
		old, aErr = apply(tx, staged)
		return aErr
	})
	if err != nil {
		m.Discard(ctx, rule.Field, staged)
		return nil, asPersistenceError("updating row", err)
	}

	if old != nil && old.URL != "" && (staged == nil || staged.URL != old.URL) {
		m.cleanup(ctx, rule.Field, old)
	}
	return staged, nil
}

// Delete runs remove inside a transaction and deletes the file the removed row referenced
// once the transaction is committed.
func (m *Manager) Delete(ctx context.Context, field string, remove func(tx core.Tx) (old *File, err error)) error {
	var old *File
	err := core.RunInTx(ctx, m.db, func(tx core.Tx) error {
		var rErr error
		old, rErr = remove(tx)
		return rErr
	})
	if err != nil {
		return asPersistenceError("deleting row", err)
	}

	if old != nil && old.URL != "" {
		m.cleanup(ctx, field, old)
	}
	return nil
}

// Stage checks up against rule and the size ceiling, then writes it to the store under a
// collision-resistant name. A nil upload stages nothing.
func (m *Manager) Stage(ctx context.Context, up *Upload, rule Rule) (*File, error) {
	if up == nil {
		return nil, nil
	}
	if m.maxBytes > 0 && up.Size > m.maxBytes {
		return nil, &core.FileTooLargeError{Field: rule.Field, Limit: m.maxBytes}
	}

	rc, err := up.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening upload")
	}
	defer func() { _ = rc.Close() }()

	head := make([]byte, 512)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrap(err, "reading upload")
	}
	head = head[:n]

	contentType := detectContentType(up.ContentType, head)
	if !rule.allows(contentType) {
		return nil, &core.UnsupportedFileTypeError{Field: rule.Field, ContentType: contentType}
	}

	var body io.Reader = io.MultiReader(bytes.NewReader(head), rc)
	if m.maxBytes > 0 {
		body = &limitedReader{r: body, remaining: m.maxBytes, field: rule.Field, limit: m.maxBytes}
	}

	url, err := m.store.Save(ctx, newFilename(rule.Field, up.Filename), contentType, body)
	if err != nil {
		if tooLarge, ok := errors.Cause(err).(*core.FileTooLargeError); ok {
			return nil, tooLarge
		}
		return nil, errors.Wrap(err, "saving upload")
	}
	m.obs.Staged(rule.Field)

	file := &File{URL: url}
	if rule.TypeTag != nil {
		file.Type = rule.TypeTag(contentType)
	}
	return file, nil
}

// Discard removes a staged file. Failures are logged, never returned.
func (m *Manager) Discard(ctx context.Context, field string, staged *File) {
	if staged == nil {
		return
	}
	if err := m.store.Remove(ctx, staged.URL); err != nil {
		m.obs.CleanupFailed(field)
		m.logger.Error(fmt.Sprintf("removing staged file %s: %v", staged.URL, err), err)
		return
	}
	m.obs.Discarded(field)
}

func (m *Manager) cleanup(ctx context.Context, field string, old *File) {
	if err := m.store.Remove(ctx, old.URL); err != nil {
		m.obs.CleanupFailed(field)
		m.logger.Warn(fmt.Sprintf("removing superseded file %s: %v", old.URL, err), err)
	}
}

func (r Rule) allows(contentType string) bool {
	for _, allowed := range r.Allowed {
		if strings.HasSuffix(allowed, "/*") {
			if strings.HasPrefix(contentType, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		} else if contentType == allowed {
			return true
		}
	}
	return false
}

func detectContentType(declared string, head []byte) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mediaType
}

// newFilename returns "<field>-<unix millis>-<random><ext>".
func newFilename(field, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s-%d-%d%s", field, nowFunc().UnixMilli(), uuid.New().ID(), ext)
}

// asPersistenceError keeps domain errors as they are and reports anything else as a failed transaction.
func asPersistenceError(op string, err error) error {
	switch errors.Cause(err).(type) {
	case *core.NotFoundError, *core.ValidationError, *core.InvalidOperationError, *core.PersistenceError:
		return err
	}
	return core.NewPersistenceError(op, err)
}

type limitedReader struct {
	r         io.Reader
	remaining int64
	field     string
	limit     int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, &core.FileTooLargeError{Field: l.field, Limit: l.limit}
	}
	return n, err
}
