// Package scan validates leaf images and turns an upload into a persisted
// scan result.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"MaizeAIBackend/database"
	"MaizeAIBackend/detect"
	"MaizeAIBackend/models"
	"MaizeAIBackend/session"
	"MaizeAIBackend/storage"
)

// MaxImageSize is the largest accepted upload, 5 MiB.
const MaxImageSize int64 = 5 << 20

var (
	ErrNotImage      = errors.New("please upload an image file")
	ErrTooLarge      = errors.New("image must be 5MB or smaller")
	ErrNotSignedIn   = errors.New("no authenticated session")
	ErrStorageFailed = errors.New("image upload failed")
	ErrPersistFailed = errors.New("saving scan failed")
)

// ValidateImage checks the declared type and size before anything is uploaded.
func ValidateImage(contentType string, size int64) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return ErrNotImage
	}
	if size > MaxImageSize {
		return ErrTooLarge
	}
	return nil
}

type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Location    string
	Notes       string
}

type Workflow struct {
	store    storage.ObjectStore
	detector detect.Detector
	diseases database.DiseaseRepository
	scans    database.ScanRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewWorkflow(store storage.ObjectStore, detector detect.Detector, diseases database.DiseaseRepository, scans database.ScanRepository, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{
		store:    store,
		detector: detector,
		diseases: diseases,
		scans:    scans,
		log:      log,
		now:      time.Now,
	}
}

// Extension picks the file extension from the upload name, then the content type.
func Extension(filename, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = strings.TrimPrefix(exts[0], ".")
		}
	}
	if ext == "" {
		ext = "img"
	}
	return ext
}

// Key names an upload under dir: <dir>/<user>/<unix millis>-<uuid>.<ext>.
// Two uploads never share a key, even within the same millisecond.
func Key(dir, userID, filename, contentType string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%s.%s", dir, userID, at.UnixMilli(), uuid.NewString(), Extension(filename, contentType))
}

// ObjectKey is where a user's scan image lands.
func ObjectKey(userID, filename, contentType string, at time.Time) string {
	return Key("scans", userID, filename, contentType, at)
}

// Submit uploads the image, runs detection and stores the result. The
// session history only changes once the record is persisted; an upload
// whose record could not be saved is removed again.
func (w *Workflow) Submit(ctx context.Context, s *session.Session, up Upload) (*models.ScanResult, error) {
	if err := ValidateImage(up.ContentType, up.Size); err != nil {
		return nil, err
	}
	user, ok := s.User()
	if !ok {
		return nil, ErrNotSignedIn
	}

	now := w.now()
	key := ObjectKey(user.ID, up.Filename, up.ContentType, now)
	if err := w.store.Put(ctx, key, io.LimitReader(up.Body, MaxImageSize+1), up.ContentType); err != nil {
		w.log.Error("error uploading image", zap.String("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	imageURL := w.store.PublicURL(key)

	status := models.ScanCompleted
	det, err := w.classify(ctx, imageURL)
	if err != nil {
		w.log.Warn("disease detection failed", zap.String("user_id", user.ID), zap.Error(err))
		status = models.ScanFailed
		det = detect.Detection{}
	}

	result := models.NewScanResult(user.ID, imageURL, key, det.Disease, det.Confidence,
		strings.TrimSpace(up.Location), strings.TrimSpace(up.Notes), status, now)

	if err := w.scans.Create(ctx, result); err != nil {
		w.log.Error("error saving scan", zap.String("user_id", user.ID), zap.Error(err))
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if derr := w.store.Delete(cleanupCtx, key); derr != nil {
			w.log.Warn("error removing orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	s.PrependScan(*result)
	return result, nil
}

func (w *Workflow) classify(ctx context.Context, imageURL string) (detect.Detection, error) {
	catalog, err := w.diseases.List(ctx)
	if err != nil {
		return detect.Detection{}, fmt.Errorf("load disease catalogue: %w", err)
	}
	return w.detector.Detect(ctx, detect.Input{ImageURL: imageURL, Catalog: catalog})
}
