package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"configmarket-backend/internal/shared/config"
	"configmarket-backend/internal/shared/metrics"
	"configmarket-backend/internal/shared/storage/object"
	"configmarket-backend/internal/shared/telemetry"
	"configmarket-backend/internal/shared/util"
)

const defaultMaxBytes = 10 << 20 // 10MB

// Service runs the upload intake pipeline: quota, extension gate, content
// sniff, type-consistency check, durable write, malware scan, record. Gates
// run strictly in order and fail closed at the first rejection; only the scan
// step may fail open, under the configured policy.
type Service struct {
	Repo    Repo
	Store   object.ObjectStore
	Quota   Quota
	Scanner Scanner

	MaxBytes       int64
	Prefix         string
	OnScannerError config.ScannerErrorPolicy

	// Now is overridable for tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) maxBytes() int64 {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return defaultMaxBytes
}

// Intake pushes one upload through the pipeline. On success the stored file is
// persisted, charged against the identity's quota and returned; on rejection
// the error is a *Rejection and no side effects remain.
func (s *Service) Intake(ctx context.Context, identity, filename string, r io.Reader) (StoredFile, error) {
	if identity == "" || filename == "" {
		return StoredFile{}, ErrInvalidInput
	}
	now := s.now()

	if s.Quota != nil {
		if ok, retryAfter := s.Quota.Allow(identity, now); !ok {
			seconds := int(retryAfter / time.Second)
			if seconds <= 0 {
				seconds = 1
			}
			return StoredFile{}, s.reject(&Rejection{
				Reason:            ReasonRateLimited,
				Message:           fmt.Sprintf("too many uploads, retry after %d seconds", seconds),
				RetryAfterSeconds: seconds,
			})
		}
	}

	ext, rej := CheckExtension(filename)
	if rej != nil {
		return StoredFile{}, s.reject(rej)
	}

	max := s.maxBytes()
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return StoredFile{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return StoredFile{}, s.reject(&Rejection{
			Reason:  ReasonOversized,
			Message: fmt.Sprintf("file exceeds the maximum upload size of %d bytes", max),
		})
	}
	if len(data) == 0 {
		return StoredFile{}, ErrInvalidInput
	}

	mediaType, rej := ClassifyContent(data, ext)
	if rej != nil {
		return StoredFile{}, s.reject(rej)
	}

	name, err := StorageName(now, filename)
	if err != nil {
		return StoredFile{}, err
	}
	storageKey := path.Join(s.Prefix, name)

	size, err := s.Store.SaveWithKey(ctx, storageKey, bytes.NewReader(data))
	if err != nil {
		return StoredFile{}, fmt.Errorf("store upload: %w", err)
	}

	if rej, err := s.scanStored(ctx, storageKey); err != nil {
		s.discard(ctx, storageKey)
		return StoredFile{}, err
	} else if rej != nil {
		s.discard(ctx, storageKey)
		return StoredFile{}, s.reject(rej)
	}

	file := StoredFile{
		ID:           uuid.NewString(),
		OwnerID:      identity,
		OriginalName: filename,
		StorageKey:   storageKey,
		SizeBytes:    size,
		Extension:    ext,
		MediaType:    mediaType,
		CreatedAt:    now,
	}
	if err := s.Repo.Create(ctx, file); err != nil {
		s.discard(ctx, storageKey)
		return StoredFile{}, err
	}

	if s.Quota != nil {
		s.Quota.Record(identity, now)
	}
	metrics.IncUploadAccepted()
	telemetry.Info("upload.accepted", map[string]any{
		"file_id":       file.ID,
		"identity_hash": util.HashIdentityKey(identity),
		"size_bytes":    size,
		"extension":     ext,
	})

	return file, nil
}

// scanStored re-opens the durably written object and streams it to the
// scanner. The one deliberate fail-open in the pipeline lives here: when the
// scanner itself is unreachable and policy is "allow", the failure is logged
// and the upload proceeds unscanned.
func (s *Service) scanStored(ctx context.Context, storageKey string) (*Rejection, error) {
	if s.Scanner == nil {
		return nil, nil
	}

	rc, err := s.Store.Open(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("open stored upload for scan: %w", err)
	}
	defer rc.Close()

	started := time.Now()
	verdict, err := s.Scanner.Scan(ctx, rc)
	metrics.ObserveScanDurationMs(float64(time.Since(started).Microseconds()) / 1000.0)

	if err != nil {
		if s.OnScannerError == config.ScannerErrorReject {
			return &Rejection{
				Reason:  ReasonScannerUnavailable,
				Message: "file could not be scanned, try again later",
			}, nil
		}
		telemetry.Warn("upload.scan_unavailable", map[string]any{
			"storage_key": storageKey,
			"error":       err.Error(),
			"policy":      "fail-open",
		})
		return nil, nil
	}

	if verdict.Infected {
		metrics.IncUploadInfected()
		return &Rejection{
			Reason:     ReasonInfected,
			Message:    "file failed the security scan",
			Signatures: verdict.Signatures,
		}, nil
	}
	return nil, nil
}

// discard removes a stored object after a post-write rejection. Removal
// failures are logged, not surfaced: the upload is already rejected.
func (s *Service) discard(ctx context.Context, storageKey string) {
	if err := s.Store.Delete(ctx, storageKey); err != nil {
		telemetry.Error("upload.discard_failed", map[string]any{
			"storage_key": storageKey,
			"error":       err.Error(),
		})
	}
}

func (s *Service) reject(rej *Rejection) error {
	metrics.IncUploadRejected()
	return rej
}

// Get returns a stored file visible to the requesting identity.
func (s *Service) Get(ctx context.Context, requester, id string) (StoredFile, error) {
	if requester == "" || id == "" {
		return StoredFile{}, ErrInvalidInput
	}
	file, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return StoredFile{}, err
	}
	if file.OwnerID != requester {
		return StoredFile{}, ErrNotFound
	}
	return file, nil
}

// FileByID fetches a stored file without an ownership check. Used by the
// marketplace to resolve a listing's artifact.
func (s *Service) FileByID(ctx context.Context, id string) (StoredFile, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns the requester's stored files, newest first.
func (s *Service) List(ctx context.Context, requester string, limit, offset int) ([]StoredFile, error) {
	if requester == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByOwner(ctx, requester, limit, offset)
}

// OpenContent opens the stored bytes of a file for streaming to a client.
func (s *Service) OpenContent(ctx context.Context, file StoredFile) (io.ReadCloser, error) {
	return s.Store.Open(ctx, file.StorageKey)
}
