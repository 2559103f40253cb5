package uploads

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"configmarket-backend/internal/shared/config"
	localstore "configmarket-backend/internal/shared/storage/object/local"
)

type stubScanner struct {
	verdict Verdict
	err     error
	calls   int
}

func (s *stubScanner) Scan(ctx context.Context, r io.Reader) (Verdict, error) {
	s.calls++
	// Drain so the pipeline's stream actually gets read.
	_, _ = io.Copy(io.Discard, r)
	return s.verdict, s.err
}

type pipelineFixture struct {
	svc     *Service
	repo    *MemoryRepo
	scanner *stubScanner
	baseDir string
	now     time.Time
}

func newPipeline(t *testing.T) *pipelineFixture {
	t.Helper()
	baseDir := t.TempDir()
	fx := &pipelineFixture{
		repo:    NewMemoryRepo(),
		scanner: &stubScanner{},
		baseDir: baseDir,
		now:     time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.svc = &Service{
		Repo:           fx.repo,
		Store:          localstore.New(baseDir),
		Quota:          NewMemoryQuota(15*time.Minute, 5),
		Scanner:        fx.scanner,
		MaxBytes:       1 << 20,
		Prefix:         "uploads",
		OnScannerError: config.ScannerErrorAllow,
		Now:            func() time.Time { return fx.now },
	}
	return fx
}

func (fx *pipelineFixture) storedObjectCount(t *testing.T) int {
	t.Helper()
	count := 0
	err := filepath.Walk(fx.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestIntakeAcceptsValidZip(t *testing.T) {
	fx := newPipeline(t)
	payload := zipBytes(t)

	file, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(payload))
	require.NoError(t, err)

	assert.NotEmpty(t, file.ID)
	assert.NotEmpty(t, file.StorageKey)
	assert.Equal(t, "config.zip", file.OriginalName)
	assert.Equal(t, ".zip", file.Extension)
	assert.Equal(t, "application/zip", file.MediaType)
	assert.Equal(t, int64(len(payload)), file.SizeBytes)
	assert.Equal(t, 1, fx.scanner.calls)

	// Round trip: fetching by the returned storage path yields identical bytes.
	rc, err := fx.svc.OpenContent(context.Background(), file)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestIntakeRejectsDisguisedArchive(t *testing.T) {
	fx := newPipeline(t)

	_, err := fx.svc.Intake(context.Background(), "user-1", "payload.zip", bytes.NewReader(jpegBytes()))
	rej, ok := AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, ReasonContentMismatch, rej.Reason)

	assert.Zero(t, fx.storedObjectCount(t), "rejected upload must leave no stored object")
	assert.Zero(t, fx.scanner.calls, "pipeline must short-circuit before the scan")
}

func TestIntakeAcceptsPlainYAML(t *testing.T) {
	fx := newPipeline(t)
	payload := []byte("spawn:\n  world: lobby\n  x: 0\n  y: 64\n")

	file, err := fx.svc.Intake(context.Background(), "user-1", "settings.yaml", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Empty(t, file.MediaType, "plain text is legitimately unrecognized")
	assert.Equal(t, int64(len(payload)), file.SizeBytes)
}

func TestIntakeRejectsDisallowedExtensionBeforeReading(t *testing.T) {
	fx := newPipeline(t)

	r := &countingRejectReader{}
	_, err := fx.svc.Intake(context.Background(), "user-1", "plugin.jar", r)
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonDisallowedExtension, rej.Reason)
	assert.Zero(t, r.reads, "content must not be read for a disallowed extension")
}

type countingRejectReader struct{ reads int }

func (r *countingRejectReader) Read(p []byte) (int, error) {
	r.reads++
	return 0, io.EOF
}

func TestIntakeDeletesInfectedUpload(t *testing.T) {
	fx := newPipeline(t)
	fx.scanner.verdict = Verdict{Infected: true, Signatures: []string{"Eicar-Test-Signature"}}

	_, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(zipBytes(t)))
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonInfected, rej.Reason)
	assert.Equal(t, []string{"Eicar-Test-Signature"}, rej.Signatures)

	assert.Zero(t, fx.storedObjectCount(t), "infected file must be removed from storage")
	files, err := fx.repo.ListByOwner(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, files, "infected upload must not be recorded")
}

func TestIntakeQuotaWindow(t *testing.T) {
	fx := newPipeline(t)
	payload := []byte("motd=welcome\n")

	for i := 0; i < 5; i++ {
		_, err := fx.svc.Intake(context.Background(), "user-1", "server.properties", bytes.NewReader(payload))
		require.NoError(t, err, "upload %d", i+1)
		fx.now = fx.now.Add(time.Minute)
	}

	_, err := fx.svc.Intake(context.Background(), "user-1", "server.properties", bytes.NewReader(payload))
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonRateLimited, rej.Reason)
	assert.Greater(t, rej.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, rej.RetryAfterSeconds, 900)

	// Once the oldest acceptance leaves the trailing window, one more upload
	// is admitted.
	fx.now = fx.now.Add(11 * time.Minute)
	_, err = fx.svc.Intake(context.Background(), "user-1", "server.properties", bytes.NewReader(payload))
	require.NoError(t, err)
}

func TestIntakeRejectedUploadDoesNotConsumeQuota(t *testing.T) {
	fx := newPipeline(t)

	for i := 0; i < 10; i++ {
		_, err := fx.svc.Intake(context.Background(), "user-1", "payload.zip", bytes.NewReader(jpegBytes()))
		rej, ok := AsRejection(err)
		require.True(t, ok)
		require.Equal(t, ReasonContentMismatch, rej.Reason, "rejections must not trip the quota")
	}

	_, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(zipBytes(t)))
	require.NoError(t, err, "quota must be charged only for accepted uploads")
}

func TestIntakeRejectsOversized(t *testing.T) {
	fx := newPipeline(t)
	fx.svc.MaxBytes = 16

	_, err := fx.svc.Intake(context.Background(), "user-1", "big.yml", bytes.NewReader(bytes.Repeat([]byte("a"), 17)))
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonOversized, rej.Reason)
	assert.Zero(t, fx.storedObjectCount(t))
}

func TestIntakeScannerFailOpen(t *testing.T) {
	fx := newPipeline(t)
	fx.scanner.err = io.ErrUnexpectedEOF

	file, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(zipBytes(t)))
	require.NoError(t, err, "fail-open policy proceeds when the scanner is down")
	assert.NotEmpty(t, file.StorageKey)
	assert.Equal(t, 1, fx.storedObjectCount(t))
}

func TestIntakeScannerFailClosed(t *testing.T) {
	fx := newPipeline(t)
	fx.scanner.err = io.ErrUnexpectedEOF
	fx.svc.OnScannerError = config.ScannerErrorReject

	_, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(zipBytes(t)))
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonScannerUnavailable, rej.Reason)
	assert.Zero(t, fx.storedObjectCount(t), "fail-closed must not leave the unscanned file behind")
}

func TestIntakeStorageNamesDoNotCollide(t *testing.T) {
	fx := newPipeline(t)
	payload := zipBytes(t)

	a, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(payload))
	require.NoError(t, err)
	b, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(payload))
	require.NoError(t, err)

	assert.NotEqual(t, a.StorageKey, b.StorageKey)
}

func TestGetEnforcesOwnership(t *testing.T) {
	fx := newPipeline(t)

	file, err := fx.svc.Intake(context.Background(), "user-1", "config.zip", bytes.NewReader(zipBytes(t)))
	require.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), "user-2", file.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := fx.svc.Get(context.Background(), "user-1", file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)
}
