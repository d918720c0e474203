package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

type memoryStorage struct {
	files map[string][]byte
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
	return "/uploads/" + name, nil
}

type recordingUploadRepo struct {
	records []models.UploadRecord
}

func (r *recordingUploadRepo) Create(_ context.Context, record *models.UploadRecord) error {
	record.ID = uint(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func multipartFile(t *testing.T, name string, payload []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	return req.MultipartForm.File["file"][0]
}

func newUploadServiceForTest(storage *memoryStorage, repo *recordingUploadRepo, maxSizeMB int) UploadService {
	logger := zerolog.New(io.Discard)
	return NewUploadService(storage, repo, maxSizeMB, logger)
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}

func TestUploadStoresImageAttachment(t *testing.T) {
	storage := &memoryStorage{}
	repo := &recordingUploadRepo{}
	svc := newUploadServiceForTest(storage, repo, 10)

	response, err := svc.Upload(context.Background(), multipartFile(t, "XRay Scan.png", pngHeader), nil)
	require.NoError(t, err)
	require.Equal(t, models.MessageTypeImage, response.MessageType)
	require.Equal(t, "XRay Scan.png", response.FileName)
	require.Contains(t, response.FileURL, "/uploads/")
	require.Equal(t, int64(len(pngHeader)), response.FileSize)

	require.Len(t, repo.records, 1)
	require.NotEmpty(t, repo.records[0].Checksum)
	require.Len(t, storage.files, 1)
}

func TestUploadDocumentIsFileMessage(t *testing.T) {
	svc := newUploadServiceForTest(&memoryStorage{}, &recordingUploadRepo{}, 10)

	response, err := svc.Upload(context.Background(), multipartFile(t, "results.pdf", []byte("%PDF-1.4 test")), nil)
	require.NoError(t, err)
	require.Equal(t, models.MessageTypeFile, response.MessageType)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	svc := newUploadServiceForTest(&memoryStorage{}, &recordingUploadRepo{}, 10)

	_, err := svc.Upload(context.Background(), multipartFile(t, "virus.exe", []byte("MZ")), nil)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	svc := newUploadServiceForTest(&memoryStorage{}, &recordingUploadRepo{}, 1)

	payload := bytes.Repeat([]byte("a"), 1<<20+1)
	_, err := svc.Upload(context.Background(), multipartFile(t, "big.txt", payload), nil)
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestUploadAttributesOwner(t *testing.T) {
	repo := &recordingUploadRepo{}
	svc := newUploadServiceForTest(&memoryStorage{}, repo, 10)

	owner := uint(42)
	_, err := svc.Upload(context.Background(), multipartFile(t, "note.txt", []byte("take two daily")), &owner)
	require.NoError(t, err)
	require.Len(t, repo.records, 1)
	require.NotNil(t, repo.records[0].UserID)
	require.Equal(t, owner, *repo.records[0].UserID)
}

func TestUploadStoredNamesDoNotCollide(t *testing.T) {
	storage := &memoryStorage{}
	svc := newUploadServiceForTest(storage, &recordingUploadRepo{}, 10)

	for i := 0; i < 2; i++ {
		_, err := svc.Upload(context.Background(), multipartFile(t, fmt.Sprintf("note-%d.txt", i), []byte("hello")), nil)
		require.NoError(t, err)
	}
	require.Len(t, storage.files, 2)
}
