package uploads

import "time"

// FileResponse is the outward-facing representation of a stored file.
type FileResponse struct {
	FileID      string    `json:"fileId"`
	FileName    string    `json:"fileName"`
	StoragePath string    `json:"storagePath"`
	SizeBytes   int64     `json:"sizeBytes"`
	Extension   string    `json:"extension"`
	MediaType   string    `json:"mediaType,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func toResponse(file StoredFile) FileResponse {
	return FileResponse{
		FileID:      file.ID,
		FileName:    file.OriginalName,
		StoragePath: file.StorageKey,
		SizeBytes:   file.SizeBytes,
		Extension:   file.Extension,
		MediaType:   file.MediaType,
		UploadedAt:  file.CreatedAt,
	}
}
