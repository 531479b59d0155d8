package config

import "time"

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageConnectionString() string {
	return GetEnv("AZURE_STORAGE_CONNECTION_STRING", "")
}

func (Storage) GetContainerName() string {
	return GetEnv("AZURE_STORAGE_CONTAINER_NAME", "")
}

// GetSASTTL is the lifetime of the read-only URLs handed to the document viewer.
func (Storage) GetSASTTL() time.Duration {
	return GetDurationEnv("SAS_TTL", time.Hour)
}

func (Storage) GetOfficeViewerURL() string {
	return GetEnv("OFFICE_VIEWER_URL", "https://view.officeapps.live.com/op/embed.aspx")
}

func (Storage) GetMaxUploadBytes() int64 {
	return GetInt64Env("MAX_UPLOAD_BYTES", 100<<20)
}
