package models

const (
	ProviderS3    = "s3"
	ProviderLocal = "local"
)

// UploadGrant is a short-lived permission to PUT one object.
type UploadGrant struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
	Key      string `json:"key"`
	Expires  int    `json:"expires"`
}

// PresignRequest is the body of POST /api/presign.
type PresignRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
}
