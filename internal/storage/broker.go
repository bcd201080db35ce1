// Package storage decides where upload bytes go: straight to object storage
// through a presigned URL, or through this process into a local folder when
// no object storage is configured.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/models"
)

const (
	DefaultContentType = "application/octet-stream"
	DefaultExpiry      = 300 * time.Second
)

// Presigner issues direct-to-storage write URLs.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}

// Broker hands out upload grants and stores fallback uploads.
type Broker struct {
	presigner     Presigner
	local         *LocalStore
	publicBaseURL string
	logger        *logging.Logger
}

// NewBroker builds a Broker. A nil presigner means every grant is a local
// fallback grant.
func NewBroker(presigner Presigner, local *LocalStore, publicBaseURL string, logger *logging.Logger) *Broker {
	return &Broker{
		presigner:     presigner,
		local:         local,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger,
	}
}

// FromConfig wires an S3 presigner only when all four storage credentials
// are present.
func FromConfig(cfg config.Config, logger *logging.Logger) (*Broker, error) {
	var presigner Presigner
	if cfg.S3Configured() {
		p, err := NewS3Presigner(S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Endpoint:  cfg.S3.Endpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		presigner = p
	} else {
		logger.Warn("S3 not configured, uploads go through the local fallback")
	}
	return NewBroker(presigner, NewLocalStore(cfg.Upload.Folder), cfg.API.PublicBaseURL, logger), nil
}

// RequestUploadSlot generates a fresh key and a URL the client should PUT
// the bytes to. Nothing is written or persisted here.
func (b *Broker) RequestUploadSlot(ctx context.Context, filename, contentType string, expiry time.Duration) (models.UploadGrant, error) {
	if strings.TrimSpace(filename) == "" {
		return models.UploadGrant{}, models.InvalidInputf("filename is required")
	}
	if contentType == "" {
		contentType = DefaultContentType
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	key := NewKey(filename)
	grant := models.UploadGrant{
		Key:     key,
		Expires: int(expiry / time.Second),
	}

	if b.presigner != nil {
		signed, err := b.presigner.PresignPut(ctx, key, contentType, expiry)
		if err != nil {
			return models.UploadGrant{}, fmt.Errorf("presign %s: %w", key, err)
		}
		grant.Provider = models.ProviderS3
		grant.URL = signed
		return grant, nil
	}

	grant.Provider = models.ProviderLocal
	grant.URL = b.LocalURL(key)
	return grant, nil
}

// AcceptLocalUpload stores fallback bytes and returns the absolute path.
// Empty bodies are rejected with ErrInvalidInput. Re-uploading a key
// overwrites it; grant expiry is not checked on this path.
func (b *Broker) AcceptLocalUpload(key string, data []byte) (string, error) {
	p, err := b.local.Save(key, data)
	if err != nil {
		return "", err
	}
	b.logger.WithFields(logging.Fields{"key": key, "path": p, "bytes": len(data)}).Info("Saved local upload")
	return p, nil
}

// ResolveLocalUpload returns the path of a stored fallback upload, or
// ErrNotFound.
func (b *Broker) ResolveLocalUpload(key string) (string, error) {
	return b.local.Resolve(key)
}

// LocalURL is where a fallback upload is PUT to and later fetched from.
func (b *Broker) LocalURL(key string) string {
	return b.publicBaseURL + "/upload/" + url.PathEscape(key)
}

// NewKey salts the original filename with a random token so keys never
// collide and never contain path separators.
func NewKey(filename string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(filename))
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return token + "_" + name
}
