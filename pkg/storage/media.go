package storage

import "context"

// UploadResult identifies an uploaded media object. PublicID is the handle
// required to delete the object later.
type UploadResult struct {
	URL      string
	PublicID string
}

// MediaStorage is the remote media collaborator. It is invoked only by
// registration and avatar flows, never by login/refresh/logout.
type MediaStorage interface {
	Upload(ctx context.Context, localPath string) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}
