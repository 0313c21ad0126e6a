// Package billphoto normalizes purchase bill photos and stores them as blobs.
package billphoto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var ErrInvalidImage = errors.New("bill photo is not a readable image")

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*GCSStore)(nil)
)

const (
	maxEdge        = 1600
	thumbnailWidth = 200
	jpegQuality    = 85
	contentType    = "image/jpeg"
)

type Store interface {
	// Save writes data under name and returns a reference to it.
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

type Uploader struct {
	store Store
}

func NewUploader(s Store) *Uploader {
	return &Uploader{store: s}
}

// Upload stores a normalized copy and a thumbnail of raw and returns the
// reference of the normalized copy.
func (u *Uploader) Upload(ctx context.Context, purchaseID string, raw []byte) (string, error) {
	img, err := decode(raw)
	if err != nil {
		return "", err
	}
	full, err := encode(imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos))
	if err != nil {
		return "", err
	}
	thumb, err := encode(imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos))
	if err != nil {
		return "", err
	}

	ref, err := u.store.Save(ctx, "bills/"+purchaseID+".jpg", full, contentType)
	if err != nil {
		return "", fmt.Errorf("save bill photo: %w", err)
	}
	if _, err := u.store.Save(ctx, "bills/thumbnails/"+purchaseID+".jpg", thumb, contentType); err != nil {
		return "", fmt.Errorf("save bill thumbnail: %w", err)
	}
	return ref, nil
}

func decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidImage
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
