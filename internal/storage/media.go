// Package storage wraps the object-storage collaborator. Uploaded media
// embedded in messages is stored by key; this package resolves those keys to
// short-lived signed URLs when results are returned.
package storage

import (
	"context"
	"fmt"
	"time"

	"chatvault-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MediaResolver presigns GET URLs for media keys referenced by multimodal
// message parts.
type MediaResolver struct {
	presigner *s3.PresignClient
	bucket    string
	ttl       time.Duration
}

// NewMediaResolver builds a resolver against the configured bucket using the
// ambient AWS credential chain.
func NewMediaResolver(ctx context.Context, bucket string, ttl time.Duration) (*MediaResolver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: media bucket must not be empty")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &MediaResolver{
		presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		bucket:    bucket,
		ttl:       ttl,
	}, nil
}

// ResolveDocument rewrites every media-key-bearing part of the document's
// messages with a signed URL. Text parts are untouched.
func (m *MediaResolver) ResolveDocument(ctx context.Context, doc *models.SearchDocument) error {
	for i := range doc.Messages {
		for j := range doc.Messages[i].MultimodalContent {
			part := &doc.Messages[i].MultimodalContent[j]
			if part.MediaKey == "" {
				continue
			}

			signed, err := m.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(m.bucket),
				Key:    aws.String(part.MediaKey),
			}, s3.WithPresignExpires(m.ttl))
			if err != nil {
				return fmt.Errorf("failed to presign media key %q: %w", part.MediaKey, err)
			}
			part.URL = signed.URL
		}
	}
	return nil
}
