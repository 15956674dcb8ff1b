package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Every object lives under its practice's prefix so list operations never
// cross practice boundaries.
func objectKey(practiceID, id string) string {
	return "practices/" + practiceID + "/" + id
}

func practicePrefix(practiceID string) string {
	return "practices/" + practiceID + "/"
}

// S3Store is a DocumentStore backed by S3 (or any S3-compatible store such as
// MinIO, via path-style addressing). Document metadata rides on the object's
// user metadata.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store loads AWS configuration from the environment and returns an
// S3Store bound to the given bucket.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})

	return &S3Store{client: client, bucket: bucket}, nil
}

// NewS3StoreWithClient returns an S3Store using a pre-built client. Useful
// for tests against MinIO or localstack.
func NewS3StoreWithClient(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Upload validates inputs, reads the content, computes a SHA-256 hash, and
// writes the object with its metadata.
func (s *S3Store) Upload(ctx context.Context, doc Document, content io.Reader) (*Document, error) {
	if err := validateUpload(&doc); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	doc.ID = uuid.New().String()
	doc.Size = int64(len(data))
	doc.Hash = fmt.Sprintf("%x", h)
	doc.CreatedAt = time.Now().UTC()

	metadata := map[string]string{
		"file-name":  doc.FileName,
		"category":   doc.Category,
		"created-by": doc.CreatedBy,
		"hash":       doc.Hash,
	}
	for k, v := range doc.Tags {
		metadata["tag-"+k] = v
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(doc.PracticeID, doc.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("putting object: %w", err)
	}

	out := doc // copy
	return &out, nil
}

// Download fetches the object and reconstructs its metadata.
func (s *S3Store) Download(ctx context.Context, practiceID, id string) (io.ReadCloser, *Document, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(practiceID, id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, fmt.Errorf("getting object: %w", err)
	}

	doc := documentFromObject(practiceID, id, resp.Metadata, resp.ContentType, resp.ContentLength, resp.LastModified)
	return resp.Body, doc, nil
}

// Delete removes the object. Missing objects are reported as not found.
func (s *S3Store) Delete(ctx context.Context, practiceID, id string) error {
	key := objectKey(practiceID, id)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("checking object: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// GetMetadata returns document metadata via a HEAD request.
func (s *S3Store) GetMetadata(ctx context.Context, practiceID, id string) (*Document, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(practiceID, id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("heading object: %w", err)
	}

	return documentFromObject(practiceID, id, resp.Metadata, resp.ContentType, resp.ContentLength, resp.LastModified), nil
}

// ListByPractice lists the practice's prefix and loads each object's
// metadata. Knowledge bases are small (tens of documents), so per-object HEAD
// requests are acceptable here.
func (s *S3Store) ListByPractice(ctx context.Context, practiceID, category string, limit, offset int) ([]*Document, int, error) {
	docs, err := s.listPractice(ctx, practiceID)
	if err != nil {
		return nil, 0, err
	}

	var matched []*Document
	for _, d := range docs {
		if category != "" && d.Category != category {
			continue
		}
		matched = append(matched, d)
	}

	total := len(matched)
	return pageOf(matched, limit, offset), total, nil
}

// Search filters the practice's documents by the given parameters. A practice
// id is required; the bucket is never scanned as a whole.
func (s *S3Store) Search(ctx context.Context, params SearchParams) ([]*Document, int, error) {
	if params.PracticeID == "" {
		return nil, 0, ErrMissingPractice
	}

	docs, err := s.listPractice(ctx, params.PracticeID)
	if err != nil {
		return nil, 0, err
	}

	var matched []*Document
	for _, d := range docs {
		if !matchesSearch(d, params) {
			continue
		}
		matched = append(matched, d)
	}

	total := len(matched)
	return pageOf(matched, params.Limit, params.Offset), total, nil
}

func (s *S3Store) listPractice(ctx context.Context, practiceID string) ([]*Document, error) {
	prefix := practicePrefix(practiceID)

	var docs []*Document
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if id == "" {
				continue
			}
			doc, err := s.GetMetadata(ctx, practiceID, id)
			if err != nil {
				if errors.Is(err, ErrDocumentNotFound) {
					continue // deleted between list and head
				}
				return nil, err
			}
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

func documentFromObject(practiceID, id string, metadata map[string]string, contentType *string, size *int64, lastModified *time.Time) *Document {
	doc := &Document{
		ID:          id,
		PracticeID:  practiceID,
		FileName:    metadata["file-name"],
		ContentType: aws.ToString(contentType),
		Size:        aws.ToInt64(size),
		Category:    metadata["category"],
		Hash:        metadata["hash"],
		CreatedAt:   aws.ToTime(lastModified),
		CreatedBy:   metadata["created-by"],
	}

	for k, v := range metadata {
		if strings.HasPrefix(k, "tag-") {
			if doc.Tags == nil {
				doc.Tags = make(map[string]string)
			}
			doc.Tags[strings.TrimPrefix(k, "tag-")] = v
		}
	}

	return doc
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
