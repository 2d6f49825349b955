package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/objstream/objstream-go/internal/stream"
)

// object implements stream.Object and stream.PartObject on one key.
type object struct {
	key string
	b   *Backend

	// mu guards the multipart upload state. FlushPart runs concurrently
	// on the stream's worker pool.
	mu       sync.Mutex
	uploadID string
}

func (o *object) Name() string          { return o.key }
func (o *object) Limits() stream.Limits { return o.b.Limits() }

func (o *object) Head(ctx context.Context) (stream.Header, error) {
	result, err := o.b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.b.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return stream.Header{}, translate("head object", err)
	}

	h := stream.Header{Metadata: result.Metadata}
	if result.ContentLength != nil {
		h.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		h.ModTime = *result.LastModified
	}
	if result.ETag != nil {
		h.ETag = *result.ETag
	}
	return h, nil
}

func (o *object) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(o.b.bucket),
		Key:    aws.String(o.key),
	}
	// HTTP ranges are inclusive on both ends.
	if end > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", start, end-1))
	} else if start > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", start))
	}

	result, err := o.b.client.GetObject(ctx, input)
	if err != nil {
		// A range entirely past EOF is empty, not an error.
		if isInvalidRange(err) {
			return nil, nil
		}
		return nil, translate("get object", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (o *object) ReadAll(ctx context.Context) ([]byte, error) {
	return o.ReadRange(ctx, 0, 0)
}

func (o *object) Flush(ctx context.Context, data []byte) error {
	_, err := o.b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.b.bucket),
		Key:    aws.String(o.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return translate("put object", err)
	}
	return nil
}

func (o *object) Create(ctx context.Context) error {
	return o.Flush(ctx, nil)
}

func (o *object) Delete(ctx context.Context) error {
	_, err := o.b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.b.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return translate("delete object", err)
	}
	return nil
}

// InitParts starts a multipart upload for the key.
func (o *object) InitParts(ctx context.Context) error {
	result, err := o.b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(o.b.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return translate("create multipart upload", err)
	}
	if result.UploadId == nil {
		return fmt.Errorf("create multipart upload: upload ID is nil")
	}
	o.mu.Lock()
	o.uploadID = *result.UploadId
	o.mu.Unlock()
	return nil
}

// FlushPart uploads one part. Parts may land in any order; CompleteParts
// assembles them by part number.
func (o *object) FlushPart(ctx context.Context, num int, data []byte) (stream.Part, error) {
	o.mu.Lock()
	uploadID := o.uploadID
	o.mu.Unlock()
	if uploadID == "" {
		return stream.Part{}, fmt.Errorf("upload part %d: no upload in progress", num)
	}

	result, err := o.b.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(o.b.bucket),
		Key:        aws.String(o.key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(int32(num)),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return stream.Part{}, translate(fmt.Sprintf("upload part %d", num), err)
	}
	if result.ETag == nil {
		return stream.Part{}, fmt.Errorf("upload part %d: ETag is nil", num)
	}
	return stream.Part{Num: num, ETag: *result.ETag, Size: int64(len(data))}, nil
}

// CompleteParts finalizes the upload from parts sorted by part number,
// aborting the upload when completion fails.
func (o *object) CompleteParts(ctx context.Context, parts []stream.Part) error {
	o.mu.Lock()
	uploadID := o.uploadID
	o.uploadID = ""
	o.mu.Unlock()
	if uploadID == "" {
		return fmt.Errorf("complete multipart upload: no upload in progress")
	}

	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(int32(p.Num)),
		}
	}

	_, err := o.b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(o.b.bucket),
		Key:             aws.String(o.key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		o.abort(ctx, uploadID)
		return translate("complete multipart upload", err)
	}
	return nil
}

// AbortParts abandons the upload; S3 discards the stored parts.
func (o *object) AbortParts(ctx context.Context) error {
	o.mu.Lock()
	uploadID := o.uploadID
	o.uploadID = ""
	o.mu.Unlock()
	if uploadID == "" {
		return nil
	}
	return o.abort(ctx, uploadID)
}

func (o *object) abort(ctx context.Context, uploadID string) error {
	_, err := o.b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(o.b.bucket),
		Key:      aws.String(o.key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return translate("abort multipart upload", err)
	}
	return nil
}
