package s3

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// translate maps SDK errors onto the shared error taxonomy so callers can
// test with errors.Is against the fs sentinels regardless of backend.
func translate(op string, err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", op, fs.ErrNotExist)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound", "404":
			return fmt.Errorf("%s: %w", op, fs.ErrNotExist)
		case "AccessDenied", "Forbidden", "403":
			return fmt.Errorf("%s: %w", op, fs.ErrPermission)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isInvalidRange reports whether err is the 416 returned for a byte range
// entirely past the end of the object.
func isInvalidRange(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "InvalidRange"
}
