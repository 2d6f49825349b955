package s3

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/objstream/objstream-go/internal/errs"
)

func TestTranslate(t *testing.T) {
	err := translate("head object", &types.NoSuchKey{})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = translate("head object", &types.NotFound{})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = translate("get object", &smithy.GenericAPIError{Code: "AccessDenied"})
	assert.ErrorIs(t, err, errs.ErrPermission)

	err = translate("get object", &smithy.GenericAPIError{Code: "NoSuchBucket"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// Unrecognized errors pass through wrapped.
	base := fmt.Errorf("connection reset")
	err = translate("get object", base)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestIsInvalidRange(t *testing.T) {
	assert.True(t, isInvalidRange(&smithy.GenericAPIError{Code: "InvalidRange"}))
	assert.False(t, isInvalidRange(fmt.Errorf("other")))
	assert.False(t, isInvalidRange(&smithy.GenericAPIError{Code: "NoSuchKey"}))
}
