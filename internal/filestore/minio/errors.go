package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/pgdescribe/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// S3 error codes that classify an error when the status code does not.
var codeKinds = map[string]errs.ErrKind{
	"NoSuchBucket":          errs.ErrKindNotFound,
	"NoSuchKey":             errs.ErrKindNotFound,
	"AccessDenied":          errs.ErrKindPermissionDenied,
	"InvalidAccessKeyId":    errs.ErrKindPermissionDenied,
	"SignatureDoesNotMatch": errs.ErrKindPermissionDenied,
	"InvalidBucketName":     errs.ErrKindInvalidInput,
	"InvalidObjectName":     errs.ErrKindInvalidInput,
	"KeyTooLongError":       errs.ErrKindInvalidInput,
	"RequestTimeout":        errs.ErrKindTimeout,
	"SlowDown":              errs.ErrKindTimeout,
}

// mapError translates a MinIO SDK error into a *errs.Error.
// It mirrors the mapError pattern used in the postgres adapter.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		}
		if kind, ok := codeKinds[resp.Code]; ok {
			return errs.Wrap(kind, msg, err)
		}
		if resp.StatusCode == http.StatusBadRequest {
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}
	}

	// Anything else: treat as a generic connection / I/O failure
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
