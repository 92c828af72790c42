package storage

import (
	"errors"
	"testing"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"NotFound error", errors.New("operation error S3: HeadObject, https response error StatusCode: 404, NotFound"), true},
		{"NoSuchKey error", errors.New("NoSuchKey: The specified key does not exist"), true},
		{"other error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFoundError(tt.err); got != tt.want {
				t.Errorf("isNotFoundError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsBucketAlreadyExistsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"BucketAlreadyExists", errors.New("BucketAlreadyExists: the requested bucket name is not available"), true},
		{"BucketAlreadyOwnedByYou", errors.New("BucketAlreadyOwnedByYou: your previous request succeeded"), true},
		{"other error", errors.New("access denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBucketAlreadyExistsError(tt.err); got != tt.want {
				t.Errorf("isBucketAlreadyExistsError() = %v, want %v", got, tt.want)
			}
		})
	}
}
