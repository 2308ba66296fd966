package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pbimirror/internal/config"
	apperrors "pbimirror/internal/errors"
)

type mockPutObjectAPI struct {
	mock.Mock
}

func (m *mockPutObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestS3Writer_WriteFile(t *testing.T) {
	api := &mockPutObjectAPI{}
	w := NewS3Writer(config.S3Config{Bucket: "mirror", Prefix: "/runs/2024/"}, api)

	var body []byte
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "mirror" &&
			aws.ToString(in.Key) == "runs/2024/Reports/a.pdf" &&
			aws.ToInt64(in.ContentLength) == 8 &&
			aws.ToString(in.ContentType) == "application/pdf"
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		body, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	n, err := w.WriteFile(context.Background(), "Reports/a.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "%PDF-1.7", string(body))
	api.AssertExpectations(t)
}

func TestS3Writer_WriteFileError(t *testing.T) {
	api := &mockPutObjectAPI{}
	w := NewS3Writer(config.S3Config{Bucket: "mirror"}, api)
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := w.WriteFile(context.Background(), "a.xlsx", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStorage))
}

func TestS3Writer_KeysAndLocation(t *testing.T) {
	w := NewS3Writer(config.S3Config{Bucket: "mirror"}, &mockPutObjectAPI{})

	assert.NoError(t, w.EnsureDir(context.Background(), "Reports"))
	assert.Equal(t, "s3://mirror/Reports/a.xlsx", w.Location("Reports/a.xlsx"))
	assert.Equal(t, "s3://mirror/outside", w.Location("../outside"))

	_, err := w.WriteFile(context.Background(), "", []byte("x"))
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", contentType(nil))
	assert.Equal(t, "application/pdf", contentType([]byte("%PDF-1.7 ...")))
	assert.Equal(t, "image/png", contentType([]byte("\x89PNG\r\n\x1a\n0000")))
}
