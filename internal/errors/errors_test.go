package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewMalformedFilenameError("report.xlsx"),
			want: "[MALFORMED_FILENAME] filename has too few segments",
		},
		{
			name: "with cause",
			err:  NewNetworkError("GET failed", io.ErrUnexpectedEOF),
			want: "[NETWORK] GET failed: unexpected EOF",
		},
		{
			name: "http status",
			err:  NewHTTPStatusError("https://example.test/x", 404),
			want: "[HTTP_STATUS] unexpected status 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("listing folder: %w", NewHTTPStatusError("https://example.test", 500))

	assert.True(t, stderrors.Is(err, ErrHTTPStatus))
	assert.False(t, stderrors.Is(err, ErrNetwork))
	assert.False(t, stderrors.Is(err, io.EOF))
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewNetworkError("dial", io.ErrClosedPipe)
	assert.True(t, stderrors.Is(err, io.ErrClosedPipe))
	assert.True(t, stderrors.Is(err, ErrNetwork))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewHTTPStatusError("https://example.test/items", 401)

	require.NotNil(t, err.Context)
	assert.Equal(t, "https://example.test/items", err.Context["url"])
	assert.Equal(t, 401, err.Context["status_code"])

	var nilCtx AppError
	nilCtx.WithContext("k", "v")
	assert.Equal(t, "v", nilCtx.Context["k"])
}

func TestIsType(t *testing.T) {
	inner := NewInvalidDateTokenError("a_b_c_d_24xx01", "24xx01", io.EOF)
	outer := NewStorageError("wrapped", inner)

	assert.True(t, IsType(outer, ErrTypeStorage))
	assert.True(t, IsType(outer, ErrTypeInvalidDateToken))
	assert.False(t, IsType(outer, ErrTypeNetwork))
	assert.False(t, IsType(io.EOF, ErrTypeNetwork))
	assert.False(t, IsType(nil, ErrTypeNetwork))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrTypeUnknownItemKind, TypeOf(fmt.Errorf("x: %w", NewUnknownItemKindError("Report"))))
	assert.Equal(t, ErrorType(""), TypeOf(io.EOF))
}
