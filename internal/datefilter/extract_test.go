package datefilter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pbimirror/internal/errors"
)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     time.Time
		wantErr  error
	}{
		{
			name:     "workbook with version suffix",
			filename: "SBL_P5_X_Y_240306_Ver.1.0.2.xlsx",
			want:     time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "token with trailing characters",
			filename: "SBL_P5_A_B_240101.xlsx",
			want:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "korean segments",
			filename: "매출_보고서_A_B_231231요약.pdf",
			want:     time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "two digit year pivots to 19xx",
			filename: "A_B_C_D_690101",
			want:     time.Date(1969, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "two digit year pivots to 20xx",
			filename: "A_B_C_D_680101",
			want:     time.Date(2068, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "too few segments", filename: "SBL_P5_X_240306.xlsx", wantErr: apperrors.ErrMalformedFilename},
		{name: "no separator", filename: "report.xlsx", wantErr: apperrors.ErrMalformedFilename},
		{name: "empty", filename: "", wantErr: apperrors.ErrMalformedFilename},
		{name: "invalid month", filename: "SBL_P5_X_Y_241306_v1.xlsx", wantErr: apperrors.ErrInvalidDateToken},
		{name: "invalid day", filename: "SBL_P5_X_Y_240230_v1.xlsx", wantErr: apperrors.ErrInvalidDateToken},
		{name: "short token", filename: "SBL_P5_X_Y_2403.xlsx", wantErr: apperrors.ErrInvalidDateToken},
		{name: "letters", filename: "SBL_P5_X_Y_final_v1.xlsx", wantErr: apperrors.ErrInvalidDateToken},
		{name: "empty token", filename: "SBL_P5_X_Y__v1.xlsx", wantErr: apperrors.ErrInvalidDateToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDate(tt.filename)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestExtractDate_ErrorContext(t *testing.T) {
	_, err := ExtractDate("A_B_C_D_991399")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeInvalidDateToken, appErr.Type)
	assert.Equal(t, "A_B_C_D_991399", appErr.Context["filename"])
}

func TestFirstRunes(t *testing.T) {
	assert.Equal(t, "240306", firstRunes("240306_v1", 6))
	assert.Equal(t, "24", firstRunes("24", 6))
	assert.Equal(t, "가나다라마바", firstRunes("가나다라마바사", 6))
	assert.Equal(t, "", firstRunes("", 6))
}
