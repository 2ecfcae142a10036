package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/api/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	cursor := &storage.JobCursor{
		CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC),
		JobID:     "4f1c9a53-2b7e-4d0a-8c6f-1e2d3c4b5a69",
	}

	encoded := EncodeJobCursor(cursor)
	assert.NotContains(t, encoded, "=")

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, cursor.JobID, decoded.JobID)
}

func TestDecodeJobCursor(t *testing.T) {
	encode := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name    string
		cursor  string
		wantNil bool
		wantErr bool
	}{
		{name: "empty is first page", cursor: "", wantNil: true},
		{name: "not base64", cursor: "***", wantErr: true},
		{name: "missing separator", cursor: encode("12345"), wantErr: true},
		{name: "bad timestamp", cursor: encode("soon|4f1c9a53-2b7e-4d0a-8c6f-1e2d3c4b5a69"), wantErr: true},
		{name: "bad job id", cursor: encode("12345|job-1"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJobCursor(tt.cursor)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
			}
		})
	}
}
