package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr string
	}{
		{name: "absent", raw: "", want: 20},
		{name: "valid", raw: "5", want: 5},
		{name: "lower bound", raw: "1", want: 1},
		{name: "not a number", raw: "x", wantErr: "limit must be a valid integer"},
		{name: "too big", raw: "101", wantErr: "limit must be between 1 and 100"},
		{name: "zero", raw: "0", wantErr: "between"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := url.Values{}
			if tt.raw != "" {
				q.Set("limit", tt.raw)
			}
			got, err := IntParam(q, "limit", 1, 100, 20)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTimeParam(t *testing.T) {
	t.Parallel()

	got, err := TimeParam(url.Values{"since": {"2026-01-02T03:04:05Z"}}, "since")
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	got, err = TimeParam(url.Values{}, "since")
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = TimeParam(url.Values{"since": {"yesterday"}}, "since")
	require.ErrorContains(t, err, "RFC 3339")
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, ErrNotFound, "run x not found")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ErrorResponse{Error: "not_found", Message: "run x not found"}, body)
}
