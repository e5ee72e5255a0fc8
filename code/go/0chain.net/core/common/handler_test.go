//go:build !integration
// +build !integration

package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0chain/errors"
	"github.com/stretchr/testify/require"
)

var errSample = errors.New("sample_failure", "something broke")

func TestToStatusCode(t *testing.T) {
	for _, tc := range []struct {
		name       string
		handler    StatusCodeResponderF
		wantStatus int
		wantBody   map[string]interface{}
	}{
		{
			name: "ok",
			handler: func(ctx context.Context, r *http.Request) (interface{}, int, error) {
				return map[string]string{"status": "stored"}, 0, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]interface{}{"status": "stored"},
		},
		{
			name: "error defaults to bad request",
			handler: func(ctx context.Context, r *http.Request) (interface{}, int, error) {
				return nil, 0, errSample
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"detail": "sample_failure: something broke", "code": "sample_failure"},
		},
		{
			name: "thrown error keeps code and status",
			handler: func(ctx context.Context, r *http.Request) (interface{}, int, error) {
				return nil, http.StatusConflict, errors.Throw(errSample, "f1")
			},
			wantStatus: http.StatusConflict,
			wantBody:   map[string]interface{}{"detail": "sample_failure: something broke: f1", "code": "sample_failure"},
		},
	} {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			ToStatusCode(tt.handler)(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Equal(t, tt.wantStatus, recorder.Code)
			require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			require.Equal(t, tt.wantBody, body)
		})
	}
}

func TestToStatusCodeOptions(t *testing.T) {
	called := false
	recorder := httptest.NewRecorder()
	ToStatusCode(func(ctx context.Context, r *http.Request) (interface{}, int, error) {
		called = true
		return nil, 0, nil
	})(recorder, httptest.NewRequest(http.MethodOptions, "/", nil))

	require.False(t, called)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, recorder.Header().Get("Access-Control-Allow-Methods"))
}

func TestRespondUsesStatusCodeOfError(t *testing.T) {
	recorder := httptest.NewRecorder()
	Respond(recorder, nil, NewErrorfWithStatusCode(http.StatusNotFound, "not_found", "no file %s", "f1"))

	require.Equal(t, http.StatusNotFound, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "not_found", body["code"])
	require.Equal(t, "not_found: no file f1", body["detail"])
}
