//go:build !integration
// +build !integration

package common

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInt64Field(t *testing.T) {
	for _, tc := range []struct {
		name    string
		form    map[string]string
		want    int64
		wantErr bool
	}{
		{name: "absent", form: map[string]string{}, want: 7},
		{name: "blank", form: map[string]string{"fileSize": ""}, want: 7},
		{name: "value", form: map[string]string{"fileSize": "1000"}, want: 1000},
		{name: "not a number", form: map[string]string{"fileSize": "ten"}, wantErr: true},
	} {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			r := multipartReq(context.Background(), http.MethodPost, "http://localhost/v1/file/chunk", tt.form)

			got, err := GetInt64Field(r, "fileSize", 7)
			if tt.wantErr {
				require.Error(t, err)
				require.Equal(t, "invalid_field", ErrorCode(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGetFieldFallsBackToQuery(t *testing.T) {
	r := multipartReq(context.Background(), http.MethodPost, "http://localhost/v1/file/chunk?fileId=q1", map[string]string{"order": "0"})

	v, ok := GetField(r, "fileId")
	require.True(t, ok)
	require.Equal(t, "q1", v)

	_, ok = GetField(r, "fileName")
	require.False(t, ok)
}
