package common

import (
	"net/http"
	"strconv"

	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"go.uber.org/zap"
)

const (
	FormFileParseMaxMemory = 32 * 1024 * 1024
)

// TryParseForm try populates r.Form and r.PostForm.
func TryParseForm(r *http.Request) {
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		if r.Form != nil && (r.MultipartForm != nil || r.PostForm != nil) {
			return
		}
		ct := r.Header.Get("Content-Type")
		if ct == "application/x-www-form-urlencoded" {
			r.ParseForm() //nolint: errcheck
		} else {
			err := r.ParseMultipartForm(FormFileParseMaxMemory)
			if err != nil {
				logging.Logger.Error("TryParseForm: ParseMultipartForm", zap.Error(err))
			}
		}
	}
}

// GetField get field from form or query
func GetField(r *http.Request, key string) (string, bool) {
	TryParseForm(r)

	v, ok := r.Form[key]
	if ok && len(v) > 0 {
		return v[0], true
	}

	v, ok = r.URL.Query()[key]
	if ok && len(v) > 0 {
		return v[0], true
	}

	return "", false
}

// GetInt64Field reads an optional integer field, falling back to def when absent or blank.
func GetInt64Field(r *http.Request, key string, def int64) (int64, error) {
	v, ok := GetField(r, key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, NewErrorfWithStatusCode(http.StatusBadRequest, "invalid_field", "%s must be an integer, got %q", key, v)
	}
	return n, nil
}
