package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/0chain/errors"
)

/*ReqRespHandlerf - a type for the default handler signature */
type ReqRespHandlerf func(w http.ResponseWriter, r *http.Request)

/*JSONResponderF - a handler that takes standard request (non-json) and responds with a json response */
type JSONResponderF func(ctx context.Context, r *http.Request) (interface{}, error)

/*StatusCodeResponderF - a handler that also decides the http status of its response */
type StatusCodeResponderF func(ctx context.Context, r *http.Request) (interface{}, int, error)

// errorBody builds the json body of a failed request: {"detail": ..., "code": ...}
func errorBody(err error) map[string]interface{} {
	data := make(map[string]interface{}, 2)
	data["detail"] = err.Error()
	if code := ErrorCode(err); code != "" {
		data["code"] = code
	}
	return data
}

// ErrorCode digs the application error code out of err, if any.
func ErrorCode(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	var aerr *errors.Error
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return ""
}

/*Respond - respond either data or error as a response */
func Respond(w http.ResponseWriter, data interface{}, err error) {
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS for all.
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if err != nil {
		statusCode := http.StatusBadRequest
		var cerr *Error
		if errors.As(err, &cerr) && cerr.StatusCode != 0 {
			statusCode = cerr.StatusCode
		}
		buf := bytes.NewBuffer(nil)
		json.NewEncoder(buf).Encode(errorBody(err)) //nolint:errcheck // map of strings
		w.WriteHeader(statusCode)
		fmt.Fprint(w, buf.String())
	} else if data != nil {
		json.NewEncoder(w).Encode(data) //nolint:errcheck // checked in previous step
	}
}

func SetupCORSResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Accept-Encoding")
}

/*ToJSONResponse - An adapter that takes a handler of the form
* func AHandler(r *http.Request) (interface{}, error)
* which takes a request object, processes and returns an object or an error
* and converts into a standard request/response handler
 */
func ToJSONResponse(handler JSONResponderF) ReqRespHandlerf {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // CORS for all.
		if r.Method == "OPTIONS" {
			SetupCORSResponse(w, r)
			return
		}
		ctx := r.Context()
		data, err := handler(ctx, r)
		Respond(w, data, err)
	}
}

/*ToStatusCode - same as ToJSONResponse, but the handler picks the status code */
func ToStatusCode(handler StatusCodeResponderF) ReqRespHandlerf {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // CORS for all.
		if r.Method == "OPTIONS" {
			SetupCORSResponse(w, r)
			return
		}

		ctx := r.Context()

		data, statusCode, err := handler(ctx, r)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if err != nil {
			if statusCode == 0 {
				statusCode = http.StatusBadRequest
			}
			if code := ErrorCode(err); code != "" {
				w.Header().Set(AppErrorHeader, code)
			}

			w.WriteHeader(statusCode)

			if data != nil {
				json.NewEncoder(w).Encode(data) //nolint:errcheck
			} else {
				json.NewEncoder(w).Encode(errorBody(err)) //nolint:errcheck
			}

			return
		}

		if statusCode == 0 {
			statusCode = http.StatusOK
		}

		if data == nil {
			w.WriteHeader(statusCode)
			return
		}

		jsonData, err := json.Marshal(data)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errorBody(err)) //nolint:errcheck
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(jsonData)))
		w.WriteHeader(statusCode)
		w.Write(jsonData) //nolint:errcheck
	}
}
