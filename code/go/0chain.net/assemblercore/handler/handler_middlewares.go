package handler

import (
	"net/http"

	"github.com/0chain/assembler/code/go/0chain.net/core/common"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

func useCORS() func(http.Handler) http.Handler {
	headersOk := handlers.AllowedHeaders([]string{
		"X-Requested-With", common.ClientHeader, "Content-Type",
	})

	// Allow anybody to access API.
	originsOk := handlers.AllowedOrigins([]string{"*"})

	methodsOk := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"})

	return handlers.CORS(originsOk, headersOk, methodsOk)
}

func useRecovery(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.Logger.Error("[recover]http", zap.String("url", r.URL.String()), zap.Any("err", err))
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		h.ServeHTTP(w, r)
	})
}

// withBodyLimit caps the request body at maxBytes.
func withBodyLimit(maxBytes int64, handler common.ReqRespHandlerf) common.ReqRespHandlerf {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		handler(w, r)
	}
}
