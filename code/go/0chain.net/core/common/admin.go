package common

import (
	"crypto/subtle"
	"net/http"

	"github.com/spf13/viper"
)

// global username and password used to access endpoints only by admin
var gUsername, gPassword string

func SetAdminCredentials() {
	gUsername = viper.GetString("admin.username")
	gPassword = viper.GetString("admin.password")
}

// AuthenticateAdmin guards handler with basic auth. Without configured
// credentials the endpoint is closed.
func AuthenticateAdmin(handler ReqRespHandlerf) ReqRespHandlerf {
	SetAdminCredentials()
	return func(w http.ResponseWriter, r *http.Request) {
		uname, passwd, ok := r.BasicAuth()
		if !ok || gUsername == "" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Admin only api")) // nolint
			return
		}

		if subtle.ConstantTimeCompare([]byte(uname), []byte(gUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(passwd), []byte(gPassword)) != 1 {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Invalid username or password")) // nolint
			return
		}

		handler(w, r)
	}
}
