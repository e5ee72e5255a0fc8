package common

const (
	// AppErrorHeader - a http response header to send an application error code.
	AppErrorHeader = "X-App-Error-Code"

	// ClientHeader optional client identity, used as an extra rate limit key.
	ClientHeader = "X-App-Client-ID"
)
