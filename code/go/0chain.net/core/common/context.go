package common

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"go.uber.org/zap"
)

var (
	rootContext context.Context
	rootCancel  context.CancelFunc
)

// ShutdownTimeout how long in-flight requests get once a signal arrives
var ShutdownTimeout = 10 * time.Second

/*SetupRootContext - sets up the root common context that can be used to shutdown the node */
func SetupRootContext(nodectx context.Context) {
	rootContext, rootCancel = context.WithCancel(nodectx)
}

/*GetRootContext - get the root context for the server
* This will be used to control shutting down the server but cleanup all the workers
 */
func GetRootContext() context.Context {
	if rootContext == nil {
		SetupRootContext(context.Background())
	}
	return rootContext
}

/*Done - call this when the program needs to stop and notify all workers */
func Done() {
	if rootCancel != nil {
		rootCancel()
	}
}

/*HandleShutdown - handles various shutdown signals */
func HandleShutdown(server *http.Server) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-c
		logging.Logger.Info("Shutting down server", zap.String("signal", sig.String()))
		Done()

		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logging.Logger.Error("server shutdown", zap.Error(err))
		}
	}()
}
