package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/assembler"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/config"
	"github.com/0chain/assembler/code/go/0chain.net/core/common"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/0chain/errors"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	UploadRPS  = 50 // Upload Request Per Second
	GeneralRPS = 10 // General Request Per Second

	DefaultExpirationTTL = time.Minute * 5

	// ServiceName reported by the health endpoint
	ServiceName = "ocr-pipeline"

	// multipartSlack room for multipart headers and the metadata fields
	multipartSlack = 1024 * 1024
)

var (
	uploadRL  *limiter.Limiter // upload Rate Limiter
	generalRL *limiter.Limiter // general Rate Limiter
)

// DiskCapacity reports free space of the backing store.
type DiskCapacity interface {
	GetCurrentDiskCapacity() uint64
}

// Handler serves the assembler over http.
type Handler struct {
	assembler *assembler.Assembler
	gatherer  prometheus.Gatherer
	disk      DiskCapacity
}

// New builds the handler. gatherer and disk may be nil.
func New(a *assembler.Assembler, gatherer prometheus.Gatherer, disk DiskCapacity) *Handler {
	return &Handler{assembler: a, gatherer: gatherer, disk: disk}
}

func ConfigRateLimits() {
	tokenExpirettl := viper.GetDuration("rate_limiters.default_token_expire_duration")
	if tokenExpirettl <= 0 {
		tokenExpirettl = DefaultExpirationTTL
	}

	ipLookups := []string{"RemoteAddr", "X-Forwarded-For", "X-Real-IP"}

	isProxy := viper.GetBool("rate_limiters.proxy")
	if isProxy {
		ipLookups = []string{"X-Forwarded-For", "RemoteAddr", "X-Real-IP"}
	}

	uRps := viper.GetFloat64("rate_limiters.upload_rps")
	gRps := viper.GetFloat64("rate_limiters.general_rps")

	if uRps <= 0 {
		uRps = UploadRPS
	}

	if gRps <= 0 {
		gRps = GeneralRPS
	}

	logging.Logger.Info("Setting rps: ",
		zap.Float64("upload_rps", uRps),
		zap.Float64("general_rps", gRps),
	)

	uploadRL = common.GetRateLimiter(uRps, ipLookups, true, tokenExpirettl)
	generalRL = common.GetRateLimiter(gRps, ipLookups, true, tokenExpirettl)
}

func RateLimitByUploadRL(handler common.ReqRespHandlerf) common.ReqRespHandlerf {
	return common.RateLimitByIP(handler, uploadRL)
}

func RateLimitByGeneralRL(handler common.ReqRespHandlerf) common.ReqRespHandlerf {
	return common.RateLimitByIP(handler, generalRL)
}

/*SetupHandlers sets up the necessary API end points */
func SetupHandlers(r *mux.Router, h *Handler) {
	ConfigRateLimits()
	r.Use(useRecovery, useCORS())

	bodyLimit := h.assembler.Limits().MaxFileSize
	if bodyLimit > 0 {
		bodyLimit += multipartSlack
	}
	upload := RateLimitByUploadRL(withBodyLimit(bodyLimit, common.ToStatusCode(h.UploadChunkHandler)))

	r.HandleFunc("/v1/file/chunk", upload).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/upload/chunk", upload).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/v1/file/status/{fileId}",
		RateLimitByGeneralRL(common.ToStatusCode(h.FileStatusHandler))).
		Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/health", common.ToJSONResponse(h.HealthHandler)).Methods(http.MethodGet)

	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	// admin related
	r.HandleFunc("/_config", common.AuthenticateAdmin(common.ToJSONResponse(GetConfig)))
}

// statusCode http status of an assembler failure
func statusCode(err error) int {
	switch {
	case errors.Is(err, assembler.ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, assembler.ErrFileAlreadyMerged):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UploadChunkHandler receives one multipart chunk:
// order, fileId, fileName (required), offset, limit, fileSize (optional) and the file part chunk.
func (h *Handler) UploadChunkHandler(ctx context.Context, r *http.Request) (interface{}, int, error) {
	if err := r.ParseMultipartForm(common.FormFileParseMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errors.Throw(assembler.ErrChunkWriteFailed,
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		}
		return nil, http.StatusBadRequest, errors.Throw(assembler.ErrInvalidMetadata, "invalid multipart form: "+err.Error())
	}

	meta, err := parseChunkMetadata(r)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	file, _, err := r.FormFile("chunk")
	if err != nil {
		return nil, http.StatusBadRequest, errors.Throw(assembler.ErrInvalidMetadata, "chunk file part is required")
	}
	defer file.Close()

	res, err := h.assembler.ReceiveChunk(ctx, *meta, file)
	if err != nil {
		code := statusCode(err)
		if code >= http.StatusInternalServerError {
			logging.Logger.Error("receive chunk",
				zap.String("file_id", meta.FileID),
				zap.Int("order", meta.Order),
				zap.Error(err))
		}
		return nil, code, err
	}

	return res, http.StatusOK, nil
}

func parseChunkMetadata(r *http.Request) (*assembler.ChunkMetadata, error) {
	meta := &assembler.ChunkMetadata{}

	var ok bool
	if meta.FileID, ok = common.GetField(r, "fileId"); !ok || meta.FileID == "" {
		return nil, errors.Throw(assembler.ErrInvalidMetadata, "fileId is required")
	}
	if meta.FileName, ok = common.GetField(r, "fileName"); !ok || meta.FileName == "" {
		return nil, errors.Throw(assembler.ErrInvalidMetadata, "fileName is required")
	}

	order, ok := common.GetField(r, "order")
	if !ok || order == "" {
		return nil, errors.Throw(assembler.ErrInvalidMetadata, "order is required")
	}
	n, err := strconv.Atoi(order)
	if err != nil {
		return nil, errors.Throw(assembler.ErrInvalidMetadata, "order must be an integer, got "+strconv.Quote(order))
	}
	meta.Order = n

	for _, f := range []struct {
		key string
		dst *int64
	}{
		{"offset", &meta.Offset},
		{"limit", &meta.Limit},
		{"fileSize", &meta.FileSize},
	} {
		v, err := common.GetInt64Field(r, f.key, 0)
		if err != nil {
			return nil, errors.Throw(assembler.ErrInvalidMetadata, err.Error())
		}
		*f.dst = v
	}

	return meta, nil
}

// FileStatusHandler reports the lifecycle state of a file id.
func (h *Handler) FileStatusHandler(ctx context.Context, r *http.Request) (interface{}, int, error) {
	fileID := mux.Vars(r)["fileId"]
	if fileID == "" {
		return nil, http.StatusBadRequest, common.InvalidRequest("fileId is required")
	}
	if limit := h.assembler.Limits().MaxFileIDLength; limit > 0 && len(fileID) > limit {
		return nil, http.StatusBadRequest, common.InvalidRequest("fileId longer than " + strconv.Itoa(limit))
	}

	st, err := h.assembler.State(ctx, fileID)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return st, http.StatusOK, nil
}

func (h *Handler) HealthHandler(ctx context.Context, r *http.Request) (interface{}, error) {
	resp := map[string]interface{}{
		"status":  "OK",
		"service": ServiceName,
	}
	if h.disk != nil {
		resp["free_disk_bytes"] = h.disk.GetCurrentDiskCapacity()
	}
	return resp, nil
}

func GetConfig(ctx context.Context, r *http.Request) (interface{}, error) {
	return config.Configuration, nil
}
