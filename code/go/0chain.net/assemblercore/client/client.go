// Package client uploads files to the assembler in concurrent chunks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/assembler"
	"github.com/0chain/assembler/code/go/0chain.net/core/common"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRetryMax    = 3
	DefaultChunkSize   = 1024 * 1024
	DefaultConcurrency = 4

	ChunkPath  = "/v1/file/chunk"
	StatusPath = "/v1/file/status/"
)

// UploadError a non 2xx answer of the assembler
type UploadError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Detail     string `json:"detail"`
}

func (e *UploadError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Detail)
}

type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	clientID   string
}

type Option func(c *Client)

func WithRetryMax(n int) Option {
	return func(c *Client) { c.httpClient.RetryMax = n }
}

func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryWaitMin = min
		c.httpClient.RetryWaitMax = max
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient.HTTPClient = hc }
}

// WithClientID sent in the client header, used by the server as an extra rate limit key.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

func New(baseURL string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = DefaultRetryMax
	rc.Logger = &leveledLogger{l: logging.Logger.Sugar()}
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		httpClient: rc,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	retry, rerr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return false, rerr
	}
	return retry, rerr
}

// ChunkRequest one chunk and the metadata it is sent with
type ChunkRequest struct {
	FileID   string
	FileName string
	Order    int
	Offset   int64
	Limit    int64
	FileSize int64
	Data     []byte
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.clientID != "" {
		req.Header.Set(common.ClientHeader, c.clientID)
	}
	return req, nil
}

// UploadChunk posts one chunk.
func (c *Client) UploadChunk(ctx context.Context, cr ChunkRequest) (*assembler.Result, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fields := [][2]string{
		{"order", strconv.Itoa(cr.Order)},
		{"fileId", cr.FileID},
		{"fileName", cr.FileName},
		{"offset", strconv.FormatInt(cr.Offset, 10)},
		{"limit", strconv.FormatInt(cr.Limit, 10)},
		{"fileSize", strconv.FormatInt(cr.FileSize, 10)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("chunk", cr.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(cr.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, ChunkPath, body.Bytes())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res assembler.Result
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FileStatus asks for the state of fileID.
func (c *Client) FileStatus(ctx context.Context, fileID string) (*assembler.FileStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, StatusPath+url.PathEscape(fileID), nil)
	if err != nil {
		return nil, err
	}

	var st assembler.FileStatus
	if err := c.do(req, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(req *retryablehttp.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := &UploadError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, uerr) != nil || uerr.Detail == "" {
			uerr.Detail = strings.TrimSpace(string(data))
		}
		return uerr
	}

	return json.Unmarshal(data, out)
}

// Options of UploadFile
type Options struct {
	// ChunkSize bytes per chunk, DefaultChunkSize when 0
	ChunkSize int64
	// Concurrency chunks in flight, DefaultConcurrency when 0
	Concurrency int
	// FileID a random uuid when empty
	FileID string
	// FileName base name of path when empty
	FileName string
}

// UploadFile splits path into chunks and uploads them concurrently. It returns the merged result.
func (c *Client) UploadFile(ctx context.Context, path string, opts Options) (*assembler.Result, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.FileID == "" {
		opts.FileID = uuid.NewString()
	}
	if opts.FileName == "" {
		opts.FileName = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	finfo, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := finfo.Size()
	if size == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	chunks := int((size + opts.ChunkSize - 1) / opts.ChunkSize)

	logging.Logger.Info("uploading file",
		zap.String("file_id", opts.FileID),
		zap.String("path", path),
		zap.Int64("size", size),
		zap.Int("chunks", chunks))

	var (
		mu     sync.Mutex
		merged *assembler.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := 0; i < chunks; i++ {
		order := i
		g.Go(func() error {
			offset := int64(order) * opts.ChunkSize
			n := opts.ChunkSize
			if offset+n > size {
				n = size - offset
			}

			data := make([]byte, n)
			if _, err := f.ReadAt(data, offset); err != nil && err != io.EOF {
				return err
			}

			res, err := c.UploadChunk(gctx, ChunkRequest{
				FileID:   opts.FileID,
				FileName: opts.FileName,
				Order:    order,
				Offset:   offset,
				Limit:    size,
				FileSize: size,
				Data:     data,
			})
			if err != nil {
				return fmt.Errorf("chunk %d: %w", order, err)
			}

			if res.Status == assembler.StatusMerged {
				mu.Lock()
				merged = res
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, fmt.Errorf("file %s was not merged after %d chunks", opts.FileID, chunks)
	}
	return merged, nil
}
