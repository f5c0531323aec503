package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"
	"testing"

	"logcsv/internal/config"
	"logcsv/internal/formatter"
	"logcsv/internal/logger"
	"logcsv/pkg/metadata"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const exportJSON = `[
	{"custumerPhone":"123","error":"","name":"A","logged_at":"2024-11-26T10:00:00"},
	{"custumerPhone":"456","error":"x","name":"B","logged_at":"2024-11-28T10:00:00"}
]`

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.RateLimit.Enabled = false

	if mutate != nil {
		mutate(cfg)
	}

	require.NoError(t, cfg.Validate())

	s, err := New(cfg, logger.Discard())
	require.NoError(t, err)

	return s
}

func newRequestCtx(method, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)

	return ctx
}

func newUploadCtx(t *testing.T, fields map[string]string, content []byte) *fasthttp.RequestCtx {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	if content != nil {
		fw, err := mw.CreateFormFile("file", "export.json")
		require.NoError(t, err)

		_, err = fw.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(PathConvert)
	req.Header.SetContentType(mw.FormDataContentType())
	req.SetBody(body.Bytes())

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)

	return ctx
}

func decodeBody(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out), "body: %s", ctx.Response.Body())

	return out
}

func TestServer_Index(t *testing.T) {
	s := newTestServer(t, nil)

	ctx := newRequestCtx(fasthttp.MethodGet, PathIndex)
	s.Handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.Contains(t, body, `value="25/11/2024"`)
	assert.Contains(t, body, `value="27/11/2024"`)
	assert.Contains(t, body, "cleaned_data.csv")
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, nil)

	ctx := newRequestCtx(fasthttp.MethodGet, PathHealth)
	s.Handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "ok", decodeBody(t, ctx)["status"])
}

func TestServer_Routing(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("UnknownPath", func(t *testing.T) {
		ctx := newRequestCtx(fasthttp.MethodGet, "/nope")
		s.Handler(ctx)
		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	})

	t.Run("GetConvert", func(t *testing.T) {
		ctx := newRequestCtx(fasthttp.MethodGet, PathConvert)
		s.Handler(ctx)
		assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
		assert.Equal(t, fasthttp.MethodPost, string(ctx.Response.Header.Peek(fasthttp.HeaderAllow)))
	})
}

func TestServer_Convert_Download(t *testing.T) {
	s := newTestServer(t, nil)

	ctx := newUploadCtx(t, map[string]string{"start_date": "25/11/2024", "end_date": "27/11/2024"}, []byte(exportJSON))
	s.Handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), "body: %s", ctx.Response.Body())
	assert.Equal(t, "text/csv; charset=utf-8", string(ctx.Response.Header.ContentType()))
	assert.Contains(t, string(ctx.Response.Header.Peek(fasthttp.HeaderContentDisposition)), `filename="cleaned_data.csv"`)
	assert.NotEmpty(t, ctx.Response.Header.Peek(HeaderRunID))
	assert.Equal(t, "1", string(ctx.Response.Header.Peek(HeaderRows)))

	body := ctx.Response.Body()
	assert.Equal(t, metadata.CalculateHash(body), string(ctx.Response.Header.Peek(HeaderSHA256)))
	assert.Equal(t, "custumerPhone,error,name,logged_at\n123,,A,2024-11-26 10:00:00\n", string(body))
}

func TestServer_Convert_DefaultDates(t *testing.T) {
	s := newTestServer(t, nil)

	ctx := newUploadCtx(t, nil, []byte(exportJSON))
	s.Handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), "body: %s", ctx.Response.Body())

	table, err := formatter.ParseCSV(ctx.Response.Body(), ',')
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestServer_Convert_Preview(t *testing.T) {
	s := newTestServer(t, nil)

	ctx := newUploadCtx(t, map[string]string{"action": "preview"}, []byte(exportJSON))
	s.Handler(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.True(t, strings.HasPrefix(string(ctx.Response.Header.ContentType()), "text/plain"))
	assert.Contains(t, string(ctx.Response.Body()), "| custumerPhone |")
	assert.Empty(t, ctx.Response.Header.Peek(fasthttp.HeaderContentDisposition))
}

func TestServer_Convert_GzipUpload(t *testing.T) {
	s := newTestServer(t, nil)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(exportJSON))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ctx := newUploadCtx(t, nil, buf.Bytes())
	s.Handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), "body: %s", ctx.Response.Body())
}

func TestServer_Convert_Diagnostics(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		fields     map[string]string
		content    []byte
		wantStatus int
		wantKind   string
	}{
		{
			name:       "MissingFile",
			wantStatus: fasthttp.StatusBadRequest,
			wantKind:   "decode",
		},
		{
			name:       "MalformedJSON",
			content:    []byte(`[{"name":`),
			wantStatus: fasthttp.StatusBadRequest,
			wantKind:   "decode",
		},
		{
			name:       "NoExpectedColumns",
			content:    []byte(`[{"other":1}]`),
			wantStatus: fasthttp.StatusUnprocessableEntity,
			wantKind:   "no_columns",
		},
		{
			name:       "EmptyArray",
			content:    []byte(`[]`),
			wantStatus: fasthttp.StatusUnprocessableEntity,
			wantKind:   "no_columns",
		},
		{
			name:       "MissingTimestamp",
			content:    []byte(`[{"name":"A"}]`),
			wantStatus: fasthttp.StatusUnprocessableEntity,
			wantKind:   "timestamp",
		},
		{
			name:       "NoParsableTimestamps",
			content:    []byte(`[{"name":"A","logged_at":"junk"},{"name":"B","logged_at":null}]`),
			wantStatus: fasthttp.StatusUnprocessableEntity,
			wantKind:   "timestamp",
		},
		{
			name:       "BadBoundary",
			fields:     map[string]string{"start_date": "2024-11-25"},
			content:    []byte(exportJSON),
			wantStatus: fasthttp.StatusBadRequest,
			wantKind:   "boundary",
		},
		{
			name:       "EmptyAfterFilter",
			fields:     map[string]string{"start_date": "01/01/2020", "end_date": "02/01/2020"},
			content:    []byte(exportJSON),
			wantStatus: fasthttp.StatusOK,
			wantKind:   "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newUploadCtx(t, tt.fields, tt.content)
			s.Handler(ctx)

			assert.Equal(t, tt.wantStatus, ctx.Response.StatusCode())
			assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
			assert.Empty(t, ctx.Response.Header.Peek(fasthttp.HeaderContentDisposition), "no file on failure")

			body := decodeBody(t, ctx)
			assert.Equal(t, tt.wantKind, body["kind"])
			assert.NotEmpty(t, body["message"])
			assert.Equal(t, string(ctx.Response.Header.Peek(HeaderRunID)), body["runId"])
		})
	}
}

func TestServer_Convert_TooLarge(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Server.MaxUploadMb = 1 })

	big := bytes.Repeat([]byte(" "), (1<<20)+10)
	ctx := newUploadCtx(t, nil, big)
	s.Handler(ctx)

	assert.Equal(t, fasthttp.StatusRequestEntityTooLarge, ctx.Response.StatusCode())
}

func TestServer_RequestError_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Server.MaxUploadMb = 1 })
	require.NotNil(t, s.server.ErrorHandler)

	ctx := newRequestCtx(fasthttp.MethodPost, PathConvert)
	s.server.ErrorHandler(ctx, fasthttp.ErrBodyTooLarge)

	assert.Equal(t, fasthttp.StatusRequestEntityTooLarge, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))

	body := decodeBody(t, ctx)
	assert.Equal(t, "decode", body["kind"])
	assert.Equal(t, "error", body["severity"])
	assert.Contains(t, body["message"], "1 MB")
	assert.Equal(t, string(ctx.Response.Header.Peek(HeaderRunID)), body["runId"])
}

func TestServer_RequestError_Malformed(t *testing.T) {
	s := newTestServer(t, nil)

	ctx := newRequestCtx(fasthttp.MethodPost, PathConvert)
	s.handleRequestError(ctx, errors.New("cannot parse request line"))

	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
	assert.Equal(t, "cannot parse request line", decodeBody(t, ctx)["message"])
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	})

	first := newUploadCtx(t, nil, []byte(exportJSON))
	s.Handler(first)
	assert.Equal(t, fasthttp.StatusOK, first.Response.StatusCode())

	second := newUploadCtx(t, nil, []byte(exportJSON))
	s.Handler(second)
	assert.Equal(t, fasthttp.StatusTooManyRequests, second.Response.StatusCode())

	// Other routes are not throttled
	health := newRequestCtx(fasthttp.MethodGet, PathHealth)
	s.Handler(health)
	assert.Equal(t, fasthttp.StatusOK, health.Response.StatusCode())
}
