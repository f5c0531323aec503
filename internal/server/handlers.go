package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"logcsv/internal/formatter"
	"logcsv/internal/input"
	"logcsv/internal/normalizer"
	"logcsv/pkg/metadata"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Response headers set on conversions.
const (
	HeaderRunID  = "X-Run-ID"
	HeaderSHA256 = "X-Content-SHA256"
	HeaderRows   = "X-Row-Count"
)

// diagnosticResponse is the JSON body returned whenever no file is produced.
type diagnosticResponse struct {
	RunID string `json:"runId"`
	normalizer.Diagnostic
	Stats *normalizer.Stats `json:"stats,omitempty"`
}

const indexTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>JSON log to CSV</title></head>
<body>
<h1>JSON log to CSV</h1>
<form action="/convert" method="post" enctype="multipart/form-data">
  <p><label>JSON file <input type="file" name="file" accept=".json,.gz,.zst,application/json" required></label></p>
  <p><label>Start date (dd/mm/yyyy) <input type="text" name="start_date" value="{{.StartDate}}"></label></p>
  <p><label>End date (dd/mm/yyyy) <input type="text" name="end_date" value="{{.EndDate}}"></label></p>
  <p>
    <button type="submit" name="action" value="preview">Preview</button>
    <button type="submit" name="action" value="download">Download {{.FileName}}</button>
  </p>
</form>
</body>
</html>
`

func (s *Server) handleIndex(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/html; charset=utf-8")

	err := s.index.Execute(ctx, map[string]string{
		"StartDate": s.cfg.Defaults.StartDate,
		"EndDate":   s.cfg.Defaults.EndDate,
		"FileName":  s.cfg.Output.FileName,
	})
	if err != nil {
		s.log.Error("Failed to render index", "error", err)
		ctx.ResetBody()
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

func (s *Server) handleConvert(ctx *fasthttp.RequestCtx) {
	runID := uuid.NewString()
	log := s.log.With("run_id", runID)
	ctx.Response.Header.Set(HeaderRunID, runID)

	raw, status, err := s.readUpload(ctx)
	if err != nil {
		log.Warn("Rejected upload", "error", err)
		writeJSON(ctx, status, diagnosticResponse{
			RunID: runID,
			Diagnostic: normalizer.Diagnostic{
				Kind:     normalizer.KindDecode,
				Severity: normalizer.SeverityError,
				Message:  err.Error(),
			},
		})

		return
	}

	start := formValue(ctx, "start_date", s.cfg.Defaults.StartDate)
	end := formValue(ctx, "end_date", s.cfg.Defaults.EndDate)

	log.Info("Processing upload", "bytes", len(raw), "start", start, "end", end)

	result, err := s.processor.WithLogger(log).Process(raw, start, end)
	if err != nil {
		diag := normalizer.Diagnose(err)
		log.Warn("Conversion failed", "kind", diag.Kind, "error", err)
		writeJSON(ctx, statusFor(diag), diagnosticResponse{RunID: runID, Diagnostic: diag})

		return
	}

	if !result.OK() {
		diag := *result.Diagnostic
		log.Info("Conversion produced no rows", "kind", diag.Kind)
		writeJSON(ctx, statusFor(diag), diagnosticResponse{RunID: runID, Diagnostic: diag, Stats: &result.Stats})

		return
	}

	ctx.Response.Header.Set(HeaderRows, fmt.Sprint(result.Table.Len()))

	if string(ctx.FormValue("action")) == "preview" {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString(formatter.FormatPreview(result.Table, formatter.PreviewOptions{
			MaxRows: s.cfg.Output.PreviewRows,
		}))

		return
	}

	data, err := formatter.FormatCSV(result.Table, s.comma)
	if err != nil {
		log.Error("Failed to encode CSV", "error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, diagnosticResponse{RunID: runID, Diagnostic: normalizer.Diagnose(err)})

		return
	}

	ctx.Response.Header.Set(HeaderSHA256, metadata.CalculateHash(data))
	ctx.Response.Header.Set(fasthttp.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", s.cfg.Output.FileName))
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/csv; charset=utf-8")
	ctx.SetBody(data)

	log.Info("Conversion complete", "rows", result.Stats.Kept, "dropped", result.Stats.Unparseable+result.Stats.OutOfRange)
}

// readUpload returns the decoded upload, or the status to answer with when it is unusable.
func (s *Server) readUpload(ctx *fasthttp.RequestCtx) ([]byte, int, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return nil, fasthttp.StatusBadRequest, fmt.Errorf("missing file upload: %w", err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fasthttp.StatusBadRequest, fmt.Errorf("cannot open upload: %w", err)
	}
	defer f.Close()

	limit := int64(s.cfg.Server.MaxUploadBytes())

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fasthttp.StatusBadRequest, fmt.Errorf("cannot read upload: %w", err)
	}

	raw, err := input.Decode(data, limit)
	if errors.Is(err, input.ErrTooLarge) {
		return nil, fasthttp.StatusRequestEntityTooLarge, err
	}

	if err != nil {
		return nil, fasthttp.StatusBadRequest, err
	}

	return raw, fasthttp.StatusOK, nil
}

// handleRequestError answers requests fasthttp rejects before routing, such as bodies
// over MaxRequestBodySize, with the same JSON diagnostic as a rejected upload.
func (s *Server) handleRequestError(ctx *fasthttp.RequestCtx, err error) {
	runID := uuid.NewString()
	ctx.Response.Header.Set(HeaderRunID, runID)

	var (
		small  *fasthttp.ErrSmallBuffer
		netErr net.Error
	)

	status := fasthttp.StatusBadRequest
	message := err.Error()

	switch {
	case errors.Is(err, fasthttp.ErrBodyTooLarge):
		status = fasthttp.StatusRequestEntityTooLarge
		message = fmt.Sprintf("upload exceeds the %d MB limit", s.cfg.Server.MaxUploadMb)
	case errors.As(err, &small):
		status = fasthttp.StatusRequestHeaderFieldsTooLarge
	case errors.As(err, &netErr) && netErr.Timeout():
		status = fasthttp.StatusRequestTimeout
	}

	s.log.Warn("Rejected request", "run_id", runID, "status", status, "error", err)

	writeJSON(ctx, status, diagnosticResponse{
		RunID: runID,
		Diagnostic: normalizer.Diagnostic{
			Kind:     normalizer.KindDecode,
			Severity: normalizer.SeverityError,
			Message:  message,
		},
	})
}

func formValue(ctx *fasthttp.RequestCtx, key, fallback string) string {
	if v := ctx.FormValue(key); len(v) > 0 {
		return string(v)
	}

	return fallback
}

func statusFor(diag normalizer.Diagnostic) int {
	switch diag.Kind {
	case normalizer.KindDecode, normalizer.KindBoundary:
		return fasthttp.StatusBadRequest
	case normalizer.KindNoColumns, normalizer.KindTimestamp:
		return fasthttp.StatusUnprocessableEntity
	case normalizer.KindEmpty:
		return fasthttp.StatusOK
	default:
		return fasthttp.StatusInternalServerError
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")

	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}
