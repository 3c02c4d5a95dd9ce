package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/italolelis/mp3grab/internal/extractor"
	"github.com/italolelis/mp3grab/internal/logctx"
	"github.com/italolelis/mp3grab/internal/notifier"
	"github.com/italolelis/mp3grab/internal/telemetry"
	"github.com/italolelis/mp3grab/internal/workspace"
)

const (
	outputFileName     = "downloaded.mp3"
	audioContentType   = "audio/mpeg"
	maxRequestBodySize = 1 << 20 // 1MB
	notifyTimeout      = 15 * time.Second
)

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	URL string `json:"url"`
}

type DownloadHandler struct {
	extractor     extractor.Extractor
	cookiesPath   string
	workspaceRoot string
	notifier      notifier.Notifier
	telemetry     *telemetry.Telemetry
}

// NewDownloadHandler creates the download handler. cookiesPath may be empty and
// notif may be nil.
func NewDownloadHandler(e extractor.Extractor, cookiesPath, workspaceRoot string, notif notifier.Notifier, t *telemetry.Telemetry) *DownloadHandler {
	return &DownloadHandler{
		extractor:     e,
		cookiesPath:   cookiesPath,
		workspaceRoot: workspaceRoot,
		notifier:      notif,
		telemetry:     t,
	}
}

func (h *DownloadHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/download", h.HandleDownload)

	return r
}

// HandleDownload extracts the audio behind the posted URL and returns it as an MP3 attachment.
func (h *DownloadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	req, err := decodeDownloadRequest(w, r)
	if err != nil {
		reason := msgInvalidBody

		var vErr *ValidationError
		if errors.As(err, &vErr) {
			reason = vErr.Reason
		}

		logger.DebugContext(ctx, "rejected download request", "err", err)
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: reason})

		return
	}

	logger.InfoContext(ctx, "download requested", "url", req.URL)

	audio, err := h.fetchAudio(ctx, req.URL)
	if err != nil {
		var toolErr *extractor.ToolError
		if errors.As(err, &toolErr) {
			logger.ErrorContext(ctx, "extraction tool failed", "url", req.URL, "exit_code", toolErr.ExitCode)
			h.notifyFailure(ctx, req.URL, toolErr)
			writeJSON(w, r, http.StatusInternalServerError, toolFailureResponse{
				Error:   msgToolFailed,
				Details: toolErr.Stderr,
			})

			return
		}

		logger.ErrorContext(ctx, "failed to extract audio", "url", req.URL, "err", err)
		h.telemetry.RecordSystemError("download_handler", "unhandled")
		http.Error(w, msgInternalServer, http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", audioContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputFileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(audio); err != nil {
		logger.WarnContext(ctx, "failed to write audio response", "err", err)
	}
}

// fetchAudio runs one extraction inside its own workspace and returns the produced
// file's bytes. The workspace is gone by the time fetchAudio returns, whatever the outcome.
func (h *DownloadHandler) fetchAudio(ctx context.Context, url string) ([]byte, error) {
	logger := logctx.LoggerFromContext(ctx)

	ws, err := workspace.Acquire(h.workspaceRoot)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := ws.Release(); err != nil {
			logger.ErrorContext(ctx, "failed to release workspace", "dir", ws.Dir(), "err", err)
		}
	}()

	outputPath := ws.Path(outputFileName)

	out, err := h.extractor.Extract(ctx, extractor.Request{
		URL:         url,
		OutputPath:  outputPath,
		CookiesPath: h.cookiesPath,
	})
	if out != nil {
		logToolOutput(ctx, out, err != nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", url, err)
	}

	audio, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted audio: %w", err)
	}

	h.telemetry.RecordOutputSize(int64(len(audio)))
	logger.InfoContext(ctx, "extracted audio", "url", url, "size", humanize.Bytes(uint64(len(audio))))

	return audio, nil
}

// logToolOutput logs stdout at debug. Stderr is logged at info, or warn when the run failed.
func logToolOutput(ctx context.Context, out *extractor.Output, failed bool) {
	logger := logctx.LoggerFromContext(ctx)

	logger.DebugContext(ctx, "extraction tool stdout", "stdout", out.Stdout, "duration", out.Duration.String())

	if out.Stderr == "" {
		return
	}

	level := slog.LevelInfo
	if failed {
		level = slog.LevelWarn
	}

	logger.Log(ctx, level, "extraction tool stderr", "stderr", out.Stderr)
}

// notifyFailure reports a tool failure without holding up the response.
func (h *DownloadHandler) notifyFailure(ctx context.Context, url string, toolErr *extractor.ToolError) {
	if h.notifier == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		content := fmt.Sprintf("❌ %s for %s (exit code %d)\n%s", msgToolFailed, url, toolErr.ExitCode, toolErr.Stderr)

		if err := h.notifier.Notify(ctx, content); err != nil {
			logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "url", url, "err", err)
		}
	}()
}

func decodeDownloadRequest(w http.ResponseWriter, r *http.Request) (*DownloadRequest, error) {
	var req DownloadRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	// An empty body is treated like an empty object so it reports the missing URL.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Field: "body", Reason: msgInvalidBody, Err: err}
	}

	if req.URL == "" {
		return nil, &ValidationError{Field: "url", Reason: msgNoURL}
	}

	return &req, nil
}
