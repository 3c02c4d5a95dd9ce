package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/italolelis/mp3grab/internal/logctx"
	"github.com/lrstanley/go-ytdlp"
)

const audioFormat = "mp3"

// YTDLP runs the yt-dlp binary.
type YTDLP struct {
	binPath string
}

// NewYTDLP creates an extractor that executes the binary at binPath
// (a bare name is resolved through PATH).
func NewYTDLP(binPath string) *YTDLP {
	return &YTDLP{binPath: binPath}
}

// command configures an audio-only MP3 extraction for req.
func (y *YTDLP) command(req Request) *ytdlp.Command {
	dl := ytdlp.New().
		SetExecutable(y.binPath).
		ExtractAudio().
		AudioFormat(audioFormat).
		Output(req.OutputPath)

	if req.CookiesPath != "" {
		dl = dl.Cookies(req.CookiesPath)
	}

	return dl
}

// Extract runs yt-dlp to completion and captures both output streams in full.
//
// The process is not bound to ctx cancellation, so a disconnected client does not
// terminate a running extraction. No timeout is applied.
func (y *YTDLP) Extract(ctx context.Context, req Request) (*Output, error) {
	logger := logctx.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "running extraction tool", "tool", y.binPath, "url", req.URL)

	start := time.Now()

	// The URL goes last, after every flag.
	res, err := y.command(req).Run(context.WithoutCancel(ctx), req.URL)

	out := &Output{Duration: time.Since(start)}
	if res != nil {
		out.Stdout = res.Stdout
		out.Stderr = res.Stderr
	}

	if err != nil {
		// A process that never started or was killed by a signal has no positive exit code.
		if res != nil && res.ExitCode > 0 {
			return out, &ToolError{
				Tool:     y.binPath,
				ExitCode: res.ExitCode,
				Stderr:   res.Stderr,
				Err:      err,
			}
		}

		return out, fmt.Errorf("failed to run %s: %w", y.binPath, err)
	}

	return out, nil
}
