package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/italolelis/mp3grab/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStubTool writes an executable shell script standing in for yt-dlp. The script
// records its arguments one per line in argsFile and then runs body with $out set to
// the value following -o/--output.
func writeStubTool(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("stub tool is a POSIX shell script")
	}

	dir := t.TempDir()
	bin = filepath.Join(dir, "yt-dlp")
	argsFile = filepath.Join(dir, "args.txt")

	script := fmt.Sprintf(`#!/bin/sh
printf '%%s\n' "$@" > %q
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o|--output) out="$2" ;;
  esac
  shift
done
%s
`, argsFile, body)

	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	return bin, argsFile
}

func readArgs(t *testing.T, argsFile string) []string {
	t.Helper()

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)

	return strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
}

// flagValue returns the argument following the first of names found in args.
func flagValue(args []string, names ...string) (string, bool) {
	for i, a := range args[:len(args)-1] {
		if slices.Contains(names, a) {
			return args[i+1], true
		}
	}

	return "", false
}

func TestYTDLP_Extract_Args(t *testing.T) {
	const url = "https://example.com/watch?v=1"

	tests := []struct {
		name        string
		cookiesPath string
	}{
		{name: "without cookies"},
		{name: "with cookies", cookiesPath: "/etc/mp3grab/cookies.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, argsFile := writeStubTool(t, `printf 'ID3' > "$out"`)
			out := filepath.Join(t.TempDir(), "downloaded.mp3")

			_, err := NewYTDLP(bin).Extract(context.Background(), Request{URL: url, OutputPath: out, CookiesPath: tt.cookiesPath})
			require.NoError(t, err)

			args := readArgs(t, argsFile)
			assert.Equal(t, url, args[len(args)-1], "url must be the last argument")
			assert.True(t, slices.Contains(args, "-x") || slices.Contains(args, "--extract-audio"))

			format, ok := flagValue(args, "--audio-format")
			require.True(t, ok)
			assert.Equal(t, "mp3", format)

			output, ok := flagValue(args, "-o", "--output")
			require.True(t, ok)
			assert.Equal(t, out, output)

			cookies, ok := flagValue(args, "--cookies")
			if tt.cookiesPath == "" {
				assert.False(t, ok)
			} else {
				assert.Equal(t, tt.cookiesPath, cookies)
			}
		})
	}
}

func TestYTDLP_Extract_Success(t *testing.T) {
	bin, _ := writeStubTool(t, `printf 'ID3-audio-bytes' > "$out"
echo "[ExtractAudio] Destination: $out"
echo "WARNING: falling back to generic extractor" >&2
exit 0`)

	out := filepath.Join(t.TempDir(), "downloaded.mp3")
	req := Request{URL: "https://example.com/track", OutputPath: out, CookiesPath: "/secrets/cookies.txt"}

	res, err := NewYTDLP(bin).Extract(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, res.Stdout, "[ExtractAudio] Destination: "+out)
	assert.Contains(t, res.Stderr, "WARNING: falling back")
	assert.True(t, res.Duration > 0)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio-bytes", string(data))
}

func TestYTDLP_Extract_OutlivesCancelledContext(t *testing.T) {
	bin, _ := writeStubTool(t, `sleep 0.2
printf 'ID3' > "$out"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "downloaded.mp3")

	_, err := NewYTDLP(bin).Extract(ctx, Request{URL: "https://example.com/x", OutputPath: out})
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestYTDLP_Extract_NonZeroExit(t *testing.T) {
	bin, _ := writeStubTool(t, `printf 'boom' >&2
exit 3`)

	res, err := NewYTDLP(bin).Extract(context.Background(), Request{URL: "https://example.com/x", OutputPath: filepath.Join(t.TempDir(), "downloaded.mp3")})
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Equal(t, "boom", toolErr.Stderr)
	assert.Equal(t, bin, toolErr.Tool)
	assert.Equal(t, "boom", res.Stderr)
	assert.Equal(t, telemetry.StatusToolError, Classify(err))
}

func TestYTDLP_Extract_MissingBinary(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := NewYTDLP(bin).Extract(context.Background(), Request{URL: "https://example.com/x", OutputPath: "out.mp3"})
	require.Error(t, err)

	var toolErr *ToolError
	assert.False(t, errors.As(err, &toolErr), "a tool that never started is not a tool failure")
	assert.Equal(t, telemetry.StatusError, Classify(err))
}

func TestToolError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ToolError{Tool: "yt-dlp", ExitCode: 1, Stderr: "ERROR: Unsupported URL", Err: cause}

	assert.Equal(t, "yt-dlp exited with code 1", err.Error())
	assert.ErrorIs(t, fmt.Errorf("extract: %w", err), cause)
}

type fakeExtractor struct {
	out *Output
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, req Request) (*Output, error) {
	return f.out, f.err
}

func TestInstrumentedExtractor_Delegates(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	want := &Output{Stdout: "ok"}
	ie := NewInstrumentedExtractor(&fakeExtractor{out: want}, tel, "yt-dlp")

	got, err := ie.Extract(context.Background(), Request{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Same(t, want, got)

	toolErr := &ToolError{Tool: "yt-dlp", ExitCode: 1, Stderr: "boom"}
	ie = NewInstrumentedExtractor(&fakeExtractor{out: &Output{Stderr: "boom"}, err: toolErr}, tel, "yt-dlp")

	got, err = ie.Extract(context.Background(), Request{URL: "https://example.com"})
	assert.ErrorIs(t, err, toolErr)
	assert.Equal(t, "boom", got.Stderr)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, telemetry.StatusSuccess, Classify(nil))
	assert.Equal(t, telemetry.StatusToolError, Classify(fmt.Errorf("wrapped: %w", &ToolError{})))
	assert.Equal(t, telemetry.StatusError, Classify(errors.New("permission denied")))
}
