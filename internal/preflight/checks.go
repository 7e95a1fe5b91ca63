package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"murmur/internal/config"
	"murmur/internal/deps"
	"murmur/internal/store"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckModelFile verifies that a model file exists, is readable and is not empty.
func CheckModelFile(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, humanize.IBytes(uint64(info.Size())))}
}

// CheckModelPath verifies the transcription model, which is either a single
// weights file or a model directory such as a CTranslate2 export.
func CheckModelPath(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return CheckModelFile(name, path)
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: read dir: %v)", path, err)}
	}
	if len(entries) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty directory)", path)}
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if fi, err := entry.Info(); err == nil {
			total += fi.Size()
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (directory, %d entries, %s)", path, len(entries), humanize.IBytes(uint64(total)))}
}

// CheckSystemDeps evaluates the external executables murmur invokes. Both
// serve and the CLI status command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "uvx",
			Command:     cfg.UVXBinary(),
			Description: "Required for WhisperX-driven transcription",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Converts non-WAV media to 16 kHz mono PCM",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Selects the audio stream to convert",
		},
	})
}

// CheckDatabase opens the transcript store and pings it.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Database"
	st, err := store.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.DatabasePath(), err)}
	}
	defer st.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", st.Path(), err)}
	}
	count, err := st.Count(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", st.Path(), err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s entries)", st.Path(), humanize.Comma(int64(count)))}
}

// ServerProbe reports whether an API server answers on the configured bind.
type ServerProbe struct {
	Running    bool
	Address    string
	Model      string
	ActiveJobs int
	Detail     string
}

// ProbeServer queries /healthz on bind. A refused connection is reported as
// not running rather than as an error.
func ProbeServer(ctx context.Context, bind string) ServerProbe {
	bind = strings.TrimSpace(bind)
	probe := ServerProbe{Address: bind}
	if bind == "" {
		probe.Detail = "no bind address configured"
		return probe
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, "http://"+bind+"/healthz", nil)
	if err != nil {
		probe.Detail = err.Error()
		return probe
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		probe.Detail = "not running"
		return probe
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		probe.Detail = fmt.Sprintf("health check failed (%d)", resp.StatusCode)
		return probe
	}

	var health struct {
		Status     string `json:"status"`
		ActiveJobs int    `json:"active_jobs"`
		Model      string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		probe.Detail = fmt.Sprintf("invalid health response: %v", err)
		return probe
	}
	probe.Running = true
	probe.Model = health.Model
	probe.ActiveJobs = health.ActiveJobs
	probe.Detail = health.Status
	return probe
}

// Summary renders a display-friendly line for status output.
func (p ServerProbe) Summary() string {
	if !p.Running {
		return p.Detail
	}
	return fmt.Sprintf("%s on %s, %d active jobs (%s)", p.Detail, p.Address, p.ActiveJobs, p.Model)
}
