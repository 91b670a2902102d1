package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/util/common"
	"github.com/mhsanaei/3x-ui-usage/web/entity"

	"github.com/goccy/go-json"
)

// Placeholder numbers reported when no speed-test tool produced a result.
const (
	placeholderDownload = 95.42
	placeholderUpload   = 25.31
	placeholderPing     = 15.7
)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. The process is killed when ctx is done.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// speedTool is one external measurement tool and the parser for its JSON output.
type speedTool struct {
	name  string
	args  []string
	parse func([]byte) (*entity.SpeedTestResult, error)
}

// speedtest-cli reports bits per second and milliseconds.
func parseSpeedtestCli(out []byte) (*entity.SpeedTestResult, error) {
	var data struct {
		Download *float64 `json:"download"`
		Upload   *float64 `json:"upload"`
		Ping     *float64 `json:"ping"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, err
	}
	if data.Download == nil || data.Upload == nil || data.Ping == nil {
		return nil, errors.New("speedtest-cli output is missing download, upload or ping")
	}
	return &entity.SpeedTestResult{
		Download: common.Round2(*data.Download / 1e6),
		Upload:   common.Round2(*data.Upload / 1e6),
		Ping:     common.Round2(*data.Ping),
		Success:  true,
	}, nil
}

// fast-cli already reports megabits per second.
func parseFastCli(out []byte) (*entity.SpeedTestResult, error) {
	var data struct {
		DownloadSpeed *float64 `json:"downloadSpeed"`
		UploadSpeed   float64  `json:"uploadSpeed"`
		Latency       float64  `json:"latency"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, err
	}
	if data.DownloadSpeed == nil {
		return nil, errors.New("fast output is missing downloadSpeed")
	}
	return &entity.SpeedTestResult{
		Download: common.Round2(*data.DownloadSpeed),
		Upload:   common.Round2(data.UploadSpeed),
		Ping:     common.Round2(data.Latency),
		Success:  true,
	}, nil
}

var defaultSpeedTools = []speedTool{
	{name: "speedtest-cli", args: []string{"--json"}, parse: parseSpeedtestCli},
	{name: "fast", args: []string{"--json"}, parse: parseFastCli},
}

// SpeedTestService measures the server bandwidth with the first tool that works.
type SpeedTestService struct {
	runner   CommandRunner
	timeout  time.Duration
	fallback bool
	tools    []speedTool
}

// NewSpeedTestService returns a service running each tool with the given timeout. With
// fallback enabled a failed measurement is replaced by flagged placeholder numbers.
func NewSpeedTestService(runner CommandRunner, timeout time.Duration, fallback bool) *SpeedTestService {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &SpeedTestService{
		runner:   runner,
		timeout:  timeout,
		fallback: fallback,
		tools:    defaultSpeedTools,
	}
}

// Run tries each tool in order. It returns common.ErrSpeedTestTimeout when a tool
// outlives the timeout; any other failure degrades to a result with Note set.
func (s *SpeedTestService) Run(ctx context.Context) (*entity.SpeedTestResult, error) {
	var lastErr error
	for _, tool := range s.tools {
		result, err := s.runTool(ctx, tool)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, common.ErrSpeedTestTimeout) {
			logger.Warningf("speed test with %s timed out after %s", tool.name, s.timeout)
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Infof("speed test with %s failed: %v", tool.name, err)
		lastErr = err
	}
	return s.unavailable(lastErr), nil
}

func (s *SpeedTestService) runTool(ctx context.Context, tool speedTool) (*entity.SpeedTestResult, error) {
	toolCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Run(toolCtx, tool.name, tool.args...)
	if errors.Is(toolCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, common.ErrSpeedTestTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool.name, err)
	}
	result, err := tool.parse(out)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid output: %w", tool.name, err)
	}
	return result, nil
}

func (s *SpeedTestService) unavailable(err error) *entity.SpeedTestResult {
	note := "neither speedtest-cli nor fast-cli were available"
	if err != nil {
		note = fmt.Sprintf("%s (%v)", note, err)
	}
	if !s.fallback {
		return &entity.SpeedTestResult{Success: false, Note: "Speed test unavailable - " + note}
	}
	return &entity.SpeedTestResult{
		Download: placeholderDownload,
		Upload:   placeholderUpload,
		Ping:     placeholderPing,
		Success:  true,
		Note:     "Mock data - " + note,
	}
}
