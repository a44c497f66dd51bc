package commands

import (
	"time"

	"hrpull/internal/notify"
	configlibsql "hrpull/lib/configuration/libsql"
)

// Config is read from hrpull.json5 (and hrpull.local.json5) in the working
// directory, then from the environment. Flags override both.
type Config struct {
	BaseUrl       string `json:"base_url" env:"HRPULL_BASE_URL"`
	OutputPath    string `json:"output_path" env:"HRPULL_OUTPUT_PATH"`
	PositionsFile string `json:"positions_file" env:"HRPULL_POSITIONS_FILE"`

	Browser struct {
		Bin         string `json:"bin" env:"HRPULL_BROWSER_BIN"`
		DownloadDir string `json:"download_dir" env:"HRPULL_DOWNLOAD_DIR"`
	} `json:"browser"`

	Timeouts struct {
		StartupSeconds   int `json:"startup_seconds" env:"HRPULL_STARTUP_TIMEOUT"`
		OperationSeconds int `json:"operation_seconds" env:"HRPULL_OPERATION_TIMEOUT"`
		DocumentSeconds  int `json:"document_seconds" env:"HRPULL_DOCUMENT_TIMEOUT"`
	} `json:"timeouts"`

	// HttpTraceDir receives a dump of every document request when set.
	HttpTraceDir string `json:"http_trace_dir" env:"HRPULL_HTTP_TRACE_DIR"`

	Smtp     notify.SmtpConfig   `json:"smtp"`
	Database configlibsql.Struct `json:"database"`
}

func defaultConfig() Config {
	cfg := Config{
		BaseUrl:    "https://searchjobs.dartmouth.edu",
		OutputPath: "positions",
	}
	cfg.Timeouts.StartupSeconds = 300
	cfg.Timeouts.OperationSeconds = 300
	cfg.Timeouts.DocumentSeconds = 300
	return cfg
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
