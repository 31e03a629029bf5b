package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the name of the rotating log file inside the log directory.
const LogFileName = "riskquant.log"

// Options controls the global logger.
type Options struct {
	Verbose bool
	// Dir overrides LOGS_FOLDER and the binary-relative default.
	Dir string
	// Console is the human-readable sink. Defaults to os.Stderr.
	Console io.Writer
}

// Init installs the global logger with two sinks: a console writer and a
// rotating file. The returned closer flushes and closes the file sink.
func Init(opts Options) (io.Closer, error) {
	// LOGS_FOLDER may live in the binary-relative .env; Init runs before config.Load.
	exePath, exeErr := os.Executable()
	if exeErr == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	noColor := true
	if f, ok := console.(*os.File); ok {
		noColor = !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}

	logDir := ResolveDir(opts.Dir, exePath, exeErr)
	if err := ensureWritable(logDir); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    16, // megabytes
		MaxBackups: 32,
		MaxAge:     365, // days
		Compress:   true,
	}

	multi := zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Logger()

	return fileWriter, nil
}

// ResolveDir picks the log directory: explicit dir, then LOGS_FOLDER, then
// logs/ next to the binary, then ./logs.
func ResolveDir(dir, exePath string, exeErr error) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv("LOGS_FOLDER"); env != "" {
		return env
	}
	if exeErr == nil && exePath != "" {
		return filepath.Join(filepath.Dir(exePath), "logs")
	}
	return "logs"
}

func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}

	// MkdirAll succeeds on read-only mounts that already exist.
	probe := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
		return fmt.Errorf("log directory %q is not writable: %w", dir, err)
	}
	_ = os.Remove(probe)
	return nil
}
