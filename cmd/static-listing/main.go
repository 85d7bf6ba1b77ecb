package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sermuns/static-listing/internal/builder"
	"github.com/sermuns/static-listing/internal/config"
	"github.com/sermuns/static-listing/internal/filesystem"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build information (set by linker flags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	var usageErr *config.UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		return 1
	}

	if cfg.ShowVersion {
		printVersion()
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Level())
	defer logger.Sync()

	b, err := builder.New(cfg, filesystem.NewOS(logger), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to create builder: %v\n", err)
		return 1
	}
	defer b.Close()

	summary, err := b.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Build failed: %v\n", err)
		return 1
	}

	fmt.Println(summary)
	return 0
}

func printVersion() {
	fmt.Println()
	fmt.Println("📁 static-listing - Static directory listing generator")
	fmt.Printf("📦 Version: %s\n", version)
	if commit != "unknown" {
		fmt.Printf("🔗 Commit: %s\n", commit)
	}
	if date != "unknown" {
		fmt.Printf("📅 Built: %s\n", date)
	}
	fmt.Println()
}

// newLogger writes human readable logs to stderr so stdout only carries the summary.
func newLogger(level zapcore.Level) *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}
