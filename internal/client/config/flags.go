package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/flagx"
)

// parseFlags overlays cfg with the short flags it owns:
//
//	-a string   API base URL
//	-e string   environment (development|production)
//	-d string   local database path
//	-i int      storage monitor interval in seconds
//	-m string   metrics listen address (empty disables)
//
// Other arguments are left for other parsers.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-e", "-d", "-i", "-m"})

	fs := flag.NewFlagSet("edumarket", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.Environment, "e", cfg.Environment, "environment (development|production)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	interval := fs.Int("i", int(cfg.MonitorInterval.Seconds()), "storage monitor interval (in seconds)")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.MonitorInterval = time.Duration(*interval) * time.Second
		}
	})
	return nil
}
