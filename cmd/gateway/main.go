// gateway verifies issuer tokens locally and proxies authenticated
// requests to an upstream service.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/tokentrust/internal/gateway/app"
)

func main() {
	fs := pflag.NewFlagSet("gateway", pflag.ContinueOnError)
	fs.String("config", "", "YAML config file (env: CONFIG_FILE)")
	fs.Int("port", 0, "HTTP listen port (env: PORT)")
	fs.String("log-level", "", "debug, info, warn or error (env: LOG_LEVEL)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if *showVersion {
		fmt.Println(app.BuildVersion)
		return
	}

	cfg, err := app.LoadConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := app.New(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
