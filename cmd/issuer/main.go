// issuer signs RS256 access and refresh tokens and publishes the public key.
//
// Usage:
//
//	issuer [serve] [--config file] [--port n] [--log-level level]
//	issuer genkey [--bits n] [--out file]
//	issuer hash-password [--pepper file]
//
// Everything else is configured through the environment; see
// internal/issuer/app.Config.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/app"
	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(args)
	case "genkey":
		return genkey(args, stdout)
	case "hash-password":
		return hashPassword(args, stdin, stdout)
	case "version":
		fmt.Fprintln(stdout, app.BuildVersion)
		return nil
	default:
		return fmt.Errorf("unknown command %q (want serve, genkey, hash-password or version)", cmd)
	}
}

func serve(args []string) error {
	fs := pflag.NewFlagSet("issuer serve", pflag.ContinueOnError)
	fs.String("config", "", "YAML config file (env: CONFIG_FILE)")
	fs.Int("port", 0, "HTTP listen port (env: PORT)")
	fs.String("log-level", "", "debug, info, warn or error (env: LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig(fs)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.Run()
}

func genkey(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("issuer genkey", pflag.ContinueOnError)
	bits := fs.Int("bits", jwtx.DefaultRSABits, "RSA key size")
	out := fs.StringP("out", "o", "", "write the PKCS8 PEM here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pemKey, err := cryptox.GenerateRSAKey(*bits, cryptox.PKCS8)
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = stdout.Write(pemKey)
		return err
	}
	return os.WriteFile(*out, pemKey, 0o600)
}

// hashPassword reads a password from the first line of stdin and prints an
// Argon2id hash for the users file.
func hashPassword(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet("issuer hash-password", pflag.ContinueOnError)
	pepper := fs.String("pepper", "pepper", "pepper file shared with the issuer (env: AUTH_PEPPER_FILE)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if env := os.Getenv("AUTH_PEPPER_FILE"); env != "" && !fs.Changed("pepper") {
		*pepper = env
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}

	cryptox.SetPepperPath(*pepper)
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, hash)
	return err
}
