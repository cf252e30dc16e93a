// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/bvk/replicon/iifl"
	"github.com/bvk/replicon/server"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type IIFL struct {
	dataDir string

	baseURL    string
	vendorKey  string
	vendorCode string
}

func (c *IIFL) Purpose() string {
	return "Setup configures the brokerage api access keys"
}

func (c *IIFL) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("iifl", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.baseURL, "base-url", "https://dataservice.iifl.in/openapi/prod", "base url of the brokerage api endpoint")
	fset.StringVar(&c.vendorKey, "vendor-key", "", "vendor api key issued by the brokerage")
	fset.StringVar(&c.vendorCode, "vendor-code", "", "vendor code issued by the brokerage")
	return "iifl", fset, cli.CmdFunc(c.run)
}

func (c *IIFL) CommandHelp() string {
	return `

Command "iifl" stores the brokerage vendor keys in the secrets file. The
vendor secret is read from the terminal so that it doesn't end up in the
shell history:

  $ replicon setup iifl --vendor-key=USCJS2...TVP4KV --vendor-code=VENDOR1

`
}

func (c *IIFL) run(ctx context.Context, args []string) error {
	if len(c.vendorKey) == 0 || len(c.vendorCode) == 0 {
		return fmt.Errorf("vendor-key and vendor-code flags are required")
	}

	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".replicon")
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	secretsPath := filepath.Join(dataDir, "secrets.json")
	secrets, err := server.SecretsFromFile(secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if secrets == nil {
		secrets = &server.Secrets{}
	}

	fmt.Fprintf(os.Stderr, "Vendor secret: ")
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("could not read the vendor secret: %w", err)
	}

	secrets.IIFL = &iifl.Credentials{
		BaseURL:      c.baseURL,
		VendorKey:    c.vendorKey,
		VendorCode:   c.vendorCode,
		VendorSecret: string(data),
	}
	if err := secrets.Check(); err != nil {
		return err
	}

	js, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(secretsPath, js, os.FileMode(0600)); err != nil {
		return err
	}
	return nil
}
