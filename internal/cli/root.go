// Package cli implements the munch command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/munchify/internal/apiclient"
	"github.com/xenking/munchify/internal/domain/catalog"
	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/kv"
	"github.com/xenking/munchify/internal/storefront"
)

// env is the state shared by every command, built before the command runs.
type env struct {
	cfg   *Config
	lg    *zap.Logger
	store *storefront.Store
}

// commandError marks failures of the command itself, rendered for the user.
type commandError struct{ err error }

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

func fail(err error) error {
	if err == nil {
		return nil
	}
	return &commandError{err: err}
}

// newRoot builds the command tree over e. The caller closes e.
func newRoot(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "munch",
		Short:         "Order food from the Munchify menu",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("api-url", "", "Backend base URL (MUNCH_API_URL)")
	pf.String("state-file", "", "Session file (MUNCH_STATE_FILE)")
	pf.String("menu-file", "", "Menu JSON overriding the built-in menu (MUNCH_MENU_FILE)")
	pf.String("log-level", "", "Log level (MUNCH_LOG_LEVEL)")

	root.AddCommand(
		newShellCmd(e),
		newMenuCmd(e),
		newLoginCmd(e),
		newSignupCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newOrdersCmd(e),
		newAccountCmd(e),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	e := &env{}
	defer e.close()

	root := newRoot(e)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var cmdErr *commandError
		if errors.As(err, &cmdErr) {
			_, _ = fmt.Fprintf(root.ErrOrStderr(), "error: %s\n", failure.Message(cmdErr.err))
		} else {
			_, _ = fmt.Fprintf(root.ErrOrStderr(), "error: %s\n", err)
		}
		return 1
	}
	return 0
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"api-url":    &cfg.APIURL,
		"state-file": &cfg.StateFile,
		"menu-file":  &cfg.MenuFile,
		"log-level":  &cfg.LogLevel,
	} {
		if flags.Changed(name) {
			if *dst, err = flags.GetString(name); err != nil {
				return errors.Wrapf(err, "flag %s", name)
			}
		}
	}
	e.cfg = cfg

	lg, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	e.lg = lg
	cmd.SetContext(zctx.Base(cmd.Context(), lg))

	cat, err := loadCatalog(cfg.MenuFile)
	if err != nil {
		return err
	}

	path := cfg.StateFile
	if path == "" {
		if path, err = kv.DefaultPath(); err != nil {
			return errors.Wrap(err, "session file")
		}
	}

	client, err := apiclient.New(cfg.APIURL, apiclient.WithTimeout(cfg.Timeout))
	if err != nil {
		return errors.Wrap(err, "api client")
	}

	store, err := storefront.New(cat, kv.NewFile(path), client, lg, storefront.Config{
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		return err
	}
	e.store = store
	lg.Debug("Ready",
		zap.String("api", cfg.APIURL),
		zap.String("session", path),
		zap.Int("menu_items", cat.Len()),
	)
	return nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	if e.lg != nil {
		_ = e.lg.Sync()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	lg, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return lg, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Open(path)
}
