package main

import (
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apppkg "github.com/kk-code-lab/mill/internal/app"
	"github.com/kk-code-lab/mill/internal/config"
	"github.com/kk-code-lab/mill/internal/logging"
	"github.com/kk-code-lab/mill/internal/shellsetup"
)

func main() {
	// Set UTF-8 as fallback encoding so non-ASCII names display correctly
	tcell.SetEncodingFallback(tcell.EncodingFallbackUTF8)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mill:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "mill [DIR]",
		Short:         "Three-column terminal file navigator",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			return run(cfg, start)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "setup [SHELL]",
		Short: "Print the shell function that lets mill change your directory on exit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := ""
			if len(args) == 1 {
				shell = args[0]
			}
			return shellsetup.Write(cmd.OutOrStdout(), shell, shellsetup.Config{})
		},
	})

	return root
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) (config.Config, error) {
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return config.Config{}, err
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ReadFile(v, path); err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

func run(cfg config.Config, start string) error {
	logger, err := logging.New(cfg.Log.Dir, logging.ParseLevel(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() {
		_ = logger.Close()
	}()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.EnableMouse()

	app, err := apppkg.NewApplication(screen, apppkg.Options{Config: cfg, Logger: logger, StartDir: start})
	if err != nil {
		screen.Fini()
		return err
	}

	app.Run()
	closeErr := app.Close()
	screen.Fini()
	if closeErr != nil {
		logger.Warn("cleanup failed", "err", closeErr)
	}

	// Hand the directory to the shell wrapper; the PID keeps concurrent
	// instances apart.
	if path := app.GetCurrentPath(); path != "" {
		resultFile := shellsetup.ResultFile(os.Getpid())
		if err := os.WriteFile(resultFile, []byte(path), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not write result file: %v\n", err)
		}
	}
	return nil
}
