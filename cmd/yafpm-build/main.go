// Command yafpm-build builds a single package deterministically from a
// declarative build file and installs its output into a package store.
package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iohannesarnold/yafpm/internal/buildctx"
	"github.com/iohannesarnold/yafpm/internal/buildinfo"
	"github.com/iohannesarnold/yafpm/internal/log"
	"github.com/iohannesarnold/yafpm/internal/pkgconfig"
)

const defaultPackageDir = "/yafpm"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		packageDir string
		useTOML    bool
		useJSON    bool
		verbosity  int
	)

	cmd := &cobra.Command{
		Use:          "yafpm-build [-hv] [-P|--package-dir=<pkg_dir>] [--toml|--json] <file>",
		Short:        "Build a package deterministically into a content-addressed store",
		Args:         cobra.ExactArgs(1),
		Version:      buildinfo.Version(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetDefault(log.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: verbosityLevel(verbosity),
			})))

			return runBuild(args[0], packageDir, resolveFormat(useTOML, useJSON, args[0]))
		},
	}

	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase verbosity")
	cmd.Flags().StringVarP(&packageDir, "package-dir", "P", defaultPackageDir, "package store directory")
	cmd.Flags().BoolVar(&useTOML, "toml", false, "parse the build file as TOML")
	cmd.Flags().BoolVar(&useJSON, "json", false, "parse the build file as JSON")

	return cmd
}

func verbosityLevel(v int) slog.Level {
	switch {
	case v >= 2:
		return slog.LevelDebug
	case v == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func resolveFormat(useTOML, useJSON bool, file string) pkgconfig.Format {
	switch {
	case useTOML:
		return pkgconfig.FormatTOML
	case useJSON:
		return pkgconfig.FormatJSON
	default:
		return pkgconfig.FormatFromExtension(filepath.Ext(file))
	}
}

func runBuild(file, packageDir string, format pkgconfig.Format) error {
	absFile, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("unable to determine canonical path of %s: %w", file, err)
	}
	baseURL := &url.URL{Scheme: "file", Path: filepath.Dir(absFile) + "/"}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	decl, err := pkgconfig.DecodeBuild(data, format, baseURL)
	if err != nil {
		return err
	}

	b := &buildctx.BuildCtx{
		Pkg:          decl.Pkg,
		Resources:    decl.Resources,
		BuildDeps:    decl.BuildDependencies,
		BuildCmd:     decl.BuildCommand,
		BuildCmdArgs: decl.BuildCommandArgs,
		BuildEnvVars: decl.BuildEnvVars,
		Logger:       log.Default(),
	}

	if _, err := b.Exec(packageDir); err != nil {
		buildctx.PrintError(os.Stderr, decl.Pkg.Name, err)
		return err
	}
	return nil
}
