// Command uetex exports, injects and validates Unreal Engine textures.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/goopsie/uetextools/pkg/texconv"
	"github.com/goopsie/uetextools/pkg/version"
)

type app struct {
	cfg     Config
	version version.Info
	verbose bool
	logger  *slog.Logger
	conv    *texconv.Exec
}

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newApp().RunContext(ctx, args)
}

// setup merges config.json with the flags. It runs as each command's
// Before hook so command flags are parsed by then.
func (a *app) setup(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	cfg.applyFlags(c)
	if err := cfg.validate(); err != nil {
		return err
	}
	v, err := version.Parse(cfg.Version)
	if err != nil {
		return err
	}
	a.cfg, a.version = cfg, v
	a.verbose = c.Bool("verbose")

	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	a.conv = texconv.New(
		texconv.WithTexconv(cfg.Texconv),
		texconv.WithTexassemble(cfg.Texassemble),
		texconv.WithLogger(a.logger),
	)
	a.logger.Debug("config", "version", v, "save_folder", cfg.SaveFolder, "workers", cfg.Workers)
	return nil
}

type modeFunc func(c *cli.Context) (jobFunc, error)

// action expands the arguments into jobs and runs mode over them.
func (a *app) action(mode modeFunc, inject bool, exts []string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return errors.New("specify a file or folder")
		}
		texture := c.Args().Get(1)
		if inject && texture == "" {
			return errors.New("specify a texture file")
		}
		fn, err := mode(c)
		if err != nil {
			return err
		}
		jobs, err := expandJobs(c.Args().First(), texture, inject, exts)
		if err != nil {
			return err
		}
		if inject {
			jobs = slices.DeleteFunc(jobs, func(j job) bool { return j.Texture == "" })
		}
		if len(jobs) == 0 {
			return errors.New("no files found")
		}

		start := time.Now()
		a.logger.Info("start", "mode", c.Command.Name, "version", a.version, "files", len(jobs))
		n, err := runJobs(c.Context, jobs, a.cfg.Workers, fn)
		if err != nil {
			return err
		}
		a.logger.Info("success", "mode", c.Command.Name, "files", n, "elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	}
}

func newApp() *cli.App {
	a := &app{}
	texconvFlags := []cli.Flag{
		&cli.BoolFlag{Name: "invert-normals", Usage: "flip the green channel of normal maps"},
		&cli.StringFlag{Name: "cubemap-layout", Value: "h-cross", Usage: strings.Join(texconv.CubemapLayouts, ", ")},
	}
	sourceFlag := &cli.StringFlag{Name: "package-source", Usage: "rewrite the package source: official or mod"}
	uassetExts := []string{".uasset"}

	command := func(name, usage string, mode modeFunc, inject bool, exts []string, flags ...cli.Flag) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "<file|folder|list.txt>",
			Flags:     flags,
			Before:    a.setup,
			Action:    a.action(mode, inject, exts),
		}
	}

	inject := command("inject", "inject a dds or image into a texture asset", a.inject, true, uassetExts,
		append([]cli.Flag{
			&cli.BoolFlag{Name: "force-uncompressed", Usage: "switch BC1, BC6 and BC7 textures to an uncompressed format"},
			&cli.BoolFlag{Name: "no-mipmaps", Usage: "keep only the largest mip"},
			sourceFlag,
		}, texconvFlags...)...)
	inject.ArgsUsage = "<uasset|folder|list.txt> [texture|folder]"

	return &cli.App{
		Name:                 "uetex",
		Usage:                "Unreal Engine texture tools",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: defaultConfigPath(), Usage: "path to config.json", EnvVars: []string{"UETEX_CONFIG"}},
			&cli.StringFlag{Name: "version", Aliases: []string{"v"}, Usage: "UE version (" + strings.Join(version.Supported(), ", ") + ")", EnvVars: []string{"UETEX_VERSION"}},
			&cli.StringFlag{Name: "save-folder", Aliases: []string{"o"}, Usage: "output folder"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: "files processed in parallel"},
			&cli.StringFlag{Name: "texconv", Usage: "path to texconv", EnvVars: []string{"TEXCONV"}},
			&cli.StringFlag{Name: "texassemble", Usage: "path to texassemble", EnvVars: []string{"TEXASSEMBLE"}},
			&cli.StringFlag{Name: "image-filter", Usage: "texconv resize filter"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every parsed field"},
		},
		Commands: []*cli.Command{
			command("parse", "dump a uasset or dds", a.parse, false, []string{".uasset", ".dds"}),
			command("valid", "check that files are rewritten byte for byte", a.valid, false, uassetExts),
			command("export", "export textures as dds or images", a.export, false, uassetExts,
				append([]cli.Flag{
					&cli.StringFlag{Name: "export-as", Usage: strings.Join(exportFormats, ", ")},
					&cli.BoolFlag{Name: "no-mipmaps", Usage: "export only the largest mip"},
					&cli.BoolFlag{Name: "compress", Usage: "write .dds.zst"},
				}, texconvFlags...)...),
			inject,
			command("remove-mipmaps", "remove all mips but the largest", a.removeMipmaps, false, uassetExts),
			command("check", "report the pixel format and the versions that can handle an asset", a.check, false, uassetExts),
			command("convert", "convert between image formats with texconv", a.convert, false, textureExts,
				append([]cli.Flag{
					&cli.StringFlag{Name: "convert-to", Value: "tga", Usage: "tga, hdr, png, jpg, bmp or a DXGI format such as BC1_UNORM"},
					&cli.BoolFlag{Name: "no-mipmaps", Usage: "generate no mips when converting to dds"},
				}, texconvFlags...)...),
			command("copy", "re-save packages to the output folder", a.copyPackage, false, uassetExts, sourceFlag),
		},
	}
}
