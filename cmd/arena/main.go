package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/png"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bodgit/arena"
	"github.com/bodgit/arena/cfa"
	"github.com/bodgit/arena/internal/cliconfig"
	"github.com/bodgit/arena/palette"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func settings(c *cli.Context) (cliconfig.Config, *log.Logger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return cliconfig.Config{}, nil, err
	}
	cfg := cliconfig.DefaultConfig(cwd)

	fc, err := cliconfig.LoadFileConfig(c.String("config"))
	if err != nil {
		return cfg, nil, err
	}

	changed := make(map[string]bool)
	for _, name := range []string{"db", "palette", "workers", "verbose"} {
		changed[name] = c.IsSet(name)
	}
	fc.Apply(&cfg, changed)

	if changed["db"] {
		cfg.DB = c.String("db")
	}
	if changed["palette"] {
		cfg.Palette = c.String("palette")
	}
	if changed["workers"] {
		cfg.Workers = c.Int("workers")
	}
	if changed["verbose"] {
		cfg.Verbose = c.Bool("verbose")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	logger := log.New(io.Discard, "", 0)
	if cfg.Verbose {
		logger.SetOutput(os.Stderr)
	}

	return cfg, logger, nil
}

func loadPalette(file string) (color.Palette, error) {
	if file == "" {
		return palette.Grayscale(), nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return palette.Decode(f)
}

func loadAnimation(file string) (*cfa.File, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	f, err := cfa.Load(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return f, nil
}

func info(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	for _, file := range c.Args().Slice() {
		f, err := loadAnimation(file)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		fmt.Printf("%s: %d frames, %dx%d, offset (%d, %d), %d bits per pixel\n", file, f.Len(), f.Width(), f.Height(), f.XOffset(), f.YOffset(), f.BitWidth())
	}

	return nil
}

func export(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, logger, err := settings(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	p, err := loadPalette(cfg.Palette)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	file, dir := c.Args().Get(0), c.Args().Get(1)
	f, err := loadAnimation(file)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	// Keep the palette with the frames so they can be imported again
	col := filepath.Join(dir, base+".COL")
	if err := writePalette(col, p); err != nil {
		return cli.NewExitError(err, 1)
	}
	logger.Printf("Wrote \"%s\"\n", col)

	for i := 0; i < f.Len(); i++ {
		frame, err := f.Frame(i)
		if err != nil {
			return cli.NewExitError(err, 1)
		}

		out := filepath.Join(dir, fmt.Sprintf("%s_%03d.png", base, i))
		w, err := os.Create(out)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		if err := png.Encode(w, frame.Paletted(p)); err != nil {
			w.Close()
			return cli.NewExitError(err, 1)
		}
		if err := w.Close(); err != nil {
			return cli.NewExitError(err, 1)
		}
		logger.Printf("Wrote \"%s\"\n", out)
	}

	return nil
}

func writePalette(file string, p color.Palette) error {
	w, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := palette.Encode(w, p); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func readImage(file string, p color.Palette) (*image.Paletted, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	if pm, ok := m.(*image.Paletted); ok {
		return pm, nil
	}

	b := m.Bounds()
	pm := image.NewPaletted(b, p)
	draw.Draw(pm, b, m, b.Min, draw.Src)
	return pm, nil
}

func importFrames(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, logger, err := settings(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	p, err := loadPalette(cfg.Palette)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	var frames []*image.Paletted
	for _, file := range c.Args().Tail() {
		m, err := readImage(file, p)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		frames = append(frames, m)
	}

	out := c.Args().First()
	w, err := os.Create(out)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := cfa.Encode(w, frames, c.Int("x-offset"), c.Int("y-offset")); err != nil {
		w.Close()
		return cli.NewExitError(err, 1)
	}
	if err := w.Close(); err != nil {
		return cli.NewExitError(err, 1)
	}
	logger.Printf("Wrote %d frames to \"%s\"\n", len(frames), out)

	return nil
}

func withArena(c *cli.Context, fn func(*arena.Arena) error) error {
	cfg, logger, err := settings(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	db, err := arena.NewAssetDB(cfg.DB)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	if err := fn(arena.New(db, logger, cfg.Workers)); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func scan(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	return withArena(c, func(a *arena.Arena) error {
		return a.Scan(c.Args().First())
	})
}

func watch(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return withArena(c, func(a *arena.Arena) error {
		return a.Watch(ctx, c.Args().First())
	})
}

func list(c *cli.Context) error {
	cfg, _, err := settings(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	db, err := arena.NewAssetDB(cfg.DB)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	assets, err := db.List()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	for _, a := range assets {
		fmt.Printf("%-16s %3d frames %4dx%-4d (%d, %d) %d bpp %s\n", a.Name, a.Config.Frames, a.Config.Width, a.Config.Height, a.Config.XOffset, a.Config.YOffset, a.Config.BitWidth, a.SHA1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "arena"
	app.Usage = "The Elder Scrolls: Arena animation utility"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"ARENA_DB"},
			Usage:   "path to database",
		},
		&cli.StringFlag{
			Name:  "config",
			Value: cliconfig.DefaultConfigPath(),
			Usage: "path to configuration file",
		},
		&cli.StringFlag{
			Name:  "palette",
			Usage: "COL or VGA palette used to render frames",
		},
		&cli.IntFlag{
			Name:  "workers",
			Value: 10,
			Usage: "number of files to decode concurrently",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "info",
			Usage:     "Show the geometry of CFA files",
			ArgsUsage: "FILE...",
			Action:    info,
		},
		{
			Name:      "export",
			Usage:     "Write each frame of a CFA file as a PNG, along with its palette",
			ArgsUsage: "FILE DIRECTORY",
			Action:    export,
		},
		{
			Name:      "import",
			Usage:     "Build a CFA file from a sequence of images",
			ArgsUsage: "OUTPUT IMAGE...",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "x-offset",
					Usage: "horizontal anchor",
				},
				&cli.IntFlag{
					Name:  "y-offset",
					Usage: "vertical anchor",
				},
			},
			Action: importFrames,
		},
		{
			Name:      "scan",
			Usage:     "Scan filesystem and catalogue animations",
			ArgsUsage: "DIRECTORY",
			Action:    scan,
		},
		{
			Name:      "watch",
			Usage:     "Catalogue animations as they change",
			ArgsUsage: "DIRECTORY",
			Action:    watch,
		},
		{
			Name:   "list",
			Usage:  "List catalogued animations",
			Action: list,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
