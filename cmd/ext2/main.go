package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/weberc2/ext2/pkg/ext2"
)

// maxConcurrentReads bounds the number of files `cat` reads at once.
const maxConcurrentReads = 8

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("ext2 failed")
	}
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:        appName,
		Usage:       "read files out of an ext2 image without mounting it",
		Description: "a read-only command line ext2 interface",
		Writer:      stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "the ext2 image or block device to read",
			},
			&cli.Uint64Flag{
				Name: "offset",
				Usage: "the byte offset of the filesystem within the image, " +
					"e.g. the start of a partition",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "one of panic, fatal, error, warn, info, debug",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "either text or json",
			},
		},
		Commands: []*cli.Command{{
			Name:        "ls",
			Aliases:     []string{"list"},
			Usage:       "ls [--format text|json|yaml] [PATH]",
			Description: "list the entries of a directory",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "one of text, json, yaml",
					Value: "text",
				},
			},
			Action: withFileSystem(func(
				fs *ext2.FileSystem,
				ctx *cli.Context,
			) error {
				path := "/"
				if ctx.Args().Present() {
					path = ctx.Args().First()
				}
				listing, err := list(fs, path)
				if err != nil {
					return err
				}
				return writeListing(ctx.App.Writer, ctx.String("format"), listing)
			}),
		}, {
			Name:        "cat",
			Usage:       "cat PATH...",
			Description: "write the contents of one or more files to stdout",
			Action: withFileSystem(func(
				fs *ext2.FileSystem,
				ctx *cli.Context,
			) error {
				if !ctx.Args().Present() {
					return fmt.Errorf("cat: at least one path is required")
				}
				return cat(fs, ctx.App.Writer, ctx.Args().Slice())
			}),
		}, {
			Name:        "resolve",
			Usage:       "resolve PATH",
			Description: "print the inode number for a path",
			Action: withFileSystem(func(
				fs *ext2.FileSystem,
				ctx *cli.Context,
			) error {
				ino, err := fs.Resolve(ctx.Args().First())
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(ctx.App.Writer, ino); err != nil {
					return fmt.Errorf("writing inode number: %w", err)
				}
				return nil
			}),
		}, {
			Name:        "readlink",
			Usage:       "readlink PATH",
			Description: "print the target of a symlink",
			Action: withFileSystem(func(
				fs *ext2.FileSystem,
				ctx *cli.Context,
			) error {
				ino, err := fs.Resolve(ctx.Args().First())
				if err != nil {
					return err
				}
				target, err := fs.ReadLink(ino)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(ctx.App.Writer, target); err != nil {
					return fmt.Errorf("writing link target: %w", err)
				}
				return nil
			}),
		}},
	}
}

func withFileSystem(
	f func(*ext2.FileSystem, *cli.Context) error,
) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		config, err := LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if ctx.IsSet("image") {
			config.Image = ctx.String("image")
		}
		if ctx.IsSet("offset") {
			config.Offset = ctx.Uint64("offset")
		}
		if ctx.IsSet("log-level") {
			config.LogLevel = ctx.String("log-level")
		}
		if ctx.IsSet("log-format") {
			config.LogFormat = ctx.String("log-format")
		}
		if err := config.Validate(); err != nil {
			return err
		}
		logger := config.Logger()

		fs, err := open(config, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := fs.Close(); err != nil {
				logger.WithError(err).Warn("closing filesystem")
			}
		}()
		return f(fs, ctx)
	}
}

func open(config *Config, logger logrus.FieldLogger) (*ext2.FileSystem, error) {
	if config.Offset == 0 {
		return ext2.Open(config.Image, ext2.WithLogger(logger))
	}

	file, err := ext2.OpenFileVolume(config.Image)
	if err != nil {
		return nil, err
	}
	volume := ext2.NewOffsetVolume(file, config.Offset)
	fs, err := ext2.Mount(volume, ext2.WithLogger(logger))
	if err != nil {
		volume.Close()
		return nil, fmt.Errorf(
			"opening filesystem `%s` at offset `%d`: %w",
			config.Image,
			config.Offset,
			err,
		)
	}
	return fs, nil
}

type Listing struct {
	Name string `json:"name" yaml:"name"`
	Ino  uint32 `json:"ino"  yaml:"ino"`
	Type string `json:"type" yaml:"type"`
	Mode string `json:"mode" yaml:"mode"`
	Size uint64 `json:"size" yaml:"size"`
}

func list(fs *ext2.FileSystem, path string) ([]Listing, error) {
	ino, err := fs.Resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ListDirectory(ino)
	if err != nil {
		return nil, fmt.Errorf("listing `%s`: %w", path, err)
	}

	listing := make([]Listing, len(entries))
	for i, entry := range entries {
		inode, err := fs.Stat(entry.Ino)
		if err != nil {
			return nil, fmt.Errorf(
				"listing `%s`: entry `%s`: %w",
				path,
				entry.Name,
				err,
			)
		}
		listing[i] = Listing{
			Name: entry.Name,
			Ino:  uint32(entry.Ino),
			Type: inode.Mode.FileType.String(),
			Mode: fmt.Sprintf("%#o", inode.Mode.AccessRights),
			Size: inode.Size,
		}
	}
	return listing, nil
}

func writeListing(w io.Writer, format string, listing []Listing) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(listing); err != nil {
			return fmt.Errorf("writing JSON listing: %w", err)
		}
	case "yaml":
		data, err := yaml.Marshal(listing)
		if err != nil {
			return fmt.Errorf("marshaling listing to YAML: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing YAML listing: %w", err)
		}
	case "text":
		for _, l := range listing {
			if _, err := fmt.Fprintf(
				w,
				"%8d %-8s %5s %10d %s\n",
				l.Ino,
				l.Type,
				l.Mode,
				l.Size,
				l.Name,
			); err != nil {
				return fmt.Errorf("writing listing: %w", err)
			}
		}
	default:
		return fmt.Errorf(
			"unsupported format `%s`: wanted `text`, `json`, or `yaml`",
			format,
		)
	}
	return nil
}

// cat reads `paths` concurrently and writes their contents in argument order.
// Nothing is written unless every file was read.
func cat(fs *ext2.FileSystem, w io.Writer, paths []string) error {
	contents := make([][]byte, len(paths))
	var group errgroup.Group
	group.SetLimit(maxConcurrentReads)
	for i, path := range paths {
		group.Go(func() error {
			ino, err := fs.Resolve(path)
			if err != nil {
				return err
			}
			data, err := fs.ReadFile(ino)
			if err != nil {
				return fmt.Errorf("reading `%s`: %w", path, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, data := range contents {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing `%s`: %w", paths[i], err)
		}
	}
	return nil
}
