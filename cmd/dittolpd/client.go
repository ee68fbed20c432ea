package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/marmos91/dittolpd/pkg/client"
)

var clientFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "host",
		Aliases: []string{"H"},
		Usage:   "Daemon address, host[:port]",
		Value:   "localhost",
		EnvVars: []string{"LPD_HOST"},
	},
	&cli.StringFlag{
		Name:    "queue",
		Aliases: []string{"P"},
		Usage:   "Print queue",
		Value:   "lp",
		EnvVars: []string{"PRINTER"},
	},
	&cli.StringFlag{
		Name:    "user",
		Aliases: []string{"U"},
		Usage:   "User name sent to the daemon (default: $USER)",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "Timeout of one exchange",
		Value: client.DefaultTimeout,
	},
}

func newClient(c *cli.Context) (*client.Client, error) {
	return client.New(client.Config{
		Address: c.String("host"),
		User:    c.String("user"),
		Timeout: c.Duration("timeout"),
	})
}

func lprCommand() *cli.Command {
	return &cli.Command{
		Name:      "lpr",
		Usage:     "Submit files as one print job (stdin without files)",
		ArgsUsage: "[file...]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"T"}, Usage: "Title for pr formatting"},
			&cli.StringFlag{Name: "job-name", Aliases: []string{"J"}, Usage: "Job name on the banner page"},
			&cli.StringFlag{Name: "class", Aliases: []string{"C"}, Usage: "Class name on the banner page"},
			&cli.BoolFlag{Name: "banner", Usage: "Request a banner page"},
			&cli.StringFlag{Name: "format", Usage: "Print format letter (l, f, p, o, ...)", Value: "l"},
			&cli.StringSliceFlag{Name: "option", Aliases: []string{"o"}, Usage: "Extension option key=value"},
			&cli.BoolFlag{Name: "data-first", Usage: "Send data files before the control file"},
		}, clientFlags...),
		Action: lprAction,
	}
}

func lprAction(c *cli.Context) error {
	format := c.String("format")
	if len(format) != 1 {
		return cli.Exit("--format must be a single letter", 2)
	}

	options := make(map[string]string)
	for _, opt := range c.StringSlice("option") {
		key, value, ok := strings.Cut(opt, "=")
		if !ok || key == "" {
			return cli.Exit(fmt.Sprintf("invalid option %q: expected key=value", opt), 2)
		}
		options[key] = value
	}

	job := &client.Job{
		JobName:   c.String("job-name"),
		Title:     c.String("title"),
		Class:     c.String("class"),
		Banner:    c.Bool("banner"),
		Options:   options,
		DataFirst: c.Bool("data-first"),
	}

	if c.NArg() == 0 {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		job.Files = append(job.Files, client.File{
			Name:   "stdin",
			Data:   bytes.NewReader(data),
			Size:   int64(len(data)),
			Format: format[0],
		})
	}
	for _, path := range c.Args().Slice() {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if !info.Mode().IsRegular() {
			return cli.Exit(fmt.Sprintf("%s: not a regular file", path), 1)
		}
		job.Files = append(job.Files, client.File{
			Name:   filepath.Base(path),
			Data:   f,
			Size:   info.Size(),
			Format: format[0],
		})
	}

	cl, err := newClient(c)
	if err != nil {
		return err
	}
	receipt, err := cl.Submit(c.Context, c.String("queue"), job)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Fprintf(c.App.Writer, "request id is %s-%03d (%d file(s))\n",
		c.String("queue"), receipt.Number, len(receipt.DataFiles))
	return nil
}

func lpqCommand() *cli.Command {
	return &cli.Command{
		Name:      "lpq",
		Usage:     "Show the state of a queue",
		ArgsUsage: "[job-number|user...]",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "long", Aliases: []string{"l"}, Usage: "Long listing"},
		}, clientFlags...),
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			text, err := cl.QueueState(c.Context, c.String("queue"), c.Bool("long"), c.Args().Slice()...)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprint(c.App.Writer, text)
			return nil
		},
	}
}

func lprmCommand() *cli.Command {
	return &cli.Command{
		Name:      "lprm",
		Usage:     "Remove jobs from a queue (your own jobs without arguments)",
		ArgsUsage: "[job-number|user...]",
		Flags:     clientFlags,
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			if err := cl.RemoveJobs(c.Context, c.String("queue"), c.String("user"), c.Args().Slice()...); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Ask the daemon to start printing a queue",
		Flags: clientFlags,
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			if err := cl.PrintJobs(c.Context, c.String("queue")); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
