package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/marmos91/dittolpd/pkg/api"
)

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print the bcrypt hash of a password for api.auth.password_hash",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "password",
				Usage: "Password to hash (read from stdin when empty)",
			},
		},
		Action: func(c *cli.Context) error {
			password := c.String("password")
			if password == "" {
				line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
				if err != nil && line == "" {
					return cli.Exit("no password on stdin", 1)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := api.HashPassword(password)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprintln(c.App.Writer, hash)
			return nil
		},
	}
}
