package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/uptrace/bun"
	"golang.org/x/term"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/app"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/db"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *bun.DB
	usrSvc user.Service
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate                                   - create missing tables and indexes")
	fmt.Fprintln(cli.out, "  createadmin -username USERNAME -email EMAIL - create or promote a staff user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL    - reset user's password")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if err := db.RunMigrations(ctx, cli.db, app.Models()...); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "migrations applied")
		return nil

	case "createadmin":
		fs := cli.flagSet("createadmin")
		username := fs.String("username", "", "The admin's username. The password will be prompted next.")
		email := fs.String("email", "", "The admin's email address.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *username == "" || *email == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			fs.Usage()
			return errHelp
		}
		return cli.createAdmin(ctx, *username, *email, pwd)

	case "resetpassword":
		fs := cli.flagSet("resetpassword")
		username := fs.String("username", "", "The user's username or email. The password will be prompted next.")
		if err := fs.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *username == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			fs.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *username, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
