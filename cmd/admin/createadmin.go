package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) createAdmin(ctx context.Context, username, email, password string) error {
	usr, err := cli.usrSvc.EnsureAdmin(ctx, username, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admin %q ready (id %d)\n", usr.Username, usr.ID)
	return nil
}
