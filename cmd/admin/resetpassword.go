package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, usernameOrEmail, password string) error {
	usr, err := cli.usrSvc.GetByLogin(ctx, usernameOrEmail)
	if err != nil {
		return err
	}
	if err := cli.usrSvc.SetPassword(ctx, usr.ID, password); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password updated for %q\n", usr.Username)
	return nil
}
