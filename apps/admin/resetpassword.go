package main

import (
	"context"

	"github.com/trezcool/academia/core"
)

// resetPassword sets a new password on the user matching email.
func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByEmail(ctx, core.CleanString(email))
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr.ID, pwd)
	return err
}
