package main

import (
	"context"

	"github.com/trezcool/academia/core/user"
)

// addUser registers a new user with the given role.
func (cli *commandLine) addUser(name, email string, role user.Role, pwd string) error {
	nu := user.NewUser{
		Name:     name,
		Email:    email,
		Password: pwd,
		Role:     role,
	}
	if err := nu.Validate(cli.usrSvc); err != nil {
		return err
	}
	_, _, err := cli.usrSvc.Register(context.Background(), nu)
	return err
}
