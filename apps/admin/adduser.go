package main

import (
	"context"
	"fmt"

	"github.com/smkgaleri/galeri/core/user"
)

// addUser creates a claimed, active user; the password policy applies.
func (cli *commandLine) addUser(nu user.NewUser) (user.User, error) {
	ctx := context.Background()
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return user.User{}, err
	}
	fmt.Fprintf(cli.out, "%s %q created (id: %s)\n", usr.Role, usr.Email, usr.ID)
	return usr, nil
}
