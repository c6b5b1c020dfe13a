package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

var errNotSignedIn = errors.New("not signed in; run mmk-console signin")

type signInOptions struct {
	Email    string
	Password string
	Redirect string
}

func parseSignInFlags(args []string) (signInOptions, error) {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)

	var opts signInOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (prompted when omitted)")
	fs.StringVar(&opts.Password, "password", "", "Account password (prompted when omitted)")
	fs.StringVar(&opts.Redirect, "redirect", "", "Location to open after signing in (defaults to the home page)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func runSignIn(cmdCtx *commandContext, args []string) error {
	opts, err := parseSignInFlags(args)
	if err != nil {
		return err
	}
	if opts.Email, err = cmdCtx.prompt("Email", opts.Email); err != nil {
		return err
	}
	if opts.Password, err = cmdCtx.prompt("Password", opts.Password); err != nil {
		return err
	}

	console, err := cmdCtx.open()
	if err != nil {
		return err
	}
	defer cmdCtx.closeConsole(console)

	if err := console.Session.Capability().SignIn(cmdCtx.Ctx, domainauth.SignInRequest{
		Email:    opts.Email,
		Password: opts.Password,
	}); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	target := opts.Redirect
	if target == "" {
		target = console.Config.Routes.HomePath
	}
	location, err := console.Router.Load(target)
	if err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}

	user := console.Session.Capability().User()
	return writef(cmdCtx.Out, "Signed in as %s (%s)\nLocation: %s\n", user.Email, user.Name, location)
}

type registerOptions struct {
	Email    string
	Password string
	Name     string
}

func parseRegisterFlags(args []string) (registerOptions, error) {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)

	var opts registerOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (prompted when omitted)")
	fs.StringVar(&opts.Password, "password", "", "Account password (prompted when omitted)")
	fs.StringVar(&opts.Name, "name", "", "Display name")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func runRegister(cmdCtx *commandContext, args []string) error {
	opts, err := parseRegisterFlags(args)
	if err != nil {
		return err
	}
	if opts.Email, err = cmdCtx.prompt("Email", opts.Email); err != nil {
		return err
	}
	if opts.Password, err = cmdCtx.prompt("Password", opts.Password); err != nil {
		return err
	}

	console, err := cmdCtx.open()
	if err != nil {
		return err
	}
	defer cmdCtx.closeConsole(console)

	principal, err := console.Session.Capability().Register(cmdCtx.Ctx, domainauth.RegisterRequest{
		Email:    opts.Email,
		Password: opts.Password,
		Name:     opts.Name,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return writef(cmdCtx.Out, "Registered %s (id %s). Run mmk-console signin to start a session.\n",
		principal.Email, principal.ID)
}

func runSignOut(cmdCtx *commandContext, _ []string) error {
	console, err := cmdCtx.open()
	if err != nil {
		return err
	}
	defer cmdCtx.closeConsole(console)

	if err := console.Session.Capability().SignOut(cmdCtx.Ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return writef(cmdCtx.Out, "Signed out\nLocation: %s\n", console.Router.Location())
}

func runStatus(cmdCtx *commandContext, _ []string) error {
	console, err := cmdCtx.open()
	if err != nil {
		return err
	}
	defer cmdCtx.closeConsole(console)

	capability := console.Session.Capability()
	if !capability.IsAuthenticated() {
		return writeln(cmdCtx.Out, "Not signed in")
	}

	user := capability.User()
	if err := writef(cmdCtx.Out, "Signed in as %s (%s)\nUser ID: %s\n", user.Email, user.Name, user.ID); err != nil {
		return err
	}
	if exp, ok := domainauth.TokenExpiry(capability.Token()); ok {
		state := "valid"
		if time.Now().After(exp) {
			state = "expired, renewed on next request"
		}
		return writef(cmdCtx.Out, "Token expires: %s (%s)\n", exp.Format(time.RFC3339), state)
	}
	return writeln(cmdCtx.Out, "Token expires: unknown")
}

type changePasswordOptions struct {
	Current string
	New     string
}

func runChangePassword(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)

	var opts changePasswordOptions
	fs.StringVar(&opts.Current, "current", "", "Current password (prompted when omitted)")
	fs.StringVar(&opts.New, "new", "", "New password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if opts.Current, err = cmdCtx.prompt("Current password", opts.Current); err != nil {
		return err
	}
	if opts.New, err = cmdCtx.prompt("New password", opts.New); err != nil {
		return err
	}

	console, err := cmdCtx.open()
	if err != nil {
		return err
	}
	defer cmdCtx.closeConsole(console)

	if !console.Session.Capability().IsAuthenticated() {
		return errNotSignedIn
	}
	if err := console.Users.ChangePassword(cmdCtx.Ctx, domainauth.ChangePasswordRequest{
		CurrentPassword: opts.Current,
		NewPassword:     opts.New,
	}); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return writeln(cmdCtx.Out, "Password changed")
}
