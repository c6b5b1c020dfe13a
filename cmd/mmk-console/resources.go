package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/domain/model"
)

func runRole(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("role", flag.ContinueOnError)
	set := fs.String("set", "", "Change the role (admin or user)")
	if err := fs.Parse(args); err != nil {
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

	var user domainauth.User
	if *set != "" {
		user, err = console.Users.UpdateMyRole(cmdCtx.Ctx, domainauth.Role(strings.TrimSpace(*set)))
	} else {
		user, err = console.Users.MyRole(cmdCtx.Ctx)
	}
	if err != nil {
		return fmt.Errorf("role: %w", err)
	}
	return writef(cmdCtx.Out, "%s: %s\n", user.Email, user.Role)
}

type usersOptions struct {
	ID     string
	Role   string
	Search string
	Page   int
	Limit  int
}

func parseUsersFlags(args []string) (usersOptions, error) {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)

	var opts usersOptions
	fs.StringVar(&opts.ID, "id", "", "Show a single user")
	fs.StringVar(&opts.Role, "role", "", "Filter by role")
	fs.StringVar(&opts.Search, "search", "", "Filter by email or name")
	fs.IntVar(&opts.Page, "page", 0, "Page number (omitted when 0)")
	fs.IntVar(&opts.Limit, "limit", 0, "Page size (omitted when 0)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Page < 0 || opts.Limit < 0 {
		return opts, errors.New("--page and --limit must not be negative")
	}
	return opts, nil
}

func (o usersOptions) listOptions() model.UserListOptions {
	out := model.UserListOptions{Role: o.Role, Search: o.Search}
	if o.Page > 0 {
		page := o.Page
		out.Page = &page
	}
	if o.Limit > 0 {
		limit := o.Limit
		out.Limit = &limit
	}
	return out
}

func runUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseUsersFlags(args)
	if err != nil {
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

	var users []domainauth.User
	if opts.ID != "" {
		user, getErr := console.Users.GetAdminUser(cmdCtx.Ctx, opts.ID)
		if getErr != nil {
			return fmt.Errorf("get user: %w", getErr)
		}
		users = append(users, user)
	} else {
		users, err = console.Users.ListAdminUsers(cmdCtx.Ctx, opts.listOptions())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
	}
	return printUsers(cmdCtx, users)
}

func printUsers(cmdCtx *commandContext, users []domainauth.User) error {
	if len(users) == 0 {
		return writeln(cmdCtx.Out, "No users")
	}
	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tEmail\tName\tRole\tCreated"); err != nil {
		return fmt.Errorf("write users header: %w", err)
	}
	for _, u := range users {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role, u.CreatedAt); err != nil {
			return fmt.Errorf("write user %s: %w", u.ID, err)
		}
	}
	return w.Flush()
}

func runProducts(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
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

	var products []model.Product
	if id := fs.Arg(0); id != "" {
		p, getErr := console.Products.Get(cmdCtx.Ctx, id)
		if getErr != nil {
			return fmt.Errorf("get product: %w", getErr)
		}
		products = append(products, p)
	} else {
		products, err = console.Products.List(cmdCtx.Ctx)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
	}

	if len(products) == 0 {
		return writeln(cmdCtx.Out, "No products")
	}
	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tSKU\tName\tPrice\tQuantity"); err != nil {
		return fmt.Errorf("write products header: %w", err)
	}
	for _, p := range products {
		if err := writef(w, "%s\t%s\t%s\t%.2f\t%d\n", p.ID, p.SKU, p.Name, p.Price, p.Quantity); err != nil {
			return fmt.Errorf("write product %s: %w", p.ID, err)
		}
	}
	return w.Flush()
}

func runOpen(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mmk-console open <location>")
	}

	console, err := cmdCtx.open()
	if err != nil {
		return err
	}
	defer cmdCtx.closeConsole(console)

	location, err := console.Router.Load(args[0])
	if err != nil {
		return err
	}
	if location != args[0] {
		return writef(cmdCtx.Out, "Redirected: %s -> %s\n", args[0], location)
	}
	return writef(cmdCtx.Out, "Location: %s\n", location)
}

func runGet(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mmk-console get <path>")
	}

	console, err := cmdCtx.open()
	if err != nil {
		return err
	}
	defer cmdCtx.closeConsole(console)

	resp, err := console.API.Get(cmdCtx.Ctx, args[0])
	if err != nil {
		return fmt.Errorf("get %s: %w", args[0], err)
	}
	if resp.NoContent() {
		return writef(cmdCtx.Out, "%d (no content)\n", resp.Status)
	}
	return writeJSON(cmdCtx.Out, resp.Body)
}
