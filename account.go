package main

import (
	"errors"
	"fmt"

	"bookshelf/library"
	"bookshelf/shelf"
)

func (c *console) handleSignup() {
	email, ok := c.prompt("Email: ")
	if !ok {
		return
	}
	password, err := readNewPassword()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	ctx, cancel := c.app.Context()
	defer cancel()
	pending, err := c.app.Shelf.Signup(ctx, email, password)
	if err != nil {
		printAuthError("Sign up failed", err)
		return
	}
	if pending {
		fmt.Println("Check your email to confirm your address, then run 'bookshelf verify <token>' and log in.")
		return
	}
	fmt.Printf("Welcome, %s!\n", email)
}

func (c *console) handleLogin() {
	if u, ok := c.app.Shelf.Session.Current(); ok {
		fmt.Printf("Already signed in as %s. Use 'logout' first.\n", u.Email)
		return
	}
	email, ok := c.prompt("Email: ")
	if !ok {
		return
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	ctx, cancel := c.app.Context()
	defer cancel()
	if err := c.app.Shelf.Login(ctx, email, password); err != nil {
		printAuthError("Login failed", err)
		return
	}
	fmt.Printf("Signed in as %s. You have %d books.\n", email, c.app.Shelf.Books.Len())
}

// printAuthError separates a failed sign-in from a failed first load, which
// leaves the user signed in.
func printAuthError(prefix string, err error) {
	var (
		aerr *shelf.AuthError
		rerr *shelf.RemoteError
		verr *shelf.ValidationError
	)
	switch {
	case errors.As(err, &aerr):
		fmt.Printf("%s: %s\n", prefix, aerr.Reason)
	case errors.As(err, &verr):
		fmt.Printf("%s: %s %s\n", prefix, verr.Field, verr.Message)
	case errors.As(err, &rerr):
		fmt.Printf("Signed in, but your books could not be loaded (%v). Try 'refresh'.\n", rerr.Err)
	default:
		fmt.Printf("%s: %v\n", prefix, err)
	}
}

func (c *console) handleLogout() {
	ctx, cancel := c.app.Context()
	defer cancel()
	if err := c.app.Shelf.Logout(ctx); err != nil {
		printAuthError("Logout failed", err)
		return
	}
	c.rows = nil
	fmt.Println("Signed out.")
}

func (c *console) handleForgotPassword() {
	email, ok := c.prompt("Email: ")
	if !ok || email == "" {
		return
	}
	ctx, cancel := c.app.Context()
	defer cancel()
	if err := c.app.Store.RequestPasswordReset(ctx, email); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("If an account exists for that address, a reset link is on its way.")
	fmt.Println("Open it, or run 'bookshelf reset-password <token>'.")
}

func (c *console) handleChangePassword() {
	password, err := readNewPassword()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if minLen := c.app.Config.Auth.MinPasswordLength; len(password) < minLen {
		fmt.Printf("Error: password must be at least %d characters\n", minLen)
		return
	}
	ctx, cancel := c.app.Context()
	defer cancel()
	if err := c.app.Store.UpdatePassword(ctx, password); err != nil {
		if errors.Is(err, library.ErrNoSession) {
			fmt.Println(shelf.ErrNotAuthenticated)
			return
		}
		fmt.Printf("Error changing password: %v\n", err)
		return
	}
	fmt.Println("Password changed.")
}

func (c *console) handleProfile() {
	ctx, cancel := c.app.Context()
	defer cancel()
	p, err := c.app.Store.Profile(ctx)
	if err != nil {
		if errors.Is(err, library.ErrNoSession) {
			fmt.Println(shelf.ErrNotAuthenticated)
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	u, _ := c.app.Shelf.Session.Current()
	fmt.Printf("Email:     %s\n", u.Email)
	fmt.Printf("Full name: %s\n", orDash(p.FullName))
	fmt.Printf("Address:   %s\n", orDash(p.Address))
}

func (c *console) handleEditProfile() {
	ctx, cancel := c.app.Context()
	p, err := c.app.Store.Profile(ctx)
	cancel()
	if err != nil {
		if errors.Is(err, library.ErrNoSession) {
			fmt.Println(shelf.ErrNotAuthenticated)
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Press Enter to keep a value.")
	name, ok := c.prompt(fmt.Sprintf("Full name [%s]: ", p.FullName))
	if !ok {
		return
	}
	address, ok := c.prompt(fmt.Sprintf("Address [%s]: ", p.Address))
	if !ok {
		return
	}
	if name == "" {
		name = p.FullName
	}
	if address == "" {
		address = p.Address
	}
	ctx, cancel = c.app.Context()
	defer cancel()
	if err := c.app.Store.UpdateProfile(ctx, name, address); err != nil {
		fmt.Printf("Error saving profile: %v\n", err)
		return
	}
	fmt.Println("Profile saved.")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
