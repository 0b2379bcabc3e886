package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bookshelf/app"
	"bookshelf/config"
	"bookshelf/isbn"
	"bookshelf/library"
	"bookshelf/shelf"
)

var (
	configFile string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "bookshelf",
	Short: "Keep track of your personal book collection",
	Long: `bookshelf is an interactive terminal library: sign in, scan or look up
books by ISBN, and manage your own collection.

Run without arguments to start the interactive prompt.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		runREPL(a)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Confirm an email address with the token from the verification link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx, cancel := a.Context()
		defer cancel()
		if err := a.Store.VerifyEmail(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Email confirmed. You can now log in.")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset-password [token]",
	Short: "Choose a new password with the token from the reset link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		password, err := readNewPassword()
		if err != nil {
			return err
		}
		ctx, cancel := a.Context()
		defer cancel()
		if err := a.Store.ResetPassword(ctx, args[0], password); err != nil {
			return err
		}
		fmt.Println("Password updated. You can now log in with it.")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}
		out, err := cfg.Redacted()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./bookshelf.yaml or ~/.bookshelf/bookshelf.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file, overrides database.path")
	rootCmd.AddCommand(verifyCmd, resetCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openApp() (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return app.New(cfg, nil)
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func readNewPassword() (string, error) {
	password, err := readPassword("New password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	again, err := readPassword("Repeat new password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != again {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// console is the interactive prompt's state: the input scanner and the
// rows of the last printed listing, which commands refer to by number.
type console struct {
	sc    *bufio.Scanner
	app   *app.App
	rows  []library.Book
	pages chan shelf.Page
}

func runREPL(a *app.App) {
	c := &console{
		sc:    bufio.NewScanner(os.Stdin),
		app:   a,
		pages: make(chan shelf.Page, 1),
	}
	a.Shelf.View.OnChange(func(p shelf.Page) {
		select {
		case c.pages <- p:
		default:
			// Keep only the newest page.
			select {
			case <-c.pages:
			default:
			}
			select {
			case c.pages <- p:
			default:
			}
		}
	})

	fmt.Println("Welcome to your bookshelf!")
	ctx, cancel := a.Context()
	resumed, err := a.ResumeSession(ctx)
	cancel()
	switch {
	case err != nil:
		fmt.Printf("Could not restore your last session: %v\n", err)
	case resumed:
		if u, ok := a.Shelf.Session.Current(); ok {
			fmt.Printf("Signed in as %s (%d books).\n", u.Email, a.Shelf.Books.Len())
		}
	}
	printHelp()

	for {
		fmt.Print("\n> ")
		if !c.sc.Scan() {
			break
		}
		cmd := strings.TrimSpace(c.sc.Text())

		switch cmd {
		case "":
		case "signup":
			c.handleSignup()
		case "login":
			c.handleLogin()
		case "logout":
			c.handleLogout()
		case "forgot password":
			c.handleForgotPassword()
		case "change password":
			c.handleChangePassword()
		case "profile":
			c.handleProfile()
		case "edit profile":
			c.handleEditProfile()
		case "list":
			c.handleList()
		case "more":
			c.printPage(c.app.Shelf.View.LoadMore())
		case "search":
			c.handleSearch()
		case "find online":
			c.handleFindOnline()
		case "add book":
			c.handleAddBook()
		case "scan":
			c.handleScan()
		case "edit":
			c.handleEdit()
		case "delete":
			c.handleDelete()
		case "refresh":
			c.handleRefresh()
		case "help":
			printHelp()
		case "exit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown command. Type 'help' to see the available commands.")
		}
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  Account: signup, login, logout, forgot password, change password, profile, edit profile")
	fmt.Println("  Books: list, more, search, add book, scan, find online, edit, delete, refresh")
	fmt.Println("  System: help, exit")
	fmt.Println()
	fmt.Println("Tips:")
	fmt.Println("  • Books are picked by their number in the last listing")
	fmt.Println("  • 'scan' accepts barcode or cover text; an ISBN in it is looked up online")
}

func (c *console) prompt(label string) (string, bool) {
	fmt.Print(label)
	if !c.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.sc.Text()), true
}

func (c *console) confirm(label string) bool {
	answer, ok := c.prompt(label + " [y/N]: ")
	return ok && strings.EqualFold(answer, "y")
}

func (c *console) printPage(p shelf.Page) {
	c.rows = p.Items
	if p.Matches == 0 {
		if p.Query != "" {
			fmt.Printf("No books found matching '%s'.\n", p.Query)
		} else {
			fmt.Println("No books in your library.")
		}
		return
	}
	if p.Query != "" {
		fmt.Printf("Found %d book(s) matching '%s':\n", p.Matches, p.Query)
	}
	fmt.Printf("%-4s %-40s %-30s %s\n", "#", "Title", "Authors", "Cover")
	fmt.Println(strings.Repeat("-", 85))
	for i, b := range p.Items {
		cover := "-"
		switch {
		case strings.HasPrefix(b.Thumbnail, "data:"):
			cover = "photo"
		case b.Thumbnail != "":
			cover = "link"
		}
		fmt.Printf("%-4d %-40s %-30s %s\n", i+1, truncateString(b.Title, 40), truncateString(b.Authors, 30), cover)
	}
	if p.HasMore {
		fmt.Printf("Showing %d of %d. Type 'more' to see more.\n", len(p.Items), p.Matches)
	}
}

// pickBook resolves a row number from the last listing, or a full book ID.
func (c *console) pickBook(label string) (library.Book, bool) {
	in, ok := c.prompt(label)
	if !ok || in == "" {
		return library.Book{}, false
	}
	if n, err := strconv.Atoi(in); err == nil {
		if n < 1 || n > len(c.rows) {
			fmt.Printf("No book #%d in the last listing. Use 'list' first.\n", n)
			return library.Book{}, false
		}
		if b, ok := c.app.Shelf.Books.Get(c.rows[n-1].ID); ok {
			return b, true
		}
	} else if b, ok := c.app.Shelf.Books.Get(in); ok {
		return b, true
	}
	fmt.Println("That book is no longer in your collection.")
	return library.Book{}, false
}

func (c *console) handleList() {
	if _, ok := c.app.Shelf.Session.Current(); !ok {
		fmt.Println(shelf.ErrNotAuthenticated)
		return
	}
	c.printPage(c.app.Shelf.View.Page())
}

func (c *console) handleSearch() {
	query, ok := c.prompt("Search (title or author, empty to clear): ")
	if !ok {
		return
	}
	for len(c.pages) > 0 {
		<-c.pages
	}
	c.app.Shelf.View.SetQuery(query)
	wait := c.app.Config.View.Debounce + time.Second
	for {
		select {
		case p := <-c.pages:
			if p.Query != library.Fold(query) {
				continue
			}
			c.printPage(p)
			return
		case <-time.After(wait):
			c.printPage(c.app.Shelf.View.Page())
			return
		}
	}
}

func (c *console) handleRefresh() {
	ctx, cancel := c.app.Context()
	defer cancel()
	if err := c.app.Store.Refresh(ctx); err != nil {
		if errors.Is(err, library.ErrSessionExpired) {
			fmt.Println("Your session has expired. Please log in again.")
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	if err := c.app.Shelf.Books.FetchAll(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Up to date: %d books.\n", c.app.Shelf.Books.Len())
}

func (c *console) handleAddBook() {
	title, ok := c.prompt("Title: ")
	if !ok {
		return
	}
	authors, ok := c.prompt("Authors (comma separated): ")
	if !ok {
		return
	}
	cover, ok := c.prompt("Cover image path or URL (optional): ")
	if !ok {
		return
	}
	fields := library.BookFields{Title: title, Authors: authors}
	if cover != "" {
		thumb, err := coverRef(cover)
		if err != nil {
			fmt.Printf("Cover error: %v. Adding book without a cover.\n", err)
		} else {
			fields.Thumbnail = thumb
		}
	}
	c.create(fields)
}

// coverRef passes URLs through and inlines local image files.
func coverRef(in string) (string, error) {
	if library.IsThumbnailRef(in) {
		return in, nil
	}
	return library.LoadCover(in)
}

func (c *console) create(fields library.BookFields) bool {
	ctx, cancel := c.app.Context()
	defer cancel()
	b, err := c.app.Shelf.Books.Create(ctx, fields)
	if err != nil {
		printError("Error adding book", err)
		return false
	}
	fmt.Printf("Added '%s' to your library.\n", b.Title)
	return true
}

func (c *console) handleScan() {
	text, ok := c.prompt("Scanned text: ")
	if !ok {
		return
	}
	ctx, cancel := c.app.Context()
	scan, err := c.app.Scanner.Read(ctx, text)
	cancel()
	switch {
	case errors.Is(err, isbn.ErrRepeatScan):
		fmt.Println("You just scanned this book. Scan something else, or 'scan' a different code.")
		return
	case errors.Is(err, isbn.ErrNoMatch):
		fmt.Println("No book found for that ISBN. Try 'add book' to enter it by hand.")
		return
	case err != nil:
		fmt.Printf("Error: %v\n", err)
		return
	}

	f := scan.Candidate
	if scan.ISBN != "" {
		fmt.Printf("ISBN %s: '%s' by %s\n", scan.ISBN, f.Title, f.Authors)
	} else {
		fmt.Printf("No ISBN found. Title from text: '%s'\n", f.Title)
		if authors, ok := c.prompt("Authors (optional): "); ok {
			f.Authors = authors
		}
		if photo, ok := c.prompt("Cover photo path (optional): "); ok && photo != "" {
			if thumb, err := library.LoadCover(photo); err != nil {
				fmt.Printf("Cover error: %v\n", err)
			} else {
				f.Thumbnail = thumb
			}
		}
	}
	// Only a saved book keeps the repeat guard; a declined or failed one
	// may be scanned again.
	if !c.confirm("Add it to your library?") || !c.create(f) {
		c.app.Scanner.Forget()
	}
}

func (c *console) handleFindOnline() {
	query, ok := c.prompt("Search the catalog: ")
	if !ok || query == "" {
		return
	}
	ctx, cancel := c.app.Context()
	vols, err := c.app.Lookup.Search(ctx, query)
	cancel()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(vols) == 0 {
		fmt.Printf("No catalog results for '%s'.\n", query)
		return
	}
	for i, v := range vols {
		f := v.BookFields()
		fmt.Printf("%-4d %-50s %s\n", i+1, truncateString(f.Title, 50), truncateString(f.Authors, 30))
	}
	in, ok := c.prompt("Add result # (empty to skip): ")
	if !ok || in == "" {
		return
	}
	n, err := strconv.Atoi(in)
	if err != nil || n < 1 || n > len(vols) {
		fmt.Printf("Invalid result number: %s\n", in)
		return
	}
	c.create(vols[n-1].BookFields())
}

func (c *console) handleEdit() {
	b, ok := c.pickBook("Book # to edit: ")
	if !ok {
		return
	}
	ed := c.app.Shelf.Edit
	if err := ed.Begin(b.ID); err != nil {
		printError("Cannot edit", err)
		return
	}
	fmt.Println("Press Enter to keep a value.")
	for _, field := range []struct{ name, current string }{
		{"title", b.Title},
		{"authors", b.Authors},
		{"thumbnail", b.Thumbnail},
	} {
		v, ok := c.prompt(fmt.Sprintf("%s [%s]: ", field.name, truncateString(field.current, 40)))
		if !ok {
			ed.Cancel()
			return
		}
		if v == "" {
			continue
		}
		if field.name == "thumbnail" {
			if ref, err := coverRef(v); err == nil {
				v = ref
			}
		}
		if err := ed.SetField(field.name, v); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	for {
		ctx, cancel := c.app.Context()
		updated, err := ed.Commit(ctx)
		cancel()
		if err == nil {
			fmt.Printf("Saved '%s'.\n", updated.Title)
			return
		}
		printError("Error saving", err)
		var verr *shelf.ValidationError
		if errors.As(err, &verr) {
			v, ok := c.prompt(fmt.Sprintf("%s: ", verr.Field))
			if !ok || v == "" {
				ed.Cancel()
				fmt.Println("Edit cancelled.")
				return
			}
			if err := ed.SetField(verr.Field, v); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			continue
		}
		if !c.confirm("Retry?") {
			ed.Cancel()
			fmt.Println("Edit cancelled.")
			return
		}
	}
}

func (c *console) handleDelete() {
	b, ok := c.pickBook("Book # to delete: ")
	if !ok {
		return
	}
	del := c.app.Shelf.Delete
	del.Select(b)
	if !c.confirm(fmt.Sprintf("Delete '%s'?", b.Title)) {
		del.Cancel()
		fmt.Println("Nothing deleted.")
		return
	}
	ctx, cancel := c.app.Context()
	defer cancel()
	if err := del.Confirm(ctx); err != nil {
		printError("Error deleting book", err)
		return
	}
	fmt.Printf("Deleted '%s'.\n", b.Title)
}

func printError(prefix string, err error) {
	var (
		verr *shelf.ValidationError
		rerr *shelf.RemoteError
	)
	switch {
	case errors.As(err, &verr):
		fmt.Printf("%s: %s %s\n", prefix, verr.Field, verr.Message)
	case errors.Is(err, shelf.ErrDuplicate), errors.Is(err, shelf.ErrNotAuthenticated),
		errors.Is(err, shelf.ErrEditInProgress), errors.Is(err, shelf.ErrStale):
		fmt.Printf("%s: %v\n", prefix, err)
	case errors.As(err, &rerr):
		fmt.Printf("%s: %v. Please try again.\n", prefix, rerr.Err)
	default:
		fmt.Printf("%s: %v\n", prefix, err)
	}
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
