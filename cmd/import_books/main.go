package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bookshelf/app"
	"bookshelf/config"
	"bookshelf/isbn"
	"bookshelf/shelf"
)

var (
	configFile string
	dbPath     string
	email      string
)

var rootCmd = &cobra.Command{
	Use:   "import_books [isbn-file]",
	Short: "Add every ISBN listed in a file to your library",
	Long: `Reads one ISBN per line (blank lines and lines starting with # are
ignored), looks each one up in the book catalog and adds it to the
collection of the given account. Books already in the collection are
skipped.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runImport,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "database file, overrides database.path")
	rootCmd.Flags().StringVar(&email, "email", "", "account to import into")
	_ = rootCmd.MarkFlagRequired("email")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type entry struct {
	line int
	raw  string
}

// readEntries returns the non-empty, non-comment lines of r.
func readEntries(r io.Reader) ([]entry, error) {
	var out []entry
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, entry{line: n, raw: line})
	}
	return out, sc.Err()
}

type summary struct {
	added, skipped, failed int
}

// importAll adds each entry's book to the signed-in user's collection.
func importAll(a *app.App, entries []entry, w io.Writer) summary {
	var s summary
	for _, e := range entries {
		fmt.Fprintf(w, "Importing line %d (%s)... ", e.line, e.raw)

		code, err := isbn.Parse(e.raw)
		if err != nil {
			fmt.Fprintf(w, "ERROR - %v\n", err)
			s.failed++
			continue
		}

		ctx, cancel := a.Context()
		vol, err := a.Lookup.Lookup(ctx, code)
		if err != nil {
			cancel()
			fmt.Fprintf(w, "ERROR - %v\n", err)
			s.failed++
			continue
		}
		b, err := a.Shelf.Books.Create(ctx, vol.BookFields())
		cancel()
		switch {
		case errors.Is(err, shelf.ErrDuplicate):
			fmt.Fprintf(w, "SKIPPED - already in your library\n")
			s.skipped++
		case err != nil:
			fmt.Fprintf(w, "ERROR - %v\n", err)
			s.failed++
		default:
			fmt.Fprintf(w, "SUCCESS (%s by %s)\n", b.Title, b.Authors)
			s.added++
		}
	}
	return s
}

// signIn logs in. A failed first load of the library is only a warning:
// the import checks duplicates against the store, not the cache.
func signIn(a *app.App, email, password string, w io.Writer) error {
	ctx, cancel := a.Context()
	defer cancel()
	err := a.Shelf.Login(ctx, email, password)
	var rerr *shelf.RemoteError
	if errors.As(err, &rerr) {
		if _, ok := a.Shelf.Session.Current(); ok {
			fmt.Fprintf(w, "Warning: signed in, but loading your library failed: %v\n", rerr)
			return nil
		}
	}
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open isbn file: %w", err)
	}
	entries, err := readEntries(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read isbn file: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	a, err := app.New(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Password for %s: ", email)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := signIn(a, email, string(pw), os.Stdout); err != nil {
		return err
	}

	fmt.Printf("Importing %d ISBNs from %s...\n", len(entries), args[0])
	s := importAll(a, entries, os.Stdout)

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", s.added)
	fmt.Printf("Already in library: %d\n", s.skipped)
	fmt.Printf("Errors: %d\n", s.failed)
	fmt.Printf("Your library now holds %d books.\n", a.Shelf.Books.Len())
	return nil
}
