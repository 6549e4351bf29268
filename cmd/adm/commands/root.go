// Package commands implements the habit-vault admin CLI.
package commands

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/warp/habit-vault/app"
)

// Opener opens the application the commands act on.
type Opener func() (*app.App, error)

// env opens the app on first use so "--help" never touches the database.
type env struct {
	open Opener

	once sync.Once
	app  *app.App
	err  error
}

func (e *env) get() (*app.App, error) {
	e.once.Do(func() { e.app, e.err = e.open() })
	return e.app, e.err
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	return e.app.Close()
}

// NewRootCommand builds the command tree.
func NewRootCommand(open Opener) *cobra.Command {
	e := &env{open: open}

	root := &cobra.Command{
		Use:           "adm",
		Short:         "habit-vault admin CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return e.close()
		},
	}

	root.AddCommand(profilesCommand(e))
	root.AddCommand(missingCommand(e))
	root.AddCommand(streakCommand(e))
	root.AddCommand(remindersCommand(e))
	root.AddCommand(vaultCommand(e))
	root.AddCommand(tokenCommand(e))

	return root
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
