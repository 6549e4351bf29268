// Command adm is the habit-vault admin CLI. It reads the same config as the
// server (HABITVAULT_CONFIG_FILE, environment) and works directly on the
// database.
//
//	adm profiles --user u1
//	adm missing --user u1 --profile p1
//	adm vault withdraw --user u1 --amount 2.5 --description "Cinema"
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/warp/habit-vault/app"
	"github.com/warp/habit-vault/cmd/adm/commands"
	"github.com/warp/habit-vault/config"
	"github.com/warp/habit-vault/observability"
)

func main() {
	open := func() (*app.App, error) {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		// Keep stdout for command output.
		logger, err := observability.NewLogger("error", false)
		if err != nil {
			return nil, err
		}
		return app.Open(cfg, logger)
	}

	if err := commands.NewRootCommand(open).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
