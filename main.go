package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/customeros/idlesync/config"
	"github.com/customeros/idlesync/server"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("idlesync: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "idlesync",
		Usage: "watch IMAP mailboxes with IDLE and run commands on new activity",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the account file",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"D"},
				Usage:   "force debug logging",
			},
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "start watching every configured account",
				Action: runServer,
			},
			{
				Name:   "validate",
				Usage:  "load the configuration, print the accounts and exit",
				Action: validateConfig,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"), c.Bool("debug"))
}

func runServer(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	return srv.Run()
}

func validateConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	printAccounts(c.App.Writer, cfg)
	return nil
}

func printAccounts(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "config: %s\n", cfg.Watch.Path)
	fmt.Fprintf(w, "retry: %s, idle timeout: %s\n", cfg.Watch.Settings.Retry, cfg.Watch.Settings.IdleTimeout)
	for _, account := range cfg.Watch.Accounts {
		fmt.Fprintf(w, "- %s: %s@%s tls=%t commands=%d\n",
			account.Name, account.User, account.Address(), account.TLS, len(account.Commands))
	}
}
