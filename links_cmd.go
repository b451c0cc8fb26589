package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"iptv-check/work/client"
	"iptv-check/work/config"
	"iptv-check/work/database"
	"iptv-check/work/finder"
	"iptv-check/work/logger"
	"iptv-check/work/utils"
)

// openDatabase opens the link database named by the config file and flags.
func openDatabase(cmd *cobra.Command, opts *options) (*database.DB, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		logger.SetLogLevel("DEBUG")
	} else {
		logger.SetLogLevel("WARN")
	}
	return database.Open(cfg.DatabasePath)
}

func newLinksCmd(opts *options, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Manage the playlists checked by --database",
	}

	var name string
	add := &cobra.Command{
		Use:   "add <url>",
		Short: "Store a playlist URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			saved, err := db.AddLink(name, args[0])
			if errors.Is(err, database.ErrLinkExists) {
				return fmt.Errorf("%s is already stored", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "[+] Saved '%s'\n", saved)
			return nil
		},
	}
	add.Flags().StringVarP(&name, "name", "n", "", "name for the link, derived from the URL when empty")

	var showURLs bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			links, err := db.ListLinks()
			if err != nil {
				return err
			}
			if len(links) == 0 {
				fmt.Fprintln(stdout, "[*] No links stored.")
				return nil
			}

			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tURL\tADDED")
			for _, l := range links {
				url := l.URL
				if !showURLs {
					url = utils.ObfuscateURL(url)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Name, url, l.AddedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&showURLs, "show-urls", false, "print full URLs including credentials")

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a stored playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RemoveLink(args[0]); err != nil {
				return fmt.Errorf("cannot remove '%s': %w", args[0], err)
			}
			fmt.Fprintf(stdout, "[+] Removed '%s'\n", args[0])
			return nil
		},
	}

	var addFound bool
	find := &cobra.Command{
		Use:   "find <page-url>",
		Short: "Find playlist links published on a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "[*] Fetching %s\n", args[0])
			links, err := finder.New(client.NewHeaderSettingClient(cfg)).Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(links) == 0 {
				fmt.Fprintln(stdout, "[!] No valid M3U links found on page or via redirect.")
				return nil
			}
			for _, l := range links {
				fmt.Fprintf(stdout, "[+] %s\n", l)
			}
			if !addFound {
				return nil
			}

			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			added := 0
			for _, l := range links {
				saved, err := db.AddLink("", l)
				if errors.Is(err, database.ErrLinkExists) {
					continue
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "[+] Saved '%s'\n", saved)
				added++
			}
			fmt.Fprintf(stdout, "[*] Added %d new link(s) to the database.\n", added)
			return nil
		},
	}
	find.Flags().BoolVar(&addFound, "add", false, "store every link found")

	cmd.AddCommand(add, list, remove, find)
	return cmd
}

func newHistoryCmd(opts *options, stdout io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.RecentRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(stdout, "[*] No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tMODE\tSTATUS\tONLINE\tTOTAL\tSKIPPED\tSOURCE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04"), r.Mode, r.Status, r.Online, r.Total, r.Skipped, utils.ObfuscateURL(r.Source))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func newInitConfigCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write an example configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateExampleConfig(path); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(stdout, "[+] Wrote %s\n", path)
			return nil
		},
	}
}
