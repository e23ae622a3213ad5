// cmd/bitstore/main.go
package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"bitstore/internal/blob"
	"bitstore/internal/commit"
	commitStorage "bitstore/internal/commit/storage"
	"bitstore/internal/config"
	repositoryStorage "bitstore/internal/repository/storage"
	sharelinkStorage "bitstore/internal/sharelink/storage"
	"bitstore/internal/tree"

	"github.com/dgraph-io/badger/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bitstore",
	Short: "Bitstore is a shareable content-addressed code store",
	Long: `Bitstore stores repositories as deduplicated compressed blobs and lets
their owners hand out expiring share links for pushing commits. This
tool administers a store directly on disk; the HTTP server must not be
running against the same data directory at the same time.`,
}

type stores struct {
	blobs   *blob.DedupStore
	commits *commitStorage.Store
	repos   *repositoryStorage.Store
	links   *sharelinkStorage.Store
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := os.MkdirAll(cfg.Database.Path, 0o755); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}

			fmt.Println("Initialized bitstore in", cfg.Database.Path)
			fmt.Println("Configuration written to", path)
			return nil
		},
	}

	var reposCmd = &cobra.Command{
		Use:   "repos",
		Short: "List repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			author, _ := cmd.Flags().GetString("author")

			s, closeDB, err := openStores()
			if err != nil {
				return err
			}
			defer closeDB()

			repos, err := s.repos.List()
			if err != nil {
				return fmt.Errorf("listing repositories: %w", err)
			}
			if author != "" {
				repos, err = s.repos.FindByAuthor(author)
				if err != nil {
					return fmt.Errorf("listing repositories: %w", err)
				}
			}

			if len(repos) == 0 {
				fmt.Println("No repositories found")
				return nil
			}

			fmt.Println("\nRepositories:")
			for _, r := range repos {
				fmt.Printf("%s  %s  %s  [%s]  %d commits, %d files\n",
					r.ID[:8],
					r.CreatedAt.Format(time.RFC3339),
					r.Name,
					r.Author,
					len(r.CommitHashes),
					len(r.Blobs),
				)
			}

			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log [repository-id]",
		Short: "Show a repository's commit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeDB, err := openStores()
			if err != nil {
				return err
			}
			defer closeDB()

			repo, err := s.repos.Get(args[0])
			if err != nil {
				return fmt.Errorf("loading repository: %w", err)
			}

			commits := make([]*commit.Commit, 0, len(repo.CommitHashes))
			for _, hash := range repo.CommitHashes {
				c, err := s.commits.Get(hash)
				if err != nil {
					return fmt.Errorf("loading commit %s: %w", hash, err)
				}
				commits = append(commits, c)
			}
			sort.Slice(commits, func(i, j int) bool {
				return commits[i].Timestamp.After(commits[j].Timestamp)
			})

			if len(commits) == 0 {
				fmt.Println("No commits found")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for _, c := range commits {
				fmt.Printf("%s  %s  %s <%s>\n", yellow(c.CommitHash[:8]), c.Timestamp.Format(time.RFC3339), c.Author, c.Email)
				fmt.Printf("\t%s\n", c.Message)
				if len(c.DeletedPaths) > 0 {
					fmt.Printf("\tremoved: %d file(s)\n", len(c.DeletedPaths))
				}
			}

			return nil
		},
	}

	var treeCmd = &cobra.Command{
		Use:   "tree [repository-id]",
		Short: "Render a repository's folder structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("specify a repository id")
			}

			s, closeDB, err := openStores()
			if err != nil {
				return err
			}
			defer closeDB()

			repo, err := s.repos.Get(args[0])
			if err != nil {
				return fmt.Errorf("loading repository: %w", err)
			}

			live := make([]*blob.Blob, 0, len(repo.Blobs))
			for _, key := range repo.Blobs {
				b, err := s.blobs.Get(key)
				if err != nil {
					return fmt.Errorf("loading blob %s: %w", key.SHA1, err)
				}
				live = append(live, b)
			}

			fmt.Print(tree.Render(repo.Name, tree.Project(live)))
			return nil
		},
	}

	var linksCmd = &cobra.Command{
		Use:   "links [repository-id]",
		Short: "List a repository's share links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeDB, err := openStores()
			if err != nil {
				return err
			}
			defer closeDB()

			links, err := s.links.FindByRepository(args[0])
			if err != nil {
				return fmt.Errorf("listing share links: %w", err)
			}

			if len(links) == 0 {
				fmt.Println("No share links found")
				return nil
			}

			green := color.New(color.FgGreen).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()

			fmt.Println("\nShare links:")
			for _, l := range links {
				status := "revoked"
				switch {
				case l.Valid():
					status = green("active")
				case l.Active:
					status = red("expired")
				}
				fmt.Printf("%s  expires %s  %s\n", l.Token, l.Expiration.Format(time.RFC3339), status)
			}

			return nil
		},
	}

	var cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stray blob rows left behind by imports",
		Long:  `Sweeps the blob store for rows filed under a key that disagrees with their content hash and re-files them under the canonical key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeDB, err := openStores()
			if err != nil {
				return err
			}
			defer closeDB()

			removed, err := s.blobs.RemoveDuplicates()
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}

			if removed == 0 {
				fmt.Println("No stray blobs found")
				return nil
			}
			fmt.Printf("Removed %d stray blob(s)\n", removed)
			return nil
		},
	}

	var rebuildCmd = &cobra.Command{
		Use:   "rebuild [repository-id]",
		Short: "Recompute a repository's live file set from its commits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeDB, err := openStores()
			if err != nil {
				return err
			}
			defer closeDB()

			repo, err := s.repos.RebuildFromHistory(args[0])
			if err != nil {
				return fmt.Errorf("rebuilding repository: %w", err)
			}

			fmt.Printf("Rebuilt %s: %d live file(s) from %d commit(s)\n", repo.Name, len(repo.Blobs), len(repo.CommitHashes))
			return nil
		},
	}

	reposCmd.Flags().StringP("author", "a", "", "Only list repositories owned by this user")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(rebuildCmd)
}

func openStores() (*stores, func(), error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Database.Path)
	opts.Logger = nil // keep database chatter out of command output

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := blob.NewDedupStore(db, cfg.Content.CacheSize)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initializing blob store: %w", err)
	}
	commits := commitStorage.NewStore(db, blobs)
	repos := repositoryStorage.NewStore(db, commits, blobs)
	links := sharelinkStorage.NewStore(db, time.Duration(cfg.ShareLinks.TTLDays)*24*time.Hour)

	s := &stores{
		blobs:   blobs,
		commits: commits,
		repos:   repos,
		links:   links,
	}
	return s, func() { db.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
