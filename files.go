package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/filecrate/filecrate-go/internal/state"
)

// refresh runs a full synchronization, translating the unauthenticated
// sentinel into an actionable message.
func (a *app) refresh(cmd *cobra.Command) error {
	if err := a.sync.RefreshAll(cmd.Context()); err != nil {
		return errNotLoggedIn(err)
	}

	return nil
}

// resolveEntry refreshes the listing and resolves a user-supplied name
// against it.
func (a *app) resolveEntry(cmd *cobra.Command, name string) (state.FileEntry, error) {
	if err := a.refresh(cmd); err != nil {
		return state.FileEntry{}, err
	}

	entry, ok := a.coord.FindFile(name)
	if !ok {
		return state.FileEntry{}, fmt.Errorf("no such file: %s", name)
	}

	return entry, nil
}

// newLsCmd lists the stored files. --cached answers from the local listing
// cache without contacting the service.
func newLsCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if cached {
				return lsCached(cmd, a)
			}

			if err := a.refresh(cmd); err != nil {
				return err
			}

			files := a.store.Files()

			if flagJSON {
				names := make([]string, 0, len(files))
				for _, f := range files {
					names = append(names, f.DisplayName())
				}

				return printJSON(map[string]any{"files": names})
			}

			for _, f := range files {
				fmt.Println(f.DisplayName())
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "list from the local cache without contacting the service")

	return cmd
}

// lsCached prints the last cached listing.
func lsCached(cmd *cobra.Command, a *app) error {
	snap, ok, err := a.cache.LoadSnapshot(cmd.Context())
	if err != nil {
		return err
	}

	if !ok {
		return errors.New("no cached listing (run 'filecrate ls' while online first)")
	}

	if flagJSON {
		return printJSON(map[string]any{
			"files":      snap.Files,
			"fetched_at": snap.FetchedAt,
		})
	}

	statusf("Cached listing from %s\n", formatTime(snap.FetchedAt))

	for _, name := range snap.Files {
		fmt.Println(name)
	}

	return nil
}

// newStatsCmd shows the server-computed aggregate usage.
func newStatsCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var st state.Stats

			if cached {
				snap, ok, err := a.cache.LoadSnapshot(cmd.Context())
				if err != nil {
					return err
				}

				if !ok {
					return errors.New("no cached stats (run 'filecrate stats' while online first)")
				}

				st = snap.Stats
			} else {
				if err := a.refresh(cmd); err != nil {
					return err
				}

				st = a.store.Stats()
			}

			if flagJSON {
				return printJSON(map[string]any{
					"total_files": st.TotalFiles,
					"total_size":  st.TotalSizeBytes,
				})
			}

			renderStats(os.Stdout, st)

			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "show from the local cache without contacting the service")

	return cmd
}

// newPutCmd uploads one or more local files.
func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <path>...",
		Short: "Upload files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			// Validate the session once up front so a bad token fails before
			// the first upload rather than midway through a batch.
			if err := a.refresh(cmd); err != nil {
				return err
			}

			for _, path := range args {
				if err := putOne(cmd, a, path); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// putOne uploads a single file through the coordinator.
func putOne(cmd *cobra.Command, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)

	if err := a.coord.Upload(cmd.Context(), name, f); err != nil {
		return describeScopeError(a.store, state.ScopeUpload, err)
	}

	statusf("Uploaded %s\n", name)

	return nil
}

// newGetCmd downloads a file. The bytes land in a .partial sibling first and
// are renamed into place only after the transfer completes, so an
// interrupted download never leaves a truncated file at the final path.
func newGetCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.resolveEntry(cmd, args[0])
			if err != nil {
				return err
			}

			dest := outPath
			if dest == "" {
				dest = entry.DisplayName()
			}

			return downloadTo(cmd, a, entry, dest)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "destination path (defaults to the file name)")

	return cmd
}

// downloadTo streams the file into dest via a .partial temp file.
func downloadTo(cmd *cobra.Command, a *app, entry state.FileEntry, dest string) error {
	partial := dest + ".partial"

	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("creating %s: %w", partial, err)
	}

	_, n, dlErr := a.coord.Download(cmd.Context(), entry, f)

	closeErr := f.Close()

	if dlErr != nil {
		os.Remove(partial)
		return describeScopeError(a.store, state.ScopeDownload, dlErr)
	}

	if closeErr != nil {
		os.Remove(partial)
		return fmt.Errorf("closing %s: %w", partial, closeErr)
	}

	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return fmt.Errorf("renaming to %s: %w", dest, err)
	}

	statusf("Downloaded %s (%s)\n", dest, formatSize(n))

	return nil
}

// newRmCmd deletes a stored file.
func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.resolveEntry(cmd, args[0])
			if err != nil {
				return err
			}

			if err := a.coord.Delete(cmd.Context(), entry); err != nil {
				return describeScopeError(a.store, state.ScopeDelete, err)
			}

			statusf("Deleted %s\n", entry.DisplayName())

			return nil
		},
	}
}

// newLinkCmd mints a shareable public link for a stored file.
func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <name>",
		Short: "Create a public link for a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.resolveEntry(cmd, args[0])
			if err != nil {
				return err
			}

			pl, err := a.coord.CreatePublicLink(cmd.Context(), entry)
			if err != nil {
				return describeScopeError(a.store, state.ScopePublicLink, err)
			}

			if flagJSON {
				return printJSON(map[string]any{
					"file": entry.DisplayName(),
					"url":  pl.URL,
				})
			}

			fmt.Println(pl.URL)

			return nil
		},
	}
}
