package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikequentel/tumblrclient/internal/model"
	"github.com/mikequentel/tumblrclient/internal/store"
)

// result is printed by commands that only succeed or fail.
type result struct {
	OK       bool   `json:"ok"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	ReblogID int64  `json:"reblog_id,omitempty"`
}

func newLikesCmd(a *app) *cobra.Command {
	var offset int
	cmd := &cobra.Command{
		Use:   "likes",
		Short: "Print one page of liked posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			posts, err := c.Likes(cmd.Context(), offset)
			if err != nil {
				return err
			}
			return a.render(posts)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "index of the first liked post")
	return cmd
}

func newUnlikeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlike ID REBLOG_KEY",
		Short: "Unlike a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Unlike(cmd.Context(), model.PostRef{ID: args[0], ReblogKey: args[1]}); err != nil {
				return err
			}
			return a.render(result{OK: true, ID: args[0]})
		},
	}
}

func newReblogCmd(a *app) *cobra.Command {
	var state, comment string
	cmd := &cobra.Command{
		Use:   "reblog ID REBLOG_KEY",
		Short: "Reblog a post onto the configured blog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseState(state)
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			id, err := c.Reblog(cmd.Context(), model.PostRef{ID: args[0], ReblogKey: args[1]}, st, comment)
			if err != nil {
				return err
			}
			return a.render(result{OK: true, ID: args[0], ReblogID: id})
		},
	}
	cmd.Flags().StringVar(&state, "state", string(model.StatePublished), "state of the new post (published, draft, queue, private)")
	cmd.Flags().StringVar(&comment, "comment", "", "comment added to the reblog")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID KEY=VALUE...",
		Short: "Edit a post of the configured blog",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Edit(cmd.Context(), args[0], params); err != nil {
				return err
			}
			return a.render(result{OK: true, ID: args[0]})
		},
	}
}

func newFollowersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "followers",
		Short: "Print the followers of the configured blog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := c.Followers(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(doc)
		},
	}
}

func newFollowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "follow URL",
		Short: "Follow a blog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Follow(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.render(result{OK: true, URL: args[0]})
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch URL",
		Short: "Print the body of an unsigned GET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			body, err := c.FetchUnsigned(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = a.out.Write(body)
			return err
		},
	}
}

// archiveReport is printed by archive.
type archiveReport struct {
	Fetched  int         `json:"fetched"`
	Archived int         `json:"archived"`
	Totals   store.Stats `json:"totals"`
}

func newArchiveCmd(a *app) *cobra.Command {
	var offset, pages int
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Save liked posts to the local archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if pages <= 0 {
				return fmt.Errorf("--pages must be positive, got %d", pages)
			}
			s, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			c, err := a.client(ctx)
			if err != nil {
				return err
			}

			var rep archiveReport
			for page := 0; page < pages; page++ {
				posts, err := c.Likes(ctx, offset)
				if err != nil {
					return err
				}
				if len(posts) == 0 {
					break
				}
				n, err := s.SaveLiked(ctx, posts)
				if err != nil {
					return err
				}
				rep.Fetched += len(posts)
				rep.Archived += n
				offset += len(posts)
			}
			a.log.Info().Int("fetched", rep.Fetched).Int("archived", rep.Archived).Msg("Likes archived")

			if rep.Totals, err = s.Stats(ctx); err != nil {
				return err
			}
			return a.render(rep)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "index of the first liked post")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to fetch")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print archive counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			st, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(st)
		},
	}
}

func parseState(s string) (model.State, error) {
	switch st := model.State(strings.ToLower(s)); st {
	case model.StatePublished, model.StateDraft, model.StateQueue, model.StatePrivate:
		return st, nil
	default:
		return "", fmt.Errorf("unknown post state %q", s)
	}
}

// parseParams turns key=value arguments into edit parameters. Repeated keys
// accumulate.
func parseParams(args []string) (url.Values, error) {
	params := url.Values{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed parameter %q, want key=value", arg)
		}
		params.Add(k, v)
	}
	return params, nil
}
