package main

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mikequentel/tumblrclient/internal/model"
	"github.com/mikequentel/tumblrclient/internal/store"
)

// requeueReport is printed by requeue.
type requeueReport struct {
	RunID     string `json:"run_id"`
	DryRun    bool   `json:"dry_run,omitempty"`
	Done      bool   `json:"done"`
	ID        string `json:"id,omitempty"`
	ReblogKey string `json:"reblog_key,omitempty"`
	BlogName  string `json:"blog_name,omitempty"`
	Summary   string `json:"summary,omitempty"`
	State     string `json:"state,omitempty"`
	ReblogID  int64  `json:"reblog_id,omitempty"`
	Resumed   bool   `json:"resumed,omitempty"`
}

func newRequeueCmd(a *app) *cobra.Command {
	var (
		state, comment string
		dryRun         bool
	)
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Reblog the oldest archived like, then unlike it",
		Long: `requeue takes the oldest archived like that has not been reblogged yet,
reblogs it onto the configured blog and then unlikes it. Both steps
are recorded in the archive. A post whose unlike failed on an earlier run
is picked first and only unliked. With --dry-run nothing is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := parseState(state)
			if err != nil {
				return err
			}

			rep := requeueReport{RunID: uuid.NewString(), DryRun: dryRun, State: string(st)}
			log := a.log.With().Str("run_id", rep.RunID).Logger()

			s, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.NextPending(ctx)
			if errors.Is(err, store.ErrNoPending) {
				log.Info().Msg("Nothing to requeue")
				return a.render(rep)
			}
			if err != nil {
				return err
			}
			rep.ID, rep.ReblogKey = e.Ref.ID, e.Ref.ReblogKey
			rep.BlogName, rep.Summary = e.BlogName, e.Summary
			rep.Resumed = !e.RebloggedAt.IsZero()
			log = log.With().Str("post_id", e.Ref.ID).Logger()

			if dryRun {
				log.Info().Msg("Dry run, no network calls")
				return a.render(rep)
			}

			c, err := a.client(ctx)
			if err != nil {
				return err
			}

			if rep.Resumed {
				// reblogged by an earlier run whose unlike failed
				rep.ReblogID = e.ReblogID
				log.Info().Int64("reblog_id", rep.ReblogID).Msg("Already reblogged, resuming unlike")
			} else {
				rep.ReblogID, err = c.Reblog(ctx, e.Ref, st, comment)
				if err != nil {
					return err
				}
				if err := s.MarkReblogged(ctx, e.Ref.ID, rep.ReblogID); err != nil {
					return err
				}
				log.Info().Int64("reblog_id", rep.ReblogID).Msg("Marked as reblogged")
			}

			if err := c.Unlike(ctx, e.Ref); err != nil {
				return err
			}
			if err := s.MarkUnliked(ctx, e.Ref.ID); err != nil {
				return err
			}
			log.Info().Str("at", time.Now().Format(time.RFC3339)).Msg("Marked as unliked")

			rep.Done = true
			return a.render(rep)
		},
	}
	cmd.Flags().StringVar(&state, "state", string(model.StateQueue), "state of the new post (published, draft, queue, private)")
	cmd.Flags().StringVar(&comment, "comment", "", "comment added to the reblog")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the next post without calling the API")
	return cmd
}
