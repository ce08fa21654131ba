// tumblrclient drives the Tumblr v2 API for one account from the command
// line. Credentials come from tumblrclient.config next to the executable,
// or the file named by --config, with TUMBLRCLIENT_* environment overrides.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mikequentel/tumblrclient/internal/config"
	"github.com/mikequentel/tumblrclient/internal/logger"
	"github.com/mikequentel/tumblrclient/internal/store"
	"github.com/mikequentel/tumblrclient/internal/tumblr"
)

var version = "dev" // set by the linker

const defaultDB = "./tumblrclient.sqlite"

func main() {
	if err := newRootCmd(newApp(os.Stdout)).Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}

// app carries the state shared by every command.
type app struct {
	cfgFile string
	dbPath  string
	format  string

	out  io.Writer
	http *http.Client
	log  zerolog.Logger
}

func newApp(out io.Writer) *app {
	return &app{out: out, log: logger.Get()}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tumblrclient",
		Short: "Manage the likes, reblogs and follows of a Tumblr account.",
		Long: `tumblrclient signs in with xAuth and calls the Tumblr v2 API.

Likes can be archived to a local sqlite database and requeued one at a
time: the oldest archived like is reblogged to the configured blog and
then unliked.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.format {
			case "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want json or yaml)", a.format)
			}
		},
	}
	cmd.Version = version

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is "+config.FileName+" next to the executable)")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", defaultDB, "likes archive (sqlite)")
	cmd.PersistentFlags().StringVar(&a.format, "format", "json", `output format ("json", "yaml")`)

	cmd.AddCommand(
		newLikesCmd(a),
		newUnlikeCmd(a),
		newReblogCmd(a),
		newEditCmd(a),
		newFollowersCmd(a),
		newFollowCmd(a),
		newFetchCmd(a),
		newArchiveCmd(a),
		newStatsCmd(a),
		newRequeueCmd(a),
	)
	return cmd
}

// client loads the credentials and signs in.
func (a *app) client(ctx context.Context) (*tumblr.Client, error) {
	creds, err := config.Load(a.cfgFile)
	if err != nil {
		a.log.Error().Err(err).Msg("Error loading configuration")
		return nil, err
	}
	return tumblr.New(ctx, creds, tumblr.WithHTTPClient(a.http), tumblr.WithLogger(a.log))
}

func (a *app) store(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.dbPath)
}

// render writes v as indented JSON, or as YAML converted from that JSON.
func (a *app) render(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if a.format == "yaml" {
		if b, err = yaml.JSONToYAML(b); err != nil {
			return err
		}
	} else {
		b = append(b, '\n')
	}
	_, err = a.out.Write(b)
	return err
}
