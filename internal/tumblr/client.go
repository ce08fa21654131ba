package tumblr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	"github.com/mikequentel/tumblrclient/internal/config"
	"github.com/mikequentel/tumblrclient/internal/logger"
	"github.com/mikequentel/tumblrclient/internal/model"
	"github.com/mikequentel/tumblrclient/internal/session"
)

// BaseURL is the root of the v2 API. The API is reached over plain HTTP.
const BaseURL = "http://api.tumblr.com/v2/"

// ErrInvalidArgument is returned before any request when a required
// argument is empty.
var ErrInvalidArgument = errors.New("invalid argument")

// Client performs signed calls against the Tumblr v2 API for one account.
type Client struct {
	session *session.Session
	baseURL string
	blog    string
	limit   int
	log     zerolog.Logger
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient sets the client used for every request, including the
// token exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// New validates creds, exchanges the account password for an access token
// and returns a ready client. Nothing is sent when creds are incomplete.
func New(ctx context.Context, creds config.Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: BaseURL,
		blog:    creds.Blog,
		limit:   creds.Limit,
		log:     logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := creds.Validate(); err != nil {
		c.log.Error().Err(err).Msg("invalid credentials")
		return nil, err
	}

	s, err := session.Open(ctx, session.Credentials{
		ConsumerKey:    creds.ConsumerKey,
		ConsumerSecret: creds.ConsumerSecret,
		Account:        creds.Account,
		Password:       creds.Password,
		AccessTokenURL: creds.AccessTokenURL,
	}, session.WithHTTPClient(c.http), session.WithLogger(c.log))
	if err != nil {
		return nil, err
	}
	c.session = s
	return c, nil
}

// Blog is the blog that reblog, edit and followers act on.
func (c *Client) Blog() string { return c.blog }

// Limit is the page size used by Likes.
func (c *Client) Limit() int { return c.limit }

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

func (c *Client) blogEndpoint(path string) string {
	return c.baseURL + "blog/" + url.PathEscape(c.blog) + "/" + path
}

type likesParams struct {
	Offset int `url:"offset"`
	Limit  int `url:"limit"`
}

type reblogParams struct {
	model.PostRef
	State   model.State `url:"state"`
	Comment string      `url:"comment"`
}

type followParams struct {
	URL string `url:"url"`
}

// Unlike removes the like of the referenced post.
func (c *Client) Unlike(ctx context.Context, ref model.PostRef) error {
	log := c.log.With().Str("post_id", ref.ID).Logger()
	log.Info().Msg("Unliking post")

	if !ref.Valid() {
		log.Error().Msg("Error unliking post: missing id or reblog key")
		return fmt.Errorf("unlike: %w: post id and reblog key are required", ErrInvalidArgument)
	}
	if _, err := c.call(ctx, http.MethodPost, c.endpoint("user/unlike"), ref); err != nil {
		log.Error().Err(err).Msg("Error unliking post")
		return fmt.Errorf("unliking post %s: %w", ref.ID, err)
	}

	log.Info().Msg("Post unliked successfully")
	return nil
}

// Likes returns one page of the account's liked posts starting at offset.
// The page size is the configured limit.
func (c *Client) Likes(ctx context.Context, offset int) ([]model.Post, error) {
	c.log.Info().Int("offset", offset).Int("limit", c.limit).Msg("Downloading user likes")

	raw, err := c.call(ctx, http.MethodPost, c.endpoint("user/likes"), likesParams{Offset: offset, Limit: c.limit})
	if err != nil {
		c.log.Error().Err(err).Msg("Error downloading user likes")
		return nil, fmt.Errorf("downloading likes: %w", err)
	}
	env, err := decodeEnvelope[model.Likes](raw)
	if err != nil {
		c.log.Error().Err(err).Msg("Error downloading user likes")
		return nil, fmt.Errorf("downloading likes: %w", err)
	}

	if env.Response.LikedPosts == nil {
		perr := &ParseError{Body: raw, Err: errors.New("response.liked_posts: missing")}
		c.log.Error().Err(perr).Msg("Error downloading user likes")
		return nil, fmt.Errorf("downloading likes: %w", perr)
	}
	posts := *env.Response.LikedPosts

	c.log.Info().Int("liked_count", env.Response.LikedCount).Msg("Liked posts")
	c.log.Info().Int("fetched", len(posts)).Msg("Posts fetched")
	return posts, nil
}

// Reblog reblogs the referenced post onto the configured blog and returns
// the id of the new post.
func (c *Client) Reblog(ctx context.Context, ref model.PostRef, state model.State, comment string) (int64, error) {
	log := c.log.With().Str("post_id", ref.ID).Logger()
	log.Info().Str("state", string(state)).Msg("Submitting post")

	if !ref.Valid() {
		log.Error().Msg("Error submitting post: missing id or reblog key")
		return 0, fmt.Errorf("reblog: %w: post id and reblog key are required", ErrInvalidArgument)
	}
	raw, err := c.call(ctx, http.MethodPost, c.blogEndpoint("post/reblog"), reblogParams{
		PostRef: ref,
		State:   state,
		Comment: comment,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error submitting post")
		return 0, fmt.Errorf("reblogging post %s: %w", ref.ID, err)
	}
	env, err := decodeEnvelope[model.Reblogged](raw)
	if err != nil {
		log.Error().Err(err).Msg("Error submitting post")
		return 0, fmt.Errorf("reblogging post %s: %w", ref.ID, err)
	}
	id, err := env.Response.PostID()
	if err != nil {
		perr := &ParseError{Body: raw, Err: fmt.Errorf("response.id: %w", err)}
		log.Error().Err(perr).Msg("Error submitting post")
		return 0, fmt.Errorf("reblogging post %s: %w", ref.ID, perr)
	}

	log.Info().Int64("reblog_id", id).Msg("Post submitted")
	return id, nil
}

// Edit changes the post id on the configured blog with the given
// parameters. params is not modified.
func (c *Client) Edit(ctx context.Context, id string, params url.Values) error {
	form := make(url.Values, len(params)+1)
	for k, v := range params {
		form[k] = append([]string(nil), v...)
	}
	form.Set("id", id)

	log := c.log.With().Str("post_id", id).Logger()
	log.Info().Str("params", form.Encode()).Msg("Edit post")

	if id == "" {
		log.Error().Msg("Error editing post: missing id")
		return fmt.Errorf("edit: %w: post id is required", ErrInvalidArgument)
	}
	if _, err := c.sendRaw(ctx, http.MethodPost, c.blogEndpoint("post/edit"), form); err != nil {
		log.Error().Err(err).Msg("Error editing post")
		return fmt.Errorf("editing post %s: %w", id, err)
	}

	log.Info().Msg("Post edited")
	return nil
}

// Followers returns the followers document of the configured blog as
// received.
func (c *Client) Followers(ctx context.Context) (Document, error) {
	log := c.log.With().Str("blog", c.blog).Logger()
	log.Info().Msg("Retrieving blog followers")

	raw, err := c.session.Request(ctx, http.MethodGet, c.blogEndpoint("followers"), nil)
	if err != nil {
		log.Error().Err(err).Msg("Error retrieving blog followers")
		return nil, fmt.Errorf("retrieving followers of %s: %w", c.blog, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		log.Error().Err(err).Msg("Error retrieving blog followers")
		return nil, fmt.Errorf("retrieving followers of %s: %w", c.blog, err)
	}

	log.Info().Msg("Blog followers were retrieved successfully")
	return doc, nil
}

// Follow makes the account follow the blog at blogURL.
func (c *Client) Follow(ctx context.Context, blogURL string) error {
	log := c.log.With().Str("blog_url", blogURL).Logger()
	log.Info().Msg("Requesting follow blog")

	if blogURL == "" {
		log.Error().Msg("Error following blog: missing url")
		return fmt.Errorf("follow: %w: blog url is required", ErrInvalidArgument)
	}
	if _, err := c.call(ctx, http.MethodPost, c.endpoint("user/follow"), followParams{URL: blogURL}); err != nil {
		log.Error().Err(err).Msg("Error following blog")
		return fmt.Errorf("following blog %s: %w", blogURL, err)
	}

	log.Info().Msg("Following blog")
	return nil
}

// FetchUnsigned performs a plain GET of rawURL without signing it.
func (c *Client) FetchUnsigned(ctx context.Context, rawURL string) ([]byte, error) {
	c.log.Info().Str("url", rawURL).Msg("Fetching unsigned")
	body, err := c.session.RequestUnsigned(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.log.Error().Err(err).Str("url", rawURL).Msg("Error fetching unsigned")
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	return body, nil
}

// call encodes params with their url tags and sends them.
func (c *Client) call(ctx context.Context, method, rawURL string, params any) ([]byte, error) {
	form, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}
	return c.sendRaw(ctx, method, rawURL, form)
}

// sendRaw returns the body once it is known to be well-formed JSON.
func (c *Client) sendRaw(ctx context.Context, method, rawURL string, form url.Values) ([]byte, error) {
	raw, err := c.session.Request(ctx, method, rawURL, form)
	if err != nil {
		return nil, err
	}
	var v any
	if err := decode(raw, &v); err != nil {
		return nil, err
	}
	return raw, nil
}
