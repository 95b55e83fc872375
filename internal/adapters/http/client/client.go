// Package client talks to the tournament server: REST calls for rows and
// teams, and WebSocket subscriptions for change streams.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/okian/scramble/internal/adapters/http/api"
	"github.com/okian/scramble/internal/adapters/repository"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Client is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	logger logger.Logger
}

// New creates a client for the server at baseURL, e.g. http://host:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse server url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Newf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		dialer: &websocket.Dialer{HandshakeTimeout: defaultTimeout},
		logger: logger.Get().Named("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UpsertScore writes one row and returns the stored version.
func (c *Client) UpsertScore(ctx context.Context, teamID string, hole, strokes int) (model.Score, error) {
	var row model.Score
	err := c.do(ctx, http.MethodPut, "/api/scores", api.UpsertScoreRequest{
		TeamID:     teamID,
		HoleNumber: hole,
		Strokes:    strokes,
	}, &row)
	return row, err
}

// QueryScores returns rows for teamID, or every row when teamID is empty.
func (c *Client) QueryScores(ctx context.Context, teamID string) ([]model.Score, error) {
	path := "/api/scores"
	if teamID != "" {
		path += "?team_id=" + url.QueryEscape(teamID)
	}
	var rows []model.Score
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteScore removes one row.
func (c *Client) DeleteScore(ctx context.Context, teamID string, hole int) error {
	return c.do(ctx, http.MethodDelete, "/api/scores/"+url.PathEscape(teamID)+"/"+strconv.Itoa(hole), nil, nil)
}

// QueryTeams returns every registered team.
func (c *Client) QueryTeams(ctx context.Context) ([]model.Team, error) {
	var teams []model.Team
	if err := c.do(ctx, http.MethodGet, "/api/teams", nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// CreateTeam registers a team.
func (c *Client) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	var created model.Team
	err := c.do(ctx, http.MethodPost, "/api/teams", api.CreateTeamRequest{
		PlayerName:  t.PlayerName,
		PartnerName: t.PartnerName,
		ShirtSize:   string(t.ShirtSize),
		Notes:       t.Notes,
	}, &created)
	return created, err
}

// Course returns the course reference data.
func (c *Client) Course(ctx context.Context) (api.CourseResponse, error) {
	var out api.CourseResponse
	err := c.do(ctx, http.MethodGet, "/api/course", nil, &out)
	return out, err
}

// Leaderboard returns the server's current standings.
func (c *Client) Leaderboard(ctx context.Context) (api.LeaderboardResponse, error) {
	var out api.LeaderboardResponse
	err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, &out)
	return out, err
}

// Check probes GET /healthz. It satisfies connectivity.Checker.
func (c *Client) Check(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// SubscribeScores streams score row changes until ctx ends or the
// connection drops, then closes the channel.
func (c *Client) SubscribeScores(ctx context.Context) (<-chan model.ScoreChange, error) {
	return subscribe[model.ScoreChange](ctx, c, api.MessageScoreChange)
}

// SubscribeTeams streams team changes.
func (c *Client) SubscribeTeams(ctx context.Context) (<-chan model.TeamChange, error) {
	return subscribe[model.TeamChange](ctx, c, api.MessageTeamChange)
}

// SubscribeLeaderboard streams the server's standings.
func (c *Client) SubscribeLeaderboard(ctx context.Context) (<-chan []leaderboard.Entry, error) {
	return subscribe[[]leaderboard.Entry](ctx, c, api.MessageLeaderboard)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%s %s", method, path), ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s %s", method, path), ErrUnavailable)
	}
	return nil
}

// decodeError maps an error response onto the store's sentinels so callers
// can treat the client like a local store.
func decodeError(method, path string, resp *http.Response) error {
	var e api.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
	msg := e.Message
	if msg == "" {
		msg = resp.Status
	}

	var kind error
	switch e.Code {
	case api.CodeInvalidScore:
		kind = repository.ErrInvalidScore
	case api.CodeInvalidTeam, api.CodeBadRequest:
		if strings.Contains(path, "/teams") {
			kind = repository.ErrInvalidTeam
		} else {
			kind = repository.ErrInvalidScore
		}
	case api.CodeTeamNotFound:
		kind = repository.ErrTeamNotFound
	case api.CodeNotFound:
		kind = repository.ErrNotFound
	default:
		if resp.StatusCode >= http.StatusInternalServerError {
			kind = ErrUnavailable
		} else {
			kind = ErrUnexpectedStatus
		}
	}
	return errors.Wrapf(kind, "%s %s: %d %s", method, path, resp.StatusCode, msg)
}

func (c *Client) wsURL() string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// subscribe opens a dedicated connection and forwards frames of msgType.
func subscribe[T any](ctx context.Context, c *Client, msgType string) (<-chan T, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "dial ws"), ErrUnavailable)
	}

	out := make(chan T, 64)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(stop)
		for {
			var m api.Message
			if err := conn.ReadJSON(&m); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn(ctx, "subscription ended", logger.String("type", msgType), logger.Error(err))
				}
				return
			}
			if m.Type != msgType {
				continue
			}
			var v T
			if err := json.Unmarshal(m.Payload, &v); err != nil {
				c.logger.Warn(ctx, "bad frame", logger.String("type", msgType), logger.Error(err))
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
