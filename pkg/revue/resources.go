package revue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Stage selects which issues are returned.
type Stage string

const (
	// StageDefault requests the plain issues collection.
	StageDefault Stage = ""
	// StageLatest requests the most recently sent issue.
	StageLatest Stage = "latest"
	// StageCurrent requests the issue currently being drafted.
	StageCurrent Stage = "current"
)

// ParseStage converts s to a Stage. The empty string selects StageDefault.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if _, err := stage.path(); err != nil {
		return "", err
	}
	return stage, nil
}

func (s Stage) path() (string, error) {
	switch s {
	case StageDefault:
		return "issues", nil
	case StageLatest, StageCurrent:
		return "issues/" + string(s), nil
	default:
		return "", fmt.Errorf("%w: path %s is not available", ErrInvalidArgument, string(s))
	}
}

// ValidateEmail reports whether email is a well-formed address.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: email address %s is invalid", ErrInvalidArgument, email)
	}
	return nil
}

// Lists returns every subscriber list of the account.
//
// API: GET /lists
func (c *Client) Lists(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Path: "lists"})
}

// ListByID returns a single list. An empty id requests the whole collection.
//
// API: GET /lists/{id}
//
// Errors:
//   - 404 Not Found: If the list does not exist.
func (c *Client) ListByID(ctx context.Context, id string) (*Response, error) {
	if id == "" {
		return c.Lists(ctx)
	}
	return c.Do(ctx, Request{Path: "lists/" + url.PathEscape(id)})
}

// ExportByID returns a single export together with its download links.
//
// API: GET /exports/{id}
//
// Errors:
//   - 404 Not Found: If the export does not exist.
func (c *Client) ExportByID(ctx context.Context, id string) (*Response, error) {
	return c.Do(ctx, Request{Path: "exports/" + url.PathEscape(id)})
}

// Exports returns all exports, reshaped from tuples into records keyed by ExportKeys.
//
// The returned Response carries the reshaped body; AsJSON and AsValue both see
// the keyed form.
//
// API: GET /exports
//
// Errors:
//   - ErrShapeMismatch: If a tuple does not hold exactly len(ExportKeys) values.
func (c *Client) Exports(ctx context.Context) (*Response, error) {
	resp, err := c.RawExports(ctx)
	if err != nil {
		return nil, err
	}

	reshaped, err := ReshapeExports(resp.body)
	if err != nil {
		return nil, err
	}

	return resp.withBody(reshaped), nil
}

// RawExports returns all exports as sent by Revue, one positional tuple per export.
//
// API: GET /exports
func (c *Client) RawExports(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Path: "exports"})
}

// ExportList starts an export of the subscribers of one list.
//
// API: POST /exports/lists/{id}
func (c *Client) ExportList(ctx context.Context, listID string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "exports/lists/" + url.PathEscape(listID)})
}

// Issues returns issues. StageDefault requests the whole collection; any
// stage other than StageLatest or StageCurrent fails before a request is sent.
//
// API: GET /issues, GET /issues/{stage}
//
// Errors:
//   - ErrInvalidArgument: If stage is not a known stage.
func (c *Client) Issues(ctx context.Context, stage Stage) (*Response, error) {
	path, err := stage.path()
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, Request{Path: path})
}

// Subscribers returns the active subscribers.
//
// API: GET /subscribers
func (c *Client) Subscribers(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Path: "subscribers"})
}

// Subscribe adds a subscriber. fields are sent alongside the address, e.g.
// first_name, last_name or double_opt_in. An email key in fields is replaced
// by the validated address.
//
// API: POST /subscribers
//
// Idempotency: Not idempotent
//
// Errors:
//   - ErrInvalidArgument: If email is not a valid address.
//   - 422 Unprocessable Entity: If Revue rejects the subscriber.
func (c *Client) Subscribe(ctx context.Context, email string, fields map[string]any) (*Response, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["email"] = email

	return c.Do(ctx, Request{Method: http.MethodPost, Path: "subscribers", JSON: payload})
}

// Unsubscribed returns the subscribers who left the newsletter.
//
// API: GET /subscribers/unsubscribed
func (c *Client) Unsubscribed(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Path: "subscribers/unsubscribed"})
}

// Me returns the profile of the account the token belongs to.
//
// API: GET /accounts/me
//
// Errors:
//   - 401 Unauthorized: If the token is missing or revoked.
func (c *Client) Me(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Path: "accounts/me"})
}

// Items returns the items of the current issue.
//
// API: GET /items
func (c *Client) Items(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Path: "items"})
}

// AddItems attaches an item to an issue. data is sent form-encoded; a nil
// data sends an empty form.
//
// API: POST /issues/{id}/items
//
// Idempotency: Not idempotent
func (c *Client) AddItems(ctx context.Context, issueID string, data url.Values) (*Response, error) {
	if data == nil {
		data = url.Values{}
	}
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "issues/" + url.PathEscape(issueID) + "/items",
		Form:   data,
	})
}
