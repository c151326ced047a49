// Package googletasks implements the store.Store interface using the
// Google Tasks API.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"remindsync/internal/config"
	"remindsync/internal/store"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// OAuth scope for Google Tasks.
	tasksScope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Client implements store.Store using the Google Tasks API.
//
// Lists map to tasklists and items to tasks. The Tasks API has no list
// color and no cross-list move; color is accepted and dropped, and moves
// are implemented as insert-into-target followed by delete-from-source.
type Client struct {
	svc *tasks.Service
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}

	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}

	// Token source auto-refreshes; a stale handle is recovered by the
	// health monitor recreating the whole client through the factory.
	tokenSource := oauthConfig.TokenSource(ctx, &token)
	httpClient := oauth2.NewClient(ctx, tokenSource)

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// Factory returns a store.Factory that builds clients from cfg. Each call
// re-reads credentials, so a recreated handle picks up a refreshed token.
func Factory(cfg *config.Config) store.Factory {
	return func(ctx context.Context) (store.Store, error) {
		return New(ctx, cfg)
	}
}

// ListAll implements store.Store.
func (c *Client) ListAll(ctx context.Context) ([]store.List, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []store.List
	err := c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			result = append(result, store.List{
				ExternalID: list.Id,
				Title:      list.Title,
			})
		}
		return nil
	})
	if err != nil {
		return nil, classify("ListAll", err)
	}
	return result, nil
}

// CreateList implements store.Store. colorHex is dropped; the Tasks API
// has no list color.
func (c *Client) CreateList(ctx context.Context, title, colorHex string) (store.List, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := c.svc.Tasklists.Insert(&tasks.TaskList{Title: title}).Context(ctx).Do()
	if err != nil {
		return store.List{}, classify("CreateList", err)
	}
	return store.List{ExternalID: created.Id, Title: created.Title, ColorHex: colorHex}, nil
}

// UpdateList implements store.Store.
func (c *Client) UpdateList(ctx context.Context, listID, title, colorHex string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	_, err := c.svc.Tasklists.Patch(listID, &tasks.TaskList{Title: title}).Context(ctx).Do()
	if err != nil {
		return classify("UpdateList", err)
	}
	return nil
}

// DeleteList implements store.Store.
func (c *Client) DeleteList(ctx context.Context, listID string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasklists.Delete(listID).Context(ctx).Do(); err != nil {
		return classify("DeleteList", err)
	}
	return nil
}

// ListItems implements store.Store. Completed and hidden tasks are
// included; the engine owns the completion flag.
func (c *Client) ListItems(ctx context.Context, listID string) ([]store.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []store.Item
	call := c.svc.Tasks.List(listID).
		MaxResults(100).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false)
	err := call.Pages(ctx, func(resp *tasks.Tasks) error {
		for _, t := range resp.Items {
			result = append(result, fromAPITask(listID, t))
		}
		return nil
	})
	if err != nil {
		return nil, classify("ListItems", err)
	}
	return result, nil
}

// UpsertItem implements store.Store.
func (c *Client) UpsertItem(ctx context.Context, item store.Item) (store.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	apiTask := toAPITask(item)
	var (
		stored *tasks.Task
		err    error
	)
	if item.ExternalID == "" {
		stored, err = c.svc.Tasks.Insert(item.ListExternalID, apiTask).Context(ctx).Do()
	} else {
		stored, err = c.svc.Tasks.Patch(item.ListExternalID, item.ExternalID, apiTask).Context(ctx).Do()
	}
	if err != nil {
		return store.Item{}, classify("UpsertItem", err)
	}
	return fromAPITask(item.ListExternalID, stored), nil
}

// MoveItem implements store.Store. The Tasks API cannot move a task
// between tasklists, so the item is reinserted in the target list and
// deleted from the source. The returned item carries the new ID.
func (c *Client) MoveItem(ctx context.Context, itemID, fromListID, toListID string) (store.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	current, err := c.svc.Tasks.Get(fromListID, itemID).Context(ctx).Do()
	if err != nil {
		return store.Item{}, classify("MoveItem", err)
	}

	inserted, err := c.svc.Tasks.Insert(toListID, &tasks.Task{
		Title:  current.Title,
		Notes:  current.Notes,
		Status: current.Status,
		Due:    current.Due,
	}).Context(ctx).Do()
	if err != nil {
		return store.Item{}, classify("MoveItem", err)
	}

	// Best-effort: the copy exists either way, and a leftover source item
	// is cleaned up by orphan collection on the next pass.
	if err := c.svc.Tasks.Delete(fromListID, itemID).Context(ctx).Do(); err != nil {
		if cerr := classify("MoveItem", err); !store.IsNotFound(cerr) {
			return store.Item{}, cerr
		}
	}

	return fromAPITask(toListID, inserted), nil
}

// DeleteItem implements store.Store.
func (c *Client) DeleteItem(ctx context.Context, listID, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(listID, itemID).Context(ctx).Do(); err != nil {
		return classify("DeleteItem", err)
	}
	return nil
}

func toAPITask(item store.Item) *tasks.Task {
	t := &tasks.Task{
		Id:    item.ExternalID,
		Title: item.Title,
		Notes: item.Notes,
	}
	if item.IsCompleted {
		t.Status = statusCompleted
	} else {
		t.Status = statusNeedsAction
		// Clearing completion requires nulling the completed timestamp.
		t.NullFields = append(t.NullFields, "Completed")
	}
	if item.DueAt != nil {
		t.Due = item.DueAt.UTC().Format(time.RFC3339)
	}
	return t
}

func fromAPITask(listID string, t *tasks.Task) store.Item {
	item := store.Item{
		ExternalID:     t.Id,
		ListExternalID: listID,
		Title:          t.Title,
		Notes:          t.Notes,
		IsCompleted:    t.Status == statusCompleted,
	}
	if t.Due != "" {
		if due, err := time.Parse(time.RFC3339, t.Due); err == nil {
			item.DueAt = &due
		}
	}
	return item
}

// classify maps API failures onto the store error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return store.NewError(store.PermissionDenied, op, err)
		case http.StatusNotFound, http.StatusGone:
			return store.NewError(store.NotFound, op, err)
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return store.NewError(store.Transient, op, err)
		}
		return store.NewError(store.Unknown, op, err)
	}

	// A per-call deadline that fired looks like a transport failure.
	// Caller-initiated cancellation is not retryable.
	if errors.Is(err, context.Canceled) {
		return store.NewError(store.Unknown, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return store.NewError(store.Transient, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return store.NewError(store.Transient, op, err)
	}

	return store.NewError(store.Unknown, op, err)
}
