/*
Package jira adapts the Jira REST API v2 to the reconcile.TicketService
capability.

PURPOSE:
  The production implementation of the three ticket operations: create an
  issue for a transaction's error, comment an updated error onto an
  existing issue, and transition an issue to its terminal state.

ENDPOINTS:
  POST {base}/issue                    Create issue
  POST {base}/issue/{key}/comment      Add comment
  POST {base}/issue/{key}/transitions  Transition (close)

AUTHENTICATION:
  HTTP Basic with username + API token on every request. Credentials come
  from Config; nothing here is process-global.

FAILURE CONTRACT:
  Calls are synchronous and one-shot. Any transport error or non-2xx
  response comes back as a *reconcile.ServiceError and is never retried
  here: retry policy belongs to the caller's next batch, not the adapter.

TRANSITION ID:
  The close transition identifier is opaque configuration. Nothing
  validates that it names a terminal state in the target workflow; the
  default "31" is the conventional "Done" transition on a stock Jira
  workflow.

SEE ALSO:
  - types.go: Wire shapes
  - reconcile/ticketservice.go: The interface implemented here
*/
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/warp/ticketsync/reconcile"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds everything the adapter needs to reach one Jira project.
type Config struct {
	// BaseURL is the REST v2 root, e.g. "https://jira.example.com/rest/api/2".
	BaseURL string `yaml:"base_url"`

	// Username and APIToken authenticate via HTTP Basic.
	Username string `yaml:"username"`
	APIToken string `yaml:"api_token"`

	// ProjectKey is the project new issues are created in.
	ProjectKey string `yaml:"project_key"`

	// IssueType names the issue type for created tickets. Default "Bug".
	IssueType string `yaml:"issue_type"`

	// TransitionID is the workflow transition used to close a ticket.
	// Opaque; default "31".
	TransitionID string `yaml:"transition_id"`

	// TimeoutSeconds bounds each HTTP call. Default 15.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.IssueType == "" {
		out.IssueType = "Bug"
	}
	if out.TransitionID == "" {
		out.TransitionID = "31"
	}
	if out.TimeoutSeconds == 0 {
		out.TimeoutSeconds = 15
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	return out
}

// =============================================================================
// CLIENT
// =============================================================================

// Client implements reconcile.TicketService against one Jira instance.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client from explicit configuration.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// CreateTicket opens an issue for the transaction's error and returns the
// service-assigned key.
func (c *Client) CreateTicket(ctx context.Context, report reconcile.TransactionReport) (reconcile.IssueKey, error) {
	payload := createIssueRequest{
		Fields: issueFields{
			Project:     projectRef{Key: c.cfg.ProjectKey},
			Summary:     fmt.Sprintf("Issue for Transaction ID: %s", report.TransactionID),
			Description: describeReport(report),
			IssueType:   issueTypeRef{Name: c.cfg.IssueType},
		},
	}

	var resp createIssueResponse
	if err := c.post(ctx, "create", "", c.cfg.BaseURL+"/issue", payload, &resp); err != nil {
		return "", err
	}
	return reconcile.IssueKey(resp.Key), nil
}

// AddComment appends the updated error text to an existing issue.
func (c *Client) AddComment(ctx context.Context, key reconcile.IssueKey, errorMessage string) error {
	payload := addCommentRequest{
		Body: "Updated Error Message:\n" + errorMessage,
	}
	url := fmt.Sprintf("%s/issue/%s/comment", c.cfg.BaseURL, key)
	return c.post(ctx, "comment", key, url, payload, nil)
}

// CloseTicket transitions an issue using the configured transition id.
func (c *Client) CloseTicket(ctx context.Context, key reconcile.IssueKey) error {
	payload := transitionRequest{
		Transition: transitionRef{ID: c.cfg.TransitionID},
	}
	url := fmt.Sprintf("%s/issue/%s/transitions", c.cfg.BaseURL, key)
	return c.post(ctx, "transition", key, url, payload, nil)
}

// describeReport builds the issue description: the error text, plus the
// transaction amount when the report carries one.
func describeReport(report reconcile.TransactionReport) string {
	if report.Amount.IsZero() {
		return report.ErrorMessage
	}
	desc := report.ErrorMessage + "\n\nTransaction amount: " + report.Amount.String()
	if report.Currency != "" {
		desc += " " + report.Currency
	}
	return desc
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

// post sends one authenticated JSON request. A non-2xx status or transport
// failure becomes a *reconcile.ServiceError; when out is non-nil the 2xx
// response body is decoded into it.
func (c *Client) post(ctx context.Context, op string, key reconcile.IssueKey, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &reconcile.ServiceError{Op: op, IssueKey: key, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &reconcile.ServiceError{Op: op, IssueKey: key, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return &reconcile.ServiceError{Op: op, IssueKey: key, Cause: err}
	}
	defer resp.Body.Close()

	// Snippet only: Jira error bodies can be large and we just log them.
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &reconcile.ServiceError{
			Op:         op,
			IssueKey:   key,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &reconcile.ServiceError{Op: op, IssueKey: key, Cause: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}
