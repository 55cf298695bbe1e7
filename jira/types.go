/*
types.go - Wire types for the Jira REST API v2 surface we consume

PURPOSE:
  Request/response shapes for the three endpoints the reconciler needs:
  create issue, add comment, transition issue. These mirror Jira's JSON
  contract and stay out of the domain model.
*/
package jira

// =============================================================================
// CREATE ISSUE
// =============================================================================

type createIssueRequest struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Project     projectRef   `json:"project"`
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	IssueType   issueTypeRef `json:"issuetype"`
}

type projectRef struct {
	Key string `json:"key"`
}

type issueTypeRef struct {
	Name string `json:"name"`
}

type createIssueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// =============================================================================
// ADD COMMENT
// =============================================================================

type addCommentRequest struct {
	Body string `json:"body"`
}

// =============================================================================
// TRANSITION ISSUE
// =============================================================================

type transitionRequest struct {
	Transition transitionRef `json:"transition"`
}

type transitionRef struct {
	ID string `json:"id"`
}
