// Package github resolves hook repository revisions against the
// GitHub API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

const (
	// requestTimeout bounds every API call.
	requestTimeout = 30 * time.Second

	// requestRate keeps resolution well under the unauthenticated
	// API quota.
	requestRate = 1.2
)

// Ensure Resolver implements the interface.
var _ driven.RevisionResolver = (*Resolver)(nil)

// Resolver looks up repository revisions through the GitHub API.
// Unauthenticated use works for public hook repositories; a token
// raises the rate limit.
type Resolver struct {
	gh      *gh.Client
	limiter *rate.Limiter
}

// NewResolver creates a resolver. token may be empty.
func NewResolver(token string) *Resolver {
	httpClient := &http.Client{Timeout: requestTimeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = requestTimeout
	}

	return &Resolver{
		gh:      gh.NewClient(httpClient),
		limiter: rate.NewLimiter(rate.Limit(requestRate), 1),
	}
}

// LatestRevision returns the newest release tag of repoURL, falling
// back to the newest tag for repositories that publish no releases.
func (r *Resolver) LatestRevision(ctx context.Context, repoURL string) (string, error) {
	owner, name, err := splitRepoURL(repoURL)
	if err != nil {
		return "", err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	release, resp, err := r.gh.Repositories.GetLatestRelease(ctx, owner, name)
	if err == nil {
		return release.GetTagName(), nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return "", fmt.Errorf("resolving latest release of %s/%s: %w", owner, name, err)
	}

	// No releases published; the newest tag is the next best pin.
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	tags, _, err := r.gh.Repositories.ListTags(ctx, owner, name, &gh.ListOptions{PerPage: 1})
	if err != nil {
		return "", fmt.Errorf("listing tags of %s/%s: %w", owner, name, err)
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("%s/%s has no releases or tags", owner, name)
	}
	return tags[0].GetName(), nil
}

// RevisionExists reports whether rev resolves to a commit in repoURL.
func (r *Resolver) RevisionExists(ctx context.Context, repoURL, rev string) (bool, error) {
	owner, name, err := splitRepoURL(repoURL)
	if err != nil {
		return false, err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return false, err
	}
	_, resp, err := r.gh.Repositories.GetCommitSHA1(ctx, owner, name, rev, "")
	if err == nil {
		return true, nil
	}
	if resp != nil && (resp.StatusCode == http.StatusNotFound ||
		resp.StatusCode == http.StatusUnprocessableEntity) {
		return false, nil
	}
	return false, fmt.Errorf("resolving %s in %s/%s: %w", rev, owner, name, err)
}

// splitRepoURL extracts owner and repository name from a GitHub URL.
func splitRepoURL(repoURL string) (owner, name string, err error) {
	trimmed := strings.TrimSuffix(repoURL, ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "git@github.com:"} {
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(trimmed, prefix), "/")
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}
	return "", "", fmt.Errorf("not a GitHub repository URL: %s", repoURL)
}
