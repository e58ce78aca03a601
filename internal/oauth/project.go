package oauth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"antigravity2api-go/internal/constants"
	apperrors "antigravity2api-go/internal/errors"
)

// ResolveProjectID finds the cloud project bound to a credential. The
// Resource Manager projects list is consulted first; when that names
// nothing it asks loadCodeAssist, then runs the onboardUser polling flow.
// When all come up empty it surfaces ProjectIDMissing, unless the client
// was built with allow-random, in which case a synthetic id is minted.
func (c *Client) ResolveProjectID(ctx context.Context, accessToken string) (string, error) {
	if id, err := c.resourceManagerProject(ctx, accessToken); err == nil && id != "" {
		return id, nil
	} else if err != nil {
		log.WithError(err).Debug("resource manager project lookup failed")
	}

	if id, err := c.loadCodeAssistProject(ctx, accessToken); err == nil && id != "" {
		return id, nil
	} else if err != nil {
		log.WithError(err).Debug("loadCodeAssist project lookup failed")
	}

	if id, err := c.onboardProject(ctx, accessToken); err == nil && id != "" {
		return id, nil
	} else if err != nil {
		log.WithError(err).Debug("onboardUser project lookup failed")
	}

	if c.allowRandom {
		id := SyntheticProjectID()
		log.WithField("project_id", id).Warn("upstream named no project, using synthetic id")
		return id, nil
	}
	return "", apperrors.ProjectIDMissing()
}

// resourceManagerProject lists the projects visible to the token and picks
// the first active one.
func (c *Client) resourceManagerProject(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.projectsURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("projects list returned HTTP %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	for _, proj := range gjson.GetBytes(payload, "projects").Array() {
		if state := proj.Get("lifecycleState").String(); state != "" && state != "ACTIVE" {
			continue
		}
		if id := proj.Get("projectId").String(); id != "" {
			return id, nil
		}
	}
	return "", nil
}

func (c *Client) loadCodeAssistProject(ctx context.Context, accessToken string) (string, error) {
	body := fmt.Sprintf(`{"metadata":%s}`, constants.ClientMetadata)
	payload, err := c.postAssist(ctx, accessToken, constants.MethodLoadCodeAssist, []byte(body))
	if err != nil {
		return "", err
	}
	return projectFromValue(gjson.GetBytes(payload, "cloudaicompanionProject")), nil
}

// onboardProject starts the default-tier onboarding operation and polls it.
func (c *Client) onboardProject(ctx context.Context, accessToken string) (string, error) {
	tierID := c.defaultTierID(ctx, accessToken)
	body := fmt.Sprintf(`{"tierId":%q,"metadata":%s}`, tierID, constants.ClientMetadata)

	for attempt := 0; attempt < constants.OnboardPollAttempts; attempt++ {
		payload, err := c.postAssist(ctx, accessToken, constants.MethodOnboardUser, []byte(body))
		if err != nil {
			return "", err
		}
		if gjson.GetBytes(payload, "done").Bool() {
			id := projectFromValue(gjson.GetBytes(payload, "response.cloudaicompanionProject"))
			if id == "" {
				return "", fmt.Errorf("onboard completed without a project id")
			}
			return id, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return "", fmt.Errorf("onboard did not complete after %d attempts", constants.OnboardPollAttempts)
}

// defaultTierID picks the tier flagged default by loadCodeAssist, falling
// back to the legacy tier.
func (c *Client) defaultTierID(ctx context.Context, accessToken string) string {
	body := fmt.Sprintf(`{"metadata":%s}`, constants.ClientMetadata)
	payload, err := c.postAssist(ctx, accessToken, constants.MethodLoadCodeAssist, []byte(body))
	if err != nil {
		return constants.DefaultOnboardTierID
	}
	for _, tier := range gjson.GetBytes(payload, "allowedTiers").Array() {
		if tier.Get("isDefault").Bool() {
			if id := tier.Get("id").String(); id != "" {
				return id
			}
		}
	}
	return constants.DefaultOnboardTierID
}

func (c *Client) postAssist(ctx context.Context, accessToken, method string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.assistBase+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", constants.UpstreamUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d: %s", method, resp.StatusCode, truncate(payload, 200))
	}
	return payload, nil
}

// projectFromValue accepts the two shapes the upstream uses: a bare string
// or an object carrying an id.
func projectFromValue(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsObject():
		return v.Get("id").String()
	default:
		return ""
	}
}

// ParseCallbackURL extracts code and state from a pasted OAuth redirect.
func ParseCallbackURL(raw string) (code, state string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", apperrors.BadRequest("unparsable callback URL")
	}
	q := u.Query()
	code = q.Get("code")
	state = q.Get("state")
	if code == "" {
		return "", "", apperrors.BadRequest("callback URL carries no code parameter")
	}
	return code, state, nil
}
