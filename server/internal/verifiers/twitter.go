package verifiers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tasmil/server/internal/models"
	"tasmil/shared/apperr"
	"tasmil/shared/logger"
)

const defaultTwitterAPIBase = "https://api.twitter.com/2"

// TwitterVerifier checks follow/like/retweet tasks against the v2 API.
// The app bearer token is the fallback credential; user tokens take
// priority when the linked account carries one.
type TwitterVerifier struct {
	apiBase     string
	bearerToken string
	client      *http.Client
	log         *logger.Logger
}

func NewTwitterVerifier(apiBase, bearerToken string, appLogger *logger.Logger) *TwitterVerifier {
	if apiBase == "" {
		apiBase = defaultTwitterAPIBase
	}
	return &TwitterVerifier{
		apiBase:     apiBase,
		bearerToken: bearerToken,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         appLogger,
	}
}

func (v *TwitterVerifier) Supports(taskType models.TaskType) bool {
	switch taskType {
	case models.TaskTwitterFollow, models.TaskTwitterLike, models.TaskTwitterRetweet:
		return true
	}
	return false
}

type twitterUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type twitterUserPage struct {
	Data []twitterUser `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

func (v *TwitterVerifier) Verify(ctx context.Context, task *models.Task, account *Account) (*Result, error) {
	cfg, err := task.ParseConfig()
	if err != nil {
		return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Task config is invalid")
	}

	switch task.TaskType {
	case models.TaskTwitterFollow:
		return v.verifyFollow(ctx, cfg, account)
	case models.TaskTwitterLike:
		return v.verifyEngagement(ctx, cfg.TweetID, "liking_users", account)
	case models.TaskTwitterRetweet:
		return v.verifyEngagement(ctx, cfg.TweetID, "retweeted_by", account)
	}
	return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Unsupported twitter task")
}

// verifyFollow walks the target account's followers until the linked user
// shows up or the pages run out.
func (v *TwitterVerifier) verifyFollow(ctx context.Context, cfg models.TaskConfig, account *Account) (*Result, error) {
	targetID := cfg.UserID
	if targetID == "" {
		if cfg.Username == "" {
			return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Task has no twitter target configured")
		}
		resolved, err := v.lookupUser(ctx, cfg.Username, account)
		if err != nil {
			return nil, err
		}
		targetID = resolved
	}

	nextToken := ""
	for page := 0; page < 10; page++ {
		endpoint := fmt.Sprintf("%s/users/%s/followers?max_results=1000", v.apiBase, targetID)
		if nextToken != "" {
			endpoint += "&pagination_token=" + url.QueryEscape(nextToken)
		}
		result, err := v.fetchUserPage(ctx, endpoint, account)
		if err != nil {
			return nil, err
		}
		for _, follower := range result.Data {
			if follower.ID == account.ExternalID {
				return &Result{
					Verified: true,
					Detail:   map[string]any{"provider": "twitter", "action": "follow", "targetId": targetID},
				}, nil
			}
		}
		if result.Meta.NextToken == "" {
			break
		}
		nextToken = result.Meta.NextToken
	}
	return &Result{
		Verified: false,
		Detail:   map[string]any{"provider": "twitter", "action": "follow", "targetId": targetID},
	}, nil
}

func (v *TwitterVerifier) verifyEngagement(ctx context.Context, tweetID, listing string, account *Account) (*Result, error) {
	if tweetID == "" {
		return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Task has no tweet configured")
	}
	action := "like"
	if listing == "retweeted_by" {
		action = "retweet"
	}

	nextToken := ""
	for page := 0; page < 10; page++ {
		endpoint := fmt.Sprintf("%s/tweets/%s/%s?max_results=100", v.apiBase, tweetID, listing)
		if nextToken != "" {
			endpoint += "&pagination_token=" + url.QueryEscape(nextToken)
		}
		result, err := v.fetchUserPage(ctx, endpoint, account)
		if err != nil {
			return nil, err
		}
		for _, user := range result.Data {
			if user.ID == account.ExternalID {
				return &Result{
					Verified: true,
					Detail:   map[string]any{"provider": "twitter", "action": action, "tweetId": tweetID},
				}, nil
			}
		}
		if result.Meta.NextToken == "" {
			break
		}
		nextToken = result.Meta.NextToken
	}
	return &Result{
		Verified: false,
		Detail:   map[string]any{"provider": "twitter", "action": action, "tweetId": tweetID},
	}, nil
}

func (v *TwitterVerifier) lookupUser(ctx context.Context, username string, account *Account) (string, error) {
	username = strings.TrimPrefix(username, "@")
	endpoint := v.apiBase + "/users/by/username/" + url.PathEscape(username)
	body, err := v.doRequest(ctx, endpoint, account)
	if err != nil {
		return "", err
	}
	var payload struct {
		Data twitterUser `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Data.ID == "" {
		return "", apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Could not resolve twitter account "+username)
	}
	return payload.Data.ID, nil
}

func (v *TwitterVerifier) fetchUserPage(ctx context.Context, endpoint string, account *Account) (*twitterUserPage, error) {
	body, err := v.doRequest(ctx, endpoint, account)
	if err != nil {
		return nil, err
	}
	var page twitterUserPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Unexpected twitter response")
	}
	return &page, nil
}

func (v *TwitterVerifier) doRequest(ctx context.Context, endpoint string, account *Account) ([]byte, error) {
	token := v.bearerToken
	if account != nil && account.AccessToken != "" {
		token = account.AccessToken
	}
	if token == "" {
		return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Twitter verification is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn("Twitter request failed", "endpoint", endpoint, "error", err)
		return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", "Could not reach twitter")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperr.New("TWITTER_VERIFICATION_FAILED", "Twitter rate limit hit, try again shortly", http.StatusTooManyRequests)
	}
	if resp.StatusCode != http.StatusOK {
		v.log.Warn("Twitter returned non-200", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, apperr.BadRequest("TWITTER_VERIFICATION_FAILED", fmt.Sprintf("Twitter returned status %d", resp.StatusCode))
	}

	return io.ReadAll(resp.Body)
}
