// Package twitter fetches public account metrics through Twitter's
// syndication endpoints, which need no API credentials.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"pulseboard/internal/tracker"
	"pulseboard/pkg/config"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/logger"
)

// Tweets sampled for the engagement rate. More adds latency without
// changing the signal much.
const engagementSampleSize = 5

// Client talks to the syndication endpoints.
type Client struct {
	httpClient     *httputil.Client
	logger         *logger.Logger
	baseURL        string
	syndicationURL string
	limiter        *rate.Limiter
}

// NewClient creates a Twitter client from config.
func NewClient(httpClient *httputil.Client, log *logger.Logger, cfg config.TwitterConfig) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient:     httpClient,
		logger:         log.WithField("module", "twitter"),
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		syndicationURL: strings.TrimRight(cfg.SyndicationURL, "/"),
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// followInfo is one element of the followbutton info response.
type followInfo struct {
	ScreenName     string `json:"screen_name"`
	Name           string `json:"name"`
	FollowersCount int64  `json:"followers_count"`
	Verified       bool   `json:"verified"`
	Protected      bool   `json:"protected"`
}

// Fetch returns a snapshot of the account's current public metrics. The
// caller stamps Username and ObservedAt.
func (c *Client) Fetch(ctx context.Context, username string) (tracker.AccountSnapshot, error) {
	info, err := c.fetchFollowInfo(ctx, username)
	if err != nil {
		return tracker.AccountSnapshot{}, err
	}

	snap := tracker.AccountSnapshot{
		Username:    info.ScreenName,
		DisplayName: info.Name,
		Verified:    info.Verified,
		Followers:   info.FollowersCount,
	}

	// Timeline is best effort: bio and engagement degrade to zero
	// values when the endpoint is flaky
	profile, err := c.fetchTimeline(ctx, username)
	if err != nil {
		c.logger.WithError(err).WithField("username", username).Warn("Timeline fetch failed, snapshot has no engagement data")
		return snap, nil
	}

	snap.Bio = profile.bio
	snap.Following = profile.following
	snap.Posts = profile.posts
	snap.EngagementRate = engagementRate(profile.tweets, info.FollowersCount)
	return snap, nil
}

// fetchFollowInfo queries the followbutton endpoint for follower counts.
func (c *Client) fetchFollowInfo(ctx context.Context, username string) (followInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return followInfo{}, err
	}

	reqURL := fmt.Sprintf("%s/widgets/followbutton/info.json?screen_names=%s",
		c.baseURL, url.QueryEscape(username))

	resp, err := c.httpClient.Get(ctx, reqURL)
	if err != nil {
		return followInfo{}, fmt.Errorf("follow info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return followInfo{}, fmt.Errorf("follow info: unexpected status code: %d", resp.StatusCode)
	}

	var infos []followInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return followInfo{}, fmt.Errorf("follow info: decode failed: %w", err)
	}
	if len(infos) == 0 {
		return followInfo{}, fmt.Errorf("follow info: no data for %s", username)
	}
	return infos[0], nil
}

type timelineProfile struct {
	bio       string
	following int64
	posts     int64
	tweets    []tweetStats
}

type tweetStats struct {
	Likes    int64
	Retweets int64
	Replies  int64
}

// nextData mirrors the embedded JSON of the timeline-profile page.
type nextData struct {
	Props struct {
		PageProps struct {
			Timeline struct {
				Entries []struct {
					Content struct {
						Tweet struct {
							FavoriteCount int64 `json:"favorite_count"`
							RetweetCount  int64 `json:"retweet_count"`
							ReplyCount    int64 `json:"reply_count"`
							User          struct {
								Description   string `json:"description"`
								FriendsCount  int64  `json:"friends_count"`
								StatusesCount int64  `json:"statuses_count"`
							} `json:"user"`
						} `json:"tweet"`
					} `json:"content"`
				} `json:"entries"`
			} `json:"timeline"`
		} `json:"pageProps"`
	} `json:"props"`
}

// fetchTimeline scrapes the timeline-profile page and parses the
// embedded JSON payload out of the HTML.
func (c *Client) fetchTimeline(ctx context.Context, username string) (timelineProfile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return timelineProfile{}, err
	}

	reqURL := fmt.Sprintf("%s/srv/timeline-profile/screen-name/%s",
		c.syndicationURL, url.PathEscape(username))

	resp, err := c.httpClient.Get(ctx, reqURL)
	if err != nil {
		return timelineProfile{}, fmt.Errorf("timeline request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return timelineProfile{}, fmt.Errorf("timeline: unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return timelineProfile{}, fmt.Errorf("timeline: parse failed: %w", err)
	}

	raw := doc.Find("script#__NEXT_DATA__").Text()
	if raw == "" {
		return timelineProfile{}, fmt.Errorf("timeline: no embedded data for %s", username)
	}

	var data nextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return timelineProfile{}, fmt.Errorf("timeline: decode failed: %w", err)
	}

	var profile timelineProfile
	for _, entry := range data.Props.PageProps.Timeline.Entries {
		tw := entry.Content.Tweet
		if profile.bio == "" {
			profile.bio = tw.User.Description
			profile.following = tw.User.FriendsCount
			profile.posts = tw.User.StatusesCount
		}
		if len(profile.tweets) < engagementSampleSize {
			profile.tweets = append(profile.tweets, tweetStats{
				Likes:    tw.FavoriteCount,
				Retweets: tw.RetweetCount,
				Replies:  tw.ReplyCount,
			})
		}
	}
	return profile, nil
}

// engagementRate weights interactions per tweet against audience size.
// Retweets count double and replies 1.5x, matching how far each carries.
func engagementRate(tweets []tweetStats, followers int64) float64 {
	if len(tweets) == 0 || followers <= 0 {
		return 0
	}

	var total float64
	for _, t := range tweets {
		total += float64(t.Likes) + 2*float64(t.Retweets) + 1.5*float64(t.Replies)
	}
	return total / (float64(len(tweets)) * float64(followers))
}
