package github

import (
	"strconv"
	"time"

	"github.com/hitoshi/ghdash/internal/model"
)

// 以下はGitHub REST APIのレスポンスのうち利用するフィールドのみを定義する。

type repoPayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type userRef struct {
	Login string `json:"login"`
}

type issuePayload struct {
	ID          int64     `json:"id"`
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	State       string    `json:"state"`
	HTMLURL     string    `json:"html_url"`
	User        userRef   `json:"user"`
	CreatedAt   time.Time `json:"created_at"`
	PullRequest *struct{} `json:"pull_request"`
}

type pullPayload struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Draft     bool      `json:"draft"`
	HTMLURL   string    `json:"html_url"`
	User      userRef   `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type searchPayload struct {
	TotalCount int           `json:"total_count"`
	Items      []repoPayload `json:"items"`
}

type profilePayload struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailPayload struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (c *Client) toResource(p repoPayload) model.Resource {
	return model.Resource{
		ID:          p.ID,
		Name:        p.Name,
		FullName:    p.FullName,
		Description: c.sanitizer.Clean(p.Description),
		URL:         p.HTMLURL,
		OwnerScope:  p.Owner.Login,
	}
}

func (c *Client) toResources(ps []repoPayload) []model.Resource {
	out := make([]model.Resource, 0, len(ps))
	for _, p := range ps {
		out = append(out, c.toResource(p))
	}
	return out
}

func (c *Client) toIssue(p issuePayload) model.Issue {
	return model.Issue{
		ID:        p.ID,
		Number:    p.Number,
		Title:     c.sanitizer.Clean(p.Title),
		State:     p.State,
		URL:       p.HTMLURL,
		Author:    p.User.Login,
		CreatedAt: p.CreatedAt,
	}
}

func (c *Client) toPullRequest(p pullPayload) model.PullRequest {
	return model.PullRequest{
		ID:        p.ID,
		Number:    p.Number,
		Title:     c.sanitizer.Clean(p.Title),
		State:     p.State,
		Draft:     p.Draft,
		URL:       p.HTMLURL,
		Author:    p.User.Login,
		CreatedAt: p.CreatedAt,
	}
}

// toIdentity はプロフィールからIdentityを生成する。表示名が未設定ならログイン名を使う。
func toIdentity(p profilePayload, token string) *model.Identity {
	display := p.Name
	if display == "" {
		display = p.Login
	}
	return &model.Identity{
		ProviderUserID: strconv.FormatInt(p.ID, 10),
		Username:       p.Login,
		DisplayName:    display,
		Email:          p.Email,
		AvatarURL:      p.AvatarURL,
		AccessToken:    token,
	}
}
