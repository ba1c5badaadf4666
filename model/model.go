package model

import (
	"errors"
	"fmt"
	"time"
)

// EpochDay is one day in epoch seconds.
const EpochDay = 86400

// DefaultPageLookbackDays applies to page crawls that carry no time window.
const DefaultPageLookbackDays = 7

var (
	ErrInvalidNodeType = errors.New("invalid node type")
	ErrInvalidOption   = errors.New("invalid crawl option")
)

// NodeType selects which child collection of a node is crawled: a page's feed
// of posts, a post's comments, or a comment's replies.
type NodeType string

const (
	NodeTypePage    NodeType = "page"
	NodeTypePost    NodeType = "post"
	NodeTypeComment NodeType = "comment"
)

var NodeTypes = []NodeType{NodeTypePage, NodeTypePost, NodeTypeComment}

// Replies are comments on a comment, so there is no separate reply type.
func ParseNodeType(s string) (NodeType, error) {
	switch nt := NodeType(s); nt {
	case NodeTypePage, NodeTypePost, NodeTypeComment:
		return nt, nil
	}
	return "", fmt.Errorf("%w %q (want page, post or comment)", ErrInvalidNodeType, s)
}

func (nt NodeType) String() string { return string(nt) }

/*---------------------------------------------------------------------------*/

// CrawlOptions limits the children returned by a crawl. Zero values mean the
// option was not supplied.
type CrawlOptions struct {
	Since        int64 `json:"since,omitempty" yaml:"since,omitempty"`
	Until        int64 `json:"until,omitempty" yaml:"until,omitempty"`
	SinceDaysAgo int   `json:"sinceDaysAgo,omitempty" yaml:"sinceDaysAgo,omitempty"`
}

func (o CrawlOptions) Validate() error {
	switch {
	case o.Since < 0:
		return fmt.Errorf("%w: since %d is negative", ErrInvalidOption, o.Since)
	case o.Until < 0:
		return fmt.Errorf("%w: until %d is negative", ErrInvalidOption, o.Until)
	case o.SinceDaysAgo < 0:
		return fmt.Errorf("%w: sinceDaysAgo %d is negative", ErrInvalidOption, o.SinceDaysAgo)
	}
	return nil
}

// Resolve applies the page default and collapses a relative window into
// explicit bounds. A relative window always clears Until.
func (o CrawlOptions) Resolve(nodeType NodeType, now time.Time) TimeWindow {
	daysAgo := o.SinceDaysAgo
	// An explicit until alone is a bound too, so it suppresses the default.
	if nodeType == NodeTypePage && o.Since == 0 && o.Until == 0 && daysAgo == 0 {
		daysAgo = DefaultPageLookbackDays
	}

	if daysAgo > 0 {
		return TimeWindow{
			Since: now.Round(time.Second).Unix() - int64(EpochDay*daysAgo),
		}
	}
	return TimeWindow{Since: o.Since, Until: o.Until}
}

// TimeWindow holds explicit epoch-second bounds; zero means unbounded.
type TimeWindow struct {
	Since int64
	Until int64
}

func (w TimeWindow) Unbounded() bool { return w.Since == 0 && w.Until == 0 }

/*---------------------------------------------------------------------------*/

// RawPage is one decoded API response.
type RawPage struct {
	Data   []Item  `json:"data"`
	Paging *Paging `json:"paging,omitempty"`
}

func (p RawPage) Next() string {
	if p.Paging == nil {
		return ""
	}
	return p.Paging.Next
}

type Paging struct {
	Next     string   `json:"next,omitempty"`
	Previous string   `json:"previous,omitempty"`
	Cursors  *Cursors `json:"cursors,omitempty"`
}

type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

type Item struct {
	ID          string  `json:"id"`
	Message     *string `json:"message,omitempty"`
	Story       *string `json:"story,omitempty"`
	From        *Author `json:"from,omitempty"`
	CreatedTime string  `json:"created_time"`
}

// Text returns the message, falling back to the story, then to "". An empty
// message counts as absent.
func (i Item) Text() string {
	if i.Message != nil && *i.Message != "" {
		return *i.Message
	}
	if i.Story != nil {
		return *i.Story
	}
	return ""
}

type Author struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

/*---------------------------------------------------------------------------*/

// Record is the uniform output for one crawled child node.
type Record struct {
	ID           string `json:"id" yaml:"id"`
	Message      string `json:"message" yaml:"message"`
	By           string `json:"by" yaml:"by"`
	CreatedTime  int64  `json:"createdTime" yaml:"createdTime"`
	ReadableTime string `json:"readableTime" yaml:"readableTime"`
}

func (r Record) Created() time.Time { return time.Unix(r.CreatedTime, 0) }
