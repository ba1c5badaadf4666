package graph

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/zvonler/wallspider/model"
)

const (
	feedPath    = "/feed?fields=id,message,story,from,created_time"
	commentPath = "/comments?"
	replyPath   = "/comments?"

	sinceQuery    = "&since="
	untilQuery    = "&until="
	apiTokenQuery = "&access_token="
)

// BuildPath returns the first-page request path for the children of nodeID.
// Unknown node types get no collection suffix; callers validate first.
func BuildPath(nodeID string, nodeType model.NodeType, window model.TimeWindow, token string) string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(url.PathEscape(nodeID))

	switch nodeType {
	case model.NodeTypePage:
		b.WriteString(feedPath)
	case model.NodeTypePost:
		b.WriteString(commentPath)
	case model.NodeTypeComment:
		b.WriteString(replyPath)
	}

	if window.Since > 0 {
		b.WriteString(sinceQuery + strconv.FormatInt(window.Since, 10))
	}
	if window.Until > 0 {
		b.WriteString(untilQuery + strconv.FormatInt(window.Until, 10))
	}
	b.WriteString(apiTokenQuery + url.QueryEscape(token))

	return b.String()
}

var cursorPrefix = regexp.MustCompile(`^/v\d+\.\d+(/|$)`)

// CursorPath turns a paging.next URL into a request path relative to the API
// base, dropping scheme, host and any /vN.N version segment.
func CursorPath(next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", err
	}
	if u.Host == "" || u.Path == "" {
		return "", fmt.Errorf("cursor %q is not an absolute API URL", next)
	}

	path := u.EscapedPath()
	if loc := cursorPrefix.FindStringIndex(path); loc != nil {
		path = "/" + path[loc[1]:]
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}
