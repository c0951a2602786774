// Package identity extracts the (subreddit, post) pair that names a single
// post view from a Reddit URL or path.
package identity

import (
	"fmt"
	"net/url"
	"strings"
)

// Marker is the path segment that denotes a single-post view:
// /r/<subreddit>/comments/<post_id>/<slug>/
const Marker = "comments"

// kindPrefix is prepended to post ids in element ids (t3_<post_id>).
const kindPrefix = "t3_"

// Identity names one post. It is immutable once derived.
type Identity struct {
	ContainerID string `json:"subreddit"`
	ItemID      string `json:"post_id"`
}

// String renders the popup label for the identity.
func (id Identity) String() string {
	return fmt.Sprintf("r/%s - Post ID: %s", id.ContainerID, id.ItemID)
}

// Parse extracts the identity from a URL or a bare path.
// ok is false when the input is not a single-post view; callers fall back to
// scanning the whole page.
func Parse(raw string) (id Identity, ok bool) {
	path := raw
	if u, err := url.Parse(raw); err == nil && (u.Scheme != "" || u.Host != "") {
		path = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		path = raw[:i]
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg != Marker {
			continue
		}
		if i+1 >= len(segments) || segments[i+1] == "" {
			return Identity{}, false
		}
		id.ItemID = segments[i+1]
		if i > 0 {
			id.ContainerID = segments[i-1]
		}
		return id, true
	}
	return Identity{}, false
}

// FromElementID converts a post element id (t3_abc123) to a post id.
func FromElementID(elementID string) string {
	return strings.TrimPrefix(elementID, kindPrefix)
}

// OnHost reports whether raw points at host or one of its subdomains.
func OnHost(raw, host string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	h := strings.ToLower(u.Hostname())
	host = strings.ToLower(host)
	return h == host || strings.HasSuffix(h, "."+host)
}
