package locate

// Reddit DOM selectors.
// These are isolated here because Reddit ships several layouts at once and
// changes them frequently. Update these when injection stops finding posts.

const (
	// Post containers
	PostElement     = `shreddit-post`
	PostWithID      = `shreddit-post[id]`
	ArticleElement  = `article`
	PostIDAttribute = `id`

	// App shell, carries the theme attribute
	AppShell = `shreddit-app`

	// Action bar inside the post's shadow root
	ShadowToolbar = `faceplate-toolbar, [data-testid='post-actions'], shreddit-post-action-bar, div[slot='action-row']`

	// Post actions row attached to the post's own sibling
	SiblingActions = `[data-testid='post-actions']`

	// Title attribute carried by shreddit-post
	TitleAttribute = `post-title`

	// Title inside the post's shadow root
	ShadowTitle = `h1, [slot="title"]`

	// Subreddit attributes carried by shreddit-post
	ContainerAttribute         = `subreddit-name`
	PrefixedContainerAttribute = `subreddit-prefixed-name`
)

// ActionBarSelectors are tried in order against the post's light subtree.
var ActionBarSelectors = []string{
	`[data-testid='post-actions']`,
	`.Post__actions`,
	`[data-click-id='comments']`,
	`shreddit-comment-action-row`,
}

// TitleSelectors are tried in order against the post's light subtree.
var TitleSelectors = []string{
	`h1`,
	`[slot="title"]`,
	`a[slot="full-post-link"]`,
	`[data-testid="post-title"]`,
}

// Injected control markers
const (
	ControlClass   = "credi-btn"
	ContainerClass = "credi-button-container"
	ControlIDAttr  = "data-post-id"
)

// SiblingLookahead bounds how many following siblings may carry the action bar.
const SiblingLookahead = 3
