package fetch

// Kind tags which acquisition path produced a Content.
type Kind int

const (
	// Markup is raw HTML from a direct or browser fetch.
	Markup Kind = iota + 1
	// Rendered is a markdown rendering returned by the rendering proxy.
	Rendered
)

func (k Kind) String() string {
	switch k {
	case Markup:
		return "markup"
	case Rendered:
		return "rendered"
	}
	return "unknown"
}

// Content is a successfully acquired page.
type Content struct {
	Kind Kind
	URL  string
	Body string
	// Via names the path that produced it: "direct", "browser" or "render_proxy".
	Via string
}
