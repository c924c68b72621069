// Package browser exposes a browser session to the model as tools.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	ibrowser "github.com/mohammad-safakhou/headliner/internal/browser"
	"github.com/mohammad-safakhou/headliner/tools"
)

const (
	NavigateName       = "navigate_browser"
	ExtractTextName    = "extract_text"
	ExtractLinksName   = "extract_hyperlinks"
	CurrentWebpageName = "current_webpage"
)

// Tools returns the browser toolkit bound to one session.
func Tools(s ibrowser.Session, maxChars int) []tools.Tool {
	return []tools.Tool{
		Navigate(s),
		ExtractText(s, maxChars),
		ExtractHyperlinks(s),
		CurrentWebpage(s),
	}
}

func Navigate(s ibrowser.Session) tools.Tool {
	return tools.Tool{
		Name:        NavigateName,
		Description: "Navigate the browser to the specified URL.",
		Parameters:  tools.Object(map[string]interface{}{"url": tools.String("url to navigate to")}, "url"),
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			target := tools.StringArg(args, "url")
			page, err := s.Navigate(ctx, target)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Navigating to %s returned status code %d", target, page.Status), nil
		},
	}
}

func ExtractText(s ibrowser.Session, maxChars int) tools.Tool {
	return tools.Tool{
		Name:        ExtractTextName,
		Description: "Extract all the visible text on the current webpage.",
		Parameters:  tools.Object(nil),
		Execute: func(ctx context.Context, _ map[string]interface{}) (string, error) {
			snap, err := s.Snapshot(ctx)
			if err != nil {
				return "", err
			}
			return ibrowser.VisibleText(snap, maxChars), nil
		},
	}
}

func ExtractHyperlinks(s ibrowser.Session) tools.Tool {
	return tools.Tool{
		Name:        ExtractLinksName,
		Description: "Extract all hyperlinks on the current webpage as a JSON list of {text, href}.",
		Parameters: tools.Object(map[string]interface{}{
			"absolute_urls": tools.Bool("return absolute URLs (default true); false gives paths relative to the page host"),
		}),
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			snap, err := s.Snapshot(ctx)
			if err != nil {
				return "", err
			}
			links, err := ibrowser.Hyperlinks(snap)
			if err != nil {
				return "", err
			}
			if !tools.BoolArg(args, "absolute_urls", true) {
				relativize(links, snap.URL)
			}
			out, err := json.Marshal(links)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

func CurrentWebpage(s ibrowser.Session) tools.Tool {
	return tools.Tool{
		Name:        CurrentWebpageName,
		Description: "Returns the URL, title and site name of the current webpage.",
		Parameters:  tools.Object(nil),
		Execute: func(ctx context.Context, _ map[string]interface{}) (string, error) {
			snap, err := s.Snapshot(ctx)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(ibrowser.Metadata(snap))
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// relativize strips scheme and host from links on the page's own host.
func relativize(links []ibrowser.Link, pageURL string) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return
	}
	for i := range links {
		u, err := url.Parse(links[i].Href)
		if err != nil || u.Host != base.Host {
			continue
		}
		rel := u.EscapedPath()
		if rel == "" {
			rel = "/"
		}
		if u.RawQuery != "" {
			rel += "?" + u.RawQuery
		}
		links[i].Href = rel
	}
}
