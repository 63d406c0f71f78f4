package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Vodeneev/matchscraper/internal/pkg/browser"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

// Incident is what a SideResolver sees of one timeline incident.
type Incident struct {
	Node  *goquery.Selection
	Index int
	// Layout returns the rendered box of the incident and of its timeline
	// container. ok is false when the layout is unknown.
	Layout func() (incident, container browser.Box, ok bool)
}

// SideResolver decides which team a timeline incident belongs to.
type SideResolver interface {
	Name() string
	Resolve(inc Incident) (models.Side, bool)
}

// MarkerResolver looks for "home"/"away" in the class or data-testid of the
// incident and each of its ancestors, nearest first.
type MarkerResolver struct{}

func (MarkerResolver) Name() string { return "marker" }

func (MarkerResolver) Resolve(inc Incident) (models.Side, bool) {
	if inc.Node == nil || inc.Node.Length() == 0 {
		return models.SideUnknown, false
	}
	for n := inc.Node.Get(0); n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		class, testID := nodeAttr(n, "class"), nodeAttr(n, "data-testid")
		if strings.Contains(class, "home") || strings.Contains(testID, "home") {
			return models.SideHome, true
		}
		if strings.Contains(class, "away") || strings.Contains(testID, "away") {
			return models.SideAway, true
		}
	}
	return models.SideUnknown, false
}

// PositionalResolver compares the incident's left edge with the horizontal
// midpoint of its container: left of it is home, otherwise away. It can
// misclassify layouts that do not split the timeline into two columns.
type PositionalResolver struct{}

func (PositionalResolver) Name() string { return "positional" }

func (PositionalResolver) Resolve(inc Incident) (models.Side, bool) {
	if inc.Layout == nil {
		return models.SideUnknown, false
	}
	box, container, ok := inc.Layout()
	if !ok || container.Width <= 0 || (box.Width <= 0 && box.Height <= 0) {
		return models.SideUnknown, false
	}
	if box.Left < container.CenterX() {
		return models.SideHome, true
	}
	return models.SideAway, true
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// ResolverChain tries each resolver in order.
type ResolverChain []SideResolver

// DefaultResolvers is the structural marker lookup with the positional fallback.
func DefaultResolvers() ResolverChain {
	return ResolverChain{MarkerResolver{}, PositionalResolver{}}
}

// Resolve returns the first decided side and the name of the resolver that decided it.
func (c ResolverChain) Resolve(inc Incident) (models.Side, string) {
	for _, r := range c {
		if side, ok := r.Resolve(inc); ok {
			return side, r.Name()
		}
	}
	return models.SideUnknown, ""
}
