package chats

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/kgellert/trimer-client/internal/ws"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	ListID       = "chatList"
	itemClass    = "user-item"
	nameClass    = "user-name"
	newClass     = "new-message"
	badgeClass   = "new-message-badge"
	BadgeText    = "جديد"
	displayShown = "display: flex"
	displayNone  = "display: none"
)

// Item is one conversation entry of the chat list.
type Item struct {
	Name    string
	New     bool
	Visible bool
}

// Sidebar holds the chat list markup shown next to a conversation. New
// message markers survive refreshes from the server.
type Sidebar struct {
	mu      sync.Mutex
	list    *html.Node
	query   string
	emitter ws.Emitter
}

func NewSidebar(emitter ws.Emitter) *Sidebar {
	if emitter == nil {
		emitter = ws.Discard{}
	}
	return &Sidebar{
		list:    &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div},
		emitter: emitter,
	}
}

// Apply replaces the list with the #chatList element of page, keeping the
// new-message marker on items that carried it before.
func (s *Sidebar) Apply(page []byte) error {
	const op = "chats.Sidebar.Apply"

	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return fmt.Errorf("%s: parse: %w", op, err)
	}
	list := findByID(doc, ListID)
	if list == nil {
		return fmt.Errorf("%s: %w", op, ErrChatListNotFound)
	}
	list.Parent.RemoveChild(list)

	s.mu.Lock()
	marked := make(map[string]struct{})
	for _, item := range findByClass(s.list, itemClass) {
		if hasClass(item, newClass) {
			marked[itemName(item)] = struct{}{}
		}
	}

	for _, item := range findByClass(list, itemClass) {
		if _, ok := marked[itemName(item)]; ok {
			markNew(item)
		}
	}

	s.list = list
	if s.query != "" {
		filter(s.list, s.query)
	}
	markup, err := innerHTML(s.list)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.emitter.Emit(ws.ChatListRoom, ws.ChatListUpdate, ws.ChatListUpdatePayload{HTML: markup})
	return nil
}

// MarkSeen drops the new-message marker of the item named name.
func (s *Sidebar) MarkSeen(name string) error {
	const op = "chats.Sidebar.MarkSeen"

	s.mu.Lock()
	var found bool
	for _, item := range findByClass(s.list, itemClass) {
		if itemName(item) != name {
			continue
		}
		found = true
		removeClass(item, newClass)
		for _, badge := range findByClass(item, badgeClass) {
			badge.Parent.RemoveChild(badge)
		}
	}
	markup, err := innerHTML(s.list)
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("%s: %s: %w", op, name, ErrChatNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.emitter.Emit(ws.ChatListRoom, ws.ChatListUpdate, ws.ChatListUpdatePayload{HTML: markup})
	return nil
}

// Search shows the items whose name contains query, ignoring case, and
// returns their names. An empty query shows every item.
func (s *Sidebar) Search(query string) ([]string, error) {
	const op = "chats.Sidebar.Search"

	s.mu.Lock()
	s.query = query
	visible := filter(s.list, query)
	markup, err := innerHTML(s.list)
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.emitter.Emit(ws.ChatListRoom, ws.ChatListUpdate, ws.ChatListUpdatePayload{HTML: markup})
	return visible, nil
}

func (s *Sidebar) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Item
	for _, item := range findByClass(s.list, itemClass) {
		out = append(out, Item{
			Name:    itemName(item),
			New:     hasClass(item, newClass),
			Visible: attr(item, "style") != displayNone,
		})
	}
	return out
}

func (s *Sidebar) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return innerHTML(s.list)
}

func filter(list *html.Node, query string) []string {
	q := strings.ToLower(query)

	var visible []string
	for _, item := range findByClass(list, itemClass) {
		name := itemName(item)
		if q == "" || strings.Contains(strings.ToLower(name), q) {
			setAttr(item, "style", displayShown)
			visible = append(visible, name)
		} else {
			setAttr(item, "style", displayNone)
		}
	}
	return visible
}

func markNew(item *html.Node) {
	addClass(item, newClass)

	names := findByClass(item, nameClass)
	if len(names) == 0 || len(findByClass(names[0], badgeClass)) > 0 {
		return
	}

	badge := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: badgeClass}},
	}
	badge.AppendChild(&html.Node{Type: html.TextNode, Data: BadgeText})
	names[0].InsertBefore(badge, names[0].FirstChild)
}

// itemName is the text of the item's name element without the badge.
func itemName(item *html.Node) string {
	names := findByClass(item, nameClass)
	if len(names) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(textContent(names[0]), BadgeText, ""))
}
