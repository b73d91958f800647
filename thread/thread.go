// Package thread reconstructs conversation trees across one or more folders
// from Message-ID/In-Reply-To/References headers, per spec.md §4.11.
package thread

import (
	"regexp"
	"sync"

	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/message"
)

// Quality ranks how a parent/child edge was established. Higher values
// dominate lower ones and, once set, are never downgraded.
type Quality int

const (
	GUESS Quality = iota
	REFERENCE
	REPLY
)

// Node is one message (or, if Msg is nil, a placeholder for a referenced
// message that hasn't been seen yet) in the thread graph.
type Node struct {
	MessageID string
	Msg       *message.Message
	Folder    string // name of the folder Msg was loaded from, if any

	Parent        *Node
	ParentQuality Quality
	Children      []*Node
}

// Dummy reports whether this node stands in for a message never seen.
func (n *Node) Dummy() bool { return n.Msg == nil }

// Root reports whether this node has no parent.
func (n *Node) Root() bool { return n.Parent == nil }

// Dummies collects every dummy node in this node's subtree.
func (n *Node) Dummies() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur.Dummy() {
			out = append(out, cur)
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

var msgIDPattern = regexp.MustCompile(`<[^<>]+>`)

// extractMessageIDs pulls every "<...>" token out of a References or
// In-Reply-To header body, in order.
func extractMessageIDs(headerBody string) []string {
	return msgIDPattern.FindAllString(headerBody, -1)
}

// Manager builds and holds the thread graph over a fixed set of source
// folders.
type Manager struct {
	mu      sync.Mutex
	folders []folder.Folder
	nodes   map[string]*Node // message-id -> node
}

// NewManager returns a Manager that threads messages already loaded in
// folders, and that scan-back (see ScanForMessages) can later pull more
// messages from.
func NewManager(folders ...folder.Folder) *Manager {
	tm := &Manager{
		folders: folders,
		nodes:   make(map[string]*Node),
	}
	for _, f := range folders {
		for _, m := range f.Messages(folder.All()) {
			tm.AddMessage(m, f.Name())
		}
	}
	return tm
}

func (tm *Manager) nodeFor(msgID string) *Node {
	if n, ok := tm.nodes[msgID]; ok {
		return n
	}
	n := &Node{MessageID: msgID}
	tm.nodes[msgID] = n
	return n
}

// AddMessage inserts m into the graph, establishing REPLY/REFERENCE edges
// from its In-Reply-To and References headers. Edge quality is monotonic:
// a REPLY edge, once set for a child, is never replaced.
func (tm *Manager) AddMessage(m *message.Message, folderName string) *Node {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	msgID, ok := m.Head().GetFirst("message-id")
	var selfID string
	if ok {
		ids := extractMessageIDs(msgID.Body())
		if len(ids) > 0 {
			selfID = ids[0]
		}
	}
	if selfID == "" {
		selfID = m.UniqueID()
	}

	node := tm.nodeFor(selfID)
	node.Msg = m
	node.Folder = folderName

	var chain []string
	if refs, ok := m.Head().GetFirst("references"); ok {
		chain = extractMessageIDs(refs.Body())
	}
	quality := REFERENCE
	if irt, ok := m.Head().GetFirst("in-reply-to"); ok {
		if ids := extractMessageIDs(irt.Body()); len(ids) > 0 {
			chain = append(chain, ids[len(ids)-1])
			quality = REPLY
		}
	}

	tm.linkChain(node, chain, quality)
	return node
}

// linkChain wires node's ancestry from a References-style chain: each
// consecutive pair becomes a REFERENCE edge, and the final (nearest)
// ancestor becomes node's parent at quality. The caller appends the
// In-Reply-To ID last and passes REPLY in that case; a chain taken from
// References alone links node with REFERENCE.
func (tm *Manager) linkChain(node *Node, chain []string, quality Quality) {
	if len(chain) == 0 {
		return
	}
	for i := 0; i < len(chain); i++ {
		cur := tm.nodeFor(chain[i])
		if i > 0 {
			prev := tm.nodeFor(chain[i-1])
			tm.setParent(cur, prev, REFERENCE)
		}
	}
	directParent := tm.nodeFor(chain[len(chain)-1])
	tm.setParent(node, directParent, quality)
}

// setParent assigns child's parent to parent at quality, unless child
// already has a parent of equal or higher quality (REPLY dominates
// REFERENCE dominates GUESS; once REPLY is set it is never downgraded).
func (tm *Manager) setParent(child, parent *Node, quality Quality) {
	if child == parent {
		return
	}
	if child.Parent != nil && child.ParentQuality >= quality {
		return
	}
	if child.Parent != nil {
		child.Parent.removeChild(child)
	}
	child.Parent = parent
	child.ParentQuality = quality
	parent.Children = append(parent.Children, child)
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

// Thread returns the node for m, lazily completing its tree's dummy nodes
// via ScanForMessages against every source folder before returning.
func (tm *Manager) Thread(m *message.Message) *Node {
	tm.mu.Lock()
	node := tm.findNode(m)
	tm.mu.Unlock()
	if node == nil {
		return nil
	}

	root := node
	for root.Parent != nil {
		root = root.Parent
	}
	missing := root.Dummies()
	if len(missing) == 0 {
		return node
	}

	ids := make([]string, len(missing))
	for i, d := range missing {
		ids[i] = d.MessageID
	}
	for _, f := range tm.folders {
		tm.ScanForMessages(f, f.Name(), ids, 0, -1)
	}
	return node
}

func (tm *Manager) findNode(m *message.Message) *Node {
	msgID, ok := m.Head().GetFirst("message-id")
	if !ok {
		return nil
	}
	ids := extractMessageIDs(msgID.Body())
	if len(ids) == 0 {
		return nil
	}
	return tm.nodes[ids[0]]
}

// ScanForMessages reads messages backward from the end of f looking for any
// of missingIDs, stopping once every ID has been found, once countWindow
// messages have been examined (countWindow < 0 means unbounded, i.e. ALL),
// or once the folder is exhausted. Found messages are added to the graph.
func (tm *Manager) ScanForMessages(f folder.Folder, folderName string, missingIDs []string, timestampWindowSeconds int64, countWindow int) {
	want := make(map[string]bool, len(missingIDs))
	for _, id := range missingIDs {
		want[id] = true
	}

	msgs := f.Messages(folder.All())
	examined := 0
	for i := len(msgs) - 1; i >= 0 && len(want) > 0; i-- {
		if countWindow >= 0 && examined >= countWindow {
			break
		}
		examined++

		m := msgs[i]
		msgID, ok := m.Head().GetFirst("message-id")
		if !ok {
			continue
		}
		ids := extractMessageIDs(msgID.Body())
		if len(ids) == 0 {
			continue
		}
		if want[ids[0]] {
			tm.AddMessage(m, folderName)
			delete(want, ids[0])
		}
	}
}

// All forces a full scan-back of every participating folder, then returns
// every root node (nodes with no parent).
func (tm *Manager) All() []*Node {
	tm.mu.Lock()
	var allDummyIDs []string
	for id, n := range tm.nodes {
		if n.Dummy() {
			allDummyIDs = append(allDummyIDs, id)
		}
	}
	tm.mu.Unlock()

	for _, f := range tm.folders {
		tm.ScanForMessages(f, f.Name(), allDummyIDs, 0, -1)
	}
	return tm.Known()
}

// Known returns the roots of every thread already built, without scanning
// for more messages.
func (tm *Manager) Known() []*Node {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	var roots []*Node
	for _, n := range tm.nodes {
		if n.Root() {
			roots = append(roots, n)
		}
	}
	return roots
}
