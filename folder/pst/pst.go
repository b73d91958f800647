// Package pst implements a read-only folder backend over Outlook PST/OST
// files. Opening a PST walks its entire folder tree up front (go-pst's
// WalkFolders visits every folder in one pass); each named PST folder
// becomes a subfolder reachable from the root via ListSubFolders/
// OpenSubFolder.
package pst

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mooijtech/go-pst/v6/pkg"
	"github.com/mooijtech/go-pst/v6/pkg/properties"
	"github.com/rotisserie/eris"

	charsets "github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding"

	"github.com/eslider/mailbox/body"
	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/head"
	"github.com/eslider/mailbox/message"
	"github.com/eslider/mailbox/parser"
)

func init() {
	pst.ExtendCharsets(func(name string, enc encoding.Encoding) {
		charsets.RegisterEncoding(name, enc)
	})
}

// Folder is either the PST's synthetic root (holding no messages of its
// own, only the walked subfolders) or one named PST folder.
type Folder struct {
	folder.Base

	osFile  *os.File // non-nil only on the root; closed by the root's Close
	isRoot  bool
	byName  map[string][]*message.Message // root only: folder name -> its messages
	names   []string                       // root only: folder names in walk order
}

// Open opens the PST file at path, walks its entire folder tree, and
// returns the synthetic root folder.
func Open(path string, opts folder.OpenOptions) (*Folder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pst: open %s", path)
	}

	pstFile, err := pst.New(f)
	if err != nil {
		f.Close()
		return nil, eris.Wrap(err, "pst: parse")
	}
	defer pstFile.Cleanup()

	root := &Folder{
		Base:   folder.NewBase(path, true, false),
		osFile: f,
		isRoot: true,
		byName: make(map[string][]*message.Message),
	}

	err = pstFile.WalkFolders(func(node *pst.Folder) error {
		name := node.Name
		iter, iterErr := node.GetMessageIterator()
		if eris.Is(iterErr, pst.ErrMessagesNotFound) {
			return nil
		}
		if iterErr != nil {
			return nil
		}

		var msgs []*message.Message
		for iter.Next() {
			m, convErr := messageFromPST(iter.Value())
			if convErr != nil {
				continue
			}
			msgs = append(msgs, m)
		}
		if len(msgs) == 0 {
			return nil
		}
		if _, seen := root.byName[name]; !seen {
			root.names = append(root.names, name)
		}
		root.byName[name] = append(root.byName[name], msgs...)
		return nil
	})
	if err != nil {
		f.Close()
		return nil, eris.Wrap(err, "pst: walk folders")
	}

	return root, nil
}

// AddMessage always fails: PST folders are read-only.
func (f *Folder) AddMessage(*message.Message) error {
	return folder.ErrReadOnly
}

// Write always fails if there is anything to write: PST folders are
// read-only.
func (f *Folder) Write(folder.WritePolicy) error {
	if !f.Modified() {
		return nil
	}
	return folder.ErrReadOnly
}

// Close marks the folder closed, releasing the PST file handle if this is
// the root.
func (f *Folder) Close(policy folder.ClosePolicy) error {
	if err := f.CloseWith(policy, f, f.Write, nil); err != nil {
		return err
	}
	if f.isRoot && f.osFile != nil {
		return f.osFile.Close()
	}
	return nil
}

// Delete always fails: PST folders are read-only.
func (f *Folder) Delete() error {
	return folder.ErrReadOnly
}

// CopyTo copies every message into dst (the only way to get a PST's
// contents into a writable backend).
func (f *Folder) CopyTo(dst folder.Folder, opts folder.OpenOptions) error {
	for _, m := range f.Messages(folder.All()) {
		if err := m.CopyTo(dst); err != nil {
			return eris.Wrap(err, "pst: copy message")
		}
	}
	return nil
}

// ListSubFolders lists the PST's named folders. Only the root folder
// carries this list; a leaf folder has none.
func (f *Folder) ListSubFolders() ([]string, error) {
	if !f.isRoot {
		return nil, nil
	}
	names := make([]string, len(f.names))
	copy(names, f.names)
	return names, nil
}

// OpenSubFolder returns the leaf folder already populated by Open's single
// walk pass, wrapping its pre-loaded messages.
func (f *Folder) OpenSubFolder(name string) (folder.Folder, error) {
	if !f.isRoot {
		return nil, eris.New("pst: leaf folders have no subfolders")
	}
	msgs, ok := f.byName[name]
	if !ok {
		return nil, eris.Errorf("pst: no folder %q", name)
	}
	leaf := &Folder{Base: folder.NewBase(name, true, false)}
	for _, m := range msgs {
		leaf.AppendLoaded(m)
	}
	return leaf, nil
}

// messageFromPST converts a PST message item to a message.Message by
// rendering it as RFC822 text and feeding that through the shared parser,
// so PST messages carry the exact same Head/Body shape as every other
// backend.
func messageFromPST(msg *pst.Message) (*message.Message, error) {
	props, ok := msg.Properties.(*properties.Message)
	if !ok {
		return nil, eris.New("pst: not a mail message item")
	}

	raw, _ := renderEML(props)

	p := parser.New(newSeekableString(raw))
	hBegin, hEnd, rawFields, err := p.ReadHeader(0)
	if err != nil {
		return nil, eris.Wrap(err, "pst: parse synthesized header")
	}
	h := head.New(78)
	for _, rf := range rawFields {
		ff, ferr := field.New(rf.Name, rf.Body, "")
		if ferr != nil {
			continue
		}
		h.Add(ff)
	}
	h.SetOffsets(hBegin, hEnd)

	_, _, lines, err := p.ReadBodyUntilSeparator()
	if err != nil {
		return nil, eris.Wrap(err, "pst: parse synthesized body")
	}

	b := body.NewLines(lines)
	b.MIMEType = "text/plain"
	b.Charset = "utf-8"
	b.TransferEncoding = "8bit"
	return message.New(h, b), nil
}

func renderEML(p *properties.Message) (string, time.Time) {
	subject := p.GetSubject()
	from := formatSender(p.GetSenderName(), p.GetSenderEmailAddress())
	to := p.GetDisplayTo()
	bodyText := p.GetBody()

	var date time.Time
	if ct := p.GetClientSubmitTime(); ct > 0 {
		date = time.Unix(ct, 0)
	} else if dt := p.GetMessageDeliveryTime(); dt > 0 {
		date = time.Unix(dt, 0)
	}
	if date.IsZero() {
		date = time.Now()
	}

	var sb strings.Builder
	sb.WriteString("From: " + escapeHeader(from) + "\r\n")
	sb.WriteString("To: " + escapeHeader(to) + "\r\n")
	sb.WriteString("Subject: " + escapeHeader(subject) + "\r\n")
	sb.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	sb.WriteString("X-Imported-From: PST\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(bodyText)
	return sb.String(), date
}

func formatSender(name, email string) string {
	if name != "" && email != "" {
		return fmt.Sprintf("%s <%s>", name, email)
	}
	if email != "" {
		return email
	}
	return name
}

func escapeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
