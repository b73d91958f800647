package message

import (
	"strings"
	"time"

	"github.com/eslider/mailbox/field"
	"github.com/eslider/mailbox/head"
)

// ForwardOptions controls Message.Forward's deterministic construction.
// Zero value forwards with the default prelude/postlude and no quoting.
type ForwardOptions struct {
	Prelude     *string // overrides the default "---- BEGIN forwarded message" banner
	Postlude    *string
	Quote       bool // when true, reads and quotes the source body
	QuotePrefix string
	Subject     string
	To          string
}

const defaultForwardPrelude = "---- BEGIN forwarded message\n"
const defaultForwardPostlude = "---- END forwarded message\n"

// Forward builds a new outgoing Message wrapping m as a forwarded message.
// It never reads m's body unless opts.Quote is set, so forwarding a large
// message the caller doesn't intend to quote stays cheap.
func (m *Message) Forward(opts ForwardOptions) (*Message, error) {
	prelude := defaultForwardPrelude
	if opts.Prelude != nil {
		prelude = *opts.Prelude
	}
	postlude := defaultForwardPostlude
	if opts.Postlude != nil {
		postlude = *opts.Postlude
	}

	var b strings.Builder
	b.WriteString(prelude)
	b.WriteString(summaryFields(m))
	b.WriteString("\n")
	if opts.Quote {
		prefix := opts.QuotePrefix
		if prefix == "" {
			prefix = "> "
		}
		b.WriteString(quoteLines(m.Body().AsText(), prefix))
	}
	b.WriteString(postlude)

	subject := opts.Subject
	if subject == "" {
		if sub, ok := m.head.GetFirst("subject"); ok {
			subject = "Fwd: " + sub.Body()
		}
	}

	fields := []field.Field{mustField("Subject", subject)}
	if opts.To != "" {
		fields = append(fields, mustField("To", opts.To))
	}
	fields = append(fields, mustField("Date", field.FormatDate(time.Now())))

	return Build(fields, b.String())
}

// ReplyOptions controls Message.Reply's deterministic construction.
type ReplyOptions struct {
	Prelude     *string
	Postlude    *string
	Quote       bool
	QuotePrefix string
	ReplyAll    bool
}

const defaultReplyPostlude = ""

// Reply builds a new outgoing Message replying to m, setting In-Reply-To
// and References from m's Message-ID and From.
func (m *Message) Reply(opts ReplyOptions) (*Message, error) {
	var b strings.Builder
	if opts.Prelude != nil {
		b.WriteString(*opts.Prelude)
	}
	if opts.Quote {
		prefix := opts.QuotePrefix
		if prefix == "" {
			prefix = "> "
		}
		b.WriteString(quoteLines(m.Body().AsText(), prefix))
	}
	if opts.Postlude != nil {
		b.WriteString(*opts.Postlude)
	} else {
		b.WriteString(defaultReplyPostlude)
	}

	var fields []field.Field
	if sub, ok := m.head.GetFirst("subject"); ok {
		subj := sub.Body()
		if !strings.HasPrefix(strings.ToLower(subj), "re:") {
			subj = "Re: " + subj
		}
		fields = append(fields, mustField("Subject", subj))
	}
	if from, ok := m.head.GetFirst("from"); ok {
		fields = append(fields, mustField("To", from.Body()))
	}
	if opts.ReplyAll {
		if to, ok := m.head.GetFirst("to"); ok {
			fields = append(fields, mustField("Cc", to.Body()))
		}
	}
	if msgID, ok := m.head.GetFirst("message-id"); ok {
		fields = append(fields, mustField("In-Reply-To", msgID.Body()))
		refs := msgID.Body()
		if existing, ok := m.head.GetFirst("references"); ok {
			refs = existing.Body() + " " + refs
		}
		fields = append(fields, mustField("References", refs))
	}
	fields = append(fields, mustField("Date", field.FormatDate(time.Now())))

	return Build(fields, b.String())
}

// BounceOptions controls Message.Bounce's resent-group construction.
type BounceOptions struct {
	To   string
	From string
}

// Bounce re-delivers m unchanged to a new recipient by prepending a
// Resent-* header group, leaving the original header and body intact.
func (m *Message) Bounce(opts BounceOptions) (*Message, error) {
	clone := m.Clone()
	var group []field.Field
	if opts.From != "" {
		group = append(group, mustField("Resent-From", opts.From))
	}
	if opts.To != "" {
		group = append(group, mustField("Resent-To", opts.To))
	}
	group = append(group, mustField("Resent-Date", field.FormatDate(time.Now())))
	clone.head.AddResentGroup(head.ResentGroup{Fields: group})
	return clone, nil
}

func summaryFields(m *Message) string {
	var b strings.Builder
	for _, name := range []string{"From", "To", "Date", "Subject"} {
		if f, ok := m.head.GetFirst(strings.ToLower(name)); ok {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(f.Body())
			b.WriteString("\n")
		}
	}
	return b.String()
}

func quoteLines(text, prefix string) string {
	if text == "" {
		return ""
	}
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(l)
		if !strings.HasSuffix(l, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func mustField(name, body string) field.Field {
	f, err := field.New(name, body, "")
	if err != nil {
		// Only reachable if name itself contains a colon, which none of the
		// callers above ever pass.
		panic(err)
	}
	return f
}
