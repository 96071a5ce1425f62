// Package webhook normalizes the CRM's heterogeneous webhook encodings into
// one canonical event shape. Parsing is pure: no I/O, no side effects.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
)

var (
	// ErrUnrecognized means no known payload shape matched. The handler
	// answers 400 for these.
	ErrUnrecognized = errors.New("webhook: unrecognized payload format")

	// ErrNoLead means a known shape matched but carried no lead ID. The
	// event is non-actionable and must be acknowledged without processing.
	ErrNoLead = errors.New("webhook: no lead id in payload")
)

// payload is the pre-parsed raw body handed to each strategy.
type payload struct {
	form url.Values
	json *jsonEnvelope
}

// strategy recognizes one payload shape. parse returns (nil, nil) when the
// shape does not match so the next strategy gets a turn.
type strategy struct {
	name  string
	parse func(p payload) (*domain.Event, error)
}

// Strategies are tried in priority order; first match wins.
var strategies = []strategy{
	{name: "message-add", parse: parseMessageAddForm},
	{name: "salesbot-lead", parse: parseSalesbotForm},
	{name: "chat-message", parse: parseChatMessageJSON},
	{name: "generic", parse: parseGenericJSON},
}

// Normalize parses a raw webhook body into the canonical event, or reports
// ErrUnrecognized / ErrNoLead.
func Normalize(contentType string, body []byte) (*domain.Event, error) {
	p := payload{}

	trimmed := bytes.TrimSpace(body)
	switch {
	case strings.Contains(contentType, "json") || bytes.HasPrefix(trimmed, []byte("{")):
		var env jsonEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil {
			p.json = &env
		}
	default:
		if vals, err := url.ParseQuery(string(trimmed)); err == nil && len(vals) > 0 {
			p.form = vals
		}
	}

	if p.form == nil && p.json == nil {
		return nil, ErrUnrecognized
	}

	for _, s := range strategies {
		ev, err := s.parse(p)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			ev.Source = s.name
			return ev, nil
		}
	}
	return nil, ErrUnrecognized
}

// ---- form shapes ----

var messageAddIndex = regexp.MustCompile(`^message\[add\]\[(\d+)\]\[entity_id\]$`)

// parseMessageAddForm handles the bracket-indexed message-add event:
//
//	message[add][0][entity_id]=123&message[add][0][type]=incoming&...
func parseMessageAddForm(p payload) (*domain.Event, error) {
	if p.form == nil || !hasKeyPrefix(p.form, "message[add][") {
		return nil, nil
	}

	idx, ok := firstIndex(p.form, messageAddIndex)
	if !ok {
		return nil, ErrNoLead
	}
	field := func(name string) string {
		return p.form.Get(fmt.Sprintf("message[add][%d][%s]", idx, name))
	}

	leadID, err := strconv.ParseInt(field("entity_id"), 10, 64)
	if err != nil || leadID == 0 {
		return nil, ErrNoLead
	}

	ev := &domain.Event{
		LeadID:   leadID,
		Incoming: field("type") == "incoming",
		Text:     field("text"),
	}

	attURL := field("attachment][link")
	attType := field("attachment][type")
	if attURL == "" {
		// Some message types carry the URL in a flat media/file field.
		if attURL = field("media"); attURL != "" && attType == "" {
			attType = "picture"
		}
		if attURL == "" {
			if attURL = field("file"); attURL != "" && attType == "" {
				attType = "file"
			}
		}
	}
	if attURL != "" {
		ev.Attachment = &domain.Attachment{
			URL:  attURL,
			Name: field("attachment][file_name"),
			Kind: kindFromType(attType),
		}
	}
	return ev, nil
}

var salesbotIndex = regexp.MustCompile(`^leads\[(?:add|update)\]\[(\d+)\]\[id\]$`)

// parseSalesbotForm handles lead-add/update salesbot triggers, which carry a
// lead ID only; the attachment must be fetched from the lead's feed.
func parseSalesbotForm(p payload) (*domain.Event, error) {
	if p.form == nil || !hasKeyPrefix(p.form, "leads[") {
		return nil, nil
	}

	var leadID int64
	for key, vals := range p.form {
		if salesbotIndex.MatchString(key) && len(vals) > 0 {
			if id, err := strconv.ParseInt(vals[0], 10, 64); err == nil && id != 0 {
				leadID = id
				break
			}
		}
	}
	if leadID == 0 {
		return nil, ErrNoLead
	}

	return &domain.Event{
		LeadID:      leadID,
		Incoming:    true,
		NeedsLookup: true,
	}, nil
}

func hasKeyPrefix(vals url.Values, prefix string) bool {
	for key := range vals {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// firstIndex finds the lowest bracket index whose key matches pattern.
func firstIndex(vals url.Values, pattern *regexp.Regexp) (int, bool) {
	var indexes []int
	for key := range vals {
		if m := pattern.FindStringSubmatch(key); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				indexes = append(indexes, n)
			}
		}
	}
	if len(indexes) == 0 {
		return 0, false
	}
	sort.Ints(indexes)
	return indexes[0], true
}

// ---- JSON shapes ----

type jsonEnvelope struct {
	Message *jsonMessage `json:"message"`
}

type jsonMessage struct {
	EntityID    flexInt64        `json:"entity_id"`
	MessageType string           `json:"message_type"`
	Text        string           `json:"text"`
	Attachments []jsonAttachment `json:"attachments"`
	Sender      *jsonSender      `json:"sender"`
	Message     *jsonInner       `json:"message"`
}

type jsonInner struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Media    string `json:"media"`
	FileName string `json:"file_name"`
}

type jsonSender struct {
	ID flexString `json:"id"`
}

type jsonAttachment struct {
	Link     string `json:"link"`
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

// parseChatMessageJSON handles the nested chat-message shape, recognized by
// the presence of message.message.type. Direction is incoming iff a sender
// identifier is present.
func parseChatMessageJSON(p payload) (*domain.Event, error) {
	if p.json == nil || p.json.Message == nil {
		return nil, nil
	}
	msg := p.json.Message
	if msg.Message == nil || msg.Message.Type == "" {
		return nil, nil
	}

	if msg.EntityID == 0 {
		return nil, ErrNoLead
	}

	text := msg.Message.Text
	if text == "" {
		text = msg.Text
	}
	ev := &domain.Event{
		LeadID:   int64(msg.EntityID),
		Incoming: msg.Sender != nil && string(msg.Sender.ID) != "",
		Text:     text,
	}
	if msg.Message.Media != "" {
		ev.Attachment = &domain.Attachment{
			URL:  msg.Message.Media,
			Name: msg.Message.FileName,
			Kind: kindFromType(msg.Message.Type),
		}
	}
	return ev, nil
}

// parseGenericJSON is the fallback shape: message.entity_id with a flat
// message_type and attachments array.
func parseGenericJSON(p payload) (*domain.Event, error) {
	if p.json == nil || p.json.Message == nil {
		return nil, nil
	}
	msg := p.json.Message
	if msg.EntityID == 0 {
		return nil, ErrNoLead
	}

	ev := &domain.Event{
		LeadID:   int64(msg.EntityID),
		Incoming: msg.MessageType == "in",
		Text:     msg.Text,
	}
	if len(msg.Attachments) > 0 {
		att := msg.Attachments[0]
		u := att.Link
		if u == "" {
			u = att.URL
		}
		name := att.FileName
		if name == "" {
			name = att.Name
		}
		if u != "" {
			ev.Attachment = &domain.Attachment{URL: u, Name: name, Kind: kindFromType(att.Type)}
		}
	}
	return ev, nil
}

// kindFromType maps the CRM's message/attachment type enum to the coarse
// kinds the state machine understands.
func kindFromType(t string) domain.AttachmentKind {
	switch t {
	case "picture", "image", "sticker":
		return domain.AttachmentImage
	case "video", "file", "voice", "audio", "document":
		return domain.AttachmentFile
	case "":
		return domain.AttachmentFile
	}
	return domain.AttachmentUnknown
}

// flexInt64 tolerates both numeric and quoted-string IDs.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

// flexString tolerates numeric sender IDs.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}
