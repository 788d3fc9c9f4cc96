package whatsapp

import "encoding/json"

// WebhookEvent is the Cloud API webhook envelope for inbound messages and
// status updates.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []MessageStatus  `json:"statuses,omitempty"`
}

// Metadata identifies the business number the event arrived on, used to
// resolve the tenant.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is a single user message from the webhook. Only text is
// consumed; other types carry the raw payload for logging.
type InboundMessage struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *TextContent    `json:"text,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

type TextContent struct {
	Body string `json:"body"`
}

type MessageStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// ParseWebhook decodes the webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// TextMessages flattens the event into (phoneNumberID, message, senderName)
// triples for the text messages it carries.
func (e *WebhookEvent) TextMessages() []IncomingText {
	var out []IncomingText
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				out = append(out, IncomingText{
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
					MessageID:     msg.ID,
					From:          msg.From,
					SenderName:    names[msg.From],
					Body:          msg.Text.Body,
				})
			}
		}
	}
	return out
}

// IncomingText is one inbound text message with the routing metadata the
// handlers need.
type IncomingText struct {
	PhoneNumberID string
	MessageID     string
	From          string
	SenderName    string
	Body          string
}
