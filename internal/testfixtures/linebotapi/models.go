package linebotapi

import (
	"net/url"

	"github.com/gorilla/schema"
)

// Message is one message payload.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewTextMessage creates a text message.
func NewTextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// BasicResponse carries the request ID of an accepted write call.
type BasicResponse struct {
	RequestID string
}

// ReplyRequest is the payload of ReplyMessage.
type ReplyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

// PushRequest is the payload of PushMessage.
type PushRequest struct {
	To       string    `json:"to"`
	Messages []Message `json:"messages"`
}

// BroadcastRequest is the payload of BroadcastMessage.
type BroadcastRequest struct {
	Messages []Message `json:"messages"`
}

// Profile is a user profile.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
	Language      string `json:"language,omitempty"`
}

// MessageQuota is the monthly message quota of the channel.
type MessageQuota struct {
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

// MemberIDs is one page of user IDs.
type MemberIDs struct {
	UserIDs []string `json:"userIds"`
	Next    string   `json:"next,omitempty"`
}

// FollowerIDsRequest selects one page of follower IDs.
type FollowerIDsRequest struct {
	Limit int    `schema:"limit,omitempty"`
	Start string `schema:"start,omitempty"`
}

var queryEncoder = schema.NewEncoder()

// Values encodes the request into URL query values.
func (r FollowerIDsRequest) Values() (url.Values, error) {
	values := url.Values{}
	if err := queryEncoder.Encode(r, values); err != nil {
		return nil, err
	}
	return values, nil
}
