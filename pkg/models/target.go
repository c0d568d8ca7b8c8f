package models

import (
	"fmt"
	"strings"
)

// ReplyTarget is the chat address an approval question was posted to.
// A valid approval reply must originate from the same target.
type ReplyTarget struct {
	ChannelType string `json:"channel_type"`
	ChannelID   string `json:"channel_id"`
}

// ParseReplyTarget parses a "<channel_type>:<channel_id>" string.
func ParseReplyTarget(s string) (ReplyTarget, error) {
	channelType, channelID, ok := strings.Cut(s, ":")
	if !ok || channelType == "" || channelID == "" {
		return ReplyTarget{}, fmt.Errorf("invalid reply target %q, expected <channel_type>:<channel_id>", s)
	}
	return ReplyTarget{ChannelType: channelType, ChannelID: channelID}, nil
}

// String returns the "<channel_type>:<channel_id>" form.
func (t ReplyTarget) String() string {
	return t.ChannelType + ":" + t.ChannelID
}

// IsZero reports whether the target is unset.
func (t ReplyTarget) IsZero() bool {
	return t.ChannelType == "" && t.ChannelID == ""
}
