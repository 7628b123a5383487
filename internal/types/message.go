package types

import (
	"strconv"
	"unicode/utf8"
)

// MaxTextLength caps every text payload that travels to a composer.
const MaxTextLength = 100000

// TabID identifies a browser tab for the lifetime of its page target.
type TabID int

func (id TabID) String() string { return strconv.Itoa(int(id)) }

// MessageType names a protocol message.
type MessageType string

const (
	MsgGetEligibleTabs MessageType = "GET_ELIGIBLE_TABS"
	MsgPingTab         MessageType = "PING_TAB"
	MsgSetText         MessageType = "SET_TEXT"
	MsgSendCommand     MessageType = "SEND_COMMAND"
	MsgPing            MessageType = "PING"
	MsgGetText         MessageType = "GET_TEXT"
	MsgSend            MessageType = "SEND"
	MsgComposerChanged MessageType = "COMPOSER_CHANGED"
)

// Message is the envelope shared by the panel, the gateway and the per-tab
// watchers. Unused fields are left empty.
type Message struct {
	Type   MessageType `json:"type"`
	TabID  TabID       `json:"tabId,omitempty"`
	TabURL string      `json:"tabUrl,omitempty"`
	Text   string      `json:"text,omitempty"`
}

// Reply is what a watcher answers to PING, SET_TEXT, SEND and GET_TEXT.
type Reply struct {
	OK            bool   `json:"ok"`
	Provider      string `json:"provider,omitempty"`
	ComposerReady bool   `json:"composerReady,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Text          string `json:"text,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Result is the outcome of a write or send.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// PingResult reports whether a tab's composer can take commands.
type PingResult struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// TabsReply answers GET_ELIGIBLE_TABS.
type TabsReply struct {
	Tabs []EligibleTab `json:"tabs"`
}

// ComposerChanged is emitted when the user edits a provider's composer.
type ComposerChanged struct {
	TabID    TabID  `json:"tabId"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

// TextLength counts characters the way the panel limit is expressed.
func TextLength(s string) int { return utf8.RuneCountInString(s) }
