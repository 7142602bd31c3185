package services

import (
	"fmt"
	"log"

	pubnub "github.com/pubnub/go"
)

// Publisher pushes realtime messages to app clients. The production
// implementation is PubNub; tests plug in a recorder.
type Publisher interface {
	Publish(channel string, message map[string]any)
}

// PubNubPublisher publishes over the app-level PubNub keyset.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) Publish(channel string, message map[string]any) {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		log.Printf("pubnub publish to %s failed: %v", channel, err)
	}
}

// UserChannel is the per-user channel purchase progress is streamed on.
func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// EventChannel is the per-event channel availability changes are pushed on.
func EventChannel(eventID string) string {
	return fmt.Sprintf("event-%s", eventID)
}
