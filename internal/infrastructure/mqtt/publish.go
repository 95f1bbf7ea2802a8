package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps publish bodies at 1 MiB, matching common broker limits.
// Dispatch results and playback state are a few hundred bytes; anything near
// this limit is a caller bug.
const maxPayloadSize = 1 << 20

// waitToken blocks on a paho token with the acknowledgement timeout and
// folds the timeout and token error into one sentinel-wrapped error.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultTokenTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultTokenTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}

// Publish sends a message to the given topic.
//
// Retained should be set only for state topics (playback state, system
// status) where late subscribers need the last value; commands and events
// are never retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	return waitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}
