package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/showsync/showsync-core/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial broker connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultTokenTimeout bounds publish/subscribe acknowledgements.
	defaultTokenTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is how long Disconnect waits for in-flight
	// work, in milliseconds (paho takes a uint of ms).
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2
)

// buildClientOptions translates the ShowSync MQTT config section into paho
// client options: broker URL, identity, credentials, clean session, and
// auto-reconnect with capped backoff. TLS 1.2 is the floor when enabled.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// statusPayload is the body published on the system status topic. The same
// shape is used for online, graceful-offline and LWT (crash) messages so
// subscribers only parse one format.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (p statusPayload) encode() string {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	b, err := json.Marshal(p)
	if err != nil {
		// Marshalling a flat string struct cannot fail; keep the broker
		// informed even if it somehow does.
		return `{"status":"` + p.Status + `"}`
	}
	return string(b)
}

// configureLWT registers the Last Will so the broker announces a crashed
// controller mid-show. Retained on the status topic, QoS 1.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	will := statusPayload{Status: "offline", ClientID: clientID, Reason: "unexpected_disconnect"}
	opts.SetWill(Topics{}.SystemStatus(), will.encode(), 1, true)
}

func buildOnlinePayload(clientID string) string {
	return statusPayload{Status: "online", ClientID: clientID}.encode()
}

func buildOfflinePayload(clientID string) string {
	return statusPayload{Status: "offline", ClientID: clientID, Reason: "graceful_shutdown"}.encode()
}
