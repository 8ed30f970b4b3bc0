package report

import (
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is the subset of the MQTT client the reporter needs.
type Publisher interface {
	Topic(suffix string) string
	Publish(topic string, payload []byte) error
}

// MQTT publishes each record as JSON to <prefix>/<client id>/tag.
type MQTT struct {
	pub Publisher
}

// NewMQTT creates an MQTT reporter.
func NewMQTT(pub Publisher) *MQTT {
	return &MQTT{pub: pub}
}

type tagMessage struct {
	ID         string `json:"id"`
	Protocol   string `json:"protocol"`
	UID        string `json:"uid"`
	UptimeMs   int64  `json:"uptime_ms"`
	ObservedAt string `json:"observed_at"`
}

// Report implements Reporter.Report.
func (m *MQTT) Report(r Record) error {
	payload, err := json.Marshal(tagMessage{
		ID:         r.ID.String(),
		Protocol:   r.Protocol.String(),
		UID:        r.UID.String(),
		UptimeMs:   r.ObservedAt.Milliseconds(),
		ObservedAt: r.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return m.pub.Publish(m.pub.Topic("tag"), payload)
}
