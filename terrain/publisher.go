package terrain

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ResultSummary is the compact description of a Result published and
// served for each grid.
type ResultSummary struct {
	GridID           string `json:"gridId"`
	Summits          int    `json:"summits"`
	Saddles          int    `json:"saddles"`
	QualifiedSaddles int    `json:"qualifiedSaddles"`
	Linkers          int    `json:"linkers"`
	Stalls           int    `json:"stalls"`
	ClassifyMillis   int64  `json:"classifyMs"`
	WalkMillis       int64  `json:"walkMs"`
	Timestamp        int64  `json:"timestamp"`
}

// NewResultSummary summarizes res.
func NewResultSummary(gridID string, res *Result) ResultSummary {
	return ResultSummary{
		GridID:           gridID,
		Summits:          len(res.Summits),
		Saddles:          len(res.Saddles),
		QualifiedSaddles: len(res.QualifiedSaddles()),
		Linkers:          len(res.Linkers),
		Stalls:           len(res.Stalls),
		ClassifyMillis:   res.ClassifyDuration.Milliseconds(),
		WalkMillis:       res.WalkDuration.Milliseconds(),
		Timestamp:        res.Started.Unix(),
	}
}

// Publisher publishes analysis results to MQTT.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	export        ExportOptions
}

// NewPublisher creates a result publisher. MQTT_PUBLISH_PREFIX overrides
// prefix; an empty prefix means "prominence".
func NewPublisher(client mqtt.Client, prefix string, export ExportOptions) *Publisher {
	prefix = envOr("MQTT_PUBLISH_PREFIX", prefix)
	if prefix == "" {
		prefix = "prominence"
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,
		retain:        true,
		export:        export,
	}
}

// Prefix returns the topic prefix in use.
func (p *Publisher) Prefix() string { return p.publishPrefix }

// PublishResult publishes a summary to <prefix>/<gridID>/summary and the
// GeoJSON export to <prefix>/<gridID>/features.
func (p *Publisher) PublishResult(gridID string, g Grid, res *Result) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	summary, err := json.Marshal(NewResultSummary(gridID, res))
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := p.publish(p.topic(gridID, "summary"), summary); err != nil {
		return err
	}

	features, err := ToFeatureCollection(g, res, p.export).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling features: %w", err)
	}
	if err := p.publish(p.topic(gridID, "features"), features); err != nil {
		return err
	}

	log.Printf("Published result for %s: %d summits, %d saddles (%d bytes of features)",
		gridID, len(res.Summits), len(res.Saddles), len(features))
	return nil
}

func (p *Publisher) topic(gridID, leaf string) string {
	return fmt.Sprintf("%s/%s/%s", p.publishPrefix, gridID, leaf)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publishing to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}
