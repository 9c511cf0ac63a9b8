package terrain

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// GridHandler is called for every grid payload received on the grid topic.
// On a decode failure grid is nil and err describes the problem. An empty
// payload (a cleared retained message) arrives as a nil grid and nil err.
type GridHandler func(gridID string, grid *ElevationGrid, err error)

// MQTTClient manages the broker connection and the optional grid
// subscription.
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	gridHandler GridHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT creates the MQTT client and starts connecting in the background.
// The broker comes from MQTT_BROKER or mqtt.broker; when neither is set MQTT
// is disabled and InitMQTT returns nil, nil.
func InitMQTT(config *Config, handler GridHandler) (*MQTTClient, error) {
	if config == nil {
		return nil, fmt.Errorf("MQTT requires a configuration")
	}
	opts, ok := clientOptions(config)
	if !ok {
		log.Println("[MQTT] no broker configured, results will not be published")
		return nil, nil
	}

	c := &MQTTClient{config: config, gridHandler: handler}
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting")
	})
	c.client = mqtt.NewClient(opts)

	go c.connectWithRetry()
	return c, nil
}

// clientOptions resolves broker settings, environment first.
func clientOptions(config *Config) (*mqtt.ClientOptions, bool) {
	broker := envOr("MQTT_BROKER", config.MQTT.Broker)
	if broker == "" {
		return nil, false
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := envOr("MQTT_CLIENT_ID", config.MQTT.ClientID)
	if clientID == "" {
		clientID = "prominence"
	}
	opts.SetClientID(clientID)

	if username := envOr("MQTT_USERNAME", config.MQTT.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	// grid analyses can take minutes; let other messages through meanwhile
	opts.SetOrderMatters(false)
	return opts, true
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// connectWithRetry connects with exponential backoff capped at one minute.
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting")
		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connect failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connect timed out")
		}

		log.Printf("[MQTT] next attempt in %v", retryDelay)
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	topic := c.config.MQTT.GridTopic
	if topic == "" {
		log.Println("[MQTT] session ready, publishing only")
		return
	}

	log.Printf("[MQTT] session ready, accepting grids on %s", topic)
	token := client.Subscribe(topic, 1, c.handleGridMessage)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("Error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] subscribed to %s", topic)
}

func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("[MQTT] connection lost (%v), auto-reconnect enabled", err)
	c.setConnected(false)
}

func (c *MQTTClient) handleGridMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	gridID := GridIDFromTopic(c.config.MQTT.GridTopic, msg.Topic())
	log.Printf("Received grid %s (topic: %s, size: %d bytes)", gridID, msg.Topic(), len(payload))

	if len(payload) == 0 {
		if c.gridHandler != nil {
			c.gridHandler(gridID, nil, nil)
		}
		return
	}
	g, err := ParseGridJSON(payload)
	if err != nil {
		log.Printf("Error decoding grid %s: %v", gridID, err)
	}
	if c.gridHandler != nil {
		c.gridHandler(gridID, g, err)
	}
}

// GridIDFromTopic derives a grid id from a received topic. When pattern
// contains a single-level wildcard, the level it matched is the id;
// otherwise the last topic level is used.
func GridIDFromTopic(pattern, topic string) string {
	levels := strings.Split(topic, "/")
	for i, p := range strings.Split(pattern, "/") {
		if p == "+" && i < len(levels) {
			return levels[i]
		}
	}
	return levels[len(levels)-1]
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWith wraps an existing mqtt.Client without connecting.
func newMQTTClientWith(client mqtt.Client, config *Config, handler GridHandler) *MQTTClient {
	return &MQTTClient{client: client, config: config, gridHandler: handler}
}
