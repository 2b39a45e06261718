// Package sink publishes readings to MQTT broker.
// Messages that failed to reach broker are kept in persistent spool and re-published before next message.
package sink

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/helpers"
	"github.com/temoto/mbus-hat/log2"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	DefaultQOS            = 1
	clientIDPrefix        = "mbus-hat-"
)

// Publisher waits for broker acknowledge, bounded by ctx and network timeout.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

type Config struct { //nolint:maligned
	Enable            bool   `hcl:"enable"`
	Driver            string `hcl:"driver"` // paho|gomqtt
	LogDebug          bool   `hcl:"log_debug"`
	MqttBroker        string `hcl:"mqtt_broker"` // tcp://host:1883
	ClientID          string `hcl:"client_id"`
	Username          string `hcl:"username"`
	Password          string `hcl:"password"` // secret
	TopicPrefix       string `hcl:"topic_prefix"`
	QOS               *int   `hcl:"qos"`
	Retain            *bool  `hcl:"retain"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	SpoolPath         string `hcl:"spool_path"`
}

func (c *Config) Validate() error {
	if !c.Enable {
		return nil
	}
	errs := make([]error, 0, 4)
	switch c.Driver {
	case "", "paho", "gomqtt":
	default:
		errs = append(errs, errors.NotSupportedf("sink.driver=%s", c.Driver))
	}
	if c.MqttBroker == "" {
		errs = append(errs, errors.NotValidf("sink.mqtt_broker=empty"))
	}
	if q := c.qos(); q < 0 || q > 1 {
		errs = append(errs, errors.NotValidf("sink.qos=%d, supported 0 or 1", q))
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) qos() int {
	if c.QOS == nil {
		return DefaultQOS
	}
	return *c.QOS
}

// Readings are state, broker keeps last one for late subscribers.
func (c *Config) retain() bool {
	return c.Retain == nil || *c.Retain
}

func (c *Config) networkTimeout() time.Duration {
	return helpers.IntSecondDefault(c.NetworkTimeoutSec, DefaultNetworkTimeout)
}

func (c *Config) clientID() string {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID()
	}
	return c.ClientID
}

func DefaultClientID() string {
	return clientIDPrefix + uuid.New().String()[:8]
}

type Sink struct {
	Log         *log2.Log
	TopicPrefix string

	pub   Publisher
	spool *Spool
}

func New(pub Publisher, spool *Spool, topicPrefix string, log *log2.Log) *Sink {
	return &Sink{
		Log:         log,
		TopicPrefix: topicPrefix,
		pub:         pub,
		spool:       spool,
	}
}

// Open selects driver by config. Network connection is established on first Publish.
func Open(c *Config, log *log2.Log) (*Sink, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Annotate(err, "sink config")
	}
	var pub Publisher
	var err error
	switch c.Driver {
	case "gomqtt":
		pub, err = NewGomqtt(c, log)
	default:
		pub, err = NewPaho(c, log)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "sink driver=%s", c.Driver)
	}
	var spool *Spool
	if c.SpoolPath != "" {
		if spool, err = OpenSpool(c.SpoolPath); err != nil {
			_ = pub.Close()
			return nil, errors.Annotatef(err, "sink spool path=%s", c.SpoolPath)
		}
	}
	return New(pub, spool, c.TopicPrefix, log), nil
}

func (self *Sink) Topic(routingKey string) string { return self.TopicPrefix + routingKey }

// Deliver publishes older spooled messages first, then this one.
// On failure message is spooled (if configured) and error returned.
func (self *Sink) Deliver(ctx context.Context, topic string, payload []byte) error {
	if self.spool != nil {
		if n, err := self.Flush(ctx); err != nil {
			self.Log.Errorf("sink spool flush sent=%d err=%v", n, err)
			return self.keep(topic, payload, err)
		}
	}
	if err := self.pub.Publish(ctx, topic, payload); err != nil {
		return self.keep(topic, payload, err)
	}
	self.Log.Debugf("sink published topic=%s payload=(%d)", topic, len(payload))
	return nil
}

func (self *Sink) keep(topic string, payload []byte, err error) error {
	err = errors.Annotatef(err, "sink topic=%s", topic)
	if self.spool == nil {
		return err
	}
	if serr := self.spool.Push(topic, payload); serr != nil {
		return errors.Annotatef(err, "spool push err=%v", serr)
	}
	self.Log.Infof("sink spooled topic=%s", topic)
	return err
}

// Flush re-publishes spooled messages in order, stops at first failure.
func (self *Sink) Flush(ctx context.Context) (int, error) {
	if self.spool == nil {
		return 0, nil
	}
	return self.spool.Drain(func(topic string, payload []byte) error {
		return self.pub.Publish(ctx, topic, payload)
	})
}

func (self *Sink) Close() error {
	errs := []error{self.pub.Close()}
	if self.spool != nil {
		errs = append(errs, self.spool.Close())
	}
	return helpers.FoldErrors(errs)
}
