package sink

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/256dpi/gomqtt/client"
	"github.com/256dpi/gomqtt/packet"
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/log2"
)

// Gomqtt driver: credentials go into broker URL, one connection per process.
type Gomqtt struct {
	log     *log2.Log
	config  *client.Config
	qos     packet.QOS
	retain  bool
	timeout time.Duration

	mu        sync.Mutex
	c         *client.Client
	connected bool
}

var _ Publisher = &Gomqtt{}

func NewGomqtt(c *Config, log *log2.Log) (*Gomqtt, error) {
	u, err := url.Parse(c.MqttBroker)
	if err != nil {
		return nil, errors.Annotatef(err, "config error mqtt_broker=%s", c.MqttBroker)
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	config := client.NewConfigWithClientID(u.String(), c.clientID())
	config.CleanSession = true
	return &Gomqtt{
		log:     log,
		config:  config,
		qos:     packet.QOS(c.qos()),
		retain:  c.retain(),
		timeout: c.networkTimeout(),
	}, nil
}

func (self *Gomqtt) connect() error {
	if self.connected {
		return nil
	}
	self.c = client.New()
	self.c.Callback = func(_ *packet.Message, err error) error {
		if err != nil {
			self.log.Errorf("mqtt gomqtt callback err=%v", err)
		}
		return nil
	}
	cf, err := self.c.Connect(self.config)
	if err != nil {
		return errors.Annotate(err, "mqtt connect")
	}
	if err = cf.Wait(self.timeout); err != nil {
		_ = self.c.Close()
		return errors.Annotate(err, "mqtt connect")
	}
	self.connected = true
	return nil
}

func (self *Gomqtt) Publish(ctx context.Context, topic string, payload []byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if err := self.connect(); err != nil {
		return err
	}
	timeout := self.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	pf, err := self.c.Publish(topic, payload, self.qos, self.retain)
	if err == nil {
		err = pf.Wait(timeout)
	}
	if err != nil {
		// next Publish reconnects
		self.connected = false
		_ = self.c.Close()
		return errors.Annotate(err, "mqtt publish")
	}
	return nil
}

func (self *Gomqtt) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.connected {
		return nil
	}
	self.connected = false
	return errors.Trace(self.c.Disconnect(self.timeout))
}
