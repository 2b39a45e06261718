package sink

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/mbus-hat/log2"
)

type Paho struct {
	log     *log2.Log
	m       mqtt.Client
	qos     byte
	retain  bool
	timeout time.Duration
}

var _ Publisher = &Paho{}

func NewPaho(c *Config, log *log2.Log) (*Paho, error) {
	mqttLog := log.Clone(log2.LDebug)
	mqttLog.SetPrefix("mqtt: ")
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if c.LogDebug {
		mqtt.DEBUG = mqttLog
	}

	timeout := c.networkTimeout()
	mopt := mqtt.NewClientOptions().
		AddBroker(c.MqttBroker).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetClientID(c.clientID()).
		SetConnectTimeout(timeout).
		SetPingTimeout(timeout).
		SetWriteTimeout(timeout)
	if c.Username != "" {
		mopt.SetUsername(c.Username).SetPassword(c.Password)
	}
	return &Paho{
		log:     log,
		m:       mqtt.NewClient(mopt),
		qos:     byte(c.qos()),
		retain:  c.retain(),
		timeout: timeout,
	}, nil
}

func (self *Paho) Publish(ctx context.Context, topic string, payload []byte) error {
	if !self.m.IsConnected() {
		if err := self.tokenWait(ctx, self.m.Connect(), "connect"); err != nil {
			return err
		}
	}
	t := self.m.Publish(topic, self.qos, self.retain, payload)
	return self.tokenWait(ctx, t, "publish")
}

func (self *Paho) Close() error {
	if self.m.IsConnected() {
		self.m.Disconnect(uint(self.timeout / time.Millisecond))
	}
	return nil
}

func (self *Paho) tokenWait(ctx context.Context, t mqtt.Token, tag string) error {
	timeout := self.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !t.WaitTimeout(timeout) {
		return errors.Timeoutf("mqtt %s", tag)
	}
	if err := t.Error(); err != nil {
		return errors.Annotatef(err, "mqtt %s", tag)
	}
	return nil
}
