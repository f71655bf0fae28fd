package broker

import (
	"testing"

	"github.com/marvin-agent/marvin/internal/config"
)

func TestTopicNaming(t *testing.T) {
	tr := NewKafkaTransport(config.BrokerConfig{Brokers: "localhost:9092", TopicPrefix: "marvin"})
	defer tr.Close()

	cases := map[string]string{
		"web":        "marvin.agent.web",
		"sub agent":  "marvin.agent.sub-agent",
		"team/alpha": "marvin.agent.team-alpha",
	}
	for receiver, want := range cases {
		if got := tr.topic(receiver); got != want {
			t.Errorf("topic(%q) = %q, want %q", receiver, got, want)
		}
	}
}

func TestTopicPrefixDefault(t *testing.T) {
	tr := NewKafkaTransport(config.BrokerConfig{Brokers: "localhost:9092"})
	defer tr.Close()
	if got := tr.topic("x"); got != "marvin.agent.x" {
		t.Errorf("topic with empty prefix = %q", got)
	}
}
