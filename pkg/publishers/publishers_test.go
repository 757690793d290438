package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadRegistryEnabledFilter(t *testing.T) {
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: hook
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: queue
    type: SQS
    sqs:
      uri: https://sqs.eu-north-1.amazonaws.com/123/transactions
      region: eu-north-1
  - id: topic
    type: sns
    sns:
      topic_arn: arn:aws:sns:eu-north-1:123:transactions
      region: eu-north-1
      access_key_id: AKIA
      secret_access_key: secret
  - id: gcp
    type: pubsub
    pubsub:
      project_id: demo
      topic: transactions
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 4 {
		t.Fatalf("expected 4 publishers, got %d", len(reg.All()))
	}
	enabled := reg.Enabled()
	if len(enabled) != 3 || enabled[0].ID != "queue" {
		t.Fatalf("expected hook to be disabled, got %#v", enabled)
	}
	if enabled[0].Type != TypeSQS || enabled[0].SQS.Region != "eu-north-1" {
		t.Fatalf("unexpected sqs config %#v", enabled[0])
	}

	topic, ok := reg.ByID("topic")
	if !ok {
		t.Fatalf("expected topic publisher")
	}
	if topic.SNS.AccessKeyID != "AKIA" || topic.SNS.Region != "eu-north-1" {
		t.Fatalf("inline aws access not decoded: %#v", topic.SNS)
	}

	hook, _ := reg.ByID("hook")
	if hook.HTTP.Method != "POST" || hook.HTTP.TimeoutSeconds != 5 {
		t.Fatalf("http defaults not applied: %#v", hook.HTTP)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers":[{"id":"q","type":"sqs","sqs":{"uri":"https://q","region":"us-east-1","endpoint":"http://localhost:4566"}}]}`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	q, ok := reg.ByID("q")
	if !ok || q.SQS.Endpoint != "http://localhost:4566" {
		t.Fatalf("unexpected json config %#v", q)
	}
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: hook
    type: http
    http: {url: https://a.example}
  - id: hook
    type: http
    http: {url: https://b.example}
`)
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  PublisherConfig
	}{
		{name: "missing http", cfg: PublisherConfig{ID: "h1", Type: TypeHTTP}},
		{name: "missing sqs region", cfg: PublisherConfig{ID: "s1", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "https://q"}}},
		{name: "half credentials", cfg: PublisherConfig{ID: "s2", Type: TypeSNS, SNS: &SNSPublisherConfig{
			TopicARN:  "arn",
			AWSAccess: AWSAccess{Region: "eu-north-1", AccessKeyID: "AKIA"},
		}}},
		{name: "missing pubsub topic", cfg: PublisherConfig{ID: "p1", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "demo"}}},
		{name: "unknown type", cfg: PublisherConfig{ID: "k1", Type: "kafka"}},
		{name: "missing id", cfg: PublisherConfig{Type: TypeHTTP}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.normalize().validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateNamesEveryMissingField(t *testing.T) {
	cfg := PublisherConfig{ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{}}
	err := cfg.normalize().validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if got := err.Error(); got != `publisher "q" is missing sqs.region, sqs.uri` {
		t.Fatalf("error = %q", got)
	}
}

func TestLoadRegistryReportsDecodeError(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers": [`)
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
