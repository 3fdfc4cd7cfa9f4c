package transport

import (
	"context"
	"time"
)

// Channel kinds supported by the dispatcher.
const (
	KindCloudAPI = "CLOUD_API"
	KindGateway  = "GATEWAY"
)

// Payload kinds.
const (
	PayloadText     = "TEXT"
	PayloadMedia    = "MEDIA"
	PayloadTemplate = "TEMPLATE"
)

type Config struct {
	CloudAPIBaseURL string        `mapstructure:"cloud_api_base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// Channel carries the provider-facing identity of one configured outbound
// endpoint. Credentials are resolved by the channel config store; the
// transport never persists anything.
type Channel struct {
	ID            int64
	Kind          string
	PhoneNumberID string
	InstanceURL   string
	Token         string
}

type Payload struct {
	Kind           string
	Text           string
	MediaURL       string
	MediaCaption   string
	TemplateName   string
	TemplateParams []string
}

type Response struct {
	ProviderMessageID string
}

// Transport sends one message over one provider. Implementations normalize
// provider error shapes into *SendError; callers never see raw provider
// responses.
type Transport interface {
	Send(ctx context.Context, channel Channel, to string, payload Payload) (Response, error)
}

// Registry resolves the transport for a channel kind.
type Registry struct {
	transports map[string]Transport
}

func NewRegistry(cloudAPI Transport, gateway Transport) *Registry {
	return &Registry{transports: map[string]Transport{
		KindCloudAPI: cloudAPI,
		KindGateway:  gateway,
	}}
}

func (r *Registry) Send(ctx context.Context, channel Channel, to string, payload Payload) (Response, error) {
	t, ok := r.transports[channel.Kind]
	if !ok {
		return Response{}, &SendError{Code: CodePayloadRejected, Message: "unsupported channel kind " + channel.Kind}
	}

	return t.Send(ctx, channel, to, payload)
}
