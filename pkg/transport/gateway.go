package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Gateway talks to a self-hosted WhatsApp gateway instance (wuzapi-style).
// Each channel carries its own instance URL and token.
type Gateway struct {
	cfg    Config
	client *resty.Client
}

func NewGateway(cfg Config) *Gateway {
	client := resty.New().SetTimeout(cfg.Timeout)
	return &Gateway{cfg: cfg, client: client}
}

type gatewaySendRequest struct {
	Phone   string `json:"Phone"`
	Body    string `json:"Body,omitempty"`
	Image   string `json:"Image,omitempty"`
	Caption string `json:"Caption,omitempty"`
}

type gatewaySendResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID string `json:"Id"`
	} `json:"data"`
	Error string `json:"error"`
}

func (g *Gateway) Send(ctx context.Context, channel Channel, to string, payload Payload) (Response, error) {
	endpoint, req, err := g.buildRequest(channel, to, payload)
	if err != nil {
		return Response{}, &SendError{Code: CodePayloadRejected, Message: err.Error()}
	}

	var decoded gatewaySendResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("token", channel.Token).
		SetBody(req).
		SetResult(&decoded).
		SetError(&decoded).
		Post(endpoint)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Response{}, &SendError{Code: CodeProviderUnavailable, Message: "request timed out"}
		}

		return Response{}, &SendError{Code: CodeProviderUnavailable, Message: err.Error()}
	}

	switch {
	case resp.StatusCode() == http.StatusOK && decoded.Success:
		return Response{ProviderMessageID: decoded.Data.ID}, nil

	case resp.StatusCode() == http.StatusTooManyRequests:
		return Response{}, &SendError{Code: CodeRateLimited, Message: "gateway throughput limit reached"}

	case resp.StatusCode() == http.StatusBadRequest:
		// The gateway reports unreachable numbers as a 400 with a recipient
		// error string; everything else on 400 is a payload problem.
		if isGatewayInvalidRecipient(decoded.Error) {
			return Response{}, &SendError{Code: CodeInvalidRecipient, Message: decoded.Error}
		}
		return Response{}, &SendError{Code: CodePayloadRejected, Message: decoded.Error}

	case resp.StatusCode() >= 500:
		return Response{}, &SendError{Code: CodeProviderUnavailable, Message: fmt.Sprintf("gateway returned %d", resp.StatusCode())}

	default:
		return Response{}, &SendError{Code: CodeProviderUnavailable, Message: fmt.Sprintf("gateway returned %d", resp.StatusCode())}
	}
}

func (g *Gateway) buildRequest(channel Channel, to string, payload Payload) (string, gatewaySendRequest, error) {
	switch payload.Kind {
	case PayloadText:
		return channel.InstanceURL + "/chat/send/text", gatewaySendRequest{Phone: to, Body: payload.Text}, nil

	case PayloadMedia:
		return channel.InstanceURL + "/chat/send/image",
			gatewaySendRequest{Phone: to, Image: payload.MediaURL, Caption: payload.MediaCaption}, nil

	case PayloadTemplate:
		// Self-hosted gateways have no template registry; render the template
		// name and parameters as plain text.
		body := payload.TemplateName
		for _, p := range payload.TemplateParams {
			body += " " + p
		}
		return channel.InstanceURL + "/chat/send/text", gatewaySendRequest{Phone: to, Body: body}, nil

	default:
		return "", gatewaySendRequest{}, fmt.Errorf("unknown payload kind %q", payload.Kind)
	}
}

func isGatewayInvalidRecipient(errText string) bool {
	switch errText {
	case "no user found", "invalid phone number", "recipient not on whatsapp":
		return true
	}
	return false
}
