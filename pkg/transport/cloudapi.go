package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/waveline/crm-services/dispatcher/pkg/httpclient"
)

// Provider error codes that identify an unreachable recipient rather than a
// broken payload. Anything else in the 4xx range is a payload problem.
var cloudAPIInvalidRecipientCodes = map[int]bool{
	131026: true, // message undeliverable
	131030: true, // recipient not a valid user
	132015: true, // recipient opted out at provider level
}

type CloudAPI struct {
	cfg    Config
	client httpclient.HTTPClient
}

func NewCloudAPI(cfg Config, client httpclient.HTTPClient) *CloudAPI {
	return &CloudAPI{cfg: cfg, client: client}
}

type cloudAPIRequest struct {
	MessagingProduct string             `json:"messaging_product"`
	To               string             `json:"to"`
	Type             string             `json:"type"`
	Text             *cloudAPIText      `json:"text,omitempty"`
	Image            *cloudAPIMedia     `json:"image,omitempty"`
	Template         *cloudAPITemplate  `json:"template,omitempty"`
}

type cloudAPIText struct {
	Body string `json:"body"`
}

type cloudAPIMedia struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type cloudAPITemplate struct {
	Name       string              `json:"name"`
	Language   cloudAPILanguage    `json:"language"`
	Components []cloudAPIComponent `json:"components,omitempty"`
}

type cloudAPILanguage struct {
	Code string `json:"code"`
}

type cloudAPIComponent struct {
	Type       string              `json:"type"`
	Parameters []cloudAPIParameter `json:"parameters"`
}

type cloudAPIParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cloudAPIResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *CloudAPI) Send(ctx context.Context, channel Channel, to string, payload Payload) (Response, error) {
	body, err := c.buildRequest(to, payload)
	if err != nil {
		return Response{}, &SendError{Code: CodePayloadRejected, Message: err.Error()}
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.CloudAPIBaseURL, channel.PhoneNumberID)
	headers := map[string]string{
		"Authorization": "Bearer " + channel.Token,
		"Content-Type":  "application/json",
	}

	resp, err := c.client.Post(ctx, url, bytes.NewReader(body), headers)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Response{}, &SendError{Code: CodeProviderUnavailable, Message: "request timed out"}
		}

		return Response{}, &SendError{Code: CodeProviderUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	var decoded cloudAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode == http.StatusOK {
		return Response{}, &SendError{Code: CodeProviderUnavailable, Message: "unreadable provider response"}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if len(decoded.Messages) == 0 {
			return Response{}, &SendError{Code: CodeProviderUnavailable, Message: "no message id in response"}
		}
		return Response{ProviderMessageID: decoded.Messages[0].ID}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return Response{}, &SendError{Code: CodeRateLimited, Message: "provider throughput limit reached"}

	case resp.StatusCode >= 500:
		return Response{}, &SendError{Code: CodeProviderUnavailable, Message: fmt.Sprintf("provider returned %d", resp.StatusCode)}

	default:
		code := 0
		message := fmt.Sprintf("provider returned %d", resp.StatusCode)
		if decoded.Error != nil {
			code = decoded.Error.Code
			message = decoded.Error.Message
		}

		if cloudAPIInvalidRecipientCodes[code] {
			return Response{}, &SendError{Code: CodeInvalidRecipient, Message: message}
		}

		return Response{}, &SendError{Code: CodePayloadRejected, Message: message}
	}
}

func (c *CloudAPI) buildRequest(to string, payload Payload) ([]byte, error) {
	req := cloudAPIRequest{MessagingProduct: "whatsapp", To: to}

	switch payload.Kind {
	case PayloadText:
		req.Type = "text"
		req.Text = &cloudAPIText{Body: payload.Text}

	case PayloadMedia:
		req.Type = "image"
		req.Image = &cloudAPIMedia{Link: payload.MediaURL, Caption: payload.MediaCaption}

	case PayloadTemplate:
		req.Type = "template"
		tpl := &cloudAPITemplate{Name: payload.TemplateName, Language: cloudAPILanguage{Code: "en"}}
		if len(payload.TemplateParams) > 0 {
			params := make([]cloudAPIParameter, 0, len(payload.TemplateParams))
			for _, p := range payload.TemplateParams {
				params = append(params, cloudAPIParameter{Type: "text", Text: p})
			}
			tpl.Components = []cloudAPIComponent{{Type: "body", Parameters: params}}
		}
		req.Template = tpl

	default:
		return nil, fmt.Errorf("unknown payload kind %q", payload.Kind)
	}

	return json.Marshal(req)
}
