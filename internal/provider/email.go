package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"crm-messaging/internal/domain/automation"

	"go.uber.org/zap"
)

type EmailConfig struct {
	BaseURL       string
	AppKey        string
	SecretKey     string
	SenderAddress string
	RatePerSec    int
	Timeout       time.Duration
}

// EmailClient talks to the Email v2.1 API.
type EmailClient struct {
	cfg EmailConfig
	c   *httpClient
}

func NewEmailClient(cfg EmailConfig, log *zap.Logger) *EmailClient {
	return &EmailClient{
		cfg: cfg,
		c:   newHTTPClient(cfg.BaseURL, cfg.SecretKey, cfg.Timeout, cfg.RatePerSec, log),
	}
}

func (e *EmailClient) Channel() automation.Channel { return automation.ChannelEmail }

func (e *EmailClient) path(suffix string) string {
	return fmt.Sprintf("/email/v2.1/appKeys/%s", url.PathEscape(e.cfg.AppKey)) + suffix
}

type emailReceiver struct {
	ReceiveMailAddr string `json:"receiveMailAddr"`
	ReceiveType     string `json:"receiveType"`
}

type emailSendRequest struct {
	SenderAddress string          `json:"senderAddress"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	ReceiverList  []emailReceiver `json:"receiverList"`
}

type emailSendResponse struct {
	Header *resultHeader `json:"header"`
	Body   *struct {
		Data *struct {
			RequestID string `json:"requestId"`
			Results   []struct {
				ReceiveMailAddr string `json:"receiveMailAddr"`
				ResultCode      int    `json:"resultCode"`
				ResultMessage   string `json:"resultMessage"`
			} `json:"results"`
		} `json:"data"`
	} `json:"body"`
}

// Send delivers one mail. The subject falls back to the template reference when empty.
func (e *EmailClient) Send(ctx context.Context, msg Message) (SendResult, error) {
	title := msg.Subject
	if title == "" {
		title = msg.TemplateRef
	}
	req := emailSendRequest{
		SenderAddress: e.cfg.SenderAddress,
		Title:         title,
		Body:          msg.Content,
		ReceiverList:  []emailReceiver{{ReceiveMailAddr: msg.Recipient, ReceiveType: "MRT0"}},
	}
	var resp emailSendResponse
	if err := e.c.do(ctx, http.MethodPost, e.path("/sender/mail"), nil, req, &resp); err != nil {
		return SendResult{}, err
	}
	if resp.Header == nil {
		return SendResult{}, transportErr("email send", fmt.Errorf("response has no header"))
	}

	result := SendResult{
		OK:      resp.Header.IsSuccessful,
		Code:    resp.Header.code(),
		Message: resp.Header.ResultMessage,
	}
	if resp.Body != nil && resp.Body.Data != nil {
		result.RequestID = resp.Body.Data.RequestID
		for _, r := range resp.Body.Data.Results {
			if r.ResultCode != 0 {
				result.OK = false
				result.Code = fmt.Sprint(r.ResultCode)
				result.Message = r.ResultMessage
				break
			}
		}
	}
	return result, nil
}

type emailTemplatesResponse struct {
	Header *resultHeader `json:"header"`
	Body   *struct {
		PageNum    int `json:"pageNum"`
		PageSize   int `json:"pageSize"`
		TotalCount int `json:"totalCount"`
		Data       []struct {
			TemplateID   string `json:"templateId"`
			TemplateName string `json:"templateName"`
			Title        string `json:"title"`
			UseYn        string `json:"useYn"`
		} `json:"data"`
	} `json:"body"`
}

func (e *EmailClient) ListTemplates(ctx context.Context, page Page) (ListResult[Template], error) {
	page = page.Normalize()
	var resp emailTemplatesResponse
	if err := e.c.do(ctx, http.MethodGet, e.path("/templates"), pageQuery(page), nil, &resp); err != nil {
		return ListResult[Template]{}, err
	}
	if err := checkListHeader("email templates", resp.Header); err != nil {
		return ListResult[Template]{}, err
	}

	out := ListResult[Template]{Items: []Template{}}
	if resp.Body != nil {
		out.TotalCount = resp.Body.TotalCount
		for _, t := range resp.Body.Data {
			status := "active"
			if t.UseYn == "N" {
				status = "inactive"
			}
			out.Items = append(out.Items, Template{Code: t.TemplateID, Name: t.TemplateName, Content: t.Title, Status: status})
		}
	}
	return out, nil
}

type emailCategoriesResponse struct {
	Header *resultHeader `json:"header"`
	Body   *struct {
		TotalCount int `json:"totalCount"`
		Data       []struct {
			CategoryID   int    `json:"categoryId"`
			CategoryName string `json:"categoryName"`
		} `json:"data"`
	} `json:"body"`
}

func (e *EmailClient) ListCategories(ctx context.Context, page Page) (ListResult[Category], error) {
	page = page.Normalize()
	var resp emailCategoriesResponse
	if err := e.c.do(ctx, http.MethodGet, e.path("/categories"), pageQuery(page), nil, &resp); err != nil {
		return ListResult[Category]{}, err
	}
	if err := checkListHeader("email categories", resp.Header); err != nil {
		return ListResult[Category]{}, err
	}

	out := ListResult[Category]{Items: []Category{}}
	if resp.Body != nil {
		out.TotalCount = resp.Body.TotalCount
		for _, c := range resp.Body.Data {
			out.Items = append(out.Items, Category{Code: fmt.Sprint(c.CategoryID), Name: c.CategoryName})
		}
	}
	return out, nil
}

// ListSenders reports the configured sender address; the mail API has no sender registry.
func (e *EmailClient) ListSenders(_ context.Context, page Page) (ListResult[SenderProfile], error) {
	page = page.Normalize()
	var all []SenderProfile
	if e.cfg.SenderAddress != "" {
		all = append(all, SenderProfile{Key: e.cfg.SenderAddress, Name: e.cfg.SenderAddress, Status: "active"})
	}
	return paginate(all, page), nil
}
