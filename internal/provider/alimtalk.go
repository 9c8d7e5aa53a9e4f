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

type AlimtalkConfig struct {
	BaseURL    string
	AppKey     string
	SecretKey  string
	SenderKey  string
	RatePerSec int
	Timeout    time.Duration
}

// AlimtalkClient talks to the KakaoTalk Bizmessage v2.3 API.
type AlimtalkClient struct {
	cfg AlimtalkConfig
	c   *httpClient
}

func NewAlimtalkClient(cfg AlimtalkConfig, log *zap.Logger) *AlimtalkClient {
	return &AlimtalkClient{
		cfg: cfg,
		c:   newHTTPClient(cfg.BaseURL, cfg.SecretKey, cfg.Timeout, cfg.RatePerSec, log),
	}
}

func (a *AlimtalkClient) Channel() automation.Channel { return automation.ChannelAlimtalk }

func (a *AlimtalkClient) path(format string, args ...any) string {
	return fmt.Sprintf("/alimtalk/v2.3/appkeys/%s", url.PathEscape(a.cfg.AppKey)) + fmt.Sprintf(format, args...)
}

type alimtalkRecipient struct {
	RecipientNo string `json:"recipientNo"`
	Content     string `json:"content"`
}

type alimtalkSendRequest struct {
	SenderKey     string              `json:"senderKey"`
	TemplateCode  string              `json:"templateCode"`
	RecipientList []alimtalkRecipient `json:"recipientList"`
}

type alimtalkSendResponse struct {
	Header  *resultHeader `json:"header"`
	Message *struct {
		RequestID   string `json:"requestId"`
		SendResults []struct {
			RecipientNo   string `json:"recipientNo"`
			ResultCode    int    `json:"resultCode"`
			ResultMessage string `json:"resultMessage"`
		} `json:"sendResults"`
	} `json:"message"`
}

// Send posts a raw (already rendered) message. A per-recipient failure inside a successful
// envelope is reported as a failed result.
func (a *AlimtalkClient) Send(ctx context.Context, msg Message) (SendResult, error) {
	req := alimtalkSendRequest{
		SenderKey:    a.cfg.SenderKey,
		TemplateCode: msg.TemplateRef,
		RecipientList: []alimtalkRecipient{{
			RecipientNo: msg.Recipient,
			Content:     msg.Content,
		}},
	}
	var resp alimtalkSendResponse
	if err := a.c.do(ctx, http.MethodPost, a.path("/raw-messages"), nil, req, &resp); err != nil {
		return SendResult{}, err
	}
	if resp.Header == nil {
		return SendResult{}, transportErr("alimtalk send", fmt.Errorf("response has no header"))
	}

	result := SendResult{
		OK:      resp.Header.IsSuccessful,
		Code:    resp.Header.code(),
		Message: resp.Header.ResultMessage,
	}
	if resp.Message != nil {
		result.RequestID = resp.Message.RequestID
		for _, r := range resp.Message.SendResults {
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

type alimtalkTemplatesResponse struct {
	Header               *resultHeader `json:"header"`
	TemplateListResponse *struct {
		Templates []struct {
			TemplateCode    string `json:"templateCode"`
			TemplateName    string `json:"templateName"`
			TemplateContent string `json:"templateContent"`
			Status          string `json:"status"`
		} `json:"templates"`
		TotalCount int `json:"totalCount"`
	} `json:"templateListResponse"`
}

func (a *AlimtalkClient) ListTemplates(ctx context.Context, page Page) (ListResult[Template], error) {
	page = page.Normalize()
	var resp alimtalkTemplatesResponse
	path := a.path("/senders/%s/templates", url.PathEscape(a.cfg.SenderKey))
	if err := a.c.do(ctx, http.MethodGet, path, pageQuery(page), nil, &resp); err != nil {
		return ListResult[Template]{}, err
	}
	if err := checkListHeader("alimtalk templates", resp.Header); err != nil {
		return ListResult[Template]{}, err
	}

	out := ListResult[Template]{Items: []Template{}}
	if resp.TemplateListResponse != nil {
		out.TotalCount = resp.TemplateListResponse.TotalCount
		for _, t := range resp.TemplateListResponse.Templates {
			out.Items = append(out.Items, Template{
				Code:    t.TemplateCode,
				Name:    t.TemplateName,
				Content: t.TemplateContent,
				Status:  t.Status,
			})
		}
	}
	return out, nil
}

type alimtalkSendersResponse struct {
	Header  *resultHeader `json:"header"`
	Senders []struct {
		SenderKey    string `json:"senderKey"`
		PlusFriendID string `json:"plusFriendId"`
		Status       string `json:"status"`
	} `json:"senders"`
	TotalCount int `json:"totalCount"`
}

func (a *AlimtalkClient) ListSenders(ctx context.Context, page Page) (ListResult[SenderProfile], error) {
	page = page.Normalize()
	var resp alimtalkSendersResponse
	if err := a.c.do(ctx, http.MethodGet, a.path("/senders"), pageQuery(page), nil, &resp); err != nil {
		return ListResult[SenderProfile]{}, err
	}
	if err := checkListHeader("alimtalk senders", resp.Header); err != nil {
		return ListResult[SenderProfile]{}, err
	}

	out := ListResult[SenderProfile]{Items: []SenderProfile{}, TotalCount: resp.TotalCount}
	for _, s := range resp.Senders {
		out.Items = append(out.Items, SenderProfile{Key: s.SenderKey, Name: s.PlusFriendID, Status: s.Status})
	}
	return out, nil
}

type alimtalkCategoriesResponse struct {
	Header     *resultHeader `json:"header"`
	Categories []struct {
		Name          string `json:"name"`
		Subcategories []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"subCategories"`
	} `json:"categories"`
}

// ListCategories flattens the two-level category tree into "group / name" entries and pages it
// locally; the provider returns the whole tree at once.
func (a *AlimtalkClient) ListCategories(ctx context.Context, page Page) (ListResult[Category], error) {
	page = page.Normalize()
	var resp alimtalkCategoriesResponse
	if err := a.c.do(ctx, http.MethodGet, a.path("/template/categories"), nil, nil, &resp); err != nil {
		return ListResult[Category]{}, err
	}
	if err := checkListHeader("alimtalk categories", resp.Header); err != nil {
		return ListResult[Category]{}, err
	}

	var all []Category
	for _, group := range resp.Categories {
		for _, sub := range group.Subcategories {
			all = append(all, Category{Code: sub.Code, Name: group.Name + " / " + sub.Name})
		}
	}
	return paginate(all, page), nil
}

// checkListHeader turns a failed catalog read into an error. Unlike Send there is no state
// machine to drive, so a provider-reported failure is returned as an error here.
func checkListHeader(op string, h *resultHeader) error {
	if h == nil {
		return transportErr(op, fmt.Errorf("response has no header"))
	}
	if !h.IsSuccessful {
		return &ProviderError{Code: h.code(), Message: h.ResultMessage}
	}
	return nil
}

// ProviderError is a well-formed failure answer to a catalog read.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

func paginate[T any](all []T, page Page) ListResult[T] {
	page = page.Normalize()
	out := ListResult[T]{Items: []T{}, TotalCount: len(all)}
	// compare page indexes before multiplying so huge page numbers cannot overflow
	if page.PageNum-1 > len(all)/page.PageSize {
		return out
	}
	start := (page.PageNum - 1) * page.PageSize
	if start >= len(all) {
		return out
	}
	end := start + page.PageSize
	if end > len(all) {
		end = len(all)
	}
	out.Items = append(out.Items, all[start:end]...)
	return out
}
