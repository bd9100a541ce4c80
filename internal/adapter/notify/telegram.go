// Package notify pushes signal messages to chat channels.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Telegram implements domain.NotificationAdapter over the Bot API.
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegram constructs the adapter. baseURL override is for tests; pass
// "" for the real API.
func NewTelegram(token, baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Telegram{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SendText posts a plain message to chatID.
func (t *Telegram) SendText(ctx domain.Context, chatID, message string) error {
	form := url.Values{"chat_id": {chatID}, "text": {message}}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return domain.WrapAdapter("telegram", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

// SendDocument uploads a document with a caption. The part content type is
// sniffed from the payload so reports render correctly in chat clients.
func (t *Telegram) SendDocument(ctx domain.Context, chatID string, data []byte, filename, caption string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("chat_id", chatID)
	_ = mw.WriteField("caption", caption)

	mtype := mimetype.Detect(data)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="document"; filename=%q`, filename)}
	hdr["Content-Type"] = []string{mtype.String()}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return domain.WrapAdapter("telegram", err)
	}
	if _, err := part.Write(data); err != nil {
		return domain.WrapAdapter("telegram", err)
	}
	if err := mw.Close(); err != nil {
		return domain.WrapAdapter("telegram", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendDocument", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return domain.WrapAdapter("telegram", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(req)
}

func (t *Telegram) do(req *http.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return domain.WrapAdapter("telegram", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.Unmarshal(b, &apiErr)
		return domain.WrapAdapter("telegram", fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Description))
	}
	return nil
}
