package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	var gotPath, gotChat, gotText string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChat = r.Form.Get("chat_id")
		gotText = r.Form.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tg := NewTelegram("TOKEN", ts.URL)
	require.NoError(t, tg.SendText(context.Background(), "chat-1", "급등 신호"))
	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "chat-1", gotChat)
	assert.Equal(t, "급등 신호", gotText)
}

func TestSendTextAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer ts.Close()

	tg := NewTelegram("TOKEN", ts.URL)
	err := tg.SendText(context.Background(), "missing", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendDocumentMultipart(t *testing.T) {
	var gotFilename, gotPartType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		gotFilename = hdr.Filename
		gotPartType = hdr.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tg := NewTelegram("TOKEN", ts.URL)
	pdf := []byte("%PDF-1.4 weekly report")
	require.NoError(t, tg.SendDocument(context.Background(), "chat-1", pdf, "weekly.pdf", "주간 리포트"))
	assert.Equal(t, "weekly.pdf", gotFilename)
	assert.Equal(t, "application/pdf", gotPartType)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.SendText(context.Background(), "c", "m"))
	require.NoError(t, r.SendDocument(context.Background(), "c", []byte("data"), "f.txt", "cap"))
	assert.Equal(t, 1, r.TextCount())
	assert.Len(t, r.Documents, 1)
}
