package report

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/drai-ai/drai/internal/chat"
)

// 1x1 white PNG.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func testSession(messages int) *chat.Session {
	sess := chat.NewSession()
	sess.Title = "Persistent headaches"
	for i := 0; i < messages; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		sess.Messages = append(sess.Messages, chat.Message{
			ID:   chat.NewMessageID(),
			Role: role,
			Text: fmt.Sprintf("Message %d. %s", i, strings.Repeat("Symptom detail. ", 20)),
		})
	}
	return sess
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	res, err := NewExporter().Export(context.Background(), testSession(6), dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("report file is empty")
	}
	if !strings.HasPrefix(info.Name(), "DrAI_Complete_Report_") || !strings.HasSuffix(info.Name(), ".pdf") {
		t.Errorf("filename = %q", info.Name())
	}
	// 6 turn messages + welcome.
	if res.Messages != 7 {
		t.Errorf("messages = %d, want 7", res.Messages)
	}
}

func TestPageAccounting(t *testing.T) {
	dir := t.TempDir()
	res, err := NewExporter().Export(context.Background(), testSession(40), dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages < 2 {
		t.Errorf("pages = %d, want a multi-page report", res.Pages)
	}
	if res.Pages != res.Breaks+1 {
		t.Errorf("pages = %d, breaks = %d, want pages == breaks+1", res.Pages, res.Breaks)
	}
}

// inflateStreams decompresses every content stream in a PDF so text drawn on
// its pages can be grepped.
func inflateStreams(t *testing.T, pdf []byte) string {
	t.Helper()
	var out strings.Builder
	for {
		i := bytes.Index(pdf, []byte("stream"))
		if i < 0 {
			break
		}
		// Skip the "stream" inside "endstream" markers.
		if i >= 3 && bytes.Equal(pdf[i-3:i], []byte("end")) {
			pdf = pdf[i+len("stream"):]
			continue
		}
		chunk := pdf[i+len("stream"):]
		for len(chunk) > 0 && (chunk[0] == '\r' || chunk[0] == '\n') {
			chunk = chunk[1:]
		}
		end := bytes.Index(chunk, []byte("endstream"))
		if end < 0 {
			break
		}
		if r, err := zlib.NewReader(bytes.NewReader(chunk[:end])); err == nil {
			if data, err := io.ReadAll(r); err == nil {
				out.Write(data)
			}
			r.Close()
		} else {
			out.Write(chunk[:end])
		}
		pdf = chunk[end:]
	}
	return out.String()
}

func TestDisclaimerOnEveryPage(t *testing.T) {
	dir := t.TempDir()
	res, err := NewExporter().Export(context.Background(), testSession(40), dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages < 2 {
		t.Fatalf("pages = %d, want a multi-page report", res.Pages)
	}

	raw, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	text := inflateStreams(t, raw)
	if got := strings.Count(text, "Disclaimer: AI-generated advice"); got != res.Pages {
		t.Errorf("disclaimer appears %d time(s) in a %d-page report", got, res.Pages)
	}
	if got := strings.Count(text, "Page "); got != res.Pages {
		t.Errorf("page stamp appears %d time(s) in a %d-page report", got, res.Pages)
	}
}

func TestInlineImageEmbeds(t *testing.T) {
	sess := chat.NewSession()
	sess.Messages = append(sess.Messages, chat.Message{
		ID:   chat.NewMessageID(),
		Role: chat.RoleUser,
		Text: "[Image Analysis Request]: red patch",
		InlineImage: &chat.ImagePayload{
			Data:      tinyPNG,
			MediaType: "image/png",
		},
	})

	dir := t.TempDir()
	if _, err := NewExporter().Export(context.Background(), sess, dir); err != nil {
		t.Fatal(err)
	}
}

func TestGeneratedImageFetched(t *testing.T) {
	png, _ := base64.StdEncoding.DecodeString(tinyPNG)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer srv.Close()

	sess := chat.NewSession()
	sess.Messages = append(sess.Messages, chat.Message{
		ID:             chat.NewMessageID(),
		Role:           chat.RoleAssistant,
		Text:           `Here is the image you requested: **"medical illustration"**`,
		GeneratedImage: srv.URL + "/p/medical%20illustration",
	})

	dir := t.TempDir()
	if _, err := NewExporter().Export(context.Background(), sess, dir); err != nil {
		t.Fatal(err)
	}
}

func TestUnreachableGeneratedImageDegrades(t *testing.T) {
	sess := chat.NewSession()
	sess.Messages = append(sess.Messages, chat.Message{
		ID:             chat.NewMessageID(),
		Role:           chat.RoleAssistant,
		GeneratedImage: "http://127.0.0.1:1/p/nothing",
	})

	dir := t.TempDir()
	if _, err := NewExporter().Export(context.Background(), sess, dir); err != nil {
		t.Fatalf("export failed on unreachable image: %v", err)
	}
}

func TestPlainTextStripsMarkers(t *testing.T) {
	got := plainText("## **Observation**: _mild_ *swelling* `here`")
	if strings.ContainsAny(got, "*#_`") {
		t.Errorf("markdown markers leaked into %q", got)
	}
	if !strings.Contains(got, "Observation: mild swelling here") {
		t.Errorf("plainText = %q", got)
	}
}

func TestFilename(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	if got := Filename(now); got != "DrAI_Complete_Report_1700000000000.pdf" {
		t.Errorf("Filename = %q", got)
	}
}
