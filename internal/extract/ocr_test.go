package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/provider"
)

type recordingRunner struct {
	name string
	args []string
	out  []byte
	err  error
	// onRun runs before returning, e.g. to create the output file a real tool would write.
	onRun func(args []string)
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	if r.onRun != nil {
		r.onRun(args)
	}
	return r.out, r.err
}

func TestPopplerRasterizer(t *testing.T) {
	runner := &recordingRunner{onRun: func(args []string) {
		root := args[len(args)-1]
		_ = os.WriteFile(root+".jpg", []byte("jpeg-bytes"), 0600)
	}}
	r := NewPopplerRasterizer("pdftoppm", 140, runner)
	img, err := r.Rasterize(context.Background(), "/tmp/doc.pdf", 3)
	if err != nil {
		t.Fatal(err)
	}
	if string(img.Data) != "jpeg-bytes" || img.Page != 3 || img.MIMEType != "image/jpeg" {
		t.Errorf("img = %+v", img)
	}
	joined := strings.Join(runner.args, " ")
	for _, want := range []string{"-f 3 -l 3", "-r 140", "-jpeg", "-singlefile", "/tmp/doc.pdf"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestPopplerRasterizer_missingOutput(t *testing.T) {
	r := NewPopplerRasterizer("", 0, &recordingRunner{})
	if _, err := r.Rasterize(context.Background(), "/tmp/doc.pdf", 1); err == nil {
		t.Error("expected error when pdftoppm writes nothing")
	}
}

func TestTesseractOCR(t *testing.T) {
	runner := &recordingRunner{out: []byte("recognized text\n")}
	o := NewTesseractOCR("tesseract", runner)
	text, err := o.Recognize(context.Background(), &PageImage{Page: 1, Data: []byte("img")}, []string{"eng", "ara"})
	if err != nil {
		t.Fatal(err)
	}
	if text != "recognized text\n" {
		t.Errorf("text = %q", text)
	}
	if runner.args[1] != "stdout" || runner.args[3] != "eng+ara" {
		t.Errorf("args = %v", runner.args)
	}
}

func TestResilientOCR_retriesTransientFailures(t *testing.T) {
	calls := 0
	inner := ocrFunc(func(context.Context, *PageImage, []string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("502 bad gateway")
		}
		return "ok", nil
	})
	r := NewResilientOCR(inner, provider.Policy{Name: "test", MaxRetries: 2, BaseDelay: time.Millisecond})
	out, err := r.RecognizeBatch(context.Background(), []*PageImage{{Page: 4}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out[4] != "ok" || calls != 2 {
		t.Errorf("out=%v calls=%d", out, calls)
	}
	if r.BatchSize() != 1 {
		t.Errorf("BatchSize = %d", r.BatchSize())
	}
}

func TestResilientOCR_timeout(t *testing.T) {
	inner := ocrFunc(func(ctx context.Context, _ *PageImage, _ []string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := NewResilientOCR(inner, provider.Policy{Name: "test", Timeout: 5 * time.Millisecond, BaseDelay: time.Millisecond})
	_, err := r.Recognize(context.Background(), &PageImage{Page: 1}, nil)
	if !errors.Is(err, models.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

type ocrFunc func(context.Context, *PageImage, []string) (string, error)

func (f ocrFunc) Recognize(ctx context.Context, img *PageImage, hints []string) (string, error) {
	return f(ctx, img, hints)
}

func chatServer(t *testing.T, reply string, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var body struct {
			Messages []struct {
				Content []struct {
					Type string `json:"type"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(body.Messages) != 1 || len(body.Messages[0].Content) < 2 {
			t.Errorf("expected one multi-part message, got %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
}

func TestVisionOCR_RecognizeBatch(t *testing.T) {
	var requests atomic.Int32
	reply := "```json\n{\"pages\":[{\"page\":1,\"text\":\" first \"},{\"page\":2,\"text\":\"second\"}]}\n```"
	srv := chatServer(t, reply, &requests)
	defer srv.Close()

	v, err := NewVisionOCR("sk-test", srv.URL+"/v1", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	out, err := v.RecognizeBatch(context.Background(), []*PageImage{{Page: 7, Data: []byte("a")}, {Page: 8, Data: []byte("b")}}, []string{"eng", "ara"})
	if err != nil {
		t.Fatal(err)
	}
	if out[7] != "first" || out[8] != "second" {
		t.Errorf("out = %v", out)
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d", requests.Load())
	}
}

func TestVisionOCR_nonJSONReplyGoesToFirstPage(t *testing.T) {
	var requests atomic.Int32
	srv := chatServer(t, "Just some plain text from the scan", &requests)
	defer srv.Close()

	v, _ := NewVisionOCR("sk-test", srv.URL+"/v1", "")
	out, err := v.RecognizeBatch(context.Background(), []*PageImage{{Page: 2}, {Page: 3}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out[2] != "Just some plain text from the scan" || out[3] != "" {
		t.Errorf("out = %v", out)
	}
}

func TestVisionPrompt(t *testing.T) {
	p := visionPrompt([]string{"ara", "eng", "xyz"})
	if !strings.Contains(p, "Arabic/English/xyz") {
		t.Errorf("prompt missing languages: %s", p)
	}
}
