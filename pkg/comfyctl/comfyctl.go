package comfyctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/347255699/comfystyle/pkg/types"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type ComfyCtl struct {
	ClientId    string
	Host        string
	HttpCli     *http.Client
	isPlaintext bool
}

func NewWithPlainText(host, id string) *ComfyCtl {
	ctl := New(host, id)
	ctl.isPlaintext = true
	return ctl
}

func New(host, id string) *ComfyCtl {
	if id == "" {
		id = uuid.Must(uuid.NewV4()).String()
	}
	return &ComfyCtl{
		ClientId: id,
		Host:     host,
		HttpCli:  &http.Client{},
	}
}

// WithTimeout bounds each HTTP call. Zero means no limit.
func (ctl *ComfyCtl) WithTimeout(d time.Duration) *ComfyCtl {
	ctl.HttpCli.Timeout = d
	return ctl
}

func (ctl *ComfyCtl) Id() string {
	return ctl.ClientId
}

type queuePromptParams struct {
	Prompt   types.Document `json:"prompt"`
	ClientId string         `json:"client_id,omitempty"`
}

type QueuePromptResp struct {
	PromptID   string                 `json:"prompt_id"`
	Number     int                    `json:"number"`
	NodeErrors map[string]interface{} `json:"node_errors"`
}

// SubmitResult is what the server said about one submission.
type SubmitResult struct {
	StatusCode int
	Body       string
	// Set only when the server accepted the prompt and returned JSON.
	Resp *QueuePromptResp
}

// Success reports whether the server accepted the prompt. Only 200 counts.
func (r *SubmitResult) Success() bool {
	return r.StatusCode == http.StatusOK
}

func (r *SubmitResult) PromptID() string {
	if r.Resp == nil {
		return ""
	}
	return r.Resp.PromptID
}

// Submit posts the document to /prompt. A non-200 answer is not an error: it
// comes back as a result carrying the status and the body verbatim.
func (ctl *ComfyCtl) Submit(ctx context.Context, prompt types.Document) (*SubmitResult, error) {
	b, err := json.Marshal(&queuePromptParams{
		Prompt:   prompt,
		ClientId: ctl.ClientId,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ctl.makeHttpUrl("prompt"), bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ctl.HttpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to queue prompt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	ret := &SubmitResult{StatusCode: resp.StatusCode, Body: string(body)}
	if !ret.Success() {
		log.Warn().Int("status", resp.StatusCode).Str("body", ret.Body).Msg("Error queuing prompt")
		return ret, nil
	}

	var qp QueuePromptResp
	if err := json.Unmarshal(body, &qp); err == nil {
		ret.Resp = &qp
	}
	log.Info().Str("prompt_id", ret.PromptID()).Str("host", ctl.Host).Msg("Prompt queued successfully")
	return ret, nil
}

// QueuePrompt renders a template file with values, submits it and, when watch
// is set, blocks until the server reports the prompt finished. It returns the
// prompt id, or the output file names when watching.
func (ctl *ComfyCtl) QueuePrompt(ctx context.Context, workflowPath string, values map[string]interface{}, watch bool) ([]string, error) {
	prompt, err := types.TemplateFile(workflowPath).Parse(values)
	if err != nil {
		return nil, err
	}

	var w *Watcher
	if watch {
		if w, err = ctl.Dial(ctx); err != nil {
			return nil, err
		}
		defer w.Close()
	}

	res, err := ctl.Submit(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, &StatusError{Code: res.StatusCode, Body: res.Body}
	}

	if !watch {
		return []string{res.PromptID()}, nil
	}

	var ret []string
	if err := w.Watch(ctx, res.PromptID(), func(cr *ComfyResult) {
		for _, image := range cr.Data.Output.Images {
			ret = append(ret, image.Filename)
		}
	}); err != nil {
		return nil, err
	}
	log.Info().Strs("output", ret).Msg("Prompt finished")
	return ret, nil
}

// StatusError is a rejected submission.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to queue prompt, code: %d: %s", e.Code, strings.TrimSpace(e.Body))
}

func (ctl *ComfyCtl) makeHttpUrl(paths ...string) string {
	scheme := "https"
	if ctl.isPlaintext {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, ctl.Host, strings.Join(paths, "/"))
}

func (ctl *ComfyCtl) MakeWsUrl() string {
	scheme := "wss"
	if ctl.isPlaintext {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws?clientId=%s", scheme, ctl.Host, ctl.ClientId)
}
