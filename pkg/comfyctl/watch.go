package comfyctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type ComfyMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

const (
	TYPE_PROGRESS         = "progress"
	TYPE_EXECUTION_CACHED = "execution_cached"
	TYPE_EXECUTION_START  = "execution_start"
	TYPE_EXECUTING        = "executing"
	TYPE_STATUS           = "status"
	TYPE_EXECUTED         = "executed"
	TYPE_EXECUTION_ERROR  = "execution_error"
)

type ComfyResult struct {
	Type string              `json:"type"`
	Data *ComfySaveImageData `json:"data"`
}

type ComfySaveImageData struct {
	Node     string                    `json:"node"`
	PromptId string                    `json:"prompt_id"`
	Output   *ComfySaveImageNodeOutput `json:"output"`
}

type ComfySaveImageNodeOutput struct {
	Images []*ComfyImage `json:"images"`
}

type ComfyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type ComfyExcutionCallback func(*ComfyResult)

// ErrExecution is returned by Watch when the server reports the prompt failed.
var ErrExecution = errors.New("prompt execution failed")

// Watcher is an open progress stream for one client id.
type Watcher struct {
	conn *websocket.Conn
}

// Dial opens the websocket. Open it before submitting so no message is missed.
func (ctl *ComfyCtl) Dial(ctx context.Context) (*Watcher, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, ctl.MakeWsUrl(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", ctl.MakeWsUrl(), err)
	}
	return &Watcher{conn: c}, nil
}

// Watch logs progress and calls cb for each executed node that produced
// output. With an empty promptId it runs until ctx is done.
func (w *Watcher) Watch(ctx context.Context, promptId string, cb ComfyExcutionCallback) error {
	done := make(chan error, 1)

	go func() {
		for {
			mt, message, err := w.conn.ReadMessage()
			if err != nil {
				done <- fmt.Errorf("read: %w", err)
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			finished, err := handleMessage(message, promptId, cb)
			if err != nil || finished {
				done <- err
				return
			}
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		log.Info().Msg("Interrupt")
		// unblocks the reader
		w.conn.SetReadDeadline(time.Now())
		<-done
		return ctx.Err()
	}
}

func handleMessage(message []byte, promptId string, cb ComfyExcutionCallback) (bool, error) {
	var cm ComfyMessage
	if err := json.Unmarshal(message, &cm); err != nil {
		log.Warn().Err(err).Msg("invalid json")
		return false, nil
	}

	pid := str(cm.Data, "prompt_id")
	if promptId != "" && pid != "" && pid != promptId {
		return false, nil
	}

	switch cm.Type {
	case TYPE_EXECUTION_START:
		log.Info().Str("prompt_id", pid).Msg("Execution Start")
	case TYPE_EXECUTION_CACHED:
		log.Info().Interface("nodes", cm.Data["nodes"]).Str("prompt_id", pid).Msg("Cached")
	case TYPE_EXECUTING:
		if node := str(cm.Data, "node"); node != "" {
			log.Info().Str("node", node).Str("prompt_id", pid).Msg("Executing")
		} else if promptId != "" && pid == promptId {
			return true, nil
		}
	case TYPE_PROGRESS:
		log.Info().
			Int("value", num(cm.Data, "value")).
			Int("max", num(cm.Data, "max")).
			Str("node", str(cm.Data, "node")).
			Str("prompt_id", pid).
			Msg("Progress")
	case TYPE_EXECUTED:
		var cr ComfyResult
		if err := json.Unmarshal(message, &cr); err != nil || cr.Data == nil || cr.Data.Output == nil {
			return false, nil
		}
		var images []string
		for _, i := range cr.Data.Output.Images {
			images = append(images, i.Filename)
		}
		log.Info().Strs("images", images).Str("prompt_id", pid).Msg("Executed")
		cb(&cr)
	case TYPE_EXECUTION_ERROR:
		if promptId != "" {
			return true, fmt.Errorf("%w: %s", ErrExecution, str(cm.Data, "exception_message"))
		}
		log.Error().Str("prompt_id", pid).Str("error", str(cm.Data, "exception_message")).Msg("Execution error")
	}
	return false, nil
}

// Close sends a normal closure and drops the connection.
func (w *Watcher) Close() error {
	err := w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if cerr := w.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]interface{}, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}
