// Package generate runs one image request end to end: combine prompts, patch
// the workflow, submit it and wait for the image to land on disk.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/347255699/comfystyle/pkg/comfyctl"
	"github.com/347255699/comfystyle/pkg/patch"
	"github.com/347255699/comfystyle/pkg/styles"
	"github.com/347255699/comfystyle/pkg/types"
	"github.com/347255699/comfystyle/pkg/waiter"
)

// TokenPrefix starts every artifact token.
const TokenPrefix = "output_"

// MaxRandomSeed bounds RandomSeed.
const MaxRandomSeed = 1000000

// ErrEmptyPrompt is returned by Prepare when nothing would be drawn.
var ErrEmptyPrompt = errors.New("combined positive prompt is empty")

// Request is everything the submit step needs, fixed at the moment the
// prompts were generated.
type Request struct {
	Positive string
	Negative string
	// nil keeps the template's seed
	Seed  *int64
	Token string
}

type Kind string

const (
	KindDone          Kind = "done"
	KindSubmitFailed  Kind = "submit_failed"
	KindTimeout       Kind = "timeout"
	KindDisplayFailed Kind = "display_failed"
)

// Outcome is the result of Run when the request got as far as the server.
type Outcome struct {
	Kind       Kind
	StatusCode int
	Body       string
	PromptID   string
	ImagePath  string
}

// Submitter is satisfied by *comfyctl.ComfyCtl.
type Submitter interface {
	Submit(ctx context.Context, prompt types.Document) (*comfyctl.SubmitResult, error)
}

type Generator struct {
	Template types.Document
	Schema   patch.Schema
	Client   Submitter
	Wait     waiter.Options
}

// NewToken returns a fresh artifact token such as output_1f3a9c2e.
func NewToken() string {
	id := uuid.Must(uuid.NewV4())
	return TokenPrefix + strings.ReplaceAll(id.String(), "-", "")[:8]
}

// RandomSeed picks a seed in [1, MaxRandomSeed].
func RandomSeed() int64 {
	return rand.Int63n(MaxRandomSeed) + 1
}

// Prepare combines user text with the selected substyles into a Request
// carrying a new token. catalog may be nil when nothing is selected.
func Prepare(catalog *styles.Catalog, positive, negative string, seed *int64, selections []styles.Selection) (*Request, error) {
	pos, neg := styles.Join(positive), styles.Join(negative)
	if len(selections) > 0 {
		if catalog == nil {
			return nil, fmt.Errorf("%w: no catalog loaded", styles.ErrSubstyleNotFound)
		}
		var err error
		if pos, neg, err = catalog.Combine(positive, negative, selections); err != nil {
			return nil, err
		}
	}
	if pos == "" {
		return nil, ErrEmptyPrompt
	}
	return &Request{Positive: pos, Negative: neg, Seed: seed, Token: NewToken()}, nil
}

// Document patches the template for req.
func (g *Generator) Document(req *Request) (types.Document, error) {
	return patch.Apply(g.Template, g.Schema, patch.Overrides{
		Positive:       req.Positive,
		Negative:       req.Negative,
		Seed:           req.Seed,
		FilenamePrefix: req.Token,
	})
}

// Run submits req and, once accepted, waits for its image. Errors are for
// requests that never got an answer from the server (bad template, transport,
// cancellation); everything else is an Outcome.
func (g *Generator) Run(ctx context.Context, req *Request) (*Outcome, error) {
	logger := log.With().Str("token", req.Token).Logger()

	logger.Info().Msg("Processing workflow")
	doc, err := g.Document(req)
	if err != nil {
		return nil, err
	}

	logger.Info().Msg("Queueing workflow")
	res, err := g.Client.Submit(ctx, doc)
	if err != nil {
		return nil, err
	}
	out := &Outcome{StatusCode: res.StatusCode, Body: res.Body, PromptID: res.PromptID()}
	if !res.Success() {
		out.Kind = KindSubmitFailed
		return out, nil
	}

	opts := g.Wait
	opts.Token = req.Token
	logger.Info().Str("pattern", opts.Pattern()).Dur("timeout", opts.Timeout).Msg("Waiting for image")

	start := time.Now()
	path, err := waiter.Wait(ctx, opts)
	switch {
	case errors.Is(err, waiter.ErrTimeout):
		logger.Warn().Dur("waited", time.Since(start)).Msg("Timeout waiting for image generation")
		out.Kind = KindTimeout
		return out, nil
	case err != nil:
		return nil, err
	}

	logger.Info().Str("path", path).Dur("waited", time.Since(start)).Msg("Image ready")
	out.Kind = KindDone
	out.ImagePath = path
	return out, nil
}
