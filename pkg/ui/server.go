// Package ui serves the interactive generator: a form to write prompts and
// pick styles, a review step showing the combined prompts, and a result page
// with the image inline.
//
// Nothing is kept between requests. The review step hands the prepared
// request to the browser as hidden fields and /generate reads it back.
package ui

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/347255699/comfystyle/pkg/generate"
	"github.com/347255699/comfystyle/pkg/patch"
	"github.com/347255699/comfystyle/pkg/styles"
)

// CatalogFunc loads the style catalog; it is called for every page render.
type CatalogFunc func() (*styles.Catalog, error)

type Server struct {
	generator *generate.Generator
	catalog   CatalogFunc
	router    *mux.Router
}

func NewServer(g *generate.Generator, catalog CatalogFunc) *Server {
	s := &Server{generator: g, catalog: catalog, router: mux.NewRouter()}
	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.HandleFunc("/prompts", s.prompts).Methods(http.MethodPost)
	s.router.HandleFunc("/generate", s.image).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type substyleView struct {
	Name    string
	Value   string
	Checked bool
}

type styleView struct {
	Name      string
	Substyles []substyleView
}

type page struct {
	Positive  string
	Negative  string
	Seed      string
	Selection string
	Styles    []styleView

	Request     *generate.Request
	RequestSeed string

	Outcome *generate.Outcome
	Image   template.URL
	Error   string
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	p := &page{Seed: strconv.FormatInt(generate.RandomSeed(), 10)}
	_, status := s.fillStyles(p, nil)
	s.render(w, status, p)
}

func (s *Server) prompts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, &page{Error: err.Error()})
		return
	}
	p := &page{
		Positive: r.PostFormValue("positive"),
		Negative: r.PostFormValue("negative"),
		Seed:     strings.TrimSpace(r.PostFormValue("seed")),
	}
	selections, err := formSelections(r)
	if err != nil {
		p.Error = err.Error()
		s.render(w, http.StatusBadRequest, p)
		return
	}
	p.Selection = joinSelections(selections)

	catalog, status := s.fillStyles(p, selections)
	if status != http.StatusOK {
		s.render(w, status, p)
		return
	}

	seed, err := parseSeed(p.Seed)
	if err != nil {
		p.Error = err.Error()
		s.render(w, http.StatusBadRequest, p)
		return
	}

	req, err := generate.Prepare(catalog, p.Positive, p.Negative, seed, selections)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, styles.ErrSubstyleNotFound) {
			status = http.StatusConflict
		}
		log.Warn().Err(err).Msg("Prompt generation rejected")
		p.Error = err.Error()
		s.render(w, status, p)
		return
	}
	p.Request = req
	p.RequestSeed = p.Seed
	s.render(w, http.StatusOK, p)
}

func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, &page{Error: err.Error()})
		return
	}
	p := &page{
		Positive: r.PostFormValue("positive"),
		Negative: r.PostFormValue("negative"),
		Seed:     r.PostFormValue("seed"),
	}
	s.fillStyles(p, nil)

	seed, err := parseSeed(p.Seed)
	if err != nil {
		p.Error = err.Error()
		s.render(w, http.StatusBadRequest, p)
		return
	}
	req := &generate.Request{
		Positive: p.Positive,
		Negative: p.Negative,
		Seed:     seed,
		Token:    r.PostFormValue("token"),
	}
	if req.Positive == "" || !validToken(req.Token) {
		p.Error = "missing prompt or token, generate the prompts first"
		s.render(w, http.StatusBadRequest, p)
		return
	}

	out, err := s.generator.Run(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("token", req.Token).Msg("Error generating image")
		p.Error = fmt.Sprintf("Error generating image: %v", err)
		status := http.StatusBadGateway
		if errors.Is(err, patch.ErrPathNotFound) {
			status = http.StatusInternalServerError
		}
		s.render(w, status, p)
		return
	}

	if out.Kind == generate.KindDone {
		img, err := os.ReadFile(out.ImagePath)
		if err != nil {
			log.Error().Err(err).Str("path", out.ImagePath).Msg("Error displaying image")
			out.Kind = generate.KindDisplayFailed
			p.Error = err.Error()
		} else {
			p.Image = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(img))
		}
	}
	p.Outcome = out
	s.render(w, outcomeStatus(out.Kind), p)
}

func outcomeStatus(k generate.Kind) int {
	switch k {
	case generate.KindDone:
		return http.StatusOK
	case generate.KindTimeout:
		return http.StatusGatewayTimeout
	case generate.KindDisplayFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// fillStyles loads the catalog into p, marking selections as checked.
func (s *Server) fillStyles(p *page, selections []styles.Selection) (*styles.Catalog, int) {
	catalog, err := s.catalog()
	if err != nil {
		log.Error().Err(err).Msg("Error loading styles")
		p.Error = err.Error()
		return nil, http.StatusInternalServerError
	}
	checked := make(map[styles.Selection]bool, len(selections))
	for _, sel := range selections {
		checked[sel] = true
	}
	for _, name := range catalog.Styles() {
		sv := styleView{Name: name}
		for _, sub := range catalog.Substyles(name) {
			sel := styles.Selection{Style: name, Substyle: sub.Name}
			sv.Substyles = append(sv.Substyles, substyleView{Name: sub.Name, Value: sel.String(), Checked: checked[sel]})
		}
		p.Styles = append(p.Styles, sv)
	}
	return catalog, http.StatusOK
}

func (s *Server) render(w http.ResponseWriter, status int, p *page) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.Error().Err(err).Msg("Error rendering page")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// formSelections prefers the click-ordered "selection" field and falls back to
// the checkbox values in page order.
func formSelections(r *http.Request) ([]styles.Selection, error) {
	raw := strings.Split(strings.ReplaceAll(r.PostFormValue("selection"), "\r\n", "\n"), "\n")
	if strings.TrimSpace(r.PostFormValue("selection")) == "" {
		raw = r.PostForm["substyle"]
	}
	var out []styles.Selection
	for _, v := range raw {
		if strings.TrimSpace(v) == "" {
			continue
		}
		sel, err := styles.ParseSelection(v)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

func joinSelections(sels []styles.Selection) string {
	parts := make([]string, len(sels))
	for i, s := range sels {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n")
}

func parseSeed(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("seed must be a whole number, got %q", s)
	}
	return &n, nil
}

// validToken keeps the token usable as a literal file name prefix.
func validToken(tok string) bool {
	if !strings.HasPrefix(tok, generate.TokenPrefix) || len(tok) == len(generate.TokenPrefix) {
		return false
	}
	for _, c := range tok[len(generate.TokenPrefix):] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
