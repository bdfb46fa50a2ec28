// Package waiter polls a directory for the image a submitted prompt will
// eventually write there. The server and this client must share the disk.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrTimeout means no matching file appeared before the deadline.
var ErrTimeout = errors.New("timed out waiting for image")

const DefaultInterval = time.Second

type Options struct {
	Dir      string
	Token    string
	Timeout  time.Duration
	Interval time.Duration
}

// Pattern is the glob matched in Dir: the token taken literally, then *.png.
func (o Options) Pattern() string {
	return filepath.Join(o.Dir, escapeGlob(o.Token)+"*.png")
}

// Wait returns the lexicographically smallest file matching Pattern. It
// checks once right away, then every Interval until Timeout has elapsed.
func Wait(ctx context.Context, o Options) (string, error) {
	if o.Token == "" {
		return "", errors.New("waiter: empty token")
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}

	pattern := o.Pattern()
	deadline := time.Now().Add(o.Timeout)
	ticker := time.NewTicker(o.Interval)
	defer ticker.Stop()

	for {
		path, err := first(pattern)
		if err != nil {
			return "", err
		}
		if path != "" {
			log.Debug().Str("path", path).Msg("Image found")
			return path, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("%w: %s after %s", ErrTimeout, pattern, o.Timeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		case <-time.After(remaining):
			// one last look at the deadline
		}
	}
}

func first(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("waiter: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
