package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	pkgerrors "github.com/pkg/errors"

	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
)

// SupportedFormats returns list of supported audio formats
func SupportedFormats() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// IsSupported checks if a source locator has a supported extension
func IsSupported(source string) bool {
	ext := sourceExt(source)
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// DecodeAudio decodes an audio stream based on the source's extension
func DecodeAudio(r io.ReadSeekCloser, source string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := sourceExt(source)

	switch ext {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", playerrors.ErrInvalidFormat, ext)
	}
}

// Opener resolves a source locator to a seekable byte stream.
type Opener func(ctx context.Context, source string) (io.ReadSeekCloser, error)

// OpenSource accepts a plain path, a file:// URI or an http(s):// URL.
// Remote sources are read fully into memory since the decoders need to seek.
func OpenSource(ctx context.Context, source string) (io.ReadSeekCloser, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// no scheme, or a windows drive letter
		return openFile(source)
	}

	switch u.Scheme {
	case "file":
		return openFile(filepath.FromSlash(u.Path))
	case "http", "https":
		return fetch(ctx, u.String())
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

func openFile(name string) (io.ReadSeekCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func fetch(ctx context.Context, rawURL string) (io.ReadSeekCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "get %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.Errorf("get %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read %s", rawURL)
	}
	return memorySource{bytes.NewReader(data)}, nil
}

type memorySource struct {
	*bytes.Reader
}

func (memorySource) Close() error { return nil }

// openAndDecode is the default loader used by channels and the effects bus.
func openAndDecode(ctx context.Context, open Opener, source string) (beep.StreamSeekCloser, beep.Format, error) {
	r, err := open(ctx, source)
	if err != nil {
		return nil, beep.Format{}, pkgerrors.Wrapf(err, "open %s", source)
	}
	streamer, format, err := DecodeAudio(r, source)
	if err != nil {
		r.Close()
		return nil, beep.Format{}, pkgerrors.Wrapf(err, "decode %s", source)
	}
	return streamer, format, nil
}

func sourceExt(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return strings.ToLower(path.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(source))
}
