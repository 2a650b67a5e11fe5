package onenote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/romanzh1/onenote-export/pkg/utils"
)

const (
	DefaultMediaMaxBytes = 10 << 20
	DefaultMediaTimeout  = 30 * time.Second

	mediaChunkSize = 8 << 10
)

var errMediaTooLarge = errors.New("media exceeds size limit")

// MediaResult is the outcome of one download. A failed download carries a
// *MediaDownloadError and an empty Filename; callers keep the remote URL.
type MediaResult struct {
	URL      string
	Filename string
	Bytes    int64
	Err      error
}

func (r MediaResult) OK() bool {
	return r.Err == nil && r.Filename != ""
}

// WithMediaLimits sets the per-file size cap (0 disables it) and the
// per-download timeout (0 disables it).
func WithMediaLimits(maxBytes int64, timeout time.Duration) ClientOption {
	return func(c *Client) {
		if maxBytes >= 0 {
			c.mediaMaxBytes = maxBytes
		}
		if timeout >= 0 {
			c.mediaTimeout = timeout
		}
	}
}

// FetchMedia downloads mediaURL into destDir. It never returns a bare error:
// the outcome, failure included, is reported in the MediaResult.
func (c *Client) FetchMedia(ctx context.Context, mediaURL, destDir string) MediaResult {
	filename, n, err := c.downloadMedia(ctx, mediaURL, destDir)
	if err != nil {
		c.logger.Error("failed to download media", zap.String("url", mediaURL), zap.Error(err))
		return MediaResult{URL: mediaURL, Err: &MediaDownloadError{URL: mediaURL, Err: err}}
	}

	c.logger.Info("downloaded media", zap.String("file", filename), zap.Int64("bytes", n))
	return MediaResult{URL: mediaURL, Filename: filename, Bytes: n}
}

func (c *Client) downloadMedia(ctx context.Context, mediaURL, destDir string) (string, int64, error) {
	if c.mediaTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.mediaTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	filename := c.claimMediaName(destDir, mediaURL, MediaFileName(mediaURL, resp.Header.Get("Content-Type")))
	filePath := filepath.Join(destDir, filename)

	n, err := c.writeMedia(filePath, resp.Body)
	if err != nil {
		return "", 0, err
	}

	return filename, n, nil
}

func (c *Client) writeMedia(filePath string, body io.Reader) (int64, error) {
	f, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("create file %q: %w", filePath, err)
	}

	src := body
	if c.mediaMaxBytes > 0 {
		src = io.LimitReader(body, c.mediaMaxBytes+1)
	}

	n, copyErr := io.CopyBuffer(f, src, make([]byte, mediaChunkSize))
	if copyErr == nil && c.mediaMaxBytes > 0 && n > c.mediaMaxBytes {
		copyErr = fmt.Errorf("%w (%d bytes)", errMediaTooLarge, c.mediaMaxBytes)
	}

	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(filePath)
		if copyErr != nil {
			return 0, fmt.Errorf("write file %q: %w", filePath, copyErr)
		}
		return 0, fmt.Errorf("close file %q: %w", filePath, closeErr)
	}

	return n, nil
}

// claimMediaName reserves filename in destDir for mediaURL. A name already
// taken by a different URL during this run gets the URL hash appended.
func (c *Client) claimMediaName(destDir, mediaURL, filename string) string {
	c.mediaMu.Lock()
	defer c.mediaMu.Unlock()

	key := filepath.Join(destDir, filename)
	if owner, ok := c.mediaNames[key]; !ok || owner == mediaURL {
		c.mediaNames[key] = mediaURL
		return filename
	}

	ext := path.Ext(filename)
	filename = strings.TrimSuffix(filename, ext) + "_" + urlHash(mediaURL) + ext
	c.mediaNames[filepath.Join(destDir, filename)] = mediaURL
	c.logger.Warn("media name already used, disambiguating",
		zap.String("url", mediaURL), zap.String("file", filename))

	return filename
}

// MediaFileName prefers the URL basename when it has an extension, otherwise
// builds image_<hash>.<subtype> or media_<hash>.bin from the content type.
// The hash is derived from the URL only, so re-exports reuse the same name.
func MediaFileName(mediaURL, contentType string) string {
	hash := urlHash(mediaURL)

	if u, err := url.Parse(mediaURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && path.Ext(base) != "" && path.Ext(base) != base {
			return utils.SanitizeFileName(base, "media_"+hash+".bin")
		}
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if subtype, ok := strings.CutPrefix(mediaType, "image/"); ok {
			if i := strings.IndexByte(subtype, '+'); i >= 0 {
				subtype = subtype[:i]
			}
			if subtype != "" {
				return utils.SanitizeFileName(fmt.Sprintf("image_%s.%s", hash, subtype), "media_"+hash+".bin")
			}
		}
	}

	return "media_" + hash + ".bin"
}

func urlHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
