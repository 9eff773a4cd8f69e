package main

import (
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Temp suffix while a download is in flight; the final name only
	// appears after a successful rename.
	partSuffix = ".download"

	// Progress callbacks fire at most this often (~4/s).
	progressInterval = 250 * time.Millisecond

	defaultMaxRedirects = 10
)

var appLogger *log.Logger
var logFile *os.File
var debugMode bool

// --- Logging ---
func initLogging() {
	if debugMode {
		var err error
		logFile, err = os.OpenFile("log.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: Failed to open log file 'log.log' for debugging: %v. Debug logs will not be written to file.\n", err)
			appLogger = log.New(io.Discard, "", 0)
			return
		}
		appLogger = log.New(logFile, "", log.Ldate|log.Ltime|log.Lmicroseconds)
		appLogger.Println("---------------- Logging Initialized (Debug Mode) ----------------")
	} else {
		appLogger = log.New(io.Discard, "", 0)
	}
}

// Progress is one sample of a running download.
type Progress struct {
	Downloaded int64   // bytes written so far
	Total      int64   // -1 when the server sent no Content-Length
	Percent    float64 // -1 when Total is unknown
	RateBps    float64 // instantaneous rate; -1 on the final sample
}

// ProgressFunc receives throttled progress samples. The last sample of a
// completed download arrives after the file is in place.
type ProgressFunc func(Progress)

// RequestOptions overrides the downloader's request defaults. Header
// entries win over the built-in ones; a zero Timeout means no deadline,
// matching the multi-gigabyte archives this tool exists for.
type RequestOptions struct {
	Headers map[string]string
	Proxy   string
	Timeout time.Duration
}

// --- Filename resolution ---
//
// Ordered extractor chain: RFC 5987 filename*= first, plain filename=
// second, URL path last. Each link returns "" instead of failing, so
// name resolution itself can never abort a download.

type filenameExtractor func(disposition, rawURL string) string

var filenameChain = []filenameExtractor{
	extendedDispositionName,
	plainDispositionName,
	urlPathName,
}

var extendedNameRe = regexp.MustCompile(`(?i)filename\*\s*=\s*utf-8''([^;]+)`)

func extendedDispositionName(disposition, _ string) string {
	m := extendedNameRe.FindStringSubmatch(disposition)
	if m == nil {
		return ""
	}
	decoded, err := url.PathUnescape(strings.TrimSpace(m[1]))
	if err != nil {
		return ""
	}
	return sanitizeFilename(decoded)
}

var plainNameRe = regexp.MustCompile(`(?i)filename\s*=\s*(?:"([^"]*)"|([^";]+))`)

func plainDispositionName(disposition, _ string) string {
	m := plainNameRe.FindStringSubmatch(disposition)
	if m == nil {
		return ""
	}
	name := m[1]
	if name == "" {
		name = m[2]
	}
	return sanitizeFilename(strings.TrimSpace(name))
}

func urlPathName(_, rawURL string) string {
	var fileName string
	parsedURL, err := url.Parse(rawURL)
	if err == nil {
		fileName = path.Base(parsedURL.Path)
	} else {
		fileName = filepath.Base(rawURL)
		appLogger.Printf("[urlPathName] Warning: URL parsing failed for '%s', using filepath.Base as fallback: %v", rawURL, err)
	}

	if fileName == "." || fileName == "/" || fileName == "" {
		base := "download_" + strconv.FormatInt(time.Now().UnixNano(), 16)[:8]
		ext := filepath.Ext(fileName)
		if parsedURL != nil {
			ext = filepath.Ext(path.Base(parsedURL.Path))
		}
		if ext != "" && len(ext) > 1 && len(ext) < 7 && !strings.ContainsAny(ext, "?&=/:\\*\"<>|") {
			fileName = base + ext
		} else {
			fileName = base + ".file"
		}
		appLogger.Printf("[urlPathName] Generated filename '%s' for URL '%s'", fileName, rawURL)
	}
	return sanitizeFilename(fileName)
}

// sanitizeFilename strips any directory component a hostile header could
// smuggle in. An empty result falls through to the next extractor.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = name[strings.LastIndexAny(name, "/\\")+1:]
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// ResolveFilename picks the on-disk name for a resource from its
// Content-Disposition header and URL. It always returns a usable name.
func ResolveFilename(disposition, rawURL string) string {
	for _, extract := range filenameChain {
		if name := extract(disposition, rawURL); name != "" {
			return name
		}
	}
	// urlPathName already handles degenerate URLs, so this is unreachable
	// unless the chain is reconfigured without it.
	return "download_" + strconv.FormatInt(time.Now().UnixNano(), 16)[:8] + ".file"
}

// --- Progress tracking ---

// progressTracker sits on the tee side of the response stream and turns
// raw Write calls into throttled Progress samples. Rate is bytes moved
// since the previous sample over the wall time between them.
type progressTracker struct {
	total      int64
	current    int64
	lastTime   time.Time
	lastBytes  int64
	onProgress ProgressFunc
}

func newProgressTracker(total int64, onProgress ProgressFunc) *progressTracker {
	return &progressTracker{
		total:      total,
		lastTime:   time.Now(),
		onProgress: onProgress,
	}
}

func (t *progressTracker) Write(p []byte) (int, error) {
	n := len(p)
	t.current += int64(n)
	if t.onProgress == nil {
		return n, nil
	}

	now := time.Now()
	elapsed := now.Sub(t.lastTime)
	if elapsed < progressInterval {
		return n, nil
	}

	rate := float64(t.current-t.lastBytes) / elapsed.Seconds()
	t.onProgress(Progress{
		Downloaded: t.current,
		Total:      t.total,
		Percent:    percentOf(t.current, t.total),
		RateBps:    rate,
	})
	t.lastTime = now
	t.lastBytes = t.current
	return n, nil
}

// emitFinal fires the completion sample, after the file has its final name.
func (t *progressTracker) emitFinal() {
	if t.onProgress == nil {
		return
	}
	p := Progress{Downloaded: t.current, Total: t.total, Percent: -1, RateBps: -1}
	if t.total > 0 {
		p.Percent = 100
	}
	t.onProgress(p)
}

func percentOf(current, total int64) float64 {
	if total <= 0 {
		return -1
	}
	pct := float64(current) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func newDownloadClient(opts *RequestOptions) (*http.Client, error) {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= defaultMaxRedirects {
				return fmt.Errorf("stopped after %d redirects", defaultMaxRedirects)
			}
			return nil
		},
	}
	if opts != nil {
		client.Timeout = opts.Timeout
		if opts.Proxy != "" {
			proxyURL, err := url.Parse(opts.Proxy)
			if err != nil {
				return nil, fmt.Errorf("proxy url: %w", err)
			}
			client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	return client, nil
}

// Download streams resourceURL into outputDir and returns the final file
// path. The body goes to "<name>.download" first and is renamed only on
// a clean finish, so an interrupted run never leaves a plausible-looking
// final file. If the destination already exists the download is skipped:
// the body is never read and onProgress never fires. There is no resume;
// a stale temp file from a previous run is deleted and the transfer
// restarts from zero.
func Download(resourceURL, outputDir string, onProgress ProgressFunc, opts *RequestOptions) (string, error) {
	appLogger.Printf("[Download] %s -> %s", resourceURL, outputDir)

	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create dir %s: %w", outputDir, err)
	}

	client, err := newDownloadClient(opts)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("GET", resourceURL, nil)
	if err != nil {
		return "", &FetchError{URL: resourceURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &FetchError{URL: resourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: resourceURL, Status: resp.StatusCode}
	}

	fileName := ResolveFilename(resp.Header.Get("Content-Disposition"), resourceURL)
	filePath := filepath.Join(outputDir, fileName)

	if _, err := os.Stat(filePath); err == nil {
		appLogger.Printf("[Download] %s already exists, skipping", filePath)
		return filePath, nil
	}

	total := resp.ContentLength
	if total <= 0 {
		total = -1
	}
	appLogger.Printf("[Download] GET ok, ContentLength: %d, file: %s", resp.ContentLength, fileName)

	partPath := filePath + partSuffix
	if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove stale temp %s: %w", partPath, err)
	}

	out, err := os.Create(partPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", partPath, err)
	}

	tracker := newProgressTracker(total, onProgress)
	_, copyErr := io.Copy(out, io.TeeReader(resp.Body, tracker))
	closeErr := out.Close()
	if copyErr != nil {
		return "", &DownloadError{URL: resourceURL, Err: copyErr}
	}
	if closeErr != nil {
		return "", fmt.Errorf("close %s: %w", partPath, closeErr)
	}

	if err := os.Rename(partPath, filePath); err != nil {
		return "", fmt.Errorf("rename %s: %w", partPath, err)
	}

	tracker.emitFinal()
	appLogger.Printf("[Download] finished %s (%d bytes)", filePath, tracker.current)
	return filePath, nil
}

// --- Formatting helpers for the CLI ---

func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		return "--- B/s"
	}
	if bytesPerSecond < 1024 {
		return fmt.Sprintf("%6.2f B/s", bytesPerSecond)
	}
	kbps := bytesPerSecond / 1024
	if kbps < 1024 {
		return fmt.Sprintf("%6.2f KB/s", kbps)
	}
	mbps := kbps / 1024
	return fmt.Sprintf("%6.2f MB/s", mbps)
}

func calculateETA(speedBps float64, totalSize int64, currentSize int64) string {
	if speedBps <= 0 || totalSize <= 0 || currentSize >= totalSize {
		return "N/A"
	}

	remainingBytes := totalSize - currentSize
	remainingSeconds := float64(remainingBytes) / speedBps

	if remainingSeconds < 1 {
		return "<1 sec"
	}
	if remainingSeconds < 60 {
		return fmt.Sprintf("%.0f sec", math.Ceil(remainingSeconds))
	}
	if remainingSeconds < 3600 {
		minutes := math.Floor(remainingSeconds / 60)
		seconds := math.Ceil(math.Mod(remainingSeconds, 60))
		if seconds == 60 {
			seconds = 0
			minutes++
		}
		return fmt.Sprintf("%.0f min %.0f sec", minutes, seconds)
	}
	hours := math.Floor(remainingSeconds / 3600)
	remainderMinutes := math.Mod(remainingSeconds, 3600)
	minutes := math.Floor(remainderMinutes / 60)
	seconds := math.Ceil(math.Mod(remainderMinutes, 60))
	if seconds == 60 {
		seconds = 0
		minutes++
		if minutes == 60 {
			minutes = 0
			hours++
		}
	}
	return fmt.Sprintf("%.0f hr %.0f min %.0f sec", hours, minutes, seconds)
}

func shortenError(err error, maxLen int) string {
	s := err.Error()
	runes := []rune(s)
	if len(runes) > maxLen {
		if maxLen <= 3 {
			if maxLen <= 0 {
				return "..."
			}
			return string(runes[:maxLen])
		}
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
