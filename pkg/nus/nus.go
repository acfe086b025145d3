// Package nus downloads titles from the Nintendo Update Server.
package nus

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/ilex/wad-go/pkg/title"
)

// DefaultBaseURL is the retail Wii content CDN.
const DefaultBaseURL = "http://nus.cdn.shop.wii.com/ccs/download"

// userAgent mimics the console's own updater; the CDN rejects unknown agents.
const userAgent = "wii libnup/1.0"

const (
	certRSA2048Len = 768
	certRSA4096Len = 1024
)

// Client fetches TMDs, Tickets, and content from NUS. Responses are cached
// when a Cache is attached; transient HTTP failures are retried with backoff.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Cache   *Cache
	Log     *zap.SugaredLogger

	// OnDownload, when set, receives the name and size of each download and
	// returns a writer the response body is copied into as it arrives.
	// Used to drive progress reporting.
	OnDownload func(name string, size int64) io.Writer
}

// NewClient returns a Client using the retail CDN with no cache attached.
func NewClient(log *zap.SugaredLogger) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
		BaseURL: DefaultBaseURL,
		Log:     log,
	}
}

// get fetches a URL. cacheable marks URLs whose response can never change on
// the CDN (versioned TMDs, contents, cetk); the latest-version TMD URL is
// mutable and always refetched.
func (c *Client) get(ctx context.Context, name, url string, cacheable bool) ([]byte, error) {
	if cacheable && c.Cache != nil {
		if data := c.Cache.Get(url); data != nil {
			c.Log.Debugw("cache hit", "url", url)
			return data, nil
		}
	}
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept-Encoding", "gzip")
			resp, err := c.HTTP.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("NUS has no file at %s", url))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("NUS returned status %s for %s", resp.Status, url)
			}
			reader := io.Reader(resp.Body)
			if resp.Header.Get("Content-Encoding") == "gzip" {
				gz, err := gzip.NewReader(resp.Body)
				if err != nil {
					return fmt.Errorf("opening gzip response: %w", err)
				}
				defer gz.Close()
				reader = gz
			}
			if c.OnDownload != nil {
				reader = io.TeeReader(reader, c.OnDownload(name, resp.ContentLength))
			}
			body, err = io.ReadAll(reader)
			return err
		},
		retry.Attempts(4),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	c.Log.Debugw("downloaded", "url", url, "bytes", len(body))
	if cacheable && c.Cache != nil {
		if err := c.Cache.Put(url, body); err != nil {
			c.Log.Warnw("failed to cache response", "url", url, "error", err)
		}
	}
	return body, nil
}

func titleIDHex(titleID [8]byte) string {
	return hex.EncodeToString(titleID[:])
}

// DownloadTMD fetches a title's TMD. version selects a specific TMD version;
// nil fetches the latest. The returned bytes include the certificates NUS
// appends after the TMD body.
func (c *Client) DownloadTMD(ctx context.Context, titleID [8]byte, version *uint16) ([]byte, error) {
	file := "tmd"
	if version != nil {
		file = fmt.Sprintf("tmd.%d", *version)
	}
	url := fmt.Sprintf("%s/%s/%s", c.BaseURL, titleIDHex(titleID), file)
	return c.get(ctx, file, url, version != nil)
}

// DownloadTicket fetches a title's common ticket (cetk). Only titles with
// freely distributed tickets, such as system titles, have one; anything else
// is a 404 from NUS. The returned bytes include appended certificates.
func (c *Client) DownloadTicket(ctx context.Context, titleID [8]byte) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/cetk", c.BaseURL, titleIDHex(titleID))
	return c.get(ctx, "cetk", url, true)
}

// DownloadContent fetches one encrypted content of a title by Content ID.
func (c *Client) DownloadContent(ctx context.Context, titleID [8]byte, cid uint32) ([]byte, error) {
	file := fmt.Sprintf("%08x", cid)
	url := fmt.Sprintf("%s/%s/%s", c.BaseURL, titleIDHex(titleID), file)
	return c.get(ctx, file, url, true)
}

// systemMenuTitleID anchors certificate chain downloads; its TMD and cetk are
// always available on NUS.
var systemMenuTitleID = [8]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}

// DownloadCertChain assembles a full certificate chain. NUS serves no chain
// directly, but every TMD carries the CP and CA certificates and every cetk
// the XS and CA, so both are fetched for the System Menu and recombined in
// CA, CP, XS order.
func (c *Client) DownloadCertChain(ctx context.Context) (*title.CertificateChain, error) {
	tmdData, err := c.DownloadTMD(ctx, systemMenuTitleID, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading TMD for certificates: %w", err)
	}
	cetkData, err := c.DownloadTicket(ctx, systemMenuTitleID)
	if err != nil {
		return nil, fmt.Errorf("downloading cetk for certificates: %w", err)
	}
	return assembleCertChain(tmdData, cetkData)
}

// assembleCertChain splits the certificates NUS appends to a TMD (CP then CA)
// and a cetk (XS then CA) and rebuilds a WAD-style chain.
func assembleCertChain(tmdData, cetkData []byte) (*title.CertificateChain, error) {
	tmd, err := title.ParseTMD(tmdData)
	if err != nil {
		return nil, fmt.Errorf("parsing downloaded TMD: %w", err)
	}
	tmdCertOffset := len(tmd.ToBytes())
	if len(tmdData) < tmdCertOffset+certRSA2048Len+certRSA4096Len {
		return nil, fmt.Errorf("downloaded TMD carries no certificates")
	}
	tmdCerts, err := title.ParseCertificateChain(tmdData[tmdCertOffset : tmdCertOffset+certRSA2048Len+certRSA4096Len])
	if err != nil {
		return nil, fmt.Errorf("parsing TMD certificates: %w", err)
	}
	cetkCertOffset := title.TicketLen
	if len(cetkData) < cetkCertOffset+certRSA2048Len {
		return nil, fmt.Errorf("downloaded cetk carries no certificates")
	}
	cetkCerts, err := title.ParseCertificateChain(cetkData[cetkCertOffset : cetkCertOffset+certRSA2048Len])
	if err != nil {
		return nil, fmt.Errorf("parsing cetk certificates: %w", err)
	}
	caCert, err := tmdCerts.CACert()
	if err != nil {
		return nil, err
	}
	cpCert, err := tmdCerts.TMDCert()
	if err != nil {
		return nil, err
	}
	xsCert, err := cetkCerts.TicketCert()
	if err != nil {
		return nil, err
	}
	return &title.CertificateChain{Certificates: []*title.Certificate{caCert, cpCert, xsCert}}, nil
}

// DownloadTitle fetches everything needed to reconstruct a title: TMD,
// common ticket, every content, and a certificate chain. Titles without a
// common ticket cannot be downloaded whole; fetch their TMD and contents
// individually instead.
func (c *Client) DownloadTitle(ctx context.Context, titleID [8]byte, version *uint16) (*title.Title, error) {
	tmdData, err := c.DownloadTMD(ctx, titleID, version)
	if err != nil {
		return nil, err
	}
	tmd, err := title.ParseTMD(tmdData)
	if err != nil {
		return nil, fmt.Errorf("parsing downloaded TMD: %w", err)
	}
	cetkData, err := c.DownloadTicket(ctx, titleID)
	if err != nil {
		return nil, err
	}
	ticket, err := title.ParseTicket(cetkData)
	if err != nil {
		return nil, fmt.Errorf("parsing downloaded ticket: %w", err)
	}
	chain, err := assembleCertChain(tmdData, cetkData)
	if err != nil {
		return nil, err
	}
	content := title.NewContentRegion(tmd.ContentRecords)
	for i, record := range tmd.ContentRecords {
		data, err := c.DownloadContent(ctx, titleID, record.ContentID)
		if err != nil {
			return nil, fmt.Errorf("downloading content %08X: %w", record.ContentID, err)
		}
		if err := content.LoadEncContent(data, i); err != nil {
			return nil, err
		}
	}
	return title.NewTitleFromParts(chain, ticket, tmd, content), nil
}
