package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultPageSize is the number of UTXOs requested per page.
	DefaultPageSize = 16

	// maxPages bounds address UTXO pagination.
	maxPages = 64
)

var (
	// ErrAPI is matched by every error reported in a response envelope.
	ErrAPI = errors.New("open api error")

	// ErrNotConnected is returned when the API is not reachable.
	ErrNotConnected = errors.New("open api not reachable")

	// ErrTooManyUTXOs is returned when an address holds more UTXOs than
	// the pagination bound lets us fetch.
	ErrTooManyUTXOs = errors.New("too many utxos")
)

// APIError is an error reported by the API in its response envelope.
type APIError struct {
	// Code is the API error code. Zero means success.
	Code int

	// Msg is the API error message.
	Msg string
}

// Error returns a human-readable string describing the error.
func (e *APIError) Error() string {
	return fmt.Sprintf("open api error %d: %s", e.Code, e.Msg)
}

// Unwrap makes APIError match ErrAPI.
func (e *APIError) Unwrap() error {
	return ErrAPI
}

// ClientConfig holds the configuration for the open API client.
type ClientConfig struct {
	// URL is the base URL of the API (e.g., https://open-api.unisat.io).
	URL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// RequestTimeout is the timeout for individual HTTP requests.
	RequestTimeout time.Duration

	// MaxRetries is the maximum number of retries for failed requests.
	MaxRetries int

	// PageSize is the number of UTXOs fetched per page.
	PageSize int
}

// Client is an HTTP client for an ordinals indexer open API.
type Client struct {
	cfg *ClientConfig

	httpClient *http.Client
}

// NewClient creates a new open API client with the given configuration.
func NewClient(cfg *ClientConfig) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// doRequest performs an HTTP request with retries. Only transport failures
// are retried.
func (c *Client) doRequest(ctx context.Context, method, path string,
	body []byte) (*http.Response, error) {

	endpoint := c.cfg.URL + path

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(
			ctx, method, endpoint, reader,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w",
				err)
		}

		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.Debugf("Request %s %s failed (attempt %d): %v",
				method, path, i+1, err)

			if i < c.cfg.MaxRetries {
				select {
				case <-time.After(
					time.Duration(i+1) * 100 * time.Millisecond,
				):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("%w: request failed after %d attempts: %v",
		ErrNotConnected, c.cfg.MaxRetries+1, lastErr)
}

// call performs a request and decodes the data of the response envelope into
// out.
func (c *Client) call(ctx context.Context, method, path string, in,
	out any) error {

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s",
			resp.StatusCode, string(respBody))
	}

	env := envelope[json.RawMessage]{}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}

	return nil
}

// InscriptionInfo fetches an inscription and the UTXO holding it.
func (c *Client) InscriptionInfo(ctx context.Context,
	inscriptionID string) (*InscriptionInfo, error) {

	path := "/v1/indexer/inscription/info/" + url.PathEscape(inscriptionID)

	var info InscriptionInfo
	if err := c.call(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch inscription %s: %w",
			inscriptionID, err)
	}

	log.Debugf("Inscription %s held by %s:%d (%d sats) at %s",
		info.InscriptionID, info.UTXO.TxID, info.UTXO.Vout,
		info.UTXO.Satoshi, info.UTXO.Address)

	return &info, nil
}

// AddressUTXOs fetches every UTXO of an address, following the pagination
// cursor.
func (c *Client) AddressUTXOs(ctx context.Context,
	address string) ([]UTXO, error) {

	var (
		utxos    []UTXO
		cursor   int
		total    int
		complete bool
	)
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("cursor", strconv.Itoa(cursor))
		query.Set("size", strconv.Itoa(c.cfg.PageSize))
		path := "/v1/indexer/address/" + url.PathEscape(address) +
			"/utxo-data?" + query.Encode()

		var data UTXOData
		err := c.call(ctx, http.MethodGet, path, nil, &data)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch utxos of %s: "+
				"%w", address, err)
		}

		utxos = append(utxos, data.UTXO...)
		cursor += len(data.UTXO)
		total = data.Total

		if len(data.UTXO) < c.cfg.PageSize || cursor >= data.Total {
			complete = true
			break
		}
	}

	// Callers rely on seeing every inscribed coin of the address.
	if !complete {
		return nil, fmt.Errorf("%w: %s has %d utxos, fetched %d in %d "+
			"pages", ErrTooManyUTXOs, address, total, len(utxos),
			maxPages)
	}

	log.Debugf("Fetched %d utxos of %s", len(utxos), address)

	return utxos, nil
}

// PushTx broadcasts a raw transaction. Returns the txid on success.
func (c *Client) PushTx(ctx context.Context, txHex string) (string, error) {
	var txid string
	err := c.call(
		ctx, http.MethodPost, "/v1/indexer/local_pushtx",
		&pushTxRequest{TxHex: txHex}, &txid,
	)
	if err != nil {
		return "", fmt.Errorf("broadcast failed: %w", err)
	}

	log.Infof("Broadcast tx %s", txid)

	return txid, nil
}
