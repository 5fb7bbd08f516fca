// Package report batches confirmed mints and bridges and posts them to the
// persistence API.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/security"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

// Record is one confirmed transaction as the persistence API expects it
type Record struct {
	ChainNetwork    types.NetworkName  `json:"chainNetwork"`
	TokenID         *big.Int           `json:"tokenId,omitempty"`
	BlockchainLogID *big.Int           `json:"blockchainLogId,omitempty"`
	TransactionHash string             `json:"transactionHash"`
	Protocol        types.ProtocolKind `json:"protocol"`
}

// MintRecord builds the record for a successful mint, or false if the outcome is not reportable
func MintRecord(network types.NetworkName, protocol types.ProtocolKind, out model.TransactionOutcome) (Record, bool) {
	if !out.Success || out.TransactionHash == "" {
		return Record{}, false
	}
	return Record{
		ChainNetwork:    network,
		BlockchainLogID: out.BlockchainLogID,
		TransactionHash: out.TransactionHash,
		Protocol:        protocol,
	}, true
}

// BridgeRecord builds the record for a successful bridge of tokenID
func BridgeRecord(network types.NetworkName, protocol types.ProtocolKind, tokenID *big.Int, out model.TransactionOutcome) (Record, bool) {
	if !out.Success || out.TransactionHash == "" {
		return Record{}, false
	}
	return Record{
		ChainNetwork:    network,
		TokenID:         tokenID,
		TransactionHash: out.TransactionHash,
		Protocol:        protocol,
	}, true
}

// Config holds reporter settings
type Config struct {
	URL       string
	APIKey    string
	BatchSize int
	Interval  time.Duration
	Timeout   time.Duration
	RetryMax  int

	// Signer, when set, signs every batch body
	Signer *security.PayloadSigner
}

// Reporter collects records and posts them in batches, either when the batch
// is full or on every interval tick.
type Reporter struct {
	config     Config
	httpClient *retryablehttp.Client

	mu         sync.Mutex
	batch      []Record
	lastExport time.Time
	exported   int
	failed     int

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a reporter. An empty URL gives a disabled reporter that drops every record.
func New(cfg Config) *Reporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}

	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = cfg.Timeout
	c.Logger = nil

	return &Reporter{
		config:     cfg,
		httpClient: c,
		batch:      make([]Record, 0, cfg.BatchSize),
	}
}

// Enabled reports whether records are posted anywhere
func (r *Reporter) Enabled() bool {
	return r.config.URL != ""
}

// Start runs the periodic flush until Stop is called
func (r *Reporter) Start() {
	if !r.Enabled() || r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.flushLogged(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	logrus.WithField("url", r.config.URL).Info("Persistence reporter started")
}

// Enqueue adds a record; a full batch is flushed in the background
func (r *Reporter) Enqueue(rec Record) {
	if !r.Enabled() {
		return
	}

	r.mu.Lock()
	r.batch = append(r.batch, rec)
	full := len(r.batch) >= r.config.BatchSize
	r.mu.Unlock()

	if full {
		go r.flushLogged(context.Background())
	}
}

func (r *Reporter) flushLogged(ctx context.Context) {
	if err := r.Flush(ctx); err != nil {
		logrus.Errorf("Failed to report transactions: %v", err)
	}
}

// Flush posts the pending batch. Records of a failed post are put back in front of the queue.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	if len(r.batch) == 0 {
		r.mu.Unlock()
		return nil
	}
	records := make([]Record, len(r.batch))
	copy(records, r.batch)
	r.batch = make([]Record, 0, r.config.BatchSize)
	r.mu.Unlock()

	if err := r.post(ctx, records); err != nil {
		r.mu.Lock()
		r.batch = append(records, r.batch...)
		r.failed++
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.lastExport = time.Now()
	r.exported += len(records)
	r.mu.Unlock()

	logrus.Infof("Reported %d transactions", len(records))
	return nil
}

func (r *Reporter) post(ctx context.Context, records []Record) error {
	payload := struct {
		Transactions []Record `json:"transactions"`
		ExportTime   string   `json:"exportTime"`
		Count        int      `json:"count"`
	}{
		Transactions: records,
		ExportTime:   time.Now().UTC().Format(time.RFC3339),
		Count:        len(records),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}
	if r.config.Signer != nil {
		sig, err := r.config.Signer.Sign(body)
		if err != nil {
			return err
		}
		req.Header.Set(security.HeaderSignature, sig.Value)
		req.Header.Set(security.HeaderSigner, sig.Signer.Hex())
		req.Header.Set(security.HeaderTimestamp, strconv.FormatInt(sig.Timestamp, 10))
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("report endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Stop ends the periodic flush and posts whatever is left
func (r *Reporter) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
		r.cancel = nil
	}
	if !r.Enabled() {
		return nil
	}
	return r.Flush(ctx)
}

// Status returns the reporter state for the health endpoint
func (r *Reporter) Status() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := map[string]interface{}{
		"enabled":       r.Enabled(),
		"batch_size":    r.config.BatchSize,
		"interval":      r.config.Interval.String(),
		"current_batch": len(r.batch),
		"exported":      r.exported,
		"failed_posts":  r.failed,
	}
	if !r.lastExport.IsZero() {
		status["last_export"] = r.lastExport.Format(time.RFC3339)
	}
	return status
}
