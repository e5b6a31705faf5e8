package oracle

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Request is the JSON body exchanged between HTTP and Handler.
type Request struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTP queries a remote padding oracle. The server answers 200 for valid padding and
// InvalidStatus (500 by default) for a padding error. Anything else is treated as the
// oracle being unreachable.
type HTTP struct {
	URL           string
	InvalidStatus int
	Client        *http.Client
}

// NewHTTP returns a client for the oracle at url with a 10 second request timeout.
func NewHTTP(url string) *HTTP {
	return &HTTP{
		URL:           url,
		InvalidStatus: http.StatusInternalServerError,
		Client:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTP) IsPaddingValid(ctx context.Context, prev, target []byte) (bool, error) {
	body, err := json.Marshal(Request{
		IV:         hex.EncodeToString(prev),
		Ciphertext: hex.EncodeToString(target),
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case h.InvalidStatus:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unexpected status %d", ErrUnreachable, resp.StatusCode)
	}
}

// Handler serves o over HTTP using the protocol HTTP understands.
func Handler(o Oracle, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		iv, err := hex.DecodeString(req.IV)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid IV encoding")
			return
		}
		ct, err := hex.DecodeString(req.Ciphertext)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid ciphertext encoding")
			return
		}

		ok, err := o.IsPaddingValid(r.Context(), iv, ct)
		if err != nil {
			logger.Printf("decryption error: %v", err)
			writeError(w, http.StatusBadRequest, "Decryption error")
			return
		}
		if !ok {
			writeError(w, http.StatusInternalServerError, "Padding error")
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
