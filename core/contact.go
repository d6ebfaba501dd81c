package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

const (
	maxContactBodyBytes = 64 << 10

	msgMethodNotAllowed  = "Method not allowed"
	msgSubmitFailed      = "Failed to submit form"
	msgInvalidSubmission = "Invalid submission"
)

// ContactSubmission is the flat payload posted by the contact form. A nil
// field was absent from the request and stays absent upstream.
type ContactSubmission struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,max=254"`
	Mobile  *string `json:"mobile,omitempty" validate:"omitempty,max=32"`
	Message *string `json:"message,omitempty" validate:"omitempty,max=5000"`
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ContactRelay forwards contact submissions to the upstream sink and maps
// every upstream failure to one opaque error.
type ContactRelay struct {
	UpstreamURL string
	Client      *http.Client
	Logger      *zap.Logger

	validate *validator.Validate
}

func NewContactRelay(cfg ContactConfig, logger *zap.Logger) *ContactRelay {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ContactRelay{
		UpstreamURL: cfg.UpstreamURL,
		Client:      &http.Client{Timeout: cfg.Timeout},
		Logger:      logger,
		validate:    v,
	}
}

func (c *ContactRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: msgMethodNotAllowed})
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	log := c.Logger.With(zap.String("request_id", requestID))

	sub, fields, err := c.decode(http.MaxBytesReader(w, r.Body, maxContactBodyBytes))
	if err != nil {
		log.Debug("rejected contact submission", zap.Error(err), zap.Any("fields", fields))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgInvalidSubmission, Fields: fields})
		return
	}

	result, err := c.forward(r.Context(), sub)
	if err != nil {
		log.Error("contact submission failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgSubmitFailed})
		return
	}

	log.Debug("contact submission relayed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result)
}

// decode extracts the four submission fields by name. Unknown keys are
// ignored, JSON null counts as absent, and an empty body is an empty
// submission.
func (c *ContactRelay) decode(body io.Reader) (*ContactSubmission, map[string]string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}

	var raw map[string]interface{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, nil, fmt.Errorf("decode body: %w", err)
		}
	}

	sub := &ContactSubmission{}
	fields := map[string]string{}
	targets := []struct {
		key string
		dst **string
	}{
		{"name", &sub.Name},
		{"email", &sub.Email},
		{"mobile", &sub.Mobile},
		{"message", &sub.Message},
	}
	for _, t := range targets {
		v, ok := raw[t.key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			fields[t.key] = "must be a string"
			continue
		}
		*t.dst = &s
	}
	if len(fields) > 0 {
		return nil, fields, errors.New("submission has non-string fields")
	}

	if err := c.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fmt.Sprintf("must be at most %s characters", fe.Param())
			}
			return nil, fields, err
		}
		return nil, nil, err
	}

	return sub, nil, nil
}

// forward makes exactly one upstream call and returns the upstream JSON body.
func (c *ContactRelay) forward(ctx context.Context, sub *ContactSubmission) (json.RawMessage, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UpstreamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamStatus, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	// the whole body must be one JSON value; trailing content is malformed
	out := json.RawMessage(bytes.TrimSpace(data))
	if !json.Valid(out) {
		return nil, errors.New("decode upstream response: not a single JSON value")
	}
	if resp.StatusCode != http.StatusOK {
		c.Logger.Debug("upstream replied with non-200 success", zap.Int("status", resp.StatusCode))
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
