// Package messaging implements request/reply RPC over Redis lists.
//
// A caller RPUSHes a Request onto a service queue and BLPOPs its private
// reply key. A server worker BLPOPs the queue, dispatches on Pattern and
// pushes the Response to ReplyTo with a short TTL so abandoned replies
// expire on their own.
package messaging

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pharmaerp/receiving/internal/domain/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CodeInternal is sent for errors that carry no DomainError code
const CodeInternal = "INTERNAL_ERROR"

// Error kinds on the wire, one per DomainError code
const (
	KindValidation               = "Validation"
	KindBusinessRuleViolation    = "BusinessRuleViolation"
	KindNotFound                 = "NotFound"
	KindConflict                 = "Conflict"
	KindStateTransitionViolation = "StateTransitionViolation"
	KindPersistenceFailure       = "PersistenceFailure"
	KindUpstreamUnavailable      = "UpstreamUnavailable"
	KindInternal                 = "Internal"
)

var kindByCode = map[string]string{
	shared.CodeValidation:             KindValidation,
	shared.CodeBusinessRuleViolation:  KindBusinessRuleViolation,
	shared.CodeNotFound:               KindNotFound,
	shared.CodeConflict:               KindConflict,
	shared.CodeInvalidStateTransition: KindStateTransitionViolation,
	shared.CodePersistenceFailure:     KindPersistenceFailure,
	shared.CodeUpstreamUnavailable:    KindUpstreamUnavailable,
}

// Request is the message a caller pushes onto a service queue
type Request struct {
	ID       string              `json:"id"`
	Pattern  string              `json:"pattern"`
	ReplyTo  string              `json:"reply_to"`
	Deadline time.Time           `json:"deadline"`
	Data     jsoniter.RawMessage `json:"data,omitempty"`
}

// Expired reports whether the caller has stopped waiting at now
func (r *Request) Expired(now time.Time) bool {
	return !r.Deadline.IsZero() && !now.Before(r.Deadline)
}

// Response is pushed to the request's ReplyTo key. Exactly one of Data and Error is set.
type Response struct {
	ID    string              `json:"id"`
	Data  jsoniter.RawMessage `json:"data,omitempty"`
	Error *ErrorBody          `json:"error,omitempty"`
}

// ErrorBody carries a DomainError across the wire
type ErrorBody struct {
	Kind    string         `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewErrorBody converts err for the wire. DomainErrors keep code, message
// and details unchanged; anything else becomes an opaque internal error.
func NewErrorBody(err error) *ErrorBody {
	var de *shared.DomainError
	if errors.As(err, &de) {
		kind, ok := kindByCode[de.Code]
		if !ok {
			kind = KindInternal
		}
		return &ErrorBody{Kind: kind, Code: de.Code, Message: de.Message, Details: de.Details}
	}
	return &ErrorBody{Kind: KindInternal, Code: CodeInternal, Message: "internal error"}
}

// DomainError rebuilds the typed error on the calling side
func (b *ErrorBody) DomainError() *shared.DomainError {
	de := shared.NewDomainError(b.Code, b.Message)
	if len(b.Details) > 0 {
		de.Details = b.Details
	}
	return de
}

// EncodeRequest marshals a request envelope
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest unmarshals a request envelope
func DecodeRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	if req.Pattern == "" || req.ReplyTo == "" {
		return nil, errors.New("request envelope needs pattern and reply_to")
	}
	return &req, nil
}

// EncodeResponse marshals a response envelope
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse unmarshals a response envelope
func DecodeResponse(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
