package model

import (
	"bytes"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

// ResultOK is the only Result value treated as success
const ResultOK = "OK"

// Envelope is the part every server response shares
type Envelope struct {
	Result  string `json:"Result"`
	Message string `json:"Message,omitempty"`
}

// IsOK reports whether the envelope signals success
func (e Envelope) IsOK() bool {
	return e.Result == ResultOK
}

// Err returns nil on success and ErrEnvelope carrying the server message otherwise
func (e Envelope) Err() error {
	if e.IsOK() {
		return nil
	}
	return goerr.Wrap(ErrEnvelope, "server reported failure",
		goerr.V("result", e.Result), goerr.V(MessageKey, e.Message))
}

// ListResponse is the envelope of a list action
type ListResponse struct {
	Envelope
	Records          []Record `json:"Records"`
	TotalRecordCount int      `json:"TotalRecordCount"`
}

// RecordResponse is the envelope of create, update, delete and single record fetches
type RecordResponse struct {
	Envelope
	Record Record `json:"Record,omitempty"`
}

// DecodeListResponse parses a list payload and checks the envelope. When the
// server omits TotalRecordCount the number of records is used.
func DecodeListResponse(raw []byte) (*ListResponse, error) {
	var resp ListResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to decode list response")
	}
	if err := resp.Err(); err != nil {
		return &resp, err
	}
	if resp.Records == nil {
		resp.Records = []Record{}
	}
	if resp.TotalRecordCount == 0 {
		resp.TotalRecordCount = len(resp.Records)
	}
	return &resp, nil
}

// DecodeRecordResponse parses a CRUD payload and checks the envelope
func DecodeRecordResponse(raw []byte) (*RecordResponse, error) {
	var resp RecordResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to decode record response")
	}
	if err := resp.Err(); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// NewListResponse builds a success list envelope
func NewListResponse(records []Record, total int) *ListResponse {
	if records == nil {
		records = []Record{}
	}
	return &ListResponse{Envelope: Envelope{Result: ResultOK}, Records: records, TotalRecordCount: total}
}

// NewRecordResponse builds a success CRUD envelope
func NewRecordResponse(record Record) *RecordResponse {
	return &RecordResponse{Envelope: Envelope{Result: ResultOK}, Record: record}
}

// ErrorEnvelope builds a failure envelope with a user facing message
func ErrorEnvelope(msg string) Envelope {
	return Envelope{Result: "ERROR", Message: msg}
}

// decodeJSON keeps numbers as json.Number so that record keys such as 12
// survive a round trip without turning into 12.0 style floats.
func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
