package vectordb

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vectrix-io/vectrixdb/pkg/vdberrors"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
)

// Document is a caller-supplied payload keyed by "id": a fixed-length
// float vector under "vectors", an "indexType" selector, and any number
// of scalar fields. Field values are decoded with json.Number so integer
// fields (the ones FilterIndex cares about) can be told apart from
// floats and strings.
type Document map[string]interface{}

// ParseDocument decodes raw JSON into a Document, preserving numbers as
// json.Number rather than float64 so IntFields can distinguish 7 from 7.5.
func ParseDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", vdberrors.ErrMalformedRequest, err)
	}
	return doc, nil
}

// ID extracts and validates the required "id" field.
func (d Document) ID() (uint64, error) {
	raw, ok := d["id"]
	if !ok {
		return 0, fmt.Errorf("%w: id", vdberrors.ErrMissingField)
	}
	num, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: id must be an integer", vdberrors.ErrMalformedRequest)
	}
	id, err := num.Int64()
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: id must be a non-negative integer", vdberrors.ErrMalformedRequest)
	}
	return uint64(id), nil
}

// IndexType extracts and validates the required "indexType" field.
func (d Document) IndexType() (vectorindex.Type, error) {
	raw, ok := d["indexType"]
	if !ok {
		return "", fmt.Errorf("%w: indexType", vdberrors.ErrMissingField)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: indexType must be a string", vdberrors.ErrMalformedRequest)
	}
	switch vectorindex.Type(s) {
	case vectorindex.Flat, vectorindex.Hnsw:
		return vectorindex.Type(s), nil
	default:
		return "", fmt.Errorf("%w: %s", vdberrors.ErrUnknownIndexType, s)
	}
}

// Vector extracts and validates the required "vectors" field.
func (d Document) Vector() ([]float32, error) {
	raw, ok := d["vectors"]
	if !ok {
		return nil, fmt.Errorf("%w: vectors", vdberrors.ErrMissingField)
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: vectors must be an array", vdberrors.ErrMalformedRequest)
	}
	out := make([]float32, len(arr))
	for i, v := range arr {
		num, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: vectors must contain numbers", vdberrors.ErrMalformedRequest)
		}
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: vectors must contain numbers", vdberrors.ErrMalformedRequest)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// IntFields returns every integer-valued scalar field other than "id",
// "vectors", and "indexType" — the set FilterIndex indexes per
// spec.md §3.
func (d Document) IntFields() map[string]int64 {
	out := make(map[string]int64)
	for k, v := range d {
		if k == "id" || k == "vectors" || k == "indexType" {
			continue
		}
		num, ok := v.(json.Number)
		if !ok {
			continue
		}
		i, err := num.Int64()
		if err != nil {
			continue
		}
		out[k] = i
	}
	return out
}
