// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"bytes"
	"io"
	"mime"
	"reflect"

	"github.com/ugorji/go/codec"
)

// jsonHandle returns the codec settings used for all JSON traffic.
// Generic objects decode as map[string]interface{} rather than the
// codec default of map[interface{}]interface{}, integers decode as
// int64, and maps encode with sorted keys so that identical data
// always produces identical bytes.
func jsonHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	h.SignedInteger = true
	h.Canonical = true
	return h
}

// canonicalType maps a Content-Type: header to one of the media types
// this package understands, or returns ErrUnsupportedMediaType.
func canonicalType(contentType string) (string, error) {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5 says to assume
		// application/octet-stream, but servers that forget
		// the header on JSON APIs are common enough.
		return JSONMediaType, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	switch mediaType {
	case "text/json", JSONMediaType, V1JSONMediaType:
		return JSONMediaType, nil
	}
	return "", ErrUnsupportedMediaType{Type: mediaType}
}

// Decode tries to decode an object from a reader, such as an HTTP
// request or response.  out must be a pointer type.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if _, err := canonicalType(contentType); err != nil {
		return err
	}
	decoder := codec.NewDecoder(r, jsonHandle())
	return decoder.Decode(out)
}

// DecodeFields parses a response body into generic data.  The result
// is a map[string]interface{} for a JSON object or a []interface{}
// for a JSON list; an empty body parses as an empty object.
func DecodeFields(contentType string, body []byte) (interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, nil
	}
	var out interface{}
	err := Decode(contentType, bytes.NewReader(body), &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

// EncodeBody serializes plain data as JSON.
func EncodeBody(in interface{}) (out []byte, err error) {
	encoder := codec.NewEncoderBytes(&out, jsonHandle())
	err = encoder.Encode(in)
	return
}

// Encode writes plain data as JSON to a writer.
func Encode(w io.Writer, in interface{}) error {
	encoder := codec.NewEncoder(w, jsonHandle())
	return encoder.Encode(in)
}
