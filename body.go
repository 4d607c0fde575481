package goPortal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
)

// Body is a request payload. It is encoded once, before the first attempt,
// so a replay after renewal sends identical bytes.
type Body interface {
	encode() (data []byte, contentType string, err error)
}

type jsonBody struct {
	value any
}

// JSONBody serialises v as JSON and declares application/json.
func JSONBody(v any) Body {
	return jsonBody{value: v}
}

func (b jsonBody) encode() ([]byte, string, error) {
	data, err := json.Marshal(b.value)
	if err != nil {
		return nil, "", fmt.Errorf("%w: encode json body: %v", ErrInvalidRequest, err)
	}
	return data, "application/json", nil
}

type rawBody struct {
	data        []byte
	contentType string
}

// RawBody sends data as is. An empty contentType sends no Content-Type
// header and lets the server infer it.
func RawBody(data []byte, contentType string) Body {
	return rawBody{data: append([]byte(nil), data...), contentType: contentType}
}

func (b rawBody) encode() ([]byte, string, error) {
	return b.data, b.contentType, nil
}

type multipartBody struct {
	fill func(*multipart.Writer) error
}

// MultipartBody builds a multipart/form-data payload by calling fill. The
// content type is the writer's own, carrying its boundary.
func MultipartBody(fill func(*multipart.Writer) error) Body {
	return multipartBody{fill: fill}
}

func (b multipartBody) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if b.fill != nil {
		if err := b.fill(w); err != nil {
			return nil, "", fmt.Errorf("%w: build multipart body: %v", ErrInvalidRequest, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: close multipart body: %v", ErrInvalidRequest, err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
