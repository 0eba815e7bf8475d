package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// readFields returns the named string fields of a form or JSON body.
// Missing fields are empty; non-string JSON values are an error.
func readFields(w http.ResponseWriter, r *http.Request, keys ...string) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	out := make(map[string]string, len(keys))

	if isFormRequest(r) {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: %v", errBadBody, err)
		}
		for _, k := range keys {
			out[k] = strings.TrimSpace(r.FormValue(k))
		}
		return out, nil
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", errBadBody, err)
	}
	for _, k := range keys {
		v, ok := body[k]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a string", errBadBody, k)
		}
		out[k] = strings.TrimSpace(s)
	}
	return out, nil
}
