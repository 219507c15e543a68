package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 64 << 10

var errBadAmount = errors.New("amount must be a positive whole number")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// decodeBody reads a JSON object into a generic map with numbers kept as
// json.Number. An empty body yields an empty map.
func decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return body, nil
}

// stringField returns the first non-empty string among keys. Numbers are
// accepted and formatted.
func stringField(body map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := body[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// amountField reads a positive integer amount. A missing field returns def.
// Fractions, NaN, infinities and non-positive values are rejected.
func amountField(body map[string]any, def int64, keys ...string) (int64, error) {
	for _, k := range keys {
		v, ok := body[k]
		if !ok || v == nil {
			continue
		}
		var raw string
		switch t := v.(type) {
		case json.Number:
			raw = t.String()
		case string:
			raw = strings.TrimSpace(t)
		default:
			return 0, errBadAmount
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if n <= 0 {
				return 0, errBadAmount
			}
			return n, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f <= 0 || f >= math.MaxInt64 {
			return 0, errBadAmount
		}
		return int64(f), nil
	}
	return def, nil
}
