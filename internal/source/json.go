package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// jsonReader streams one JSON file as records.
//
// Accepted shapes:
//   - root array of objects, streamed element by element
//   - root object containing an array-of-objects field (envelope); the
//     first such field is streamed and the rest of the object is skipped
//   - root object with no array-of-objects field: one record
//   - trailing newline-delimited objects after the root value
//
// Anything else (bare scalars, arrays of scalars) is ErrInputType.
//
// Options:
//   - header_map (map original key -> record key)
//   - array_join_separator (string, default ","): flattens []string values
type jsonReader struct {
	path string
	opts config.Options
}

func (j *jsonReader) Kind() string { return "json" }

// SinglePass is true: the decoder walks the document once.
func (j *jsonReader) SinglePass() bool { return true }

func (j *jsonReader) Stream(ctx context.Context, out chan<- records.Record, onErr func(line int, err error)) error {
	f, err := openPath(j.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return streamJSON(ctx, f, j.opts, out, onErr)
}

func streamJSON(ctx context.Context, r io.Reader, opts config.Options, out chan<- records.Record, onErr func(line int, err error)) error {
	dec := json.NewDecoder(r)
	// Numbers stay json.Number so large keys survive; type inference treats
	// them as numeric strings.
	dec.UseNumber()

	hm := opts.StringMap("header_map")
	sep := strings.TrimSpace(opts.String("array_join_separator", ","))
	if sep == "" {
		sep = ","
	}

	line := 0
	emit := func(obj map[string]any) error {
		line++
		rec := objectToRecord(obj, hm, sep)
		select {
		case out <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("json: read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("%w: json root is %T, want object or array", ErrInputType, tok)
	}

	switch d {
	case '[':
		if err := streamArrayOfObjects(ctx, dec, emit, onErr, &line); err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("json: read array end: %w", err)
		} else if end != json.Delim(']') {
			return fmt.Errorf("json: expected array end ']', got %v", end)
		}
		return streamTrailingObjects(ctx, dec, emit, onErr, &line)

	case '{':
		streamed, single, err := streamEnvelopeOrSingle(ctx, dec, emit, onErr, &line)
		if err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("json: read object end: %w", err)
		} else if end != json.Delim('}') {
			return fmt.Errorf("json: expected object end '}', got %v", end)
		}
		if !streamed && single != nil {
			if err := emit(single); err != nil {
				return err
			}
		}
		return streamTrailingObjects(ctx, dec, emit, onErr, &line)

	default:
		return fmt.Errorf("%w: unsupported json root delimiter %q", ErrInputType, d)
	}
}

func streamTrailingObjects(ctx context.Context, dec *json.Decoder, emit func(map[string]any) error, onErr func(line int, err error), line *int) error {
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if err == io.EOF {
				return nil
			}
			if onErr != nil {
				onErr(*line+1, err)
			}
			return fmt.Errorf("json: decode trailing object: %w", err)
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
}

// streamArrayOfObjects streams elements of the current array after '[' has
// been consumed. Null elements are skipped; non-object elements are a
// fatal type error.
func streamArrayOfObjects(ctx context.Context, dec *json.Decoder, emit func(map[string]any) error, onErr func(line int, err error), line *int) error {
	for dec.More() {
		var raw any
		if err := dec.Decode(&raw); err != nil {
			if onErr != nil {
				onErr(*line+1, err)
			}
			return fmt.Errorf("json: decode array element: %w", err)
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			err := fmt.Errorf("%w: json array element is %T, want object", ErrInputType, raw)
			if onErr != nil {
				onErr(*line+1, err)
			}
			return err
		}
		if err := emit(obj); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// streamEnvelopeOrSingle walks a root object after '{' has been consumed.
// The first field holding an array of objects is streamed and the
// remaining fields are skipped. With no such field the whole object is
// returned as a single record.
func streamEnvelopeOrSingle(ctx context.Context, dec *json.Decoder, emit func(map[string]any) error, onErr func(line int, err error), line *int) (streamed bool, single map[string]any, _ error) {
	single = make(map[string]any)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, nil, fmt.Errorf("json: read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return false, nil, fmt.Errorf("json: object key not a string (got %T)", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return false, nil, fmt.Errorf("json: read object value token: %w", err)
		}

		if delim, ok := valTok.(json.Delim); ok && delim == '[' {
			if err := streamArrayOfObjects(ctx, dec, emit, onErr, line); err != nil {
				return false, nil, err
			}
			endTok, err := dec.Token()
			if err != nil {
				return false, nil, fmt.Errorf("json: read envelope array end: %w", err)
			}
			if endTok != json.Delim(']') {
				return false, nil, fmt.Errorf("json: expected ']' after envelope array, got %v", endTok)
			}

			// Skip the rest of the envelope without materializing it.
			for dec.More() {
				if _, err := dec.Token(); err != nil {
					return true, nil, fmt.Errorf("json: skip envelope key: %w", err)
				}
				if err := skipNextValue(dec); err != nil {
					return true, nil, err
				}
			}
			return true, nil, nil
		}

		val, err := materializeValueFromFirstToken(dec, valTok)
		if err != nil {
			return false, nil, err
		}
		single[key] = val
	}

	return false, single, nil
}

func skipNextValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: skip value token: %w", err)
	}
	return skipValueFromFirstToken(dec, tok)
}

func skipValueFromFirstToken(dec *json.Decoder, tok any) error {
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch d {
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return fmt.Errorf("json: skip object key: %w", err)
			}
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
		end, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: skip object end: %w", err)
		}
		if end != json.Delim('}') {
			return fmt.Errorf("json: expected '}', got %v", end)
		}
		return nil

	case '[':
		for dec.More() {
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
		end, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: skip array end: %w", err)
		}
		if end != json.Delim(']') {
			return fmt.Errorf("json: expected ']', got %v", end)
		}
		return nil

	default:
		return fmt.Errorf("json: unexpected delimiter %q", d)
	}
}

// materializeValueFromFirstToken builds a Go value for the current JSON
// value given its first token. Only the single-record root path uses it,
// so the values stay small.
func materializeValueFromFirstToken(dec *json.Decoder, tok any) (any, error) {
	if d, ok := tok.(json.Delim); ok {
		switch d {
		case '{':
			m := make(map[string]any)
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("json: read nested object key: %w", err)
				}
				k, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("json: nested object key not string (got %T)", kt)
				}
				vt, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("json: read nested object value token: %w", err)
				}
				v, err := materializeValueFromFirstToken(dec, vt)
				if err != nil {
					return nil, err
				}
				m[k] = v
			}
			end, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested object end: %w", err)
			}
			if end != json.Delim('}') {
				return nil, fmt.Errorf("json: expected '}', got %v", end)
			}
			return m, nil

		case '[':
			var arr []any
			for dec.More() {
				vt, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("json: read nested array value token: %w", err)
				}
				v, err := materializeValueFromFirstToken(dec, vt)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			end, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested array end: %w", err)
			}
			if end != json.Delim(']') {
				return nil, fmt.Errorf("json: expected ']', got %v", end)
			}
			return arr, nil

		default:
			return nil, fmt.Errorf("json: unexpected delimiter %q", d)
		}
	}

	return tok, nil
}

// objectToRecord maps a decoded object into a records.Record, applying the
// header map and flattening string arrays into joined scalars.
func objectToRecord(obj map[string]any, hm map[string]string, sep string) records.Record {
	rec := make(records.Record, len(obj))
	for k, v := range obj {
		if mapped, ok := hm[k]; ok {
			k = mapped
		}
		rec[k] = flattenJSONValue(v, sep)
	}
	return rec
}

// flattenJSONValue joins arrays of strings into a single scalar. Mixed or
// nested values pass through untouched.
func flattenJSONValue(v any, sep string) any {
	switch t := v.(type) {
	case nil:
		return nil

	case []string:
		if len(t) == 0 {
			return ""
		}
		return strings.Join(t, sep)

	case []any:
		if len(t) == 0 {
			return ""
		}
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				return v
			}
			ss = append(ss, s)
		}
		if len(ss) == 0 {
			return ""
		}
		return strings.Join(ss, sep)

	default:
		return v
	}
}
