// Package corpus reads and writes JSON consumer corpora, keeping every
// source field and its order intact.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type recordView struct {
	RoomsCount     int             `validate:"gte=0"`
	ResidentsCount int             `validate:"gte=0"`
	TotalArea      *float64        `validate:"omitempty,gte=0"`
	Consumption    map[int]float64 `validate:"dive,gte=0"`
	Probability    *float64        `validate:"omitempty,gte=0,lte=1"`
}

func Decode(r io.Reader, partition domain.Partition, validate *validator.Validate) (*domain.Corpus, error) {
	op := "decode " + string(partition) + " corpus"
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	corpus := &domain.Corpus{Partition: partition}
	for i := 0; dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("record %d: %w", i, err))
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("record %d: %w", i, err))
		}
		if err := validate.Struct(recordView{
			RoomsCount:     rec.RoomsCount,
			ResidentsCount: rec.ResidentsCount,
			TotalArea:      rec.TotalArea,
			Consumption:    rec.Consumption,
			Probability:    rec.Probability,
		}); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("record %d (%s): %w", i, rec.AccountID, err))
		}
		corpus.Records = append(corpus.Records, rec)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	return corpus, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func decodeRecord(raw json.RawMessage) (*domain.ConsumerRecord, error) {
	fields, err := orderedFields(raw)
	if err != nil {
		return nil, err
	}
	rec := &domain.ConsumerRecord{Raw: fields}
	for _, f := range fields {
		if isNull(f.Value) {
			continue
		}
		if err := assign(rec, f); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
	}
	return rec, nil
}

func orderedFields(raw json.RawMessage) ([]domain.RawField, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	fields := []domain.RawField{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		fields = append(fields, domain.RawField{Key: key, Value: value})
	}
	return fields, nil
}

func assign(rec *domain.ConsumerRecord, f domain.RawField) error {
	switch f.Key {
	case domain.FieldAccountID:
		id, err := identifier(f.Value)
		if err != nil {
			return err
		}
		rec.AccountID = id
	case domain.FieldAddress:
		v, err := loose(f.Value, cast.ToStringE)
		if err != nil {
			return err
		}
		rec.Address = v
	case domain.FieldBuildingType:
		v, err := loose(f.Value, cast.ToStringE)
		if err != nil {
			return err
		}
		rec.BuildingType = strings.TrimSpace(v)
	case domain.FieldRoomsCount:
		v, err := loose(f.Value, wholeCount)
		if err != nil {
			return err
		}
		rec.RoomsCount = v
	case domain.FieldResidentsCount:
		v, err := loose(f.Value, wholeCount)
		if err != nil {
			return err
		}
		rec.ResidentsCount = v
	case domain.FieldTotalArea:
		v, err := loose(f.Value, cast.ToFloat64E)
		if err != nil {
			return err
		}
		rec.TotalArea = &v
	case domain.FieldConsumption:
		usage, err := consumption(f.Value)
		if err != nil {
			return err
		}
		rec.Consumption = usage
	case domain.FieldIsCommercial:
		v, err := loose(f.Value, cast.ToBoolE)
		if err != nil {
			return err
		}
		rec.IsCommercial = &v
	case domain.FieldProbability:
		v, err := loose(f.Value, cast.ToFloat64E)
		if err != nil {
			return err
		}
		rec.Probability = &v
	case domain.FieldHasBusiness:
		v, err := loose(f.Value, cast.ToBoolE)
		if err != nil {
			return err
		}
		rec.HasBusiness = &v
	}
	return nil
}

// identifier keeps numeric ids in their literal form.
func identifier(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("identifier must be a string or number: %w", err)
	}
	return n.String(), nil
}

func loose[T any](raw json.RawMessage, conv func(any) (T, error)) (T, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, err
	}
	return conv(v)
}

// wholeCount accepts integral numbers and base-10 numeric strings.
func wholeCount(v any) (int, error) {
	if s, ok := v.(string); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("count %q is not a number", s)
		}
		v = parsed
	}
	if f, ok := v.(float64); ok && (f != math.Trunc(f) || math.IsInf(f, 0)) {
		return 0, fmt.Errorf("count %v is not a whole number", f)
	}
	return cast.ToIntE(v)
}

// consumption keeps months 1..12; other keys are ignored.
func consumption(raw json.RawMessage) (map[int]float64, error) {
	var months map[string]any
	if err := json.Unmarshal(raw, &months); err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(months))
	for key, value := range months {
		m, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || m < 1 || m > 12 {
			continue
		}
		if value == nil {
			continue
		}
		v, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, fmt.Errorf("month %s: %w", key, err)
		}
		out[m] = v
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Encode writes the corpus as an indented JSON array. Records keep their
// source fields in order; records built in memory get their typed fields.
func Encode(w io.Writer, corpus *domain.Corpus) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range corpus.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		fields := rec.Raw
		if fields == nil {
			var err error
			if fields, err = typedFields(rec); err != nil {
				return fmt.Errorf("encode record %s: %w", rec.AccountID, err)
			}
		}
		buf.WriteByte('{')
		for j, f := range fields {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(f.Value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("indent corpus: %w", err)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func typedFields(rec *domain.ConsumerRecord) ([]domain.RawField, error) {
	usage := make(map[string]float64, len(rec.Consumption))
	for m, v := range rec.Consumption {
		usage[strconv.Itoa(m)] = v
	}
	values := []struct {
		key   string
		value any
		skip  bool
	}{
		{domain.FieldAccountID, rec.AccountID, false},
		{domain.FieldAddress, rec.Address, false},
		{domain.FieldBuildingType, rec.BuildingType, false},
		{domain.FieldRoomsCount, rec.RoomsCount, false},
		{domain.FieldResidentsCount, rec.ResidentsCount, false},
		{domain.FieldTotalArea, rec.TotalArea, false},
		{domain.FieldConsumption, usage, false},
		{domain.FieldIsCommercial, rec.IsCommercial, rec.IsCommercial == nil},
		{domain.FieldProbability, rec.Probability, rec.Probability == nil},
		{domain.FieldHasBusiness, rec.HasBusiness, rec.HasBusiness == nil},
	}
	out := make([]domain.RawField, 0, len(values))
	for _, v := range values {
		if v.skip {
			continue
		}
		raw, err := marshal(v.value)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RawField{Key: v.key, Value: raw})
	}
	return out, nil
}

// marshal encodes v without HTML escaping so non-ASCII text and symbols
// survive as written.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

