package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/storage/localfs"
)

const sample = `[
  {"accountId": 15, "address": "Краснодар, ул. Мира, 5", "buildingType": "Частный",
   "roomsCount": "3", "residentsCount": null, "totalArea": null,
   "consumption": {"1": 500, "2": "450", "13": 1, "x": 2},
   "isCommercial": true, "extra": {"nested": [1, 2]}},
  {"accountId": "A-2", "totalArea": 48.5, "consumption": {}}
]`

func decodeSample(t *testing.T) *domain.Corpus {
	t.Helper()
	c, err := Decode(strings.NewReader(sample), domain.PartitionTrain, validator.New())
	require.NoError(t, err)
	return c
}

func TestDecodeTypedFields(t *testing.T) {
	c := decodeSample(t)
	require.Len(t, c.Records, 2)

	first := c.Records[0]
	assert.Equal(t, "15", first.AccountID)
	assert.Equal(t, "Частный", first.BuildingType)
	assert.Equal(t, 3, first.RoomsCount)
	assert.Equal(t, 0, first.ResidentsCount)
	assert.Nil(t, first.TotalArea)
	assert.Equal(t, map[int]float64{1: 500, 2: 450}, first.Consumption)
	label, ok := first.Label()
	assert.True(t, ok)
	assert.Equal(t, domain.LabelCommercial, label)

	second := c.Records[1]
	assert.Equal(t, "A-2", second.AccountID)
	require.NotNil(t, second.TotalArea)
	assert.Equal(t, 48.5, *second.TotalArea)
	assert.Empty(t, second.Consumption)
	_, ok = second.Label()
	assert.False(t, ok)
}

func TestDecodeKeepsFieldOrder(t *testing.T) {
	c := decodeSample(t)
	keys := make([]string, 0)
	for _, f := range c.Records[0].Raw {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{
		"accountId", "address", "buildingType", "roomsCount", "residentsCount",
		"totalArea", "consumption", "isCommercial", "extra",
	}, keys)
}

func TestDecodeRejectsNegativeCounts(t *testing.T) {
	_, err := Decode(strings.NewReader(`[{"accountId": 1, "roomsCount": -2}]`), domain.PartitionTest, validator.New())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	_, err = Decode(strings.NewReader(`[{"accountId": 1, "consumption": {"3": -1}}]`), domain.PartitionTest, validator.New())
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestDecodeRejectsNonArray(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"accountId": 1}`), domain.PartitionTest, validator.New())
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestEncodePreservesUntouchedFields(t *testing.T) {
	c := decodeSample(t)
	c.Records[0].SetRaw(domain.FieldProbability, json.RawMessage(`0.91`))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, c))
	out := buf.String()

	assert.Contains(t, out, "Краснодар, ул. Мира, 5")
	assert.Contains(t, out, `"probability_isCommercial": 0.91`)
	assert.Contains(t, out, "\n  {\n    \"accountId\": 15,")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, map[string]any{"nested": []any{1.0, 2.0}}, decoded[0]["extra"])
	assert.Equal(t, map[string]any{"1": 500.0, "2": "450", "13": 1.0, "x": 2.0}, decoded[0]["consumption"])
}

func TestEncodeInMemoryRecord(t *testing.T) {
	p := 0.25
	c := &domain.Corpus{Records: []*domain.ConsumerRecord{{
		AccountID:   "7",
		Consumption: map[int]float64{1: 10},
		Probability: &p,
	}}}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, c))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "7", decoded[0]["accountId"])
	assert.Equal(t, 0.25, decoded[0][domain.FieldProbability])
	_, hasLabel := decoded[0][domain.FieldIsCommercial]
	assert.False(t, hasLabel)
}

func TestStoreRoundTrip(t *testing.T) {
	fs, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	store := NewStore(fs)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "out.json", decodeSample(t)))
	loaded, err := store.Load(ctx, "out.json", domain.PartitionUnlabeled)
	require.NoError(t, err)
	assert.Equal(t, domain.PartitionUnlabeled, loaded.Partition)
	assert.Equal(t, "15", loaded.Records[0].AccountID)
	assert.Equal(t, 3, loaded.Records[0].RoomsCount)
}

func TestDecodeCountsMustBeWholeNumbers(t *testing.T) {
	c, err := Decode(strings.NewReader(`[{"accountId": 1, "roomsCount": "010", "residentsCount": 4.0}]`), domain.PartitionTest, validator.New())
	require.NoError(t, err)
	assert.Equal(t, 10, c.Records[0].RoomsCount)
	assert.Equal(t, 4, c.Records[0].ResidentsCount)

	for _, body := range []string{
		`[{"accountId": 1, "roomsCount": 2.7}]`,
		`[{"accountId": 1, "residentsCount": "1.5"}]`,
		`[{"accountId": 1, "roomsCount": "three"}]`,
	} {
		_, err := Decode(strings.NewReader(body), domain.PartitionTest, validator.New())
		assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), body)
	}
}

func TestStoreLoadMissingCorpusIsNotFound(t *testing.T) {
	storage, err := localfs.New(t.TempDir())
	require.NoError(t, err)

	_, err = NewStore(storage).Load(context.Background(), "absent.json", domain.PartitionUnlabeled)
	assert.True(t, domain.IsKind(err, domain.ErrNotFound), "got %v", err)
}
