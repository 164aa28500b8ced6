package posterior

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
	"vqtlbrowser/internal/storage"
	"vqtlbrowser/ports"
)

func testSet() vqtl.SampleSet {
	return vqtl.SampleSet{
		"NA18489": mat.NewDense(2, 3, []float64{10, 0.5, 2, 11, 0.6, 2.5}),
		"NA19098": mat.NewDense(1, 3, []float64{8, 0.25, 1}),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, testSet(), compress))
		if compress {
			assert.Equal(t, byte(0x1f), buf.Bytes()[0])
		}

		set, err := Decode(&buf)
		require.NoError(t, err)
		require.Len(t, set, 2)
		assert.Contains(t, set, "NA18489")
		assert.Contains(t, set, "NA19098")
		assert.True(t, mat.Equal(testSet()["NA18489"], set["NA18489"]))
		assert.Equal(t, 0.25, set["NA19098"].At(0, int(vqtl.KOn)))
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"wrong format", `{"format":"pickle","version":1,"parameters":["k_r","k_on","k_off"],"samples":{"a":[[1,1,1]]}}`},
		{"future version", `{"format":"vqtl-posterior","version":2,"parameters":["k_r","k_on","k_off"],"samples":{"a":[[1,1,1]]}}`},
		{"parameter order", `{"format":"vqtl-posterior","version":1,"parameters":["k_on","k_r","k_off"],"samples":{"a":[[1,1,1]]}}`},
		{"two parameters", `{"format":"vqtl-posterior","version":1,"parameters":["k_r","k_on"],"samples":{"a":[[1,1]]}}`},
		{"no individuals", `{"format":"vqtl-posterior","version":1,"parameters":["k_r","k_on","k_off"],"samples":{}}`},
		{"no draws", `{"format":"vqtl-posterior","version":1,"parameters":["k_r","k_on","k_off"],"samples":{"a":[]}}`},
		{"short draw", `{"format":"vqtl-posterior","version":1,"parameters":["k_r","k_on","k_off"],"samples":{"a":[[1,1]]}}`},
		{"zero rate", `{"format":"vqtl-posterior","version":1,"parameters":["k_r","k_on","k_off"],"samples":{"a":[[1,0,1]]}}`},
		{"negative rate", `{"format":"vqtl-posterior","version":1,"parameters":["k_r","k_on","k_off"],"samples":{"a":[[1,1,-3]]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"format":`))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Encode(f, testSet(), true))
	require.NoError(t, f.Close())

	source := NewFileSource(storage.Opener{}, path)
	set, err := source.LoadSamples(context.Background())
	require.NoError(t, err)
	rows, cols := set["NA18489"].Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)

	info, err := os.Stat(path)
	require.NoError(t, err)
	meta, err := source.(ports.BlobBacked).Provenance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, meta.Key)
	assert.Equal(t, info.Size(), meta.Size)
	assert.Equal(t, storage.StorageLocal, meta.Provider)

	_, err = NewFileSource(storage.Opener{}, path+".missing").LoadSamples(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}
