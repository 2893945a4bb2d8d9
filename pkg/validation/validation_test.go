package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronkwan/synced-object/pkg/object"
)

func TestNewError_NilWhenAllChecksPass(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewError("create", "k", nil, nil, nil))
}

func TestNewError_AggregatesEveryViolation(t *testing.T) {
	t.Parallel()

	err := NewError("create", "",
		CheckKey(""),
		CheckMode(object.Mode("cloud")),
		CheckDebounce(-time.Second),
		nil,
	)
	require.Error(t, err)

	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "create", ve.Op)
	assert.Len(t, ve.Violations(), 3)
	assert.Contains(t, err.Error(), "create")
	assert.True(t, IsValidation(err))
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	assert.False(t, IsValidation(errors.New("plain")))
	assert.False(t, IsValidation(nil))
	assert.True(t, IsValidation(Errorf("modify", "k", "no such object")))
}

func TestSyncError(t *testing.T) {
	t.Parallel()

	cause := errors.New("backend unavailable")
	err := &SyncError{Key: "k", Request: object.RequestPush, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "push")
	assert.Contains(t, err.Error(), `"k"`)
}

func TestCheckKey(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckKey("a"))
	assert.Error(t, CheckKey(""))
}

func TestCheckDebounce(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckDebounce(0))
	assert.NoError(t, CheckDebounce(time.Second))
	assert.Error(t, CheckDebounce(-time.Millisecond))
}

func TestCheckUnloadPolicy(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckUnloadPolicy(""))
	assert.NoError(t, CheckUnloadPolicy(object.UnloadFlush))
	assert.Error(t, CheckUnloadPolicy(object.UnloadPolicy("veto")))
}

type payload struct {
	Name  string
	Count int
}

func TestCheckProperty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     any
		property string
		wantErr  bool
	}{
		{
			name:     "map with property",
			data:     map[string]any{"name": "a"},
			property: "name",
		},
		{
			name:     "map without property",
			data:     map[string]any{"name": "a"},
			property: "missing",
			wantErr:  true,
		},
		{
			name:     "struct with field",
			data:     payload{Name: "a"},
			property: "Count",
		},
		{
			name:     "pointer to struct with field",
			data:     &payload{},
			property: "Name",
		},
		{
			name:     "struct without field",
			data:     payload{},
			property: "Missing",
			wantErr:  true,
		},
		{
			name:     "nil payload",
			data:     nil,
			property: "x",
			wantErr:  true,
		},
		{
			name:     "scalar payload has no properties",
			data:     42,
			property: "x",
			wantErr:  true,
		},
		{
			name:     "empty property name",
			data:     map[string]any{},
			property: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckProperty(tt.data, tt.property)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
