package hierarchy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaplan/mediaplan/internal/shared"
)

func TestValidateOrder(t *testing.T) {
	cases := []struct {
		name  string
		order []Level
		want  bool
	}{
		{"full", []Level{LevelSubdivision, LevelMoment, LevelFunnelStage}, true},
		{"single", []Level{LevelMoment}, true},
		{"permuted", []Level{LevelFunnelStage, LevelSubdivision}, true},
		{"empty", nil, false},
		{"duplicate", []Level{LevelSubdivision, LevelSubdivision}, false},
		{"too long", []Level{LevelSubdivision, LevelMoment, LevelFunnelStage, LevelMoment}, false},
		{"unknown", []Level{Level(9)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateOrder(tc.order))
		})
	}
}

func TestValidateOrderTags(t *testing.T) {
	assert.False(t, ValidateOrderTags([]string{"subdivision", "subdivision"}))
	assert.False(t, ValidateOrderTags([]string{}))
	assert.True(t, ValidateOrderTags([]string{"subdivision", "moment", "funnel_stage"}))
	assert.False(t, ValidateOrderTags([]string{"subdivision", "channel"}))
}

func TestShouldAllocateBudget(t *testing.T) {
	cfg := Config{
		{Level: LevelSubdivision, AllocatesBudget: true},
		{Level: LevelMoment, AllocatesBudget: false},
	}
	assert.True(t, cfg.ShouldAllocateBudget(LevelSubdivision))
	assert.False(t, cfg.ShouldAllocateBudget(LevelMoment))
	assert.True(t, cfg.ShouldAllocateBudget(LevelFunnelStage), "absent levels default to allocating")
	assert.Equal(t, []Level{LevelSubdivision, LevelMoment}, cfg.Order())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	err := Config{}.Validate()
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestAllocationPath(t *testing.T) {
	assert.Equal(t, "sub-1", AllocationPath(RootPath, "sub-1"))
	assert.Equal(t, "sub-1_mom-2", AllocationPath("sub-1", "mom-2"))
	assert.Equal(t, "sub-1_mom-2_general", AllocationPath(AllocationPath("sub-1", "mom-2"), "general"))
}

func TestConfigJSONRoundTripUsesTags(t *testing.T) {
	raw := []byte(`[{"level":"funnel_stage","allocates_budget":true},{"level":"moment","allocates_budget":false}]`)
	var cfg Config
	require.NoError(t, json.Unmarshal(raw, &cfg))
	assert.Equal(t, []Level{LevelFunnelStage, LevelMoment}, cfg.Order())

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))

	require.Error(t, json.Unmarshal([]byte(`[{"level":"channel"}]`), &cfg))
}

func TestDistributionTypeLevel(t *testing.T) {
	for _, l := range DefaultOrder {
		got, ok := TypeFor(l).Level()
		require.True(t, ok)
		assert.Equal(t, l, got)
	}
	_, ok := TypeTemporal.Level()
	assert.False(t, ok)
}
