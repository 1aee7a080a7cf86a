package tip_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scantip/backend-tips/internal/common"
	"github.com/scantip/backend-tips/internal/tip"
)

func TestBoundsValidate(t *testing.T) {
	b := tip.Bounds{Min: 50, Max: 100_000}

	cases := []struct {
		name   string
		amount int64
		ok     bool
	}{
		{"below minimum", 10, false},
		{"one under minimum", 49, false},
		{"exact minimum", 50, true},
		{"typical tip", 500, true},
		{"exact maximum", 100_000, true},
		{"one over maximum", 100_001, false},
		{"zero", 0, false},
		{"negative", -500, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := b.Validate(tc.amount)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, common.IsAppError(err))
		})
	}
}

func TestValidateMessageNamesRangeInMajorUnits(t *testing.T) {
	b := tip.Bounds{Min: 50, Max: 100_000}
	err := b.Validate(10)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.HTTPStatus)
	require.Contains(t, appErr.Message, "0.50")
	require.Contains(t, appErr.Message, "1000.00")
}

func TestFormatMajor(t *testing.T) {
	require.Equal(t, "5.00", tip.FormatMajor(500))
	require.Equal(t, "0.50", tip.FormatMajor(50))
	require.Equal(t, "1000.00", tip.FormatMajor(100_000))
	require.Equal(t, "12.34", tip.FormatMajor(1234))
}
